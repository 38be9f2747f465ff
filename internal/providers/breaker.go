// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package providers

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/metrics"
	"github.com/andygivens/orbit/internal/models"
)

// BreakerAdapter wraps an Adapter with a circuit breaker so a failing
// upstream calendar API stops being called while it recovers. Snapshot
// refreshes record the breaker rejection as that provider's fetch error
// and carry on with the other providers.
//
// The breaker uses real time for its interval and timeout calculations.
// Tests exercise the wrapped adapter directly or drive the breaker with
// repeated failures.
type BreakerAdapter struct {
	inner Adapter
	cb    *gobreaker.CircuitBreaker[any]
	name  string
}

var _ Adapter = (*BreakerAdapter)(nil)

// WithBreaker wraps an adapter with circuit breaker protection.
// Configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
func WithBreaker(inner Adapter) *BreakerAdapter {
	cbName := "provider-" + inner.ID()

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			shouldTrip := failureRatio >= 0.6
			if shouldTrip {
				logging.Warn().
					Str("breaker", cbName).
					Uint32("failures", counts.TotalFailures).
					Float64("failure_rate", failureRatio*100).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := breakerStateString(from)
			toStr := breakerStateString(to)

			logging.Info().
				Str("breaker", name).
				Str("from", fromStr).
				Str("to", toStr).
				Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})

	return &BreakerAdapter{inner: inner, cb: cb, name: cbName}
}

// ID returns the wrapped adapter's provider id.
func (b *BreakerAdapter) ID() string { return b.inner.ID() }

// Provider returns the wrapped adapter's descriptor.
func (b *BreakerAdapter) Provider() models.Provider { return b.inner.Provider() }

// Close closes the wrapped adapter.
func (b *BreakerAdapter) Close() error { return b.inner.Close() }

// ListEvents fetches events through the breaker.
func (b *BreakerAdapter) ListEvents(ctx context.Context, since, until time.Time, limit int) ([]models.ProviderEventRecord, error) {
	result, err := b.execute(func() (any, error) {
		return b.inner.ListEvents(ctx, since, until, limit)
	})
	if err != nil {
		return nil, err
	}
	records, ok := result.([]models.ProviderEventRecord)
	if !ok {
		return nil, errors.New("circuit breaker: unexpected result type")
	}
	return records, nil
}

// LinkEvent runs through the breaker.
func (b *BreakerAdapter) LinkEvent(ctx context.Context, providerEventID, canonicalID string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.LinkEvent(ctx, providerEventID, canonicalID)
	})
	return err
}

// UnlinkEvent runs through the breaker.
func (b *BreakerAdapter) UnlinkEvent(ctx context.Context, providerEventID string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.UnlinkEvent(ctx, providerEventID)
	})
	return err
}

// ConfirmEvent runs through the breaker.
func (b *BreakerAdapter) ConfirmEvent(ctx context.Context, providerEventID string) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.ConfirmEvent(ctx, providerEventID)
	})
	return err
}

// RecreateEvent runs through the breaker.
func (b *BreakerAdapter) RecreateEvent(ctx context.Context, canonicalID string, event models.ProviderEventRecord) error {
	_, err := b.execute(func() (any, error) {
		return nil, b.inner.RecreateEvent(ctx, canonicalID, event)
	})
	return err
}

func (b *BreakerAdapter) execute(fn func() (any, error)) (any, error) {
	result, err := b.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
			logging.Warn().Err(err).Str("breaker", b.name).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
			counts := b.cb.Counts()
			metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(counts.ConsecutiveFailures))
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
	return result, nil
}

func breakerStateString(s gobreaker.State) string {
	switch s {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

func breakerStateFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
