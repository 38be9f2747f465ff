// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/andygivens/orbit/internal/logging"
)

// tickService counts Serve invocations and blocks until canceled.
type tickService struct {
	runs atomic.Int32
}

func (s *tickService) Serve(ctx context.Context) error {
	s.runs.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *tickService) String() string { return "tick" }

func TestTreeRunsServicesInBothLayers(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), DefaultTreeConfig())

	syncSvc := &tickService{}
	apiSvc := &tickService{}
	tree.AddSyncService(syncSvc)
	tree.AddAPIService(apiSvc)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if syncSvc.runs.Load() > 0 && apiSvc.runs.Load() > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if syncSvc.runs.Load() == 0 || apiSvc.runs.Load() == 0 {
		t.Fatal("services never started")
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after cancellation")
	}
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 || cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
