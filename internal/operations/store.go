// Orbit - Calendar Synchronization Troubleshooting Service
// Copyright 2026 Andy Givens
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/andygivens/orbit

// Package operations persists the audit record written for every
// corrective action. Records live in an embedded BadgerDB keyed by
// "op:<reverse-timestamp>:<id>" so listing newest-first is a prefix
// iteration, plus an "opid:<id>" index for direct lookup.
package operations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/andygivens/orbit/internal/logging"
	"github.com/andygivens/orbit/internal/metrics"
	"github.com/andygivens/orbit/internal/models"
)

const (
	opKeyPrefix   = "op:"
	opIDKeyPrefix = "opid:"
)

// ErrOperationNotFound is returned when no record exists for an id.
var ErrOperationNotFound = errors.New("operation not found")

// Store is the badger-backed operation record store.
type Store struct {
	db        *badger.DB
	retention time.Duration
}

// Open opens (or creates) the store at path. Retention bounds how long
// settled records live; badger's TTL handles expiry.
func Open(path string, retention time.Duration) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil // badger's own logger is noisy; zerolog covers store events
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open operations store: %w", err)
	}
	return &Store{db: db, retention: retention}, nil
}

// NewWithDB wraps an existing badger instance, used by tests with
// in-memory databases.
func NewWithDB(db *badger.DB, retention time.Duration) *Store {
	return &Store{db: db, retention: retention}
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Begin creates a queued operation record and returns it. The id is a
// fresh UUID; StartedAt is set to now.
func (s *Store) Begin(ctx context.Context, kind, resourceType, resourceID string, payload map[string]any) (*models.Operation, error) {
	op := &models.Operation{
		ID:           uuid.NewString(),
		Kind:         kind,
		Status:       models.OperationQueued,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Payload:      payload,
		StartedAt:    time.Now().UTC(),
	}
	if err := s.put(op); err != nil {
		return nil, err
	}
	return op, nil
}

// MarkRunning transitions a record to running.
func (s *Store) MarkRunning(ctx context.Context, id string) error {
	return s.mutate(id, func(op *models.Operation) {
		op.Status = models.OperationRunning
	})
}

// Settle finishes a record: succeeded with a result, or failed with an
// error message. FinishedAt is stamped either way.
func (s *Store) Settle(ctx context.Context, id string, result map[string]any, opErr error) error {
	err := s.mutate(id, func(op *models.Operation) {
		now := time.Now().UTC()
		op.FinishedAt = &now
		if opErr != nil {
			op.Status = models.OperationFailed
			op.Error = opErr.Error()
			return
		}
		op.Status = models.OperationSucceeded
		op.Result = result
	})
	if err == nil {
		status := string(models.OperationSucceeded)
		if opErr != nil {
			status = string(models.OperationFailed)
		}
		metrics.OperationsRecorded.WithLabelValues(status).Inc()
	}
	return err
}

// Get returns one record by id.
func (s *Store) Get(ctx context.Context, id string) (*models.Operation, error) {
	var op models.Operation
	err := s.db.View(func(txn *badger.Txn) error {
		storeKey, err := s.resolveID(txn, id)
		if err != nil {
			return err
		}
		item, err := txn.Get(storeKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrOperationNotFound
		}
		if err != nil {
			return fmt.Errorf("get operation: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &op)
		})
	})
	if err != nil {
		return nil, err
	}
	return &op, nil
}

// List returns up to limit records, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]models.Operation, error) {
	if limit <= 0 {
		limit = 50
	}

	ops := make([]models.Operation, 0, limit)
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{
			PrefetchValues: true,
			PrefetchSize:   limit,
			Prefix:         []byte(opKeyPrefix),
		})
		defer it.Close()

		for it.Rewind(); it.Valid() && len(ops) < limit; it.Next() {
			var op models.Operation
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &op)
			})
			if err != nil {
				logging.Warn().Err(err).Msg("Skipping undecodable operation record")
				continue
			}
			ops = append(ops, op)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list operations: %w", err)
	}
	return ops, nil
}

// put writes both the ordered record key and the id index entry.
func (s *Store) put(op *models.Operation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal operation: %w", err)
	}
	storeKey := s.orderedKey(op)

	return s.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(storeKey, data)
		if s.retention > 0 {
			entry = entry.WithTTL(s.retention)
		}
		if err := txn.SetEntry(entry); err != nil {
			return fmt.Errorf("set operation: %w", err)
		}

		idxEntry := badger.NewEntry([]byte(opIDKeyPrefix+op.ID), storeKey)
		if s.retention > 0 {
			idxEntry = idxEntry.WithTTL(s.retention)
		}
		if err := txn.SetEntry(idxEntry); err != nil {
			return fmt.Errorf("set operation index: %w", err)
		}
		return nil
	})
}

// mutate loads, applies fn, and rewrites a record in one transaction.
func (s *Store) mutate(id string, fn func(*models.Operation)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		storeKey, err := s.resolveID(txn, id)
		if err != nil {
			return err
		}

		item, err := txn.Get(storeKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrOperationNotFound
		}
		if err != nil {
			return fmt.Errorf("get operation: %w", err)
		}

		var op models.Operation
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &op)
		}); err != nil {
			return fmt.Errorf("unmarshal operation: %w", err)
		}

		fn(&op)

		data, err := json.Marshal(&op)
		if err != nil {
			return fmt.Errorf("marshal operation: %w", err)
		}
		entry := badger.NewEntry(storeKey, data)
		if s.retention > 0 {
			entry = entry.WithTTL(s.retention)
		}
		return txn.SetEntry(entry)
	})
}

// resolveID maps an operation id to its ordered store key.
func (s *Store) resolveID(txn *badger.Txn, id string) ([]byte, error) {
	item, err := txn.Get([]byte(opIDKeyPrefix + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrOperationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve operation id: %w", err)
	}
	var storeKey []byte
	if err := item.Value(func(val []byte) error {
		storeKey = append([]byte(nil), val...)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("read operation index: %w", err)
	}
	return storeKey, nil
}

// orderedKey builds "op:<reverse-nanos>:<id>" so badger's ascending
// iteration yields newest records first.
func (s *Store) orderedKey(op *models.Operation) []byte {
	reverse := ^uint64(0) - uint64(op.StartedAt.UnixNano())
	return []byte(fmt.Sprintf("%s%020d:%s", opKeyPrefix, reverse, op.ID))
}

// RunGC runs badger's value-log garbage collection once. Safe to call
// periodically; ErrNoRewrite simply means there was nothing to collect.
func (s *Store) RunGC() {
	if err := s.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) {
		logging.Warn().Err(err).Msg("Operations store GC failed")
	}
}
