// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/planpress/planpress/internal/metrics"
	"github.com/planpress/planpress/internal/models"
)

// planKeyPrefix namespaces plan documents inside the KV store.
const planKeyPrefix = "plan:"

// BadgerStore persists slot backups in an embedded BadgerDB.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the BadgerDB at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store at %s: %w", path, err)
	}
	return &BadgerStore{db: db}, nil
}

// newInMemoryBadgerStore is used by tests.
func newInMemoryBadgerStore() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db}, nil
}

func planKey(slot models.Slot) []byte {
	return []byte(planKeyPrefix + string(slot))
}

// Write replaces the backup for a slot.
func (s *BadgerStore) Write(ctx context.Context, slot models.Slot, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(planKey(slot), raw)
	})
	if err != nil {
		metrics.BackupWrites.WithLabelValues(string(slot), "error").Inc()
		return fmt.Errorf("failed to write backup: %w", err)
	}

	metrics.BackupWrites.WithLabelValues(string(slot), "success").Inc()
	return nil
}

// Read returns the backup for a slot, or ErrNotFound.
func (s *BadgerStore) Read(ctx context.Context, slot models.Slot) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var raw []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(planKey(slot))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			raw = append([]byte(nil), val...)
			return nil
		})
	})

	if errors.Is(err, ErrNotFound) {
		metrics.BackupReads.WithLabelValues(string(slot), "miss").Inc()
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.BackupReads.WithLabelValues(string(slot), "error").Inc()
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}

	metrics.BackupReads.WithLabelValues(string(slot), "success").Inc()
	return raw, nil
}

// RunValueLogGC triggers one round of value log garbage collection.
// badger.ErrNoRewrite means there was nothing to collect.
func (s *BadgerStore) RunValueLogGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) {
		return nil
	}
	return err
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
