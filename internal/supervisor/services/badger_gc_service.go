// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package services

import (
	"context"
	"time"

	"github.com/planpress/planpress/internal/logging"
)

// ValueLogGC is the maintenance surface of the Badger backup store.
type ValueLogGC interface {
	RunValueLogGC() error
}

// BadgerGCService periodically runs Badger value log garbage collection.
// The plan workload is tiny but long-lived, so without GC the value log
// grows without bound across months of daily overwrites.
type BadgerGCService struct {
	store    ValueLogGC
	interval time.Duration
}

// NewBadgerGCService creates the GC loop with the given interval.
func NewBadgerGCService(store ValueLogGC, interval time.Duration) *BadgerGCService {
	if interval <= 0 {
		interval = time.Hour
	}
	return &BadgerGCService{store: store, interval: interval}
}

// Serve implements suture.Service.
func (b *BadgerGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := b.store.RunValueLogGC(); err != nil {
				logging.Warn().Err(err).Msg("Badger value log GC failed")
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// String implements fmt.Stringer for supervisor log messages.
func (b *BadgerGCService) String() string {
	return "badger-gc"
}
