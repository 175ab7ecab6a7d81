// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package backup persists raw plan documents per slot so the tomorrow slot
// can be recovered after a restart.
//
// Two backends are available: a plain file store (one file per slot) and a
// BadgerDB store for deployments that already run on a persistent volume
// with an embedded KV store.
package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/planpress/planpress/internal/config"
	"github.com/planpress/planpress/internal/models"
)

// ErrNotFound is returned when no backup exists for a slot.
var ErrNotFound = errors.New("no backup for slot")

// Store persists the raw document of each slot. Write replaces any
// previous document for the slot. Implementations must be safe for
// concurrent use.
type Store interface {
	// Write stores the raw document for a slot, replacing any previous one.
	Write(ctx context.Context, slot models.Slot, raw []byte) error

	// Read returns the raw document for a slot, or ErrNotFound.
	Read(ctx context.Context, slot models.Slot) ([]byte, error)

	// Close releases backend resources.
	Close() error
}

// NewStore builds the backup store selected by configuration.
func NewStore(cfg config.BackupConfig) (Store, error) {
	switch cfg.Store {
	case "file":
		return NewFileStore(cfg.Dir)
	case "badger":
		return NewBadgerStore(cfg.BadgerPath)
	default:
		return nil, fmt.Errorf("unknown backup store %q", cfg.Store)
	}
}
