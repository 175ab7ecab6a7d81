// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/planpress/planpress/internal/metrics"
	"github.com/planpress/planpress/internal/models"
)

// FileStore keeps one backup file per slot under a base directory.
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated backup behind.
type FileStore struct {
	dir string
}

// NewFileStore creates the backup directory if needed and returns the store.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", dir, err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(slot models.Slot) string {
	return filepath.Join(s.dir, string(slot)+".plan")
}

// Write replaces the backup for a slot.
func (s *FileStore) Write(ctx context.Context, slot models.Slot, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	target := s.path(slot)
	tmp, err := os.CreateTemp(s.dir, string(slot)+".plan.tmp-*")
	if err != nil {
		metrics.BackupWrites.WithLabelValues(string(slot), "error").Inc()
		return fmt.Errorf("failed to create temp backup: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		metrics.BackupWrites.WithLabelValues(string(slot), "error").Inc()
		return fmt.Errorf("failed to write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		metrics.BackupWrites.WithLabelValues(string(slot), "error").Inc()
		return fmt.Errorf("failed to close backup: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		metrics.BackupWrites.WithLabelValues(string(slot), "error").Inc()
		return fmt.Errorf("failed to set backup permissions: %w", err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		metrics.BackupWrites.WithLabelValues(string(slot), "error").Inc()
		return fmt.Errorf("failed to finalize backup: %w", err)
	}

	metrics.BackupWrites.WithLabelValues(string(slot), "success").Inc()
	return nil
}

// Read returns the backup for a slot, or ErrNotFound.
func (s *FileStore) Read(ctx context.Context, slot models.Slot) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	raw, err := os.ReadFile(s.path(slot))
	if os.IsNotExist(err) {
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

// Close is a no-op for the file store.
func (s *FileStore) Close() error {
	return nil
}
