// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package services

import (
	"context"
	"fmt"

	"github.com/planpress/planpress/internal/rollover"
)

// RolloverService runs the midnight rollover loop under supervision.
type RolloverService struct {
	svc *rollover.Service
}

// NewRolloverService wraps a rollover service for the supervision tree.
func NewRolloverService(svc *rollover.Service) *RolloverService {
	return &RolloverService{svc: svc}
}

// Serve implements suture.Service.
func (r *RolloverService) Serve(ctx context.Context) error {
	if err := r.svc.Start(ctx); err != nil {
		return fmt.Errorf("rollover service start failed: %w", err)
	}
	<-ctx.Done()
	if err := r.svc.Stop(); err != nil {
		return fmt.Errorf("rollover service stop failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for supervisor log messages.
func (r *RolloverService) String() string {
	return "rollover"
}
