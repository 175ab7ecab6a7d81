// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package rollover shifts the plan slots at local midnight.
package rollover

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/planpress/planpress/internal/lifecycle"
)

// Target is the slot owner the service rolls over.
type Target interface {
	Rollover()
}

// Service fires Target.Rollover at every local midnight. It integrates
// with the supervisor tree for lifecycle management.
type Service struct {
	target Target
	loc    *time.Location
	clock  lifecycle.Clock
	logger zerolog.Logger

	// Runtime state
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewService creates a midnight rollover service.
func NewService(target Target, loc *time.Location, clock lifecycle.Clock, logger *zerolog.Logger) *Service {
	if clock == nil {
		clock = lifecycle.RealClock()
	}
	return &Service{
		target: target,
		loc:    loc,
		clock:  clock,
		logger: logger.With().Str("component", "rollover").Logger(),
	}
}

// Start begins the rollover loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("rollover service already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info().
		Str("timezone", s.loc.String()).
		Msg("Starting rollover service")

	go s.run(ctx)
	return nil
}

// Stop stops the rollover loop and waits for it to complete.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	close(s.stopCh)
	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info().Msg("Rollover service stopped")
	return nil
}

// run waits for each midnight in turn. Waking up re-reads the clock, so a
// suspended host or a DST shift only costs one short or long night, never
// a missed day.
func (s *Service) run(ctx context.Context) {
	defer close(s.doneCh)

	for {
		now := s.clock.Now().In(s.loc)
		next := nextMidnight(now)

		fired := make(chan struct{}, 1)
		timer := s.clock.AfterFunc(next.Sub(now), func() {
			select {
			case fired <- struct{}{}:
			default:
			}
		})

		s.logger.Debug().Time("next_rollover", next).Msg("Waiting for midnight")

		select {
		case <-fired:
			s.target.Rollover()
			s.logger.Info().Msg("Midnight rollover executed")
		case <-s.stopCh:
			timer.Stop()
			return
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// nextMidnight returns the start of the next calendar day in now's
// location. time.Date normalizes across DST gaps.
func nextMidnight(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, now.Location())
}
