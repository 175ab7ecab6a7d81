// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package lifecycle owns the two plan slots and decides when a pushed plan
// is published.
//
// Classification happens on calendar days in the configured zone: a plan
// dated today goes to the today slot, any future date goes to the tomorrow
// slot, and a past date is rejected without touching either slot.
//
// The cutoff hour splits the day. A today plan arriving at or after the
// cutoff is stored but no longer published. A tomorrow plan arriving at or
// after the cutoff is published immediately; before the cutoff, a one-shot
// timer defers its publication to the cutoff. At most one deferred timer is
// armed at any time, and arming a new one cancels the previous one.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/planpress/planpress/internal/backup"
	"github.com/planpress/planpress/internal/logging"
	"github.com/planpress/planpress/internal/metrics"
	"github.com/planpress/planpress/internal/models"
	"github.com/planpress/planpress/internal/plan"
	"github.com/planpress/planpress/internal/publish"
)

// ErrStalePlan is returned for plans whose effective date is already over.
var ErrStalePlan = errors.New("plan is dated in the past")

// PlanPublisher renders and publishes one plan. Implementations log and
// count their own failures.
type PlanPublisher interface {
	Publish(ctx context.Context, p *models.Plan, trigger string) error
}

// Scheduler serializes all slot mutations behind one mutex. Publish and
// backup I/O runs outside the lock so a slow sink never blocks ingestion
// of the next plan.
type Scheduler struct {
	cutoffHour int
	loc        *time.Location
	store      backup.Store
	publisher  PlanPublisher
	clock      Clock

	mu       sync.Mutex
	today    *models.Plan
	tomorrow *models.Plan
	timer    Timer
	timerGen uint64
}

// NewScheduler builds a scheduler with empty slots.
func NewScheduler(cutoffHour int, loc *time.Location, store backup.Store, publisher PlanPublisher, clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock()
	}
	return &Scheduler{
		cutoffHour: cutoffHour,
		loc:        loc,
		store:      store,
		publisher:  publisher,
		clock:      clock,
	}
}

// Ingest parses a raw plan document, assigns it to a slot, persists the
// backup, and publishes according to the cutoff rules. It returns the slot
// the plan landed in; an immediate publish runs on its own goroutine so
// the caller is not held up by the sink. A failed backup write or publish
// does not undo the slot assignment.
func (s *Scheduler) Ingest(ctx context.Context, raw []byte) (models.Slot, error) {
	p, err := plan.Parse(raw, s.loc)
	if err != nil {
		metrics.PlanParseErrors.Inc()
		return "", err
	}

	now := s.clock.Now().In(s.loc)
	today := calendarDay(now)
	effective := p.EffectiveDay(s.loc)

	var slot models.Slot
	switch {
	case effective.Equal(today):
		slot = models.SlotToday
	case effective.After(today):
		slot = models.SlotTomorrow
	default:
		metrics.PlansRejectedStale.Inc()
		logging.Warn().
			Time("effective_date", p.EffectiveDate).
			Time("today", today).
			Msg("Rejected stale plan")
		return "", fmt.Errorf("%w: dated %s", ErrStalePlan, p.EffectiveDate.Format("2006-01-02"))
	}

	beforeCutoff := now.Hour() < s.cutoffHour

	s.mu.Lock()
	switch slot {
	case models.SlotToday:
		s.today = p
	case models.SlotTomorrow:
		s.tomorrow = p
		if beforeCutoff {
			s.armDeferredLocked(now)
		} else {
			s.cancelTimerLocked()
		}
	}
	s.mu.Unlock()

	metrics.PlansIngested.WithLabelValues(string(slot)).Inc()
	logging.Info().
		Str("slot", string(slot)).
		Time("effective_date", p.EffectiveDate).
		Int("rows", len(p.Table)).
		Msg("Plan ingested")

	if err := s.store.Write(ctx, slot, raw); err != nil {
		logging.Error().Err(err).Str("slot", string(slot)).Msg("Backup write failed")
	}

	// Today plans arriving at or after the cutoff are archived only. The
	// page is already showing (or about to show) tomorrow's plan.
	publishNow := (slot == models.SlotToday && beforeCutoff) ||
		(slot == models.SlotTomorrow && !beforeCutoff)
	if publishNow {
		// The pusher is acknowledged without waiting for the sink.
		// Publish failures leave the slot in place; there is no retry.
		go func() {
			if err := s.publisher.Publish(context.Background(), p, publish.TriggerImmediate); err != nil {
				logging.Error().Err(err).Str("slot", string(slot)).Msg("Immediate publish failed")
			}
		}()
	}

	return slot, nil
}

// armDeferredLocked schedules publication of the tomorrow slot at today's
// cutoff. A previously armed timer is canceled first, so at most one timer
// is ever armed. Callers hold s.mu.
func (s *Scheduler) armDeferredLocked(now time.Time) {
	s.cancelTimerLocked()

	s.timerGen++
	gen := s.timerGen

	cutoff := time.Date(now.Year(), now.Month(), now.Day(), s.cutoffHour, 0, 0, 0, s.loc)
	s.timer = s.clock.AfterFunc(cutoff.Sub(now), func() {
		s.fireDeferred(gen)
	})
	metrics.DeferredTimerArmed.Set(1)

	logging.Info().
		Time("fire_at", cutoff).
		Msg("Deferred publish armed")
}

// cancelTimerLocked stops any armed timer. Bumping the generation makes a
// callback that already fired but has not taken the lock yet return
// without publishing. Callers hold s.mu.
func (s *Scheduler) cancelTimerLocked() {
	if s.timer == nil {
		return
	}
	s.timer.Stop()
	s.timer = nil
	s.timerGen++
	metrics.DeferredTimerArmed.Set(0)
	metrics.DeferredTimerCancellations.Inc()
}

// fireDeferred publishes the tomorrow slot when its timer fires. A stale
// generation means the timer was canceled after the callback started.
func (s *Scheduler) fireDeferred(gen uint64) {
	s.mu.Lock()
	if gen != s.timerGen {
		s.mu.Unlock()
		return
	}
	s.timer = nil
	p := s.tomorrow
	s.mu.Unlock()

	metrics.DeferredTimerArmed.Set(0)
	if p == nil {
		return
	}
	if err := s.publisher.Publish(context.Background(), p, publish.TriggerDeferred); err != nil {
		logging.Error().Err(err).Msg("Deferred publish failed")
	}
}

// Rollover shifts tomorrow into today and empties the tomorrow slot. It
// runs at local midnight and mutates memory only; backups and the page
// stay as they are.
func (s *Scheduler) Rollover() {
	s.mu.Lock()
	s.cancelTimerLocked()
	s.today = s.tomorrow
	s.tomorrow = nil
	s.mu.Unlock()

	metrics.Rollovers.Inc()
	logging.Info().Msg("Slots rolled over")
}

// Recover re-ingests the backed-up tomorrow document after a restart. The
// document goes through normal classification, so a backup that refers to
// a day already over is rejected as stale and the slots stay empty.
func (s *Scheduler) Recover(ctx context.Context) error {
	raw, err := s.store.Read(ctx, models.SlotTomorrow)
	if errors.Is(err, backup.ErrNotFound) {
		logging.Info().Msg("No backup to recover")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read backup: %w", err)
	}

	slot, err := s.Ingest(ctx, raw)
	if errors.Is(err, ErrStalePlan) {
		logging.Info().Msg("Backup is stale, starting with empty slots")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to recover backup: %w", err)
	}

	logging.Info().Str("slot", string(slot)).Msg("Recovered plan from backup")
	return nil
}

// Slot returns a point-in-time view of one slot.
func (s *Scheduler) Slot(slot models.Slot) models.SlotView {
	s.mu.Lock()
	defer s.mu.Unlock()

	var p *models.Plan
	switch slot {
	case models.SlotToday:
		p = s.today
	case models.SlotTomorrow:
		p = s.tomorrow
	}

	if p == nil {
		return models.SlotView{Slot: slot, Empty: true}
	}
	return models.SlotView{
		Slot:          slot,
		EffectiveDate: p.EffectiveDate,
		Columns:       p.Columns,
		Table:         p.Table,
		LastEdited:    p.LastEdited,
	}
}

// calendarDay truncates t to its calendar day in t's location.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
