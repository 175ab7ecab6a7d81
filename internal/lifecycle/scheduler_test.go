// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/planpress/planpress/internal/backup"
	"github.com/planpress/planpress/internal/models"
)

var berlin = mustLoadLocation("Europe/Berlin")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}

// fakeClock drives the scheduler deterministically. Advance moves time
// forward and fires due timers synchronously, in arming order.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	fireAt  time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, fireAt: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.fireAt.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	for _, t := range due {
		t.f()
	}
}

type publishCall struct {
	date    time.Time
	trigger string
}

type recordingPublisher struct {
	mu    sync.Mutex
	calls []publishCall
}

func (r *recordingPublisher) Publish(ctx context.Context, p *models.Plan, trigger string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, publishCall{date: p.EffectiveDate, trigger: trigger})
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

func (r *recordingPublisher) last() publishCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[len(r.calls)-1]
}

// waitForPublishes polls until the publisher has seen n calls. Immediate
// publishes run on their own goroutine, so tests must not assert counts
// right after Ingest returns.
func waitForPublishes(t *testing.T, pub *recordingPublisher, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for pub.count() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d publishes, got %d", n, pub.count())
		}
		time.Sleep(time.Millisecond)
	}
}

func document(date string) []byte {
	return []byte(fmt.Sprintf(
		`{"date": %q, "table": [{"stunde": "1", "klasse": "7a", "info": "EVA"}]}`, date))
}

// newTestScheduler starts at 2026-03-12 (Thursday) 08:00 Berlin time with
// cutoff hour 15.
func newTestScheduler(t *testing.T) (*Scheduler, *fakeClock, *recordingPublisher, backup.Store) {
	t.Helper()
	store, err := backup.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore failed: %v", err)
	}
	clock := newFakeClock(time.Date(2026, 3, 12, 8, 0, 0, 0, berlin))
	pub := &recordingPublisher{}
	s := NewScheduler(15, berlin, store, pub, clock)
	return s, clock, pub, store
}

func TestIngestTodayBeforeCutoffPublishesImmediately(t *testing.T) {
	s, _, pub, _ := newTestScheduler(t)

	slot, err := s.Ingest(context.Background(), document("2026-03-12"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if slot != models.SlotToday {
		t.Errorf("expected today slot, got %s", slot)
	}
	waitForPublishes(t, pub, 1)
	if pub.last().trigger != "immediate" {
		t.Errorf("expected immediate trigger, got %s", pub.last().trigger)
	}
}

func TestIngestTodayAfterCutoffStoresWithoutPublishing(t *testing.T) {
	s, clock, pub, _ := newTestScheduler(t)
	clock.Advance(8 * time.Hour) // 16:00, past the 15:00 cutoff

	slot, err := s.Ingest(context.Background(), document("2026-03-12"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if slot != models.SlotToday {
		t.Errorf("expected today slot, got %s", slot)
	}
	if pub.count() != 0 {
		t.Errorf("expected no publish after cutoff, got %d", pub.count())
	}
	if s.Slot(models.SlotToday).Empty {
		t.Error("today slot should hold the plan")
	}
}

func TestIngestTomorrowBeforeCutoffDefersPublish(t *testing.T) {
	s, clock, pub, _ := newTestScheduler(t)

	slot, err := s.Ingest(context.Background(), document("2026-03-13"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if slot != models.SlotTomorrow {
		t.Errorf("expected tomorrow slot, got %s", slot)
	}
	if pub.count() != 0 {
		t.Fatalf("publish should be deferred, got %d immediate", pub.count())
	}

	// One minute before the cutoff nothing happens.
	clock.Advance(6*time.Hour + 59*time.Minute)
	if pub.count() != 0 {
		t.Fatalf("published before cutoff")
	}

	// At the cutoff the deferred publish fires.
	clock.Advance(time.Minute)
	if pub.count() != 1 {
		t.Fatalf("expected deferred publish at cutoff, got %d", pub.count())
	}
	if pub.last().trigger != "deferred" {
		t.Errorf("expected deferred trigger, got %s", pub.last().trigger)
	}
}

func TestIngestTomorrowAfterCutoffPublishesImmediately(t *testing.T) {
	s, clock, pub, _ := newTestScheduler(t)
	clock.Advance(7 * time.Hour) // 15:00 exactly, cutoff reached

	slot, err := s.Ingest(context.Background(), document("2026-03-13"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if slot != models.SlotTomorrow {
		t.Errorf("expected tomorrow slot, got %s", slot)
	}
	waitForPublishes(t, pub, 1)
	if pub.last().trigger != "immediate" {
		t.Errorf("expected immediate trigger, got %s", pub.last().trigger)
	}
}

func TestIngestFarFutureGoesToTomorrowSlot(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)

	slot, err := s.Ingest(context.Background(), document("2026-03-16"))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if slot != models.SlotTomorrow {
		t.Errorf("expected tomorrow slot for future date, got %s", slot)
	}
}

func TestIngestStalePlanRejectedWithoutMutation(t *testing.T) {
	s, _, pub, _ := newTestScheduler(t)

	// Seed both slots.
	if _, err := s.Ingest(context.Background(), document("2026-03-12")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, err := s.Ingest(context.Background(), document("2026-03-13")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	waitForPublishes(t, pub, 1)
	published := pub.count()

	_, err := s.Ingest(context.Background(), document("2026-03-11"))
	if !errors.Is(err, ErrStalePlan) {
		t.Fatalf("expected ErrStalePlan, got %v", err)
	}

	if pub.count() != published {
		t.Error("stale plan must not trigger a publish")
	}
	today := s.Slot(models.SlotToday)
	if today.Empty || !today.EffectiveDate.Equal(time.Date(2026, 3, 12, 0, 0, 0, 0, berlin)) {
		t.Error("stale plan must not touch the today slot")
	}
	tomorrow := s.Slot(models.SlotTomorrow)
	if tomorrow.Empty || !tomorrow.EffectiveDate.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, berlin)) {
		t.Error("stale plan must not touch the tomorrow slot")
	}
}

func TestRearmCancelsPreviousTimer(t *testing.T) {
	s, clock, pub, _ := newTestScheduler(t)

	if _, err := s.Ingest(context.Background(), document("2026-03-13")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	clock.Advance(time.Hour) // 09:00
	if _, err := s.Ingest(context.Background(), document("2026-03-13")); err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}

	// Only the latest timer fires, exactly once.
	clock.Advance(7 * time.Hour) // past 15:00
	if pub.count() != 1 {
		t.Fatalf("expected exactly 1 deferred publish, got %d", pub.count())
	}
}

func TestRolloverCancelsArmedTimer(t *testing.T) {
	s, clock, pub, _ := newTestScheduler(t)

	if _, err := s.Ingest(context.Background(), document("2026-03-13")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	s.Rollover()

	clock.Advance(24 * time.Hour)
	if pub.count() != 0 {
		t.Errorf("canceled timer must never publish, got %d", pub.count())
	}
}

func TestRolloverShiftsSlots(t *testing.T) {
	s, clock, _, _ := newTestScheduler(t)
	clock.Advance(8 * time.Hour) // after cutoff, keeps the test publish-free on the today side

	if _, err := s.Ingest(context.Background(), document("2026-03-12")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if _, err := s.Ingest(context.Background(), document("2026-03-13")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	s.Rollover()

	today := s.Slot(models.SlotToday)
	if today.Empty || !today.EffectiveDate.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, berlin)) {
		t.Errorf("today slot should hold the former tomorrow plan, got %+v", today)
	}
	if !s.Slot(models.SlotTomorrow).Empty {
		t.Error("tomorrow slot should be empty after rollover")
	}
}

func TestRolloverWithEmptySlots(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	s.Rollover()

	if !s.Slot(models.SlotToday).Empty {
		t.Error("today slot should be empty")
	}
	if !s.Slot(models.SlotTomorrow).Empty {
		t.Error("tomorrow slot should be empty")
	}
}

func TestRecoverRestoresTomorrowSlot(t *testing.T) {
	s, clock, _, store := newTestScheduler(t)

	if _, err := s.Ingest(context.Background(), document("2026-03-13")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// Simulate a restart with the same store.
	pub2 := &recordingPublisher{}
	s2 := NewScheduler(15, berlin, store, pub2, clock)
	if err := s2.Recover(context.Background()); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}

	tomorrow := s2.Slot(models.SlotTomorrow)
	if tomorrow.Empty || !tomorrow.EffectiveDate.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, berlin)) {
		t.Errorf("tomorrow slot not recovered: %+v", tomorrow)
	}

	// Recovery before the cutoff re-arms the deferred timer as if the
	// plan had been freshly pushed.
	clock.Advance(7 * time.Hour)
	waitForPublishes(t, pub2, 1)
	if pub2.last().trigger != "deferred" {
		t.Errorf("expected deferred trigger after recovery, got %s", pub2.last().trigger)
	}
}

func TestRecoverStaleBackupLeavesSlotsEmpty(t *testing.T) {
	s, _, pub, store := newTestScheduler(t)

	if err := store.Write(context.Background(), models.SlotTomorrow, document("2026-03-10")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if err := s.Recover(context.Background()); err != nil {
		t.Fatalf("Recover should swallow stale backups, got %v", err)
	}
	if !s.Slot(models.SlotToday).Empty || !s.Slot(models.SlotTomorrow).Empty {
		t.Error("stale backup must leave both slots empty")
	}
	if pub.count() != 0 {
		t.Error("stale backup must not publish")
	}
}

func TestRecoverWithoutBackup(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)
	if err := s.Recover(context.Background()); err != nil {
		t.Fatalf("Recover without backup should succeed, got %v", err)
	}
}

func TestRecoveredBackupDatedTodayLandsInTodaySlot(t *testing.T) {
	s, clock, _, store := newTestScheduler(t)

	if _, err := s.Ingest(context.Background(), document("2026-03-13")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// Restart the next morning: the backed-up plan is now a today plan.
	clock.Advance(24 * time.Hour)
	pub2 := &recordingPublisher{}
	s2 := NewScheduler(15, berlin, store, pub2, clock)
	if err := s2.Recover(context.Background()); err != nil {
		t.Fatalf("Recover failed: %v", err)
	}

	today := s2.Slot(models.SlotToday)
	if today.Empty || !today.EffectiveDate.Equal(time.Date(2026, 3, 13, 0, 0, 0, 0, berlin)) {
		t.Errorf("plan should be reclassified into the today slot, got %+v", today)
	}
}

func TestSlotViewSnapshot(t *testing.T) {
	s, _, _, _ := newTestScheduler(t)

	view := s.Slot(models.SlotToday)
	if !view.Empty || view.Slot != models.SlotToday {
		t.Errorf("expected empty today view, got %+v", view)
	}

	if _, err := s.Ingest(context.Background(), document("2026-03-12")); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	view = s.Slot(models.SlotToday)
	if view.Empty {
		t.Fatal("expected populated view")
	}
	if len(view.Table) != 1 || view.Table[0]["info"] != "EVA" {
		t.Errorf("unexpected table: %v", view.Table)
	}
	if len(view.Columns) != 3 {
		t.Errorf("unexpected columns: %v", view.Columns)
	}
}

func TestIngestParseErrorLeavesSlotsUntouched(t *testing.T) {
	s, _, pub, _ := newTestScheduler(t)

	if _, err := s.Ingest(context.Background(), []byte(`{"date":`)); err == nil {
		t.Fatal("expected parse error")
	}
	if !s.Slot(models.SlotToday).Empty || !s.Slot(models.SlotTomorrow).Empty {
		t.Error("parse error must not touch slots")
	}
	if pub.count() != 0 {
		t.Error("parse error must not publish")
	}
}

func TestDeferredPublishUsesLatestPlan(t *testing.T) {
	s, clock, pub, _ := newTestScheduler(t)

	if _, err := s.Ingest(context.Background(),
		[]byte(`{"date": "2026-03-13", "table": [{"stunde": "1", "klasse": "7a", "info": "alt"}]}`)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	clock.Advance(2 * time.Hour)
	if _, err := s.Ingest(context.Background(),
		[]byte(`{"date": "2026-03-13", "table": [{"stunde": "1", "klasse": "7a", "info": "neu"}]}`)); err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	clock.Advance(6 * time.Hour)
	if pub.count() != 1 {
		t.Fatalf("expected one deferred publish, got %d", pub.count())
	}

	tomorrow := s.Slot(models.SlotTomorrow)
	if tomorrow.Table[0]["info"] != "neu" {
		t.Errorf("slot should hold the latest plan, got %v", tomorrow.Table)
	}
}
