// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package models defines the core plan and slot types shared across the
// ingestion, scheduling, rendering, and API layers.
package models

import (
	"fmt"
	"time"
)

// Slot identifies one of the two fixed plan positions.
type Slot string

// The two slots. There is intentionally no slot beyond tomorrow: a plan
// dated further in the future still occupies the tomorrow slot.
const (
	SlotToday    Slot = "today"
	SlotTomorrow Slot = "tomorrow"
)

// Valid reports whether s names a known slot.
func (s Slot) Valid() bool {
	return s == SlotToday || s == SlotTomorrow
}

// ParseSlot converts a string to a Slot, rejecting unknown names.
func ParseSlot(name string) (Slot, error) {
	s := Slot(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown slot %q", name)
	}
	return s, nil
}

// Row is a single substitution entry. Values are keyed by column name;
// the column order is carried separately on the Plan because the rendered
// table must preserve the order the source document used.
type Row map[string]string

// Plan is one day's parsed substitution notice.
type Plan struct {
	// EffectiveDate is the calendar date the plan applies to. Only the
	// date component participates in classification; the source timestamp
	// may carry a time of day.
	EffectiveDate time.Time `json:"effective_date"`

	// Columns is the ordered list of column names present in Table.
	Columns []string `json:"columns"`

	// Table holds the substitution rows in document order. The semantic
	// content is owned by the parser; the scheduler treats it as opaque.
	Table []Row `json:"table"`

	// RawSource is the original unparsed document, kept for backup and
	// crash recovery.
	RawSource string `json:"-"`

	// LastEdited is when the source document was last changed. Display
	// only; it never influences scheduling decisions.
	LastEdited time.Time `json:"last_edited"`
}

// EffectiveDay returns the plan's effective date truncated to a calendar
// day in loc. Classification compares days, never instants.
func (p *Plan) EffectiveDay(loc *time.Location) time.Time {
	t := p.EffectiveDate.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// SlotView is the read-side projection of a slot for the query boundary.
// Empty is true when the slot holds nothing; the remaining fields are only
// meaningful when Empty is false.
type SlotView struct {
	Slot          Slot      `json:"slot"`
	Empty         bool      `json:"empty"`
	EffectiveDate time.Time `json:"effective_date,omitempty"`
	Columns       []string  `json:"columns,omitempty"`
	Table         []Row     `json:"table,omitempty"`
	LastEdited    time.Time `json:"last_edited,omitempty"`
}
