// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package plan parses raw substitution plan documents pushed by the school
// administration system.
//
// A document is a JSON object with an effective date, an optional
// last-edited timestamp, and a table of rows. Column order follows the key
// order of the first row, which mirrors how the pushing system lays out
// its export.
package plan

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"

	"github.com/planpress/planpress/internal/models"
)

var (
	// ErrMissingDate indicates the document has no effective date.
	ErrMissingDate = errors.New("plan document has no date")

	// ErrEmptyTable indicates the document has no substitution rows.
	ErrEmptyTable = errors.New("plan document has an empty table")
)

// document is the wire shape of a pushed plan.
type document struct {
	Date       string              `json:"date"`
	LastEdited string              `json:"last_edited"`
	Table      []models.Row        `json:"table"`
}

// dateLayouts lists accepted date formats. The pushing system emits ISO
// dates, but older exports use the German short form.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02.01.2006",
}

// timestampLayouts lists accepted last-edited formats.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02.01.2006 15:04",
}

// Parse decodes a raw plan document into a models.Plan. The effective date
// is interpreted in loc. Parse never mutates shared state, so callers can
// run it before taking any scheduling locks.
func Parse(raw []byte, loc *time.Location) (*models.Plan, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode plan document: %w", err)
	}

	if doc.Date == "" {
		return nil, ErrMissingDate
	}
	if len(doc.Table) == 0 {
		return nil, ErrEmptyTable
	}

	effective, err := parseDate(doc.Date, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid plan date %q: %w", doc.Date, err)
	}

	var lastEdited time.Time
	if doc.LastEdited != "" {
		lastEdited, err = parseTimestamp(doc.LastEdited, loc)
		if err != nil {
			return nil, fmt.Errorf("invalid last_edited %q: %w", doc.LastEdited, err)
		}
	}

	columns, err := firstRowColumns(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to determine column order: %w", err)
	}

	return &models.Plan{
		EffectiveDate: effective,
		Columns:       columns,
		Table:         doc.Table,
		LastEdited:    lastEdited,
		RawSource:     string(raw),
	}, nil
}

// parseDate tries the accepted date layouts in order. Date-only layouts are
// parsed in loc so calendar-day comparisons stay in the configured zone.
func parseDate(value string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func parseTimestamp(value string, loc *time.Location) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.ParseInLocation(layout, value, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// firstRowColumns walks the raw JSON tokens and returns the keys of the
// first table row in document order. Decoding into a map loses key order,
// and the rendered table must show columns the way the source lays them
// out.
func firstRowColumns(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	// Scan to the "table" key at the top level.
	if err := expectDelim(dec, '{'); err != nil {
		return nil, err
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in document", keyTok)
		}
		if key != "table" {
			if err := skipValue(dec); err != nil {
				return nil, err
			}
			continue
		}

		// table: [ { k: v, ... }, ... ]
		if err := expectDelim(dec, '['); err != nil {
			return nil, err
		}
		if !dec.More() {
			return nil, ErrEmptyTable
		}
		if err := expectDelim(dec, '{'); err != nil {
			return nil, err
		}

		var columns []string
		for dec.More() {
			colTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			col, ok := colTok.(string)
			if !ok {
				return nil, fmt.Errorf("unexpected token %v in table row", colTok)
			}
			columns = append(columns, col)
			if err := skipValue(dec); err != nil {
				return nil, err
			}
		}
		return columns, nil
	}

	return nil, ErrEmptyTable
}

func expectDelim(dec *json.Decoder, want rune) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || rune(delim) != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

// skipValue consumes one JSON value, including nested objects and arrays.
func skipValue(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok {
		return nil
	}
	switch delim {
	case '{', '[':
		depth := 1
		for depth > 0 {
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			if d, ok := tok.(json.Delim); ok {
				switch d {
				case '{', '[':
					depth++
				case '}', ']':
					depth--
				}
			}
		}
	}
	return nil
}
