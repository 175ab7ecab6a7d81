// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package render

import (
	"fmt"
	"time"
)

var germanWeekdays = [...]string{
	time.Sunday:    "Sonntag",
	time.Monday:    "Montag",
	time.Tuesday:   "Dienstag",
	time.Wednesday: "Mittwoch",
	time.Thursday:  "Donnerstag",
	time.Friday:    "Freitag",
	time.Saturday:  "Samstag",
}

var germanMonths = [...]string{
	time.January:   "Januar",
	time.February:  "Februar",
	time.March:     "März",
	time.April:     "April",
	time.May:       "Mai",
	time.June:      "Juni",
	time.July:      "Juli",
	time.August:    "August",
	time.September: "September",
	time.October:   "Oktober",
	time.November:  "November",
	time.December:  "Dezember",
}

// formatLongDate renders a date as "Donnerstag, 12. März 2026".
func formatLongDate(t time.Time) string {
	return fmt.Sprintf("%s, %d. %s %d",
		germanWeekdays[t.Weekday()], t.Day(), germanMonths[t.Month()], t.Year())
}

// formatLongDateTime renders a timestamp as
// "Mittwoch, 11. März 2026 14:32".
func formatLongDateTime(t time.Time) string {
	return fmt.Sprintf("%s %02d:%02d", formatLongDate(t), t.Hour(), t.Minute())
}
