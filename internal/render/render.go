// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

// Package render turns a parsed substitution plan into the HTML fragment
// that replaces the plan page content.
package render

import (
	_ "embed"
	"errors"
	"fmt"
	"html"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/planpress/planpress/internal/models"
)

//go:embed style.css
var styleSheet string

//go:embed extra.html
var extraHTML string

// ErrEmptyTable indicates a plan with no rows, which would render a bare
// heading with nothing under it.
var ErrEmptyTable = errors.New("cannot render plan with empty table")

// unimportantColumns are hidden on narrow screens. Lesson, class, and the
// info text stay visible so the plan remains readable on a phone.
var unimportantColumns = map[string]bool{
	"fach":      true,
	"raum":      true,
	"vertreter": true,
}

// boldValues are emphasized wherever they appear in a cell.
var boldValues = map[string]bool{
	"EVA":       true,
	"fällt aus": true,
}

// HTML renders a plan into a WordPress-ready page fragment: stylesheet,
// date heading, notice, substitution table, and a last-edited footer.
func HTML(p *models.Plan) (string, error) {
	if len(p.Table) == 0 {
		return "", ErrEmptyTable
	}

	columns := p.Columns
	if len(columns) == 0 {
		return "", errors.New("cannot render plan without column order")
	}

	unimportant := 0
	for _, col := range columns {
		if unimportantColumns[col] {
			unimportant++
		}
	}

	var b strings.Builder
	b.WriteString(`<style type="text/css">`)
	b.WriteString(renderStyle(len(columns), len(columns)-unimportant))
	b.WriteString(`</style>`)

	fmt.Fprintf(&b, `<h2 style="text-align: center; margin-top: 5px">%s</h2>`,
		formatLongDate(p.EffectiveDate))
	b.WriteString(extraHTML)

	b.WriteString(`<table class="vplan"><tbody><tr>`)
	writeHeaders(&b, columns)
	writeRows(&b, columns, p.Table)
	b.WriteString(`</tr></tbody></table><br><br>`)

	if !p.LastEdited.IsZero() {
		fmt.Fprintf(&b, `<p>Zuletzt geändert: %s</p>`, formatLongDateTime(p.LastEdited))
	}

	return b.String(), nil
}

// renderStyle fills the header width placeholders so columns share the
// row evenly, both with and without the columns hidden on small screens.
func renderStyle(total, visible int) string {
	s := strings.Replace(styleSheet, "_headerWidth_",
		fmt.Sprintf("%.4f%%", 100.0/float64(total)), 1)
	return strings.Replace(s, "__headerWidth__",
		fmt.Sprintf("%.4f%%", 100.0/float64(visible)), 1)
}

func writeHeaders(b *strings.Builder, columns []string) {
	for _, col := range columns {
		if unimportantColumns[col] {
			fmt.Fprintf(b, `<th class="unimportant">%s</th>`, html.EscapeString(titleCase(col)))
		} else {
			fmt.Fprintf(b, `<th>%s</th>`, html.EscapeString(titleCase(col)))
		}
	}
	b.WriteString(`</tr>`)
}

func writeRows(b *strings.Builder, columns []string, table []models.Row) {
	for i, row := range table {
		if yearBoundary(row, next(table, i)) {
			b.WriteString(`<tr style="border-bottom: 2px solid #adadad">`)
		} else {
			b.WriteString(`<tr>`)
		}

		for _, col := range columns {
			text := html.EscapeString(row[col])
			if boldValues[row[col]] {
				text = "<b>" + text + "</b>"
			}
			if unimportantColumns[col] {
				fmt.Fprintf(b, `<td class="unimportant">%s</td>`, text)
			} else {
				fmt.Fprintf(b, `<td>%s</td>`, text)
			}
		}

		b.WriteString(`</tr>`)
	}
}

func next(table []models.Row, i int) models.Row {
	if i+1 < len(table) {
		return table[i+1]
	}
	return nil
}

// yearBoundary reports whether a separating border belongs under the
// current row because the next row starts a different year group. Rows are
// grouped by the first character of the class name. Qualification phase
// classes all start with Q, so those compare on the second character
// instead (Q1 vs Q2).
func yearBoundary(row, nextRow models.Row) bool {
	if nextRow == nil {
		return false
	}
	cur := []rune(row["klasse"])
	nxt := []rune(nextRow["klasse"])
	if len(cur) == 0 || len(nxt) == 0 {
		return false
	}

	if cur[0] == 'Q' && len(cur) > 1 && len(nxt) > 1 && cur[1] != nxt[1] {
		return true
	}
	return cur[0] != nxt[0]
}

// titleCase upper-cases the first rune of a column name for the header row.
func titleCase(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:]
}
