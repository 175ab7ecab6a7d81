// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package publish

import (
	"context"
	"errors"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/planpress/planpress/internal/logging"
	"github.com/planpress/planpress/internal/metrics"
)

// CircuitBreakerEditor wraps a PageEditor with a circuit breaker so a dead
// WordPress site cannot pile up hanging publish attempts. Calls fail fast
// while the circuit is open; there is no retry, the next ingested plan
// triggers the next attempt.
type CircuitBreakerEditor struct {
	editor PageEditor
	cb     *gobreaker.CircuitBreaker[any]
	name   string
}

// NewCircuitBreakerEditor wraps editor with breaker protection.
// Configuration:
// - Max 1 request in half-open state (publishes are rare and serialized)
// - 1 minute measurement window
// - 2 minute timeout before attempting recovery
// - Opens after 3 consecutive failures
func NewCircuitBreakerEditor(editor PageEditor) *CircuitBreakerEditor {
	cbName := "wordpress-api"

	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0) // 0 = closed

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,

		// Publishes are low volume, so a consecutive-failure trip is more
		// meaningful than a failure-rate threshold.
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			shouldTrip := counts.ConsecutiveFailures >= 3
			if shouldTrip {
				logging.Warn().
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return shouldTrip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")

			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, fromStr, toStr).Inc()
		},
	})

	return &CircuitBreakerEditor{
		editor: editor,
		cb:     cb,
		name:   cbName,
	}
}

// execute wraps one editor call with breaker protection and metrics.
func (e *CircuitBreakerEditor) execute(fn func() (any, error)) (any, error) {
	result, err := e.cb.Execute(fn)

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(e.name, "rejected").Inc()
			logging.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
		} else {
			metrics.CircuitBreakerRequests.WithLabelValues(e.name, "failure").Inc()
		}
		return nil, err
	}

	metrics.CircuitBreakerRequests.WithLabelValues(e.name, "success").Inc()
	return result, nil
}

// GetPage fetches the plan page with breaker protection.
func (e *CircuitBreakerEditor) GetPage(ctx context.Context) (*Page, error) {
	result, err := e.execute(func() (any, error) {
		return e.editor.GetPage(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Page), nil
}

// UpdatePageContent replaces the page body with breaker protection.
func (e *CircuitBreakerEditor) UpdatePageContent(ctx context.Context, html string) error {
	_, err := e.execute(func() (any, error) {
		return nil, e.editor.UpdatePageContent(ctx, html)
	})
	return err
}

var _ PageEditor = (*CircuitBreakerEditor)(nil)

// stateToFloat converts circuit breaker state to numeric value for metrics
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

// stateToString converts circuit breaker state to string for logging
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return "closed"
	case gobreaker.StateHalfOpen:
		return "half-open"
	case gobreaker.StateOpen:
		return "open"
	default:
		return "unknown"
	}
}
