// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package publish

import (
	"context"
	"fmt"
	"time"

	"github.com/planpress/planpress/internal/logging"
	"github.com/planpress/planpress/internal/metrics"
	"github.com/planpress/planpress/internal/models"
	"github.com/planpress/planpress/internal/render"
)

// Triggers describe why a publish happened, for logs and metrics.
const (
	TriggerImmediate = "immediate"
	TriggerDeferred  = "deferred"
)

// Publisher renders a plan and replaces the plan page with the result.
// A failed publish is logged and counted but never retried; the plan stays
// in its slot and the next push produces the next attempt.
type Publisher struct {
	editor PageEditor
}

// NewPublisher returns a Publisher writing through editor.
func NewPublisher(editor PageEditor) *Publisher {
	return &Publisher{editor: editor}
}

// Publish renders p and replaces the page content. trigger is recorded in
// metrics and logs.
func (pub *Publisher) Publish(ctx context.Context, p *models.Plan, trigger string) error {
	start := time.Now()

	html, err := render.HTML(p)
	if err != nil {
		metrics.PublishAttempts.WithLabelValues(trigger, "render_error").Inc()
		return fmt.Errorf("failed to render plan: %w", err)
	}

	if err := pub.editor.UpdatePageContent(ctx, html); err != nil {
		metrics.PublishAttempts.WithLabelValues(trigger, "error").Inc()
		logging.Error().
			Err(err).
			Str("trigger", trigger).
			Time("effective_date", p.EffectiveDate).
			Msg("Publish failed")
		return fmt.Errorf("failed to publish plan: %w", err)
	}

	elapsed := time.Since(start)
	metrics.PublishAttempts.WithLabelValues(trigger, "success").Inc()
	metrics.PublishDuration.Observe(elapsed.Seconds())

	logging.Info().
		Str("trigger", trigger).
		Time("effective_date", p.EffectiveDate).
		Dur("duration", elapsed).
		Msg("Plan published")
	return nil
}
