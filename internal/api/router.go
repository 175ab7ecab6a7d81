// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/planpress/planpress/internal/config"
	"github.com/planpress/planpress/internal/models"
)

// PlanService is the scheduler surface the HTTP layer consumes.
type PlanService interface {
	Ingest(ctx context.Context, raw []byte) (models.Slot, error)
	Slot(slot models.Slot) models.SlotView
}

// Router builds the HTTP handler tree for the service.
type Router struct {
	plans        PlanService
	mw           *Middleware
	maxBodyBytes int64
}

// NewRouter creates a router serving the ingest, query, health, and
// metrics endpoints.
func NewRouter(cfg *config.Config, plans PlanService) *Router {
	return &Router{
		plans:        plans,
		mw:           NewMiddleware(cfg),
		maxBodyBytes: cfg.Ingest.MaxBodyBytes,
	}
}

// Handler assembles the Chi route tree.
func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(rt.mw.CORS())

	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.mw.RateLimitHealth())
			r.Use(Instrument("/api/v1/health"))
			r.Get("/health", rt.handleHealth)
			r.Get("/health/live", rt.handleLive)
			r.Get("/health/ready", rt.handleReady)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.mw.RateLimit())
			r.Use(rt.mw.Authenticate)
			r.With(Instrument("/api/v1/vplan")).Post("/vplan", rt.handleIngest)
		})

		r.Group(func(r chi.Router) {
			r.Use(rt.mw.RateLimit())
			r.Use(rt.mw.Authenticate)
			r.With(Instrument("/api/v1/plans/{slot}")).Get("/plans/{slot}", rt.handleSlot)
		})
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
