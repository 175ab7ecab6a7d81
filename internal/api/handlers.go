// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/planpress/planpress/internal/lifecycle"
	"github.com/planpress/planpress/internal/logging"
	"github.com/planpress/planpress/internal/models"
)

// handleIngest accepts a pushed plan document and runs it through the
// scheduler. The slot the plan landed in is returned to the pusher.
func (rt *Router) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, rt.maxBodyBytes))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			WriteError(w, r, http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "document exceeds size limit")
			return
		}
		WriteBadRequest(w, r, "failed to read request body")
		return
	}

	slot, err := rt.plans.Ingest(r.Context(), body)
	if err != nil {
		// Stale plans are discarded without touching either slot, but the
		// push itself was well-formed. The pusher resends tomorrow's plan
		// on its own schedule, so this is an acknowledged no-op.
		if errors.Is(err, lifecycle.ErrStalePlan) {
			WriteSuccess(w, r, map[string]interface{}{
				"accepted": false,
				"reason":   err.Error(),
			})
			return
		}
		logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected unparseable plan document")
		WriteBadRequest(w, r, err.Error())
		return
	}

	WriteSuccess(w, r, map[string]interface{}{
		"accepted": true,
		"slot":     string(slot),
	})
}

// handleSlot returns the current view of one slot.
func (rt *Router) handleSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := models.ParseSlot(chi.URLParam(r, "slot"))
	if err != nil {
		WriteBadRequest(w, r, err.Error())
		return
	}
	WriteSuccess(w, r, rt.plans.Slot(slot))
}

func (rt *Router) handleHealth(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]interface{}{
		"status": "healthy",
		"slots": map[string]bool{
			string(models.SlotToday):    !rt.plans.Slot(models.SlotToday).Empty,
			string(models.SlotTomorrow): !rt.plans.Slot(models.SlotTomorrow).Empty,
		},
	})
}

func (rt *Router) handleLive(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "alive"})
}

func (rt *Router) handleReady(w http.ResponseWriter, r *http.Request) {
	WriteSuccess(w, r, map[string]string{"status": "ready"})
}
