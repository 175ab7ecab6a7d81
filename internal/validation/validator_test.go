// Planpress - Substitution Plan Ingestion and Publishing
// Copyright 2026 The Planpress Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/planpress/planpress

package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Name   string `validate:"required,min=3"`
	Cutoff int    `validate:"gte=0,lte=23"`
	Zone   string `validate:"omitempty,timezone"`
}

func TestValidateStructPasses(t *testing.T) {
	req := sampleRequest{Name: "vplan", Cutoff: 15, Zone: "Europe/Berlin"}
	assert.Nil(t, ValidateStruct(&req))
}

func TestValidateStructRequired(t *testing.T) {
	req := sampleRequest{Cutoff: 15}
	verr := ValidateStruct(&req)
	require.NotNil(t, verr)
	require.Len(t, verr.Errors(), 1)
	assert.Equal(t, "required", verr.Errors()[0].Tag())
	assert.Equal(t, "Name", verr.Errors()[0].Field())
}

func TestValidateStructRange(t *testing.T) {
	req := sampleRequest{Name: "vplan", Cutoff: 24}
	verr := ValidateStruct(&req)
	require.NotNil(t, verr)
	assert.Contains(t, verr.Error(), "less than or equal to 23")
}

func TestValidateStructInvalidZone(t *testing.T) {
	req := sampleRequest{Name: "vplan", Cutoff: 15, Zone: "Mars/Olympus_Mons"}
	verr := ValidateStruct(&req)
	require.NotNil(t, verr)
	assert.Equal(t, "timezone", verr.Errors()[0].Tag())
}

func TestToAPIErrorSingleField(t *testing.T) {
	req := sampleRequest{Cutoff: 15}
	verr := ValidateStruct(&req)
	require.NotNil(t, verr)

	apiErr := verr.ToAPIError()
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, "Name", apiErr.Details["field"])
}

func TestToAPIErrorMultipleFields(t *testing.T) {
	req := sampleRequest{Name: "x", Cutoff: -1}
	verr := ValidateStruct(&req)
	require.NotNil(t, verr)

	apiErr := verr.ToAPIError()
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.NotNil(t, apiErr.Details["fields"])
}
