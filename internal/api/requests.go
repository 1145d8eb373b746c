// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/layersync/internal/validation"
)

// bboxQuery is the query of GET /layers/{layerId}/bbox.
type bboxQuery struct {
	SouthWest []float64 `validate:"lnglat"`
	NorthEast []float64 `validate:"lnglat"`
}

// sphereQuery is the query of GET /layers/{layerId}/sphere. Distance is in
// meters.
type sphereQuery struct {
	Lng      float64 `validate:"longitude"`
	Lat      float64 `validate:"latitude"`
	Distance float64 `validate:"gt=0"`
}

// propertyRequest is the body of PUT .../properties/{property}.
type propertyRequest struct {
	Value  any  `json:"value"`
	UseLog bool `json:"useLog"`
}

// idRequest validates a client supplied id.
type idRequest struct {
	ID string `validate:"required,identifier"`
}

// floatParams parses the named query parameters. It returns the first
// parameter that is missing or not a number.
func floatParams(r *http.Request, names ...string) ([]float64, string) {
	q := r.URL.Query()
	out := make([]float64, len(names))
	for i, name := range names {
		v, err := strconv.ParseFloat(q.Get(name), 64)
		if err != nil {
			return nil, name
		}
		out[i] = v
	}
	return out, ""
}

// validID answers 400 and returns false when id is not a valid identifier.
func validID(w http.ResponseWriter, id string) bool {
	if verr := validation.ValidateStruct(&idRequest{ID: id}); verr != nil {
		respondValidation(w, verr)
		return false
	}
	return true
}
