// Layersync - Collaborative Map Layer Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/layersync

package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/layersync/internal/logging"
	"github.com/tomtom215/layersync/internal/models"
	"github.com/tomtom215/layersync/internal/validation"
)

// Error codes that do not come from a models.Result.
const (
	codeValidation = "VALIDATION_ERROR"
	codeBadRequest = "BAD_REQUEST"
	codeTimeout    = "TIMEOUT"
	codeInternal   = "INTERNAL_ERROR"
)

// sanitizeLogValue escapes control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r < 0x20 || r == 0x7F {
			fmt.Fprintf(&b, "\\x%02x", r)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, start time.Time, data any) {
	respondJSONStatus(w, http.StatusOK, start, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, start time.Time, data any) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

func respondError(w http.ResponseWriter, status int, code, message string, details map[string]any) {
	if status >= http.StatusInternalServerError {
		logging.Error().Str("code", code).Str("error", sanitizeLogValue(message)).Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error:    &models.APIError{Code: code, Message: message, Details: details},
	})
}

// respondResult writes data on success and the result code otherwise.
func respondResult(w http.ResponseWriter, start time.Time, res *models.CallbackResult, data func() any) {
	if !res.IsOK() {
		respondError(w, res.Result.HTTPStatus(), res.Result.String(), res.Error, nil)
		return
	}
	var payload any
	if data != nil {
		payload = data()
	}
	respondData(w, start, payload)
}

// respondErr maps an error returned by the manager to a response.
func respondErr(w http.ResponseWriter, err error) {
	var re *models.CodeError
	if errors.As(err, &re) {
		respondError(w, re.Code.HTTPStatus(), re.Code.String(), re.Message, nil)
		return
	}
	respondError(w, http.StatusInternalServerError, codeInternal, err.Error(), nil)
}

func respondValidation(w http.ResponseWriter, verr *validation.RequestValidationError) {
	apiErr := verr.ToAPIError()
	respondError(w, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
}

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 8 << 20

// decodeBody reads a JSON body into v, answering 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		respondError(w, http.StatusBadRequest, codeBadRequest, "invalid JSON body: "+err.Error(), nil)
		return false
	}
	return true
}
