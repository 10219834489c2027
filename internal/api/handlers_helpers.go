// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package api

import (
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/metrics"
	"github.com/reactord/reactord/internal/models"
)

// respondJSON sends a JSON response with proper headers.
func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

// respondError sends a structured error response on plain JSON endpoints.
func respondError(w http.ResponseWriter, status int, code, message string, err error) {
	if err != nil {
		logging.Error().Str("code", code).Err(err).Msg("API error")
	}

	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now()},
		Error: &models.APIError{
			Code:    code,
			Message: message,
		},
	})
}

// rejectText writes a handshake rejection. Rejections are plain text bodies
// with a 200 status; device firmware matches on the body text, not on the
// status code, so the body must stay byte-stable.
func rejectText(w http.ResponseWriter, reason, body string) {
	metrics.RecordRejection(reason)
	logging.Debug().Str("reason", reason).Msg(body)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte(body)); err != nil {
		logging.Error().Err(err).Msg("Failed to write rejection response")
	}
}
