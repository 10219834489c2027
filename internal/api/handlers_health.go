// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package api

import (
	"net/http"
	"time"

	"github.com/reactord/reactord/internal/models"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Health returns overall service health including database connectivity and
// live session counts.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	dbConnected := h.db != nil && h.db.Ping(r.Context()) == nil

	status := "healthy"
	if !dbConnected {
		status = "degraded"
	}

	health := models.HealthStatus{
		Status:            status,
		Version:           Version,
		DatabaseConnected: dbConnected,
		SessionsActive:    h.hub.SessionCount(),
		ChannelsActive:    h.hub.ChannelCount(),
		Uptime:            time.Since(h.startTime).Seconds(),
	}

	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status:   "success",
		Data:     health,
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthLive handles liveness probe requests (Kubernetes-style).
// Returns 200 OK if the process is alive, regardless of dependencies.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"alive":  true,
			"uptime": time.Since(h.startTime).Seconds(),
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}

// HealthReady handles readiness probe requests (Kubernetes-style).
// Returns 200 only when the database answers; 503 otherwise.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ready := h.db != nil && h.db.Ping(r.Context()) == nil

	statusCode := http.StatusOK
	status := "ready"
	if !ready {
		statusCode = http.StatusServiceUnavailable
		status = "not_ready"
	}

	respondJSON(w, statusCode, &models.APIResponse{
		Status: "success",
		Data: map[string]interface{}{
			"ready":  ready,
			"status": status,
		},
		Metadata: models.Metadata{Timestamp: time.Now()},
	})
}
