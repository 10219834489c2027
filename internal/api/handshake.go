// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Package api provides HTTP routing and the websocket handshake that turns
// an inbound request into an authorized relay session.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/models"
	"github.com/reactord/reactord/internal/relay"
	"github.com/reactord/reactord/internal/store"
)

// Store is the slice of the storage layer the API needs: handshake identity
// resolution plus the session loop's persistence operations, which are
// handed to each accepted client.
type Store interface {
	relay.TokenStore
	SetDeviceFlags(ctx context.Context, deviceID int64, registered, connected bool) error
	Ping(ctx context.Context) error
}

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	hub       *relay.Hub
	db        Store
	upgrader  websocket.Upgrader
	startTime time.Time
}

// NewHandler creates the API handler set.
func NewHandler(hub *relay.Hub, db Store) *Handler {
	return &Handler{
		hub: hub,
		db:  db,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Devices are headless firmware clients with no Origin header.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		startTime: time.Now(),
	}
}

// identity is the parsed result of one handshake attempt.
type identity struct {
	Type     string
	DeviceID string
	Token    string
}

// Connect handles the device handshake: GET /{device} where the path
// segment is "<type>-<deviceId>". The bearer token arrives in the "token"
// header or query parameter; the optional "dc" query parameter marks a
// planned device-side restart.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	segment := chi.URLParam(r, "device")
	if segment == "" {
		rejectText(w, "missing_segment", "query params not found")
		return
	}

	token := r.Header.Get("token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	id, rejected := parseIdentity(w, segment, token)
	if rejected {
		return
	}

	if id.Token != "" && id.Type == models.DeviceTypeBiggerReactor {
		rec, err := h.db.ReactorByToken(r.Context(), id.Token)
		if err != nil {
			if errors.Is(err, store.ErrReactorNotFound) {
				rejectText(w, "token_not_found",
					fmt.Sprintf("%s #%s not found", id.Type, id.DeviceID))
				return
			}
			respondError(w, http.StatusInternalServerError, "STORE_ERROR",
				"failed to resolve device", err)
			return
		}

		// The token is authoritative for identity; the positional id in
		// the path is advisory only.
		id.DeviceID = strconv.FormatInt(rec.DeviceID, 10)

		if err := h.db.SetDeviceFlags(r.Context(), rec.DeviceID, true, true); err != nil {
			logging.Error().Err(err).
				Int64("device_id", rec.DeviceID).
				Msg("failed to mark device connected")
		}
	}

	plannedRestart := r.URL.Query().Get("dc") != ""

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote its own response.
		logging.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	sessionID := uuid.NewString()
	client := relay.NewClient(h.hub, conn, h.db, relay.Session{
		ID:             sessionID,
		Token:          id.Token,
		DeviceID:       id.DeviceID,
		Type:           id.Type,
		PlannedRestart: plannedRestart,
	})

	logging.Info().
		Str("session_id", sessionID).
		Str("channel", client.Channel()).
		Bool("authenticated", id.Token != "").
		Bool("planned_restart", plannedRestart).
		Msg("session accepted")

	client.Start()
}

// parseIdentity splits the path segment into type and device id and applies
// the allow-list. The type tag may itself contain the separator
// ("mekanism-reactor-5"), so the split is on the last separator, not the
// first. Returns rejected=true after writing the rejection body.
func parseIdentity(w http.ResponseWriter, segment, token string) (identity, bool) {
	sep := strings.LastIndex(segment, "-")
	if token == "" && sep < 0 {
		rejectText(w, "segment_too_short",
			"There was an error parsing query params (too short)")
		return identity{}, true
	}

	id := identity{Token: token}
	if sep >= 0 {
		id.Type = segment[:sep]
		id.DeviceID = segment[sep+1:]
	} else {
		id.Type = segment
	}

	if id.Type == "" {
		rejectText(w, "missing_type", "header type is required")
		return identity{}, true
	}
	if !models.IsAllowedDeviceType(id.Type) {
		rejectText(w, "unknown_type", "device type not found")
		return identity{}, true
	}

	// Without a token the positional id is the whole identity; it must be
	// present and numeric. A malformed id must never become a channel key.
	if token == "" {
		if id.DeviceID == "" {
			rejectText(w, "missing_device_id", "device id is required")
			return identity{}, true
		}
		if _, err := strconv.Atoi(id.DeviceID); err != nil {
			rejectText(w, "unparseable_device_id", "device id is required")
			return identity{}, true
		}
	}

	return id, false
}
