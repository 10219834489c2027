// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package relay

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/metrics"
	"github.com/reactord/reactord/internal/models"
	"github.com/reactord/reactord/internal/store"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 512 * 1024

	// Budget for a single storage round trip inside the session loop.
	storeTimeout = 5 * time.Second
)

// clientIDCounter assigns monotonically increasing client IDs. Fan-out
// delivers to subscribers in ID order, so delivery order is stable.
var clientIDCounter atomic.Uint64

// TokenStore is the slice of the storage layer the session loop needs.
type TokenStore interface {
	ReactorByToken(ctx context.Context, token string) (*models.ReactorRecord, error)
	SaveReactorState(ctx context.Context, token string, state *models.BiggerReactorState) error
	SetDeviceConnected(ctx context.Context, deviceID int64, connected bool) error
}

// Session carries the identity established during the handshake.
type Session struct {
	// ID is a unique correlation id minted per accepted connection, used
	// only in logs.
	ID string

	// Token is the bearer token, empty for device types that are not
	// token-authenticated. An empty token disables persistence for the
	// whole session.
	Token string

	// DeviceID and Type are the parsed halves of the path segment.
	DeviceID string
	Type     string

	// PlannedRestart is set when the device announced a deliberate
	// restart. It suppresses the disconnect state reset so subscribers
	// do not see a spurious offline snapshot.
	PlannedRestart bool
}

// Client is one websocket session attached to a hub channel. Frames it
// publishes fan out to every subscriber of the channel, itself included.
type Client struct {
	id      uint64
	hub     *Hub
	conn    *websocket.Conn
	store   TokenStore
	session Session
	channel string
	send    chan []byte
}

// stateEnvelope wraps a full snapshot in the wire shape devices use, so the
// disconnect reset is indistinguishable from a device-sent frame.
type stateEnvelope struct {
	Data *models.BiggerReactorState `json:"data"`
}

// NewClient creates a session client for an upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, tokens TokenStore, session Session) *Client {
	return &Client{
		id:      clientIDCounter.Add(1),
		hub:     hub,
		conn:    conn,
		store:   tokens,
		session: session,
		channel: session.Type + "-" + session.DeviceID,
		send:    make(chan []byte, 256),
	}
}

// Channel returns the fan-out channel key this session is bound to.
func (c *Client) Channel() string {
	return c.channel
}

// Start registers the client and launches both pumps. It returns
// immediately; the session ends when the peer disconnects or the hub shuts
// down.
func (c *Client) Start() {
	c.hub.Register <- c
	go c.writePump()
	go c.readPump()
}

// readPump reads frames from the peer until the connection drops, then
// runs the disconnect reconciliation and unregisters. There is at most one
// reader per connection.
func (c *Client) readPump() {
	defer func() {
		c.reconcileDisconnect()
		c.hub.Unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logging.Warn().Err(err).
					Str("channel", c.channel).
					Msg("websocket read error")
			}
			return
		}
		c.handleFrame(raw)
	}
}

// writePump forwards fan-out payloads to the peer and keeps the connection
// alive with pings. There is at most one writer per connection.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame classifies one inbound frame, fans it out verbatim, and for
// authenticated telemetry merges it into the stored snapshot. Broadcast
// always happens before persistence so live subscribers are not held up by
// a slow write.
func (c *Client) handleFrame(raw []byte) {
	frame := ParseFrame(raw)
	metrics.RecordFrame(c.session.Type, frame.Kind.String())

	switch frame.Kind {
	case KindMalformed:
		metrics.FramesMalformed.Inc()
		logging.Warn().
			Str("channel", c.channel).
			Int("bytes", len(raw)).
			Msg("dropping malformed frame")
		return
	case KindHeartbeat:
		return
	}

	c.hub.Publish(c.channel, frame.Raw)

	if frame.Kind == KindIdentity {
		return
	}
	if c.session.Type != models.DeviceTypeBiggerReactor || c.session.Token == "" {
		return
	}
	c.persist(frame.Update)
}

// persist merges a partial update into the stored snapshot and writes the
// full record back. A token that no longer resolves ends the session; any
// other storage failure is logged and the session continues, so a transient
// database problem costs one write, not the connection.
func (c *Client) persist(update *models.BiggerReactorUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rec, err := c.store.ReactorByToken(ctx, c.session.Token)
	if err != nil {
		if errors.Is(err, store.ErrReactorNotFound) {
			logging.Warn().
				Str("channel", c.channel).
				Msg("token no longer resolves, closing session")
			c.conn.Close()
			return
		}
		logging.Error().Err(err).
			Str("channel", c.channel).
			Msg("failed to load reactor state")
		return
	}

	rec.State.Merge(update)

	if err := c.store.SaveReactorState(ctx, c.session.Token, &rec.State); err != nil {
		logging.Error().Err(err).
			Str("channel", c.channel).
			Msg("failed to save reactor state")
	}
}

// reconcileDisconnect restores the offline snapshot when an authenticated
// session ends without a planned-restart marker: subscribers get the
// default record, the device is flagged disconnected, and the stored state
// is reset. A planned restart keeps the stored state untouched.
func (c *Client) reconcileDisconnect() {
	if c.session.Type != models.DeviceTypeBiggerReactor || c.session.Token == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	rec, err := c.store.ReactorByToken(ctx, c.session.Token)
	if err != nil {
		if errors.Is(err, store.ErrReactorNotFound) {
			logging.Warn().
				Str("device_type", c.session.Type).
				Str("device_id", c.session.DeviceID).
				Msgf("%s #%s not found", c.session.Type, c.session.DeviceID)
			return
		}
		logging.Error().Err(err).
			Str("channel", c.channel).
			Msg("failed to resolve session on disconnect")
		return
	}

	if c.session.PlannedRestart {
		logging.Debug().
			Str("channel", c.channel).
			Msg("planned restart, keeping stored state")
		return
	}

	def := models.DefaultBiggerReactorState()
	if payload, merr := json.Marshal(stateEnvelope{Data: &def}); merr == nil {
		c.hub.Publish(c.channel, payload)
	}

	if err := c.store.SetDeviceConnected(ctx, rec.DeviceID, false); err != nil {
		logging.Error().Err(err).
			Str("channel", c.channel).
			Msg("failed to clear device connected flag")
	}
	if err := c.store.SaveReactorState(ctx, c.session.Token, &def); err != nil {
		logging.Error().Err(err).
			Str("channel", c.channel).
			Msg("failed to reset reactor state")
	}

	metrics.StateResets.WithLabelValues("disconnect").Inc()
	logging.Info().
		Str("session_id", c.session.ID).
		Str("channel", c.channel).
		Msg("session state reset on disconnect")
}
