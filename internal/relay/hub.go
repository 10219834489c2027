// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Package relay implements the live side of Reactord: the channel registry
// (Hub) that fans frames out to every subscriber of a device channel, and
// the per-connection session that merges telemetry into storage and resets
// it on disconnect.
package relay

import (
	"context"
	"sort"
	"sync"

	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/metrics"
)

// ShutdownReason identifies why the hub is shutting down.
type ShutdownReason string

const (
	// ShutdownReasonContextCanceled is the normal graceful shutdown path.
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"

	// ShutdownReasonContextDeadline may indicate a hung shutdown.
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// publication is one frame addressed to a channel.
type publication struct {
	channel string
	payload []byte
}

// Hub is the process-local channel registry. Channels are keyed by
// "<type>-<deviceId>" and exist only while they have subscribers. Fan-out
// is best-effort per subscriber: a subscriber whose buffer is full is
// dropped rather than allowed to stall the channel.
//
// The hub is owned by whoever calls Run; all registry mutations funnel
// through its channels or the internal mutex, so concurrent subscribe,
// unsubscribe, and publish are safe.
type Hub struct {
	channels  map[string]map[*Client]bool
	broadcast chan publication

	Register   chan *Client
	Unregister chan *Client

	mu sync.RWMutex
}

// NewHub creates an empty hub. Call Run (typically under a supervisor) to
// start processing.
func NewHub() *Hub {
	return &Hub{
		channels:   make(map[string]map[*Client]bool),
		broadcast:  make(chan publication, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// Publish enqueues a frame for delivery to every current subscriber of the
// channel, including the publisher. Delivery order matches publish order
// within one channel.
func (h *Hub) Publish(channel string, payload []byte) {
	h.broadcast <- publication{channel: channel, payload: payload}
}

// SubscriberCount returns the number of live subscribers of a channel.
func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

// SessionCount returns the number of live subscribers across all channels.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sessionCountLocked()
}

// ChannelCount returns the number of non-empty channels.
func (h *Hub) ChannelCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels)
}

// Run processes registrations and broadcasts until ctx is canceled, then
// closes every remaining subscriber and returns ctx.Err(). Designed for
// suture supervision.
//
// Priority-based selection keeps behavior predictable when multiple
// channels are ready: shutdown first, then lifecycle events, then
// broadcasts. Go's select picks randomly among ready cases; the staged
// selects below remove that nondeterminism.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.subscribe(client)
			continue
		case client := <-h.Unregister:
			h.unsubscribe(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.logGracefulShutdown(ctx)
			return ctx.Err()

		case client := <-h.Register:
			h.subscribe(client)

		case client := <-h.Unregister:
			h.unsubscribe(client)

		case pub := <-h.broadcast:
			h.fanOut(pub)
		}
	}
}

// subscribe adds a client to its channel, creating the channel lazily.
func (h *Hub) subscribe(client *Client) {
	h.mu.Lock()
	members, ok := h.channels[client.channel]
	if !ok {
		members = make(map[*Client]bool)
		h.channels[client.channel] = members
	}
	members[client] = true
	total := h.sessionCountLocked()
	channels := len(h.channels)
	h.mu.Unlock()

	metrics.SessionsActive.Set(float64(total))
	metrics.ChannelsActive.Set(float64(channels))
	logging.Info().
		Str("channel", client.channel).
		Int("subscribers", len(members)).
		Msg("session subscribed")
}

// unsubscribe removes a client from its channel. Removing a non-member or
// a member of a non-existent channel is a no-op; empty channels are
// discarded.
func (h *Hub) unsubscribe(client *Client) {
	h.mu.Lock()
	members, ok := h.channels[client.channel]
	if ok {
		if _, member := members[client]; member {
			delete(members, client)
			close(client.send)
		}
		if len(members) == 0 {
			delete(h.channels, client.channel)
		}
	}
	total := h.sessionCountLocked()
	channels := len(h.channels)
	h.mu.Unlock()

	metrics.SessionsActive.Set(float64(total))
	metrics.ChannelsActive.Set(float64(channels))
	logging.Info().
		Str("channel", client.channel).
		Msg("session unsubscribed")
}

// fanOut delivers one publication to every subscriber of its channel in a
// deterministic order. Subscribers with a full send buffer are dropped from
// the channel; a stalled observer must not hold up the device feed.
func (h *Hub) fanOut(pub publication) {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.channels[pub.channel]
	if len(members) == 0 {
		return
	}

	clients := make([]*Client, 0, len(members))
	for client := range members {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var toRemove []*Client
	for _, client := range clients {
		select {
		case client.send <- pub.payload:
		default:
			toRemove = append(toRemove, client)
		}
	}

	for _, client := range toRemove {
		close(client.send)
		delete(members, client)
		logging.Warn().
			Str("channel", pub.channel).
			Msg("dropping slow subscriber")
	}
	if len(members) == 0 {
		delete(h.channels, pub.channel)
	}

	metrics.FramesBroadcast.Inc()
}

// sessionCountLocked counts all subscribers across channels (mu held).
func (h *Hub) sessionCountLocked() int {
	total := 0
	for _, members := range h.channels {
		total += len(members)
	}
	return total
}

// logGracefulShutdown closes all clients and logs structured shutdown info.
// ctx.Err() is deliberately not logged as an error; cancellation is the
// expected shutdown path.
func (h *Hub) logGracefulShutdown(ctx context.Context) {
	h.mu.Lock()
	closed := 0
	for channel, members := range h.channels {
		for client := range members {
			close(client.send)
			closed++
		}
		delete(h.channels, channel)
	}
	h.mu.Unlock()

	metrics.SessionsActive.Set(0)
	metrics.ChannelsActive.Set(0)

	logging.Info().
		Str("component", "relay-hub").
		Str("reason", string(shutdownReason(ctx))).
		Int("sessions_closed", closed).
		Msg("relay hub stopped")
}

// shutdownReason maps the context error onto a ShutdownReason.
func shutdownReason(ctx context.Context) ShutdownReason {
	if ctx.Err() == context.DeadlineExceeded {
		return ShutdownReasonContextDeadline
	}
	return ShutdownReasonContextCanceled
}
