// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/reactord/reactord/internal/models"
)

// startHub runs a hub until the test ends.
func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func testClient(hub *Hub, deviceID string) *Client {
	return NewClient(hub, nil, nil, Session{
		Type:     models.DeviceTypeBiggerReactor,
		DeviceID: deviceID,
	})
}

// waitFor polls until cond is true or the deadline passes.
func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal(msg)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func recvPayload(t *testing.T, c *Client) string {
	t.Helper()
	select {
	case payload, ok := <-c.send:
		if !ok {
			t.Fatal("send channel closed unexpectedly")
		}
		return string(payload)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return ""
	}
}

func TestHubFanOutIncludesSender(t *testing.T) {
	hub := startHub(t)

	producer := testClient(hub, "1")
	observer := testClient(hub, "1")
	other := testClient(hub, "2")

	for _, c := range []*Client{producer, observer, other} {
		hub.Register <- c
	}
	waitFor(t, func() bool { return hub.SubscriberCount(producer.channel) == 2 },
		"subscribers did not register")

	hub.Publish(producer.channel, []byte(`{"data":{"fuel":1}}`))

	if got := recvPayload(t, producer); got != `{"data":{"fuel":1}}` {
		t.Errorf("producer echo = %q", got)
	}
	if got := recvPayload(t, observer); got != `{"data":{"fuel":1}}` {
		t.Errorf("observer payload = %q", got)
	}

	// The other channel must stay silent.
	select {
	case payload := <-other.send:
		t.Errorf("unrelated channel received %q", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublishOrderPreserved(t *testing.T) {
	hub := startHub(t)

	observer := testClient(hub, "1")
	hub.Register <- observer
	waitFor(t, func() bool { return hub.SubscriberCount(observer.channel) == 1 },
		"subscriber did not register")

	payloads := []string{`{"data":{"n":1}}`, `{"data":{"n":2}}`, `{"data":{"n":3}}`}
	for _, p := range payloads {
		hub.Publish(observer.channel, []byte(p))
	}

	for i, want := range payloads {
		if got := recvPayload(t, observer); got != want {
			t.Errorf("payload %d = %q, want %q", i, got, want)
		}
	}
}

func TestHubUnsubscribeIdempotent(t *testing.T) {
	hub := startHub(t)

	client := testClient(hub, "1")
	hub.Register <- client
	waitFor(t, func() bool { return hub.SubscriberCount(client.channel) == 1 },
		"subscriber did not register")

	hub.Unregister <- client
	waitFor(t, func() bool { return hub.SubscriberCount(client.channel) == 0 },
		"subscriber did not unregister")

	// Removing again, and removing a never-registered client, must both be
	// harmless no-ops.
	hub.Unregister <- client
	stranger := testClient(hub, "99")
	hub.Unregister <- stranger

	waitFor(t, func() bool { return hub.ChannelCount() == 0 },
		"empty channels were not discarded")
}

func TestHubEmptyChannelsAreDiscarded(t *testing.T) {
	hub := startHub(t)

	a := testClient(hub, "1")
	b := testClient(hub, "2")
	hub.Register <- a
	hub.Register <- b
	waitFor(t, func() bool { return hub.ChannelCount() == 2 }, "channels not created")

	hub.Unregister <- a
	waitFor(t, func() bool { return hub.ChannelCount() == 1 }, "empty channel survived")
	if hub.SessionCount() != 1 {
		t.Errorf("SessionCount() = %d, want 1", hub.SessionCount())
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	hub := NewHub()

	slow := testClient(hub, "1")
	slow.send = make(chan []byte) // no buffer, nobody reading

	hub.channels[slow.channel] = map[*Client]bool{slow: true}
	hub.fanOut(publication{channel: slow.channel, payload: []byte("x")})

	if hub.SubscriberCount(slow.channel) != 0 {
		t.Error("slow subscriber should have been dropped")
	}
	if _, ok := <-slow.send; ok {
		t.Error("dropped subscriber's send channel should be closed")
	}
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Run(ctx) }()

	client := testClient(hub, "1")
	hub.Register <- client

	cancel()
	if err := <-done; err != context.Canceled {
		t.Errorf("Run returned %v, want context.Canceled", err)
	}
	if _, ok := <-client.send; ok {
		t.Error("client send channel should be closed on shutdown")
	}
	if hub.SessionCount() != 0 {
		t.Errorf("SessionCount() after shutdown = %d, want 0", hub.SessionCount())
	}
}
