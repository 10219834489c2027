// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/reactord/reactord/internal/models"
	"github.com/reactord/reactord/internal/relay"
	"github.com/reactord/reactord/internal/store"
)

// fakeStore is an in-memory Store for handshake tests.
type fakeStore struct {
	mu      sync.Mutex
	records map[string]models.ReactorRecord

	flagCalls []flagCall
	saved     []models.BiggerReactorState
}

type flagCall struct {
	deviceID   int64
	registered bool
	connected  bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: make(map[string]models.ReactorRecord)}
}

func (f *fakeStore) ReactorByToken(_ context.Context, token string) (*models.ReactorRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[token]
	if !ok {
		return nil, store.ErrReactorNotFound
	}
	cp := rec
	return &cp, nil
}

func (f *fakeStore) SaveReactorState(_ context.Context, token string, state *models.BiggerReactorState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, *state)
	rec := f.records[token]
	rec.State = *state
	f.records[token] = rec
	return nil
}

func (f *fakeStore) SetDeviceConnected(_ context.Context, deviceID int64, connected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagCalls = append(f.flagCalls, flagCall{deviceID: deviceID, connected: connected})
	return nil
}

func (f *fakeStore) SetDeviceFlags(_ context.Context, deviceID int64, registered, connected bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flagCalls = append(f.flagCalls, flagCall{deviceID: deviceID, registered: registered, connected: connected})
	return nil
}

func (f *fakeStore) Ping(_ context.Context) error { return nil }

func (f *fakeStore) flags() []flagCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]flagCall, len(f.flagCalls))
	copy(out, f.flagCalls)
	return out
}

// newTestServer wires a running hub, the fake store, and the full router.
func newTestServer(t *testing.T, db *fakeStore) *httptest.Server {
	t.Helper()

	hub := relay.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = hub.Run(ctx)
	}()

	router := NewRouter(NewHandler(hub, db), NewChiMiddleware(nil))
	srv := httptest.NewServer(router.Setup())

	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return srv
}

func TestHandshakeRejections(t *testing.T) {
	db := newFakeStore()
	srv := newTestServer(t, db)

	tests := []struct {
		name string
		path string
		want string
	}{
		{"unknown type", "/unknown-device-3", "device type not found"},
		{"no separator without token", "/mekanism", "There was an error parsing query params (too short)"},
		{"unparseable device id", "/mekanism-reactor-abc", "device id is required"},
		{"missing device id", "/mekanism-reactor-", "device id is required"},
		{"unresolvable token", "/BiggerReactors_Reactor-7?token=nope", "BiggerReactors_Reactor #7 not found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s: %v", tt.path, err)
			}
			defer resp.Body.Close()

			body, _ := io.ReadAll(resp.Body)
			if string(body) != tt.want {
				t.Errorf("body = %q, want %q", body, tt.want)
			}
		})
	}

	if calls := db.flags(); len(calls) != 0 {
		t.Errorf("rejected handshakes must not touch device flags: %v", calls)
	}
}

func TestHandshakeAcceptAndEcho(t *testing.T) {
	db := newFakeStore()
	db.records["tok-1"] = models.ReactorRecord{
		AccessToken: "tok-1",
		DeviceID:    7,
		State:       models.DefaultBiggerReactorState(),
	}
	srv := newTestServer(t, db)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/BiggerReactors_Reactor-0?token=tok-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// The handshake re-asserts registered+connected from the token, not
	// the positional id.
	calls := db.flags()
	if len(calls) != 1 || calls[0].deviceID != 7 || !calls[0].registered || !calls[0].connected {
		t.Fatalf("flag calls = %v, want one (7, true, true)", calls)
	}

	// The session is subscribed to its own channel, so a published frame
	// echoes back to the sender.
	frame := `{"data":{"fuelTemperature":650}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, echoed, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read echo: %v", err)
	}
	if string(echoed) != frame {
		t.Errorf("echo = %q, want %q", echoed, frame)
	}
}

func TestDisconnectContextSuppressesReset(t *testing.T) {
	db := newFakeStore()
	db.records["tok-1"] = models.ReactorRecord{
		AccessToken: "tok-1",
		DeviceID:    7,
		State:       models.DefaultBiggerReactorState(),
	}
	srv := newTestServer(t, db)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/BiggerReactors_Reactor-0?token=tok-1&dc=1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	// Give the read pump time to observe the close and reconcile.
	time.Sleep(200 * time.Millisecond)

	db.mu.Lock()
	saves := len(db.saved)
	db.mu.Unlock()
	if saves != 0 {
		t.Errorf("planned restart wrote %d state resets, want 0", saves)
	}
	for _, call := range db.flags() {
		if !call.connected {
			t.Errorf("planned restart must not mark the device disconnected: %v", call)
		}
	}
}

func TestDisconnectResetsStoredState(t *testing.T) {
	db := newFakeStore()
	rec := models.ReactorRecord{
		AccessToken: "tok-1",
		DeviceID:    7,
	}
	rec.State = models.DefaultBiggerReactorState()
	rec.State.Active = true
	db.records["tok-1"] = rec
	srv := newTestServer(t, db)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/BiggerReactors_Reactor-0?token=tok-1"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for {
		db.mu.Lock()
		saves := len(db.saved)
		db.mu.Unlock()
		if saves > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("disconnect never wrote the default state")
		}
		time.Sleep(10 * time.Millisecond)
	}

	db.mu.Lock()
	saved := db.saved[len(db.saved)-1]
	db.mu.Unlock()
	if saved.Active || saved.Type != "none" {
		t.Errorf("persisted state after disconnect = %+v, want the default record", saved)
	}
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t, newFakeStore())

	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready", "/api/v1/health/"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, resp.StatusCode)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("GET %s content type = %q", path, ct)
		}
	}
}
