// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package relay

import (
	"github.com/goccy/go-json"

	"github.com/reactord/reactord/internal/models"
)

// FrameKind classifies one inbound websocket frame.
type FrameKind int

const (
	// KindMalformed marks frames that failed to parse. They are logged and
	// dropped, never broadcast or persisted.
	KindMalformed FrameKind = iota

	// KindHeartbeat marks frames whose envelope carries no data payload.
	KindHeartbeat

	// KindIdentity marks frames carrying device metadata. Identity frames
	// are broadcast verbatim but never merged into stored state.
	KindIdentity

	// KindTelemetry marks frames carrying a partial state update.
	KindTelemetry
)

// String returns the metric label for the kind.
func (k FrameKind) String() string {
	switch k {
	case KindHeartbeat:
		return "heartbeat"
	case KindIdentity:
		return "identity"
	case KindTelemetry:
		return "telemetry"
	default:
		return "malformed"
	}
}

// frameEnvelope is the outer wire shape every device frame shares.
type frameEnvelope struct {
	Data *models.BiggerReactorUpdate `json:"data"`
}

// Frame is one parsed inbound frame. Raw always holds the original bytes;
// Update is non-nil only for identity and telemetry frames.
type Frame struct {
	Kind   FrameKind
	Update *models.BiggerReactorUpdate
	Raw    []byte
}

// ParseFrame classifies a raw frame without losing the original bytes.
// Broadcast re-sends Raw verbatim, so subscribers see exactly what the
// device sent regardless of which fields the relay understands.
func ParseFrame(raw []byte) Frame {
	var env frameEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Frame{Kind: KindMalformed, Raw: raw}
	}
	if env.Data == nil {
		return Frame{Kind: KindHeartbeat, Raw: raw}
	}
	if env.Data.IsIdentity() {
		return Frame{Kind: KindIdentity, Update: env.Data, Raw: raw}
	}
	return Frame{Kind: KindTelemetry, Update: env.Data, Raw: raw}
}
