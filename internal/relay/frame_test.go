// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package relay

import "testing"

func TestParseFrame(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want FrameKind
	}{
		{"telemetry", `{"data": {"fuelTemperature": 500}}`, KindTelemetry},
		{"identity", `{"data": {"device": {"id": 3}}}`, KindIdentity},
		{"heartbeat no data", `{}`, KindHeartbeat},
		{"heartbeat null data", `{"data": null}`, KindHeartbeat},
		{"malformed json", `{not json`, KindMalformed},
		{"malformed data shape", `{"data": 7}`, KindMalformed},
		{"empty body", ``, KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := ParseFrame([]byte(tt.raw))
			if frame.Kind != tt.want {
				t.Errorf("ParseFrame(%q).Kind = %v, want %v", tt.raw, frame.Kind, tt.want)
			}
			if string(frame.Raw) != tt.raw {
				t.Errorf("Raw bytes must be preserved verbatim, got %q", frame.Raw)
			}
			switch tt.want {
			case KindTelemetry, KindIdentity:
				if frame.Update == nil {
					t.Error("Update must be populated for parsed frames")
				}
			default:
				if frame.Update != nil {
					t.Errorf("Update must be nil for %v frames", tt.want)
				}
			}
		})
	}
}

func TestFrameKindString(t *testing.T) {
	tests := []struct {
		kind FrameKind
		want string
	}{
		{KindMalformed, "malformed"},
		{KindHeartbeat, "heartbeat"},
		{KindIdentity, "identity"},
		{KindTelemetry, "telemetry"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("%v.String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}
