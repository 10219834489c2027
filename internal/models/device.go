// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Package models defines the persistent records and wire payloads shared by
// the store, the relay, and the API: devices, reactor state snapshots, and
// the partial telemetry updates merged into them.
package models

import "time"

// Supported device type tags. The handshake rejects anything else.
const (
	DeviceTypeBiggerReactor = "BiggerReactors_Reactor"
	DeviceTypeMekanism      = "mekanism-reactor"
)

// AllowedDeviceTypes is the fixed allow-list checked during the handshake.
var AllowedDeviceTypes = []string{
	DeviceTypeMekanism,
	DeviceTypeBiggerReactor,
}

// IsAllowedDeviceType reports whether the tag is in the allow-list.
func IsAllowedDeviceType(tag string) bool {
	for _, t := range AllowedDeviceTypes {
		if t == tag {
			return true
		}
	}
	return false
}

// Device is one registered physical unit. Rows are created once by the
// registration utility and never deleted by the relay; only the
// registered/connected flags are mutated at runtime.
type Device struct {
	ID         int64     `json:"id"`
	Identifier string    `json:"identifier"`
	Registered bool      `json:"registered"`
	Connected  bool      `json:"connected"`
	CreatedAt  time.Time `json:"createdAt"`
}

// ReactorRecord is a credential row joined with its device and current
// persisted state, as resolved from a bearer token.
type ReactorRecord struct {
	AccessToken string
	DeviceID    int64
	Device      Device
	State       BiggerReactorState
}
