// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package store

import "errors"

var (
	// ErrReactorNotFound indicates no credential row matches the token.
	ErrReactorNotFound = errors.New("reactor not found")

	// ErrDeviceNotFound indicates no device row matches the identifier.
	ErrDeviceNotFound = errors.New("device not found")
)
