// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Package services adapts Reactord components to suture's Service
// interface.
package services

import (
	"context"
)

// ContextHub matches *relay.Hub's Run method without importing the relay
// package, keeping this wrapper free of domain dependencies.
type ContextHub interface {
	Run(ctx context.Context) error
}

// RelayHubService wraps the fan-out hub as a supervised service.
//
// The hub's Run method already implements the suture.Service pattern, so
// this wrapper only delegates and provides a name for logging.
type RelayHubService struct {
	hub  ContextHub
	name string
}

// NewRelayHubService creates a supervised wrapper around the hub.
func NewRelayHubService(hub ContextHub) *RelayHubService {
	return &RelayHubService{
		hub:  hub,
		name: "relay-hub",
	}
}

// Serve implements suture.Service. Returns ctx.Err() on normal shutdown.
func (s *RelayHubService) Serve(ctx context.Context) error {
	return s.hub.Run(ctx)
}

// String implements fmt.Stringer; suture uses it in log messages.
func (s *RelayHubService) String() string {
	return s.name
}
