// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Package shutdown implements the best-effort global state reset that runs
// on process termination.
package shutdown

import (
	"context"

	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/metrics"
)

// ResetStore is the slice of the storage layer the coordinator needs.
type ResetStore interface {
	ResetAllReactorStates(ctx context.Context) error
	DeactivateAllMekanismReactors(ctx context.Context) error
}

// Coordinator performs the termination-time cleanup: every stored reactor
// snapshot is overwritten with the default record and every mekanism record
// is deactivated. Not scoped to currently-connected sessions.
type Coordinator struct {
	store ResetStore
}

// NewCoordinator creates a shutdown coordinator over the given store.
func NewCoordinator(store ResetStore) *Coordinator {
	return &Coordinator{store: store}
}

// Run executes the bulk reset. Fire and forget: failures are logged, never
// retried, and do not change the exit path. The first error is returned for
// visibility only.
func (c *Coordinator) Run(ctx context.Context) error {
	logging.Info().Msg("resetting stored reactor state before exit")

	var first error
	if err := c.store.ResetAllReactorStates(ctx); err != nil {
		logging.Error().Err(err).Msg("failed to reset reactor states")
		first = err
	}
	if err := c.store.DeactivateAllMekanismReactors(ctx); err != nil {
		logging.Error().Err(err).Msg("failed to deactivate mekanism reactors")
		if first == nil {
			first = err
		}
	}

	if first == nil {
		metrics.StateResets.WithLabelValues("shutdown").Inc()
		logging.Info().Msg("stored reactor state reset")
	}
	return first
}
