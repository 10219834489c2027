// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package shutdown

import (
	"context"
	"errors"
	"testing"
)

type fakeResetStore struct {
	resetCalls      int
	deactivateCalls int
	resetErr        error
	deactivateErr   error
}

func (f *fakeResetStore) ResetAllReactorStates(_ context.Context) error {
	f.resetCalls++
	return f.resetErr
}

func (f *fakeResetStore) DeactivateAllMekanismReactors(_ context.Context) error {
	f.deactivateCalls++
	return f.deactivateErr
}

func TestCoordinatorResetsBothKinds(t *testing.T) {
	store := &fakeResetStore{}

	if err := NewCoordinator(store).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if store.resetCalls != 1 || store.deactivateCalls != 1 {
		t.Errorf("calls = (%d, %d), want (1, 1)", store.resetCalls, store.deactivateCalls)
	}
}

func TestCoordinatorContinuesPastFailures(t *testing.T) {
	resetErr := errors.New("reset failed")
	store := &fakeResetStore{resetErr: resetErr}

	err := NewCoordinator(store).Run(context.Background())
	if !errors.Is(err, resetErr) {
		t.Errorf("Run error = %v, want %v", err, resetErr)
	}
	// The mekanism deactivation must still run after the first failure.
	if store.deactivateCalls != 1 {
		t.Errorf("deactivate calls = %d, want 1", store.deactivateCalls)
	}
}

func TestCoordinatorReportsFirstError(t *testing.T) {
	deactivateErr := errors.New("deactivate failed")
	store := &fakeResetStore{deactivateErr: deactivateErr}

	if err := NewCoordinator(store).Run(context.Background()); !errors.Is(err, deactivateErr) {
		t.Errorf("Run error = %v, want %v", err, deactivateErr)
	}
}
