// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package models

import (
	"github.com/goccy/go-json"
)

// ControlRodMap holds nested per-rod telemetry keyed by rod identifier.
// Rod payloads are kept opaque; merging replaces whole entries by key,
// one level deep.
type ControlRodMap map[string]json.RawMessage

// BiggerReactorState is the full telemetry snapshot for one
// BiggerReactors_Reactor device. Field names follow the device-side wire
// format exactly.
type BiggerReactorState struct {
	Active                  bool          `json:"active"`
	AmbientTemperature      float64       `json:"ambientTemperature"`
	APIVersion              *string       `json:"apiVersion"`
	BurnedLastTick          float64       `json:"burnedLastTick"`
	Capacity                float64       `json:"capacity"`
	CasingTemperature       float64       `json:"casingTemperature"`
	ColdFluidAmount         float64       `json:"coldFluidAmount"`
	Connected               bool          `json:"connected"`
	ControlRodCount         int           `json:"controlRodCount"`
	CoolantCapacity         float64       `json:"coolantCapacity"`
	Fuel                    float64       `json:"fuel"`
	FuelCapacity            float64       `json:"fuelCapacity"`
	FuelReactivity          float64       `json:"fuelReactivity"`
	FuelTemperature         float64       `json:"fuelTemperature"`
	HotFluidAmount          float64       `json:"hotFluidAmount"`
	MaxTransitionedLastTick float64       `json:"maxTransitionedLastTick"`
	ProducedLastTick        float64       `json:"producedLastTick"`
	StackTemperature        float64       `json:"stackTemperature"`
	Stored                  float64       `json:"stored"`
	TotalReactant           float64       `json:"totalReactant"`
	TransitionedLastTick    float64       `json:"transitionedLastTick"`
	Type                    string        `json:"type"`
	WasteCapacity           float64       `json:"wasteCapacity"`
	ControlRodData          ControlRodMap `json:"controlRodData"`
}

// DefaultBiggerReactorState returns the all-zero "offline" snapshot. It is
// persisted and broadcast whenever a session ends without a planned-restart
// marker, and bulk-written to every record at shutdown.
func DefaultBiggerReactorState() BiggerReactorState {
	return BiggerReactorState{Type: "none"}
}

// BiggerReactorUpdate is a partial telemetry update. Every field is a
// pointer so an absent field can be told apart from a zero value: absent
// fields keep their previously stored value when merged.
type BiggerReactorUpdate struct {
	Active                  *bool         `json:"active,omitempty"`
	AmbientTemperature      *float64      `json:"ambientTemperature,omitempty"`
	APIVersion              *string       `json:"apiVersion,omitempty"`
	BurnedLastTick          *float64      `json:"burnedLastTick,omitempty"`
	Capacity                *float64      `json:"capacity,omitempty"`
	CasingTemperature       *float64      `json:"casingTemperature,omitempty"`
	ColdFluidAmount         *float64      `json:"coldFluidAmount,omitempty"`
	Connected               *bool         `json:"connected,omitempty"`
	ControlRodCount         *int          `json:"controlRodCount,omitempty"`
	CoolantCapacity         *float64      `json:"coolantCapacity,omitempty"`
	Fuel                    *float64      `json:"fuel,omitempty"`
	FuelCapacity            *float64      `json:"fuelCapacity,omitempty"`
	FuelReactivity          *float64      `json:"fuelReactivity,omitempty"`
	FuelTemperature         *float64      `json:"fuelTemperature,omitempty"`
	HotFluidAmount          *float64      `json:"hotFluidAmount,omitempty"`
	MaxTransitionedLastTick *float64      `json:"maxTransitionedLastTick,omitempty"`
	ProducedLastTick        *float64      `json:"producedLastTick,omitempty"`
	StackTemperature        *float64      `json:"stackTemperature,omitempty"`
	Stored                  *float64      `json:"stored,omitempty"`
	TotalReactant           *float64      `json:"totalReactant,omitempty"`
	TransitionedLastTick    *float64      `json:"transitionedLastTick,omitempty"`
	Type                    *string       `json:"type,omitempty"`
	WasteCapacity           *float64      `json:"wasteCapacity,omitempty"`
	ControlRodData          ControlRodMap `json:"controlRodData,omitempty"`

	// Device marks an identity/metadata frame. Such frames are broadcast
	// but never persisted.
	Device json.RawMessage `json:"device,omitempty"`
}

// IsIdentity reports whether the update describes device metadata rather
// than telemetry.
func (u *BiggerReactorUpdate) IsIdentity() bool {
	return len(u.Device) > 0
}

// Merge applies the update onto the stored state. Fields absent from the
// update survive; the control rod map is merged one level deep (incoming
// rod keys override, all other stored rods survive).
func (s *BiggerReactorState) Merge(u *BiggerReactorUpdate) {
	if u == nil {
		return
	}

	if u.Active != nil {
		s.Active = *u.Active
	}
	if u.AmbientTemperature != nil {
		s.AmbientTemperature = *u.AmbientTemperature
	}
	if u.APIVersion != nil {
		s.APIVersion = u.APIVersion
	}
	if u.BurnedLastTick != nil {
		s.BurnedLastTick = *u.BurnedLastTick
	}
	if u.Capacity != nil {
		s.Capacity = *u.Capacity
	}
	if u.CasingTemperature != nil {
		s.CasingTemperature = *u.CasingTemperature
	}
	if u.ColdFluidAmount != nil {
		s.ColdFluidAmount = *u.ColdFluidAmount
	}
	if u.Connected != nil {
		s.Connected = *u.Connected
	}
	if u.ControlRodCount != nil {
		s.ControlRodCount = *u.ControlRodCount
	}
	if u.CoolantCapacity != nil {
		s.CoolantCapacity = *u.CoolantCapacity
	}
	if u.Fuel != nil {
		s.Fuel = *u.Fuel
	}
	if u.FuelCapacity != nil {
		s.FuelCapacity = *u.FuelCapacity
	}
	if u.FuelReactivity != nil {
		s.FuelReactivity = *u.FuelReactivity
	}
	if u.FuelTemperature != nil {
		s.FuelTemperature = *u.FuelTemperature
	}
	if u.HotFluidAmount != nil {
		s.HotFluidAmount = *u.HotFluidAmount
	}
	if u.MaxTransitionedLastTick != nil {
		s.MaxTransitionedLastTick = *u.MaxTransitionedLastTick
	}
	if u.ProducedLastTick != nil {
		s.ProducedLastTick = *u.ProducedLastTick
	}
	if u.StackTemperature != nil {
		s.StackTemperature = *u.StackTemperature
	}
	if u.Stored != nil {
		s.Stored = *u.Stored
	}
	if u.TotalReactant != nil {
		s.TotalReactant = *u.TotalReactant
	}
	if u.TransitionedLastTick != nil {
		s.TransitionedLastTick = *u.TransitionedLastTick
	}
	if u.Type != nil {
		s.Type = *u.Type
	}
	if u.WasteCapacity != nil {
		s.WasteCapacity = *u.WasteCapacity
	}

	s.ControlRodData = MergeControlRods(s.ControlRodData, u.ControlRodData)
}

// MergeControlRods overlays incoming rod entries onto stored ones. Stored
// keys absent from incoming survive; incoming keys always win. Returns nil
// when both maps are empty so an untouched record stays NULL in storage.
func MergeControlRods(stored, incoming ControlRodMap) ControlRodMap {
	if len(stored) == 0 && len(incoming) == 0 {
		return nil
	}

	merged := make(ControlRodMap, len(stored)+len(incoming))
	for k, v := range stored {
		merged[k] = v
	}
	for k, v := range incoming {
		merged[k] = v
	}
	return merged
}
