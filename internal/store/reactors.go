// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/metrics"
	"github.com/reactord/reactord/internal/models"
)

// reactorStateColumns is the column list written by every full-record state
// write. Order must match stateArgs.
const reactorStateColumns = `active = ?, ambient_temperature = ?, api_version = ?,
	burned_last_tick = ?, capacity = ?, casing_temperature = ?, cold_fluid_amount = ?,
	connected = ?, control_rod_count = ?, coolant_capacity = ?, fuel = ?,
	fuel_capacity = ?, fuel_reactivity = ?, fuel_temperature = ?, hot_fluid_amount = ?,
	max_transitioned_last_tick = ?, produced_last_tick = ?, stack_temperature = ?,
	stored = ?, total_reactant = ?, transitioned_last_tick = ?, reactor_type = ?,
	waste_capacity = ?, control_rod_data = ?`

// stateArgs flattens a state snapshot into the bind order of
// reactorStateColumns.
func stateArgs(state *models.BiggerReactorState) ([]interface{}, error) {
	var rodData interface{}
	if len(state.ControlRodData) > 0 {
		raw, err := json.Marshal(state.ControlRodData)
		if err != nil {
			return nil, fmt.Errorf("failed to encode control rod data: %w", err)
		}
		rodData = string(raw)
	}

	var apiVersion interface{}
	if state.APIVersion != nil {
		apiVersion = *state.APIVersion
	}

	return []interface{}{
		state.Active, state.AmbientTemperature, apiVersion,
		state.BurnedLastTick, state.Capacity, state.CasingTemperature, state.ColdFluidAmount,
		state.Connected, state.ControlRodCount, state.CoolantCapacity, state.Fuel,
		state.FuelCapacity, state.FuelReactivity, state.FuelTemperature, state.HotFluidAmount,
		state.MaxTransitionedLastTick, state.ProducedLastTick, state.StackTemperature,
		state.Stored, state.TotalReactant, state.TransitionedLastTick, state.Type,
		state.WasteCapacity, rodData,
	}, nil
}

// ReactorByToken resolves a bearer token to its credential row, device, and
// current persisted state. Returns ErrReactorNotFound for unknown tokens.
func (db *DB) ReactorByToken(ctx context.Context, token string) (rec *models.ReactorRecord, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "bigger_reactors", start, err) }()

	query := `SELECT r.access_token, r.device_id,
		d.identifier, d.registered, d.connected, d.created_at,
		r.active, r.ambient_temperature, r.api_version, r.burned_last_tick,
		r.capacity, r.casing_temperature, r.cold_fluid_amount, r.connected,
		r.control_rod_count, r.coolant_capacity, r.fuel, r.fuel_capacity,
		r.fuel_reactivity, r.fuel_temperature, r.hot_fluid_amount,
		r.max_transitioned_last_tick, r.produced_last_tick, r.stack_temperature,
		r.stored, r.total_reactant, r.transitioned_last_tick, r.reactor_type,
		r.waste_capacity, r.control_rod_data
	FROM bigger_reactors r
	JOIN devices d ON d.id = r.device_id
	WHERE r.access_token = ?`

	rec = &models.ReactorRecord{}
	var apiVersion, rodData sql.NullString

	row := db.conn.QueryRowContext(ctx, query, token)
	scanErr := row.Scan(
		&rec.AccessToken, &rec.DeviceID,
		&rec.Device.Identifier, &rec.Device.Registered, &rec.Device.Connected, &rec.Device.CreatedAt,
		&rec.State.Active, &rec.State.AmbientTemperature, &apiVersion, &rec.State.BurnedLastTick,
		&rec.State.Capacity, &rec.State.CasingTemperature, &rec.State.ColdFluidAmount, &rec.State.Connected,
		&rec.State.ControlRodCount, &rec.State.CoolantCapacity, &rec.State.Fuel, &rec.State.FuelCapacity,
		&rec.State.FuelReactivity, &rec.State.FuelTemperature, &rec.State.HotFluidAmount,
		&rec.State.MaxTransitionedLastTick, &rec.State.ProducedLastTick, &rec.State.StackTemperature,
		&rec.State.Stored, &rec.State.TotalReactant, &rec.State.TransitionedLastTick, &rec.State.Type,
		&rec.State.WasteCapacity, &rodData,
	)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = ErrReactorNotFound
			return nil, err
		}
		err = fmt.Errorf("failed to query reactor by token: %w", scanErr)
		return nil, err
	}

	rec.Device.ID = rec.DeviceID
	if apiVersion.Valid {
		rec.State.APIVersion = &apiVersion.String
	}
	if rodData.Valid && rodData.String != "" {
		if uerr := json.Unmarshal([]byte(rodData.String), &rec.State.ControlRodData); uerr != nil {
			// A corrupt rod blob should not take the whole record down;
			// the next full-record write repairs it.
			logging.Warn().Err(uerr).Msg("discarding unreadable control rod data")
			rec.State.ControlRodData = nil
		}
	}

	return rec, nil
}

// SaveReactorState writes the full state snapshot for the given token.
func (db *DB) SaveReactorState(ctx context.Context, token string, state *models.BiggerReactorState) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "bigger_reactors", start, err) }()

	args, err := stateArgs(state)
	if err != nil {
		return err
	}
	args = append(args, token)

	res, execErr := db.conn.ExecContext(ctx,
		`UPDATE bigger_reactors SET `+reactorStateColumns+` WHERE access_token = ?`, args...)
	if execErr != nil {
		err = fmt.Errorf("failed to save reactor state: %w", execErr)
		return err
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = ErrReactorNotFound
		return err
	}
	return nil
}

// SetDeviceFlags updates the registered/connected flags of one device.
// Repeated calls with the same values are harmless; the handshake relies on
// that for re-registration.
func (db *DB) SetDeviceFlags(ctx context.Context, deviceID int64, registered, connected bool) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "devices", start, err) }()

	_, execErr := db.conn.ExecContext(ctx,
		`UPDATE devices SET registered = ?, connected = ? WHERE id = ?`,
		registered, connected, deviceID)
	if execErr != nil {
		err = fmt.Errorf("failed to update device flags: %w", execErr)
	}
	return err
}

// SetDeviceConnected updates only the connected flag of one device.
func (db *DB) SetDeviceConnected(ctx context.Context, deviceID int64, connected bool) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "devices", start, err) }()

	_, execErr := db.conn.ExecContext(ctx,
		`UPDATE devices SET connected = ? WHERE id = ?`, connected, deviceID)
	if execErr != nil {
		err = fmt.Errorf("failed to update device connected flag: %w", execErr)
	}
	return err
}

// ResetAllReactorStates overwrites every stored reactor state with the
// default record. Used by the shutdown coordinator; not scoped to
// currently-connected sessions.
func (db *DB) ResetAllReactorStates(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "bigger_reactors", start, err) }()

	def := models.DefaultBiggerReactorState()
	args, err := stateArgs(&def)
	if err != nil {
		return err
	}

	_, execErr := db.conn.ExecContext(ctx,
		`UPDATE bigger_reactors SET `+reactorStateColumns, args...)
	if execErr != nil {
		err = fmt.Errorf("failed to reset reactor states: %w", execErr)
	}
	return err
}

// DeactivateAllMekanismReactors clears the active flag on every mekanism
// record. Mekanism devices have no nested state; clearing the flag is their
// whole reset.
func (db *DB) DeactivateAllMekanismReactors(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("update", "mekanism_reactors", start, err) }()

	_, execErr := db.conn.ExecContext(ctx, `UPDATE mekanism_reactors SET active = false`)
	if execErr != nil {
		err = fmt.Errorf("failed to deactivate mekanism reactors: %w", execErr)
	}
	return err
}

// RegisterDevice inserts a new device row and returns it.
func (db *DB) RegisterDevice(ctx context.Context, identifier string) (dev *models.Device, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "devices", start, err) }()

	dev = &models.Device{Identifier: identifier}
	row := db.conn.QueryRowContext(ctx,
		`INSERT INTO devices (identifier) VALUES (?) RETURNING id, registered, connected, created_at`,
		identifier)
	if scanErr := row.Scan(&dev.ID, &dev.Registered, &dev.Connected, &dev.CreatedAt); scanErr != nil {
		err = fmt.Errorf("failed to register device: %w", scanErr)
		return nil, err
	}
	return dev, nil
}

// DeviceByIdentifier looks up a device row by its opaque identifier.
func (db *DB) DeviceByIdentifier(ctx context.Context, identifier string) (dev *models.Device, err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("select", "devices", start, err) }()

	dev = &models.Device{}
	row := db.conn.QueryRowContext(ctx,
		`SELECT id, identifier, registered, connected, created_at FROM devices WHERE identifier = ?`,
		identifier)
	scanErr := row.Scan(&dev.ID, &dev.Identifier, &dev.Registered, &dev.Connected, &dev.CreatedAt)
	if scanErr != nil {
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = ErrDeviceNotFound
			return nil, err
		}
		err = fmt.Errorf("failed to query device: %w", scanErr)
		return nil, err
	}
	return dev, nil
}

// CreateBiggerReactor inserts a credential row with the default state for a
// newly registered BiggerReactors device.
func (db *DB) CreateBiggerReactor(ctx context.Context, token string, deviceID int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "bigger_reactors", start, err) }()

	_, execErr := db.conn.ExecContext(ctx,
		`INSERT INTO bigger_reactors (access_token, device_id) VALUES (?, ?)`,
		token, deviceID)
	if execErr != nil {
		err = fmt.Errorf("failed to create reactor credential: %w", execErr)
	}
	return err
}

// CreateMekanismReactor inserts a credential row for a newly registered
// mekanism device.
func (db *DB) CreateMekanismReactor(ctx context.Context, token string, deviceID int64) (err error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert", "mekanism_reactors", start, err) }()

	_, execErr := db.conn.ExecContext(ctx,
		`INSERT INTO mekanism_reactors (access_token, device_id) VALUES (?, ?)`,
		token, deviceID)
	if execErr != nil {
		err = fmt.Errorf("failed to create mekanism credential: %w", execErr)
	}
	return err
}
