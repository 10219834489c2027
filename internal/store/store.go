// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Package store provides DuckDB-backed persistence for devices, credentials,
// and reactor telemetry snapshots.
//
// Consistency relies on the atomicity of single-row statements; no
// transaction spans a broadcast and its follow-up write. Concurrent writes
// to the same token are last-write-wins, which is safe in the intended
// one-session-per-token deployment.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/reactord/reactord/internal/config"
	"github.com/reactord/reactord/internal/logging"
)

// DB wraps the DuckDB connection and provides data access methods.
type DB struct {
	conn *sql.DB
	cfg  *config.DatabaseConfig
}

// New opens the database, tunes the connection pool, and initializes the
// schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	numThreads := cfg.Threads
	if numThreads <= 0 {
		numThreads = runtime.NumCPU()
	}

	// Ensure the parent directory exists for file-backed databases.
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	// Disable extension auto-install/auto-load to prevent hangs in
	// restricted network environments.
	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
		cfg.Path, numThreads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, cfg: cfg}

	// DuckDB handles its own parallelism; a single Go-side connection
	// avoids write-write conflicts between pooled connections.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	return db, nil
}

// Conn exposes the underlying connection for health checks.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// initialize creates the schema if it does not exist yet.
func (db *DB) initialize() error {
	statements := []string{
		`CREATE SEQUENCE IF NOT EXISTS devices_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS devices (
			id BIGINT PRIMARY KEY DEFAULT nextval('devices_id_seq'),
			identifier VARCHAR NOT NULL UNIQUE,
			registered BOOLEAN NOT NULL DEFAULT false,
			connected BOOLEAN NOT NULL DEFAULT false,
			created_at TIMESTAMP NOT NULL DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS bigger_reactors (
			access_token VARCHAR PRIMARY KEY,
			device_id BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT false,
			ambient_temperature DOUBLE NOT NULL DEFAULT 0,
			api_version VARCHAR,
			burned_last_tick DOUBLE NOT NULL DEFAULT 0,
			capacity DOUBLE NOT NULL DEFAULT 0,
			casing_temperature DOUBLE NOT NULL DEFAULT 0,
			cold_fluid_amount DOUBLE NOT NULL DEFAULT 0,
			connected BOOLEAN NOT NULL DEFAULT false,
			control_rod_count INTEGER NOT NULL DEFAULT 0,
			coolant_capacity DOUBLE NOT NULL DEFAULT 0,
			fuel DOUBLE NOT NULL DEFAULT 0,
			fuel_capacity DOUBLE NOT NULL DEFAULT 0,
			fuel_reactivity DOUBLE NOT NULL DEFAULT 0,
			fuel_temperature DOUBLE NOT NULL DEFAULT 0,
			hot_fluid_amount DOUBLE NOT NULL DEFAULT 0,
			max_transitioned_last_tick DOUBLE NOT NULL DEFAULT 0,
			produced_last_tick DOUBLE NOT NULL DEFAULT 0,
			stack_temperature DOUBLE NOT NULL DEFAULT 0,
			stored DOUBLE NOT NULL DEFAULT 0,
			total_reactant DOUBLE NOT NULL DEFAULT 0,
			transitioned_last_tick DOUBLE NOT NULL DEFAULT 0,
			reactor_type VARCHAR NOT NULL DEFAULT 'none',
			waste_capacity DOUBLE NOT NULL DEFAULT 0,
			control_rod_data VARCHAR
		)`,
		`CREATE TABLE IF NOT EXISTS mekanism_reactors (
			access_token VARCHAR PRIMARY KEY,
			device_id BIGINT NOT NULL,
			active BOOLEAN NOT NULL DEFAULT false
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.conn.Exec(stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	logging.Debug().Str("path", db.cfg.Path).Msg("database schema initialized")
	return nil
}

// closeQuietly closes a connection, logging rather than returning errors.
func closeQuietly(conn *sql.DB) {
	if err := conn.Close(); err != nil {
		logging.Error().Err(err).Msg("error closing database")
	}
}
