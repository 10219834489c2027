// Reactord - Reactor Telemetry Relay
// Copyright 2026 The Reactord Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/reactord/reactord

// Command reactord-register mints a device identity: a random identifier,
// a bearer access token, and the credential row carrying the default state
// snapshot. Run once per physical device; the printed token goes into the
// device's firmware configuration.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"flag"
	"fmt"
	"time"

	"github.com/reactord/reactord/internal/config"
	"github.com/reactord/reactord/internal/logging"
	"github.com/reactord/reactord/internal/models"
	"github.com/reactord/reactord/internal/store"
)

const (
	// tokenLength is the character length of a minted access token.
	tokenLength = 80

	// identifierLength is the character length of a device identifier.
	identifierLength = 12
)

func main() {
	deviceType := flag.String("type", models.DeviceTypeBiggerReactor,
		"device type to register (BiggerReactors_Reactor or mekanism-reactor)")
	flag.Parse()

	if !models.IsAllowedDeviceType(*deviceType) {
		logging.Fatal().Str("type", *deviceType).Msg("Unsupported device type")
	}

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	db, err := store.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open database")
	}
	defer db.Close()

	token, err := randomString(tokenLength, base64.StdEncoding.EncodeToString)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to mint access token")
	}
	identifier, err := randomString(identifierLength, hex.EncodeToString)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to mint device identifier")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dev, err := db.RegisterDevice(ctx, identifier)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to register device")
	}

	switch *deviceType {
	case models.DeviceTypeBiggerReactor:
		err = db.CreateBiggerReactor(ctx, token, dev.ID)
	case models.DeviceTypeMekanism:
		err = db.CreateMekanismReactor(ctx, token, dev.ID)
	}
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create credential")
	}

	fmt.Println(identifier)
	fmt.Printf("Reactor registered with token:\n%s\n", token)
}

// randomString draws random bytes and encodes them, trimming the encoded
// output to exactly n characters.
func randomString(n int, encode func([]byte) string) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	s := encode(buf)
	if len(s) < n {
		return "", fmt.Errorf("encoded output too short: %d < %d", len(s), n)
	}
	return s[:n], nil
}
