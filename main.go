package main

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/evcc-io/evcc/util"
	_ "github.com/joho/godotenv/autoload"
	"github.com/xbryan1/remeha-home/remeha"
	"golang.org/x/oauth2"
)

const TOKEN_FILE = ".remeha-token.json"

func readToken(filename string) (*oauth2.Token, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}

	var token oauth2.Token
	err = json.Unmarshal(b, &token)

	return &token, err
}

func writeToken(filename string, token *oauth2.Token) error {
	b, err := json.MarshalIndent(token, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filename, b, 0o644)
}

func main() {
	logger := util.NewLogger("remeha")

	identity, err := remeha.NewIdentity(logger)
	if err != nil {
		log.Fatal(err)
	}

	var ts oauth2.TokenSource

	token, err := readToken(TOKEN_FILE)
	if err == nil {
		ts, err = identity.TokenSource(token)

		if err == nil {
			// save token in case of refresh
			if tok, err := ts.Token(); err == nil && tok.Valid() && (tok.AccessToken != token.AccessToken) {
				_ = writeToken(TOKEN_FILE, tok)
			}
		}
	}

	if err != nil {
		email := os.Getenv("REMEHA_EMAIL")
		password := os.Getenv("REMEHA_PASSWORD")

		token, err = identity.Login(email, password)
		if err != nil {
			log.Fatal(err)
		}

		ts, err = identity.TokenSource(token)
		if err != nil {
			log.Fatal(err)
		}

		if err := writeToken(TOKEN_FILE, token); err != nil {
			log.Fatal(err)
		}
	}

	conn, err := remeha.NewConnection(logger, ts)
	if err != nil {
		log.Fatal(err)
	}

	coordinator := remeha.NewCoordinator(logger, conn, time.Minute)
	if err := coordinator.Refresh(); err != nil {
		log.Fatal(err)
	}

	for _, zone := range coordinator.ClimateZones() {
		if info, err := coordinator.DeviceInfo(zone.ID()); err == nil {
			fmt.Printf("Appliance: %s (serial %s, software %s)\n", info.Name, info.SerialNumber, info.SoftwareVersion)
		}

		target := "-"
		if setpoint, ok := zone.TargetTemperature(); ok {
			target = fmt.Sprintf("%.1f°C", setpoint)
		}
		preset := "-"
		if p, ok := zone.PresetMode(); ok {
			preset = p
		}
		fmt.Printf("Zone %s: %.1f°C (%s) mode=%s action=%s preset=%s\n",
			zone.Name(), zone.CurrentTemperature(), target, zone.HVACMode(), zone.HVACAction(), preset)
	}

	for _, zone := range coordinator.HotWaterZones() {
		target := "-"
		if setpoint, ok := zone.TargetTemperature(); ok {
			target = fmt.Sprintf("%.1f°C", setpoint)
		}
		fmt.Printf("HotWater %s: %.1f°C (%s) mode=%s\n",
			zone.Name(), zone.CurrentTemperature(), target, zone.Operation())

		if minutes, ok := zone.BoostRemainingMinutes(); ok {
			fmt.Printf("  boost ends in %d minutes\n", minutes)
		}
	}
}
