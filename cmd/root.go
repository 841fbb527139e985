// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	// BLE connection flags
	bleAddress string
	bleName    string

	// Serial bridge flags
	portName string
	baudRate int

	// WebSocket bridge flags
	wsURL         string
	wsUsername    string
	wsNoSSLVerify bool

	// Engine flags
	connectTimeout time.Duration
	verbose        bool
)

var rootCmd = &cobra.Command{
	Use:   "fluffstat",
	Short: "Furby Connect BLE Protocol Tool",
	Long: `Fluffstat - A CLI tool for controlling Furby Connect toys over Bluetooth LE.

Provides commands for triggering actions, setting the antenna color, watching
sensor state, logging raw notifications and uploading DLC content.

Connection modes:
  BLE:       [--address AA:BB:CC:DD:EE:FF] [--name Furby]   (default)
  Serial:    --port /dev/ttyUSB0 [--baud 115200]             (BLE bridge)
  WebSocket: --url ws://host/path [--username user]          (BLE bridge)

For WebSocket authentication, the password is read from the FURBLE_PASSWORD
environment variable, or prompted interactively if not set. The --password
flag is intentionally not provided to avoid leaking credentials in shell history.

Exit codes:
  0 - Success
  1 - Protocol or transfer failure
  2 - Connection error`,
	Version:           "1.0.0",
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	// BLE connection flags
	rootCmd.PersistentFlags().StringVarP(&bleAddress, "address", "a", "", "Furby BLE address (default: first device advertising --name)")
	rootCmd.PersistentFlags().StringVar(&bleName, "name", "Furby", "Advertised BLE name to scan for")

	// Serial bridge flags
	rootCmd.PersistentFlags().StringVarP(&portName, "port", "p", "", "Serial port of a BLE bridge")
	rootCmd.PersistentFlags().IntVarP(&baudRate, "baud", "b", 115200, "Baud rate (serial only)")

	// WebSocket bridge flags
	rootCmd.PersistentFlags().StringVarP(&wsURL, "url", "u", "", "WebSocket URL of a BLE bridge (ws:// or wss://)")
	rootCmd.PersistentFlags().StringVar(&wsUsername, "username", "", "Username for HTTP Basic auth")
	rootCmd.PersistentFlags().BoolVar(&wsNoSSLVerify, "no-ssl-verify", false, "Skip TLS certificate verification (wss:// only)")

	rootCmd.PersistentFlags().DurationVar(&connectTimeout, "connect-timeout", 30*time.Second, "Time to wait for the first connection")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}
