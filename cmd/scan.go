// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/transport"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Discover Furby toys advertising over Bluetooth LE",
	Long: `Scan for devices advertising the configured name (--name, default "Furby")
and print their addresses. Use an address with --address to pick one toy when
several are in range.

Scanning needs a local Bluetooth adapter; the serial and WebSocket bridges
are not supported.

Examples:
  fluffstat scan
  fluffstat scan --timeout 20s --name Furby

Exit codes:
  0 - At least one toy found
  1 - No toys found before the timeout
  2 - Bluetooth adapter error`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Second, "How long to scan")
}

func runScan(cmd *cobra.Command, args []string) error {
	if portName != "" || wsURL != "" {
		return errors.New("scan requires a local Bluetooth adapter; drop --port and --url")
	}

	ctx, stop := commandContext(cmd)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, scanTimeout)
	defer cancel()

	dialer := &transport.BLEDialer{Name: bleName, Logger: zap.L().Named("transport")}

	fmt.Printf("Fluffstat - Device Scan\n")
	fmt.Printf("Name: %s\n", bleName)
	fmt.Printf("Timeout: %v\n\n", scanTimeout)

	var found []transport.Advertisement
	err := dialer.Scan(ctx, func(ad transport.Advertisement) {
		found = append(found, ad)
		fmt.Printf("Device found:\n")
		fmt.Printf("  Address: %s\n", ad.Address)
		fmt.Printf("  Name: %s\n", ad.Name)
		fmt.Printf("  RSSI: %d dBm\n\n", ad.RSSI)
	})
	if err != nil {
		return connectionError("%v", err)
	}

	// Summary
	fmt.Printf("--- Scan summary ---\n")
	fmt.Printf("Devices found: %d\n", len(found))
	if len(found) == 0 {
		return fmt.Errorf("no devices named %q found in %v", bleName, scanTimeout)
	}
	return nil
}
