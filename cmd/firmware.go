// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var (
	firmwareTimeout time.Duration
	firmwareCount   int
)

var firmwareCmd = &cobra.Command{
	Use:   "firmware",
	Short: "Request the firmware version and measure round trip time",
	Long: `Send firmware version requests and wait for the toy's report.

This exercises the full request path:
  - The command is written on the GeneralPlus channel
  - The matching notification resolves the outstanding request
  - Round trip time is measured per request

Exit codes:
  0 - All requests answered
  1 - One or more requests failed or timed out
  2 - Connection error`,
	RunE: runFirmware,
}

func init() {
	rootCmd.AddCommand(firmwareCmd)
	firmwareCmd.Flags().DurationVar(&firmwareTimeout, "timeout", 5*time.Second, "Timeout for each request")
	firmwareCmd.Flags().IntVar(&firmwareCount, "count", 1, "Number of requests to send")
}

func runFirmware(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	printHeader("Firmware Version", fs.info)
	fmt.Printf("Timeout: %v per request\n", firmwareTimeout)
	fmt.Printf("Count: %d\n\n", firmwareCount)

	successCount := 0
	failCount := 0

	for i := 1; i <= firmwareCount && ctx.Err() == nil; i++ {
		fmt.Printf("Request %d/%d: ", i, firmwareCount)

		reqCtx, cancel := context.WithTimeout(ctx, firmwareTimeout)
		start := time.Now()
		version, err := fs.FirmwareVersion(reqCtx)
		cancel()

		if err != nil {
			fmt.Printf("FAILED: %v\n", err)
			failCount++
		} else {
			fmt.Printf("firmware=%d, rtt=%v\n", version, time.Since(start).Round(time.Millisecond))
			successCount++
		}

		// Small delay between requests
		if i < firmwareCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	sent := successCount + failCount
	fmt.Printf("\n--- Request statistics ---\n")
	fmt.Printf("%d requests sent, %d responses received", sent, successCount)
	if sent > 0 {
		fmt.Printf(", %.0f%% loss", float64(failCount)/float64(sent)*100)
	}
	fmt.Println()

	if failCount > 0 {
		return fmt.Errorf("%d of %d requests failed", failCount, sent)
	}
	return nil
}
