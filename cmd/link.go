// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/session"
	"github.com/spf13/cobra"
)

var linkCheckCmd = &cobra.Command{
	Use:   "link_check",
	Short: "Test connection stability without sending commands",
	Long: `Hold a connection to the toy without writing anything, logging every frame
received and every connection loss. The supervisor reconnects with backoff as
it would in any other command.

Exit codes:
  0 - Link stayed up for the whole duration
  1 - The link dropped at least once
  2 - Connection error`,
	RunE: runLinkCheck,
}

var linkCheckDuration time.Duration

func init() {
	rootCmd.AddCommand(linkCheckCmd)
	linkCheckCmd.Flags().DurationVar(&linkCheckDuration, "duration", 30*time.Second, "Test duration")
}

func runLinkCheck(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	printHeader("Link Stability Test", fs.info)
	fmt.Printf("Duration: %v\n\n", linkCheckDuration)

	id, frames := fs.Subscribe(nil)
	defer fs.Unsubscribe(id)

	start := time.Now()
	deadline := time.NewTimer(linkCheckDuration)
	defer deadline.Stop()
	heartbeat := time.NewTicker(time.Second)
	defer heartbeat.Stop()

	framesReceived := 0
	bytesReceived := 0
	drops := 0
	var downtime time.Duration
	var lostAt time.Time

	fmt.Printf("Listening for data...\n\n")

loop:
	for {
		select {
		case <-ctx.Done():
			break loop

		case <-deadline.C:
			break loop

		case frame, ok := <-frames:
			if !ok {
				break loop
			}
			framesReceived++
			bytesReceived += len(frame)
			fmt.Printf("[%s] Received %d bytes: %x\n", time.Now().Format("15:04:05.000"), len(frame), frame)

		case ev, ok := <-fs.Events():
			if !ok {
				break loop
			}
			switch ev.(type) {
			case session.Disconnected:
				drops++
				lostAt = time.Now()
			case session.Connected:
				if !lostAt.IsZero() {
					downtime += time.Since(lostAt)
					lostAt = time.Time{}
				}
			}
			printConnectionEvent(ev)

		case <-heartbeat.C:
			if fs.Connected() {
				remaining := linkCheckDuration - time.Since(start)
				fmt.Printf("[%s] Still connected... (%.0fs remaining)\n",
					time.Now().Format("15:04:05.000"), remaining.Seconds())
			}
		}
	}
	if !lostAt.IsZero() {
		downtime += time.Since(lostAt)
	}

	fmt.Printf("\n--- Test Results ---\n")
	fmt.Printf("Duration: %s\n", formatUptime(time.Since(start)))
	fmt.Printf("Frames received: %d\n", framesReceived)
	fmt.Printf("Bytes received: %d\n", bytesReceived)
	fmt.Printf("Connection drops: %d\n", drops)
	if drops > 0 {
		fmt.Printf("Downtime: %v\n", downtime.Round(time.Millisecond))
		fmt.Printf("Result: FAILED (link dropped)\n")
		return errors.New("link dropped during test")
	}
	fmt.Printf("Result: PASSED (connection stable)\n")
	return nil
}
