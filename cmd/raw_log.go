// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/spf13/cobra"
)

var rawLogCmd = &cobra.Command{
	Use:   "raw_log",
	Short: "Display raw notification log in human-readable format",
	Long: `Continuously decode and display Furby notifications as they arrive.

Each notification is shown with timestamp, message type and decoded payload.
Frames of unknown type are shown as a hex dump. The log keeps running across
reconnects until interrupted.`,
	RunE: runRawLog,
}

func init() {
	rootCmd.AddCommand(rawLogCmd)
}

func runRawLog(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	printHeader("Raw Notification Log", fs.info)
	fmt.Printf("Press Ctrl+C to exit\n\n")

	id, frames := fs.Subscribe(nil)
	defer fs.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil

		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			n, err := furble.DecodeNotification(frame)
			if err != nil {
				fmt.Printf("[ERROR] %v: %s\n", err, furble.ToHex(frame))
				continue
			}
			fmt.Print(furble.FormatNotification(n))

		case ev, ok := <-fs.Events():
			if !ok {
				return nil
			}
			printConnectionEvent(ev)
		}
	}
}
