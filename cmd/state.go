// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/session"
	"github.com/spf13/cobra"
)

var (
	stateTimeout time.Duration
	stateWatch   bool
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Wait for a sensor state report from the toy",
	Long: `Wait for a sensor state notification and print the decoded antenna
position, orientation and active sensors.

With --watch every state report is printed until interrupted.

Exit codes:
  0 - State received before timeout
  1 - Timeout reached without a state report
  2 - Connection error`,
	RunE: runState,
}

func init() {
	rootCmd.AddCommand(stateCmd)
	stateCmd.Flags().DurationVar(&stateTimeout, "timeout", 10*time.Second, "Time to wait for a state report")
	stateCmd.Flags().BoolVar(&stateWatch, "watch", false, "Print every state report until interrupted")
}

func runState(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	printHeader("Sensor State", fs.info)
	if stateWatch {
		fmt.Printf("Press Ctrl+C to exit\n\n")
	} else {
		fmt.Printf("Timeout: %v\n", stateTimeout)
		fmt.Printf("Waiting for sensor state...\n\n")
	}

	timeout := time.NewTimer(stateTimeout)
	defer timeout.Stop()
	var timeoutC <-chan time.Time
	if !stateWatch {
		timeoutC = timeout.C
	}

	var last *furble.State
	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-fs.Events():
			if !ok {
				return connectionError("session ended")
			}
			sc, isState := ev.(session.StateChanged)
			if !isState {
				printConnectionEvent(ev)
				continue
			}
			if !stateWatch {
				fmt.Printf("SUCCESS: Received sensor state\n")
				fmt.Print(furble.FormatState(sc.State))
				return nil
			}
			if last == nil || *last != sc.State {
				fmt.Printf("[%s]\n", time.Now().Format("15:04:05.000"))
				fmt.Print(furble.FormatState(sc.State))
			}
			st := sc.State
			last = &st

		case <-timeoutC:
			return fmt.Errorf("TIMEOUT: no sensor state received within %v", stateTimeout)
		}
	}
}
