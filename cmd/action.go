// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/spf13/cobra"
)

var actionRepeat int

var actionCmd = &cobra.Command{
	Use:   "action INPUT [INDEX [SUBINDEX [SPECIFIC]]]",
	Short: "Trigger a Furby action",
	Long: `Trigger an action by its positional parameters.

One to four parameters select the action with increasing precision. Values
are decimal or 0x-prefixed hex bytes.

Examples:
  fluffstat action 75 0 3 4        # specific action
  fluffstat action 0x39 0 0        # random action from a subindex`,
	Args: cobra.RangeArgs(1, 4),
	RunE: runAction,
}

func init() {
	rootCmd.AddCommand(actionCmd)
	actionCmd.Flags().IntVar(&actionRepeat, "repeat", 1, "Number of times to trigger the action")
}

// parseByteArgs parses decimal or 0x-prefixed byte values
func parseByteArgs(args []string) ([]byte, error) {
	out := make([]byte, len(args))
	for i, arg := range args {
		v, err := strconv.ParseUint(arg, 0, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid byte value %q", arg)
		}
		out[i] = byte(v)
	}
	return out, nil
}

func runAction(cmd *cobra.Command, args []string) error {
	params, err := parseByteArgs(args)
	if err != nil {
		return err
	}
	action, err := furble.NewAction(params...)
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, fs *furbySession) error {
		for i := 0; i < actionRepeat; i++ {
			if err := fs.SendAction(ctx, action); err != nil {
				return fmt.Errorf("failed to send action %s: %w", action, err)
			}
			fmt.Printf("Action %s sent\n", action)
			if i < actionRepeat-1 {
				time.Sleep(time.Second)
			}
		}
		return nil
	})
}
