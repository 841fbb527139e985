// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var antennaCmd = &cobra.Command{
	Use:   "antenna (RRGGBB | R G B)",
	Short: "Set the antenna LED color",
	Long: `Set the antenna LED color from a hex triple or three byte values.

Examples:
  fluffstat antenna ff8000
  fluffstat antenna "#00ff00"
  fluffstat antenna 255 0 0`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("expected RRGGBB or R G B, got %d arguments", len(args))
		}
		return nil
	},
	RunE: runAntenna,
}

func init() {
	rootCmd.AddCommand(antennaCmd)
}

// parseColor accepts "RRGGBB", "#RRGGBB" or three byte values
func parseColor(args []string) (r, g, b byte, err error) {
	if len(args) == 3 {
		rgb, err := parseByteArgs(args)
		if err != nil {
			return 0, 0, 0, err
		}
		return rgb[0], rgb[1], rgb[2], nil
	}

	hex := strings.TrimPrefix(args[0], "#")
	if len(hex) != 6 {
		return 0, 0, 0, fmt.Errorf("invalid color %q", args[0])
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("invalid color %q", args[0])
	}
	return byte(v >> 16), byte(v >> 8), byte(v), nil
}

func runAntenna(cmd *cobra.Command, args []string) error {
	r, g, b, err := parseColor(args)
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, fs *furbySession) error {
		if err := fs.SetAntennaColor(ctx, r, g, b); err != nil {
			return fmt.Errorf("failed to set antenna color: %w", err)
		}
		fmt.Printf("Antenna color set to #%02x%02x%02x\n", r, g, b)
		return nil
	})
}
