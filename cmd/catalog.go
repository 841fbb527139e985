// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/Thermoquad/fluffstat/pkg/catalog"
	"github.com/spf13/cobra"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect a DLC catalog and trigger its actions",
	Long: `A catalog is a JSON index of DLC files and the actions each one offers:

  [{"file": "hacked.dlc", "title": "HACKED",
    "buttons": [{"title": "Hacked 1", "action": [75, 0, 3, 4]}]}]

DLC files resolve relative to the index's directory.`,
}

var catalogListCmd = &cobra.Command{
	Use:   "list INDEX",
	Short: "List catalog entries and their actions",
	Args:  cobra.ExactArgs(1),
	RunE:  runCatalogList,
}

var catalogPressCmd = &cobra.Command{
	Use:   "press INDEX BUTTON",
	Short: "Trigger the action of a catalog button by title",
	Args:  cobra.ExactArgs(2),
	RunE:  runCatalogPress,
}

func init() {
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd, catalogPressCmd)
}

func runCatalogList(cmd *cobra.Command, args []string) error {
	cat, err := catalog.LoadFile(args[0])
	if err != nil {
		return err
	}

	for _, e := range cat.Entries {
		size := "missing"
		if payload, sum, err := cat.Payload(e); err == nil {
			size = fmt.Sprintf("%d bytes, adler32 0x%08X", len(payload), sum)
		} else if !os.IsNotExist(err) {
			size = err.Error()
		}
		fmt.Printf("%s  %s (%s)\n", e.DeviceFilename(), e.Title, size)
		for _, b := range e.Buttons {
			action, _ := b.Action()
			fmt.Printf("    %-24s %s\n", b.Title, action)
		}
	}
	return nil
}

func runCatalogPress(cmd *cobra.Command, args []string) error {
	cat, err := catalog.LoadFile(args[0])
	if err != nil {
		return err
	}

	var button *catalog.Button
	for _, e := range cat.Entries {
		for i := range e.Buttons {
			if strings.EqualFold(e.Buttons[i].Title, args[1]) {
				button = &e.Buttons[i]
				break
			}
		}
		if button != nil {
			break
		}
	}
	if button == nil {
		return fmt.Errorf("no button titled %q in %s", args[1], args[0])
	}

	action, err := button.Action()
	if err != nil {
		return err
	}

	return withSession(cmd, func(ctx context.Context, fs *furbySession) error {
		if err := fs.SendAction(ctx, action); err != nil {
			return err
		}
		fmt.Printf("%s: action %s sent\n", button.Title, action)
		return nil
	})
}
