// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/Thermoquad/fluffstat/pkg/catalog"
	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/session"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/spf13/cobra"
)

var (
	uploadSlot     int
	uploadName     string
	uploadActivate bool
	uploadCatalog  string
	uploadChunk    int
	uploadRetries  int
)

var dlcCmd = &cobra.Command{
	Use:   "dlc",
	Short: "Manage downloadable content slots",
	Long: `Upload DLC files to the toy and manage its 14 DLC slots.

A slot is empty, filled or active; at most one slot is active at a time.
Uploads announce the file with its length and Adler-32 checksum, stream it in
chunks once the toy is ready, and finish when the toy reports the file as
received.`,
}

var dlcUploadCmd = &cobra.Command{
	Use:   "upload FILE",
	Short: "Upload a DLC file to a slot",
	Long: `Upload a DLC file. The on-device name is the file's basename, upper-cased
and left-padded with '_' to 12 characters; override it with --name.

With --catalog FILE names a catalog entry instead of a path.
Without --slot the first empty slot is used.

Exit codes:
  0 - Upload accepted by the toy
  1 - Upload rejected, aborted or failed
  2 - Connection error`,
	Args: cobra.ExactArgs(1),
	RunE: runDLCUpload,
}

var dlcLoadCmd = &cobra.Command{
	Use:   "load SLOT",
	Short: "Load the DLC in a slot",
	Args:  cobra.ExactArgs(1),
	RunE: slotCommand("Loaded", func(ctx context.Context, fs *furbySession, slot int) error {
		return fs.LoadSlot(ctx, slot)
	}),
}

var dlcDeleteCmd = &cobra.Command{
	Use:   "delete SLOT",
	Short: "Delete the DLC in a slot",
	Args:  cobra.ExactArgs(1),
	RunE: slotCommand("Deleted", func(ctx context.Context, fs *furbySession, slot int) error {
		return fs.DeleteSlot(ctx, slot)
	}),
}

var dlcDeactivateCmd = &cobra.Command{
	Use:   "deactivate SLOT",
	Short: "Deactivate the DLC in a slot",
	Args:  cobra.ExactArgs(1),
	RunE: slotCommand("Deactivated", func(ctx context.Context, fs *furbySession, slot int) error {
		return fs.DeactivateSlot(ctx, slot)
	}),
}

var dlcActivateCmd = &cobra.Command{
	Use:   "activate",
	Short: "Activate the loaded DLC",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, fs *furbySession) error {
			if err := fs.ActivateSlots(ctx); err != nil {
				return err
			}
			fmt.Printf("Activate sent\n")
			return nil
		})
	},
}

var dlcSlotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Show the status of every DLC slot",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(cmd, func(ctx context.Context, fs *furbySession) error {
			slots, err := fs.RequestSlotInfo(ctx)
			if err != nil {
				return fmt.Errorf("failed to read slot info: %w", err)
			}
			printSlots(slots)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(dlcCmd)
	dlcCmd.AddCommand(dlcUploadCmd, dlcLoadCmd, dlcDeleteCmd, dlcActivateCmd, dlcDeactivateCmd, dlcSlotsCmd)

	dlcUploadCmd.Flags().IntVar(&uploadSlot, "slot", -1, "Target slot (default: first empty slot)")
	dlcUploadCmd.Flags().StringVar(&uploadName, "name", "", "Override the on-device filename")
	dlcUploadCmd.Flags().BoolVar(&uploadActivate, "activate", false, "Load and activate the slot after upload")
	dlcUploadCmd.Flags().StringVar(&uploadCatalog, "catalog", "", "Catalog index to resolve FILE against")
	dlcUploadCmd.Flags().IntVar(&uploadChunk, "chunk-size", furble.DefaultChunkSize, "Bytes per FileWrite")
	dlcUploadCmd.Flags().IntVar(&uploadRetries, "retries", 3, "Resends per chunk before giving up")
}

// slotCommand builds a RunE for commands taking a single slot argument
func slotCommand(verb string, fn func(ctx context.Context, fs *furbySession, slot int) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		slot, err := parseSlot(args[0])
		if err != nil {
			return err
		}
		return withSession(cmd, func(ctx context.Context, fs *furbySession) error {
			if err := fn(ctx, fs, slot); err != nil {
				return err
			}
			fmt.Printf("%s slot %d\n", verb, slot)
			return nil
		})
	}
}

func parseSlot(arg string) (int, error) {
	slot, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("invalid slot %q", arg)
	}
	if err := furble.ValidateSlot(slot); err != nil {
		return 0, err
	}
	return slot, nil
}

func printSlots(slots furble.Slots) {
	fmt.Printf("Slot  Status\n")
	for i, st := range slots {
		fmt.Printf("%4d  %s\n", i, st)
	}
}

// readUpload resolves the payload and device name for an upload
func readUpload(arg string) (name string, payload []byte, err error) {
	if uploadCatalog != "" {
		cat, err := catalog.LoadFile(uploadCatalog)
		if err != nil {
			return "", nil, err
		}
		entry, ok := cat.Find(arg)
		if !ok {
			return "", nil, fmt.Errorf("%q not found in %s", arg, uploadCatalog)
		}
		payload, _, err := cat.Payload(entry)
		if err != nil {
			return "", nil, err
		}
		return entry.DeviceFilename(), payload, nil
	}

	payload, err = os.ReadFile(arg)
	if err != nil {
		return "", nil, err
	}
	return furble.DeviceFilename(arg), payload, nil
}

func runDLCUpload(cmd *cobra.Command, args []string) error {
	name, payload, err := readUpload(args[0])
	if err != nil {
		return err
	}
	if uploadName != "" {
		name = furble.DeviceFilename(uploadName)
	}
	if uploadSlot != -1 {
		if err := furble.ValidateSlot(uploadSlot); err != nil {
			return err
		}
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx,
		session.WithChunkSize(uploadChunk),
		session.WithMaxRetries(uploadRetries),
	)
	if err != nil {
		return err
	}
	defer fs.Close()

	printHeader("DLC Upload", fs.info)

	slot := uploadSlot
	if slot == -1 {
		slots, err := fs.RequestSlotInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to read slot info: %w", err)
		}
		if slot = slots.FirstEmpty(); slot == -1 {
			return errors.New("no empty DLC slot; delete one first")
		}
	}

	fmt.Printf("File: %s (%d bytes, adler32 0x%08X)\n", name, len(payload), furble.Adler32(payload))
	fmt.Printf("Slot: %d\n\n", slot)

	if err := fs.BeginUpload(ctx, slot, name, payload); err != nil {
		return err
	}
	if err := waitTransfer(ctx, fs, slot); err != nil {
		return err
	}

	if uploadActivate {
		if err := fs.LoadSlot(ctx, slot); err != nil {
			return fmt.Errorf("failed to load slot %d: %w", slot, err)
		}
		if err := fs.ActivateSlots(ctx); err != nil {
			return fmt.Errorf("failed to activate slot %d: %w", slot, err)
		}
		fmt.Printf("Slot %d loaded and activated\n", slot)
	}
	return nil
}

// waitTransfer follows transfer events until the upload to slot ends
func waitTransfer(ctx context.Context, fs *furbySession, slot int) error {
	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))

	for {
		select {
		case <-ctx.Done():
			fs.CancelUpload()
			fmt.Println()
			return waitCancelled(fs, slot)

		case ev, ok := <-fs.Events():
			if !ok {
				return connectionError("session ended during upload")
			}
			switch e := ev.(type) {
			case session.TransferProgress:
				if e.Slot != slot || e.Total == 0 {
					continue
				}
				percent := float64(e.Sent) / float64(e.Total)
				fmt.Printf("\r%s %d/%d bytes", bar.ViewAs(percent), e.Sent, e.Total)

			case session.TransferCompleted:
				if e.Slot == slot {
					fmt.Printf("\nUpload to slot %d complete\n", slot)
					return nil
				}

			case session.TransferFailed:
				if e.Slot == slot {
					fmt.Println()
					return transferFailure(e.Err)
				}

			default:
				printConnectionEvent(ev)
			}
		}
	}
}

// waitCancelled drains events until the cancelled upload reports its failure
func waitCancelled(fs *furbySession, slot int) error {
	for ev := range fs.Events() {
		if e, ok := ev.(session.TransferFailed); ok && e.Slot == slot {
			return transferFailure(e.Err)
		}
	}
	return context.Canceled
}
