// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/catalog"
	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var controlCatalog string

var controlCmd = &cobra.Command{
	Use:   "control",
	Short: "Interactive TUI for controlling a Furby",
	Long: `Control a Furby Connect via an interactive terminal UI.

Features:
  - Live sensor state (antenna, orientation, sensors)
  - Catalog actions (--catalog) triggered from a list
  - Antenna color control
  - DLC upload of the selected catalog entry with progress
  - Slot table and firmware version
  - Statistics tracking and event logging
  - Automatic reconnection on connection loss

Tab switches between the action list, color input and button.`,
	RunE: runControl,
}

func init() {
	rootCmd.AddCommand(controlCmd)
	controlCmd.Flags().StringVar(&controlCatalog, "catalog", "", "DLC catalog index providing actions")
}

func runControl(cmd *cobra.Command, args []string) error {
	var cat *catalog.Catalog
	if controlCatalog != "" {
		var err error
		cat, err = catalog.LoadFile(controlCatalog)
		if err != nil {
			return err
		}
	}

	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	m := initialControlModel(ctx, fs, cat)

	// Create TUI program with alt screen and mouse support
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))

	id, frames := fs.Subscribe(nil)
	defer fs.Unsubscribe(id)
	go forwardSession(fs, frames, p)

	// Initial slot table and firmware version
	go func() {
		reqCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if _, err := fs.RequestSlotInfo(reqCtx); err != nil {
			p.Send(commandResultMsg{desc: "Slot info request", err: err})
		}
		if _, err := fs.FirmwareVersion(reqCtx); err != nil {
			p.Send(commandResultMsg{desc: "Firmware request", err: err})
		}
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// forwardSession batches frames and events and sends them to the TUI at a
// fixed rate
func forwardSession(fs *furbySession, frames <-chan []byte, p *tea.Program) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	events := fs.Events()
	var batch controlBatchMsg
	for frames != nil || events != nil {
		select {
		case frame, ok := <-frames:
			if !ok {
				frames = nil
				continue
			}
			n, err := furble.DecodeNotification(frame)
			batch.frames = append(batch.frames, frameMsg{raw: frame, notification: n, decodeErr: err})

		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			batch.events = append(batch.events, ev)

		case <-ticker.C:
			if len(batch.frames) > 0 || len(batch.events) > 0 {
				p.Send(batch)
				batch = controlBatchMsg{}
			}
		}
	}
	p.Send(sessionEndedMsg{})
}

// controlBatchMsg carries everything received since the previous batch
type controlBatchMsg struct {
	frames []frameMsg
	events []session.Event
}
