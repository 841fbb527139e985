// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/furble"
	"github.com/Thermoquad/fluffstat/pkg/session"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var (
	showAll       bool
	statsInterval int
	useTUI        bool
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Monitor notifications, link health and malformed frames",
	Long: `Track notification counts, malformed frames and reconnects with statistics.

This command decodes every notification and detects:
  - Short frames that cannot be decoded
  - Dead letters (frames of no known type)
  - Connection losses and reconnects
  - Statistics and trends (frame rate, error rate)

By default, only errors are displayed. Use --show-all to display valid frames too.

The latest sensor state, slot table and firmware version are shown as they are
reported. Periodic statistics summaries are printed in text mode.`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&showAll, "show-all", false, "Show all frames (not just errors)")
	monitorCmd.Flags().IntVar(&statsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().BoolVar(&useTUI, "tui", true, "Use terminal UI (false for text mode)")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	fs, err := startSession(ctx)
	if err != nil {
		return err
	}
	defer fs.Close()

	id, frames := fs.Subscribe(nil)
	defer fs.Unsubscribe(id)

	if useTUI {
		return runMonitorTUI(ctx, fs, frames)
	}
	return runMonitorText(ctx, fs, frames)
}

// decodeFrame pairs a raw frame with its decoded form
func decodeFrame(frame []byte) frameMsg {
	n, err := furble.DecodeNotification(frame)
	return frameMsg{raw: frame, notification: n, decodeErr: err}
}

// runMonitorTUI runs the monitor in TUI mode
func runMonitorTUI(ctx context.Context, fs *furbySession, frames <-chan []byte) error {
	p := tea.NewProgram(initialMonitorModel(fs.info, showAll), tea.WithContext(ctx))

	go func() {
		events := fs.Events()
		for frames != nil || events != nil {
			select {
			case frame, ok := <-frames:
				if !ok {
					frames = nil
					continue
				}
				p.Send(decodeFrame(frame))
			case ev, ok := <-events:
				if !ok {
					events = nil
					continue
				}
				p.Send(eventMsg{event: ev})
			}
		}
		p.Send(sessionEndedMsg{})
	}()

	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

// runMonitorText runs the monitor in text mode
func runMonitorText(ctx context.Context, fs *furbySession, frames <-chan []byte) error {
	printHeader("Monitor", fs.info)
	fmt.Printf("Statistics interval: %d seconds\n", statsInterval)
	if showAll {
		fmt.Printf("Mode: All frames\n")
	} else {
		fmt.Printf("Mode: Errors only\n")
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	stats := furble.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(statsInterval) * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println()
			fmt.Print(stats.String())
			return nil

		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			msg := decodeFrame(frame)
			stats.Update(msg.notification, msg.decodeErr)
			printMonitorFrame(msg)

		case ev, ok := <-fs.Events():
			if !ok {
				return nil
			}
			printConnectionEvent(ev)
			if sc, isSlots := ev.(session.SlotStatusChanged); isSlots {
				fmt.Printf("  Slots: %s\n", sc.Slots)
			}

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// printMonitorFrame prints errors always and valid frames with --show-all
func printMonitorFrame(msg frameMsg) {
	timestamp := time.Now().Format("15:04:05.000")
	switch {
	case msg.decodeErr != nil:
		fmt.Printf("[%s] \033[1;31mDECODE ERROR:\033[0m %v\n", timestamp, msg.decodeErr)
		fmt.Printf("  Frame: %s\n", furble.ToHex(msg.raw))
		fmt.Printf("  >>> FRAME DROPPED <<<\n\n")
	default:
		if _, unknown := msg.notification.(*furble.RawFrame); unknown {
			fmt.Printf("[%s] \033[1;33mDEAD LETTER:\033[0m type 0x%02X\n", timestamp, msg.notification.Type())
			fmt.Print(furble.FormatPayload(msg.notification))
			fmt.Println()
		} else if showAll {
			fmt.Print(furble.FormatNotification(msg.notification))
		}
	}
}
