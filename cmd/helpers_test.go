// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Thermoquad/fluffstat/pkg/furble"
)

func TestParseByteArgs(t *testing.T) {
	got, err := parseByteArgs([]string{"75", "0x03", "0"})
	if err != nil {
		t.Fatalf("parseByteArgs() error = %v", err)
	}
	want := []byte{75, 3, 0}
	if string(got) != string(want) {
		t.Errorf("parseByteArgs() = %v, want %v", got, want)
	}

	for _, bad := range []string{"256", "-1", "x"} {
		if _, err := parseByteArgs([]string{bad}); err == nil {
			t.Errorf("parseByteArgs(%q) expected error", bad)
		}
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		r, g, b byte
		wantErr bool
	}{
		{"hex", []string{"ff8000"}, 0xFF, 0x80, 0x00, false},
		{"hash prefix", []string{"#00ff10"}, 0x00, 0xFF, 0x10, false},
		{"triple", []string{"1", "2", "3"}, 1, 2, 3, false},
		{"short hex", []string{"fff"}, 0, 0, 0, true},
		{"not hex", []string{"gggggg"}, 0, 0, 0, true},
		{"triple out of range", []string{"1", "2", "300"}, 0, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, g, b, err := parseColor(tt.args)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseColor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && (r != tt.r || g != tt.g || b != tt.b) {
				t.Errorf("parseColor() = %d,%d,%d, want %d,%d,%d", r, g, b, tt.r, tt.g, tt.b)
			}
		})
	}
}

func TestParseSlot(t *testing.T) {
	if got, err := parseSlot("13"); err != nil || got != 13 {
		t.Errorf("parseSlot(13) = %d, %v", got, err)
	}
	if _, err := parseSlot("14"); !furble.IsArgumentError(err) {
		t.Errorf("parseSlot(14) error = %v, want ArgumentError", err)
	}
	if _, err := parseSlot("one"); err == nil {
		t.Error("parseSlot(one) expected error")
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"connection", connectionError("no toy"), ExitConnection},
		{"not connected", fmt.Errorf("send: %w", furble.ErrNotConnected), ExitConnection},
		{"transfer", &furble.TransferError{Slot: 1, Reason: furble.DeviceRejected}, ExitFailure},
		{"transfer rejected", transferFailure(&furble.TransferError{Slot: 1, Reason: furble.DeviceRejected}), ExitFailure},
		{"transfer link lost", transferFailure(&furble.TransferError{Slot: 1, Reason: furble.ConnectionLost}), ExitConnection},
		{"other", errors.New("boom"), ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExitCode(tt.err); got != tt.want {
				t.Errorf("ExitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFormatUptime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0 seconds"},
		{time.Second, "1 second"},
		{90 * time.Second, "1 minute and 30 seconds"},
		{26*time.Hour + 2*time.Minute + 5*time.Second, "1 day, 2 hours, 2 minutes, and 5 seconds"},
	}

	for _, tt := range tests {
		if got := formatUptime(tt.d); got != tt.want {
			t.Errorf("formatUptime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
