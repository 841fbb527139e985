// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"

	"github.com/Thermoquad/fluffstat/pkg/furble"
)

// Exit codes
const (
	ExitFailure    = 1
	ExitConnection = 2
)

// errConnection marks failures to reach the toy
var errConnection = errors.New("connection error")

func connectionError(format string, a ...interface{}) error {
	return fmt.Errorf("%w: %s", errConnection, fmt.Sprintf(format, a...))
}

// transferFailure classifies an upload failure; a lost link counts as a
// connection error
func transferFailure(err error) error {
	if reason, ok := furble.FailureOf(err); ok && reason == furble.ConnectionLost {
		return fmt.Errorf("%w: %w", errConnection, err)
	}
	return err
}

// ExitCode maps a command error to the process exit code
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errConnection), errors.Is(err, furble.ErrNotConnected):
		return ExitConnection
	default:
		return ExitFailure
	}
}
