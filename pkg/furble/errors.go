// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import (
	"errors"
	"fmt"
)

// ArgumentKind classifies an ArgumentError
type ArgumentKind int

const (
	InvalidArity ArgumentKind = iota
	SlotOutOfRange
	InvalidName
	PayloadTooLarge
)

func (k ArgumentKind) String() string {
	switch k {
	case InvalidArity:
		return "invalid arity"
	case SlotOutOfRange:
		return "slot out of range"
	case InvalidName:
		return "invalid name"
	case PayloadTooLarge:
		return "payload too large"
	default:
		return "invalid argument"
	}
}

// ArgumentError is returned when a caller passes an invalid command argument.
// It is always raised before any transport interaction and is never retried.
type ArgumentError struct {
	Kind  ArgumentKind
	Value interface{}
}

func (e *ArgumentError) Error() string {
	switch e.Kind {
	case InvalidArity:
		return fmt.Sprintf("action takes 1 to 4 parameters, got %v", e.Value)
	case SlotOutOfRange:
		return fmt.Sprintf("slot %v out of range: valid range is %d-%d", e.Value, MinSlot, MaxSlot)
	case InvalidName:
		return fmt.Sprintf("DLC filename %q must be exactly %d ASCII characters", e.Value, FilenameLength)
	case PayloadTooLarge:
		return fmt.Sprintf("DLC payload of %v bytes exceeds %d bytes", e.Value, MaxDLCSize)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Value)
}

// ProtocolKind classifies a ProtocolError
type ProtocolKind int

const (
	FrameTooShort ProtocolKind = iota
	UnknownFrame
)

// ProtocolError reports a malformed inbound notification.
// The frame is dropped; the connection is unaffected.
type ProtocolError struct {
	Kind   ProtocolKind
	Type   uint8
	Length int
	Want   int
}

func (e *ProtocolError) Error() string {
	if e.Kind == FrameTooShort {
		return fmt.Sprintf("frame 0x%02X too short: %d bytes (need %d)", e.Type, e.Length, e.Want)
	}
	return fmt.Sprintf("unknown frame type 0x%02X", e.Type)
}

// FailureReason describes why a DLC transfer failed
type FailureReason int

const (
	DeviceRejected FailureReason = iota + 1
	Aborted
	Cancelled
	RetriesExhausted
	ConnectionLost
)

func (r FailureReason) String() string {
	switch r {
	case DeviceRejected:
		return "DeviceRejected"
	case Aborted:
		return "Aborted"
	case Cancelled:
		return "Cancelled"
	case RetriesExhausted:
		return "RetriesExhausted"
	case ConnectionLost:
		return "ConnectionLost"
	default:
		return "Unknown"
	}
}

// TransferError reports a failed DLC transfer
type TransferError struct {
	Slot   int
	Reason FailureReason
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("DLC transfer to slot %d failed: %s", e.Slot, e.Reason)
}

// ErrNotConnected is returned when a command is issued without a live connection
var ErrNotConnected = errors.New("furby not connected")

// ErrTransferActive is returned when an upload is requested while one is running
var ErrTransferActive = errors.New("DLC transfer already in progress")

// IsArgumentError returns true if err wraps an ArgumentError
func IsArgumentError(err error) bool {
	var ae *ArgumentError
	return errors.As(err, &ae)
}

// IsProtocolError returns true if err wraps a ProtocolError
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// FailureOf returns the transfer failure reason wrapped in err, if any
func FailureOf(err error) (FailureReason, bool) {
	var te *TransferError
	if errors.As(err, &te) {
		return te.Reason, true
	}
	return 0, false
}
