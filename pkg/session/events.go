// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "github.com/Thermoquad/fluffstat/pkg/furble"

// Event is delivered on Supervisor.Events. The concrete type is one of the
// event structs below.
type Event interface {
	isEvent()
}

// Connected is emitted when a connection is established
type Connected struct{}

// Disconnected is emitted when an established connection is lost
type Disconnected struct {
	Err error
}

// StateChanged carries a decoded sensor state frame
type StateChanged struct {
	State furble.State
}

// TransferProgress is emitted after each chunk is written
type TransferProgress struct {
	Slot  int
	Sent  int
	Total int
}

// TransferCompleted is emitted once when the toy accepts an upload
type TransferCompleted struct {
	Slot int
}

// TransferFailed is emitted once when an upload fails
type TransferFailed struct {
	Slot   int
	Reason furble.FailureReason
	Err    error
}

// SlotStatusChanged carries the slot table after a slot info report or a
// change in the slot under upload
type SlotStatusChanged struct {
	Slots furble.Slots
}

// FirmwareVersion carries a firmware version report
type FirmwareVersion struct {
	Version uint8
}

func (Connected) isEvent()         {}
func (Disconnected) isEvent()      {}
func (StateChanged) isEvent()      {}
func (TransferProgress) isEvent()  {}
func (TransferCompleted) isEvent() {}
func (TransferFailed) isEvent()    {}
func (SlotStatusChanged) isEvent() {}
func (FirmwareVersion) isEvent()   {}
