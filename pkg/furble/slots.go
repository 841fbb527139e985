// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import "strings"

// SlotStatus is the state of a single DLC slot
type SlotStatus int

// Slot states
const (
	SlotEmpty SlotStatus = iota
	SlotUploading
	SlotFilled
	SlotActive
)

func (s SlotStatus) String() string {
	switch s {
	case SlotEmpty:
		return "empty"
	case SlotUploading:
		return "uploading"
	case SlotFilled:
		return "filled"
	case SlotActive:
		return "active"
	default:
		return "unknown"
	}
}

// Slots holds the status of every DLC slot
type Slots [SlotCount]SlotStatus

// ParseSlots derives slot states from the filled and active bitmaps.
// An active bit marks the slot Active whether or not its filled bit is set.
func ParseSlots(filled, active uint16) Slots {
	var slots Slots
	for i := 0; i < SlotCount; i++ {
		slots[i] = SlotEmpty
		if filled&(1<<i) != 0 {
			slots[i] = SlotFilled
		}
		if active&(1<<i) != 0 {
			slots[i] = SlotActive
		}
	}
	return slots
}

// WithUploading returns a copy of s with slot marked as uploading
func (s Slots) WithUploading(slot int) Slots {
	if slot >= MinSlot && slot <= MaxSlot {
		s[slot] = SlotUploading
	}
	return s
}

// FirstEmpty returns the lowest empty slot, or -1 if every slot is used
func (s Slots) FirstEmpty() int {
	for i, st := range s {
		if st == SlotEmpty {
			return i
		}
	}
	return -1
}

// Active returns the index of the active slot, or -1
func (s Slots) Active() int {
	for i, st := range s {
		if st == SlotActive {
			return i
		}
	}
	return -1
}

func (s Slots) String() string {
	var b strings.Builder
	for i, st := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		switch st {
		case SlotEmpty:
			b.WriteByte('.')
		case SlotUploading:
			b.WriteByte('u')
		case SlotFilled:
			b.WriteByte('F')
		case SlotActive:
			b.WriteByte('A')
		default:
			b.WriteByte('?')
		}
	}
	return b.String()
}
