// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import (
	"encoding/hex"
	"time"
)

// Notification is a decoded inbound frame. The concrete type is one of
// *SensorFrame, *TransferModeFrame, *SlotInfoFrame, *FirmwareFrame or *RawFrame.
type Notification interface {
	// Type returns the frame's first byte
	Type() uint8
	// Raw returns the bytes the notification was decoded from
	Raw() []byte
	// Timestamp returns the decode time
	Timestamp() time.Time
}

type frameHeader struct {
	raw       []byte
	timestamp time.Time
}

func newHeader(frame []byte) frameHeader {
	raw := make([]byte, len(frame))
	copy(raw, frame)
	return frameHeader{raw: raw, timestamp: time.Now()}
}

func (h frameHeader) Type() uint8 {
	if len(h.raw) == 0 {
		return 0
	}
	return h.raw[0]
}

func (h frameHeader) Raw() []byte          { return h.raw }
func (h frameHeader) Timestamp() time.Time { return h.timestamp }

// SensorFrame carries a sensor state snapshot (0x21)
type SensorFrame struct {
	frameHeader
	State State
}

// TransferModeFrame carries a file transfer mode signal (0x24)
type TransferModeFrame struct {
	frameHeader
	Mode TransferMode
}

// SlotInfoFrame carries the filled and active slot bitmaps (0x72)
type SlotInfoFrame struct {
	frameHeader
	Filled uint16
	Active uint16
}

// Slots returns the per-slot states encoded in the bitmaps
func (f *SlotInfoFrame) Slots() Slots {
	return ParseSlots(f.Filled, f.Active)
}

// FirmwareFrame carries the firmware version (0xFE)
type FirmwareFrame struct {
	frameHeader
	Version uint8
}

// RawFrame is any notification without a dedicated decoder
type RawFrame struct {
	frameHeader
}

// DecodeNotification decodes an inbound frame into its typed form.
// Frames too short for their type return a ProtocolError; unknown types decode
// to *RawFrame. The input is copied and may be reused by the caller.
func DecodeNotification(frame []byte) (Notification, error) {
	if len(frame) == 0 {
		return nil, &ProtocolError{Kind: FrameTooShort, Length: 0, Want: 1}
	}

	h := newHeader(frame)
	short := func(want int) error {
		return &ProtocolError{Kind: FrameTooShort, Type: frame[0], Length: len(frame), Want: want}
	}

	switch frame[0] {
	case MsgSensorState:
		st, err := DecodeState(frame)
		if err != nil {
			return nil, err
		}
		return &SensorFrame{frameHeader: h, State: st}, nil

	case MsgTransferMode:
		if len(frame) < transferFrameSize {
			return nil, short(transferFrameSize)
		}
		return &TransferModeFrame{frameHeader: h, Mode: TransferMode(frame[1])}, nil

	case MsgDLCSlotInfo:
		if len(frame) < slotInfoFrameSize {
			return nil, short(slotInfoFrameSize)
		}
		return &SlotInfoFrame{
			frameHeader: h,
			Filled:      uint16(frame[1])<<8 | uint16(frame[2]),
			Active:      uint16(frame[3])<<8 | uint16(frame[4]),
		}, nil

	case MsgFirmware:
		if len(frame) < firmwareFrameSize {
			return nil, short(firmwareFrameSize)
		}
		return &FirmwareFrame{frameHeader: h, Version: frame[1]}, nil
	}

	return &RawFrame{frameHeader: h}, nil
}

// MatchesPrefix reports whether frame starts with prefix.
// A nil or empty prefix matches every frame; a frame shorter than the prefix never matches.
func MatchesPrefix(prefix, frame []byte) bool {
	if len(frame) < len(prefix) {
		return false
	}
	for i, b := range prefix {
		if frame[i] != b {
			return false
		}
	}
	return true
}

// ToHex renders bytes as lowercase hex with no separators
func ToHex(data []byte) string {
	return hex.EncodeToString(data)
}
