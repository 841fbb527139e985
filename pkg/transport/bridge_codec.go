// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Bridge framing bytes
const (
	StartByte = 0x7E
	EndByte   = 0x7F
	EscByte   = 0x7D
	EscXor    = 0x20
)

// MaxBridgePayload is the largest CBOR body a bridge frame can carry
const MaxBridgePayload = 250

// Bridge channel numbers for inbound frames. Outbound frames use the
// furble.Channel value of the target characteristic.
const (
	BridgeGeneralPlusListen = 0x10
	BridgeNordicListen      = 0x11
)

// BridgeMessage is the CBOR body of a bridge frame: [channel, data]
type BridgeMessage struct {
	_       struct{} `cbor:",toarray"`
	Channel uint8
	Data    []byte
}

// EncodeBridgeFrame builds a wire frame carrying data for the given channel.
//
// Layout before stuffing: length | CBOR [channel, data] | CRC-16 (big-endian).
// The CRC covers the length byte and the CBOR body. The frame is wrapped in
// START/END bytes; START, END and ESC inside the frame are escaped.
func EncodeBridgeFrame(channel uint8, data []byte) ([]byte, error) {
	body, err := cbor.Marshal(BridgeMessage{Channel: channel, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode bridge message: %w", err)
	}
	if len(body) > MaxBridgePayload {
		return nil, fmt.Errorf("bridge message too large: %d bytes (max %d)", len(body), MaxBridgePayload)
	}

	raw := make([]byte, 0, 1+len(body)+2)
	raw = append(raw, uint8(len(body)))
	raw = append(raw, body...)
	crc := CalculateCRC(raw)
	raw = append(raw, byte(crc>>8), byte(crc))

	frame := make([]byte, 0, len(raw)*2+2)
	frame = append(frame, StartByte)
	for _, b := range raw {
		if b == StartByte || b == EndByte || b == EscByte {
			frame = append(frame, EscByte, b^EscXor)
		} else {
			frame = append(frame, b)
		}
	}
	frame = append(frame, EndByte)
	return frame, nil
}

// Decoder states
const (
	stateIdle = iota
	stateLength
	stateBody
	stateCRC1
	stateCRC2
	stateEnd
)

// BridgeDecoder reassembles bridge frames from a byte stream
type BridgeDecoder struct {
	state      int
	escapeNext bool
	length     int
	buffer     []byte
	crc        uint16
}

// NewBridgeDecoder creates a decoder waiting for a START byte
func NewBridgeDecoder() *BridgeDecoder {
	return &BridgeDecoder{buffer: make([]byte, 0, MaxBridgePayload+1)}
}

// Reset drops any partial frame
func (d *BridgeDecoder) Reset() {
	d.state = stateIdle
	d.escapeNext = false
	d.length = 0
	d.buffer = d.buffer[:0]
	d.crc = 0
}

// DecodeByte feeds one byte. It returns a message when b completes a valid
// frame, nil while a frame is incomplete, and an error for a corrupt frame.
// Bytes outside a frame are ignored.
func (d *BridgeDecoder) DecodeByte(b byte) (*BridgeMessage, error) {
	if !d.escapeNext {
		switch b {
		case EscByte:
			d.escapeNext = true
			return nil, nil
		case StartByte:
			d.Reset()
			d.state = stateLength
			return nil, nil
		case EndByte:
			return d.finish()
		}
	} else {
		b ^= EscXor
		d.escapeNext = false
	}

	switch d.state {
	case stateIdle:
		return nil, nil

	case stateLength:
		if b > MaxBridgePayload {
			d.Reset()
			return nil, fmt.Errorf("invalid length: %d (max %d)", b, MaxBridgePayload)
		}
		d.length = int(b)
		d.buffer = append(d.buffer, b)
		if d.length == 0 {
			d.state = stateCRC1
		} else {
			d.state = stateBody
		}

	case stateBody:
		d.buffer = append(d.buffer, b)
		if len(d.buffer) > d.length {
			d.state = stateCRC1
		}

	case stateCRC1:
		d.crc = uint16(b) << 8
		d.state = stateCRC2

	case stateCRC2:
		d.crc |= uint16(b)
		d.state = stateEnd

	default:
		d.Reset()
		return nil, fmt.Errorf("unexpected byte 0x%02X after CRC", b)
	}
	return nil, nil
}

func (d *BridgeDecoder) finish() (*BridgeMessage, error) {
	defer d.Reset()

	if d.state != stateEnd {
		if d.state == stateIdle {
			return nil, nil
		}
		return nil, fmt.Errorf("unexpected END byte in state %d", d.state)
	}

	if want := CalculateCRC(d.buffer); d.crc != want {
		return nil, fmt.Errorf("CRC mismatch: expected 0x%04X, got 0x%04X", want, d.crc)
	}

	var msg BridgeMessage
	if err := cbor.Unmarshal(d.buffer[1:], &msg); err != nil {
		return nil, fmt.Errorf("failed to decode bridge message: %w", err)
	}
	return &msg, nil
}
