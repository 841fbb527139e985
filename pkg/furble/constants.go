// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package furble provides a Go implementation of the Furby Connect BLE protocol.
//
// Furby Connect exposes a single "fluff" GATT service. Commands are written to
// the GeneralPlus and Nordic characteristics, DLC payloads to the FileWrite
// characteristic, and the toy reports sensor state, transfer progress and slot
// information through notifications. This package provides command encoding,
// notification decoding, the Adler-32 checksum used for DLC uploads, and
// formatting helpers.
package furble

// Slot limits
const (
	SlotCount = 14
	MinSlot   = 0
	MaxSlot   = SlotCount - 1
)

// FilenameLength is the canonical on-device DLC filename length
const FilenameLength = 12

// FilenamePad is used to left-pad short DLC filenames
const FilenamePad = '_'

// DefaultChunkSize is the DLC payload size per FileWrite (23-byte ATT MTU minus 3)
const DefaultChunkSize = 20

// Adler-32 configuration
const adlerMod = 65521

// GeneralPlus commands (host → Furby) 0x10-0x1F
const (
	OpAction1      = 0x10
	OpAction2      = 0x11
	OpAction3      = 0x12
	OpAction4      = 0x13
	OpAntennaColor = 0x14
)

// GeneralPlus DLC commands (host → Furby) 0x50-0x7F
const (
	OpDLCUpload     = 0x50
	OpDLCLoad       = 0x60
	OpDLCActivate   = 0x61
	OpDLCDeactivate = 0x62
	OpDLCSlotInfo   = 0x72
	OpSlotInfo      = 0x73
	OpDLCDelete     = 0x74
	OpFirmware      = 0xFE
)

// Nordic commands (host → Furby)
const (
	OpNordicPacketAck = 0x09
	OpFileTransfer    = 0x24
)

// Notification types (Furby → host)
const (
	MsgSensorState  = 0x21
	MsgTransferMode = OpFileTransfer
	MsgDLCSlotInfo  = OpDLCSlotInfo
	MsgFirmware     = OpFirmware
)

// Minimum notification lengths
const (
	sensorFrameSize   = 5
	transferFrameSize = 2
	slotInfoFrameSize = 5
	firmwareFrameSize = 2
)

// TransferMode is the file transfer mode signalled in a 0x24 notification
type TransferMode uint8

// Transfer mode values
const (
	EndCurrentTransfer  TransferMode = 0x01
	ReadyToReceive      TransferMode = 0x02
	FileTransferTimeout TransferMode = 0x03
	ReadyToAppend       TransferMode = 0x04
	FileReceivedOk      TransferMode = 0x05
	FileReceivedErr     TransferMode = 0x06
)

// String returns the protocol name of the transfer mode
func (m TransferMode) String() string {
	switch m {
	case EndCurrentTransfer:
		return "EndCurrentTransfer"
	case ReadyToReceive:
		return "ReadyToReceive"
	case FileTransferTimeout:
		return "FileTransferTimeout"
	case ReadyToAppend:
		return "ReadyToAppend"
	case FileReceivedOk:
		return "FileReceivedOk"
	case FileReceivedErr:
		return "FileReceivedErr"
	default:
		return "Unknown"
	}
}

// Valid reports whether m is a known transfer mode
func (m TransferMode) Valid() bool {
	return m >= EndCurrentTransfer && m <= FileReceivedErr
}
