// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import (
	"fmt"
	"strings"
)

// FormatNotification formats a notification into a human-readable string
func FormatNotification(n Notification) string {
	timestamp := n.Timestamp().Format("15:04:05.000")
	result := fmt.Sprintf("[%s] %s (0x%02X) len=%d\n", timestamp, FormatMessageType(n.Type()), n.Type(), len(n.Raw()))
	return result + FormatPayload(n)
}

// FormatCommand formats an outbound command into a human-readable string
func FormatCommand(c Command) string {
	return fmt.Sprintf("-> %s %s (0x%02X) %s\n", c.Channel(), FormatCommandType(c.Opcode()), c.Opcode(), ToHex(c.data))
}

// FormatMessageType returns the human-readable name for a notification type
func FormatMessageType(msgType uint8) string {
	switch msgType {
	case MsgSensorState:
		return "SENSOR_STATE"
	case MsgTransferMode:
		return "FILE_TRANSFER_MODE"
	case MsgDLCSlotInfo:
		return "DLC_SLOT_INFO"
	case MsgFirmware:
		return "FIRMWARE_VERSION"
	case OpNordicPacketAck:
		return "NORDIC_PACKET_ACK"
	default:
		return "UNKNOWN"
	}
}

// FormatCommandType returns the human-readable name for a command opcode
func FormatCommandType(op uint8) string {
	switch op {
	case OpAction1, OpAction2, OpAction3, OpAction4:
		return "ACTION"
	case OpAntennaColor:
		return "ANTENNA_COLOR"
	case OpDLCUpload:
		return "DLC_UPLOAD"
	case OpDLCLoad:
		return "DLC_LOAD"
	case OpDLCActivate:
		return "DLC_ACTIVATE"
	case OpDLCDeactivate:
		return "DLC_DEACTIVATE"
	case OpDLCSlotInfo:
		return "DLC_SLOT_INFO"
	case OpSlotInfo:
		return "SLOT_INFO"
	case OpDLCDelete:
		return "DLC_DELETE"
	case OpFirmware:
		return "FIRMWARE_VERSION"
	case OpNordicPacketAck:
		return "NORDIC_PACKET_ACK"
	case OpFileTransfer:
		return "FILE_TRANSFER_MODE"
	default:
		return "DATA"
	}
}

// FormatPayload formats the decoded fields of a notification
func FormatPayload(n Notification) string {
	switch f := n.(type) {
	case *SensorFrame:
		return FormatState(f.State)
	case *TransferModeFrame:
		return fmt.Sprintf("  Mode: %s (%d)\n", f.Mode, uint8(f.Mode))
	case *SlotInfoFrame:
		return fmt.Sprintf("  Filled: 0x%04X, Active: 0x%04X\n  Slots: %s\n", f.Filled, f.Active, f.Slots())
	case *FirmwareFrame:
		return fmt.Sprintf("  Version: %d\n", f.Version)
	}
	return formatHexDump(n.Raw())
}

// FormatState formats a sensor snapshot
func FormatState(st State) string {
	return fmt.Sprintf("  Antenna: %s, Orientation: %s, Sensors: %s\n", st.Antenna, st.Orientation, st.Sensors)
}

// formatHexDump formats raw bytes, 16 per line
func formatHexDump(data []byte) string {
	var b strings.Builder
	b.WriteString("  Payload: ")
	for i, c := range data {
		if i > 0 && i%16 == 0 {
			b.WriteString("\n           ")
		}
		fmt.Fprintf(&b, "%02X ", c)
	}
	b.WriteString("\n")
	return b.String()
}
