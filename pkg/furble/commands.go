// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import "fmt"

// MaxDLCSize is the largest payload the 24-bit upload length field can carry
const MaxDLCSize = 1<<24 - 1

// Command is an outbound frame and the characteristic it is written to.
// Commands are immutable once constructed; Bytes returns a copy.
type Command struct {
	channel Channel
	data    []byte
}

func newCommand(ch Channel, data ...byte) Command {
	return Command{channel: ch, data: data}
}

// Channel returns the characteristic the command is written to
func (c Command) Channel() Channel {
	return c.channel
}

// Opcode returns the first byte of the frame (0 for empty frames)
func (c Command) Opcode() byte {
	if len(c.data) == 0 {
		return 0
	}
	return c.data[0]
}

// Bytes returns a copy of the frame bytes
func (c Command) Bytes() []byte {
	out := make([]byte, len(c.data))
	copy(out, c.data)
	return out
}

// Len returns the frame length in bytes
func (c Command) Len() int {
	return len(c.data)
}

// String returns a short description for logs
func (c Command) String() string {
	return fmt.Sprintf("%s[%s]", c.channel, ToHex(c.data))
}

// Action is an action trigger with one to four positional parameters
// (input, index, subindex, specific). Build one with Action1..Action4 or NewAction.
type Action struct {
	params [4]byte
	arity  int
}

// Action1 selects an action by input only
func Action1(input byte) Action {
	return Action{params: [4]byte{input}, arity: 1}
}

// Action2 selects an action by input and index
func Action2(input, index byte) Action {
	return Action{params: [4]byte{input, index}, arity: 2}
}

// Action3 selects an action by input, index and subindex
func Action3(input, index, subindex byte) Action {
	return Action{params: [4]byte{input, index, subindex}, arity: 3}
}

// Action4 selects a specific action
func Action4(input, index, subindex, specific byte) Action {
	return Action{params: [4]byte{input, index, subindex, specific}, arity: 4}
}

// NewAction builds an Action from a parameter list such as a catalog button.
// Returns an ArgumentError with kind InvalidArity for zero or more than four parameters.
func NewAction(params ...byte) (Action, error) {
	switch len(params) {
	case 1:
		return Action1(params[0]), nil
	case 2:
		return Action2(params[0], params[1]), nil
	case 3:
		return Action3(params[0], params[1], params[2]), nil
	case 4:
		return Action4(params[0], params[1], params[2], params[3]), nil
	default:
		return Action{}, &ArgumentError{Kind: InvalidArity, Value: len(params)}
	}
}

// Arity returns the number of parameters (0 for the zero Action)
func (a Action) Arity() int {
	return a.arity
}

// Params returns the positional parameters
func (a Action) Params() []byte {
	out := make([]byte, a.arity)
	copy(out, a.params[:a.arity])
	return out
}

// String formats the action as its parameter list
func (a Action) String() string {
	return fmt.Sprintf("%v", a.Params())
}

// EncodeAction creates an action trigger command (0x10-0x13 by arity).
// Returns an ArgumentError for the zero Action.
func EncodeAction(a Action) (Command, error) {
	if a.arity < 1 || a.arity > 4 {
		return Command{}, &ArgumentError{Kind: InvalidArity, Value: a.arity}
	}
	data := make([]byte, 0, 2+a.arity)
	data = append(data, byte(OpAction1+a.arity-1), 0x00)
	data = append(data, a.params[:a.arity]...)
	return newCommand(ChannelGeneralPlus, data...), nil
}

// EncodeAntennaColor creates an antenna LED color command (0x14)
func EncodeAntennaColor(r, g, b byte) Command {
	return newCommand(ChannelGeneralPlus, OpAntennaColor, r, g, b)
}

// ValidateSlot returns an ArgumentError if slot is outside 0-13
func ValidateSlot(slot int) error {
	if slot < MinSlot || slot > MaxSlot {
		return &ArgumentError{Kind: SlotOutOfRange, Value: slot}
	}
	return nil
}

func slotCommand(op byte, slot int) (Command, error) {
	if err := ValidateSlot(slot); err != nil {
		return Command{}, err
	}
	return newCommand(ChannelGeneralPlus, op, byte(slot)), nil
}

// EncodeDLCLoad creates a command loading the DLC in slot (0x60)
func EncodeDLCLoad(slot int) (Command, error) {
	return slotCommand(OpDLCLoad, slot)
}

// EncodeDLCDelete creates a command deleting the DLC in slot (0x74)
func EncodeDLCDelete(slot int) (Command, error) {
	return slotCommand(OpDLCDelete, slot)
}

// EncodeDLCActivate creates a command activating the loaded DLC (0x61)
func EncodeDLCActivate() Command {
	return newCommand(ChannelGeneralPlus, OpDLCActivate)
}

// EncodeDLCDeactivate creates a command deactivating the DLC in slot (0x62)
func EncodeDLCDeactivate(slot int) (Command, error) {
	return slotCommand(OpDLCDeactivate, slot)
}

// EncodeDLCSlotInfoRequest requests the filled/active slot bitmaps (0x72)
func EncodeDLCSlotInfoRequest() Command {
	return newCommand(ChannelGeneralPlus, OpDLCSlotInfo)
}

// EncodeSlotInfoRequest requests details about a single slot (0x73)
func EncodeSlotInfoRequest(slot int) (Command, error) {
	return slotCommand(OpSlotInfo, slot)
}

// EncodeFirmwareRequest requests the firmware version (0xFE)
func EncodeFirmwareRequest() Command {
	return newCommand(ChannelGeneralPlus, OpFirmware)
}

// EncodeNordicPacketAck enables or disables Nordic packet acknowledgments (0x09)
func EncodeNordicPacketAck(enabled bool) Command {
	var flag byte
	if enabled {
		flag = 0x01
	}
	return newCommand(ChannelNordic, OpNordicPacketAck, flag, 0x00)
}

// EncodeEndTransfer asks the toy to end the current file transfer (0x24 0x01)
func EncodeEndTransfer() Command {
	return newCommand(ChannelNordic, OpFileTransfer, byte(EndCurrentTransfer))
}

// EncodeDLCUpload creates the start-transfer announcement (0x50).
//
// Layout: 0x50 0x00 | length (3 bytes, big-endian) | slot | name (12 bytes) |
// Adler-32 (4 bytes, big-endian). The name must already be in device form.
func EncodeDLCUpload(slot int, name string, length int, checksum uint32) (Command, error) {
	if err := ValidateSlot(slot); err != nil {
		return Command{}, err
	}
	if len(name) != FilenameLength {
		return Command{}, &ArgumentError{Kind: InvalidName, Value: name}
	}
	if length < 0 || length > MaxDLCSize {
		return Command{}, &ArgumentError{Kind: PayloadTooLarge, Value: length}
	}

	data := make([]byte, 0, 2+3+1+FilenameLength+4)
	data = append(data, OpDLCUpload, 0x00)
	data = append(data, byte(length>>16), byte(length>>8), byte(length))
	data = append(data, byte(slot))
	data = append(data, name...)
	data = append(data, byte(checksum>>24), byte(checksum>>16), byte(checksum>>8), byte(checksum))
	return newCommand(ChannelGeneralPlus, data...), nil
}

// EncodeChunk wraps a slice of DLC payload for the FileWrite characteristic
func EncodeChunk(chunk []byte) Command {
	data := make([]byte, len(chunk))
	copy(data, chunk)
	return newCommand(ChannelFile, data...)
}

// MustEncodeAction is like EncodeAction but panics on invalid input.
// Intended for constant actions known at compile time.
func MustEncodeAction(a Action) Command {
	c, err := EncodeAction(a)
	if err != nil {
		panic(fmt.Sprintf("furble: encode error: %v", err))
	}
	return c
}
