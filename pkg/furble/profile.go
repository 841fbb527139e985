// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

// FluffServiceUUID is the primary GATT service exposed by Furby Connect
const FluffServiceUUID = "dab91435-b5a1-e29c-b041-bcd562613bde"

// Characteristic UUIDs of the fluff service
const (
	GeneralPlusListenUUID = "dab91382-b5a1-e29c-b041-bcd562613bde"
	GeneralPlusWriteUUID  = "dab91383-b5a1-e29c-b041-bcd562613bde"
	NordicListenUUID      = "dab90756-b5a1-e29c-b041-bcd562613bde"
	NordicWriteUUID       = "dab90757-b5a1-e29c-b041-bcd562613bde"
	RSSIListenUUID        = "dab90755-b5a1-e29c-b041-bcd562613bde"
	F2FListenUUID         = "dab91440-b5a1-e29c-b041-bcd562613bde"
	F2FWriteUUID          = "dab91441-b5a1-e29c-b041-bcd562613bde"
	FileWriteUUID         = "dab90758-b5a1-e29c-b041-bcd562613bde"
)

// Channel identifies the characteristic a command is written to
type Channel uint8

// Write channels
const (
	ChannelGeneralPlus Channel = iota
	ChannelNordic
	ChannelFile
)

// String returns the characteristic name of the channel
func (c Channel) String() string {
	switch c {
	case ChannelGeneralPlus:
		return "GeneralPlusWrite"
	case ChannelNordic:
		return "NordicWrite"
	case ChannelFile:
		return "FileWrite"
	default:
		return "Unknown"
	}
}

// UUID returns the characteristic UUID written for the channel
func (c Channel) UUID() string {
	switch c {
	case ChannelNordic:
		return NordicWriteUUID
	case ChannelFile:
		return FileWriteUUID
	default:
		return GeneralPlusWriteUUID
	}
}

// ListenUUIDs lists the characteristics the host subscribes to
var ListenUUIDs = []string{
	GeneralPlusListenUUID,
	NordicListenUUID,
}

// WriteUUIDs lists the characteristics the host writes to, indexed by Channel
var WriteUUIDs = []string{
	GeneralPlusWriteUUID,
	NordicWriteUUID,
	FileWriteUUID,
}
