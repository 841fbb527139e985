// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import "strings"

// Antenna is the decoded antenna position
type Antenna int

// Antenna positions
const (
	AntennaUnknown Antenna = iota
	AntennaLeft
	AntennaRight
	AntennaForward
	AntennaBack
	AntennaDown
)

func (a Antenna) String() string {
	switch a {
	case AntennaLeft:
		return "left"
	case AntennaRight:
		return "right"
	case AntennaForward:
		return "forward"
	case AntennaBack:
		return "back"
	case AntennaDown:
		return "down"
	default:
		return "unknown"
	}
}

// Orientation is the decoded body orientation
type Orientation int

// Orientations
const (
	OrientationUnknown Orientation = iota
	OrientationUpright
	OrientationUpsideDown
	OrientationLyingRight
	OrientationLyingLeft
	OrientationLeaningBack
	OrientationTiltedRight
	OrientationTiltedLeft
)

func (o Orientation) String() string {
	switch o {
	case OrientationUpright:
		return "upright"
	case OrientationUpsideDown:
		return "upside-down"
	case OrientationLyingRight:
		return "lying on right side"
	case OrientationLyingLeft:
		return "lying on left side"
	case OrientationLeaningBack:
		return "leaning back"
	case OrientationTiltedRight:
		return "tilted right"
	case OrientationTiltedLeft:
		return "tilted left"
	default:
		return "unknown"
	}
}

// Sensors is a set of independent touch sensor flags (byte 2, bits 0-5)
type Sensors uint8

// Sensor flags
const (
	TickleHeadBack Sensors = 1 << iota
	TickleTummy
	TickleRightSide
	TickleLeftSide
	PullTail
	PushTongue

	AllSensors = TickleHeadBack | TickleTummy | TickleRightSide | TickleLeftSide | PullTail | PushTongue
)

var sensorNames = []struct {
	flag Sensors
	name string
}{
	{TickleHeadBack, "tickle_head_back"},
	{TickleTummy, "tickle_tummy"},
	{TickleRightSide, "tickle_right_side"},
	{TickleLeftSide, "tickle_left_side"},
	{PullTail, "pull_tail"},
	{PushTongue, "push_tongue"},
}

// Has reports whether every flag in f is set
func (s Sensors) Has(f Sensors) bool {
	return s&f == f
}

// Names returns the names of the set flags in bit order
func (s Sensors) Names() []string {
	names := []string{}
	for _, sn := range sensorNames {
		if s.Has(sn.flag) {
			names = append(names, sn.name)
		}
	}
	return names
}

func (s Sensors) String() string {
	if s == 0 {
		return "none"
	}
	return strings.Join(s.Names(), ",")
}

// State is a decoded sensor snapshot
type State struct {
	Antenna     Antenna
	Orientation Orientation
	Sensors     Sensors
}

// orientationBits lists byte 4 bits in priority order; the first set bit wins
var orientationBits = []struct {
	mask        byte
	orientation Orientation
}{
	{0x01, OrientationUpright},
	{0x02, OrientationUpsideDown},
	{0x04, OrientationLyingRight},
	{0x08, OrientationLyingLeft},
	{0x20, OrientationLeaningBack},
	{0x40, OrientationTiltedRight},
	{0x80, OrientationTiltedLeft},
}

// DecodeState interprets a sensor status frame.
//
// Byte 1 carries the left (bit 1) and right (bit 0) antenna bits; right is
// checked last and wins when both are set. Byte 2 equal to 0xC0 means down,
// otherwise bit 6 is forward and bit 7 back; these override left/right.
// Byte 2 bits 0-5 are the touch sensors. Byte 4 carries the orientation.
func DecodeState(frame []byte) (State, error) {
	if len(frame) < sensorFrameSize {
		var t uint8
		if len(frame) > 0 {
			t = frame[0]
		}
		return State{}, &ProtocolError{Kind: FrameTooShort, Type: t, Length: len(frame), Want: sensorFrameSize}
	}

	var st State

	if frame[1]&0x02 != 0 {
		st.Antenna = AntennaLeft
	}
	if frame[1]&0x01 != 0 {
		st.Antenna = AntennaRight
	}
	if frame[2] == 0xC0 {
		st.Antenna = AntennaDown
	} else if frame[2]&0x40 != 0 {
		st.Antenna = AntennaForward
	} else if frame[2]&0x80 != 0 {
		st.Antenna = AntennaBack
	}

	for _, ob := range orientationBits {
		if frame[4]&ob.mask != 0 {
			st.Orientation = ob.orientation
			break
		}
	}

	st.Sensors = Sensors(frame[2]) & AllSensors

	return st, nil
}
