// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import "testing"

// sensorFrame builds a 10-byte sensor frame with the given bytes 1, 2 and 4
func sensorFrame(b1, b2, b4 byte) []byte {
	f := make([]byte, 10)
	f[0] = MsgSensorState
	f[1] = b1
	f[2] = b2
	f[4] = b4
	return f
}

func TestDecodeState_Antenna(t *testing.T) {
	tests := []struct {
		name string
		b1   byte
		b2   byte
		want Antenna
	}{
		{"none", 0x00, 0x00, AntennaUnknown},
		{"left", 0x02, 0x00, AntennaLeft},
		{"right", 0x01, 0x00, AntennaRight},
		{"left and right bits", 0x03, 0x00, AntennaRight},
		{"down", 0x00, 0xC0, AntennaDown},
		{"down overrides left", 0x02, 0xC0, AntennaDown},
		{"down overrides right", 0x03, 0xC0, AntennaDown},
		{"forward", 0x00, 0x40, AntennaForward},
		{"forward overrides right", 0x01, 0x40, AntennaForward},
		{"back", 0x00, 0x80, AntennaBack},
		{"forward with sensors", 0x00, 0x41, AntennaForward},
		{"both bits with sensors is forward", 0x00, 0xC1, AntennaForward},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := DecodeState(sensorFrame(tt.b1, tt.b2, 0))
			if err != nil {
				t.Fatalf("DecodeState() error = %v", err)
			}
			if st.Antenna != tt.want {
				t.Errorf("Antenna = %s, want %s", st.Antenna, tt.want)
			}
		})
	}
}

func TestDecodeState_Orientation(t *testing.T) {
	tests := []struct {
		b4   byte
		want Orientation
	}{
		{0x00, OrientationUnknown},
		{0x01, OrientationUpright},
		{0x02, OrientationUpsideDown},
		{0x04, OrientationLyingRight},
		{0x08, OrientationLyingLeft},
		{0x10, OrientationUnknown},
		{0x20, OrientationLeaningBack},
		{0x40, OrientationTiltedRight},
		{0x80, OrientationTiltedLeft},
		{0x03, OrientationUpright},
		{0xC0, OrientationTiltedRight},
		{0xFF, OrientationUpright},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			st, err := DecodeState(sensorFrame(0, 0, tt.b4))
			if err != nil {
				t.Fatalf("DecodeState() error = %v", err)
			}
			if st.Orientation != tt.want {
				t.Errorf("byte4=0x%02X: Orientation = %s, want %s", tt.b4, st.Orientation, tt.want)
			}
		})
	}
}

func TestDecodeState_Sensors(t *testing.T) {
	tests := []struct {
		name string
		b2   byte
		want Sensors
	}{
		{"no sensors", 0x00, 0},
		{"tickles", 0x0F, TickleHeadBack | TickleTummy | TickleRightSide | TickleLeftSide},
		{"tail and tongue", 0x30, PullTail | PushTongue},
		{"antenna bits ignored", 0xC0, 0},
		{"all", 0xFF, AllSensors},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := DecodeState(sensorFrame(0, tt.b2, 0))
			if err != nil {
				t.Fatalf("DecodeState() error = %v", err)
			}
			if st.Sensors != tt.want {
				t.Errorf("Sensors = %s, want %s", st.Sensors, tt.want)
			}
		})
	}
}

func TestDecodeState_AllZero(t *testing.T) {
	st, err := DecodeState(make([]byte, 5))
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}
	if st.Antenna != AntennaUnknown || st.Orientation != OrientationUnknown || st.Sensors != 0 {
		t.Errorf("DecodeState(zeros) = %+v, want zero state", st)
	}
}

func TestDecodeState_AllOnes(t *testing.T) {
	frame := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	st, err := DecodeState(frame)
	if err != nil {
		t.Fatalf("DecodeState() error = %v", err)
	}
	for _, name := range []string{"tickle_head_back", "tickle_tummy", "tickle_right_side", "tickle_left_side", "pull_tail", "push_tongue"} {
		found := false
		for _, n := range st.Sensors.Names() {
			if n == name {
				found = true
			}
		}
		if !found {
			t.Errorf("sensor %s not set", name)
		}
	}
}

func TestDecodeState_TooShort(t *testing.T) {
	for n := 0; n < 5; n++ {
		_, err := DecodeState(make([]byte, n))
		if !IsProtocolError(err) {
			t.Errorf("DecodeState(len=%d) error = %v, want ProtocolError", n, err)
		}
	}
}
