// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import "testing"

func TestParseSlots(t *testing.T) {
	tests := []struct {
		name   string
		filled uint16
		active uint16
		want   map[int]SlotStatus
	}{
		{"all empty", 0, 0, map[int]SlotStatus{0: SlotEmpty, 13: SlotEmpty}},
		{"single filled", 0b1, 0, map[int]SlotStatus{0: SlotFilled, 1: SlotEmpty}},
		{"single active", 0b1, 0b1, map[int]SlotStatus{0: SlotActive}},
		{"multiple filled", 0b1010, 0, map[int]SlotStatus{0: SlotEmpty, 1: SlotFilled, 2: SlotEmpty, 3: SlotFilled}},
		{"mixed", 0b1111, 0b0010, map[int]SlotStatus{0: SlotFilled, 1: SlotActive, 2: SlotFilled, 3: SlotFilled}},
		{"last slot", 1 << 13, 0, map[int]SlotStatus{13: SlotFilled, 12: SlotEmpty}},
		{"bits beyond slot 13 ignored", 0xC000, 0xC000, map[int]SlotStatus{13: SlotEmpty}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			slots := ParseSlots(tt.filled, tt.active)
			for i, w := range tt.want {
				if slots[i] != w {
					t.Errorf("slot %d = %s, want %s", i, slots[i], w)
				}
			}
		})
	}
}

func TestParseSlots_ActiveImpliesFilled(t *testing.T) {
	for active := uint16(0); active < 1<<SlotCount; active += 37 {
		slots := ParseSlots(0, active)
		for i, st := range slots {
			if active&(1<<i) != 0 && st != SlotActive {
				t.Fatalf("active=0x%04X slot %d = %s, want active", active, i, st)
			}
		}
	}
}

func TestSlots_Helpers(t *testing.T) {
	slots := ParseSlots(0b0111, 0b0010)

	if got := slots.FirstEmpty(); got != 3 {
		t.Errorf("FirstEmpty() = %d, want 3", got)
	}
	if got := slots.Active(); got != 1 {
		t.Errorf("Active() = %d, want 1", got)
	}

	up := slots.WithUploading(3)
	if up[3] != SlotUploading {
		t.Errorf("WithUploading(3)[3] = %s, want uploading", up[3])
	}
	if slots[3] != SlotEmpty {
		t.Error("WithUploading() modified the receiver")
	}

	full := ParseSlots(0x3FFF, 0)
	if got := full.FirstEmpty(); got != -1 {
		t.Errorf("FirstEmpty() on full slots = %d, want -1", got)
	}
}
