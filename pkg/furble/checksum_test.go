// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import (
	stdadler32 "hash/adler32"
	"testing"
)

func TestAdler32(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected uint32
	}{
		{
			name:     "empty data",
			data:     []byte{},
			expected: 0x00000001,
		},
		{
			name:     "nil data",
			data:     nil,
			expected: 0x00000001,
		},
		{
			name:     "single byte a",
			data:     []byte("a"),
			expected: 0x00620062,
		},
		{
			name:     "wikipedia",
			data:     []byte("Wikipedia"),
			expected: 0x11E60398,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Adler32(tt.data)
			if result != tt.expected {
				t.Errorf("Adler32() = 0x%08X, want 0x%08X", result, tt.expected)
			}
		})
	}
}

func TestAdler32_DiffersForDifferentData(t *testing.T) {
	if Adler32([]byte("hello")) == Adler32([]byte("world")) {
		t.Error("Adler32(hello) == Adler32(world)")
	}
}

func TestAdler32_LargeBuffer(t *testing.T) {
	data := make([]byte, 100000)
	for i := range data {
		data[i] = byte(i % 256)
	}

	got := Adler32(data)
	want := stdadler32.Checksum(data)
	if got != want {
		t.Errorf("Adler32() = 0x%08X, want 0x%08X (hash/adler32)", got, want)
	}
}

func TestNewAdler32_Streaming(t *testing.T) {
	data := []byte("The quick brown fox jumps over the lazy dog")

	h := NewAdler32()
	for i := 0; i < len(data); i += 7 {
		end := i + 7
		if end > len(data) {
			end = len(data)
		}
		h.Write(data[i:end])
	}

	if h.Sum32() != Adler32(data) {
		t.Errorf("streaming Sum32() = 0x%08X, want 0x%08X", h.Sum32(), Adler32(data))
	}

	sum := h.Sum(nil)
	if len(sum) != 4 {
		t.Fatalf("Sum() length = %d, want 4", len(sum))
	}
	got := uint32(sum[0])<<24 | uint32(sum[1])<<16 | uint32(sum[2])<<8 | uint32(sum[3])
	if got != h.Sum32() {
		t.Errorf("Sum() = 0x%08X, want 0x%08X", got, h.Sum32())
	}

	h.Reset()
	if h.Sum32() != 1 {
		t.Errorf("Sum32() after Reset = 0x%08X, want 0x00000001", h.Sum32())
	}
}
