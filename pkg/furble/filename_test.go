// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import (
	"testing"
	"unicode/utf8"
)

func TestDeviceFilename(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"http://example.com/test.dlc", "____TEST.DLC"},
		{"dlc/test.dlc", "____TEST.DLC"},
		{"path/to/exactly12.dl", "EXACTLY12.DL"},
		{"path/lowercase.dlc", "LOWERCASE.DLC"},
		{"a.dlc", "_______A.DLC"},
		{"path/to/myfile", "______MYFILE"},
		{"path/to/myfile.dlc", "__MYFILE.DLC"},
		{"path/to/my-file.dlc", "_MY-FILE.DLC"},
		{"verylongname.dlc", "VERYLONGNAME.DLC"},
		{"path/verylongfilename.dlc", "VERYLONGFILENAME.DLC"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := DeviceFilename(tt.path); got != tt.want {
				t.Errorf("DeviceFilename(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestDeviceFilename_Idempotent(t *testing.T) {
	for _, name := range []string{"____TEST.DLC", "EXACTLY12.DL", "______MYFILE"} {
		if got := DeviceFilename(name); got != name {
			t.Errorf("DeviceFilename(%q) = %q, want unchanged", name, got)
		}
		if got := DeviceFilename(DeviceFilename("dir/" + name)); got != name {
			t.Errorf("DeviceFilename twice = %q, want %q", got, name)
		}
	}
}

func TestDeviceFilename_NeverTruncates(t *testing.T) {
	name := "abcdefghijklmnop.dlc"
	if got := DeviceFilename(name); len(got) != len(name) {
		t.Errorf("len(DeviceFilename(%q)) = %d, want %d", name, len(got), len(name))
	}
}

func TestDeviceFilename_NonASCII(t *testing.T) {
	got := DeviceFilename("dir/é.dlc")
	if want := "_______É.DLC"; got != want {
		t.Errorf("DeviceFilename() = %q, want %q", got, want)
	}
	if n := utf8.RuneCountInString(got); n != FilenameLength {
		t.Errorf("DeviceFilename() has %d characters, want %d", n, FilenameLength)
	}
	if ValidFilename(got) {
		t.Errorf("ValidFilename(%q) = true, want false", got)
	}
}

func TestValidFilename(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"____TEST.DLC", true},
		{"_MY-FILE.DLC", true},
		{"____test.dlc", false},
		{"TEST.DLC", false},
		{"VERYLONGNAME.DLC", false},
		{"______É.DLC", false},
		{"____TE\x00T.DLC", false},
	}

	for _, tt := range tests {
		if got := ValidFilename(tt.name); got != tt.want {
			t.Errorf("ValidFilename(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
