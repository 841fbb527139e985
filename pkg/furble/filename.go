// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import (
	"strings"
	"unicode/utf8"
)

// DeviceFilename converts a DLC path or URL into its on-device form: the
// basename, upper-cased and left-padded with '_' to 12 characters. Names longer
// than 12 characters are returned unpadded at full length.
func DeviceFilename(path string) string {
	base := strings.ToUpper(path[strings.LastIndex(path, "/")+1:])
	if n := utf8.RuneCountInString(base); n < FilenameLength {
		base = strings.Repeat(string(FilenamePad), FilenameLength-n) + base
	}
	return base
}

// ValidFilename reports whether name is already in canonical device form:
// 12 bytes of upper-case printable ASCII
func ValidFilename(name string) bool {
	if len(name) != FilenameLength {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x20 || c > 0x7E || ('a' <= c && c <= 'z') {
			return false
		}
	}
	return true
}
