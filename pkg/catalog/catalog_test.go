// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package catalog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Thermoquad/fluffstat/pkg/furble"
)

const index = `[
  {
    "file": "context.dlc",
    "title": "Context Logo",
    "buttons": [{"title": "Logo", "action": [75, 0, 4, 4]}]
  },
  {
    "file": "hacked.dlc",
    "title": "HACKED",
    "buttons": [
      {"title": "Hacked 1", "action": [75, 0, 3, 4]},
      {"title": "Hacked 2", "action": [75, 0, 4, 4]}
    ]
  }
]`

func TestLoad(t *testing.T) {
	c, err := Load(strings.NewReader(index))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(c.Entries) != 2 {
		t.Fatalf("len(Entries) = %d, want 2", len(c.Entries))
	}
	if c.Entries[0].File != "context.dlc" || c.Entries[0].Title != "Context Logo" {
		t.Errorf("Entries[0] = %+v", c.Entries[0])
	}
	if len(c.Entries[1].Buttons) != 2 {
		t.Errorf("len(Entries[1].Buttons) = %d, want 2", len(c.Entries[1].Buttons))
	}
	if got := c.Entries[1].DeviceFilename(); got != "__HACKED.DLC" {
		t.Errorf("DeviceFilename() = %q, want __HACKED.DLC", got)
	}

	a, err := c.Entries[1].Buttons[0].Action()
	if err != nil {
		t.Fatalf("Action() error = %v", err)
	}
	cmd, _ := furble.EncodeAction(a)
	if want := []byte{0x13, 0x00, 75, 0, 3, 4}; !bytes.Equal(cmd.Bytes(), want) {
		t.Errorf("EncodeAction() = %x, want %x", cmd.Bytes(), want)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"not json", `{`},
		{"not an array", `{"file": "a.dlc"}`},
		{"missing file", `[{"title": "x"}]`},
		{"name too long", `[{"file": "verylongfilename.dlc"}]`},
		{"non-ascii name", `[{"file": "é.dlc"}]`},
		{"empty action", `[{"file": "a.dlc", "buttons": [{"title": "b", "action": []}]}]`},
		{"too many params", `[{"file": "a.dlc", "buttons": [{"title": "b", "action": [1, 2, 3, 4, 5]}]}]`},
		{"param out of range", `[{"file": "a.dlc", "buttons": [{"title": "b", "action": [256]}]}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(strings.NewReader(tt.input)); err == nil {
				t.Error("Load() error = nil, want error")
			}
		})
	}
}

func TestFind(t *testing.T) {
	c, err := Load(strings.NewReader(index))
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"hacked.dlc", "__HACKED.DLC", "dlc/hacked.dlc"} {
		e, ok := c.Find(name)
		if !ok || e.Title != "HACKED" {
			t.Errorf("Find(%q) = %+v, %v", name, e, ok)
		}
	}
	if _, ok := c.Find("missing.dlc"); ok {
		t.Error("Find(missing.dlc) found an entry")
	}
}

func TestLoadFileAndPayload(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.json"), []byte(index), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "hacked.dlc"), []byte("Wikipedia"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadFile(filepath.Join(dir, "index.json"))
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if c.Dir != dir {
		t.Errorf("Dir = %q, want %q", c.Dir, dir)
	}

	e, _ := c.Find("hacked.dlc")
	payload, sum, err := c.Payload(e)
	if err != nil {
		t.Fatalf("Payload() error = %v", err)
	}
	if string(payload) != "Wikipedia" {
		t.Errorf("Payload() = %q", payload)
	}
	if sum != 0x11E60398 {
		t.Errorf("Payload() checksum = 0x%08X, want 0x11E60398", sum)
	}

	missing, _ := c.Find("context.dlc")
	if _, _, err := c.Payload(missing); err == nil {
		t.Error("Payload() for a missing file error = nil")
	}
}
