// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package catalog loads the DLC content index: the list of DLC files the
// host can upload and the actions each one makes available.
//
// The index is a JSON array:
//
//	[{"file": "hacked.dlc", "title": "HACKED",
//	  "buttons": [{"title": "Hacked 1", "action": [75, 0, 3, 4]}]}]
package catalog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Thermoquad/fluffstat/pkg/furble"
)

// Button is an action offered by a DLC
type Button struct {
	Title  string `json:"title"`
	Params []int  `json:"action"`
}

// Action returns the button's action trigger
func (b Button) Action() (furble.Action, error) {
	params := make([]byte, len(b.Params))
	for i, p := range b.Params {
		if p < 0 || p > 0xFF {
			return furble.Action{}, fmt.Errorf("button %q: action parameter %d out of range", b.Title, p)
		}
		params[i] = byte(p)
	}
	return furble.NewAction(params...)
}

// Entry is one DLC in the catalog
type Entry struct {
	File    string   `json:"file"`
	Title   string   `json:"title"`
	Buttons []Button `json:"buttons"`
}

// DeviceFilename returns the on-device name of the entry's file
func (e Entry) DeviceFilename() string {
	return furble.DeviceFilename(e.File)
}

// Catalog is an ordered list of entries and the directory their files are
// resolved against
type Catalog struct {
	Entries []Entry
	Dir     string
}

// Load parses a catalog index. Entries keep their order. Every entry needs a
// file whose device name fits the 12-character slot name, and every button
// needs a valid action.
func Load(r io.Reader) (*Catalog, error) {
	var entries []Entry
	dec := json.NewDecoder(r)
	if err := dec.Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}

	for i, e := range entries {
		if e.File == "" {
			return nil, fmt.Errorf("catalog entry %d has no file", i)
		}
		if name := e.DeviceFilename(); !furble.ValidFilename(name) {
			return nil, fmt.Errorf("catalog entry %d: %w", i, &furble.ArgumentError{Kind: furble.InvalidName, Value: name})
		}
		for _, b := range e.Buttons {
			if _, err := b.Action(); err != nil {
				return nil, fmt.Errorf("catalog entry %d (%s): %w", i, e.File, err)
			}
		}
	}

	return &Catalog{Entries: entries}, nil
}

// LoadFile reads a catalog index from disk. Entry files resolve relative to
// the index's directory.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.Dir = filepath.Dir(path)
	return c, nil
}

// Find returns the entry whose file or device filename matches name
func (c *Catalog) Find(name string) (Entry, bool) {
	device := furble.DeviceFilename(name)
	for _, e := range c.Entries {
		if e.File == name || e.DeviceFilename() == device {
			return e, true
		}
	}
	return Entry{}, false
}

// Payload reads the entry's DLC file and returns it with its Adler-32
func (c *Catalog) Payload(e Entry) ([]byte, uint32, error) {
	path := e.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(c.Dir, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	sum := furble.NewAdler32()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.TeeReader(f, sum)); err != nil {
		return nil, 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if buf.Len() > furble.MaxDLCSize {
		return nil, 0, &furble.ArgumentError{Kind: furble.PayloadTooLarge, Value: buf.Len()}
	}
	return buf.Bytes(), sum.Sum32(), nil
}
