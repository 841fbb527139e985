// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package furble

import "hash"

// Adler32 computes the Adler-32 checksum used to verify DLC uploads
func Adler32(data []byte) uint32 {
	a, b := uint32(1), uint32(0)
	for _, c := range data {
		a = (a + uint32(c)) % adlerMod
		b = (b + a) % adlerMod
	}
	return b<<16 | a
}

// adler32 is a streaming Adler-32 digest
type adler32 struct {
	a, b uint32
}

// NewAdler32 returns a hash.Hash32 computing the same checksum as Adler32
func NewAdler32() hash.Hash32 {
	d := &adler32{}
	d.Reset()
	return d
}

func (d *adler32) Write(p []byte) (int, error) {
	for _, c := range p {
		d.a = (d.a + uint32(c)) % adlerMod
		d.b = (d.b + d.a) % adlerMod
	}
	return len(p), nil
}

func (d *adler32) Sum32() uint32 { return d.b<<16 | d.a }

func (d *adler32) Sum(in []byte) []byte {
	s := d.Sum32()
	return append(in, byte(s>>24), byte(s>>16), byte(s>>8), byte(s))
}

func (d *adler32) Reset() {
	d.a = 1
	d.b = 0
}

func (d *adler32) Size() int      { return 4 }
func (d *adler32) BlockSize() int { return 4 }
