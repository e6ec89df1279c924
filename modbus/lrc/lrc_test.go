// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package lrc

import (
	"testing"
)

func TestLRC(t *testing.T) {
	var lrc LRC
	lrc.Reset()
	lrc.PushBytes([]byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01})

	if lrc.Value() != 0xFB {
		t.Fatalf("lrc expected %v, actual %v", 0xFB, lrc.Value())
	}
}

func TestLRC_Wraps(t *testing.T) {
	var lrc LRC
	lrc.Reset().PushByte(0xF0).PushByte(0x20)

	if lrc.Value() != 0xF0 {
		t.Fatalf("lrc expected %v, actual %v", 0xF0, lrc.Value())
	}
}

func TestLRC_SumWithChecksumIsZero(t *testing.T) {
	data := []byte{0x11, 0x03, 0x00, 0x6B, 0x00, 0x03}
	var lrc LRC
	sum := lrc.Reset().PushBytes(data).Value()

	var check LRC
	if v := check.Reset().PushBytes(data).PushByte(sum).Value(); v != 0 {
		t.Fatalf("lrc over data+checksum expected 0, actual %v", v)
	}
	if sum != 0x7E {
		t.Fatalf("lrc expected %v, actual %v", 0x7E, sum)
	}
}
