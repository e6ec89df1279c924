// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package lrc

// LRC is the Modbus ASCII longitudinal redundancy check: the two's
// complement of the 8-bit sum of every byte between the colon and the LRC.
type LRC struct {
	sum uint8
}

func (lrc *LRC) Reset() *LRC {
	lrc.sum = 0
	return lrc
}

func (lrc *LRC) PushByte(b byte) *LRC {
	lrc.sum += b
	return lrc
}

func (lrc *LRC) PushBytes(data []byte) *LRC {
	for _, b := range data {
		lrc.sum += b
	}
	return lrc
}

func (lrc *LRC) Value() byte {
	return -lrc.sum
}
