// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package counter

import (
	"math"
	"time"

	"github.com/ffutop/frequencer/modbus"
)

// Register layout, relative to the window base:
//
//	0     status, bit 0 frequency valid, bit 1 input lost
//	1-2   frequency, whole Hz
//	3     frequency, mHz fraction
//	4-5   average, whole Hz
//	6     average, mHz fraction
//	7     gate period
//	8     gate time in ms
//	9-10  measurements
//
// Wide values are high word first.
const WindowSize = 11

const (
	StatusValid = 1 << 0
	StatusLost  = 1 << 1
)

// Handler serves the counter as read-only registers.
type Handler struct {
	c    *Counter
	base uint16
}

// NewHandler creates a Handler whose window starts at base.
func NewHandler(c *Counter, base uint16) *Handler {
	return &Handler{c: c, base: base}
}

func (h *Handler) snapshot() [WindowSize]uint16 {
	s := h.c.Snapshot()
	var regs [WindowSize]uint16
	if s.Frequency > 0 {
		regs[0] |= StatusValid
	}
	if s.TimedOut {
		regs[0] |= StatusLost
	}
	put := func(i int, v uint64) {
		regs[i] = uint16(v >> 16)
		regs[i+1] = uint16(v)
	}
	hz := func(i int, f float64) {
		whole, frac := math.Modf(f)
		put(i, uint64(whole))
		regs[i+2] = uint16(frac * 1000)
	}
	hz(1, s.Frequency)
	hz(4, s.Average)
	regs[7] = s.Period
	regs[8] = uint16(s.GateTime / time.Millisecond)
	put(9, s.Measurements)
	return regs
}

// Read fills req from a snapshot of the counter.
func (h *Handler) Read(req *modbus.Request) bool {
	off := int(req.Address) - int(h.base)
	if off < 0 || off+int(req.Count) > WindowSize {
		return false
	}
	regs := h.snapshot()
	copy(req.Values[:req.Count], regs[off:])
	return true
}
