// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pll

import (
	"log/slog"

	"github.com/ffutop/frequencer/modbus"
)

// WindowSize is the number of Modbus registers covering the chip address
// space.
const WindowSize = 0x100

type slot struct {
	reg  int // index into Registers
	word int // 0 is the most significant word
}

// Handler maps Modbus holding registers onto chip registers. The register at
// chip address A starts at Modbus address base+A and spans Words() registers,
// high word first.
type Handler struct {
	drv   *Driver
	base  uint16
	slots [WindowSize]int16 // index into words, -1 when unmapped
	words []slot
}

// NewHandler creates a Handler for the window starting at base.
func NewHandler(drv *Driver, base uint16) *Handler {
	h := &Handler{drv: drv, base: base}
	for i := range h.slots {
		h.slots[i] = -1
	}
	for i, r := range Registers {
		for w := 0; w < r.Words(); w++ {
			h.slots[int(r.Address)+w] = int16(len(h.words))
			h.words = append(h.words, slot{reg: i, word: w})
		}
	}
	return h
}

func (h *Handler) lookup(address uint16) (slot, bool) {
	off := int(address) - int(h.base)
	if off < 0 || off >= WindowSize || h.slots[off] < 0 {
		return slot{}, false
	}
	return h.words[h.slots[off]], true
}

// Read fills req with chip register values. Each chip register is read at
// most once per request.
func (h *Handler) Read(req *modbus.Request) bool {
	values := make(map[int]uint32)
	for i := range req.Registers() {
		addr := req.Address + uint16(i)
		s, ok := h.lookup(addr)
		if !ok {
			slog.Debug("PLL read of unmapped register", "address", addr)
			return false
		}
		r := Registers[s.reg]
		v, seen := values[s.reg]
		if !seen {
			var err error
			if v, err = h.drv.Read(r); err != nil {
				slog.Warn("PLL read failed", "register", r.Name, "err", err)
				return false
			}
			values[s.reg] = v
		}
		req.Values[i] = wordOf(r, v, s.word)
	}
	return true
}

type pending struct {
	reg   int
	value uint32
	mask  uint32 // bits supplied by the request
}

// Write stores req into chip registers. The request is validated as a whole
// before anything reaches the bus; registers only partly covered are merged
// with their current value.
func (h *Handler) Write(req *modbus.Request) bool {
	var writes []*pending
	byReg := make(map[int]*pending)
	for i, v := range req.Registers() {
		addr := req.Address + uint16(i)
		s, ok := h.lookup(addr)
		if !ok {
			slog.Debug("PLL write to unmapped register", "address", addr)
			return false
		}
		r := Registers[s.reg]
		if r.Access == ReadOnly {
			slog.Debug("PLL write to read-only register", "register", r.Name)
			return false
		}
		p := byReg[s.reg]
		if p == nil {
			p = &pending{reg: s.reg}
			byReg[s.reg] = p
			writes = append(writes, p)
		}
		shift := wordShift(r, s.word)
		p.value |= uint32(v) << shift
		p.mask |= 0xFFFF << shift
		if p.value&^r.Max() != 0 {
			slog.Debug("PLL value out of range", "register", r.Name, "value", v)
			return false
		}
	}

	for _, p := range writes {
		r := Registers[p.reg]
		if full := r.Max(); p.mask&full == full {
			continue
		}
		cur, err := h.drv.Read(r)
		if err != nil {
			slog.Warn("PLL read for merge failed", "register", r.Name, "err", err)
			return false
		}
		p.value |= cur &^ p.mask
	}

	for _, p := range writes {
		r := Registers[p.reg]
		if err := h.drv.Write(r, p.value); err != nil {
			slog.Warn("PLL write failed", "register", r.Name, "err", err)
			return false
		}
	}
	return true
}

// wordShift returns the bit offset of word w within r.
func wordShift(r Register, w int) uint {
	return uint(16 * (r.Words() - 1 - w))
}

func wordOf(r Register, v uint32, w int) uint16 {
	return uint16(v >> wordShift(r, w))
}
