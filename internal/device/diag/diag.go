// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package diag publishes the protocol counters as read-only registers.
//
// Register layout, relative to the window base:
//
//	0      layout version
//	1      device address
//	2-3    frames received
//	4-5    frames rejected
//	6-7    framing errors
//	8-9    exceptions sent
//	10-11  replies sent
//	12-13  transmissions aborted
//	14-15  uptime in seconds
//
// Counters are 32 bits wide, high word first, and wrap.
package diag

import (
	"log/slog"
	"time"

	"github.com/ffutop/frequencer/internal/server"
	"github.com/ffutop/frequencer/modbus"
)

const (
	Version = 0x0100

	// WindowSize is the number of registers in the read window.
	WindowSize = 16

	resetValue = 1
)

// Source provides the counters. *server.Server implements it.
type Source interface {
	Address() byte
	Stats() server.Stats
	ResetStats()
}

// Handler serves the diagnostic registers and the counter reset register.
type Handler struct {
	src   Source
	base  uint16
	start time.Time
	now   func() time.Time
}

// NewHandler creates a Handler whose read window starts at base.
func NewHandler(src Source, base uint16) *Handler {
	h := &Handler{src: src, base: base, now: time.Now}
	h.start = h.now()
	return h
}

func (h *Handler) snapshot() [WindowSize]uint16 {
	st := h.src.Stats()
	var regs [WindowSize]uint16
	regs[0] = Version
	regs[1] = uint16(h.src.Address())
	put := func(i int, v uint64) {
		regs[i] = uint16(v >> 16)
		regs[i+1] = uint16(v)
	}
	put(2, st.FramesReceived)
	put(4, st.FramesRejected)
	put(6, st.FramingErrors)
	put(8, st.Exceptions)
	put(10, st.Replies)
	put(12, st.TxAborted)
	put(14, uint64(h.now().Sub(h.start)/time.Second))
	return regs
}

// Read fills req from a consistent snapshot of the counters.
func (h *Handler) Read(req *modbus.Request) bool {
	off := int(req.Address) - int(h.base)
	if off < 0 || off+int(req.Count) > WindowSize {
		return false
	}
	regs := h.snapshot()
	copy(req.Values[:req.Count], regs[off:])
	return true
}

// Reset clears the counters when every written value is 1.
func (h *Handler) Reset(req *modbus.Request) bool {
	for _, v := range req.Registers() {
		if v != resetValue {
			slog.Debug("Diagnostic reset rejected", "value", v)
			return false
		}
	}
	h.src.ResetStats()
	slog.Info("Diagnostic counters reset")
	return true
}
