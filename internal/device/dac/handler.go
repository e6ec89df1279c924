// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package dac

import (
	"fmt"
	"log/slog"

	"github.com/ffutop/frequencer/internal/regbank"
	"github.com/ffutop/frequencer/modbus"
)

// Handler exposes the raw output codes as holding registers, one per output
// starting at VO1. The codes are mirrored into a register bank so they
// survive a restart.
type Handler struct {
	dac    *DAC
	bank   *regbank.Bank
	base   uint16
	count  uint16
	offset uint16
}

// NewHandler creates a Handler for count outputs at base. The codes are kept
// in bank starting at offset.
func NewHandler(d *DAC, bank *regbank.Bank, base, count, offset uint16) (*Handler, error) {
	if count == 0 || count > Outputs {
		return nil, fmt.Errorf("dac: window of %d registers, want 1 to %d", count, Outputs)
	}
	if int(offset)+int(count) > bank.Len() {
		return nil, fmt.Errorf("dac: bank offset 0x%04X+%d out of bounds", offset, count)
	}
	return &Handler{dac: d, bank: bank, base: base, count: count, offset: offset}, nil
}

// Restore drives the outputs with the codes saved in the bank. Saved codes
// beyond the DAC range are clamped.
func (h *Handler) Restore() error {
	codes := make([]uint16, h.count)
	if err := h.bank.ReadInto(h.offset, codes); err != nil {
		return err
	}
	for i, code := range codes {
		if code > CodeMax {
			slog.Warn("Saved DAC code out of range, clamping", "output", Output(i), "code", code)
			code = CodeMax
		}
		if err := h.dac.SetCode(Output(i), code); err != nil {
			return err
		}
	}
	slog.Info("DAC outputs restored", "codes", codes)
	return nil
}

// Read returns the current codes.
func (h *Handler) Read(req *modbus.Request) bool {
	first, ok := h.outputs(req)
	if !ok {
		return false
	}
	for i := range req.Registers() {
		req.Values[i] = h.dac.Code(first + Output(i))
	}
	return true
}

// Write sets the codes. A value above CodeMax rejects the whole request.
func (h *Handler) Write(req *modbus.Request) bool {
	first, ok := h.outputs(req)
	if !ok {
		return false
	}
	values := req.Registers()
	for _, v := range values {
		if v > CodeMax {
			slog.Debug("DAC code out of range", "address", req.Address, "code", v)
			return false
		}
	}
	for i, v := range values {
		if err := h.dac.SetCode(first+Output(i), v); err != nil {
			slog.Warn("DAC write failed", "err", err)
			return false
		}
	}
	if err := h.bank.Write(h.offset+uint16(first), values); err != nil {
		slog.Warn("Failed to save DAC codes", "err", err)
	}
	return true
}

func (h *Handler) outputs(req *modbus.Request) (Output, bool) {
	if req.Address < h.base || int(req.Address)+int(req.Count) > int(h.base)+int(h.count) {
		return 0, false
	}
	return Output(req.Address - h.base), true
}
