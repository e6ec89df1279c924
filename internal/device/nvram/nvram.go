// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package nvram serves general purpose holding registers from the persistent
// register bank.
package nvram

import (
	"fmt"
	"log/slog"

	"github.com/ffutop/frequencer/internal/regbank"
	"github.com/ffutop/frequencer/modbus"
)

// Handler maps the Modbus window [base, base+count) onto the bank registers
// starting at offset.
type Handler struct {
	bank   *regbank.Bank
	base   uint16
	count  uint16
	offset uint16
}

// NewHandler creates a Handler. The window must fit inside the bank.
func NewHandler(bank *regbank.Bank, base, count, offset uint16) (*Handler, error) {
	if count == 0 || int(offset)+int(count) > bank.Len() {
		return nil, fmt.Errorf("nvram: window of %d registers at bank offset 0x%04X does not fit a bank of %d", count, offset, bank.Len())
	}
	return &Handler{bank: bank, base: base, count: count, offset: offset}, nil
}

func (h *Handler) translate(req *modbus.Request) (uint16, bool) {
	if req.Address < h.base || int(req.Address)+int(req.Count) > int(h.base)+int(h.count) {
		return 0, false
	}
	return h.offset + (req.Address - h.base), true
}

// Read copies the addressed registers into req.
func (h *Handler) Read(req *modbus.Request) bool {
	addr, ok := h.translate(req)
	if !ok {
		return false
	}
	if err := h.bank.ReadInto(addr, req.Registers()); err != nil {
		slog.Warn("NVRAM read failed", "address", req.Address, "err", err)
		return false
	}
	return true
}

// Write stores req in the bank, which persists it through the storage hook.
func (h *Handler) Write(req *modbus.Request) bool {
	addr, ok := h.translate(req)
	if !ok {
		return false
	}
	if err := h.bank.Write(addr, req.Registers()); err != nil {
		slog.Warn("NVRAM write failed", "address", req.Address, "err", err)
		return false
	}
	return true
}
