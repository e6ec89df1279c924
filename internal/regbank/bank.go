// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package regbank holds the device's general purpose holding registers.
package regbank

import (
	"fmt"
	"sync"
)

// Size is the number of registers in a bank.
const Size = 4096

// Bank is a flat array of holding registers. Windows of it back the NVRAM
// handler and the persisted DAC codes.
type Bank struct {
	mu sync.RWMutex

	// Registers may be backed by a file mapping; see persistence.
	Registers []uint16

	onWrite func(address, quantity uint16)
}

// New creates a zeroed in-memory bank.
func New() *Bank {
	return &Bank{
		Registers: make([]uint16, Size),
	}
}

// SetWriteHook installs fn to run after every successful Write, outside the
// bank lock.
func (b *Bank) SetWriteHook(fn func(address, quantity uint16)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onWrite = fn
}

// Len returns the number of registers.
func (b *Bank) Len() int {
	return len(b.Registers)
}

// ReadInto copies len(dst) registers starting at address into dst.
func (b *Bank) ReadInto(address uint16, dst []uint16) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if err := b.validateRange(address, len(dst)); err != nil {
		return err
	}
	copy(dst, b.Registers[address:])
	return nil
}

// Write stores values starting at address.
func (b *Bank) Write(address uint16, values []uint16) error {
	b.mu.Lock()
	if err := b.validateRange(address, len(values)); err != nil {
		b.mu.Unlock()
		return err
	}
	copy(b.Registers[address:], values)
	hook := b.onWrite
	b.mu.Unlock()

	if hook != nil {
		hook(address, uint16(len(values)))
	}
	return nil
}

func (b *Bank) validateRange(address uint16, quantity int) error {
	if quantity == 0 {
		return fmt.Errorf("quantity must be greater than 0")
	}
	if int(address)+quantity > len(b.Registers) {
		return fmt.Errorf("address range 0x%04X+%d out of bounds", address, quantity)
	}
	return nil
}
