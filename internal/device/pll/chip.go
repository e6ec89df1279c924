// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pll

import (
	"errors"
	"sync"
)

var ErrShortTransfer = errors.New("pll: transfer without command byte")

// Chip is an in-memory ZL30159 answering on the SPI bus. It is used when the
// controller runs without the PLL fitted, and in tests.
type Chip struct {
	mu    sync.Mutex
	mem   [256]byte
	page  byte
	count int
}

// NewChip returns a chip holding the reset defaults of every register.
func NewChip() *Chip {
	c := &Chip{}
	for _, r := range Registers {
		c.store(r, r.Default)
	}
	return c
}

// Tx implements Bus.
func (c *Chip) Tx(out, in []byte) error {
	if len(out) == 0 {
		return ErrShortTransfer
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.count++

	cmd := out[0]
	offset := cmd & addrMask
	if offset == AddressPage {
		if cmd&cmdRead != 0 {
			if in != nil && len(in) > 1 {
				in[1] = c.page
			}
			return nil
		}
		if len(out) > 1 {
			c.page = out[1] & 1
		}
		return nil
	}

	base := int(offset)
	if c.page != 0 {
		base += BankBoundary
	}
	if cmd&cmdRead != 0 {
		for i := 1; i < len(in); i++ {
			in[i] = c.mem[(base+i-1)&0xFF]
		}
		return nil
	}
	for i, b := range out[1:] {
		addr := (base + i) & 0xFF
		if r, ok := Find(byte(addr)); ok && r.Access == ReadOnly {
			continue
		}
		c.mem[addr] = b
	}
	return nil
}

// Set overrides a register as the chip itself would, ignoring its access.
func (c *Chip) Set(address byte, v uint32) {
	r, ok := Find(address)
	if !ok {
		r = Register{Address: address, Size: 1}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(r, v)
}

// Get returns the raw value of a register.
func (c *Chip) Get(address byte) uint32 {
	r, ok := Find(address)
	if !ok {
		r = Register{Address: address, Size: 1}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	var v uint32
	for i := 0; i < r.Size; i++ {
		v = v<<8 | uint32(c.mem[int(r.Address)+i])
	}
	return v
}

// Page returns the selected register page.
func (c *Chip) Page() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// Transfers returns the number of bus transfers seen.
func (c *Chip) Transfers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.count
}

func (c *Chip) store(r Register, v uint32) {
	for i := r.Size - 1; i >= 0; i-- {
		c.mem[int(r.Address)+i] = byte(v)
		v >>= 8
	}
}
