// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package dac

import (
	"fmt"
	"sync"
)

// SimBus is an I2C bus with a simulated MCP4728 on it. It decodes the
// sequential and multi-write commands into the output codes.
type SimBus struct {
	mu       sync.Mutex
	codes    [Outputs]uint16
	eeprom   [Outputs]uint16
	messages int
}

// Write implements Bus.
func (b *SimBus) Write(addr byte, data []byte) error {
	if addr != I2CAddress {
		return fmt.Errorf("i2c: no device at 0x%02X", addr)
	}
	if len(data) == 0 {
		return fmt.Errorf("i2c: empty message")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages++

	switch cmd := data[0]; {
	case cmd&0xF8 == cmdSequentialWrite:
		start := int(cmd>>1) & 0x03
		payload := data[1:]
		for ch := start; ch < Outputs && len(payload) >= 2; ch++ {
			code := uint16(payload[0]&0x0F)<<8 | uint16(payload[1])
			b.codes[ch] = code
			b.eeprom[ch] = code
			payload = payload[2:]
		}
	case cmd&0xF8 == cmdMultiWrite:
		for msg := data; len(msg) >= 3; msg = msg[3:] {
			ch := int(msg[0]>>1) & 0x03
			b.codes[ch] = uint16(msg[1]&0x0F)<<8 | uint16(msg[2])
		}
	default:
		return fmt.Errorf("i2c: unsupported command 0x%02X", cmd)
	}
	return nil
}

// Code returns the code currently driven on out.
func (b *SimBus) Code(out Output) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.codes[out]
}

// EEPROM returns the code stored for out at power up.
func (b *SimBus) EEPROM(out Output) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.eeprom[out]
}

// Messages returns the number of accepted messages.
func (b *SimBus) Messages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.messages
}
