// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package dac drives the MCP4728 quad 12-bit DAC over I2C.
package dac

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	// I2CAddress is the 7-bit bus address of the MCP4728.
	I2CAddress = 0x60

	CodeMax = 4095
	Vref    = 4.096

	codeScale = 4096.0
)

const (
	cmdSequentialWrite = 0x50
	cmdMultiWrite      = 0x40
	// Vref internal, gain x1, normal power mode.
	cfgInternalRef = 0x90
)

// Output selects one DAC channel.
type Output int

const (
	VO1 Output = iota
	VO2
	FVO
	AOD

	Outputs = 4
)

func (o Output) String() string {
	switch o {
	case VO1:
		return "VO1"
	case VO2:
		return "VO2"
	case FVO:
		return "FVO"
	case AOD:
		return "AOD"
	default:
		return fmt.Sprintf("output(%d)", int(o))
	}
}

var (
	ErrOutput = errors.New("dac: no such output")
	ErrCode   = errors.New("dac: code out of range")
)

// Bus writes one I2C message to the device at addr.
type Bus interface {
	Write(addr byte, data []byte) error
}

// DAC keeps the last code and voltage set on each output.
type DAC struct {
	bus Bus

	mu       sync.Mutex
	codes    [Outputs]uint16
	voltages [Outputs]float64
}

// New creates a DAC on bus.
func New(bus Bus) *DAC {
	return &DAC{bus: bus}
}

// Init sets every output to zero with a sequential write, which also stores
// zero in the EEPROM.
func (d *DAC) Init() error {
	msg := []byte{cmdSequentialWrite}
	for i := 0; i < Outputs; i++ {
		msg = append(msg, cfgInternalRef, 0x00)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.bus.Write(I2CAddress, msg); err != nil {
		return fmt.Errorf("dac: init: %w", err)
	}
	d.codes = [Outputs]uint16{}
	d.voltages = [Outputs]float64{}
	slog.Info("DAC initialized", "outputs", Outputs)
	return nil
}

// SetCode writes a raw code to one output.
func (d *DAC) SetCode(out Output, code uint16) error {
	if out < 0 || out >= Outputs {
		return fmt.Errorf("%w: %d", ErrOutput, int(out))
	}
	if code > CodeMax {
		return fmt.Errorf("%w: %d", ErrCode, code)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setCode(out, code, float64(code)*Vref/codeScale)
}

func (d *DAC) setCode(out Output, code uint16, volts float64) error {
	msg := []byte{
		cmdMultiWrite | byte(out)<<1,
		cfgInternalRef | byte(code>>8&0x0F),
		byte(code),
	}
	if err := d.bus.Write(I2CAddress, msg); err != nil {
		return fmt.Errorf("dac: set %s: %w", out, err)
	}
	d.codes[out] = code
	d.voltages[out] = volts
	return nil
}

// Code returns the last code written to out.
func (d *DAC) Code(out Output) uint16 {
	if out < 0 || out >= Outputs {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.codes[out]
}

// SetVoltage sets out to the nearest code below volts, clamped to the
// output range.
func (d *DAC) SetVoltage(out Output, volts float64) error {
	if out < 0 || out >= Outputs {
		return fmt.Errorf("%w: %d", ErrOutput, int(out))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.setCode(out, VoltsToCode(volts), volts)
}

// Voltage returns the voltage last requested on out.
func (d *DAC) Voltage(out Output) float64 {
	if out < 0 || out >= Outputs {
		return 0
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voltages[out]
}

// VoltsToCode converts a voltage to a DAC code, clamping to [0, CodeMax].
func VoltsToCode(volts float64) uint16 {
	if volts < 0 {
		return 0
	}
	code := volts * codeScale / Vref
	if code > CodeMax {
		return CodeMax
	}
	return uint16(code)
}
