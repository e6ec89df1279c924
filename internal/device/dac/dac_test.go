// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package dac

import (
	"errors"
	"math"
	"testing"

	"github.com/ffutop/frequencer/internal/regbank"
	"github.com/ffutop/frequencer/modbus"
)

type recordingBus struct {
	addr byte
	msgs [][]byte
}

func (b *recordingBus) Write(addr byte, data []byte) error {
	b.addr = addr
	b.msgs = append(b.msgs, append([]byte(nil), data...))
	return nil
}

func TestInitMessage(t *testing.T) {
	bus := &recordingBus{}
	if err := New(bus).Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	want := []byte{0x50, 0x90, 0x00, 0x90, 0x00, 0x90, 0x00, 0x90, 0x00}
	if bus.addr != I2CAddress || len(bus.msgs) != 1 || string(bus.msgs[0]) != string(want) {
		t.Errorf("Init() sent 0x%02X % X", bus.addr, bus.msgs)
	}
}

func TestSetCodeMessage(t *testing.T) {
	bus := &recordingBus{}
	d := New(bus)
	if err := d.SetCode(FVO, 0xABC); err != nil {
		t.Fatalf("SetCode() error = %v", err)
	}
	want := []byte{0x44, 0x9A, 0xBC}
	if string(bus.msgs[0]) != string(want) {
		t.Errorf("SetCode() sent % X, want % X", bus.msgs[0], want)
	}
	if d.Code(FVO) != 0xABC {
		t.Errorf("Code() = %d", d.Code(FVO))
	}

	if err := d.SetCode(VO1, CodeMax+1); !errors.Is(err, ErrCode) {
		t.Errorf("SetCode(4096) error = %v, want ErrCode", err)
	}
	if err := d.SetCode(Outputs, 0); !errors.Is(err, ErrOutput) {
		t.Errorf("SetCode(Outputs) error = %v, want ErrOutput", err)
	}
	if len(bus.msgs) != 1 {
		t.Errorf("rejected calls reached the bus")
	}
}

func TestVoltsToCode(t *testing.T) {
	tests := []struct {
		volts float64
		want  uint16
	}{
		{-1, 0},
		{0, 0},
		{1.0245, 1024},
		{2.5005, 2500},
		{4.0955, 4095},
		{4.096, CodeMax},
		{12, CodeMax},
	}
	for _, tt := range tests {
		if got := VoltsToCode(tt.volts); got != tt.want {
			t.Errorf("VoltsToCode(%v) = %d, want %d", tt.volts, got, tt.want)
		}
	}
}

func TestSetVoltage(t *testing.T) {
	bus := &SimBus{}
	d := New(bus)
	if err := d.SetVoltage(AOD, 2.0485); err != nil {
		t.Fatalf("SetVoltage() error = %v", err)
	}
	if bus.Code(AOD) != 2048 {
		t.Errorf("bus code = %d, want 2048", bus.Code(AOD))
	}
	if v := d.Voltage(AOD); math.Abs(v-2.0485) > 1e-9 {
		t.Errorf("Voltage() = %v", v)
	}
}

func TestSimBus(t *testing.T) {
	bus := &SimBus{}
	d := New(bus)
	for out := VO1; out < Outputs; out++ {
		if err := d.SetCode(out, uint16(100*(out+1))); err != nil {
			t.Fatalf("SetCode() error = %v", err)
		}
	}
	if err := d.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	for out := VO1; out < Outputs; out++ {
		if bus.Code(out) != 0 || bus.EEPROM(out) != 0 || d.Code(out) != 0 {
			t.Errorf("%s not reset", out)
		}
	}
	if err := bus.Write(0x61, []byte{0x40, 0, 0}); err == nil {
		t.Errorf("Write() to wrong address error = nil")
	}
}

func newTestHandler(t *testing.T, bank *regbank.Bank) (*Handler, *SimBus) {
	t.Helper()
	bus := &SimBus{}
	d := New(bus)
	if err := d.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	h, err := NewHandler(d, bank, 0x200, Outputs, 0x0F00)
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	return h, bus
}

func TestHandlerWrite(t *testing.T) {
	bank := regbank.New()
	h, bus := newTestHandler(t, bank)

	req := &modbus.Request{Address: 0x201, Count: 2}
	req.Values[0], req.Values[1] = 1000, 4095
	if !h.Write(req) {
		t.Fatalf("Write() failed")
	}
	if bus.Code(VO2) != 1000 || bus.Code(FVO) != 4095 {
		t.Errorf("bus codes = %d, %d", bus.Code(VO2), bus.Code(FVO))
	}
	saved := make([]uint16, Outputs)
	if err := bank.ReadInto(0x0F00, saved); err != nil {
		t.Fatalf("ReadInto() error = %v", err)
	}
	if saved[1] != 1000 || saved[2] != 4095 {
		t.Errorf("saved codes = %v", saved)
	}

	read := &modbus.Request{Address: 0x200, Count: 4}
	if !h.Read(read) {
		t.Fatalf("Read() failed")
	}
	if got := read.Values[:4]; got[0] != 0 || got[1] != 1000 || got[2] != 4095 || got[3] != 0 {
		t.Errorf("Read() = %v", got)
	}
}

func TestHandlerWriteRejectsWholeRequest(t *testing.T) {
	h, bus := newTestHandler(t, regbank.New())
	before := bus.Messages()

	req := &modbus.Request{Address: 0x200, Count: 2}
	req.Values[0], req.Values[1] = 10, 4096
	if h.Write(req) {
		t.Fatalf("Write() = true, want false")
	}
	if bus.Messages() != before || bus.Code(VO1) != 0 {
		t.Errorf("rejected write changed an output")
	}

	outside := &modbus.Request{Address: 0x203, Count: 2}
	if h.Read(outside) {
		t.Errorf("Read() past the last output succeeded")
	}
}

func TestHandlerRestore(t *testing.T) {
	bank := regbank.New()
	if err := bank.Write(0x0F00, []uint16{1, 2, 0xFFFF, 4}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	h, bus := newTestHandler(t, bank)
	if err := h.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	want := []uint16{1, 2, CodeMax, 4}
	for out := VO1; out < Outputs; out++ {
		if bus.Code(out) != want[out] {
			t.Errorf("%s = %d, want %d", out, bus.Code(out), want[out])
		}
	}
}

func TestNewHandlerBounds(t *testing.T) {
	d := New(&SimBus{})
	if _, err := NewHandler(d, regbank.New(), 0x200, 5, 0); err == nil {
		t.Errorf("NewHandler(count 5) error = nil")
	}
	if _, err := NewHandler(d, regbank.New(), 0x200, 4, regbank.Size-2); err == nil {
		t.Errorf("NewHandler(offset past end) error = nil")
	}
}
