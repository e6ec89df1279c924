// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package registry routes normalized register requests to the handler that
// owns the addressed window.
package registry

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/ffutop/frequencer/modbus"
)

// Direction selects the read or write handler table.
type Direction int

const (
	Read Direction = iota
	Write
)

func (d Direction) String() string {
	switch d {
	case Read:
		return "read"
	case Write:
		return "write"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Handler serves register requests for one contiguous address window.
//
// For reads Handle fills req.Values[:req.Count]; for writes it consumes them.
// A false return is reported to the master as an illegal data value. Handle
// runs synchronously inside the poll loop and may block on device I/O.
type Handler interface {
	Handle(req *modbus.Request) bool
}

// HandlerFunc adapts an ordinary function to a Handler.
type HandlerFunc func(req *modbus.Request) bool

func (f HandlerFunc) Handle(req *modbus.Request) bool {
	return f(req)
}

var (
	ErrTableFull        = errors.New("registry: handler table full")
	ErrInvalidRange     = errors.New("registry: invalid register range")
	ErrNoHandler        = errors.New("registry: no handler")
	ErrZeroCount        = errors.New("registry: zero register count")
	ErrTooManyRegisters = errors.New("registry: too many registers")
)

// OverlapError reports a registration that intersects an existing window.
type OverlapError struct {
	Direction Direction
	Start     uint16
	End       uint16
	Existing  Range
}

func (e *OverlapError) Error() string {
	return fmt.Sprintf("registry: %s range 0x%04X-0x%04X overlaps 0x%04X-0x%04X",
		e.Direction, e.Start, e.End, e.Existing.Start, e.Existing.End)
}

// SpanError reports a request that starts inside a window but ends outside it.
type SpanError struct {
	Start uint16
	End   uint16
	Range Range
}

func (e *SpanError) Error() string {
	return fmt.Sprintf("registry: request 0x%04X-0x%04X spans past handler 0x%04X-0x%04X",
		e.Start, e.End, e.Range.Start, e.Range.End)
}

// Range is an inclusive register address window.
type Range struct {
	Start uint16
	End   uint16
}

// Contains reports whether address falls in r.
func (r Range) Contains(address uint16) bool {
	return address >= r.Start && address <= r.End
}

func (r Range) overlaps(o Range) bool {
	return r.Start <= o.End && o.Start <= r.End
}

type entry struct {
	rng     Range
	handler Handler
}

// Registry holds two fixed-capacity handler tables, one per direction.
// Registration happens once at startup; lookups are not synchronized.
type Registry struct {
	capacity int
	tables   [2][]entry
}

// New creates a Registry holding up to capacity handlers per direction.
func New(capacity int) *Registry {
	r := &Registry{capacity: capacity}
	for i := range r.tables {
		r.tables[i] = make([]entry, 0, capacity)
	}
	return r
}

// Register binds h to count registers starting at start.
// Any error means the handler map is ambiguous and serving must not begin.
func (r *Registry) Register(start, count uint16, dir Direction, h Handler) error {
	if dir != Read && dir != Write {
		return fmt.Errorf("registry: unknown direction %d", int(dir))
	}
	if count == 0 || int(start)+int(count)-1 > 0xFFFF {
		return fmt.Errorf("%w: start 0x%04X count %d", ErrInvalidRange, start, count)
	}
	table := r.tables[dir]
	if len(table) >= r.capacity {
		return fmt.Errorf("%w: %s table holds %d", ErrTableFull, dir, r.capacity)
	}

	rng := Range{Start: start, End: start + count - 1}
	for _, e := range table {
		if rng.overlaps(e.rng) {
			return &OverlapError{Direction: dir, Start: rng.Start, End: rng.End, Existing: e.rng}
		}
	}

	r.tables[dir] = append(table, entry{rng: rng, handler: h})
	slog.Debug("Registered handler", "direction", dir, "start", fmt.Sprintf("0x%04X", rng.Start), "end", fmt.Sprintf("0x%04X", rng.End))
	return nil
}

// Lookup returns the handler whose window contains every register of the
// request. Requests are never split across handlers.
func (r *Registry) Lookup(dir Direction, start, count uint16) (Handler, error) {
	if count == 0 {
		return nil, ErrZeroCount
	}
	if count > modbus.MaxRegisters {
		return nil, fmt.Errorf("%w: %d, max %d", ErrTooManyRegisters, count, modbus.MaxRegisters)
	}
	if dir != Read && dir != Write {
		return nil, ErrNoHandler
	}

	end := uint32(start) + uint32(count) - 1
	for _, e := range r.tables[dir] {
		if !e.rng.Contains(start) {
			continue
		}
		if end > uint32(e.rng.End) {
			return nil, &SpanError{Start: start, End: uint16(end), Range: e.rng}
		}
		return e.handler, nil
	}
	return nil, fmt.Errorf("%w: %s 0x%04X", ErrNoHandler, dir, start)
}

// Ranges lists the registered windows of one direction in registration order.
func (r *Registry) Ranges(dir Direction) []Range {
	if dir != Read && dir != Write {
		return nil
	}
	out := make([]Range, len(r.tables[dir]))
	for i, e := range r.tables[dir] {
		out[i] = e.rng
	}
	return out
}

// Len returns the number of handlers registered in one direction.
func (r *Registry) Len(dir Direction) int {
	if dir != Read && dir != Write {
		return 0
	}
	return len(r.tables[dir])
}
