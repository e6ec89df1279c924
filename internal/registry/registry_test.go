// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package registry

import (
	"errors"
	"testing"

	"github.com/ffutop/frequencer/modbus"
)

func tagged(tag uint16) Handler {
	return HandlerFunc(func(req *modbus.Request) bool {
		req.Values[0] = tag
		return true
	})
}

func tagOf(t *testing.T, h Handler) uint16 {
	t.Helper()
	var req modbus.Request
	req.Count = 1
	if !h.Handle(&req) {
		t.Fatalf("handler failed")
	}
	return req.Values[0]
}

func TestRegister(t *testing.T) {
	type reg struct {
		start, count uint16
		dir          Direction
	}
	tests := []struct {
		name     string
		capacity int
		existing []reg
		add      reg
		wantErr  error
		overlap  bool
	}{
		{"Empty", 2, nil, reg{0x100, 0x100, Read}, nil, false},
		{"Adjacent", 2, []reg{{0x100, 0x100, Read}}, reg{0x200, 4, Read}, nil, false},
		{"AdjacentBelow", 2, []reg{{0x100, 0x100, Read}}, reg{0x0F0, 0x10, Read}, nil, false},
		{"OtherDirection", 2, []reg{{0x100, 0x100, Read}}, reg{0x100, 0x100, Write}, nil, false},
		{"StartInside", 2, []reg{{0x100, 0x100, Read}}, reg{0x1FF, 4, Read}, nil, true},
		{"EndInside", 2, []reg{{0x100, 0x100, Read}}, reg{0x0F0, 0x11, Read}, nil, true},
		{"Covers", 2, []reg{{0x100, 0x10, Read}}, reg{0x000, 0x1000, Read}, nil, true},
		{"Inside", 2, []reg{{0x100, 0x100, Read}}, reg{0x140, 2, Read}, nil, true},
		{"Full", 1, []reg{{0x100, 0x100, Write}}, reg{0x300, 1, Write}, ErrTableFull, false},
		{"ZeroCount", 2, nil, reg{0x100, 0, Read}, ErrInvalidRange, false},
		{"PastEnd", 2, nil, reg{0xFFFF, 2, Read}, ErrInvalidRange, false},
		{"LastRegister", 2, nil, reg{0xFFFF, 1, Read}, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(tt.capacity)
			for _, e := range tt.existing {
				if err := r.Register(e.start, e.count, e.dir, tagged(1)); err != nil {
					t.Fatalf("setup Register() error = %v", err)
				}
			}
			err := r.Register(tt.add.start, tt.add.count, tt.add.dir, tagged(2))

			if tt.overlap {
				var oe *OverlapError
				if !errors.As(err, &oe) {
					t.Fatalf("Register() error = %v, want OverlapError", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	r := New(4)
	must := func(start, count uint16, dir Direction, tag uint16) {
		if err := r.Register(start, count, dir, tagged(tag)); err != nil {
			t.Fatalf("Register() error = %v", err)
		}
	}
	must(0x0100, 0x100, Read, 1)
	must(0x0200, 4, Read, 2)
	must(0x0100, 0x100, Write, 3)

	tests := []struct {
		name     string
		dir      Direction
		start    uint16
		count    uint16
		wantTag  uint16
		wantErr  error
		wantSpan bool
	}{
		{"First", Read, 0x100, 2, 1, nil, false},
		{"WholeWindow", Read, 0x200, 4, 2, nil, false},
		{"LastRegister", Read, 0x1FF, 1, 1, nil, false},
		{"WriteTable", Write, 0x100, 1, 3, nil, false},
		{"SpansHandlers", Read, 0x1FF, 2, 0, nil, true},
		{"SpansIntoUnhandled", Read, 0x203, 2, 0, nil, true},
		{"Unregistered", Read, 0x0000, 1, 0, ErrNoHandler, false},
		{"UnregisteredWrite", Write, 0x200, 1, 0, ErrNoHandler, false},
		{"ZeroCount", Read, 0x100, 0, 0, ErrZeroCount, false},
		{"OverLimit", Read, 0x100, 124, 0, ErrTooManyRegisters, false},
		{"AtLimit", Read, 0x100, 123, 1, nil, false},
		{"WrapsAddressSpace", Read, 0xFFFF, 2, 0, ErrNoHandler, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := r.Lookup(tt.dir, tt.start, tt.count)
			if tt.wantSpan {
				var se *SpanError
				if !errors.As(err, &se) {
					t.Fatalf("Lookup() error = %v, want SpanError", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Lookup() error = %v, want %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if got := tagOf(t, h); got != tt.wantTag {
				t.Errorf("Lookup() returned handler %d, want %d", got, tt.wantTag)
			}
		})
	}
}

func TestRangesNeverOverlap(t *testing.T) {
	r := New(64)
	// Try every 16-register window on a 4-register stride; only
	// non-intersecting ones may be accepted.
	for start := 0; start < 0x400; start += 4 {
		_ = r.Register(uint16(start), 16, Read, tagged(0))
	}

	ranges := r.Ranges(Read)
	if len(ranges) != r.Len(Read) {
		t.Fatalf("Ranges() = %d entries, Len() = %d", len(ranges), r.Len(Read))
	}
	for i := range ranges {
		for j := i + 1; j < len(ranges); j++ {
			if ranges[i].overlaps(ranges[j]) {
				t.Errorf("ranges %v and %v overlap", ranges[i], ranges[j])
			}
		}
	}
	if len(ranges) != 0x400/16 {
		t.Errorf("accepted %d windows, want %d", len(ranges), 0x400/16)
	}
}
