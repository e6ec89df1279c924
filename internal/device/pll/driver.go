// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package pll

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var (
	ErrReadOnly   = errors.New("pll: register is read-only")
	ErrValueRange = errors.New("pll: value does not fit register")
)

// Bus is a full duplex SPI transfer with chip select held for its duration.
// When in is not nil it has the length of out and receives the bytes clocked
// in while out is shifted out.
type Bus interface {
	Tx(out, in []byte) error
}

const (
	cmdRead  = 0x80
	addrMask = 0x7F
)

// Driver accesses the chip registers, switching the register page as needed.
type Driver struct {
	bus         Bus
	stickyDelay time.Duration
	sleep       func(time.Duration)

	mu    sync.Mutex
	upper bool
}

// NewDriver creates a Driver. stickyDelay is the wait between clearing and
// reading a sticky register.
func NewDriver(bus Bus, stickyDelay time.Duration) *Driver {
	return &Driver{
		bus:         bus,
		stickyDelay: stickyDelay,
		sleep:       time.Sleep,
		upper:       true,
	}
}

// Init selects the lower page and disables the sticky lock.
func (d *Driver) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.upper = true
	if err := d.selectBank(false); err != nil {
		return err
	}
	if err := d.bus.Tx([]byte{AddressStickyLock & addrMask, 0}, nil); err != nil {
		return fmt.Errorf("pll: clear sticky lock: %w", err)
	}
	slog.Info("PLL initialized")
	return nil
}

// Read returns the current value of r. Sticky registers are cleared first.
func (d *Driver) Read(r Register) (uint32, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if r.Access == StickyRead {
		if err := d.write(r, 0); err != nil {
			return 0, err
		}
		d.sleep(d.stickyDelay)
	}

	if err := d.selectBank(r.Address >= BankBoundary); err != nil {
		return 0, err
	}
	out := make([]byte, 1+r.Size)
	in := make([]byte, len(out))
	out[0] = r.Address&addrMask | cmdRead
	if err := d.bus.Tx(out, in); err != nil {
		return 0, fmt.Errorf("pll: read 0x%02X: %w", r.Address, err)
	}

	var v uint32
	for _, b := range in[1:] {
		v = v<<8 | uint32(b)
	}
	return v, nil
}

// Write stores v in r.
func (d *Driver) Write(r Register, v uint32) error {
	if r.Access == ReadOnly {
		return fmt.Errorf("%w: %s", ErrReadOnly, r.Name)
	}
	if v > r.Max() {
		return fmt.Errorf("%w: %s 0x%X", ErrValueRange, r.Name, v)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.write(r, v); err != nil {
		return err
	}
	if r.Address == AddressPage {
		d.upper = v&1 != 0
	}
	return nil
}

func (d *Driver) write(r Register, v uint32) error {
	if err := d.selectBank(r.Address >= BankBoundary); err != nil {
		return err
	}
	out := make([]byte, 1+r.Size)
	out[0] = r.Address & addrMask
	for i := r.Size; i > 0; i-- {
		out[i] = byte(v)
		v >>= 8
	}
	if err := d.bus.Tx(out, nil); err != nil {
		return fmt.Errorf("pll: write 0x%02X: %w", r.Address, err)
	}
	return nil
}

func (d *Driver) selectBank(upper bool) error {
	if upper == d.upper {
		return nil
	}
	var page byte
	if upper {
		page = 1
	}
	if err := d.bus.Tx([]byte{AddressPage & addrMask, page}, nil); err != nil {
		return fmt.Errorf("pll: select page %d: %w", page, err)
	}
	d.upper = upper
	return nil
}
