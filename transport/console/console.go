// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package console turns a blocking byte stream, usually a serial port, into
// the buffered, non-blocking transport.Console the register server polls.
package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/ffutop/frequencer/transport"
)

const readChunk = 256

// Console owns a receive ring filled by a reader goroutine and a transmit
// queue drained by a writer goroutine.
type Console struct {
	port io.ReadWriteCloser

	mu      sync.Mutex
	rx      []byte
	rxHead  int
	rxLen   int
	tx      []byte
	txSize  int
	dropped uint64
	fault   error

	kick      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// New creates a Console over port with the given buffer sizes.
func New(port io.ReadWriteCloser, rxSize, txSize int) *Console {
	return &Console{
		port:   port,
		rx:     make([]byte, rxSize),
		tx:     make([]byte, 0, txSize),
		txSize: txSize,
		kick:   make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// Start launches the reader and writer. The console closes when ctx is done.
func (c *Console) Start(ctx context.Context) {
	go c.readLoop()
	go c.writeLoop()
	go func() {
		select {
		case <-ctx.Done():
			c.Close()
		case <-c.done:
		}
	}()
}

// ReadFree reports the free space of the receive ring, or -1 after a port
// failure.
func (c *Console) ReadFree() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return -1
	}
	return len(c.rx) - c.rxLen
}

// ReadByte pops one received byte.
func (c *Console) ReadByte() (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rxLen == 0 {
		if c.fault != nil {
			return 0, fmt.Errorf("%w: %v", transport.ErrDriverFault, c.fault)
		}
		return 0, transport.ErrNoData
	}
	b := c.rx[c.rxHead]
	c.rxHead = (c.rxHead + 1) % len(c.rx)
	c.rxLen--
	return b, nil
}

// WriteFree reports the free space of the transmit queue, or -1 after a port
// failure.
func (c *Console) WriteFree() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fault != nil {
		return -1
	}
	return c.txSize - len(c.tx)
}

// Write queues p for transmission, all of it or nothing.
func (c *Console) Write(p []byte) (int, error) {
	c.mu.Lock()
	if c.fault != nil {
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: %v", transport.ErrDriverFault, c.fault)
	}
	if len(p) > c.txSize-len(c.tx) {
		c.mu.Unlock()
		return 0, transport.ErrTxFull
	}
	c.tx = append(c.tx, p...)
	c.mu.Unlock()

	select {
	case c.kick <- struct{}{}:
	default:
	}
	return len(p), nil
}

// Dropped returns how many received bytes were discarded on a full ring.
func (c *Console) Dropped() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Close stops both loops and closes the port.
func (c *Console) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.port.Close()
	})
	return err
}

func (c *Console) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

func (c *Console) readLoop() {
	buf := make([]byte, readChunk)
	for {
		n, err := c.port.Read(buf)
		if n > 0 {
			c.push(buf[:n])
		}
		if err == nil {
			continue
		}
		if c.closed() {
			return
		}
		if isTimeout(err) {
			continue
		}
		c.setFault(fmt.Errorf("read: %w", err))
		return
	}
}

func (c *Console) push(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	size := len(c.rx)
	dropped := 0
	for _, b := range p {
		if c.rxLen == size {
			dropped++
			continue
		}
		c.rx[(c.rxHead+c.rxLen)%size] = b
		c.rxLen++
	}
	if dropped > 0 {
		c.dropped += uint64(dropped)
		slog.Warn("Console receive buffer full, dropping input", "dropped", dropped, "total", c.dropped)
	}
}

func (c *Console) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case <-c.kick:
		}

		for {
			c.mu.Lock()
			pending := append([]byte(nil), c.tx...)
			c.mu.Unlock()
			if len(pending) == 0 {
				break
			}

			n, err := c.port.Write(pending)

			c.mu.Lock()
			c.tx = c.tx[:copy(c.tx, c.tx[n:])]
			c.mu.Unlock()

			if err != nil {
				if c.closed() {
					return
				}
				c.setFault(fmt.Errorf("write: %w", err))
				return
			}
		}
	}
}

func (c *Console) setFault(err error) {
	c.mu.Lock()
	if c.fault == nil {
		c.fault = err
	}
	c.mu.Unlock()
	slog.Error("Console port failed", "err", err)
}

// isTimeout reports read timeouts, which serial drivers return while the
// line is idle.
func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	if errors.As(err, &t) && t.Timeout() {
		return true
	}
	return strings.Contains(err.Error(), "timeout")
}
