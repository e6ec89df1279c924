// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package transport

import "errors"

var (
	// ErrNoData is returned by Source.ReadByte when nothing is buffered.
	ErrNoData = errors.New("transport: no data available")
	// ErrTxFull is returned by Sink.Write when the buffer cannot take the
	// whole write. Nothing is written in that case.
	ErrTxFull = errors.New("transport: transmit buffer full")
	// ErrDriverFault marks an unrecoverable driver condition such as a
	// negative buffer count. It is never retried.
	ErrDriverFault = errors.New("transport: driver fault")
)

// Source is the receiving half of a buffered, flow-controlled console.
type Source interface {
	// ReadFree reports how many more bytes the receive buffer can take.
	// Zero means the receiver is about to overflow; negative is a fault.
	ReadFree() int
	// ReadByte returns the next buffered byte, or ErrNoData.
	// Any other error is a driver fault.
	ReadByte() (byte, error)
}

// Sink is the transmitting half of a buffered, flow-controlled console.
type Sink interface {
	// WriteFree reports how many bytes Write can accept right now.
	// Negative is a fault.
	WriteFree() int
	// Write queues p in full or not at all.
	Write(p []byte) (int, error)
}

// Console is the byte transport the register server polls.
type Console interface {
	Source
	Sink
}
