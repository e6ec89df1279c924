// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

// Package server runs the Modbus ASCII register operation cycle: it pulls
// characters from a console, frames and validates requests, dispatches them
// to registered handlers and writes the reply back.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/ffutop/frequencer/internal/registry"
	"github.com/ffutop/frequencer/modbus"
	"github.com/ffutop/frequencer/modbus/ascii"
	"github.com/ffutop/frequencer/transport"
)

const defaultPollInterval = 5 * time.Millisecond

// Options configures a Server.
type Options struct {
	// Address is the device address frames must carry.
	Address byte
	// Checksum validates requests and signs replies. Nil means NoChecksum.
	Checksum ascii.Checksum
	// FrameMax bounds the decoded frame size. Zero means ascii.MaxSize.
	FrameMax int
	// PollInterval is the idle delay between polls in Run.
	PollInterval time.Duration
}

// Stats is a snapshot of the server counters.
type Stats struct {
	FramesReceived uint64
	FramesRejected uint64
	FramingErrors  uint64
	Exceptions     uint64
	Replies        uint64
	TxAborted      uint64
}

type counters struct {
	framesReceived atomic.Uint64
	framesRejected atomic.Uint64
	framingErrors  atomic.Uint64
	exceptions     atomic.Uint64
	replies        atomic.Uint64
	txAborted      atomic.Uint64
}

// Server owns the framer, the scratch request and the reply buffer. Only
// one request is ever in flight; Poll must not be called concurrently.
type Server struct {
	console  transport.Console
	registry *registry.Registry
	framer   *ascii.Framer
	checksum ascii.Checksum
	address  byte
	interval time.Duration

	req   modbus.Request
	stats counters
}

// New creates a Server reading requests from console and routing them
// through reg.
func New(console transport.Console, reg *registry.Registry, opts Options) *Server {
	if opts.Checksum == nil {
		opts.Checksum = ascii.NoChecksum{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	return &Server{
		console:  console,
		registry: reg,
		framer:   ascii.NewFramer(opts.FrameMax),
		checksum: opts.Checksum,
		address:  opts.Address,
		interval: opts.PollInterval,
	}
}

// Run polls until ctx is done or the console reports a driver fault.
func (s *Server) Run(ctx context.Context) error {
	slog.Info("Register server polling", "address", s.address, "checksum", fmt.Sprintf("%T", s.checksum), "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if err := s.Poll(); err != nil {
			slog.Error("Register server stopped", "err", err)
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// Poll runs one operation cycle. It feeds buffered characters to the framer
// and, once a frame is ready, serves it and releases it. Only errors wrapping
// transport.ErrDriverFault are returned; every per-request failure is handled
// inside the cycle.
func (s *Server) Poll() error {
	defer s.syncFramingErrors()

	free := s.console.ReadFree()
	if free < 0 {
		return fmt.Errorf("%w: read free count %d", transport.ErrDriverFault, free)
	}
	if free == 0 && !s.framer.Ready() {
		// Give up the partial frame so the receiver can catch up.
		s.framer.Abort("receive buffer full, dropping partial frame")
	}

	for !s.framer.Ready() {
		c, err := s.console.ReadByte()
		if errors.Is(err, transport.ErrNoData) {
			break
		}
		if err != nil {
			return fmt.Errorf("%w: %v", transport.ErrDriverFault, err)
		}
		s.framer.Feed(c)
	}

	if !s.framer.Ready() {
		return nil
	}
	defer s.framer.Release()
	return s.serve(s.framer.Frame())
}

func (s *Server) serve(frame []byte) error {
	s.stats.framesReceived.Add(1)

	pdu, err := ascii.Decode(frame, s.address, s.checksum)
	if err != nil {
		s.stats.framesRejected.Add(1)
		slog.Debug("Frame rejected", "frame", fmt.Sprintf("%X", frame), "err", err)
		return nil
	}

	buf := s.framer.Buffer()
	reply := s.execute(pdu, buf[1:])

	adu, err := ascii.Encode(buf, s.address, reply, s.checksum)
	if err != nil {
		s.stats.txAborted.Add(1)
		slog.Warn("Reply not sent", "err", err)
		return nil
	}
	if err := ascii.WriteFrame(s.console, adu); err != nil {
		if errors.Is(err, transport.ErrDriverFault) {
			return err
		}
		s.stats.txAborted.Add(1)
		slog.Warn("Reply truncated", "err", err)
		return nil
	}
	s.stats.replies.Add(1)
	return nil
}

// execute decodes pdu, runs its handler and composes the reply PDU into buf.
// buf aliases the request frame, so everything needed from pdu is copied into
// the scratch request first.
func (s *Server) execute(pdu modbus.ProtocolDataUnit, buf []byte) []byte {
	functionCode := pdu.FunctionCode
	s.req = modbus.Request{}

	var (
		dir registry.Direction
		err error
	)
	switch functionCode {
	case modbus.FuncCodeReadHoldingRegisters:
		dir = registry.Read
		err = modbus.DecodeReadRegisters(pdu, &s.req)
	case modbus.FuncCodeWriteMultipleRegisters:
		dir = registry.Write
		err = modbus.DecodeWriteRegisters(pdu, &s.req)
	default:
		return s.exception(buf, functionCode, modbus.ExceptionCodeIllegalFunction, nil)
	}
	if err != nil {
		return s.exception(buf, functionCode, modbus.ExceptionCodeServerDeviceFailure, err)
	}

	handler, err := s.registry.Lookup(dir, s.req.Address, s.req.Count)
	if err != nil {
		return s.exception(buf, functionCode, modbus.ExceptionCodeIllegalDataAddress, err)
	}
	if !handler.Handle(&s.req) {
		return s.exception(buf, functionCode, modbus.ExceptionCodeIllegalDataValue,
			fmt.Errorf("handler rejected %s of %d registers at 0x%04X", dir, s.req.Count, s.req.Address))
	}

	var reply []byte
	if dir == registry.Read {
		reply, err = modbus.EncodeReadRegistersReply(buf, &s.req)
	} else {
		reply, err = modbus.EncodeWriteRegistersReply(buf, &s.req)
	}
	if err != nil {
		return s.exception(buf, functionCode, modbus.ExceptionCodeServerDeviceFailure, err)
	}
	return reply
}

func (s *Server) exception(buf []byte, functionCode byte, code modbus.ExceptionCode, cause error) []byte {
	s.stats.exceptions.Add(1)
	slog.Debug("Exception reply", "func", fmt.Sprintf("0x%02X", functionCode), "code", code, "err", cause)
	// FrameMax is never below ascii.MinSize, which leaves two bytes in buf.
	reply, _ := modbus.EncodeException(buf, functionCode, code)
	return reply
}

func (s *Server) syncFramingErrors() {
	s.stats.framingErrors.Store(s.framer.Errors())
}

// Address returns the device address the server answers to.
func (s *Server) Address() byte {
	return s.address
}

// Stats returns a snapshot of the counters. Safe from any goroutine.
func (s *Server) Stats() Stats {
	return Stats{
		FramesReceived: s.stats.framesReceived.Load(),
		FramesRejected: s.stats.framesRejected.Load(),
		FramingErrors:  s.stats.framingErrors.Load(),
		Exceptions:     s.stats.exceptions.Load(),
		Replies:        s.stats.replies.Load(),
		TxAborted:      s.stats.txAborted.Load(),
	}
}

// ResetStats clears the counters. It must run on the polling goroutine,
// typically from a handler.
func (s *Server) ResetStats() {
	s.framer.ResetErrors()
	s.stats.framesReceived.Store(0)
	s.stats.framesRejected.Store(0)
	s.stats.framingErrors.Store(0)
	s.stats.exceptions.Store(0)
	s.stats.replies.Store(0)
	s.stats.txAborted.Store(0)
}
