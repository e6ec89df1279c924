// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

import (
	"fmt"
	"log/slog"
)

// State is the position of the Framer within a Modbus ASCII frame.
type State int

const (
	StateIdle State = iota
	StateStart
	StateMSNibble
	StateLSNibble
	StateEndCR
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStart:
		return "start"
	case StateMSNibble:
		return "ms-nibble"
	case StateLSNibble:
		return "ls-nibble"
	case StateEndCR:
		return "end-cr"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Framer recovers frames from a Modbus ASCII character stream, one
// character at a time.
//
// A completed frame stays in StateReady, and the Framer ignores input, until
// Release is called. Frame and Buffer share the same backing array, so the
// reply to a frame can be composed in place.
type Framer struct {
	buf    []byte
	length int
	state  State

	seq    uint // frames started
	char   uint // characters since the last start marker
	errors uint64

	logger *slog.Logger
}

// NewFramer creates a Framer accepting frames of up to maxSize decoded bytes.
func NewFramer(maxSize int) *Framer {
	if maxSize <= 0 {
		maxSize = MaxSize
	}
	return &Framer{
		buf:    make([]byte, maxSize),
		logger: slog.Default(),
	}
}

// SetLogger replaces the logger used for framing diagnostics.
func (f *Framer) SetLogger(logger *slog.Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// Feed advances the state machine by one received character.
func (f *Framer) Feed(c byte) {
	f.char++

	if c == StartMarker {
		if f.state == StateReady {
			// The pending frame may still be in use.
			f.debug("ignoring start marker, frame pending")
			return
		}
		if f.state != StateIdle {
			f.fail("unexpected start marker")
		}
		f.state = StateIdle
	}

	// f.state is the state reached by the previous character.
	switch f.state {
	case StateIdle:
		f.length = 0
		f.char = 0
		if c == StartMarker {
			f.state = StateStart
			f.seq++
		}

	case StateStart, StateMSNibble, StateLSNibble:
		if c == EndCR {
			if f.state != StateLSNibble {
				// Only half a byte arrived; it is not counted.
				f.debug("misaligned end of frame")
			}
			f.state = StateEndCR
			return
		}

		nib, ok := decodeHex(c)
		if !ok {
			f.fail("invalid hex character, resetting", "in", fmt.Sprintf("%q", c))
			f.reset()
			return
		}

		if f.state == StateMSNibble {
			f.buf[f.length] |= nib
			f.length++
			f.state = StateLSNibble
		} else {
			if f.length >= len(f.buf) {
				f.fail("overlength frame, resetting", "max", len(f.buf))
				f.reset()
				return
			}
			f.buf[f.length] = nib << 4
			f.state = StateMSNibble
		}

	case StateEndCR:
		if c == EndLF {
			f.state = StateReady
			return
		}
		f.fail("incomplete end of frame, resetting")
		f.reset()

	case StateReady:
		// Wait for Release.
	}
}

// Ready reports whether a complete frame is waiting to be consumed.
func (f *Framer) Ready() bool {
	return f.state == StateReady
}

// State returns the current state.
func (f *Framer) State() State {
	return f.state
}

// Frame returns the completed frame, or nil when none is ready.
func (f *Framer) Frame() []byte {
	if f.state != StateReady {
		return nil
	}
	return f.buf[:f.length]
}

// Buffer returns the whole frame storage. Replies are composed into it.
func (f *Framer) Buffer() []byte {
	return f.buf
}

// Release hands a ready frame back to the Framer so it can accept the next.
func (f *Framer) Release() {
	if f.state == StateReady {
		f.reset()
	}
}

// Abort discards any frame in progress. A ready frame is discarded too.
func (f *Framer) Abort(reason string) {
	if f.state == StateIdle {
		return
	}
	f.fail(reason)
	f.reset()
}

// Seq returns the number of frames started so far.
func (f *Framer) Seq() uint {
	return f.seq
}

// Errors returns the number of framing errors seen.
func (f *Framer) Errors() uint64 {
	return f.errors
}

// ResetErrors clears the framing error counter.
func (f *Framer) ResetErrors() {
	f.errors = 0
}

func (f *Framer) reset() {
	f.state = StateIdle
	f.length = 0
}

func (f *Framer) fail(msg string, args ...any) {
	f.errors++
	f.logger.Warn("modbus ascii: "+msg, f.attrs(args)...)
}

func (f *Framer) debug(msg string, args ...any) {
	f.logger.Debug("modbus ascii: "+msg, f.attrs(args)...)
}

func (f *Framer) attrs(args []any) []any {
	attrs := append([]any{"seq", f.seq, "char", f.char, "state", f.state.String()}, args...)
	if f.length > 0 {
		attrs = append(attrs, "frame", fmt.Sprintf("%X", f.buf[:f.length]))
	}
	return attrs
}

func decodeHex(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
