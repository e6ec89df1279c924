// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

import (
	"bytes"
	"testing"
)

func feed(f *Framer, s string) {
	for i := 0; i < len(s); i++ {
		f.Feed(s[i])
	}
}

func TestFramerFrames(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		max       int
		wantReady bool
		want      []byte
		wantErrs  uint64
	}{
		{"ReadRequest", ":010300000001FB\r\n", 0, true, []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0xFB}, 0},
		{"LowerCase", ":0a10ff\r\n", 0, true, []byte{0x0A, 0x10, 0xFF}, 0},
		{"LeadingNoise", "xyz\r\n:0103\r\n", 0, true, []byte{0x01, 0x03}, 0},
		{"RestartOnStartMarker", ":0103:0204\r\n", 0, true, []byte{0x02, 0x04}, 1},
		{"MisalignedEnd", ":01030\r\n", 0, true, []byte{0x01, 0x03}, 0},
		{"EmptyFrame", ":\r\n", 0, true, []byte{}, 0},
		{"InvalidHex", ":01G3\r\n", 0, false, nil, 1},
		{"MissingLF", ":0103\r0\n", 0, false, nil, 1},
		{"Overlength", ":0102030405\r\n", 4, false, nil, 1},
		{"ExactlyMax", ":01020304\r\n", 4, true, []byte{0x01, 0x02, 0x03, 0x04}, 0},
		{"Unterminated", ":0103", 0, false, nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(tt.max)
			feed(f, tt.input)

			if f.Ready() != tt.wantReady {
				t.Fatalf("Ready() = %v, want %v (state %v)", f.Ready(), tt.wantReady, f.State())
			}
			if tt.wantReady && !bytes.Equal(f.Frame(), tt.want) {
				t.Errorf("Frame() = % X, want % X", f.Frame(), tt.want)
			}
			if !tt.wantReady && f.Frame() != nil {
				t.Errorf("Frame() = % X, want nil", f.Frame())
			}
			if f.Errors() != tt.wantErrs {
				t.Errorf("Errors() = %d, want %d", f.Errors(), tt.wantErrs)
			}
		})
	}
}

func TestFramerHoldsReadyFrame(t *testing.T) {
	f := NewFramer(0)
	feed(f, ":0103\r\n")
	if !f.Ready() {
		t.Fatalf("state = %v, want ready", f.State())
	}

	// Everything, including a new start marker, is ignored until Release.
	feed(f, ":0204\r\n")
	if got := f.Frame(); !bytes.Equal(got, []byte{0x01, 0x03}) {
		t.Fatalf("Frame() = % X, want 01 03", got)
	}
	if f.Errors() != 0 {
		t.Errorf("Errors() = %d, want 0", f.Errors())
	}

	f.Release()
	if f.State() != StateIdle {
		t.Fatalf("state after Release = %v, want idle", f.State())
	}

	feed(f, ":0204\r\n")
	if got := f.Frame(); !bytes.Equal(got, []byte{0x02, 0x04}) {
		t.Errorf("Frame() = % X, want 02 04", got)
	}
	if f.Seq() != 2 {
		t.Errorf("Seq() = %d, want 2", f.Seq())
	}
}

func TestFramerStates(t *testing.T) {
	f := NewFramer(0)
	steps := []struct {
		in   byte
		want State
	}{
		{'x', StateIdle},
		{':', StateStart},
		{'0', StateMSNibble},
		{'1', StateLSNibble},
		{'A', StateMSNibble},
		{'b', StateLSNibble},
		{'\r', StateEndCR},
		{'\n', StateReady},
		{'0', StateReady},
	}
	for i, s := range steps {
		f.Feed(s.in)
		if f.State() != s.want {
			t.Fatalf("step %d (%q): state = %v, want %v", i, s.in, f.State(), s.want)
		}
	}
}

func TestFramerAbort(t *testing.T) {
	f := NewFramer(0)
	f.Abort("idle")
	if f.Errors() != 0 {
		t.Errorf("Abort in idle counted an error")
	}

	feed(f, ":01")
	f.Abort("receive overflow")
	if f.State() != StateIdle || f.Errors() != 1 {
		t.Errorf("after Abort: state %v errors %d, want idle and 1", f.State(), f.Errors())
	}

	f.ResetErrors()
	if f.Errors() != 0 {
		t.Errorf("ResetErrors() left %d", f.Errors())
	}
}

func TestFramerBufferSharesFrame(t *testing.T) {
	f := NewFramer(8)
	feed(f, ":0103\r\n")
	buf := f.Buffer()
	if len(buf) != 8 {
		t.Fatalf("len(Buffer()) = %d, want 8", len(buf))
	}
	buf[1] = 0x83
	if f.Frame()[1] != 0x83 {
		t.Errorf("Frame and Buffer do not share storage")
	}
}
