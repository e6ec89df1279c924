// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

import (
	"bytes"
	"errors"
	"testing"

	"github.com/ffutop/frequencer/transport"
)

type limitSink struct {
	bytes.Buffer
	free int
}

func (s *limitSink) WriteFree() int { return s.free }

func (s *limitSink) Write(p []byte) (int, error) {
	if len(p) > s.free {
		return 0, transport.ErrTxFull
	}
	s.free -= len(p)
	return s.Buffer.Write(p)
}

func TestWriteFrame(t *testing.T) {
	tests := []struct {
		name    string
		adu     []byte
		free    int
		want    string
		wantErr error
	}{
		{"ReadReply", []byte{0x00, 0x03, 0x04, 0x01, 0x00, 0x01, 0x01, 0x00}, 64, ":0003040100010100\r\n", nil},
		{"Exception", []byte{0x00, 0x90, 0x04, 0x00}, 64, ":00900400\r\n", nil},
		{"UpperCase", []byte{0xAB, 0xCD}, 64, ":ABCD\r\n", nil},
		{"ExactFit", []byte{0x00, 0x83, 0x02, 0x00}, 11, ":00830200\r\n", nil},
		{"Truncated", []byte{0x00, 0x83, 0x02, 0x00}, 6, ":0083", ErrTxOverflow},
		{"NoRoomForTerminator", []byte{0x00, 0x83, 0x02, 0x00}, 10, ":00830200", ErrTxOverflow},
		{"NoRoom", []byte{0x00}, 0, "", ErrTxOverflow},
		{"Fault", []byte{0x00}, -1, "", transport.ErrDriverFault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &limitSink{free: tt.free}
			err := WriteFrame(sink, tt.adu)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("WriteFrame() error = %v, want %v", err, tt.wantErr)
			}
			if got := sink.String(); got != tt.want {
				t.Errorf("WriteFrame() wrote %q, want %q", got, tt.want)
			}
		})
	}
}
