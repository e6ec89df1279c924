// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name     string
		frame    []byte
		address  byte
		checksum Checksum
		wantFC   byte
		wantData []byte
		wantErr  any
	}{
		{"NoChecksum", []byte{0x00, 0x03, 0x01, 0x00, 0x00, 0x02, 0x55}, 0, NoChecksum{}, 0x03, []byte{0x01, 0x00, 0x00, 0x02}, nil},
		{"MinimumFrame", []byte{0x00, 0x2B, 0x00}, 0, NoChecksum{}, 0x2B, []byte{}, nil},
		{"LRC", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0xFB}, 1, LRCChecksum{}, 0x03, []byte{0x00, 0x00, 0x00, 0x01}, nil},
		{"TooShort", []byte{0x00, 0x03}, 0, NoChecksum{}, 0, nil, ErrFrameTooShort},
		{"Empty", []byte{}, 0, NoChecksum{}, 0, nil, ErrFrameTooShort},
		{"WrongAddress", []byte{0x05, 0x03, 0x00}, 0, NoChecksum{}, 0, nil, &AddressError{}},
		{"BadLRC", []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01, 0xFA}, 1, LRCChecksum{}, 0, nil, &ChecksumError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pdu, err := Decode(tt.frame, tt.address, tt.checksum)
			switch want := tt.wantErr.(type) {
			case nil:
				if err != nil {
					t.Fatalf("Decode() error = %v", err)
				}
			case *AddressError:
				var ae *AddressError
				if !errors.As(err, &ae) {
					t.Fatalf("Decode() error = %v, want AddressError", err)
				}
				return
			case *ChecksumError:
				var ce *ChecksumError
				if !errors.As(err, &ce) {
					t.Fatalf("Decode() error = %v, want ChecksumError", err)
				}
				if ce.Want != 0xFB {
					t.Errorf("ChecksumError.Want = 0x%02X, want 0xFB", ce.Want)
				}
				return
			case error:
				if !errors.Is(err, want) {
					t.Fatalf("Decode() error = %v, want %v", err, want)
				}
				return
			}
			if pdu.FunctionCode != tt.wantFC {
				t.Errorf("FunctionCode = 0x%02X, want 0x%02X", pdu.FunctionCode, tt.wantFC)
			}
			if !bytes.Equal(pdu.Data, tt.wantData) {
				t.Errorf("Data = % X, want % X", pdu.Data, tt.wantData)
			}
		})
	}
}

func TestEncodeInPlace(t *testing.T) {
	buf := make([]byte, 8)
	copy(buf[1:], []byte{0x03, 0x02, 0x12, 0x34})

	adu, err := Encode(buf, 0x11, buf[1:5], LRCChecksum{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	want := []byte{0x11, 0x03, 0x02, 0x12, 0x34, 0x00}
	want[5] = LRCChecksum{}.Compute(want[:5])
	if !bytes.Equal(adu, want) {
		t.Errorf("Encode() = % X, want % X", adu, want)
	}
	if &adu[0] != &buf[0] {
		t.Errorf("Encode() did not use buf")
	}
	if !(LRCChecksum{}).Validate(adu) {
		t.Errorf("encoded ADU does not validate")
	}
}

func TestEncodeNoChecksum(t *testing.T) {
	buf := make([]byte, 8)
	adu, err := Encode(buf, 0, []byte{0x90, 0x04}, NoChecksum{})
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if !bytes.Equal(adu, []byte{0x00, 0x90, 0x04, 0x00}) {
		t.Errorf("Encode() = % X", adu)
	}
}

func TestEncodeOverlength(t *testing.T) {
	buf := make([]byte, 4)
	if _, err := Encode(buf, 0, []byte{0x03, 0x02, 0x00}, NoChecksum{}); !errors.Is(err, ErrOverlength) {
		t.Errorf("Encode() error = %v, want ErrOverlength", err)
	}
}

func TestParseChecksum(t *testing.T) {
	tests := []struct {
		name    string
		want    Checksum
		wantErr bool
	}{
		{"", NoChecksum{}, false},
		{"none", NoChecksum{}, false},
		{"LRC", LRCChecksum{}, false},
		{"crc", nil, true},
	}
	for _, tt := range tests {
		got, err := ParseChecksum(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseChecksum(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseChecksum(%q) = %T, want %T", tt.name, got, tt.want)
		}
	}
}
