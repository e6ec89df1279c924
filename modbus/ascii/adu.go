// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ffutop/frequencer/modbus"
	"github.com/ffutop/frequencer/modbus/lrc"
)

var (
	ErrFrameTooShort = errors.New("modbus ascii: frame too short")
	ErrOverlength    = errors.New("modbus ascii: reply exceeds frame size")
)

// AddressError reports a frame addressed to another device.
type AddressError struct {
	Want byte
	Got  byte
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("modbus ascii: frame address %d does not match device address %d", e.Got, e.Want)
}

// ChecksumError reports a frame whose checksum byte does not verify.
type ChecksumError struct {
	Want byte
	Got  byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("modbus ascii: checksum 0x%02X does not match expected 0x%02X", e.Got, e.Want)
}

// Checksum validates and generates the trailing check byte of an ADU.
type Checksum interface {
	// Validate reports whether the last byte of adu checks the rest.
	Validate(adu []byte) bool
	// Compute returns the check byte for body (address and PDU).
	Compute(body []byte) byte
}

// NoChecksum accepts every frame and transmits a zero check byte.
type NoChecksum struct{}

func (NoChecksum) Validate(adu []byte) bool { return true }
func (NoChecksum) Compute(body []byte) byte { return 0x00 }

// LRCChecksum is the standard Modbus ASCII longitudinal redundancy check.
type LRCChecksum struct{}

func (c LRCChecksum) Validate(adu []byte) bool {
	if len(adu) == 0 {
		return false
	}
	return c.Compute(adu[:len(adu)-1]) == adu[len(adu)-1]
}

func (LRCChecksum) Compute(body []byte) byte {
	var l lrc.LRC
	return l.Reset().PushBytes(body).Value()
}

// ParseChecksum maps a configuration name to a Checksum.
func ParseChecksum(name string) (Checksum, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "none":
		return NoChecksum{}, nil
	case "lrc":
		return LRCChecksum{}, nil
	default:
		return nil, fmt.Errorf("modbus ascii: unknown checksum %q", name)
	}
}

// Decode validates a received frame:
//
//	Address         : 1 byte
//	Function        : 1 byte
//	Data            : 0 up to 250 bytes
//	Checksum        : 1 byte
//
// and returns the PDU it carries. The PDU aliases frame.
func Decode(frame []byte, address byte, checksum Checksum) (modbus.ProtocolDataUnit, error) {
	length := len(frame)
	if length < MinSize {
		return modbus.ProtocolDataUnit{}, fmt.Errorf("%w: %d bytes, need %d", ErrFrameTooShort, length, MinSize)
	}
	if frame[0] != address {
		return modbus.ProtocolDataUnit{}, &AddressError{Want: address, Got: frame[0]}
	}
	if !checksum.Validate(frame) {
		return modbus.ProtocolDataUnit{}, &ChecksumError{Want: checksum.Compute(frame[:length-1]), Got: frame[length-1]}
	}
	return modbus.ProtocolDataUnit{
		FunctionCode: frame[1],
		Data:         frame[2 : length-1],
	}, nil
}

// Encode places address, pdu and checksum into buf and returns the ADU.
// pdu may already sit at buf[1:].
func Encode(buf []byte, address byte, pdu []byte, checksum Checksum) ([]byte, error) {
	length := len(pdu) + 2
	if len(pdu) == 0 || length > len(buf) {
		return nil, fmt.Errorf("%w: %d bytes, max %d", ErrOverlength, length, len(buf))
	}
	copy(buf[1:], pdu)
	buf[0] = address
	buf[length-1] = checksum.Compute(buf[:length-1])
	return buf[:length], nil
}
