// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package modbus

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Request is the normalized register operation exchanged with handlers.
// Read handlers fill Values[:Count]; for writes the codec fills it.
type Request struct {
	Address uint16
	Count   uint16
	Values  [MaxRegisters]uint16
}

// Registers returns the populated part of Values.
func (r *Request) Registers() []uint16 {
	n := int(r.Count)
	if n > MaxRegisters {
		n = MaxRegisters
	}
	return r.Values[:n]
}

// End returns the inclusive end address of the request.
// For a zero count the result wraps below Address.
func (r *Request) End() uint16 {
	return r.Address + r.Count - 1
}

// LengthError reports a PDU whose length does not fit its function code.
type LengthError struct {
	FunctionCode byte
	Length       int
	Want         int
	AtLeast      bool
}

func (e *LengthError) Error() string {
	if e.AtLeast {
		return fmt.Sprintf("modbus: function 0x%02X request length %d, should be at least %d", e.FunctionCode, e.Length, e.Want)
	}
	return fmt.Sprintf("modbus: function 0x%02X request length %d, should be %d", e.FunctionCode, e.Length, e.Want)
}

// ByteCountError reports a Write Registers request whose byte count disagrees
// with its register count or with the payload actually received.
type ByteCountError struct {
	Count     uint16
	ByteCount byte
	Remaining int
}

func (e *ByteCountError) Error() string {
	if int(e.ByteCount) != int(e.Count)*2 {
		return fmt.Sprintf("modbus: count mismatch, reports %d registers but %d data bytes", e.Count, e.ByteCount)
	}
	return fmt.Sprintf("modbus: length mismatch, reports %d data bytes but %d received", e.ByteCount, e.Remaining)
}

// DecodeReadRegisters decodes a Read Holding Registers request:
//
//	Function code   : 1 byte (0x03)
//	Starting address: 2 bytes
//	Quantity        : 2 bytes
func DecodeReadRegisters(pdu ProtocolDataUnit, req *Request) error {
	if pdu.Len() != 5 {
		return &LengthError{FunctionCode: pdu.FunctionCode, Length: pdu.Len(), Want: 5}
	}
	req.Address = binary.BigEndian.Uint16(pdu.Data[0:2])
	req.Count = binary.BigEndian.Uint16(pdu.Data[2:4])
	return nil
}

// DecodeWriteRegisters decodes a Write Multiple Registers request:
//
//	Function code   : 1 byte (0x10)
//	Starting address: 2 bytes
//	Quantity        : 2 bytes
//	Byte count      : 1 byte
//	Values          : 2 x Quantity bytes
func DecodeWriteRegisters(pdu ProtocolDataUnit, req *Request) error {
	if pdu.Len() < 6 {
		return &LengthError{FunctionCode: pdu.FunctionCode, Length: pdu.Len(), Want: 6, AtLeast: true}
	}
	address := binary.BigEndian.Uint16(pdu.Data[0:2])
	count := binary.BigEndian.Uint16(pdu.Data[2:4])
	byteCount := pdu.Data[4]
	remaining := pdu.Len() - 6

	if int(byteCount) != int(count)*2 || int(byteCount) != remaining {
		return &ByteCountError{Count: count, ByteCount: byteCount, Remaining: remaining}
	}

	req.Address = address
	req.Count = count
	// A byte count can announce up to 127 registers; the dispatcher rejects
	// anything above MaxRegisters, so values past the limit are not kept.
	values := pdu.Data[5:]
	for i := range req.Registers() {
		req.Values[i] = binary.BigEndian.Uint16(values[i*2:])
	}
	return nil
}

// EncodeReadRegistersReply composes a Read Holding Registers reply into buf
// and returns the PDU slice. buf may alias the request frame.
func EncodeReadRegistersReply(buf []byte, req *Request) ([]byte, error) {
	if req.Count > MaxRegisters {
		return nil, fmt.Errorf("modbus: reply of %d registers exceeds %d", req.Count, MaxRegisters)
	}
	length := 2 + int(req.Count)*2
	if len(buf) < length {
		return nil, io.ErrShortBuffer
	}
	buf[0] = FuncCodeReadHoldingRegisters
	buf[1] = byte(req.Count * 2)
	for i, v := range req.Registers() {
		binary.BigEndian.PutUint16(buf[2+i*2:], v)
	}
	return buf[:length], nil
}

// EncodeWriteRegistersReply composes the Write Multiple Registers
// acknowledgement (start address and quantity echoed) into buf.
func EncodeWriteRegistersReply(buf []byte, req *Request) ([]byte, error) {
	if len(buf) < 5 {
		return nil, io.ErrShortBuffer
	}
	buf[0] = FuncCodeWriteMultipleRegisters
	binary.BigEndian.PutUint16(buf[1:], req.Address)
	binary.BigEndian.PutUint16(buf[3:], req.Count)
	return buf[:5], nil
}

// EncodeException composes an exception reply into buf.
func EncodeException(buf []byte, functionCode byte, code ExceptionCode) ([]byte, error) {
	if len(buf) < 2 {
		return nil, io.ErrShortBuffer
	}
	buf[0] = functionCode | ExceptionOffset
	buf[1] = byte(code)
	return buf[:2], nil
}
