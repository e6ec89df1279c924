// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package persistence

import (
	"unsafe"

	"github.com/ffutop/frequencer/internal/regbank"
)

// A bank file holds the registers back to back, two bytes each.
const totalSize = regbank.Size * 2

// mapBytesToBank constructs a Bank backed by the provided data slice.
// Warning: the registers are read in host byte order, so a bank file is not
// portable between architectures of different endianness.
func mapBytesToBank(data []byte) *regbank.Bank {
	return &regbank.Bank{
		Registers: unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), regbank.Size),
	}
}
