// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

const (
	// MinSize is the shortest meaningful ADU: address, function, checksum.
	MinSize = 3
	// MaxSize is the default limit on decoded frame bytes.
	MaxSize = 252
)

// Framing characters
const (
	StartMarker = ':'
	EndCR       = '\r'
	EndLF       = '\n'
)

const hexTable = "0123456789ABCDEF"
