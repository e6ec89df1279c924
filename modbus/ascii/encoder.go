// Copyright (c) 2026 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package ascii

import (
	"errors"
	"fmt"

	"github.com/ffutop/frequencer/transport"
)

// ErrTxOverflow reports a reply cut short because the sink ran out of space.
// Whatever was written before stays written.
var ErrTxOverflow = errors.New("modbus ascii: transmit overflow, reply discarded")

// WriteFrame renders adu as ':' + two uppercase hex digits per byte + CRLF.
//
// Each piece is written only after checking the sink's free space; on the
// first shortfall the rest of the frame is dropped and ErrTxOverflow is
// returned. Errors wrapping transport.ErrDriverFault are fatal.
func WriteFrame(sink transport.Sink, adu []byte) error {
	if err := writeSafe(sink, []byte{StartMarker}); err != nil {
		return err
	}

	var pair [2]byte
	for _, b := range adu {
		pair[0] = hexTable[b>>4]
		pair[1] = hexTable[b&0x0F]
		if err := writeSafe(sink, pair[:]); err != nil {
			return err
		}
	}

	return writeSafe(sink, []byte{EndCR, EndLF})
}

func writeSafe(sink transport.Sink, p []byte) error {
	free := sink.WriteFree()
	if free < 0 {
		return fmt.Errorf("%w: write free count %d", transport.ErrDriverFault, free)
	}
	if free < len(p) {
		return ErrTxOverflow
	}
	if _, err := sink.Write(p); err != nil {
		if errors.Is(err, transport.ErrTxFull) {
			return ErrTxOverflow
		}
		return fmt.Errorf("%w: %v", transport.ErrDriverFault, err)
	}
	return nil
}
