// Package ack decodes the short acknowledgement datagram (wire code 80 06).
package ack

import (
	"encoding/binary"
	"fmt"

	"condor_feed/internal/condor"
)

// Record is one decoded acknowledgement. The counter being acknowledged is
// a u16 stored in a 4-byte little-endian field; the rest of the datagram
// echoes payload bytes we leave opaque.
type Record struct {
	Counter uint16 `json:"counter"`
	Echo    []byte `json:"-"`
}

// Decode decodes an acknowledgement datagram. It is total on any input of
// at least 8 bytes.
func Decode(b []byte) (*Record, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("ack datagram %d bytes: %w", len(b), condor.ErrTooShort)
	}
	tag, err := condor.Classify(b)
	if err != nil {
		return nil, err
	}
	if tag != condor.TagAck {
		return nil, fmt.Errorf("not an ack datagram (tag %s)", tag)
	}

	echo := make([]byte, len(b)-6)
	copy(echo, b[6:])
	return &Record{
		Counter: binary.LittleEndian.Uint16(b[4:]),
		Echo:    echo,
	}, nil
}
