// Package wire provides bounds-checked primitive reads over raw datagram
// bytes. All multi-byte integers and floats on the Condor wire are
// little-endian; strings are length-prefixed ASCII (one length byte L
// followed by L raw bytes).
package wire

import (
	"encoding/binary"
	"errors"
	"math"
	"strings"
)

// ErrOutOfBounds is returned when a read would run past the end of the buffer.
var ErrOutOfBounds = errors.New("read past end of buffer")

// ErrInvalidString is returned when a length-prefixed string has an
// implausible length or contains non-printable bytes.
var ErrInvalidString = errors.New("invalid length-prefixed string")

// Cursor reads sequential fields from a byte slice. Reads advance the
// cursor only on success; a failed read leaves the position unchanged.
type Cursor struct {
	data []byte
	off  int
}

// New creates a Cursor over b. The Cursor borrows b for the duration of
// the decode; it never copies or retains it.
func New(b []byte) *Cursor {
	return &Cursor{data: b}
}

// Offset returns the current byte position.
func (c *Cursor) Offset() int {
	return c.off
}

// Remaining returns the number of unread bytes.
func (c *Cursor) Remaining() int {
	return len(c.data) - c.off
}

// Seek moves the cursor to an absolute offset. Seeking past the end of the
// buffer fails.
func (c *Cursor) Seek(off int) error {
	if off < 0 || off > len(c.data) {
		return ErrOutOfBounds
	}
	c.off = off
	return nil
}

// Skip advances the cursor by n bytes.
func (c *Cursor) Skip(n int) error {
	if n < 0 || c.off+n > len(c.data) {
		return ErrOutOfBounds
	}
	c.off += n
	return nil
}

// ReadU16 reads a little-endian uint16.
func (c *Cursor) ReadU16() (uint16, error) {
	if c.off+2 > len(c.data) {
		return 0, ErrOutOfBounds
	}
	v := binary.LittleEndian.Uint16(c.data[c.off:])
	c.off += 2
	return v, nil
}

// ReadU32 reads a little-endian uint32.
func (c *Cursor) ReadU32() (uint32, error) {
	if c.off+4 > len(c.data) {
		return 0, ErrOutOfBounds
	}
	v := binary.LittleEndian.Uint32(c.data[c.off:])
	c.off += 4
	return v, nil
}

// ReadF32 reads a little-endian float32.
func (c *Cursor) ReadF32() (float32, error) {
	if c.off+4 > len(c.data) {
		return 0, ErrOutOfBounds
	}
	v := math.Float32frombits(binary.LittleEndian.Uint32(c.data[c.off:]))
	c.off += 4
	return v, nil
}

// ReadF64 reads a little-endian float64.
func (c *Cursor) ReadF64() (float64, error) {
	if c.off+8 > len(c.data) {
		return 0, ErrOutOfBounds
	}
	v := math.Float64frombits(binary.LittleEndian.Uint64(c.data[c.off:]))
	c.off += 8
	return v, nil
}

// ReadLPString reads a length-prefixed ASCII string whose length byte must
// fall within [minLen, maxLen]. Every content byte must be printable ASCII
// (32..126). The result is returned with surrounding whitespace trimmed.
func (c *Cursor) ReadLPString(minLen, maxLen int) (string, error) {
	s, n, err := c.PeekLPString(minLen, maxLen)
	if err != nil {
		return "", err
	}
	c.off += n
	return s, nil
}

// PeekLPString validates and decodes a length-prefixed ASCII string at the
// current position without advancing. It returns the trimmed string and the
// total number of bytes the string occupies (length byte included), so a
// caller scanning for plausible strings can advance selectively.
func (c *Cursor) PeekLPString(minLen, maxLen int) (string, int, error) {
	if c.off >= len(c.data) {
		return "", 0, ErrOutOfBounds
	}
	n := int(c.data[c.off])
	if n < minLen || n > maxLen {
		return "", 0, ErrInvalidString
	}
	if c.off+1+n > len(c.data) {
		return "", 0, ErrOutOfBounds
	}
	raw := c.data[c.off+1 : c.off+1+n]
	for _, b := range raw {
		if b < 32 || b > 126 {
			return "", 0, ErrInvalidString
		}
	}
	return strings.TrimSpace(string(raw)), 1 + n, nil
}

// LPStringAt decodes a length-prefixed ASCII string at a fixed offset in b.
// Used by the fixed-offset identity layout, where a field that points past
// the end of the record means "absent", not "corrupt": any failure yields
// an empty string rather than an error.
func LPStringAt(b []byte, off int) string {
	if off < 0 || off >= len(b) {
		return ""
	}
	n := int(b[off])
	if n == 0 || off+1+n > len(b) {
		return ""
	}
	raw := b[off+1 : off+1+n]
	for _, c := range raw {
		if c < 32 || c > 126 {
			return ""
		}
	}
	return strings.TrimSpace(string(raw))
}
