package wire

import (
	"errors"
	"math"
	"testing"
)

func TestCursorReadIntegers(t *testing.T) {
	c := New([]byte{0x3d, 0x00, 0x78, 0x56, 0x34, 0x12})

	u16, err := c.ReadU16()
	if err != nil {
		t.Fatalf("ReadU16() error = %v", err)
	}
	if u16 != 0x003d {
		t.Errorf("ReadU16() = %#04x, want 0x003d", u16)
	}

	u32, err := c.ReadU32()
	if err != nil {
		t.Fatalf("ReadU32() error = %v", err)
	}
	if u32 != 0x12345678 {
		t.Errorf("ReadU32() = %#08x, want 0x12345678", u32)
	}

	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}
}

func TestCursorReadFloats(t *testing.T) {
	// 1.5 as f32 LE, then 2.5 as f64 LE.
	b := []byte{
		0x00, 0x00, 0xc0, 0x3f,
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x04, 0x40,
	}
	c := New(b)

	f32, err := c.ReadF32()
	if err != nil {
		t.Fatalf("ReadF32() error = %v", err)
	}
	if f32 != 1.5 {
		t.Errorf("ReadF32() = %v, want 1.5", f32)
	}

	f64, err := c.ReadF64()
	if err != nil {
		t.Fatalf("ReadF64() error = %v", err)
	}
	if f64 != 2.5 {
		t.Errorf("ReadF64() = %v, want 2.5", f64)
	}
}

func TestCursorOutOfBounds(t *testing.T) {
	c := New([]byte{0x01})

	if _, err := c.ReadU16(); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("ReadU16() error = %v, want ErrOutOfBounds", err)
	}

	// A failed read must not advance.
	if c.Offset() != 0 {
		t.Errorf("Offset() after failed read = %d, want 0", c.Offset())
	}
}

func TestCursorSeekSkip(t *testing.T) {
	c := New(make([]byte, 8))

	if err := c.Seek(4); err != nil {
		t.Fatalf("Seek(4) error = %v", err)
	}
	if c.Offset() != 4 {
		t.Errorf("Offset() = %d, want 4", c.Offset())
	}

	if err := c.Skip(4); err != nil {
		t.Fatalf("Skip(4) error = %v", err)
	}
	if c.Remaining() != 0 {
		t.Errorf("Remaining() = %d, want 0", c.Remaining())
	}

	if err := c.Skip(1); !errors.Is(err, ErrOutOfBounds) {
		t.Errorf("Skip(1) past end error = %v, want ErrOutOfBounds", err)
	}
}

func TestReadLPString(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		min     int
		max     int
		want    string
		wantErr error
	}{
		{
			name: "plain string",
			data: []byte{0x03, 'A', 'A', '3'},
			min:  1, max: 32,
			want: "AA3",
		},
		{
			name: "trims surrounding whitespace",
			data: []byte{0x05, ' ', 'L', 'S', '4', ' '},
			min:  1, max: 32,
			want: "LS4",
		},
		{
			name: "length below minimum",
			data: []byte{0x00, 'A'},
			min:  1, max: 32,
			wantErr: ErrInvalidString,
		},
		{
			name: "length above maximum",
			data: []byte{0x40, 'A'},
			min:  1, max: 32,
			wantErr: ErrInvalidString,
		},
		{
			name: "length runs past buffer",
			data: []byte{0x05, 'A', 'B'},
			min:  1, max: 32,
			wantErr: ErrOutOfBounds,
		},
		{
			name: "non-printable content",
			data: []byte{0x03, 'A', 0x01, 'B'},
			min:  1, max: 32,
			wantErr: ErrInvalidString,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(tt.data)
			got, err := c.ReadLPString(tt.min, tt.max)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ReadLPString() error = %v, want %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ReadLPString() = %q, want %q", got, tt.want)
			}
			if tt.wantErr != nil && c.Offset() != 0 {
				t.Errorf("Offset() after failed read = %d, want 0", c.Offset())
			}
		})
	}
}

func TestPeekLPStringDoesNotAdvance(t *testing.T) {
	c := New([]byte{0x02, 'V', '1'})

	s, n, err := c.PeekLPString(1, 32)
	if err != nil {
		t.Fatalf("PeekLPString() error = %v", err)
	}
	if s != "V1" || n != 3 {
		t.Errorf("PeekLPString() = (%q, %d), want (\"V1\", 3)", s, n)
	}
	if c.Offset() != 0 {
		t.Errorf("Offset() after peek = %d, want 0", c.Offset())
	}
}

func TestLPStringAt(t *testing.T) {
	b := []byte{0xff, 0xff, 0x03, 'M', 'K', 'D', 0x00}

	if got := LPStringAt(b, 2); got != "MKD" {
		t.Errorf("LPStringAt(b, 2) = %q, want \"MKD\"", got)
	}
	if got := LPStringAt(b, 100); got != "" {
		t.Errorf("LPStringAt(b, 100) = %q, want \"\"", got)
	}
	if got := LPStringAt(b, 6); got != "" {
		t.Errorf("LPStringAt at zero length = %q, want \"\"", got)
	}
	if got := LPStringAt(b, 0); got != "" {
		t.Errorf("LPStringAt with overlong length = %q, want \"\"", got)
	}
}

func TestCursorFloatNaNPassesThrough(t *testing.T) {
	c := New([]byte{0x00, 0x00, 0xc0, 0x7f}) // f32 NaN
	f, err := c.ReadF32()
	if err != nil {
		t.Fatalf("ReadF32() error = %v", err)
	}
	if !math.IsNaN(float64(f)) {
		t.Errorf("ReadF32() = %v, want NaN", f)
	}
}
