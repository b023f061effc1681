package telemetry

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"condor_feed/internal/condor"
)

// buildDatagram assembles a primary telemetry datagram with the given
// cookie, position and vectors.
func buildDatagram(cookie uint32, x, y, alt float32, vel, acc Vec3) []byte {
	b := make([]byte, headerLen+minPayloadWords*4)
	binary.LittleEndian.PutUint16(b[0:], uint16(condor.TagTelemetryPrimary))
	binary.LittleEndian.PutUint16(b[2:], 7)      // counter
	binary.LittleEndian.PutUint32(b[4:], 0x2001) // object id

	putF32 := func(i int, v float32) {
		binary.LittleEndian.PutUint32(b[headerLen+i*4:], math.Float32bits(v))
	}
	binary.LittleEndian.PutUint32(b[headerLen:], cookie)
	putF32(2, x)
	putF32(3, y)
	putF32(4, alt)
	putF32(5, vel.X)
	putF32(6, vel.Y)
	putF32(7, vel.Z)
	putF32(8, acc.X)
	putF32(9, acc.Y)
	putF32(10, acc.Z)
	return b
}

func TestDecodeFields(t *testing.T) {
	b := buildDatagram(0xaabbccdd, 1500.5, -320.25, 840,
		Vec3{X: 0, Y: 5, Z: -2}, Vec3{X: 0, Y: 0, Z: 9.81})

	rec, err := Decode(b)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if rec.Cookie != 0xaabbccdd {
		t.Errorf("Cookie = %#08x, want 0xaabbccdd", rec.Cookie)
	}
	if rec.Counter != 7 {
		t.Errorf("Counter = %d, want 7", rec.Counter)
	}
	if rec.ObjectID != 0x2001 {
		t.Errorf("ObjectID = %#x, want 0x2001", rec.ObjectID)
	}
	if rec.PositionX != 1500.5 || rec.PositionY != -320.25 {
		t.Errorf("position = (%v, %v), want (1500.5, -320.25)", rec.PositionX, rec.PositionY)
	}
	if rec.AltitudeM != 840 {
		t.Errorf("AltitudeM = %v, want 840", rec.AltitudeM)
	}
}

func TestDecodeDerived(t *testing.T) {
	tests := []struct {
		name        string
		vel         Vec3
		wantHeading float64
		wantSpeed   float64
		wantVario   float64
	}{
		{
			name:        "due north",
			vel:         Vec3{X: 0, Y: 1, Z: 0},
			wantHeading: 0,
			wantSpeed:   1,
			wantVario:   0,
		},
		{
			name:        "positive x is west",
			vel:         Vec3{X: 1, Y: 0, Z: 0},
			wantHeading: 270,
			wantSpeed:   1,
			wantVario:   0,
		},
		{
			name:        "north with sink",
			vel:         Vec3{X: 0, Y: 5, Z: -2},
			wantHeading: 0,
			wantSpeed:   math.Sqrt(29), // ~5.385
			wantVario:   -2,
		},
		{
			name:        "due south",
			vel:         Vec3{X: 0, Y: -1, Z: 0},
			wantHeading: 180,
			wantSpeed:   1,
			wantVario:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := buildDatagram(1, 0, 0, 0, tt.vel, Vec3{})
			rec, err := Decode(b)
			if err != nil {
				t.Fatalf("Decode() error = %v", err)
			}

			d := rec.Derived
			if math.Abs(float64(d.HeadingDeg)-tt.wantHeading) > 0.01 {
				t.Errorf("HeadingDeg = %v, want %v", d.HeadingDeg, tt.wantHeading)
			}
			if math.Abs(float64(d.SpeedMPS)-tt.wantSpeed) > 0.001 {
				t.Errorf("SpeedMPS = %v, want %v", d.SpeedMPS, tt.wantSpeed)
			}
			if math.Abs(float64(d.VerticalSpeedMPS)-tt.wantVario) > 0.001 {
				t.Errorf("VerticalSpeedMPS = %v, want %v", d.VerticalSpeedMPS, tt.wantVario)
			}
		})
	}
}

func TestDecodeHeadingRange(t *testing.T) {
	// Heading must stay in [0, 360) whatever the vector quadrant.
	for _, vel := range []Vec3{
		{X: 1, Y: 1}, {X: -1, Y: 1}, {X: 1, Y: -1}, {X: -1, Y: -1},
	} {
		b := buildDatagram(1, 0, 0, 0, vel, Vec3{})
		rec, err := Decode(b)
		if err != nil {
			t.Fatalf("Decode() error = %v", err)
		}
		h := rec.Derived.HeadingDeg
		if h < 0 || h >= 360 {
			t.Errorf("HeadingDeg = %v for velocity %+v, want [0, 360)", h, vel)
		}
	}
}

func TestDecodeTooShort(t *testing.T) {
	b := buildDatagram(1, 0, 0, 0, Vec3{}, Vec3{})
	if _, err := Decode(b[:51]); !errors.Is(err, condor.ErrTooShort) {
		t.Errorf("Decode(51 bytes) error = %v, want ErrTooShort", err)
	}
}

func TestDecodeAuxSubtypes(t *testing.T) {
	for _, tag := range []uint16{0x0039, 0x0031} {
		b := make([]byte, 64)
		binary.LittleEndian.PutUint16(b, tag)
		_, err := Decode(b)
		if !errors.Is(err, condor.ErrUnsupportedSubtype) {
			t.Errorf("Decode(tag %#04x) error = %v, want ErrUnsupportedSubtype", tag, err)
		}
	}
}

func TestDecodeRejectsNonTelemetry(t *testing.T) {
	b := make([]byte, 64)
	binary.LittleEndian.PutUint16(b, uint16(condor.TagAck))
	if _, err := Decode(b); err == nil {
		t.Error("Decode() on an ack datagram: expected error, got nil")
	}
}
