// Package telemetry decodes the primary position/velocity/acceleration
// record (wire code 3d 00). The two auxiliary telemetry codes (39 00,
// 31 00) share the same header shape but their payload layout is unknown;
// they classify but do not decode.
package telemetry

import (
	"encoding/binary"
	"fmt"
	"math"

	"condor_feed/internal/condor"
)

// Header size: 2-byte tag, 2-byte counter, 4-byte object identifier.
// The payload that follows is a run of 4-byte little-endian words.
const headerLen = 8

// The primary payload is meaningful up to word index 10 (acceleration z).
const minPayloadWords = 11

// Vec3 is a velocity or acceleration vector in the simulator's world frame.
type Vec3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Record is one decoded telemetry fix. The raw fields come straight off the
// wire; the derived block is computed, never stored independently.
type Record struct {
	Counter  uint16 `json:"counter"`   // opaque sequence value
	ObjectID uint32 `json:"object_id"` // transient per-connection object slot
	Cookie   uint32 `json:"cookie"`    // session cookie, joins identity records

	PositionX float32 `json:"pos_x"` // landscape-local metres
	PositionY float32 `json:"pos_y"`
	AltitudeM float32 `json:"altitude_m"`

	Velocity     Vec3 `json:"velocity"`
	Acceleration Vec3 `json:"acceleration"`

	Derived Derived `json:"derived"`
}

// Derived holds quantities computed from the raw vectors.
type Derived struct {
	SpeedMPS         float32 `json:"speed_mps"`
	HeadingDeg       float32 `json:"heading_deg"` // 0-360, 0 = north
	VerticalSpeedMPS float32 `json:"vertical_speed_mps"`

	// AccelMagnitude is |a| in m/s^2. It is NOT a validated g-force:
	// the g-force derivation seen in capture analysis was wrong, and this
	// field must not be presented as one.
	AccelMagnitude float32 `json:"accel_magnitude"`
}

// Decode decodes a telemetry datagram. Only the primary sub-code has a
// known payload; the auxiliary codes return ErrUnsupportedSubtype.
func Decode(b []byte) (*Record, error) {
	tag, err := condor.Classify(b)
	if err != nil {
		return nil, err
	}
	if !tag.IsTelemetry() {
		return nil, fmt.Errorf("not a telemetry datagram (tag %s)", tag)
	}
	if tag != condor.TagTelemetryPrimary {
		return nil, fmt.Errorf("telemetry sub-code %s: %w", tag, condor.ErrUnsupportedSubtype)
	}
	if len(b) < headerLen+minPayloadWords*4 {
		return nil, fmt.Errorf("telemetry payload needs %d words: %w", minPayloadWords, condor.ErrTooShort)
	}

	payload := b[headerLen:]
	word := func(i int) uint32 {
		return binary.LittleEndian.Uint32(payload[i*4:])
	}
	f32 := func(i int) float32 {
		return math.Float32frombits(word(i))
	}

	r := &Record{
		Counter:   binary.LittleEndian.Uint16(b[2:]),
		ObjectID:  binary.LittleEndian.Uint32(b[4:]),
		Cookie:    word(0),
		PositionX: f32(2),
		PositionY: f32(3),
		AltitudeM: f32(4),
		Velocity:  Vec3{X: f32(5), Y: f32(6), Z: f32(7)},
		Acceleration: Vec3{
			X: f32(8), Y: f32(9), Z: f32(10),
		},
	}
	r.Derived = derive(r.Velocity, r.Acceleration)
	return r, nil
}

// derive computes the derived block from the raw vectors.
//
// Heading negates vx before the atan2: the world frame's x axis runs
// mirror-inverted relative to compass convention, and omitting the
// negation yields a mirrored heading.
func derive(v, a Vec3) Derived {
	vx, vy, vz := float64(v.X), float64(v.Y), float64(v.Z)
	ax, ay, az := float64(a.X), float64(a.Y), float64(a.Z)

	heading := math.Atan2(-vx, vy) * 180 / math.Pi
	heading = math.Mod(math.Mod(heading, 360)+360, 360)

	return Derived{
		SpeedMPS:         float32(math.Sqrt(vx*vx + vy*vy + vz*vz)),
		HeadingDeg:       float32(heading),
		VerticalSpeedMPS: v.Z,
		AccelMagnitude:   float32(math.Sqrt(ax*ax + ay*ay + az*az)),
	}
}
