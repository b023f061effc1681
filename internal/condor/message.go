// Package condor defines the message taxonomy of the Condor server UDP
// stream: the two-byte type codes observed on the wire, the classifier
// that maps a raw datagram onto them, and the decode error vocabulary
// shared by all decoders.
//
// The protocol is undocumented; the code table below is the result of
// offset analysis over live captures. Unknown codes are a normal outcome,
// not an error.
package condor

import (
	"encoding/binary"
	"fmt"
)

// Tag identifies a datagram's message type, taken from its first two bytes
// read little-endian.
type Tag uint16

// Known wire codes. Written here in the byte order they appear on the wire:
// TelemetryPrimary is "3d 00", Ack is "80 06", and so on.
const (
	TagTelemetryPrimary Tag = 0x003d // decoded position/velocity record
	TagTelemetryAux1    Tag = 0x0039 // classified only, payload opaque
	TagTelemetryAux2    Tag = 0x0031 // classified only, payload opaque
	TagIdentityFull     Tag = 0x003f // full identity record
	TagIdentityCompact  Tag = 0x013f // compact identity record
	TagAck              Tag = 0x0680 // acknowledgement
	TagFplTask          Tag = 0x001f // flight-plan task (self-contained)
	TagFplDisabledFirst Tag = 0x0007 // disabled-zone list, first chunk
	TagFplDisabledCont  Tag = 0x000f // disabled-zone list, continuation
	TagFplSettings      Tag = 0x002f // flight-plan settings bundle
)

// String returns a short name for the tag, or the hex code for unknown ones.
func (t Tag) String() string {
	switch t {
	case TagTelemetryPrimary:
		return "telemetry"
	case TagTelemetryAux1, TagTelemetryAux2:
		return "telemetry_aux"
	case TagIdentityFull:
		return "identity_full"
	case TagIdentityCompact:
		return "identity_compact"
	case TagAck:
		return "ack"
	case TagFplTask:
		return "fpl_task"
	case TagFplDisabledFirst:
		return "fpl_disabled_first"
	case TagFplDisabledCont:
		return "fpl_disabled_cont"
	case TagFplSettings:
		return "fpl_settings"
	}
	return fmt.Sprintf("unknown(0x%04x)", uint16(t))
}

// IsTelemetry reports whether the tag is one of the three telemetry codes.
func (t Tag) IsTelemetry() bool {
	return t == TagTelemetryPrimary || t == TagTelemetryAux1 || t == TagTelemetryAux2
}

// IsIdentity reports whether the tag is one of the two identity wire forms.
func (t Tag) IsIdentity() bool {
	return t == TagIdentityFull || t == TagIdentityCompact
}

// Known reports whether the tag is in the code table.
func (t Tag) Known() bool {
	switch t {
	case TagTelemetryPrimary, TagTelemetryAux1, TagTelemetryAux2,
		TagIdentityFull, TagIdentityCompact, TagAck,
		TagFplTask, TagFplDisabledFirst, TagFplDisabledCont, TagFplSettings:
		return true
	}
	return false
}

// Classify reads the first two bytes of a datagram as a little-endian tag.
// Unrecognized codes come back as-is; callers use Known to distinguish.
// Datagrams shorter than two bytes cannot be classified.
func Classify(b []byte) (Tag, error) {
	if len(b) < 2 {
		return 0, ErrTooShort
	}
	return Tag(binary.LittleEndian.Uint16(b)), nil
}
