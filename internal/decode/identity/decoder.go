// Package identity decodes player-identity records (wire codes 3f 00 and
// 3f 01) into the six string fields the session table tracks.
//
// Two layout strategies exist because the record shape is not confirmed to
// be fixed-width across all variants. The full record (entity id 20001,
// ~224 bytes) held its fields at the same byte offsets in >95% of analysed
// captures, so those offsets are read directly. Everything else falls back
// to scanning the buffer for plausible length-prefixed strings and
// assigning them positionally. Both paths are load-bearing; the scanner is
// a documented fallback, not dead code.
package identity

import (
	"encoding/binary"
	"fmt"

	"condor_feed/internal/condor"
	"condor_feed/internal/wire"
)

const (
	// minDatagram is the smallest plausible identity datagram: the 12-byte
	// header plus enough room that a record could carry anything at all.
	minDatagram = 20

	// entityChat is the reserved chat pseudo-entity. Its records carry
	// message text where player fields would be.
	entityChat = 20002

	// entityFull marks the full-layout record.
	entityFull = 20001

	// entityAbbrev marks the short abbreviated record (~45 bytes), whose
	// recovered fields are known to be unreliable.
	entityAbbrev = 1

	// fullRecordLen is the observed size of the full-layout record. A
	// record near this size uses fixed offsets even without entity 20001.
	fullRecordLen = 224
	fullRecordTol = 8

	// abbrevMaxLen bounds the "short buffer" test for the abbreviated
	// record; an entity-1 record longer than this is scanned normally.
	abbrevMaxLen = 64
)

// Fixed byte offsets of the six fields in the full record layout.
const (
	offFirstName    = 19
	offLastName     = 36
	offCountry      = 53
	offRegistration = 70
	offCompetition  = 78
	offAircraft     = 189
)

// Record is one decoded identity. String fields may individually be empty;
// the session table's merge keeps the last non-empty value per field.
type Record struct {
	Cookie   uint32 `json:"cookie"`
	EntityID uint32 `json:"entity_id"`
	Seq      uint16 `json:"seq"`

	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Country           string `json:"country"`
	Registration      string `json:"registration"`
	CompetitionNumber string `json:"competition_number"`
	Aircraft          string `json:"aircraft"`
}

// Decode decodes an identity datagram.
//
// A non-zero SkipReason means the datagram was valid but carries nothing
// mergeable: the chat pseudo-entity or the abbreviated short record. Both
// the record and the error are nil in that case.
func Decode(b []byte) (*Record, condor.SkipReason, error) {
	if len(b) < minDatagram {
		return nil, condor.SkipNone, fmt.Errorf("identity datagram %d bytes: %w", len(b), condor.ErrTooShort)
	}
	tag, err := condor.Classify(b)
	if err != nil {
		return nil, condor.SkipNone, err
	}
	if !tag.IsIdentity() {
		return nil, condor.SkipNone, fmt.Errorf("not an identity datagram (tag %s)", tag)
	}

	r := &Record{
		Seq:      binary.LittleEndian.Uint16(b[2:]),
		EntityID: binary.LittleEndian.Uint32(b[4:]),
		Cookie:   binary.LittleEndian.Uint32(b[8:]),
	}

	switch {
	case r.EntityID == entityChat:
		return nil, condor.SkipChatEntity, nil

	case r.EntityID == entityAbbrev && len(b) <= abbrevMaxLen:
		// The ~45-byte record holds only a display-name fragment. Partial
		// merge would plant it into unrelated fields (the "player name as
		// aircraft" bug), so it is skipped whole.
		return nil, condor.SkipAbbreviatedFormat, nil

	case r.EntityID == entityFull || nearFullSize(len(b)):
		decodeFixed(b, r)

	default:
		decodeScanning(b, r)
	}
	return r, condor.SkipNone, nil
}

func nearFullSize(n int) bool {
	return n >= fullRecordLen-fullRecordTol && n <= fullRecordLen+fullRecordTol
}

// decodeFixed reads the six fields at their fixed offsets. An offset past
// the end of the buffer means that field is absent in this record, never
// that the record is corrupt: the field decodes to "".
func decodeFixed(b []byte, r *Record) {
	r.FirstName = wire.LPStringAt(b, offFirstName)
	r.LastName = wire.LPStringAt(b, offLastName)
	r.Country = wire.LPStringAt(b, offCountry)
	r.Registration = wire.LPStringAt(b, offRegistration)
	r.CompetitionNumber = wire.LPStringAt(b, offCompetition)
	r.Aircraft = wire.LPStringAt(b, offAircraft)
}

// decodeScanning collects every plausible length-prefixed ASCII string
// after the header and assigns them positionally: the last string is the
// aircraft name, the preceding up to five are first name, last name,
// country, registration and competition number in that order. Missing
// slots stay empty. The heuristics here (competition-ID exclusion, the
// single-character filter, last-string-is-aircraft) were established
// empirically; downstream correctness depends on keeping them exact.
func decodeScanning(b []byte, r *Record) {
	var strs []string

	c := wire.New(b)
	_ = c.Seek(12)
	for c.Remaining() > 0 {
		// A lone 0x00 between fields is padding, not a zero-length string.
		if b[c.Offset()] == 0x00 {
			_ = c.Skip(1)
			continue
		}
		s, ok := nextString(c)
		if !ok {
			break
		}
		if !isCompetitionID(s) {
			strs = append(strs, s)
		}
	}

	// Single characters are almost always stray payload bytes that happen
	// to look like a string; keeping them shifts every later field.
	kept := strs[:0]
	for _, s := range strs {
		if len(s) > 1 {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return
	}

	r.Aircraft = kept[len(kept)-1]
	rest := kept[:len(kept)-1]

	fields := []*string{&r.FirstName, &r.LastName, &r.Country, &r.Registration, &r.CompetitionNumber}
	for i := 0; i < len(rest) && i < len(fields); i++ {
		*fields[i] = rest[i]
	}
}

// nextString advances the cursor byte by byte until a plausible
// length-prefixed string decodes, then consumes it.
func nextString(c *wire.Cursor) (string, bool) {
	for c.Remaining() > 1 {
		s, n, err := c.PeekLPString(1, 64)
		if err == nil {
			_ = c.Skip(n)
			return s, true
		}
		_ = c.Skip(1)
	}
	return "", false
}

// isCompetitionID reports whether s looks like the long hex-only
// competition identifier some record variants embed between the player
// fields. It is noise for our purposes and must not occupy a field slot.
func isCompetitionID(s string) bool {
	if len(s) < 32 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		case c == ' ':
		default:
			return false
		}
	}
	return true
}
