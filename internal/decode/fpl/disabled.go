package fpl

import (
	"encoding/binary"
	"fmt"

	"condor_feed/internal/condor"
	"condor_feed/internal/wire"
)

// applyDisabled folds one disabled-zone chunk into the reassembly state.
//
// Every chunk carries a 2-byte sequence number at offset 2; a chunk whose
// sequence was already applied is ignored so that duplicate UDP delivery
// cannot double-append. The first-kind chunk additionally carries the
// expected ID total as a u32 before the IDs. The rest of the datagram is
// u16 zone IDs, deduplicated by value and capped at the remaining expected
// slots when the total is known, so a corrupt continuation cannot overrun
// the list.
func (r *Reassembler) applyDisabled(tag condor.Tag, b []byte) (condor.SkipReason, error) {
	if len(b) < 4 {
		return condor.SkipNone, fmt.Errorf("disabled-zone chunk %d bytes: %w", len(b), condor.ErrTooShort)
	}

	seq := binary.LittleEndian.Uint16(b[2:])
	if _, dup := r.seqSeen[seq]; dup {
		return condor.SkipDuplicateChunk, nil
	}
	r.seqSeen[seq] = struct{}{}

	c := wire.New(b)
	_ = c.Seek(4)

	if tag == condor.TagFplDisabledFirst && !r.totalKnown && c.Remaining() >= 4 {
		total, err := c.ReadU32()
		if err != nil {
			return condor.SkipNone, err
		}
		r.total = total
		r.totalKnown = true
	}

	remaining := -1
	if r.totalKnown {
		remaining = int(r.total) - len(r.ids)
		if remaining < 0 {
			remaining = 0
		}
	}

	for c.Remaining() >= 2 {
		if remaining == 0 {
			break
		}
		id, err := c.ReadU16()
		if err != nil {
			break
		}
		if _, seen := r.idSeen[id]; seen {
			continue
		}
		r.idSeen[id] = struct{}{}
		r.ids = append(r.ids, id)
		// Only an actual append consumes a slot; a re-sent ID must not
		// burn the budget for the IDs that follow it.
		if remaining > 0 {
			remaining--
		}
	}
	return condor.SkipNone, nil
}
