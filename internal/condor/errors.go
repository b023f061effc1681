package condor

import "errors"

// Decode error taxonomy. Individual decoders wrap these with context via
// fmt.Errorf("...: %w", err); callers test with errors.Is.
var (
	// ErrTooShort means the buffer is shorter than the minimum the
	// attempted layout requires.
	ErrTooShort = errors.New("datagram too short")

	// ErrUnsupportedSubtype means the datagram classified cleanly but its
	// payload layout is not decoded (the two auxiliary telemetry codes).
	ErrUnsupportedSubtype = errors.New("unsupported message subtype")
)

// SkipReason marks a decode that produced nothing to act on. Skips are
// normal outcomes of a lossy, reverse-engineered stream, not failures:
// nothing is merged and nothing is reported as an error.
type SkipReason uint8

const (
	SkipNone SkipReason = iota

	// SkipChatEntity: entity id 20002 is the reserved chat pseudo-entity.
	// Its records carry message text, not player identity, and must never
	// reach the session table.
	SkipChatEntity

	// SkipAbbreviatedFormat: the short entity-id-1 record carries an
	// incomplete field subset. Merging it would overwrite learned fields
	// with junk, so it is dropped whole.
	SkipAbbreviatedFormat

	// SkipDuplicateChunk: a disabled-zone chunk whose sequence number was
	// already applied. UDP permits duplicate delivery.
	SkipDuplicateChunk

	// SkipPlanComplete: a flight-plan fragment arriving after the plan
	// already latched. The reassembler is one-shot per session.
	SkipPlanComplete
)

func (r SkipReason) String() string {
	switch r {
	case SkipNone:
		return "none"
	case SkipChatEntity:
		return "chat_entity"
	case SkipAbbreviatedFormat:
		return "abbreviated_format"
	case SkipDuplicateChunk:
		return "duplicate_chunk"
	case SkipPlanComplete:
		return "plan_complete"
	}
	return "unknown"
}
