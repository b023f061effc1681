// Package dispatch routes classified datagrams to their decoders and owns
// the per-session side effects: identity merges into the session table and
// flight-plan reassembly.
//
// Dispatch never panics on malformed input. Each decoder produces a fully
// decoded local value before any shared state is touched, so a failed
// decode cannot leave the session table or reassembly state half-written.
package dispatch

import (
	"condor_feed/internal/condor"
	"condor_feed/internal/decode/ack"
	"condor_feed/internal/decode/fpl"
	"condor_feed/internal/decode/identity"
	"condor_feed/internal/decode/telemetry"
	"condor_feed/internal/session"
)

// Event is the outcome of dispatching one datagram. Exactly one of the
// record pointers is non-nil on a successful decode; Skip marks a valid
// datagram that produced nothing to act on; Err marks a malformed one.
// Plan is non-nil only on the dispatch that completes the flight plan.
type Event struct {
	Tag condor.Tag

	Telemetry *telemetry.Record
	Identity  *identity.Record
	Ack       *ack.Record
	Plan      *fpl.CompletedFlightPlan

	Skip condor.SkipReason
	Err  error
}

// Stats counts dispatch outcomes since the dispatcher was created. A
// rising error count against a steady decode count is the operator's
// signal that the wire format has drifted.
type Stats struct {
	Telemetry uint64
	Identity  uint64
	Ack       uint64
	FplApply  uint64
	Skipped   uint64
	Unknown   uint64
	Errors    uint64
}

// Dispatcher drives the decoders against one session's shared state. Not
// internally synchronized; feed it from a single goroutine.
type Dispatcher struct {
	table *session.Table
	plan  *fpl.Reassembler
	stats Stats
}

// New creates a dispatcher around the caller-owned session state.
func New(table *session.Table, plan *fpl.Reassembler) *Dispatcher {
	return &Dispatcher{table: table, plan: plan}
}

// Table returns the session identity table the dispatcher merges into.
func (d *Dispatcher) Table() *session.Table {
	return d.table
}

// Stats returns a copy of the outcome counters.
func (d *Dispatcher) Stats() Stats {
	return d.stats
}

// Dispatch classifies one datagram and runs the matching decoder.
func (d *Dispatcher) Dispatch(b []byte) Event {
	tag, err := condor.Classify(b)
	if err != nil {
		d.stats.Errors++
		return Event{Err: err}
	}

	ev := Event{Tag: tag}
	switch {
	case tag.IsTelemetry():
		ev.Telemetry, ev.Err = telemetry.Decode(b)
		if ev.Err == nil {
			d.stats.Telemetry++
		}

	case tag.IsIdentity():
		var rec *identity.Record
		rec, ev.Skip, ev.Err = identity.Decode(b)
		if ev.Err == nil && ev.Skip == condor.SkipNone {
			d.table.Merge(rec)
			ev.Identity = rec
			d.stats.Identity++
		}

	case tag == condor.TagAck:
		ev.Ack, ev.Err = ack.Decode(b)
		if ev.Err == nil {
			d.stats.Ack++
		}

	case tag == condor.TagFplTask, tag == condor.TagFplDisabledFirst,
		tag == condor.TagFplDisabledCont, tag == condor.TagFplSettings:
		ev.Plan, ev.Skip, ev.Err = d.plan.Apply(tag, b)
		if ev.Err == nil && ev.Skip == condor.SkipNone {
			d.stats.FplApply++
		}

	default:
		d.stats.Unknown++
		return ev
	}

	if ev.Err != nil {
		d.stats.Errors++
	} else if ev.Skip != condor.SkipNone {
		d.stats.Skipped++
	}
	return ev
}
