// Package fpl reassembles a flight plan from the three packet kinds that
// carry one: the self-contained task definition (1f 00), the chunked
// disabled-airspace ID list (07 00 first, 0f 00 continuation) and the
// settings bundle (2f 00). The reassembler is a one-shot latch: once the
// completion predicate holds it emits the plan exactly once and ignores
// every fragment after that, for the rest of the session.
package fpl

import (
	"condor_feed/internal/condor"
)

// Turnpoint is one task turnpoint.
type Turnpoint struct {
	Name      string  `json:"name"`
	X         float64 `json:"x"`
	Y         float32 `json:"y"`
	RadiusM   uint32  `json:"radius_m"`
	AngleDeg  uint32  `json:"angle_deg"`
	AltitudeM float32 `json:"altitude_m"`
}

// Task is the core task definition. It arrives whole in a single datagram.
type Task struct {
	Landscape  string      `json:"landscape"`
	Turnpoints []Turnpoint `json:"turnpoints"`
}

// DisabledZones is the reassembled disabled-airspace ID list.
type DisabledZones struct {
	// ExpectedTotal is valid only when TotalKnown is set; the first chunk
	// carries it, and a lost first chunk leaves it unknown for the session.
	ExpectedTotal uint32   `json:"expected_total"`
	TotalKnown    bool     `json:"total_known"`
	IDs           []uint16 `json:"ids"`
}

// Settings is the heuristically recovered settings bundle. No reliable
// fixed schema is known for the 2f 00 packet; see the decoder in
// settings.go for the pattern matching involved.
type Settings struct {
	Description    string `json:"description"`
	PlaneClass     string `json:"plane_class"`
	WeatherZone    string `json:"weather_zone"`
	StartHeightM   uint32 `json:"start_height_m"`
	HasStartHeight bool   `json:"has_start_height"`
}

// CompletedFlightPlan is the emitted plan once all sections are in.
type CompletedFlightPlan struct {
	Task          Task          `json:"task"`
	DisabledZones DisabledZones `json:"disabled_zones"`
	Settings      Settings      `json:"settings"`
}

// Reassembler accumulates plan fragments for one session. It is not
// internally synchronized; the dispatcher feeds it serially.
type Reassembler struct {
	task     *Task
	settings *Settings

	totalKnown bool
	total      uint32
	ids        []uint16
	idSeen     map[uint16]struct{}
	seqSeen    map[uint16]struct{}

	done bool
}

// NewReassembler creates an empty reassembly state.
func NewReassembler() *Reassembler {
	return &Reassembler{
		idSeen:  make(map[uint16]struct{}),
		seqSeen: make(map[uint16]struct{}),
	}
}

// Done reports whether the plan already latched.
func (r *Reassembler) Done() bool {
	return r.done
}

// Apply feeds one flight-plan datagram into the reassembly state.
//
// The returned plan is non-nil exactly once: on the apply that first
// satisfies the completion predicate. Duplicate disabled-zone chunks and
// fragments arriving after the latch come back with a SkipReason instead.
func (r *Reassembler) Apply(tag condor.Tag, b []byte) (*CompletedFlightPlan, condor.SkipReason, error) {
	if r.done {
		return nil, condor.SkipPlanComplete, nil
	}

	switch tag {
	case condor.TagFplTask:
		task, err := decodeTask(b)
		if err != nil {
			return nil, condor.SkipNone, err
		}
		// The task datagram is self-contained; a retransmit simply
		// replaces the previous parse.
		r.task = task

	case condor.TagFplDisabledFirst, condor.TagFplDisabledCont:
		skip, err := r.applyDisabled(tag, b)
		if err != nil || skip != condor.SkipNone {
			return nil, skip, err
		}

	case condor.TagFplSettings:
		settings, err := decodeSettings(b)
		if err != nil {
			return nil, condor.SkipNone, err
		}
		r.settings = settings

	default:
		return nil, condor.SkipNone, condor.ErrUnsupportedSubtype
	}

	if plan := r.tryComplete(); plan != nil {
		return plan, condor.SkipNone, nil
	}
	return nil, condor.SkipNone, nil
}

// tryComplete checks the completion predicate and latches when it holds:
// a task with at least one turnpoint, a settings bundle, and either an
// unknown ID total or at least that many collected IDs.
func (r *Reassembler) tryComplete() *CompletedFlightPlan {
	if r.task == nil || len(r.task.Turnpoints) == 0 {
		return nil
	}
	if r.settings == nil {
		return nil
	}
	if r.totalKnown && uint32(len(r.ids)) < r.total {
		return nil
	}

	r.done = true

	ids := r.ids
	if r.totalKnown && uint32(len(ids)) > r.total {
		ids = ids[:r.total]
	}
	return &CompletedFlightPlan{
		Task: *r.task,
		DisabledZones: DisabledZones{
			ExpectedTotal: r.total,
			TotalKnown:    r.totalKnown,
			IDs:           ids,
		},
		Settings: *r.settings,
	}
}
