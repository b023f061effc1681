// Package forward batches decoded positions and republishes them to
// downstream consumers: an HTTP collector endpoint and a NATS subject.
//
// Telemetry arrives at simulation rate (several fixes per second per
// glider) but consumers redraw at map rate, so the batcher keeps only the
// latest fix per cookie and flushes on an interval.
package forward

import (
	"fmt"
	"math"
	"time"

	"condor_feed/internal/decode/telemetry"
	"condor_feed/internal/session"
)

// Position is the published wire shape, one entry per glider. Field names
// match what the map collector ingests.
type Position struct {
	Cookie     uint32  `json:"cookie"`
	Lat        float64 `json:"lat"`
	Lon        float64 `json:"lon"`
	AltM       float64 `json:"alt_m"`
	SpeedMPS   float64 `json:"speed_mps"`
	HeadingDeg float64 `json:"heading_deg"`
	VarioMPS   float64 `json:"vario_mps"`

	FirstName         string `json:"first_name"`
	LastName          string `json:"last_name"`
	Country           string `json:"country"`
	Registration      string `json:"registration"`
	CompetitionNumber string `json:"cn"`
	Aircraft          string `json:"aircraft"`

	// CNRegistration is a composite key the collector uses for
	// server-side deduplication across feeder restarts.
	CNRegistration string `json:"cn_registration"`

	// Timestamp is stamped at flush time, not decode time, so every
	// position in one batch carries the same instant.
	Timestamp string `json:"timestamp,omitempty"`
}

// FromTelemetry builds a Position from a decoded fix, its projected
// coordinates and the best-known identity (which may be nil).
func FromTelemetry(rec *telemetry.Record, lat, lon float64, ident *session.Entry) (Position, error) {
	if !finite(lat) || !finite(lon) {
		return Position{}, fmt.Errorf("position for cookie %08x: non-finite coordinates", rec.Cookie)
	}

	p := Position{
		Cookie:     rec.Cookie,
		Lat:        lat,
		Lon:        lon,
		AltM:       float64(rec.AltitudeM),
		SpeedMPS:   float64(rec.Derived.SpeedMPS),
		HeadingDeg: float64(rec.Derived.HeadingDeg),
		VarioMPS:   float64(rec.Derived.VerticalSpeedMPS),
	}
	if ident != nil {
		p.FirstName = ident.FirstName
		p.LastName = ident.LastName
		p.Country = ident.Country
		p.Registration = ident.Registration
		p.CompetitionNumber = ident.CompetitionNumber
		p.Aircraft = ident.Aircraft
		p.CNRegistration = compositeKey(ident.CompetitionNumber, ident.Registration)
	}
	return p, nil
}

func compositeKey(cn, registration string) string {
	switch {
	case cn != "" && registration != "":
		return cn + "_" + registration
	case registration != "":
		return registration
	default:
		return cn
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func utcStamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
