package storage

import (
	"context"
	"time"

	"condor_feed/internal/forward"
)

// ArchiveSink adapts the ClickHouse archive to the forwarder's sink
// interface, so archived fixes ride the same batching as the live feed.
type ArchiveSink struct {
	ch         *ClickHouseDB
	serverName string
}

// NewArchiveSink creates a sink writing to the position_fixes table.
func NewArchiveSink(ch *ClickHouseDB, serverName string) *ArchiveSink {
	return &ArchiveSink{ch: ch, serverName: serverName}
}

// Name identifies the sink in flush logs.
func (s *ArchiveSink) Name() string { return "clickhouse" }

// Publish writes the batch to the archive table.
func (s *ArchiveSink) Publish(ctx context.Context, batch []forward.Position) error {
	fixes := make([]PositionFix, 0, len(batch))
	for _, p := range batch {
		ts, err := time.Parse(time.RFC3339Nano, p.Timestamp)
		if err != nil {
			ts = time.Now().UTC()
		}
		fixes = append(fixes, PositionFix{
			Timestamp:    ts,
			ServerName:   s.serverName,
			Cookie:       p.Cookie,
			CN:           p.CompetitionNumber,
			Registration: p.Registration,
			Aircraft:     p.Aircraft,
			Latitude:     p.Lat,
			Longitude:    p.Lon,
			AltitudeM:    float32(p.AltM),
			SpeedMPS:     float32(p.SpeedMPS),
			HeadingDeg:   float32(p.HeadingDeg),
			VarioMPS:     float32(p.VarioMPS),
		})
	}
	return s.ch.InsertFixes(ctx, fixes)
}
