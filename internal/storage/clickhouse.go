// Package storage provides persistent storage for decoded telemetry and
// pilot state.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

// ClickHouseConfig holds ClickHouse connection settings.
type ClickHouseConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// ClickHouseDB wraps a ClickHouse connection for the position-fix archive.
type ClickHouseDB struct {
	conn driver.Conn
}

// Conn returns the underlying ClickHouse connection for direct queries.
func (d *ClickHouseDB) Conn() driver.Conn {
	return d.conn
}

// OpenClickHouse opens a connection to ClickHouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*ClickHouseDB, error) {
	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr: []string{fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)},
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: clickhouse.Settings{
			"max_execution_time": 60,
		},
		DialTimeout:     10 * time.Second,
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}

	// Test the connection.
	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Close closes the ClickHouse connection.
func (d *ClickHouseDB) Close() error {
	return d.conn.Close()
}

// CreateSchema creates the ClickHouse tables.
func (d *ClickHouseDB) CreateSchema(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS position_fixes (
			timestamp       DateTime64(3),
			server_name     LowCardinality(String),
			cookie          UInt32,
			cn              LowCardinality(String),
			registration    LowCardinality(String),
			aircraft        LowCardinality(String),
			latitude        Float64,
			longitude       Float64,
			altitude_m      Float32,
			speed_mps       Float32,
			heading_deg     Float32,
			vario_mps       Float32,
			created_at      DateTime64(3) DEFAULT now64(3)
		)
		ENGINE = MergeTree()
		PARTITION BY toYYYYMM(timestamp)
		ORDER BY (server_name, cookie, timestamp)
		SETTINGS index_granularity = 8192`,
	}

	for _, q := range queries {
		if err := d.conn.Exec(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	return nil
}

// PositionFix is one row of the archive table.
type PositionFix struct {
	Timestamp    time.Time
	ServerName   string
	Cookie       uint32
	CN           string
	Registration string
	Aircraft     string
	Latitude     float64
	Longitude    float64
	AltitudeM    float32
	SpeedMPS     float32
	HeadingDeg   float32
	VarioMPS     float32
}

// InsertFixes stores a batch of position fixes efficiently.
func (d *ClickHouseDB) InsertFixes(ctx context.Context, fixes []PositionFix) error {
	if len(fixes) == 0 {
		return nil
	}

	batch, err := d.conn.PrepareBatch(ctx, `
		INSERT INTO position_fixes (timestamp, server_name, cookie, cn, registration, aircraft, latitude, longitude, altitude_m, speed_mps, heading_deg, vario_mps)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, f := range fixes {
		err = batch.Append(f.Timestamp, f.ServerName, f.Cookie, f.CN, f.Registration, f.Aircraft, f.Latitude, f.Longitude, f.AltitudeM, f.SpeedMPS, f.HeadingDeg, f.VarioMPS)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}

	return nil
}

// FixQueryParams contains filtering options for querying the archive.
type FixQueryParams struct {
	Cookie     uint32
	CN         string
	ServerName string
	Since      time.Time
	Limit      int
}

// QueryFixes retrieves archived fixes matching the given parameters,
// newest first.
func (d *ClickHouseDB) QueryFixes(ctx context.Context, p FixQueryParams) ([]PositionFix, error) {
	query := `SELECT timestamp, server_name, cookie, cn, registration, aircraft, latitude, longitude, altitude_m, speed_mps, heading_deg, vario_mps FROM position_fixes WHERE 1=1`
	var args []interface{}

	if p.Cookie != 0 {
		query += " AND cookie = ?"
		args = append(args, p.Cookie)
	}
	if p.CN != "" {
		query += " AND cn = ?"
		args = append(args, p.CN)
	}
	if p.ServerName != "" {
		query += " AND server_name = ?"
		args = append(args, p.ServerName)
	}
	if !p.Since.IsZero() {
		query += " AND timestamp >= ?"
		args = append(args, p.Since)
	}

	query += " ORDER BY timestamp DESC"
	if p.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", p.Limit)
	}

	rows, err := d.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fixes: %w", err)
	}
	defer rows.Close()

	var out []PositionFix
	for rows.Next() {
		var f PositionFix
		err := rows.Scan(&f.Timestamp, &f.ServerName, &f.Cookie, &f.CN, &f.Registration, &f.Aircraft, &f.Latitude, &f.Longitude, &f.AltitudeM, &f.SpeedMPS, &f.HeadingDeg, &f.VarioMPS)
		if err != nil {
			return nil, fmt.Errorf("scan fix: %w", err)
		}
		out = append(out, f)
	}

	return out, rows.Err()
}
