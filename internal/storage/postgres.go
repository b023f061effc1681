package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"condor_feed/internal/decode/fpl"
	"condor_feed/internal/session"
)

// PostgresConfig holds PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string
	Port     int
	Database string
	User     string
	Password string
}

// PostgresDB wraps a PostgreSQL connection pool for state storage.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// OpenPostgres opens a connection pool to PostgreSQL.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*PostgresDB, error) {
	connStr := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = time.Hour
	poolCfg.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	// Test the connection.
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close closes the PostgreSQL connection pool.
func (d *PostgresDB) Close() {
	d.pool.Close()
}

// CreateSchema creates the PostgreSQL tables.
func (d *PostgresDB) CreateSchema(ctx context.Context) error {
	schema := `
	-- Pilot identities, keyed by session cookie.
	CREATE TABLE IF NOT EXISTS identities (
		cookie          BIGINT PRIMARY KEY,
		entity_id       BIGINT NOT NULL DEFAULT 0,
		first_name      TEXT NOT NULL DEFAULT '',
		last_name       TEXT NOT NULL DEFAULT '',
		country         TEXT NOT NULL DEFAULT '',
		registration    TEXT NOT NULL DEFAULT '',
		cn              TEXT NOT NULL DEFAULT '',
		aircraft        TEXT NOT NULL DEFAULT '',
		first_seen      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		last_seen       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		merges          INTEGER NOT NULL DEFAULT 1
	);

	CREATE INDEX IF NOT EXISTS idx_identities_entity ON identities(entity_id);
	CREATE INDEX IF NOT EXISTS idx_identities_cn ON identities(cn);

	-- Reassembled flight plans, one row per completed plan.
	CREATE TABLE IF NOT EXISTS flight_plans (
		id              SERIAL PRIMARY KEY,
		server_name     TEXT NOT NULL DEFAULT '',
		landscape       TEXT NOT NULL DEFAULT '',
		description     TEXT NOT NULL DEFAULT '',
		plane_class     TEXT NOT NULL DEFAULT '',
		weather_zone    TEXT NOT NULL DEFAULT '',
		start_height_m  INTEGER,
		turnpoint_count INTEGER NOT NULL DEFAULT 0,
		disabled_count  INTEGER NOT NULL DEFAULT 0,
		fpl_text        TEXT NOT NULL DEFAULT '',
		received_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_flight_plans_received ON flight_plans(received_at);
	`

	if _, err := d.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// UpsertIdentity stores an identity entry. Per column the last non-empty
// value wins and an empty value never erases a stored one, the same rule
// the in-memory table applies, so replaying the same entries after a
// restart converges to the same row.
func (d *PostgresDB) UpsertIdentity(ctx context.Context, e *session.Entry) error {
	_, err := d.pool.Exec(ctx, `
		INSERT INTO identities (cookie, entity_id, first_name, last_name, country, registration, cn, aircraft, first_seen, last_seen, merges)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (cookie) DO UPDATE SET
			entity_id    = EXCLUDED.entity_id,
			first_name   = COALESCE(NULLIF(EXCLUDED.first_name, ''), identities.first_name),
			last_name    = COALESCE(NULLIF(EXCLUDED.last_name, ''), identities.last_name),
			country      = COALESCE(NULLIF(EXCLUDED.country, ''), identities.country),
			registration = COALESCE(NULLIF(EXCLUDED.registration, ''), identities.registration),
			cn           = COALESCE(NULLIF(EXCLUDED.cn, ''), identities.cn),
			aircraft     = COALESCE(NULLIF(EXCLUDED.aircraft, ''), identities.aircraft),
			last_seen    = EXCLUDED.last_seen,
			merges       = identities.merges + 1
	`, int64(e.Cookie), int64(e.EntityID), e.FirstName, e.LastName, e.Country,
		e.Registration, e.CompetitionNumber, e.Aircraft, e.FirstSeen, e.LastSeen, e.Merges)
	if err != nil {
		return fmt.Errorf("upsert identity: %w", err)
	}

	return nil
}

// GetIdentity fetches a stored identity by cookie. Returns (nil, nil)
// when no row exists.
func (d *PostgresDB) GetIdentity(ctx context.Context, cookie uint32) (*session.Entry, error) {
	var (
		e        session.Entry
		cookie64 int64
		entity64 int64
	)
	err := d.pool.QueryRow(ctx, `
		SELECT cookie, entity_id, first_name, last_name, country, registration, cn, aircraft, first_seen, last_seen, merges
		FROM identities WHERE cookie = $1
	`, int64(cookie)).Scan(&cookie64, &entity64, &e.FirstName, &e.LastName, &e.Country,
		&e.Registration, &e.CompetitionNumber, &e.Aircraft, &e.FirstSeen, &e.LastSeen, &e.Merges)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	e.Cookie = uint32(cookie64)
	e.EntityID = uint32(entity64)
	return &e, nil
}

// SaveFlightPlan stores a completed flight plan with its rendered text.
func (d *PostgresDB) SaveFlightPlan(ctx context.Context, serverName string, plan *fpl.CompletedFlightPlan, text string) error {
	var startHeight *int32
	if plan.Settings.HasStartHeight {
		h := int32(plan.Settings.StartHeightM)
		startHeight = &h
	}

	_, err := d.pool.Exec(ctx, `
		INSERT INTO flight_plans (server_name, landscape, description, plane_class, weather_zone, start_height_m, turnpoint_count, disabled_count, fpl_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, serverName, plan.Task.Landscape, plan.Settings.Description, plan.Settings.PlaneClass,
		plan.Settings.WeatherZone, startHeight, len(plan.Task.Turnpoints),
		len(plan.DisabledZones.IDs), text)
	if err != nil {
		return fmt.Errorf("save flight plan: %w", err)
	}

	return nil
}

// LatestFlightPlanText returns the most recently stored plan text for a
// server, or "" when none exists.
func (d *PostgresDB) LatestFlightPlanText(ctx context.Context, serverName string) (string, error) {
	var text string
	err := d.pool.QueryRow(ctx, `
		SELECT fpl_text FROM flight_plans WHERE server_name = $1
		ORDER BY received_at DESC LIMIT 1
	`, serverName).Scan(&text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("latest flight plan: %w", err)
	}

	return text, nil
}
