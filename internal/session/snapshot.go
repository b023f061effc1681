package session

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// persistInterval throttles snapshot writes; identity packets arrive in
// bursts at join time and rewriting the table on every packet is wasted IO.
const persistInterval = 5 * time.Second

// Snapshotter persists the identity table to a local SQLite database so a
// restarted feeder can resume with names instead of bare cookies.
type Snapshotter struct {
	db   *sql.DB
	last time.Time
}

// OpenSnapshot opens or creates the snapshot database at path. An empty
// path or ":memory:" keeps the snapshot in memory (useful in tests).
func OpenSnapshot(path string) (*Snapshotter, error) {
	if path == "" {
		path = ":memory:"
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS identities (
		cookie INTEGER PRIMARY KEY,
		entity_id INTEGER NOT NULL,
		first_name TEXT NOT NULL DEFAULT '',
		last_name TEXT NOT NULL DEFAULT '',
		country TEXT NOT NULL DEFAULT '',
		registration TEXT NOT NULL DEFAULT '',
		competition_number TEXT NOT NULL DEFAULT '',
		aircraft TEXT NOT NULL DEFAULT '',
		first_seen TEXT NOT NULL,
		last_seen TEXT NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create snapshot schema: %w", err)
	}

	return &Snapshotter{db: db}, nil
}

// Close closes the snapshot database.
func (s *Snapshotter) Close() error {
	return s.db.Close()
}

// MaybePersist writes the table if the throttle interval has elapsed.
// Returns whether a write happened.
func (s *Snapshotter) MaybePersist(t *Table) (bool, error) {
	if time.Since(s.last) < persistInterval {
		return false, nil
	}
	if err := s.Persist(t); err != nil {
		return false, err
	}
	s.last = time.Now()
	return true, nil
}

// Persist writes every entry unconditionally.
func (s *Snapshotter) Persist(t *Table) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`
		INSERT INTO identities
			(cookie, entity_id, first_name, last_name, country,
			 registration, competition_number, aircraft, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(cookie) DO UPDATE SET
			entity_id = excluded.entity_id,
			first_name = excluded.first_name,
			last_name = excluded.last_name,
			country = excluded.country,
			registration = excluded.registration,
			competition_number = excluded.competition_number,
			aircraft = excluded.aircraft,
			last_seen = excluded.last_seen
	`)
	if err != nil {
		return fmt.Errorf("prepare snapshot upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range t.Entries() {
		_, err := stmt.Exec(
			int64(e.Cookie), int64(e.EntityID),
			e.FirstName, e.LastName, e.Country,
			e.Registration, e.CompetitionNumber, e.Aircraft,
			e.FirstSeen.UTC().Format(time.RFC3339),
			e.LastSeen.UTC().Format(time.RFC3339),
		)
		if err != nil {
			return fmt.Errorf("upsert identity %08x: %w", e.Cookie, err)
		}
	}

	return tx.Commit()
}

// Load restores previously persisted identities into t. Stored fields go
// through Restore, which fills only empty slots, so a fresher in-memory
// value is never clobbered by a stale snapshot.
func (s *Snapshotter) Load(t *Table) (int, error) {
	rows, err := s.db.Query(`
		SELECT cookie, entity_id, first_name, last_name, country,
		       registration, competition_number, aircraft
		FROM identities
	`)
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	n := 0
	for rows.Next() {
		var e Entry
		var cookie, entity int64
		err := rows.Scan(&cookie, &entity,
			&e.FirstName, &e.LastName, &e.Country,
			&e.Registration, &e.CompetitionNumber, &e.Aircraft)
		if err != nil {
			continue
		}
		e.Cookie = uint32(cookie)
		e.EntityID = uint32(entity)
		t.Restore(&e.Record)
		n++
	}
	return n, rows.Err()
}
