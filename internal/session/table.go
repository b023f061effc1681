// Package session maintains the cross-packet identity mapping: session
// cookie to the best-known player identity, merged incrementally as
// identity datagrams arrive, plus a reverse map from transient entity slots
// to cookies.
//
// The table is deliberately not synchronized. Decode dispatch is serial by
// design; a caller that shards dispatch across workers must partition
// tables or add its own locking.
package session

import (
	"time"

	"condor_feed/internal/decode/identity"
)

// Entry is one player's best-known identity.
type Entry struct {
	identity.Record

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	Merges    int       `json:"merges"`
}

// Table maps cookies to identities. Zero or one entry per cookie, always.
type Table struct {
	byCookie map[uint32]*Entry
	byEntity map[uint32]uint32 // entity id -> cookie

	now func() time.Time // test hook
}

// NewTable creates an empty identity table. Entries are never pruned here;
// staleness-based eviction belongs to the serving layer.
func NewTable() *Table {
	return &Table{
		byCookie: make(map[uint32]*Entry),
		byEntity: make(map[uint32]uint32),
		now:      time.Now,
	}
}

// Merge folds a decoded identity record into the table, keyed by cookie.
//
// The rule is last-non-empty-wins: a field from r replaces the stored
// value only when r's value is non-empty, so a compact record can never
// erase what a full record already taught us, but a corrected field in a
// later full record does take effect. This makes Merge idempotent and,
// across records for the same cookie, order-insensitive for any field
// that only ever carries one non-empty value.
func (t *Table) Merge(r *identity.Record) {
	now := t.now()

	e, ok := t.byCookie[r.Cookie]
	if !ok {
		e = &Entry{FirstSeen: now}
		e.Cookie = r.Cookie
		t.byCookie[r.Cookie] = e
	}

	// Entity slots are transient server assignments; the newest one wins.
	e.EntityID = r.EntityID
	e.Seq = r.Seq

	setNonEmpty(&e.FirstName, r.FirstName)
	setNonEmpty(&e.LastName, r.LastName)
	setNonEmpty(&e.Country, r.Country)
	setNonEmpty(&e.Registration, r.Registration)
	setNonEmpty(&e.CompetitionNumber, r.CompetitionNumber)
	setNonEmpty(&e.Aircraft, r.Aircraft)

	e.LastSeen = now
	e.Merges++

	t.byEntity[r.EntityID] = r.Cookie
}

func setNonEmpty(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Restore folds a previously persisted record into the table without
// disturbing live state: string fields land only in empty slots, and an
// entry that already exists keeps its current entity assignment. Merge is
// the wrong tool here because a snapshot row may be staler than packets
// the table has already seen.
func (t *Table) Restore(r *identity.Record) {
	e, ok := t.byCookie[r.Cookie]
	if !ok {
		now := t.now()
		e = &Entry{FirstSeen: now, LastSeen: now}
		e.Cookie = r.Cookie
		e.EntityID = r.EntityID
		e.Seq = r.Seq
		t.byCookie[r.Cookie] = e
		t.byEntity[r.EntityID] = r.Cookie
	}

	fillIfEmpty(&e.FirstName, r.FirstName)
	fillIfEmpty(&e.LastName, r.LastName)
	fillIfEmpty(&e.Country, r.Country)
	fillIfEmpty(&e.Registration, r.Registration)
	fillIfEmpty(&e.CompetitionNumber, r.CompetitionNumber)
	fillIfEmpty(&e.Aircraft, r.Aircraft)
}

func fillIfEmpty(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

// LookupByCookie returns the entry for a cookie, or nil. The entry is
// owned by the table; callers must not mutate it.
func (t *Table) LookupByCookie(cookie uint32) *Entry {
	return t.byCookie[cookie]
}

// CookieForEntity resolves a transient entity id to its cookie.
func (t *Table) CookieForEntity(entityID uint32) (uint32, bool) {
	cookie, ok := t.byEntity[entityID]
	return cookie, ok
}

// Len returns the number of known identities.
func (t *Table) Len() int {
	return len(t.byCookie)
}

// Entries returns a copy of all entries, for snapshotting and serving.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.byCookie))
	for _, e := range t.byCookie {
		out = append(out, *e)
	}
	return out
}
