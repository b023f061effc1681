package session

import (
	"path/filepath"
	"testing"

	"condor_feed/internal/decode/identity"
)

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "identities.db")

	snap, err := OpenSnapshot(path)
	if err != nil {
		t.Fatalf("OpenSnapshot() error = %v", err)
	}
	defer snap.Close()

	tbl := NewTable()
	tbl.Merge(&identity.Record{
		Cookie: 0xcafe, EntityID: 7,
		FirstName: "Anna", LastName: "Kralj", Country: "SLO",
		Registration: "D-1234", CompetitionNumber: "AK", Aircraft: "LS8",
	})
	tbl.Merge(&identity.Record{Cookie: 0xbeef, FirstName: "Jan"})

	if err := snap.Persist(tbl); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	restored := NewTable()
	n, err := snap.Load(restored)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n != 2 {
		t.Errorf("Load() = %d rows, want 2", n)
	}

	e := restored.LookupByCookie(0xcafe)
	if e == nil {
		t.Fatal("restored table missing cookie 0xcafe")
	}
	if e.FirstName != "Anna" || e.Aircraft != "LS8" || e.CompetitionNumber != "AK" {
		t.Errorf("restored entry = %+v, want the persisted fields", e.Record)
	}
}

// Loading a stale snapshot must not clobber fresher in-memory values:
// rows land through Restore, which fills only empty slots.
func TestSnapshotLoadDoesNotClobber(t *testing.T) {
	snap, err := OpenSnapshot(":memory:")
	if err != nil {
		t.Fatalf("OpenSnapshot() error = %v", err)
	}
	defer snap.Close()

	old := NewTable()
	old.Merge(&identity.Record{Cookie: 1, FirstName: "Stale", Aircraft: "LS4"})
	if err := snap.Persist(old); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	live := NewTable()
	live.Merge(&identity.Record{Cookie: 1, FirstName: "Fresh"})
	if _, err := snap.Load(live); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	e := live.LookupByCookie(1)
	if e.FirstName != "Fresh" {
		t.Errorf("FirstName = %q, want Fresh (load must not clobber)", e.FirstName)
	}
	if e.Aircraft != "LS4" {
		t.Errorf("Aircraft = %q, want LS4 (load fills empty slots)", e.Aircraft)
	}
}

func TestPersistUpdatesExistingRows(t *testing.T) {
	snap, err := OpenSnapshot(":memory:")
	if err != nil {
		t.Fatalf("OpenSnapshot() error = %v", err)
	}
	defer snap.Close()

	tbl := NewTable()
	tbl.Merge(&identity.Record{Cookie: 1, FirstName: "Anna"})
	if err := snap.Persist(tbl); err != nil {
		t.Fatalf("first Persist() error = %v", err)
	}

	tbl.Merge(&identity.Record{Cookie: 1, Aircraft: "LS8"})
	if err := snap.Persist(tbl); err != nil {
		t.Fatalf("second Persist() error = %v", err)
	}

	restored := NewTable()
	n, err := snap.Load(restored)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Load() = %d rows, want 1 (upsert, not insert)", n)
	}
	if e := restored.LookupByCookie(1); e.Aircraft != "LS8" {
		t.Errorf("Aircraft = %q, want LS8", e.Aircraft)
	}
}
