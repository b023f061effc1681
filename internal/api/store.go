// Package api serves the live-position feed over HTTP: the latest fix per
// glider, the reassembled flight plan, and feeder statistics.
package api

import (
	"sort"
	"sync"
	"time"

	"condor_feed/internal/forward"
)

// DefaultStaleAfter is how long a glider stays in the served set without a
// fresh fix. Prune here, not in the decoder: staleness is a serving
// concern.
const DefaultStaleAfter = 60 * time.Second

// PositionStore holds the latest position per cookie with staleness
// pruning. Safe for concurrent use.
type PositionStore struct {
	staleAfter time.Duration

	mu        sync.RWMutex
	positions map[uint32]storedPosition
}

type storedPosition struct {
	pos  forward.Position
	seen time.Time
}

// NewPositionStore creates a store. A zero staleAfter uses
// DefaultStaleAfter.
func NewPositionStore(staleAfter time.Duration) *PositionStore {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &PositionStore{
		staleAfter: staleAfter,
		positions:  make(map[uint32]storedPosition),
	}
}

// Put records the latest position for its cookie.
func (s *PositionStore) Put(p forward.Position) {
	s.mu.Lock()
	s.positions[p.Cookie] = storedPosition{pos: p, seen: time.Now()}
	s.mu.Unlock()
}

// Latest returns the non-stale positions, ordered by cookie for a stable
// response. Stale entries are dropped on the way out.
func (s *PositionStore) Latest() []forward.Position {
	cutoff := time.Now().Add(-s.staleAfter)

	s.mu.Lock()
	out := make([]forward.Position, 0, len(s.positions))
	for cookie, sp := range s.positions {
		if sp.seen.Before(cutoff) {
			delete(s.positions, cookie)
			continue
		}
		out = append(out, sp.pos)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Cookie < out[j].Cookie })
	return out
}

// Len returns the current entry count, stale entries included.
func (s *PositionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.positions)
}
