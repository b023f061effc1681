package forward

import (
	"context"
	"log"
	"sync"
	"time"
)

// DefaultFlushInterval matches the collector's ingest cadence: just under
// once a second, sending the latest fix per glider.
const DefaultFlushInterval = 900 * time.Millisecond

// Sink receives flushed position batches.
type Sink interface {
	Name() string
	Publish(ctx context.Context, batch []Position) error
}

// Batcher accumulates the latest position per cookie and flushes the set
// to every sink on an interval. Safe for concurrent use.
type Batcher struct {
	interval time.Duration
	sinks    []Sink

	mu      sync.Mutex
	pending map[uint32]Position

	queued   uint64
	sent     uint64
	failures map[string]uint64
}

// NewBatcher creates a batcher over the given sinks. A zero interval uses
// DefaultFlushInterval.
func NewBatcher(interval time.Duration, sinks ...Sink) *Batcher {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	failures := make(map[string]uint64, len(sinks))
	for _, s := range sinks {
		failures[s.Name()] = 0
	}
	return &Batcher{
		interval: interval,
		sinks:    sinks,
		pending:  make(map[uint32]Position),
		failures: failures,
	}
}

// Add queues a position, replacing any pending one for the same cookie.
func (b *Batcher) Add(p Position) {
	b.mu.Lock()
	b.pending[p.Cookie] = p
	b.queued++
	b.mu.Unlock()
}

// Run flushes on the interval until ctx is cancelled, then does one final
// flush so a clean shutdown does not drop the last batch.
func (b *Batcher) Run(ctx context.Context) {
	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.Flush(context.Background())
			return
		case <-ticker.C:
			b.Flush(ctx)
		}
	}
}

// Flush publishes all pending positions. Sink failures are counted and
// logged but never stall the decode path; the next batch supersedes this
// one anyway.
func (b *Batcher) Flush(ctx context.Context) {
	b.mu.Lock()
	if len(b.pending) == 0 {
		b.mu.Unlock()
		return
	}
	batch := make([]Position, 0, len(b.pending))
	stamp := utcStamp(time.Now())
	for _, p := range b.pending {
		p.Timestamp = stamp
		batch = append(batch, p)
	}
	b.pending = make(map[uint32]Position)
	b.mu.Unlock()

	for _, s := range b.sinks {
		if err := s.Publish(ctx, batch); err != nil {
			b.mu.Lock()
			b.failures[s.Name()]++
			n := b.failures[s.Name()]
			b.mu.Unlock()
			log.Printf("forward: %s publish failed (failures=%d): %v", s.Name(), n, err)
			continue
		}
		b.mu.Lock()
		b.sent += uint64(len(batch))
		b.mu.Unlock()
	}
}

// Stats returns queued/sent counters and per-sink failure counts.
func (b *Batcher) Stats() (queued, sent uint64, failures map[string]uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make(map[string]uint64, len(b.failures))
	for k, v := range b.failures {
		out[k] = v
	}
	return b.queued, b.sent, out
}
