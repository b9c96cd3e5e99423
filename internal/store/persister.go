package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/hooklog/internal/event"
	"github.com/gyaneshwarpardhi/hooklog/internal/metrics"
)

// snapshot is one full copy of the window tagged with the mutation sequence
// that produced it.
type snapshot struct {
	seq    uint64
	events []event.Event
}

// Persister is a single background writer in front of a Store.
//
// At most one Save is in flight. Snapshots submitted while a save is running
// are coalesced: only the one with the highest sequence is kept, and a
// snapshot is never written after a newer one. Callers never block on disk.
type Persister struct {
	store Store

	mu      sync.Mutex
	pending *snapshot
	written uint64        // highest sequence handed to Save
	changed chan struct{} // closed and replaced after every write
	lastErr error
	closed  bool

	wake chan struct{}
	done chan struct{}
	wg   sync.WaitGroup
}

// NewPersister starts the writer goroutine for s.
func NewPersister(s Store) *Persister {
	p := &Persister{
		store:   s,
		changed: make(chan struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.run()
	}()
	return p
}

// Submit queues events as the state at sequence seq. It returns false when
// the snapshot is already superseded or the persister is closed.
func (p *Persister) Submit(seq uint64, events []event.Event) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return false
	}
	if seq <= p.written || (p.pending != nil && seq <= p.pending.seq) {
		p.mu.Unlock()
		metrics.SnapshotsCoalesced.Inc()
		return false
	}
	if p.pending != nil {
		metrics.SnapshotsCoalesced.Inc()
	}
	p.pending = &snapshot{seq: seq, events: events}
	p.mu.Unlock()

	select {
	case p.wake <- struct{}{}:
	default:
	}
	return true
}

// Flush waits until the snapshot for seq, or a newer one, has been written.
// A failed write still counts; see Err.
func (p *Persister) Flush(ctx context.Context, seq uint64) error {
	for {
		p.mu.Lock()
		if p.written >= seq {
			p.mu.Unlock()
			return nil
		}
		ch := p.changed
		p.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Err returns the error from the most recent save, or nil if it succeeded.
func (p *Persister) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastErr
}

// Close writes any pending snapshot and stops the writer.
func (p *Persister) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()

	close(p.done)
	p.wg.Wait()
}

func (p *Persister) run() {
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.done:
			p.drain()
			return
		}
	}
}

func (p *Persister) drain() {
	for {
		p.mu.Lock()
		snap := p.pending
		p.pending = nil
		p.mu.Unlock()
		if snap == nil {
			return
		}

		start := time.Now()
		err := p.store.Save(snap.events)
		metrics.PersistDuration.Observe(float64(time.Since(start).Milliseconds()))
		if err != nil {
			metrics.PersistWrites.WithLabelValues("error").Inc()
			slog.Error("persist events failed, keeping in-memory state", "seq", snap.seq, "events", len(snap.events), "err", err)
		} else {
			metrics.PersistWrites.WithLabelValues("ok").Inc()
			slog.Debug("events persisted", "seq", snap.seq, "events", len(snap.events))
		}

		p.mu.Lock()
		p.written = snap.seq
		p.lastErr = err
		close(p.changed)
		p.changed = make(chan struct{})
		p.mu.Unlock()
	}
}
