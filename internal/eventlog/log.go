package eventlog

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gyaneshwarpardhi/hooklog/internal/event"
	"github.com/gyaneshwarpardhi/hooklog/internal/metrics"
	"github.com/gyaneshwarpardhi/hooklog/internal/store"
)

// DefaultCapacity is the size of the retention window.
const DefaultCapacity = 100

// Persister receives a full copy of the window after every mutation.
// Implementations must not block.
type Persister interface {
	Submit(seq uint64, events []event.Event) bool
	Close()
}

// Log is the bounded, ordered window of received events.
// Append and Clear are the only mutations; every mutation hands a snapshot to
// the Persister. Readers always see a fully formed window.
type Log struct {
	mu       sync.RWMutex
	events   []event.Event
	capacity int
	seq      uint64

	persist Persister
	now     func() time.Time
}

// Open builds a Log from whatever s has on disk. A loaded window longer than
// capacity keeps only its newest capacity events.
func Open(s store.Store, p Persister, capacity int) *Log {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	events := s.Load()
	if len(events) > capacity {
		slog.Warn("loaded window exceeds capacity, dropping oldest", "loaded", len(events), "capacity", capacity)
		events = append([]event.Event(nil), events[len(events)-capacity:]...)
	}
	l := &Log{
		events:   make([]event.Event, 0, capacity+1),
		capacity: capacity,
		persist:  p,
		now:      time.Now,
	}
	l.events = append(l.events, events...)
	metrics.EventsRetained.Set(float64(len(l.events)))
	slog.Info("event log opened", "events", len(l.events), "capacity", capacity)
	return l
}

// Append stores payload with a server-assigned arrival time and returns the
// stored event. The head of the window is evicted once capacity is exceeded.
func (l *Log) Append(payload json.RawMessage) event.Event {
	payload = normalizePayload(payload)

	l.mu.Lock()
	now := l.now().UTC()
	if n := len(l.events); n > 0 && now.Before(l.events[n-1].ReceivedAt) {
		now = l.events[n-1].ReceivedAt
	}
	ev := event.Event{ReceivedAt: now, Payload: payload}
	l.events = append(l.events, ev)
	evicted := 0
	for len(l.events) > l.capacity {
		copy(l.events, l.events[1:])
		l.events[len(l.events)-1] = event.Event{}
		l.events = l.events[:len(l.events)-1]
		evicted++
	}
	seq, snap := l.snapshotLocked()
	l.mu.Unlock()

	metrics.EventsReceived.Inc()
	metrics.EventsEvicted.Add(float64(evicted))
	metrics.EventsRetained.Set(float64(len(snap)))
	l.persist.Submit(seq, snap)
	return ev
}

// Clear empties the window. Calling it on an empty window is harmless.
func (l *Log) Clear() {
	l.mu.Lock()
	removed := len(l.events)
	clear(l.events)
	l.events = l.events[:0]
	seq, snap := l.snapshotLocked()
	l.mu.Unlock()

	metrics.EventsCleared.Add(float64(removed))
	metrics.EventsRetained.Set(0)
	l.persist.Submit(seq, snap)
	slog.Info("event log cleared", "removed", removed)
}

// List returns the whole window, oldest first.
func (l *Log) List() []event.Event {
	return l.Latest(0)
}

// Latest returns the newest n events, oldest first. n <= 0 means all.
func (l *Log) Latest(n int) []event.Event {
	l.mu.RLock()
	defer l.mu.RUnlock()
	start := 0
	if n > 0 && n < len(l.events) {
		start = len(l.events) - n
	}
	out := make([]event.Event, len(l.events)-start)
	copy(out, l.events[start:])
	return out
}

// Stats reports the size of the window and its time bounds.
func (l *Log) Stats() event.Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()
	st := event.Stats{Count: len(l.events), Capacity: l.capacity}
	if st.Count > 0 {
		oldest := l.events[0].ReceivedAt
		newest := l.events[st.Count-1].ReceivedAt
		st.Oldest = &oldest
		st.Newest = &newest
	}
	return st
}

// Capacity returns the configured window size.
func (l *Log) Capacity() int { return l.capacity }

// Seq returns the sequence number of the latest mutation.
func (l *Log) Seq() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.seq
}

// Close flushes pending persistence and stops the writer.
func (l *Log) Close() {
	l.persist.Close()
}

// snapshotLocked must be called with mu held for writing.
func (l *Log) snapshotLocked() (uint64, []event.Event) {
	l.seq++
	snap := make([]event.Event, len(l.events))
	copy(snap, l.events)
	return l.seq, snap
}

// normalizePayload guarantees the stored payload is a valid JSON value so the
// snapshot always encodes. Non-JSON bytes are kept as a JSON string.
func normalizePayload(p json.RawMessage) json.RawMessage {
	if len(p) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(p) {
		return append(json.RawMessage(nil), p...)
	}
	quoted, _ := json.Marshal(string(p))
	return quoted
}
