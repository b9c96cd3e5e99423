package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gyaneshwarpardhi/hooklog/internal/event"
)

// recordingStore remembers the length of every saved snapshot. When gate is
// set, each Save blocks until it is closed.
type recordingStore struct {
	mu      sync.Mutex
	saves   []int
	gate    chan struct{}
	started chan struct{}
	err     error
}

func (s *recordingStore) Load() []event.Event { return []event.Event{} }

func (s *recordingStore) Save(events []event.Event) error {
	s.mu.Lock()
	s.saves = append(s.saves, len(events))
	s.mu.Unlock()
	if s.started != nil {
		select {
		case s.started <- struct{}{}:
		default:
		}
	}
	if s.gate != nil {
		<-s.gate
	}
	return s.err
}

func (s *recordingStore) saved() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.saves...)
}

func window(n int) []event.Event {
	out := make([]event.Event, n)
	for i := range out {
		out[i] = event.Event{ReceivedAt: time.Now().UTC(), Payload: json.RawMessage(fmt.Sprintf(`{"n":%d}`, i))}
	}
	return out
}

func flushCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPersister_WritesSubmittedSnapshot(t *testing.T) {
	s := &recordingStore{}
	p := NewPersister(s)
	defer p.Close()

	require.True(t, p.Submit(1, window(2)))
	require.NoError(t, p.Flush(flushCtx(t), 1))
	assert.Equal(t, []int{2}, s.saved())
	assert.NoError(t, p.Err())
}

func TestPersister_CoalescesWhileSaveInFlight(t *testing.T) {
	s := &recordingStore{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	p := NewPersister(s)
	defer p.Close()

	require.True(t, p.Submit(1, window(1)))
	<-s.started // seq 1 is now being written

	require.True(t, p.Submit(2, window(2)))
	require.True(t, p.Submit(3, window(3)))
	close(s.gate)

	require.NoError(t, p.Flush(flushCtx(t), 3))
	assert.Equal(t, []int{1, 3}, s.saved(), "seq 2 must be superseded by seq 3")
}

func TestPersister_RejectsOlderSnapshot(t *testing.T) {
	s := &recordingStore{gate: make(chan struct{}), started: make(chan struct{}, 1)}
	p := NewPersister(s)
	defer p.Close()

	require.True(t, p.Submit(1, window(1)))
	<-s.started
	require.True(t, p.Submit(5, window(5)))
	assert.False(t, p.Submit(4, window(4)), "older than pending")
	close(s.gate)
	require.NoError(t, p.Flush(flushCtx(t), 5))

	assert.False(t, p.Submit(3, window(3)), "older than written")
	assert.Equal(t, []int{1, 5}, s.saved())
}

func TestPersister_LastWriteWinsOnDisk(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "events.json"))
	p := NewPersister(fs)

	var wg sync.WaitGroup
	for seq := 1; seq <= 50; seq++ {
		wg.Add(1)
		go func(seq int) {
			defer wg.Done()
			p.Submit(uint64(seq), window(seq))
		}(seq)
	}
	wg.Wait()
	p.Close()

	assert.Len(t, fs.Load(), 50)
}

func TestPersister_SaveErrorIsRecorded(t *testing.T) {
	s := &recordingStore{err: errors.New("disk full")}
	p := NewPersister(s)
	defer p.Close()

	require.True(t, p.Submit(1, window(1)))
	require.NoError(t, p.Flush(flushCtx(t), 1))
	assert.EqualError(t, p.Err(), "disk full")

	s.mu.Lock()
	s.err = nil
	s.mu.Unlock()
	require.True(t, p.Submit(2, window(1)))
	require.NoError(t, p.Flush(flushCtx(t), 2))
	assert.NoError(t, p.Err())
}

func TestPersister_CloseDrainsAndRefuses(t *testing.T) {
	s := &recordingStore{}
	p := NewPersister(s)

	p.Submit(1, window(4))
	p.Close()
	p.Close() // idempotent

	assert.Equal(t, []int{4}, s.saved())
	assert.False(t, p.Submit(2, window(1)))
}

func TestPersister_FlushHonoursContext(t *testing.T) {
	p := NewPersister(&recordingStore{})
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, p.Flush(ctx, 99), context.DeadlineExceeded)
}
