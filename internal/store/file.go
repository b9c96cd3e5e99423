package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gyaneshwarpardhi/hooklog/internal/event"
)

// ErrCorrupt is returned by Read when the snapshot exists but is not a
// well-formed event array.
var ErrCorrupt = errors.New("corrupt event snapshot")

// Store loads and saves the full retained window.
type Store interface {
	Load() []event.Event
	Save(events []event.Event) error
}

// FileStore keeps the window as a single JSON array file, oldest first.
// Every Save is a complete replacement of the file.
type FileStore struct {
	path string
}

// NewFileStore returns a FileStore writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the snapshot location.
func (s *FileStore) Path() string { return s.path }

// Load returns the persisted window. A missing file is a first run and yields
// an empty window. A corrupt file is moved aside, logged, and also yields an
// empty window.
func (s *FileStore) Load() []event.Event {
	events, err := s.Read()
	switch {
	case err == nil:
		return events
	case errors.Is(err, os.ErrNotExist):
		slog.Info("no event snapshot found, starting empty", "path", s.path)
	case errors.Is(err, ErrCorrupt):
		aside := fmt.Sprintf("%s.corrupt-%d", s.path, time.Now().Unix())
		if rerr := os.Rename(s.path, aside); rerr != nil {
			slog.Error("event snapshot corrupt, starting empty", "path", s.path, "err", err, "rename_err", rerr)
		} else {
			slog.Error("event snapshot corrupt, starting empty", "path", s.path, "moved_to", aside, "err", err)
		}
	default:
		slog.Error("event snapshot unreadable, starting empty", "path", s.path, "err", err)
	}
	return []event.Event{}
}

// Read parses the snapshot file without any fallback.
func (s *FileStore) Read() ([]event.Event, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read snapshot %s: %w", s.path, err)
	}
	var events []event.Event
	if err := json.Unmarshal(data, &events); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	for i, ev := range events {
		// The file must be an array of objects carrying both fields.
		if ev.ReceivedAt.IsZero() || len(ev.Payload) == 0 {
			return nil, fmt.Errorf("%w: %s: entry %d missing receivedAt or payload", ErrCorrupt, s.path, i)
		}
	}
	if events == nil {
		events = []event.Event{}
	}
	return events, nil
}

// Save atomically replaces the snapshot with events.
func (s *FileStore) Save(events []event.Event) error {
	if events == nil {
		events = []event.Event{}
	}
	data, err := json.Marshal(events)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot dir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot %s: %w", s.path, err)
	}
	return nil
}
