// Package history is the ordered, size-bounded clipboard history and its
// JSON persistence.
//
// Entries are kept most-recent-first. Appending content identical to the
// current head is a no-op; only the head is compared, so the same text may
// appear more than once further down. Every mutation rewrites the history
// file atomically while the store lock is held, so the in-memory state and
// the file never diverge by more than the last failed write.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/config"
	"go.klb.dev/clipkeep/internal/fsutil"
)

const (
	filePerm       = 0o600
	writeRetries   = 1
	writeRetryWait = 100 * time.Millisecond
)

// ErrNotFound is returned by Get for an index outside the history.
var ErrNotFound = errors.New("history entry not found")

// PersistenceError reports a history file write that failed after retrying.
// The in-memory state it accompanies is still authoritative.
type PersistenceError struct {
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist history to %s: %v", e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// CorruptEntryError describes an entry skipped while loading.
type CorruptEntryError struct {
	Index int
	Err   error
}

func (e *CorruptEntryError) Error() string {
	return fmt.Sprintf("history entry %d: %v", e.Index, e.Err)
}

func (e *CorruptEntryError) Unwrap() error { return e.Err }

type file struct {
	Settings json.RawMessage   `json:"settings"`
	NextID   json.RawMessage   `json:"next_id"`
	History  []json.RawMessage `json:"history"`
}

type snapshot struct {
	Settings config.Settings `json:"settings"`
	NextID   uint64          `json:"next_id"`
	History  []Entry         `json:"history"`
}

// Store is the clipboard history. It is safe for concurrent use, though the
// controller is expected to be its only caller.
type Store struct {
	path string
	now  func() time.Time

	mu       sync.Mutex
	settings config.Settings
	entries  []Entry
	nextID   uint64
}

// New returns an empty store persisting to path. Nothing is read or written
// until the first mutation.
func New(path string, settings config.Settings) *Store {
	return &Store{
		path:     path,
		now:      time.Now,
		settings: settings.Normalize(),
		nextID:   1,
	}
}

// Open loads the history at path. A missing file yields an empty history
// with default settings. A file that is not valid JSON at the top level is
// moved aside and an empty history is used. Settings or a next id that fail
// to decode fall back to defaults, and individual entries that fail to
// decode are logged and skipped, so one bad field never costs the rest.
func Open(path string) (*Store, error) {
	s := New(path, config.Default())

	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Info("no history file, starting empty", "path", path)
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}

	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		aside := fmt.Sprintf("%s.corrupt-%d", path, time.Now().Unix())
		slog.Warn("history file unreadable, moving aside", "path", path, "moved_to", aside, "err", err)
		if rerr := os.Rename(path, aside); rerr != nil {
			slog.Warn("could not move corrupt history aside", "err", rerr)
		}
		return s, nil
	}

	s.settings = decodeSettings(f.Settings)
	s.entries = decodeEntries(f.History)
	s.nextID = decodeNextID(f.NextID)
	for _, e := range s.entries {
		if e.ID >= s.nextID {
			s.nextID = e.ID + 1
		}
	}
	if s.nextID == 0 {
		s.nextID = 1
	}
	s.trimLocked()

	slog.Info("history loaded", "path", path, "entries", len(s.entries), "max_items", s.settings.MaxItems)
	return s, nil
}

func decodeSettings(raw json.RawMessage) config.Settings {
	var st config.Settings
	if len(raw) == 0 {
		return st.Normalize()
	}
	if err := json.Unmarshal(raw, &st); err != nil {
		slog.Warn("history settings unreadable, using defaults", "err", err)
		return config.Default()
	}
	return st.Normalize()
}

func decodeNextID(raw json.RawMessage) uint64 {
	var id uint64
	if len(raw) == 0 {
		return 0
	}
	if err := json.Unmarshal(raw, &id); err != nil {
		slog.Warn("history next_id unreadable, deriving from entries", "err", err)
		return 0
	}
	return id
}

// decodeEntries keeps every entry that decodes, dropping any that repeats
// the one kept just before it.
func decodeEntries(raws []json.RawMessage) []Entry {
	out := make([]Entry, 0, len(raws))
	for i, r := range raws {
		var e Entry
		if err := json.Unmarshal(r, &e); err != nil {
			slog.Warn("skipping corrupt history entry", "err", &CorruptEntryError{Index: i, Err: err})
			continue
		}
		if n := len(out); n > 0 && out[n-1].Same(e.Content()) {
			slog.Warn("dropping duplicate history entry", "index", i, "id", e.ID, "same_as", out[n-1].ID)
			continue
		}
		out = append(out, e)
	}
	return out
}

// Path returns the history file location.
func (s *Store) Path() string { return s.path }

// Append inserts c at the head. It returns the new entry and true, or the
// current head and false when c duplicates it. A *PersistenceError means the
// entry was added in memory but could not be written.
func (s *Store) Append(c clip.Content) (Entry, bool, error) {
	if !c.Kind.Valid() || c.IsZero() {
		return Entry{}, false, fmt.Errorf("append: invalid content (kind %q, %d bytes)", c.Kind, len(c.Data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > 0 && s.entries[0].Same(c) {
		return s.entries[0], false, nil
	}

	e := newEntry(s.nextID, c, s.now())
	s.nextID++
	s.entries = append([]Entry{e}, s.entries...)
	s.trimLocked()

	return e, true, s.persistLocked()
}

// Get returns the entry at index, 0 being the most recent.
func (s *Store) Get(index int) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if index < 0 || index >= len(s.entries) {
		return Entry{}, fmt.Errorf("index %d (history has %d): %w", index, len(s.entries), ErrNotFound)
	}
	return s.entries[index], nil
}

// Head returns the most recent entry.
func (s *Store) Head() (Entry, bool) {
	e, err := s.Get(0)
	return e, err == nil
}

// Clear empties the history and persists the empty snapshot.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return s.persistLocked()
}

// List iterates over a snapshot of the history, head to tail. Mutations
// after the call do not affect the iteration.
func (s *Store) List() iter.Seq2[int, Entry] {
	snap := s.Entries()
	return func(yield func(int, Entry) bool) {
		for i, e := range snap {
			if !yield(i, e) {
				return
			}
		}
	}
}

// Entries returns a copy of the history, head first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Entry(nil), s.entries...)
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Settings returns the current settings.
func (s *Store) Settings() config.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// SetSettings replaces the settings, trims the history to the new cap and
// persists. Unchanged settings are not rewritten.
func (s *Store) SetSettings(settings config.Settings) error {
	settings = settings.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()
	if settings.Equal(s.settings) {
		return nil
	}
	s.settings = settings
	s.trimLocked()
	return s.persistLocked()
}

func (s *Store) trimLocked() {
	if limit := s.settings.MaxItems; len(s.entries) > limit {
		clear(s.entries[limit:])
		s.entries = s.entries[:limit]
	}
}

func (s *Store) persistLocked() error {
	hist := s.entries
	if hist == nil {
		hist = []Entry{}
	}
	raw, err := json.MarshalIndent(snapshot{
		Settings: s.settings,
		NextID:   s.nextID,
		History:  hist,
	}, "", "  ")
	if err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	raw = append(raw, '\n')

	op := func() error { return fsutil.WriteFile(s.path, raw, filePerm) }
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(writeRetryWait), writeRetries)
	if err := backoff.Retry(op, policy); err != nil {
		return &PersistenceError{Path: s.path, Err: err}
	}
	return nil
}
