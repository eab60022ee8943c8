// Package config holds the persisted daemon settings and the layout of the
// data directory.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultMaxItems        = 50
	DefaultWatchIntervalMS = 500
	MinWatchIntervalMS     = 50

	HistoryFile  = "history.json"
	BindingsFile = "keybindings.json"
	LockFile     = "clipkeep.lock"
)

// Settings are the user-tunable values stored alongside the history.
// Zero values mean "unset" and are replaced by defaults in Normalize.
type Settings struct {
	MaxItems        int   `json:"max_items"`
	WatchIntervalMS int   `json:"watch_interval_ms"`
	PasteKeystroke  *bool `json:"paste_keystroke,omitempty"`
}

// Default returns the built-in settings.
func Default() Settings {
	on := true
	return Settings{
		MaxItems:        DefaultMaxItems,
		WatchIntervalMS: DefaultWatchIntervalMS,
		PasteKeystroke:  &on,
	}
}

// Normalize replaces missing or out-of-range fields with defaults.
func (s Settings) Normalize() Settings {
	d := Default()
	if s.MaxItems <= 0 {
		s.MaxItems = d.MaxItems
	}
	if s.WatchIntervalMS <= 0 {
		s.WatchIntervalMS = d.WatchIntervalMS
	} else if s.WatchIntervalMS < MinWatchIntervalMS {
		s.WatchIntervalMS = MinWatchIntervalMS
	}
	if s.PasteKeystroke == nil {
		s.PasteKeystroke = d.PasteKeystroke
	}
	return s
}

// WatchInterval returns the poll period.
func (s Settings) WatchInterval() time.Duration {
	return time.Duration(s.Normalize().WatchIntervalMS) * time.Millisecond
}

// Keystroke reports whether PasteLast should simulate the paste chord.
func (s Settings) Keystroke() bool {
	return s.PasteKeystroke == nil || *s.PasteKeystroke
}

// WithKeystroke returns s with PasteKeystroke set to on.
func (s Settings) WithKeystroke(on bool) Settings {
	s.PasteKeystroke = &on
	return s
}

// Equal compares normalized settings.
func (s Settings) Equal(o Settings) bool {
	a, b := s.Normalize(), o.Normalize()
	return a.MaxItems == b.MaxItems &&
		a.WatchIntervalMS == b.WatchIntervalMS &&
		a.Keystroke() == b.Keystroke()
}

// Paths locates the files kept in the data directory.
type Paths struct {
	Dir string
}

// DefaultDataDir returns $XDG_CONFIG_HOME/clipkeep (or the OS equivalent).
func DefaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "clipkeep")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".clipkeep")
	}
	return ".clipkeep"
}

// NewPaths resolves dir, falling back to DefaultDataDir when empty.
func NewPaths(dir string) (Paths, error) {
	if dir == "" {
		dir = DefaultDataDir()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return Paths{}, fmt.Errorf("data dir %q: %w", dir, err)
	}
	return Paths{Dir: abs}, nil
}

func (p Paths) History() string  { return filepath.Join(p.Dir, HistoryFile) }
func (p Paths) Bindings() string { return filepath.Join(p.Dir, BindingsFile) }
