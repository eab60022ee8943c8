package controller

import (
	"time"

	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/hotkeys"
	"go.klb.dev/clipkeep/internal/keybind"
)

// Item is a history entry together with its current position.
type Item struct {
	Index int
	Entry history.Entry
}

// Hotkey is one configured binding and its registration state.
type Hotkey struct {
	Action  keybind.Action
	Combo   string
	Enabled bool
	State   hotkeys.State
}

// Status is a point-in-time view of the controller.
type Status struct {
	Entries        int
	MaxItems       int
	WatchInterval  time.Duration
	PasteKeystroke bool
	Visible        bool
	Backend        string
	HistoryPath    string
	BindingsPath   string
	StartedAt      time.Time
	LastCapture    time.Time
	Hotkeys        []Hotkey
}
