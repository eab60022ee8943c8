// Package keystroke simulates the platform paste chord in the focused window.
package keystroke

import (
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/go-vgo/robotgo"
)

// settle gives the user time to release the hotkey's own modifiers before
// the chord is sent, otherwise e.g. Shift from Ctrl+Shift+V leaks into it.
const settle = 150 * time.Millisecond

// Chord is a key plus the modifiers held while tapping it, in robotgo names.
type Chord struct {
	Key       string
	Modifiers []string
}

func (c Chord) String() string {
	s := ""
	for _, m := range c.Modifiers {
		s += m + "+"
	}
	return s + c.Key
}

// PasteChord returns the paste shortcut for goos.
func PasteChord(goos string) Chord {
	if goos == "darwin" {
		return Chord{Key: "v", Modifiers: []string{"cmd"}}
	}
	return Chord{Key: "v", Modifiers: []string{"ctrl"}}
}

// Robot sends key events through robotgo.
type Robot struct {
	chord Chord
	delay time.Duration
}

// NewRobot returns a Robot that taps the paste chord for this OS.
func NewRobot() *Robot {
	return &Robot{chord: PasteChord(runtime.GOOS), delay: settle}
}

// Paste waits for the target application to see the new clipboard, then taps
// the paste chord. It blocks for the settle delay; callers on a hot path run
// it in its own goroutine.
func (r *Robot) Paste() error {
	time.Sleep(r.delay)
	args := make([]any, len(r.chord.Modifiers))
	for i, m := range r.chord.Modifiers {
		args[i] = m
	}
	if err := robotgo.KeyTap(r.chord.Key, args...); err != nil {
		return fmt.Errorf("send %s: %w", r.chord, err)
	}
	slog.Debug("paste keystroke sent", "chord", r.chord.String())
	return nil
}
