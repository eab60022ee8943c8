// Package hotkeystest provides an in-process hotkeys.Grabber for tests.
package hotkeystest

import (
	"errors"
	"slices"
	"sync"

	"go.klb.dev/clipkeep/internal/hotkeys"
	"go.klb.dev/clipkeep/internal/keybind"
)

// ErrGrabbed is returned by Fake for a combination held elsewhere.
var ErrGrabbed = errors.New("combination already grabbed by another client")

// Fake is an in-process hotkeys.Grabber. Combinations passed to Occupy
// behave as if another application owned them.
type Fake struct {
	mu       sync.Mutex
	occupied map[string]bool
	held     map[string]*fakeGrab
}

// NewFake returns a Fake with nothing grabbed.
func NewFake() *Fake {
	return &Fake{
		occupied: make(map[string]bool),
		held:     make(map[string]*fakeGrab),
	}
}

// Occupy marks combo (canonical form) as owned by someone else.
func (f *Fake) Occupy(combo string) {
	f.mu.Lock()
	f.occupied[combo] = true
	f.mu.Unlock()
}

func (f *Fake) Grab(c keybind.Combo) (hotkeys.Grab, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := c.String()
	if f.occupied[key] || f.held[key] != nil {
		return nil, ErrGrabbed
	}
	g := &fakeGrab{f: f, key: key, ch: make(chan struct{}, 1)}
	f.held[key] = g
	return g, nil
}

// Press simulates the user pressing combo. It reports false when nothing
// holds the combination.
func (f *Fake) Press(combo string) bool {
	f.mu.Lock()
	g := f.held[combo]
	f.mu.Unlock()
	if g == nil {
		return false
	}
	g.ch <- struct{}{}
	return true
}

// Held returns the grabbed combinations, sorted.
func (f *Fake) Held() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.held))
	for k := range f.held {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

type fakeGrab struct {
	f   *Fake
	key string
	ch  chan struct{}
}

func (g *fakeGrab) Keydown() <-chan struct{} { return g.ch }

func (g *fakeGrab) Release() error {
	g.f.mu.Lock()
	defer g.f.mu.Unlock()
	if g.f.held[g.key] == g {
		delete(g.f.held, g.key)
	}
	return nil
}
