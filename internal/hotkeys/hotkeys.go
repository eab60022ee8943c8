// Package hotkeys grabs global key combinations and turns key presses into
// actions on a queue.
//
// Each binding moves through Unregistered -> Registered -> Triggered ->
// Registered. The press arrives on a goroutine owned by the grab; the
// dispatcher only pushes the action onto a buffered channel, and whoever owns
// the application state consumes it from there. Nothing here touches that
// state.
package hotkeys

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"go.klb.dev/clipkeep/internal/keybind"
)

const defaultQueueSize = 16

// State is the registration state of one binding.
type State int32

const (
	Unregistered State = iota
	Registered
	Triggered
)

func (s State) String() string {
	switch s {
	case Registered:
		return "registered"
	case Triggered:
		return "triggered"
	default:
		return "unregistered"
	}
}

var (
	// ErrAllFailed is returned by Register when bindings were requested and
	// none of them could be grabbed.
	ErrAllFailed = errors.New("no hotkey could be registered")

	// ErrClosed is returned by Register after Close.
	ErrClosed = errors.New("hotkey dispatcher closed")
)

// Grab is one OS-level reservation of a key combination.
type Grab interface {
	// Keydown delivers a value each time the combination is pressed.
	Keydown() <-chan struct{}
	// Release gives the combination back to the OS.
	Release() error
}

// Grabber reserves key combinations with the OS or display server.
type Grabber interface {
	Grab(c keybind.Combo) (Grab, error)
}

// RegistrationError reports a binding that could not be grabbed, typically
// because another application already owns the combination.
type RegistrationError struct {
	Action keybind.Action
	Combo  string
	Err    error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s (%s): %v", e.Action, e.Combo, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Report summarises a Register call.
type Report struct {
	Registered []keybind.Action
	Failed     []*RegistrationError
}

type slot struct {
	combo keybind.Combo
	grab  Grab
	state atomic.Int32
	stop  chan struct{}
	done  chan struct{}
}

// Dispatcher owns the set of grabbed combinations.
type Dispatcher struct {
	grabber Grabber
	events  chan keybind.Action

	mu     sync.Mutex
	slots  map[keybind.Action]*slot
	closed bool
}

// New returns a Dispatcher that grabs through g.
func New(g Grabber) *Dispatcher {
	return &Dispatcher{
		grabber: g,
		events:  make(chan keybind.Action, defaultQueueSize),
		slots:   make(map[keybind.Action]*slot),
	}
}

// Events delivers triggered actions. The channel is never closed.
func (d *Dispatcher) Events() <-chan keybind.Action { return d.events }

// Register grabs every binding. A binding that fails is logged and reported
// in Report.Failed; the others still register. The error is non-nil only
// when bindings were given and all of them failed, or after Close.
// Registering an action that is already held with the same combination is a
// no-op.
func (d *Dispatcher) Register(bindings []keybind.Resolved) (Report, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var rep Report
	if d.closed {
		return rep, ErrClosed
	}

	for _, b := range bindings {
		if s, ok := d.slots[b.Action]; ok {
			if s.combo == b.Combo {
				rep.Registered = append(rep.Registered, b.Action)
				continue
			}
			d.releaseLocked(b.Action)
		}

		g, err := d.grabber.Grab(b.Combo)
		if err != nil {
			rerr := &RegistrationError{Action: b.Action, Combo: b.Combo.String(), Err: err}
			slog.Warn("hotkey registration failed", "action", b.Action, "combo", b.Combo.String(), "err", err)
			rep.Failed = append(rep.Failed, rerr)
			continue
		}

		s := &slot{
			combo: b.Combo,
			grab:  g,
			stop:  make(chan struct{}),
			done:  make(chan struct{}),
		}
		s.state.Store(int32(Registered))
		d.slots[b.Action] = s
		go d.forward(b.Action, s)

		slog.Info("hotkey registered", "action", b.Action, "combo", b.Combo.String())
		rep.Registered = append(rep.Registered, b.Action)
	}

	if len(bindings) > 0 && len(rep.Registered) == 0 {
		errs := make([]error, 0, len(rep.Failed)+1)
		errs = append(errs, ErrAllFailed)
		for _, f := range rep.Failed {
			errs = append(errs, f)
		}
		return rep, errors.Join(errs...)
	}
	return rep, nil
}

// forward turns presses on one grab into queued actions.
func (d *Dispatcher) forward(a keybind.Action, s *slot) {
	defer close(s.done)
	keydown := s.grab.Keydown()
	for {
		select {
		case <-s.stop:
			return
		case _, ok := <-keydown:
			if !ok {
				return
			}
			if !s.state.CompareAndSwap(int32(Registered), int32(Triggered)) {
				continue
			}
			select {
			case d.events <- a:
				slog.Debug("hotkey triggered", "action", a)
			default:
				slog.Warn("hotkey queue full, dropping trigger", "action", a)
			}
			s.state.CompareAndSwap(int32(Triggered), int32(Registered))
		}
	}
}

// Unregister releases one action's grab. Unknown or already released
// actions are ignored.
func (d *Dispatcher) Unregister(a keybind.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releaseLocked(a)
}

// UnregisterAll releases every grab and returns the release errors joined.
func (d *Dispatcher) UnregisterAll() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releaseAllLocked()
}

// Reload replaces the registered set with bindings.
func (d *Dispatcher) Reload(bindings []keybind.Resolved) (Report, error) {
	if err := d.UnregisterAll(); err != nil {
		slog.Warn("releasing hotkeys before reload", "err", err)
	}
	return d.Register(bindings)
}

// Close releases every grab. Later Register calls fail with ErrClosed.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return d.releaseAllLocked()
}

// State returns the state of a's binding.
func (d *Dispatcher) State(a keybind.Action) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.slots[a]
	if !ok {
		return Unregistered
	}
	return State(s.state.Load())
}

// Registered returns the actions currently held, sorted.
func (d *Dispatcher) Registered() []keybind.Action {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]keybind.Action, 0, len(d.slots))
	for a := range d.slots {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

func (d *Dispatcher) releaseAllLocked() error {
	var errs []error
	for a := range d.slots {
		if err := d.releaseLocked(a); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) releaseLocked(a keybind.Action) error {
	s, ok := d.slots[a]
	if !ok {
		return nil
	}
	delete(d.slots, a)
	s.state.Store(int32(Unregistered))
	close(s.stop)
	<-s.done
	if err := s.grab.Release(); err != nil {
		return fmt.Errorf("release %s (%s): %w", a, s.combo.String(), err)
	}
	slog.Debug("hotkey unregistered", "action", a)
	return nil
}
