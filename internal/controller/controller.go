// Package controller owns the clipboard history and applies everything that
// changes it.
//
// Three sources feed the controller: the clipboard watcher, the hotkey
// dispatcher and requests from the control socket. Run consumes all of them
// on one goroutine, so the history, the settings and the visibility flag are
// only ever touched from there. Public methods package their work as a
// closure, queue it and wait for the loop to run it.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/history"
	"go.klb.dev/clipkeep/internal/hotkeys"
	"go.klb.dev/clipkeep/internal/keybind"
	"go.klb.dev/clipkeep/internal/watcher"
)

const (
	writeRetries   = 2
	writeRetryWait = 50 * time.Millisecond
)

// ErrStopped is returned by every method once Run has returned.
var ErrStopped = errors.New("controller stopped")

// ErrEmptyHistory is returned by PasteLast when there is nothing to paste.
var ErrEmptyHistory = errors.New("history is empty")

var errNoBindingsFile = errors.New("no key bindings file configured")

// Paster simulates the platform paste shortcut.
type Paster interface {
	Paste() error
}

// Config wires a Controller to its collaborators. Store, Backend and
// Dispatcher are required. Bindings is the table the dispatcher was
// registered with; nil means the defaults.
type Config struct {
	Store        *history.Store
	Backend      clip.Backend
	Dispatcher   *hotkeys.Dispatcher
	Paster       Paster
	BindingsPath string
	Bindings     keybind.Table
	Watcher      []watcher.Option
}

type request struct {
	fn   func()
	done chan struct{}
}

// Controller serialises all history and state changes onto Run.
type Controller struct {
	store        *history.Store
	backend      clip.Backend
	dispatcher   *hotkeys.Dispatcher
	paster       Paster
	watcher      *watcher.Watcher
	bindingsPath string

	captures chan clip.Content
	requests chan request
	stopped  chan struct{}
	runOnce  sync.Once

	// Keystrokes run off the loop; pasteMu keeps them from interleaving.
	pastes  sync.WaitGroup
	pasteMu sync.Mutex

	// Owned by the Run goroutine.
	bindings    keybind.Table
	visible     bool
	startedAt   time.Time
	lastCapture time.Time
}

// New returns a Controller. Nothing runs until Run is called.
func New(cfg Config) *Controller {
	bindings := cfg.Bindings
	if bindings == nil {
		bindings = keybind.Defaults()
	}
	return &Controller{
		store:        cfg.Store,
		backend:      cfg.Backend,
		dispatcher:   cfg.Dispatcher,
		paster:       cfg.Paster,
		watcher:      watcher.New(cfg.Backend, cfg.Watcher...),
		bindingsPath: cfg.BindingsPath,
		captures:     make(chan clip.Content),
		requests:     make(chan request),
		stopped:      make(chan struct{}),
		bindings:     bindings.Clone(),
	}
}

// Run starts the clipboard watcher and consumes captures, hotkey actions and
// requests until ctx is done. On return the watcher has stopped and every
// hotkey has been released. Run may be called once.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errors.New("controller already ran")
	}
	defer close(c.stopped)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer func() {
		cancel()
		wg.Wait()
		c.pastes.Wait()
		if err := c.dispatcher.Close(); err != nil {
			slog.Warn("releasing hotkeys", "err", err)
		}
		slog.Info("controller stopped")
	}()

	c.startedAt = time.Now()
	interval := c.store.Settings().WatchInterval()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.watcher.Run(ctx, interval, func(content clip.Content) {
			select {
			case c.captures <- content:
			case <-ctx.Done():
			}
		})
	}()

	slog.Info("controller started", "entries", c.store.Len(), "history", c.store.Path())

	for {
		select {
		case <-ctx.Done():
			return nil
		case content := <-c.captures:
			c.capture(content)
		case a := <-c.dispatcher.Events():
			c.handle(a)
		case r := <-c.requests:
			r.fn()
			close(r.done)
		}
	}
}

// do runs fn on the Run goroutine and waits for it.
func (c *Controller) do(ctx context.Context, fn func()) error {
	r := request{fn: fn, done: make(chan struct{})}
	select {
	case c.requests <- r:
	case <-c.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	<-r.done
	return nil
}

func (c *Controller) capture(content clip.Content) {
	e, added, err := c.store.Append(content)
	var perr *history.PersistenceError
	switch {
	case errors.As(err, &perr):
		slog.Warn("clipboard entry kept in memory only", "id", e.ID, "err", err)
	case err != nil:
		slog.Warn("clipboard capture rejected", "err", err)
		return
	}
	if !added {
		return
	}
	c.lastCapture = e.CreatedAt
	logEntry("clipboard captured", e)
}

func (c *Controller) handle(a keybind.Action) {
	slog.Debug("hotkey action", "action", a)
	var err error
	switch a {
	case keybind.ActionPasteLast:
		err = c.pasteLast()
	case keybind.ActionClearHistory:
		err = c.clear()
	case keybind.ActionToggleWindow:
		c.toggle()
	default:
		n, ok := a.PasteIndex()
		if !ok {
			slog.Warn("no handler for action", "action", a)
			return
		}
		err = c.restore(n, true)
	}
	if err != nil {
		slog.Warn("hotkey action failed", "action", a, "err", err)
	}
}

func (c *Controller) pasteLast() error {
	if _, ok := c.store.Head(); !ok {
		return ErrEmptyHistory
	}
	return c.restore(0, true)
}

// restore puts entry index on the OS clipboard and optionally taps the paste
// chord. The watcher picks the new clipboard up like any other copy, so a
// restored entry that is not the head becomes the new head. The keystroke is
// sent from its own goroutine and restore does not wait for it.
func (c *Controller) restore(index int, paste bool) error {
	e, err := c.store.Get(index)
	if err != nil {
		return err
	}
	op := func() error { return c.backend.Write(e.Content()) }
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(writeRetryWait), writeRetries)
	if err := backoff.Retry(op, policy); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	logEntry("clipboard restored", e)

	if !paste || !c.store.Settings().Keystroke() || c.paster == nil {
		return nil
	}
	c.pastes.Add(1)
	go func() {
		defer c.pastes.Done()
		c.pasteMu.Lock()
		defer c.pasteMu.Unlock()
		if err := c.paster.Paste(); err != nil {
			slog.Warn("paste keystroke failed", "err", err)
		}
	}()
	return nil
}

func (c *Controller) clear() error {
	n := c.store.Len()
	err := c.store.Clear()
	slog.Info("history cleared", "removed", n)
	return err
}

func (c *Controller) toggle() {
	c.visible = !c.visible
	slog.Info("window visibility toggled", "visible", c.visible)
}

// List returns up to limit entries, most recent first. A non-empty query
// keeps only text entries that fuzzily match it, ignoring case. A limit of
// zero or less means no limit.
func (c *Controller) List(ctx context.Context, query string, limit int) ([]Item, error) {
	var out []Item
	err := c.do(ctx, func() {
		for i, e := range c.store.List() {
			if limit > 0 && len(out) >= limit {
				return
			}
			if query != "" && (e.Kind != clip.KindText || !fuzzy.MatchFold(query, e.Text())) {
				continue
			}
			out = append(out, Item{Index: i, Entry: e})
		}
	})
	return out, err
}

// Get returns the entry at index.
func (c *Controller) Get(ctx context.Context, index int) (history.Entry, error) {
	var (
		e    history.Entry
		gerr error
	)
	if err := c.do(ctx, func() { e, gerr = c.store.Get(index) }); err != nil {
		return history.Entry{}, err
	}
	return e, gerr
}

// Restore writes entry index to the OS clipboard. With paste set, the paste
// chord follows when the settings allow it.
func (c *Controller) Restore(ctx context.Context, index int, paste bool) error {
	var rerr error
	if err := c.do(ctx, func() { rerr = c.restore(index, paste) }); err != nil {
		return err
	}
	return rerr
}

// PasteLast writes the most recent entry to the OS clipboard and, when
// enabled, taps the paste chord.
func (c *Controller) PasteLast(ctx context.Context) error {
	var perr error
	if err := c.do(ctx, func() { perr = c.pasteLast() }); err != nil {
		return err
	}
	return perr
}

// Clear empties the history.
func (c *Controller) Clear(ctx context.Context) error {
	var cerr error
	if err := c.do(ctx, func() { cerr = c.clear() }); err != nil {
		return err
	}
	return cerr
}

// Toggle flips the visibility flag and returns the new value.
func (c *Controller) Toggle(ctx context.Context) (bool, error) {
	var v bool
	err := c.do(ctx, func() {
		c.toggle()
		v = c.visible
	})
	return v, err
}

// Reload re-reads the key bindings file and replaces the registered
// hotkeys. A file that cannot be read or validated leaves the current
// hotkeys untouched.
func (c *Controller) Reload(ctx context.Context) (hotkeys.Report, error) {
	var (
		rep  hotkeys.Report
		rerr error
	)
	if err := c.do(ctx, func() { rep, rerr = c.reload() }); err != nil {
		return hotkeys.Report{}, err
	}
	return rep, rerr
}

// Bindings reads the key bindings file as it currently stands, which may
// differ from what is registered until the next reload.
func (c *Controller) Bindings(ctx context.Context) (keybind.Table, error) {
	var (
		table keybind.Table
		lerr  error
	)
	err := c.do(ctx, func() {
		if c.bindingsPath == "" {
			lerr = errNoBindingsFile
			return
		}
		table, lerr = keybind.Load(c.bindingsPath)
	})
	if err != nil {
		return nil, err
	}
	return table, lerr
}

// SetBinding applies edit to the key bindings file, saves it and reloads the
// hotkeys. An edit that leaves the table invalid is not saved.
func (c *Controller) SetBinding(ctx context.Context, edit keybind.Edit) (hotkeys.Report, error) {
	var (
		rep  hotkeys.Report
		serr error
	)
	err := c.do(ctx, func() {
		if c.bindingsPath == "" {
			serr = errNoBindingsFile
			return
		}
		table, err := keybind.Load(c.bindingsPath)
		if err != nil {
			serr = err
			return
		}
		if err := table.Apply(edit); err != nil {
			serr = err
			return
		}
		if err := keybind.Save(c.bindingsPath, table); err != nil {
			serr = err
			return
		}
		slog.Info("key binding changed", "action", edit.Action, "combo", table[edit.Action].Combo, "removed", edit.Remove)
		rep, serr = c.reload()
	})
	if err != nil {
		return hotkeys.Report{}, err
	}
	return rep, serr
}

func (c *Controller) reload() (hotkeys.Report, error) {
	if c.bindingsPath == "" {
		return hotkeys.Report{}, errNoBindingsFile
	}
	table, err := keybind.Load(c.bindingsPath)
	if err != nil {
		return hotkeys.Report{}, err
	}
	resolved, err := table.Resolve()
	if err != nil {
		return hotkeys.Report{}, fmt.Errorf("key bindings %s: %w", c.bindingsPath, err)
	}
	rep, err := c.dispatcher.Reload(resolved)
	c.bindings = table
	slog.Info("key bindings reloaded", "registered", len(rep.Registered), "failed", len(rep.Failed))
	return rep, err
}

// Status reports the controller's current state.
func (c *Controller) Status(ctx context.Context) (Status, error) {
	var s Status
	err := c.do(ctx, func() { s = c.status() })
	return s, err
}

func (c *Controller) status() Status {
	settings := c.store.Settings()
	s := Status{
		Entries:        c.store.Len(),
		MaxItems:       settings.MaxItems,
		WatchInterval:  settings.WatchInterval(),
		PasteKeystroke: settings.Keystroke(),
		Visible:        c.visible,
		Backend:        c.backend.Name(),
		HistoryPath:    c.store.Path(),
		BindingsPath:   c.bindingsPath,
		StartedAt:      c.startedAt,
		LastCapture:    c.lastCapture,
	}
	for _, a := range c.bindings.Actions() {
		b := c.bindings[a]
		s.Hotkeys = append(s.Hotkeys, Hotkey{
			Action:  a,
			Combo:   b.Combo,
			Enabled: b.Enabled,
			State:   c.dispatcher.State(a),
		})
	}
	return s
}
