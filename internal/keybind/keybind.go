// Package keybind maps logical actions to global key combinations and keeps
// that table on disk.
//
// The file is a JSON object of action name to combination:
//
//	{
//	  "clear_history": "Ctrl+Alt+C",
//	  "paste_last": "Ctrl+Shift+V",
//	  "paste_2": {"combo": "Ctrl+Alt+2", "enabled": false},
//	  "toggle_window": "Ctrl+Alt+V"
//	}
//
// Saving validates first and replaces the file atomically, so a rejected or
// interrupted save leaves the previous table in place. A running daemon only
// picks up changes when asked to reload.
package keybind

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"go.klb.dev/clipkeep/internal/fsutil"
)

// Action names something a hotkey can trigger.
type Action string

const (
	ActionToggleWindow Action = "toggle_window"
	ActionPasteLast    Action = "paste_last"
	ActionClearHistory Action = "clear_history"

	pastePrefix = "paste_"
)

var actionName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Builtin reports whether a is one of the three built-in actions.
func (a Action) Builtin() bool {
	switch a {
	case ActionToggleWindow, ActionPasteLast, ActionClearHistory:
		return true
	}
	return false
}

// PasteIndex returns n for actions named paste_<n>.
func (a Action) PasteIndex() (int, bool) {
	rest, ok := strings.CutPrefix(string(a), pastePrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Binding is the combination assigned to one action.
type Binding struct {
	Combo   string
	Enabled bool
}

type bindingObject struct {
	Combo   string `json:"combo"`
	Enabled *bool  `json:"enabled,omitempty"`
}

// MarshalJSON writes enabled bindings as a bare string.
func (b Binding) MarshalJSON() ([]byte, error) {
	if b.Enabled {
		return json.Marshal(b.Combo)
	}
	off := false
	return json.Marshal(bindingObject{Combo: b.Combo, Enabled: &off})
}

// UnmarshalJSON accepts either "Ctrl+Alt+V" or {"combo": ..., "enabled": ...}.
func (b *Binding) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		*b = Binding{Combo: s, Enabled: true}
		return nil
	}
	var o bindingObject
	if err := json.Unmarshal(raw, &o); err != nil {
		return fmt.Errorf("binding must be a string or {\"combo\", \"enabled\"} object: %w", err)
	}
	*b = Binding{Combo: o.Combo, Enabled: o.Enabled == nil || *o.Enabled}
	return nil
}

// Table maps actions to bindings.
type Table map[Action]Binding

// Defaults returns the built-in bindings.
func Defaults() Table {
	return Table{
		ActionToggleWindow: {Combo: "Ctrl+Alt+V", Enabled: true},
		ActionPasteLast:    {Combo: "Ctrl+Shift+V", Enabled: true},
		ActionClearHistory: {Combo: "Ctrl+Alt+C", Enabled: true},
	}
}

// Clone returns a copy of t.
func (t Table) Clone() Table { return maps.Clone(t) }

// Actions returns the table's actions sorted by name.
func (t Table) Actions() []Action {
	return slices.Sorted(maps.Keys(t))
}

// Resolved is an enabled binding with its parsed combination.
type Resolved struct {
	Action Action
	Combo  Combo
}

// Resolve validates t and returns its enabled bindings sorted by action.
func (t Table) Resolve() ([]Resolved, error) {
	if err := Validate(t); err != nil {
		return nil, err
	}
	var out []Resolved
	for _, a := range t.Actions() {
		b := t[a]
		if !b.Enabled {
			continue
		}
		c, _ := ParseCombo(b.Combo)
		out = append(out, Resolved{Action: a, Combo: c})
	}
	return out, nil
}

// ConflictError reports enabled actions that share one combination.
type ConflictError struct {
	Combo   string
	Actions []Action
}

func (e *ConflictError) Error() string {
	names := make([]string, len(e.Actions))
	for i, a := range e.Actions {
		names[i] = string(a)
	}
	return fmt.Sprintf("%s is bound to more than one action: %s", e.Combo, strings.Join(names, ", "))
}

// InvalidComboError reports a combination that cannot be grabbed.
type InvalidComboError struct {
	Action Action
	Combo  string
	Err    error
}

func (e *InvalidComboError) Error() string {
	return fmt.Sprintf("%s: invalid combination %q: %v", e.Action, e.Combo, e.Err)
}

func (e *InvalidComboError) Unwrap() error { return e.Err }

// InvalidActionError reports an action name outside [a-z][a-z0-9_]*.
type InvalidActionError struct {
	Action Action
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("invalid action name %q", e.Action)
}

// Validate checks every action name and enabled combination and returns all
// problems joined. Disabled bindings are not parsed and never conflict.
func Validate(t Table) error {
	var errs []error
	byCombo := make(map[string][]Action)
	var order []string

	for _, a := range t.Actions() {
		if !actionName.MatchString(string(a)) {
			errs = append(errs, &InvalidActionError{Action: a})
			continue
		}
		b := t[a]
		if !b.Enabled {
			continue
		}
		c, err := ParseCombo(b.Combo)
		if err != nil {
			errs = append(errs, &InvalidComboError{Action: a, Combo: b.Combo, Err: err})
			continue
		}
		key := c.String()
		if _, seen := byCombo[key]; !seen {
			order = append(order, key)
		}
		byCombo[key] = append(byCombo[key], a)
	}

	for _, key := range order {
		if actions := byCombo[key]; len(actions) > 1 {
			errs = append(errs, &ConflictError{Combo: key, Actions: actions})
		}
	}
	return errors.Join(errs...)
}

// Load reads the table at path. A missing file yields Defaults. Built-in
// actions absent from the file are filled in from Defaults; one whose default
// combination is already taken by an enabled binding is filled in disabled.
func Load(path string) (Table, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no key bindings file, using defaults", "path", path)
		return Defaults(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key bindings: %w", err)
	}

	var t Table
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("parse key bindings %s: %w", path, err)
	}
	if t == nil {
		t = Table{}
	}
	used := t.combos()
	for a, b := range Defaults() {
		if _, ok := t[a]; ok {
			continue
		}
		c, _ := ParseCombo(b.Combo)
		if owner, taken := used[c.String()]; taken {
			slog.Info("default combination already bound, adding disabled", "action", a, "combo", b.Combo, "bound_to", owner)
			b.Enabled = false
		}
		t[a] = b
	}
	return t, nil
}

// combos maps the canonical form of every enabled, parseable combination to
// the action holding it.
func (t Table) combos() map[string]Action {
	out := make(map[string]Action, len(t))
	for a, b := range t {
		if !b.Enabled {
			continue
		}
		if c, err := ParseCombo(b.Combo); err == nil {
			out[c.String()] = a
		}
	}
	return out
}

// Edit is a single change to a table, as made by "bindings set".
type Edit struct {
	Action  Action
	Combo   string
	Disable bool
	Remove  bool
}

// Apply makes e in t. A new combination is stored in canonical form. Removing
// a built-in action is refused, since Load would only restore it.
func (t Table) Apply(e Edit) error {
	b, exists := t[e.Action]

	switch {
	case e.Remove:
		if e.Action.Builtin() {
			return fmt.Errorf("%s is built in; use --disable instead", e.Action)
		}
		if !exists {
			return fmt.Errorf("no binding for %s", e.Action)
		}
		delete(t, e.Action)
		return nil
	case e.Combo != "":
		c, err := ParseCombo(e.Combo)
		if err != nil {
			return &InvalidComboError{Action: e.Action, Combo: e.Combo, Err: err}
		}
		b.Combo = c.String()
	case !exists:
		return errors.New("a combination is required for a new action")
	}
	b.Enabled = !e.Disable
	t[e.Action] = b
	return nil
}

// Save validates t and atomically replaces the file at path. On a validation
// error nothing is written.
func Save(path string, t Table) error {
	if err := Validate(t); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode key bindings: %w", err)
	}
	if err := fsutil.WriteFile(path, append(raw, '\n'), 0o600); err != nil {
		return fmt.Errorf("save key bindings: %w", err)
	}
	return nil
}
