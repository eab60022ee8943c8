package keybind

import (
	"errors"
	"fmt"
	"strings"
)

// Modifier is a logical modifier key. Platform grabbers map these onto
// their own masks (Alt is Mod1 on X11 and Option on macOS).
type Modifier uint8

const (
	ModCtrl Modifier = 1 << iota
	ModAlt
	ModShift
	ModSuper
)

var modifierOrder = []struct {
	mod  Modifier
	name string
}{
	{ModCtrl, "Ctrl"},
	{ModAlt, "Alt"},
	{ModShift, "Shift"},
	{ModSuper, "Super"},
}

var modifierAliases = map[string]Modifier{
	"ctrl":    ModCtrl,
	"control": ModCtrl,
	"alt":     ModAlt,
	"option":  ModAlt,
	"opt":     ModAlt,
	"shift":   ModShift,
	"super":   ModSuper,
	"cmd":     ModSuper,
	"command": ModSuper,
	"win":     ModSuper,
	"meta":    ModSuper,
}

var keyAliases = map[string]string{
	"return": "Enter",
	"esc":    "Escape",
	"del":    "Delete",
}

var namedKeys = []string{
	"Space", "Enter", "Escape", "Delete", "Tab",
	"Left", "Right", "Up", "Down",
}

// Keys lists every base key name a Combo may use.
func Keys() []string {
	var out []string
	for c := 'A'; c <= 'Z'; c++ {
		out = append(out, string(c))
	}
	for c := '0'; c <= '9'; c++ {
		out = append(out, string(c))
	}
	for i := 1; i <= 12; i++ {
		out = append(out, fmt.Sprintf("F%d", i))
	}
	return append(out, namedKeys...)
}

var knownKeys = func() map[string]string {
	m := make(map[string]string)
	for _, k := range Keys() {
		m[strings.ToLower(k)] = k
	}
	for alias, k := range keyAliases {
		m[alias] = k
	}
	return m
}()

var (
	errEmpty    = errors.New("empty combination")
	errNoKey    = errors.New("no non-modifier key")
	errManyKeys = errors.New("more than one non-modifier key")
)

// Combo is a set of modifiers plus exactly one base key.
type Combo struct {
	Mods Modifier
	Key  string
}

// ParseCombo parses "Ctrl+Alt+V" style text. Matching is case-insensitive
// and common aliases (Control, Option, Cmd, Win, Esc, Return) are accepted.
func ParseCombo(s string) (Combo, error) {
	if strings.TrimSpace(s) == "" {
		return Combo{}, errEmpty
	}
	var c Combo
	for _, part := range strings.Split(s, "+") {
		tok := strings.ToLower(strings.TrimSpace(part))
		if tok == "" {
			return Combo{}, fmt.Errorf("empty key in %q", s)
		}
		if m, ok := modifierAliases[tok]; ok {
			c.Mods |= m
			continue
		}
		k, ok := knownKeys[tok]
		if !ok {
			return Combo{}, fmt.Errorf("unknown key %q", strings.TrimSpace(part))
		}
		if c.Key != "" {
			return Combo{}, errManyKeys
		}
		c.Key = k
	}
	if c.Key == "" {
		return Combo{}, errNoKey
	}
	return c, nil
}

// Has reports whether m is part of the combo.
func (c Combo) Has(m Modifier) bool { return c.Mods&m != 0 }

// Modifiers lists the combo's modifiers in canonical order.
func (c Combo) Modifiers() []Modifier {
	var out []Modifier
	for _, m := range modifierOrder {
		if c.Has(m.mod) {
			out = append(out, m.mod)
		}
	}
	return out
}

// String renders the canonical form, modifiers first in Ctrl, Alt, Shift,
// Super order.
func (c Combo) String() string {
	parts := make([]string, 0, 5)
	for _, m := range modifierOrder {
		if c.Has(m.mod) {
			parts = append(parts, m.name)
		}
	}
	return strings.Join(append(parts, c.Key), "+")
}

func (m Modifier) String() string {
	for _, o := range modifierOrder {
		if o.mod == m {
			return o.name
		}
	}
	return fmt.Sprintf("Modifier(%d)", uint8(m))
}
