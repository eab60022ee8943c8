// Package osgrab registers global hotkeys with the OS through
// golang.design/x/hotkey. On macOS the process must run under
// mainthread.Init.
package osgrab

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"

	"go.klb.dev/clipkeep/internal/hotkeys"
	"go.klb.dev/clipkeep/internal/keybind"
)

var keyMap = map[string]hotkey.Key{
	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD,
	"E": hotkey.KeyE, "F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH,
	"I": hotkey.KeyI, "J": hotkey.KeyJ, "K": hotkey.KeyK, "L": hotkey.KeyL,
	"M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO, "P": hotkey.KeyP,
	"Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX,
	"Y": hotkey.KeyY, "Z": hotkey.KeyZ,

	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3,
	"4": hotkey.Key4, "5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7,
	"8": hotkey.Key8, "9": hotkey.Key9,

	"F1": hotkey.KeyF1, "F2": hotkey.KeyF2, "F3": hotkey.KeyF3, "F4": hotkey.KeyF4,
	"F5": hotkey.KeyF5, "F6": hotkey.KeyF6, "F7": hotkey.KeyF7, "F8": hotkey.KeyF8,
	"F9": hotkey.KeyF9, "F10": hotkey.KeyF10, "F11": hotkey.KeyF11, "F12": hotkey.KeyF12,

	"Space":  hotkey.KeySpace,
	"Enter":  hotkey.KeyReturn,
	"Escape": hotkey.KeyEscape,
	"Delete": hotkey.KeyDelete,
	"Tab":    hotkey.KeyTab,
	"Left":   hotkey.KeyLeft,
	"Right":  hotkey.KeyRight,
	"Up":     hotkey.KeyUp,
	"Down":   hotkey.KeyDown,
}

// Grabber implements hotkeys.Grabber against the OS.
type Grabber struct{}

// New returns the OS grabber.
func New() Grabber { return Grabber{} }

// Grab registers c globally. It fails when another client already owns the
// combination or the key has no mapping on this platform.
func (Grabber) Grab(c keybind.Combo) (hotkeys.Grab, error) {
	key, ok := keyMap[c.Key]
	if !ok {
		return nil, fmt.Errorf("key %q has no mapping on this platform", c.Key)
	}
	mods := make([]hotkey.Modifier, 0, 4)
	for _, m := range c.Modifiers() {
		hm, ok := modifierMap[m]
		if !ok {
			return nil, fmt.Errorf("modifier %s has no mapping on this platform", m)
		}
		mods = append(mods, hm)
	}

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return nil, err
	}
	g := &grab{
		hk:   hk,
		out:  make(chan struct{}),
		stop: make(chan struct{}),
	}
	go g.pump()
	return g, nil
}

type grab struct {
	hk   *hotkey.Hotkey
	out  chan struct{}
	stop chan struct{}
	once sync.Once
}

func (g *grab) pump() {
	in := g.hk.Keydown()
	for {
		select {
		case <-g.stop:
			return
		case _, ok := <-in:
			if !ok {
				return
			}
			select {
			case g.out <- struct{}{}:
			case <-g.stop:
				return
			}
		}
	}
}

func (g *grab) Keydown() <-chan struct{} { return g.out }

func (g *grab) Release() error {
	var err error
	g.once.Do(func() {
		close(g.stop)
		err = g.hk.Unregister()
	})
	return err
}
