//go:build windows

package osgrab

import (
	"golang.design/x/hotkey"

	"go.klb.dev/clipkeep/internal/keybind"
)

var modifierMap = map[keybind.Modifier]hotkey.Modifier{
	keybind.ModCtrl:  hotkey.ModCtrl,
	keybind.ModShift: hotkey.ModShift,
	keybind.ModAlt:   hotkey.ModAlt,
	keybind.ModSuper: hotkey.ModWin,
}
