//go:build linux

package osgrab

import (
	"golang.design/x/hotkey"

	"go.klb.dev/clipkeep/internal/keybind"
)

// Alt is Mod1 and Super is Mod4 on X11.
var modifierMap = map[keybind.Modifier]hotkey.Modifier{
	keybind.ModCtrl:  hotkey.ModCtrl,
	keybind.ModShift: hotkey.ModShift,
	keybind.ModAlt:   hotkey.Mod1,
	keybind.ModSuper: hotkey.Mod4,
}
