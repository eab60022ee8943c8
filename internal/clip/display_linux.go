//go:build linux

package clip

import "os"

// RequireDisplay fails with ErrNoDisplay unless an X11 or Wayland session is
// reachable through the environment.
func RequireDisplay() error {
	if os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return ErrNoDisplay
	}
	return nil
}
