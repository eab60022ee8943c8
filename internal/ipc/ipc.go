// Package ipc locates and opens the local control socket that CLI
// sub-commands use to talk to a running clipkeep daemon.
//
//   - Linux / macOS: $XDG_RUNTIME_DIR/clipkeep.sock, else $TMPDIR/clipkeep-<uid>.sock
//   - Windows:       \\.\pipe\clipkeep
//
// $CLIPKEEP_SOCKET overrides the path on every platform.
package ipc

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

const dialTimeout = 2 * time.Second

// ErrNotRunning is returned by Dial when no daemon is listening.
var ErrNotRunning = errors.New("clipkeep daemon is not running")

// SocketPath returns the platform-appropriate path for the control socket.
func SocketPath() string {
	if s := os.Getenv("CLIPKEEP_SOCKET"); s != "" {
		return s
	}
	return socketPath()
}

// IsRunning reports whether a daemon appears to be listening on the control
// socket. It does a cheap dial-and-close; no data is exchanged.
func IsRunning() bool {
	c, err := dialIPC(SocketPath(), dialTimeout)
	if err != nil {
		return false
	}
	_ = c.Close()
	return true
}

// Listen creates a listener on the control socket. A socket file left behind
// by a crashed daemon is removed first; a live one is an error.
func Listen() (net.Listener, error) {
	path := SocketPath()
	if IsRunning() {
		return nil, fmt.Errorf("%s: another daemon is listening", path)
	}
	removeStale(path)
	return listenIPC(path)
}

// Dial connects to the running daemon.
func Dial() (net.Conn, error) {
	c, err := dialIPC(SocketPath(), dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w (%s): %v", ErrNotRunning, SocketPath(), err)
	}
	return c, nil
}
