//go:build windows

package ipc

import (
	"net"
	"time"

	"github.com/Microsoft/go-winio"
)

const pipeName = `\\.\pipe\clipkeep`

func socketPath() string { return pipeName }

func removeStale(string) {}

func listenIPC(path string) (net.Listener, error) {
	return winio.ListenPipe(path, nil)
}

func dialIPC(path string, timeout time.Duration) (net.Conn, error) {
	return winio.DialPipe(path, &timeout)
}
