// Package clip defines the clipboard backend contract used by the watcher and
// the controller, plus an in-memory backend. The system implementation lives
// in clip/sysclip so that packages depending only on the contract build
// without cgo.
package clip

import (
	"bytes"
	"errors"
	"fmt"
)

// Kind is the content kind of a clipboard sample.
type Kind string

const (
	KindText  Kind = "text"
	KindImage Kind = "image"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	return k == KindText || k == KindImage
}

// MIME returns the MIME type the OS clipboard uses for k.
func (k Kind) MIME() string {
	if k == KindImage {
		return "image/png"
	}
	return "text/plain"
}

// ErrNoDisplay is returned when no graphical session is available.
var ErrNoDisplay = errors.New("no graphical display session")

// ErrEmpty is returned by Read when the clipboard holds nothing usable.
var ErrEmpty = errors.New("clipboard is empty")

// Content is one raw clipboard sample.
type Content struct {
	Kind Kind
	Data []byte
}

// Equal reports whether c and o have the same kind and payload.
func (c Content) Equal(o Content) bool {
	return c.Kind == o.Kind && bytes.Equal(c.Data, o.Data)
}

// IsZero reports whether c carries no payload.
func (c Content) IsZero() bool { return len(c.Data) == 0 }

// Backend is the interface that clipboard implementations satisfy.
type Backend interface {
	// Name returns a human-readable name for the backend.
	Name() string

	// Read returns the current clipboard content. Text is preferred over an
	// image when both are present. ErrEmpty means nothing usable is there.
	Read() (Content, error)

	// Write makes c the active clipboard selection.
	Write(c Content) error

	// Close releases any resources held by the backend.
	Close()
}

// ReadError wraps a failed clipboard read.
type ReadError struct {
	Backend string
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("clipboard read (%s): %v", e.Backend, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }
