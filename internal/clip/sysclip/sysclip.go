// Package sysclip is the OS clipboard backend, built on
// golang.design/x/clipboard. It needs cgo on Linux and macOS.
package sysclip

import (
	"fmt"
	"log/slog"

	"golang.design/x/clipboard"

	"go.klb.dev/clipkeep/internal/clip"
)

type backend struct{}

// New initialises the OS clipboard. It fails with clip.ErrNoDisplay when the
// display session is missing or the clipboard cannot be opened.
// clipboard.Init is called here rather than in init() so that CLI
// sub-commands that never touch the clipboard don't pay for it.
func New() (clip.Backend, error) {
	if err := clip.RequireDisplay(); err != nil {
		return nil, err
	}
	if err := clipboard.Init(); err != nil {
		return nil, fmt.Errorf("%w: %v", clip.ErrNoDisplay, err)
	}
	slog.Debug("clipboard initialised")
	return backend{}, nil
}

func (backend) Name() string { return "system clipboard" }

func (backend) Read() (c clip.Content, err error) {
	// The X11 implementation panics when the selection owner misbehaves.
	defer func() {
		if r := recover(); r != nil {
			err = &clip.ReadError{Backend: "system", Err: fmt.Errorf("%v", r)}
		}
	}()
	if text := clipboard.Read(clipboard.FmtText); len(text) > 0 {
		return clip.Content{Kind: clip.KindText, Data: text}, nil
	}
	if img := clipboard.Read(clipboard.FmtImage); len(img) > 0 {
		return clip.Content{Kind: clip.KindImage, Data: img}, nil
	}
	return clip.Content{}, clip.ErrEmpty
}

func (backend) Write(c clip.Content) error {
	switch c.Kind {
	case clip.KindText:
		clipboard.Write(clipboard.FmtText, c.Data)
	case clip.KindImage:
		clipboard.Write(clipboard.FmtImage, c.Data)
	default:
		return fmt.Errorf("unsupported clipboard kind: %s", c.Kind)
	}
	return nil
}

func (backend) Close() {}
