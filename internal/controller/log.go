package controller

import (
	"context"
	"log/slog"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/history"
)

const previewLen = 120

// logEntry logs an entry at INFO (id, kind, size) and, at DEBUG, a preview
// of text entries.
func logEntry(event string, e history.Entry) {
	slog.Info(event, "id", e.ID, "kind", e.Kind, "size_bytes", e.Size())

	if e.Kind != clip.KindText || !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	preview := []rune(e.Text())
	if len(preview) > previewLen {
		preview = append(preview[:previewLen], '…')
	}
	slog.Debug("clipboard text", "id", e.ID, "preview", string(preview))
}
