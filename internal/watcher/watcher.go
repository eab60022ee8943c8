// Package watcher samples the OS clipboard and reports changes.
package watcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff"

	"go.klb.dev/clipkeep/internal/clip"
)

const (
	defaultReadRetries = 2
	defaultRetryDelay  = 50 * time.Millisecond
)

// Watcher polls a clip.Backend and emits content that differs from the last
// observed sample. It does not look at history: adjacent duplicates in the
// history are the store's concern, the watcher only suppresses re-emission
// of an unchanged clipboard.
type Watcher struct {
	backend    clip.Backend
	retries    uint64
	retryDelay time.Duration

	mu   sync.Mutex
	last clip.Content
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithRetry sets how many times a failed read is retried and the pause
// between attempts.
func WithRetry(retries int, delay time.Duration) Option {
	return func(w *Watcher) {
		if retries >= 0 {
			w.retries = uint64(retries)
		}
		w.retryDelay = delay
	}
}

// New returns a Watcher over b.
func New(b clip.Backend, opts ...Option) *Watcher {
	w := &Watcher{
		backend:    b,
		retries:    defaultReadRetries,
		retryDelay: defaultRetryDelay,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Poll samples the clipboard once. It returns the content and true only when
// the sample differs from the previous observation. Read failures are retried
// a bounded number of times, then logged and reported as no change.
func (w *Watcher) Poll() (clip.Content, bool) {
	var got clip.Content
	op := func() error {
		c, err := w.backend.Read()
		if errors.Is(err, clip.ErrEmpty) {
			got = clip.Content{}
			return nil
		}
		if err != nil {
			return err
		}
		got = c
		return nil
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(w.retryDelay), w.retries)
	if err := backoff.Retry(op, policy); err != nil {
		slog.Warn("clipboard read failed, skipping sample", "backend", w.backend.Name(), "err", err)
		return clip.Content{}, false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if got.Equal(w.last) {
		return clip.Content{}, false
	}
	w.last = got
	if got.IsZero() {
		return clip.Content{}, false
	}
	return got, true
}

// Run polls every interval until ctx is done, calling emit for each change.
// emit runs on the polling goroutine and must not block for long.
func (w *Watcher) Run(ctx context.Context, interval time.Duration, emit func(clip.Content)) {
	t := time.NewTicker(interval)
	defer t.Stop()

	slog.Info("clipboard watcher started", "backend", w.backend.Name(), "interval", interval)
	defer slog.Info("clipboard watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if c, ok := w.Poll(); ok {
				slog.Debug("clipboard changed", "kind", c.Kind, "size_bytes", len(c.Data))
				emit(c)
			}
		}
	}
}
