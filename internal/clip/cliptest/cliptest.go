// Package cliptest provides an in-memory clipboard for tests.
package cliptest

import (
	"sync"

	"go.klb.dev/clipkeep/internal/clip"
)

// Memory is a process-local clip.Backend standing in for the OS clipboard.
type Memory struct {
	mu      sync.Mutex
	current clip.Content
	writes  []clip.Content
	readErr error
}

// NewMemory returns an empty in-memory clipboard.
func NewMemory() *Memory { return &Memory{} }

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Read() (clip.Content, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return clip.Content{}, &clip.ReadError{Backend: "memory", Err: m.readErr}
	}
	if m.current.IsZero() {
		return clip.Content{}, clip.ErrEmpty
	}
	return clip.Content{Kind: m.current.Kind, Data: append([]byte(nil), m.current.Data...)}, nil
}

func (m *Memory) Write(c clip.Content) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = clip.Content{Kind: c.Kind, Data: append([]byte(nil), c.Data...)}
	m.writes = append(m.writes, m.current)
	return nil
}

// Set replaces the content as another application would, without recording
// a write.
func (m *Memory) Set(kind clip.Kind, data []byte) {
	m.mu.Lock()
	m.current = clip.Content{Kind: kind, Data: append([]byte(nil), data...)}
	m.mu.Unlock()
}

// FailReads makes every Read fail with err until called again with nil.
func (m *Memory) FailReads(err error) {
	m.mu.Lock()
	m.readErr = err
	m.mu.Unlock()
}

// Writes returns every content written through Write, oldest first.
func (m *Memory) Writes() []clip.Content {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]clip.Content(nil), m.writes...)
}

func (m *Memory) Close() {}
