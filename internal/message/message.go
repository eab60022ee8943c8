// Package message defines the clipkeep control protocol.
//
// All messages are newline-delimited JSON. The CLI sends one request and the
// daemon answers with one response on the same connection. Payloads are
// base64-encoded so that images are safe to embed in JSON strings.
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"
)

// Type identifies the kind of message.
type Type string

const (
	TypeList    Type = "LIST"
	TypeGet     Type = "GET"
	TypeRestore Type = "RESTORE"
	TypePaste   Type = "PASTE"
	TypeClear   Type = "CLEAR"
	TypeToggle  Type = "TOGGLE"
	TypeReload  Type = "RELOAD"
	TypeStatus  Type = "STATUS"

	TypeBindings   Type = "BINDINGS"
	TypeSetBinding Type = "SET_BINDING"

	TypeOK    Type = "OK"
	TypeError Type = "ERROR"
)

// Error codes let the CLI tell expected failures apart without parsing text.
const (
	CodeNotFound = "not_found"
	CodeEmpty    = "empty"
	CodeStopped  = "stopped"
	CodeInvalid  = "invalid"
)

// Item is one clipboard representation with a MIME type.
// Data is always base64-encoded.
type Item struct {
	MIME string `json:"mime"`
	Data string `json:"data"` // base64-encoded
}

// NewItem creates an Item from raw bytes with the given MIME type.
func NewItem(mime string, data []byte) Item {
	return Item{
		MIME: mime,
		Data: base64.StdEncoding.EncodeToString(data),
	}
}

// Decode returns the raw bytes of the item payload.
func (it Item) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(it.Data)
}

// Entry describes one history entry. Item is only filled in by GET; LIST
// carries a text preview instead.
type Entry struct {
	Index     int       `json:"index"`
	ID        uint64    `json:"id"`
	Kind      string    `json:"kind"`
	Size      int       `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	Preview   string    `json:"preview,omitempty"`
	Item      *Item     `json:"item,omitempty"`
}

// Hotkey is a configured binding and its registration state.
type Hotkey struct {
	Action  string `json:"action"`
	Combo   string `json:"combo"`
	Enabled bool   `json:"enabled"`
	State   string `json:"state,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Status describes the running daemon.
type Status struct {
	Version         string    `json:"version"`
	PID             int       `json:"pid"`
	Entries         int       `json:"entries"`
	MaxItems        int       `json:"max_items"`
	WatchIntervalMS int64     `json:"watch_interval_ms"`
	PasteKeystroke  bool      `json:"paste_keystroke"`
	Visible         bool      `json:"visible"`
	Backend         string    `json:"backend"`
	HistoryPath     string    `json:"history_path"`
	BindingsPath    string    `json:"bindings_path"`
	StartedAt       time.Time `json:"started_at"`
	LastCapture     time.Time `json:"last_capture,omitzero"`
	Hotkeys         []Hotkey  `json:"hotkeys,omitempty"`
}

// Message is the envelope for requests and responses.
type Message struct {
	Type Type `json:"type"`

	// LIST
	Query string `json:"query,omitempty"`
	Limit int    `json:"limit,omitempty"`

	// GET, RESTORE
	Index int `json:"index,omitempty"`

	// RESTORE
	Paste bool `json:"paste,omitempty"`

	// SET_BINDING
	Action  string `json:"action,omitempty"`
	Combo   string `json:"combo,omitempty"`
	Disable bool   `json:"disable,omitempty"`
	Remove  bool   `json:"remove,omitempty"`

	// OK
	Entries []Entry  `json:"entries,omitempty"`
	Status  *Status  `json:"status,omitempty"`
	Hotkeys []Hotkey `json:"hotkeys,omitempty"`
	Visible *bool    `json:"visible,omitempty"`

	// ERROR
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	if m.Type == "" {
		return nil, fmt.Errorf("message decode: missing type")
	}
	return &m, nil
}

// Errorf builds an ERROR response.
func Errorf(code, format string, args ...any) *Message {
	return &Message{Type: TypeError, Code: code, Error: fmt.Sprintf(format, args...)}
}

// Err converts an ERROR response into a Go error. It returns nil for any
// other type.
func (m *Message) Err() error {
	if m.Type != TypeError {
		return nil
	}
	return &RemoteError{Code: m.Code, Message: m.Error}
}

// RemoteError is an error reported by the daemon.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string { return e.Message }
