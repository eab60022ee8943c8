package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"go.klb.dev/clipkeep/internal/clip"
)

// Entry is one captured clipboard snapshot. The payload is private so an
// entry cannot be edited once created; accessors hand out copies.
type Entry struct {
	ID        uint64
	Kind      clip.Kind
	CreatedAt time.Time
	data      []byte
}

func newEntry(id uint64, c clip.Content, at time.Time) Entry {
	return Entry{
		ID:        id,
		Kind:      c.Kind,
		CreatedAt: at,
		data:      append([]byte(nil), c.Data...),
	}
}

// Payload returns a copy of the raw bytes.
func (e Entry) Payload() []byte { return append([]byte(nil), e.data...) }

// Size is the payload length in bytes.
func (e Entry) Size() int { return len(e.data) }

// Text returns the payload as a string for text entries and "" otherwise.
func (e Entry) Text() string {
	if e.Kind != clip.KindText {
		return ""
	}
	return string(e.data)
}

// Content converts the entry back into a clipboard sample.
func (e Entry) Content() clip.Content {
	return clip.Content{Kind: e.Kind, Data: e.Payload()}
}

// Same reports whether e carries the same kind and payload as c.
func (e Entry) Same(c clip.Content) bool {
	return e.Kind == c.Kind && bytes.Equal(e.data, c.Data)
}

// record is the on-disk form. Text payloads are kept as plain strings so the
// file stays human-editable; images go through base64 via []byte.
type record struct {
	ID        uint64    `json:"id"`
	Kind      clip.Kind `json:"kind"`
	Text      *string   `json:"text,omitempty"`
	Data      []byte    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (e Entry) MarshalJSON() ([]byte, error) {
	r := record{ID: e.ID, Kind: e.Kind, CreatedAt: e.CreatedAt}
	if e.Kind == clip.KindText && utf8.Valid(e.data) {
		s := string(e.data)
		r.Text = &s
	} else {
		r.Data = e.data
	}
	return json.Marshal(r)
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	var r record
	if err := json.Unmarshal(b, &r); err != nil {
		return err
	}
	if r.ID == 0 {
		return errors.New("missing id")
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("unknown kind %q", r.Kind)
	}
	data := r.Data
	if r.Text != nil {
		data = []byte(*r.Text)
	}
	if len(data) == 0 {
		return errors.New("empty payload")
	}
	*e = Entry{ID: r.ID, Kind: r.Kind, CreatedAt: r.CreatedAt, data: data}
	return nil
}
