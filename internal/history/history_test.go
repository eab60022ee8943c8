package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipkeep/internal/clip"
	"go.klb.dev/clipkeep/internal/config"
)

func text(s string) clip.Content { return clip.Content{Kind: clip.KindText, Data: []byte(s)} }

func texts(s *Store) []string {
	var out []string
	for _, e := range s.List() {
		out = append(out, e.Text())
	}
	return out
}

func newStore(t *testing.T, limit int) *Store {
	t.Helper()
	return New(filepath.Join(t.TempDir(), "history.json"), config.Settings{MaxItems: limit})
}

func TestHelloWorldScenario(t *testing.T) {
	s := newStore(t, 50)

	_, added, err := s.Append(text("hello"))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"hello"}, texts(s))

	_, added, err = s.Append(text("hello"))
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, []string{"hello"}, texts(s))

	_, _, err = s.Append(text("world"))
	require.NoError(t, err)
	assert.Equal(t, []string{"world", "hello"}, texts(s))

	require.NoError(t, s.Clear())
	assert.Empty(t, texts(s))
	assert.Zero(t, s.Len())
}

func TestDuplicateSuppressionIsAdjacentOnly(t *testing.T) {
	s := newStore(t, 50)
	for _, v := range []string{"a", "b", "a"} {
		_, _, err := s.Append(text(v))
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a", "b", "a"}, texts(s))
}

func TestSamePayloadDifferentKindIsNotDuplicate(t *testing.T) {
	s := newStore(t, 50)
	_, _, err := s.Append(text("x"))
	require.NoError(t, err)
	_, added, err := s.Append(clip.Content{Kind: clip.KindImage, Data: []byte("x")})
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 2, s.Len())
}

func TestLengthNeverExceedsMax(t *testing.T) {
	for _, limit := range []int{1, 2, 5, 13} {
		s := newStore(t, limit)
		for i := range 40 {
			_, _, err := s.Append(text(strings.Repeat("x", i+1)))
			require.NoError(t, err)
			assert.LessOrEqual(t, s.Len(), limit)
		}
		head, ok := s.Head()
		require.True(t, ok)
		assert.Equal(t, strings.Repeat("x", 40), head.Text(), "oldest entries are evicted")
	}
}

func TestAppendAfterClearStartsFresh(t *testing.T) {
	s := newStore(t, 50)
	first, _, err := s.Append(text("before"))
	require.NoError(t, err)
	require.NoError(t, s.Clear())

	e, added, err := s.Append(text("before"))
	require.NoError(t, err)
	assert.True(t, added, "clear drops the head, so the same content is new again")
	assert.Greater(t, e.ID, first.ID)
	assert.Equal(t, []string{"before"}, texts(s))
}

func TestGet(t *testing.T) {
	s := newStore(t, 50)
	_, _, _ = s.Append(text("one"))
	_, _, _ = s.Append(text("two"))

	e, err := s.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "one", e.Text())

	_, err = s.Get(2)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(-1)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListIsSnapshot(t *testing.T) {
	s := newStore(t, 50)
	_, _, _ = s.Append(text("a"))
	_, _, _ = s.Append(text("b"))

	seq := s.List()
	_, _, _ = s.Append(text("c"))
	require.NoError(t, s.Clear())

	var got []string
	for _, e := range seq {
		got = append(got, e.Text())
	}
	assert.Equal(t, []string{"b", "a"}, got)
}

func TestPayloadIsCopied(t *testing.T) {
	s := newStore(t, 50)
	src := []byte("immutable")
	e, _, err := s.Append(clip.Content{Kind: clip.KindText, Data: src})
	require.NoError(t, err)

	src[0] = 'X'
	p := e.Payload()
	p[1] = 'Y'

	head, _ := s.Head()
	assert.Equal(t, "immutable", head.Text())
}

func TestAppendRejectsEmpty(t *testing.T) {
	s := newStore(t, 50)
	_, _, err := s.Append(clip.Content{Kind: clip.KindText})
	assert.Error(t, err)
	_, _, err = s.Append(clip.Content{Kind: "audio", Data: []byte("x")})
	assert.Error(t, err)
	assert.Zero(t, s.Len())
}

func TestPersistAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := New(path, config.Settings{MaxItems: 5})
	png := []byte{0x89, 'P', 'N', 'G', 0, 1, 2}

	_, _, err := s.Append(text("hello"))
	require.NoError(t, err)
	_, _, err = s.Append(clip.Content{Kind: clip.KindImage, Data: png})
	require.NoError(t, err)
	_, _, err = s.Append(text("world"))
	require.NoError(t, err)

	r, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 3, r.Len())
	assert.Equal(t, 5, r.Settings().MaxItems)

	got := r.Entries()
	assert.Equal(t, "world", got[0].Text())
	assert.Equal(t, clip.KindImage, got[1].Kind)
	assert.Equal(t, png, got[1].Payload())
	assert.Equal(t, "hello", got[2].Text())

	e, _, err := r.Append(text("next"))
	require.NoError(t, err)
	assert.Greater(t, e.ID, got[0].ID, "ids stay monotonic across reopen")
}

func TestClearPersistsEmptySnapshot(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	s := New(path, config.Default())
	_, _, _ = s.Append(text("secret"))
	require.NoError(t, s.Clear())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")

	r, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, r.Len())
}

func TestOpenMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	assert.Zero(t, s.Len())
	assert.Equal(t, config.DefaultMaxItems, s.Settings().MaxItems)
}

func TestOpenSkipsCorruptEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339)
	doc := `{
  "settings": {"max_items": 10},
  "next_id": 9,
  "history": [
    {"id": 8, "kind": "text", "text": "newest", "created_at": "` + ts + `"},
    {"id": 7, "kind": "bogus", "text": "nope", "created_at": "` + ts + `"},
    {"id": 6, "kind": "text", "text": "middle", "created_at": "` + ts + `"},
    "not an object",
    {"id": 5, "kind": "image", "data": "%%%not-base64", "created_at": "` + ts + `"},
    {"id": 4, "kind": "text", "text": "", "created_at": "` + ts + `"},
    {"id": 3, "kind": "text", "text": "oldest", "created_at": "` + ts + `"}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"newest", "middle", "oldest"}, texts(s))

	e, _, err := s.Append(text("fresh"))
	require.NoError(t, err)
	assert.Equal(t, uint64(9), e.ID)
}

func TestOpenAppliesCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	var hist []map[string]any
	for i := 10; i > 0; i-- {
		hist = append(hist, map[string]any{"id": i, "kind": "text", "text": strings.Repeat("y", i)})
	}
	raw, err := json.Marshal(map[string]any{"settings": map[string]any{"max_items": 3}, "history": hist})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	head, _ := s.Head()
	assert.Equal(t, uint64(10), head.ID)
}

func TestOpenMovesUnreadableFileAside(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Zero(t, s.Len())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestPersistenceFailureKeepsMemoryState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone", "history.json")
	s := New(path, config.Default())

	e, added, err := s.Append(text("kept"))
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, path, pe.Path)
	assert.True(t, added)
	assert.Equal(t, "kept", e.Text())
	assert.Equal(t, 1, s.Len())
}

func TestSetSettingsTrims(t *testing.T) {
	s := newStore(t, 10)
	for _, v := range []string{"a", "b", "c", "d"} {
		_, _, _ = s.Append(text(v))
	}
	require.NoError(t, s.SetSettings(config.Settings{MaxItems: 2}))
	assert.Equal(t, []string{"d", "c"}, texts(s))

	r, err := Open(s.Path())
	require.NoError(t, err)
	assert.Equal(t, 2, r.Settings().MaxItems)
}

func TestEntryJSONKeepsTextReadable(t *testing.T) {
	e := newEntry(1, text("plain words"), time.Unix(0, 0).UTC())
	raw, err := json.Marshal(e)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"text":"plain words"`)
	assert.NotContains(t, string(raw), `"data"`)
}

func TestOpenDropsAdjacentDuplicates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	doc := `{
  "next_id": 4,
  "history": [
    {"id": 3, "kind": "text", "text": "same"},
    {"id": 2, "kind": "text", "text": "same"},
    {"id": 1, "kind": "text", "text": "other"}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"same", "other"}, texts(s))
	head, _ := s.Head()
	assert.Equal(t, uint64(3), head.ID)

	_, added, err := s.Append(text("same"))
	require.NoError(t, err)
	assert.False(t, added)

	e, _, err := s.Append(text("new"))
	require.NoError(t, err)
	assert.Equal(t, uint64(4), e.ID)
}

func TestOpenToleratesBadSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	doc := `{
  "settings": {"max_items": "20"},
  "next_id": "seven",
  "history": [
    {"id": 6, "kind": "text", "text": "kept"},
    {"id": 5, "kind": "text", "text": "also kept"}
  ]
}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	s, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"kept", "also kept"}, texts(s))
	assert.Equal(t, config.Default(), s.Settings())

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Empty(t, matches, "the file is not moved aside")

	e, _, err := s.Append(text("fresh"))
	require.NoError(t, err)
	assert.Equal(t, uint64(7), e.ID)
}
