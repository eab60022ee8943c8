package cliptest

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.klb.dev/clipkeep/internal/clip"
)

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()

	_, err := m.Read()
	assert.ErrorIs(t, err, clip.ErrEmpty)

	require.NoError(t, m.Write(clip.Content{Kind: clip.KindText, Data: []byte("hi")}))
	got, err := m.Read()
	require.NoError(t, err)
	assert.Equal(t, "hi", string(got.Data))
	assert.Len(t, m.Writes(), 1)

	m.Set(clip.KindImage, []byte{0x89, 'P', 'N', 'G'})
	got, err = m.Read()
	require.NoError(t, err)
	assert.Equal(t, clip.KindImage, got.Kind)
	assert.Len(t, m.Writes(), 1, "Set is not a write")
}

func TestMemoryReadFailure(t *testing.T) {
	m := NewMemory()
	m.Set(clip.KindText, []byte("x"))
	m.FailReads(errors.New("locked"))

	_, err := m.Read()
	var re *clip.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "memory", re.Backend)

	m.FailReads(nil)
	_, err = m.Read()
	assert.NoError(t, err)
}
