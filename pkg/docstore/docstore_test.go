package docstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := newTestStore(t)

	stamp, err := s.Put("doc1", []byte("<root/>"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), stamp)

	body, got, err := s.Get("doc1")
	require.NoError(t, err)
	assert.Equal(t, []byte("<root/>"), body)
	assert.Equal(t, stamp, got)
}

func TestStampIncrementsPerWrite(t *testing.T) {
	s := newTestStore(t)

	first, err := s.Put("doc1", []byte("<a/>"))
	require.NoError(t, err)
	second, err := s.Put("doc1", []byte("<b/>"))
	require.NoError(t, err)
	assert.Greater(t, second, first)

	// Other documents stamp independently.
	other, err := s.Put("doc2", []byte("<c/>"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	stamp, err := s.Stamp("doc1")
	require.NoError(t, err)
	assert.Equal(t, second, stamp)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)

	_, _, err := s.Get("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Put("doc1", []byte("<a/>"))
	require.NoError(t, err)
	require.NoError(t, s.Delete("doc1"))

	_, _, err = s.Get("doc1")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleting again is a no-op.
	assert.NoError(t, s.Delete("doc1"))
}

func TestList(t *testing.T) {
	s := newTestStore(t)

	ids, err := s.List()
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.Put("b", []byte("<b/>"))
	require.NoError(t, err)
	_, err = s.Put("a", []byte("<a/>"))
	require.NoError(t, err)

	ids, err = s.List()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}
