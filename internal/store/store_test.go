package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlobs(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	_, err := m.Get(ctx, "proj", "nodes")
	assert.ErrorIs(t, err, ErrNotFound)

	data := []byte(`[{"id":"a"}]`)
	require.NoError(t, m.Put(ctx, "proj", "nodes", data))
	data[0] = 'X'

	got, err := m.Get(ctx, "proj", "nodes")
	require.NoError(t, err)
	assert.Equal(t, `[{"id":"a"}]`, string(got))

	_, err = m.Get(ctx, "other", "nodes")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMediaID(t *testing.T) {
	a := MediaID([]byte("hello"))
	assert.True(t, strings.HasPrefix(a, MediaPrefix))
	assert.Len(t, a, len(MediaPrefix)+64)
	assert.Equal(t, a, MediaID([]byte("hello")))
	assert.NotEqual(t, a, MediaID([]byte("hello!")))

	assert.True(t, ValidMediaID(a))
	assert.False(t, ValidMediaID("media_zz"))
	assert.False(t, ValidMediaID("../etc/passwd"))
	assert.False(t, ValidMediaID(strings.TrimPrefix(a, MediaPrefix)))
}

func TestFileMedia(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	f, err := NewFileMedia(filepath.Join(dir, "media"))
	require.NoError(t, err)

	id, err := f.Put(ctx, []byte("png bytes"))
	require.NoError(t, err)
	again, err := f.Put(ctx, []byte("png bytes"))
	require.NoError(t, err)
	assert.Equal(t, id, again)

	entries, err := os.ReadDir(filepath.Join(dir, "media"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "identical payloads are stored once")

	got, err := f.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "png bytes", string(got))

	_, err = f.Get(ctx, MediaID([]byte("never stored")))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.Get(ctx, "../../secrets")
	assert.ErrorIs(t, err, ErrInvalidMediaID)
}

func TestMemoryMedia(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryMedia()
	id, err := m.Put(ctx, []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, MediaID([]byte("x")), id)

	got, err := m.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("x"), got)

	_, err = m.Get(ctx, "media_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
