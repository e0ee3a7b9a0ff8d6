package localstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mynotes/docsync/pkg/localstore"
)

func testStore(t *testing.T, s localstore.Store) {
	ctx := context.Background()

	_, ok, err := s.Get(ctx, localstore.KeyToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, localstore.KeyToken, "tok"))
	require.NoError(t, s.Set(ctx, localstore.KeySidebarWidth, "320"))

	v, ok, err := s.Get(ctx, localstore.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "tok", v)

	require.NoError(t, s.Set(ctx, localstore.KeyToken, ""))
	v, ok, err = s.Get(ctx, localstore.KeyToken)
	require.NoError(t, err)
	require.True(t, ok, "empty values are still present")
	require.Equal(t, "", v)

	require.NoError(t, s.Delete(ctx, localstore.KeyToken, localstore.KeySidebarWidth, "never-set"))
	for _, k := range []string{localstore.KeyToken, localstore.KeySidebarWidth} {
		_, ok, err := s.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
}

func TestMemory(t *testing.T) {
	testStore(t, localstore.NewMemory())

	m := localstore.NewMemory()
	require.NoError(t, m.Set(context.Background(), "a", "1"))
	snap := m.Snapshot()
	snap["a"] = "2"
	v, _, _ := m.Get(context.Background(), "a")
	require.Equal(t, "1", v)
}

func TestFile(t *testing.T) {
	dir := t.TempDir()
	f, err := localstore.OpenFile(dir)
	require.NoError(t, err)
	testStore(t, f)

	t.Run("values survive reopening", func(t *testing.T) {
		ctx := context.Background()
		require.NoError(t, f.Set(ctx, localstore.KeyExpandedSpaces, `["s1"]`))

		reopened, err := localstore.OpenFile(dir)
		require.NoError(t, err)
		v, ok, err := reopened.Get(ctx, localstore.KeyExpandedSpaces)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, `["s1"]`, v)
	})

	t.Run("creates nested directories", func(t *testing.T) {
		nested := filepath.Join(t.TempDir(), "a", "b")
		f, err := localstore.OpenFile(nested)
		require.NoError(t, err)
		require.NoError(t, f.Set(context.Background(), "k", "v"))
		_, err = os.Stat(f.Path())
		require.NoError(t, err)
	})

	t.Run("corrupt file is reported", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(filepath.Join(dir, "state.cbor"), []byte{0xff, 0x00, 0x13}, 0o600))
		_, err := localstore.OpenFile(dir)
		require.Error(t, err)
	})
}
