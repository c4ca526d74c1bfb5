package fs_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-moderation/pkg/simplemoderation/archive/fs"
)

func TestSaveLoadDelete(t *testing.T) {
	ctx := context.Background()
	baseDir := t.TempDir()

	backend, err := fs.New(fs.Config{BaseDir: baseDir})
	require.NoError(t, err)

	key := "decisions/abc.json"
	require.NoError(t, backend.Save(ctx, key, strings.NewReader(`{"status":"approved"}`)))

	reader, err := backend.Load(ctx, key)
	require.NoError(t, err)
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	require.NoError(t, reader.Close())
	assert.Equal(t, `{"status":"approved"}`, string(data))

	t.Run("save overwrites", func(t *testing.T) {
		require.NoError(t, backend.Save(ctx, key, strings.NewReader(`{"status":"rejected"}`)))

		reader, err := backend.Load(ctx, key)
		require.NoError(t, err)
		defer reader.Close()
		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, `{"status":"rejected"}`, string(data))
	})

	t.Run("delete removes file and empty directory", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, key))

		_, err := backend.Load(ctx, key)
		assert.Error(t, err)

		_, err = os.Stat(filepath.Join(baseDir, "decisions"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("delete of missing key fails", func(t *testing.T) {
		assert.Error(t, backend.Delete(ctx, "decisions/nope.json"))
	})
}

func TestNewRequiresBaseDir(t *testing.T) {
	_, err := fs.New(fs.Config{})
	assert.Error(t, err)
}
