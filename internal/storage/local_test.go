package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestStorage(t *testing.T) *LocalStorage {
	t.Helper()
	storage, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return storage
}

func TestLocalStorage_StoreAndRetrieve(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		path        string
		content     string
		contentType string
	}{
		{
			name:        "session record",
			path:        "session-1/session.json",
			content:     `{"sessionId":"session-1"}`,
			contentType: "application/json",
		},
		{
			name:        "binary chunk",
			path:        "session-1/chunk_0",
			content:     string([]byte{0x00, 0x01, 0x02, 0xFF}),
			contentType: "image/png",
		},
		{
			name:        "empty content",
			path:        "session-1/chunk_1",
			content:     "",
			contentType: "image/png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := storage.Store(ctx, tt.path, strings.NewReader(tt.content), tt.contentType)
			require.NoError(t, err)

			exists, err := storage.Exists(ctx, tt.path)
			require.NoError(t, err)
			assert.True(t, exists)

			reader, err := storage.Retrieve(ctx, tt.path)
			require.NoError(t, err)
			defer reader.Close()

			retrieved, err := io.ReadAll(reader)
			require.NoError(t, err)
			assert.Equal(t, tt.content, string(retrieved))
		})
	}
}

func TestLocalStorage_StoreOverwrites(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Store(ctx, "s/chunk_0", strings.NewReader("first"), "image/png"))
	require.NoError(t, storage.Store(ctx, "s/chunk_0", strings.NewReader("second"), "image/png"))

	reader, err := storage.Retrieve(ctx, "s/chunk_0")
	require.NoError(t, err)
	defer reader.Close()

	content, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "second", string(content), "re-uploading a chunk replaces prior content")
}

func TestLocalStorage_RetrieveMissing(t *testing.T) {
	storage := setupTestStorage(t)

	_, err := storage.Retrieve(context.Background(), "missing/chunk_0")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestLocalStorage_GetSize(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Store(ctx, "s/chunk_0", strings.NewReader("12345"), "image/png"))

	size, err := storage.GetSize(ctx, "s/chunk_0")
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	_, err = storage.GetSize(ctx, "s/chunk_1")
	assert.Error(t, err)
}

func TestLocalStorage_Delete(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, storage.Store(ctx, "s/chunk_0", strings.NewReader("data"), "image/png"))
	require.NoError(t, storage.Delete(ctx, "s/chunk_0"))

	exists, err := storage.Exists(ctx, "s/chunk_0")
	require.NoError(t, err)
	assert.False(t, exists)

	// Deleting a missing path is treated as already deleted
	assert.NoError(t, storage.Delete(ctx, "s/chunk_0"))
}

func TestLocalStorage_DeleteAll(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	paths := []string{"s/chunk_0", "s/chunk_1", "s/session.json"}
	for _, path := range paths {
		require.NoError(t, storage.Store(ctx, path, strings.NewReader("x"), "application/octet-stream"))
	}

	require.NoError(t, storage.DeleteAll(ctx, paths))

	for _, path := range paths {
		exists, err := storage.Exists(ctx, path)
		require.NoError(t, err)
		assert.False(t, exists, path)
	}
}

func TestLocalStorage_List(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	stored := []string{"session-1/session.json", "session-1/chunk_0", "session-1/chunk_1", "session-2/chunk_0"}
	for _, path := range stored {
		require.NoError(t, storage.Store(ctx, path, strings.NewReader("x"), "application/octet-stream"))
	}

	paths, err := storage.List(ctx, "session-1")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"session-1/session.json", "session-1/chunk_0", "session-1/chunk_1"}, paths)

	// A prefix with nothing under it lists as empty, not as an error
	paths, err = storage.List(ctx, "session-3")
	require.NoError(t, err)
	assert.Empty(t, paths)
}

func TestLocalStorage_RejectsPathEscape(t *testing.T) {
	parent := t.TempDir()
	storage, err := NewLocalStorage(filepath.Join(parent, "uploads"))
	require.NoError(t, err)
	ctx := context.Background()

	// A key with a traversal component must never produce a write outside
	// the storage root.
	err = storage.Store(ctx, "../evil/session.json", strings.NewReader("owned"), "application/json")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "escapes storage root")
	_, statErr := os.Stat(filepath.Join(parent, "evil", "session.json"))
	assert.True(t, os.IsNotExist(statErr), "no file may appear outside the storage root")

	tests := []struct {
		name string
		op   func() error
	}{
		{"retrieve", func() error { _, err := storage.Retrieve(ctx, "../evil/session.json"); return err }},
		{"delete", func() error { return storage.Delete(ctx, "../../etc/passwd") }},
		{"exists", func() error { _, err := storage.Exists(ctx, ".."); return err }},
		{"get size", func() error { _, err := storage.GetSize(ctx, "s/../../outside"); return err }},
		{"list", func() error { _, err := storage.List(ctx, "../"); return err }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "escapes storage root")
		})
	}
}

func TestLocalStorage_CleanKeyInsideRootAccepted(t *testing.T) {
	storage := setupTestStorage(t)
	ctx := context.Background()

	// A redundant-but-contained key still resolves inside the root
	require.NoError(t, storage.Store(ctx, "s/sub/../chunk_0", strings.NewReader("data"), "image/png"))
	exists, err := storage.Exists(ctx, "s/chunk_0")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestLocalStorage_ContextCancelled(t *testing.T) {
	storage := setupTestStorage(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := storage.Store(ctx, "s/chunk_0", strings.NewReader("data"), "image/png")
	assert.ErrorIs(t, err, context.Canceled)

	_, err = storage.List(ctx, "s")
	assert.ErrorIs(t, err, context.Canceled)
}
