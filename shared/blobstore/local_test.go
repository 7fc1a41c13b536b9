package blobstore

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStore_PutGet(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	meta := Metadata{OwnerID: "owner-1", ContentType: "video/mp4", Filename: "clip.mp4"}

	id, err := store.Put(ctx, bytes.NewReader([]byte("video bytes")), meta)
	require.NoError(t, err)
	assert.True(t, validID(id))

	obj, err := store.Get(ctx, id)
	require.NoError(t, err)
	defer obj.Body.Close()

	data, err := io.ReadAll(obj.Body)
	require.NoError(t, err)
	assert.Equal(t, "video bytes", string(data))
	assert.Equal(t, meta, obj.Metadata)
	assert.Equal(t, int64(len("video bytes")), obj.Size)
	assert.Equal(t, id, obj.ID)
}

func TestLocalStore_PutAlwaysCreatesNewObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx := context.Background()
	meta := Metadata{OwnerID: "o", ContentType: "image/gif"}

	first, err := store.Put(ctx, bytes.NewReader([]byte("same")), meta)
	require.NoError(t, err)
	second, err := store.Put(ctx, bytes.NewReader([]byte("same")), meta)
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestLocalStore_EmptyObject(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	id, err := store.Put(context.Background(), bytes.NewReader(nil), Metadata{OwnerID: "o", ContentType: "image/gif"})
	require.NoError(t, err)

	obj, err := store.Get(context.Background(), id)
	require.NoError(t, err)
	defer obj.Body.Close()
	assert.Zero(t, obj.Size)
}

func TestLocalStore_GetNotFound(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	tests := []struct {
		name string
		id   string
	}{
		{name: "unknown ulid", id: newID()},
		{name: "not a ulid", id: "not-an-id"},
		{name: "path traversal", id: "../../etc/passwd"},
		{name: "empty", id: ""},
		{name: "lowercase ulid", id: "01arz3ndektsv4rrffq69g5fav"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := store.Get(context.Background(), tt.id)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.Nil(t, obj)
		})
	}
}

func TestLocalStore_MissingMetadataIsNotFound(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	id, err := store.Put(context.Background(), bytes.NewReader([]byte("x")), Metadata{OwnerID: "o"})
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(root, id[:2], id+".json")))

	_, err = store.Get(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_PutCanceledContext(t *testing.T) {
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = store.Put(ctx, bytes.NewReader([]byte("x")), Metadata{OwnerID: "o"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Config{Backend: "gdrive"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown blob store backend")
}

func TestNew_LocalBackend(t *testing.T) {
	store, err := New(context.Background(), Config{Backend: BackendLocal, LocalRoot: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalStore{}, store)
}

func TestS3Store_Key(t *testing.T) {
	assert.Equal(t, "01ARZ3NDEKTSV4RRFFQ69G5FAV", (&S3Store{}).key("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
	assert.Equal(t, "blobs/01ARZ3NDEKTSV4RRFFQ69G5FAV", (&S3Store{prefix: "blobs"}).key("01ARZ3NDEKTSV4RRFFQ69G5FAV"))
}
