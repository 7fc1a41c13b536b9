package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// LocalStore keeps each object as a data file plus a JSON metadata sidecar,
// sharded by the first two characters of the id
type LocalStore struct {
	root string
}

// NewLocalStore creates root if needed
func NewLocalStore(root string) (*LocalStore, error) {
	if root == "" {
		return nil, fmt.Errorf("local blob store root is required")
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob root: %w", err)
	}

	return &LocalStore{root: root}, nil
}

func (s *LocalStore) paths(id string) (data, meta string) {
	dir := filepath.Join(s.root, id[:2])
	return filepath.Join(dir, id), filepath.Join(dir, id+".json")
}

// Put writes the object under a fresh id. The data file is renamed into
// place last, so a visible data file always has its metadata.
func (s *LocalStore) Put(ctx context.Context, r io.Reader, meta Metadata) (string, error) {
	id := newID()
	dataPath, metaPath := s.paths(id)

	if err := os.MkdirAll(filepath.Dir(dataPath), 0o755); err != nil {
		return "", fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dataPath), ".upload-*")
	if err != nil {
		return "", fmt.Errorf("failed to create temp blob: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, readerWithContext(ctx, r)); err != nil {
		tmp.Close()
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to close blob: %w", err)
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("failed to encode blob metadata: %w", err)
	}
	if err := os.WriteFile(metaPath, encoded, 0o644); err != nil {
		return "", fmt.Errorf("failed to write blob metadata: %w", err)
	}

	if err := os.Rename(tmp.Name(), dataPath); err != nil {
		os.Remove(metaPath)
		return "", fmt.Errorf("failed to commit blob: %w", err)
	}

	return id, nil
}

// Get opens the object for reading
func (s *LocalStore) Get(ctx context.Context, id string) (*Object, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	dataPath, metaPath := s.paths(id)

	f, err := os.Open(dataPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	encoded, err := os.ReadFile(metaPath)
	if err != nil {
		f.Close()
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read blob metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(encoded, &meta); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode blob metadata: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat blob: %w", err)
	}

	return &Object{ID: id, Metadata: meta, Size: info.Size(), Body: f}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

func readerWithContext(ctx context.Context, r io.Reader) io.Reader {
	return &ctxReader{ctx: ctx, r: r}
}
