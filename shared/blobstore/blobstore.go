// Package blobstore stores immutable binary objects with owner and
// content type metadata. Objects are addressed by ULIDs assigned on Put.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/oklog/ulid/v2"
)

// ErrNotFound is returned when no object exists for an id
var ErrNotFound = errors.New("blob not found")

// Metadata is attached to an object on Put and never changes
type Metadata struct {
	OwnerID     string `json:"owner_id"`
	ContentType string `json:"content_type"`
	Filename    string `json:"filename,omitempty"`
}

// Object is a stored blob. Callers must close Body.
type Object struct {
	ID       string
	Metadata Metadata
	Size     int64
	Body     io.ReadCloser
}

// Store is implemented by every backend
type Store interface {
	Put(ctx context.Context, r io.Reader, meta Metadata) (string, error)
	Get(ctx context.Context, id string) (*Object, error)
}

// Backends
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config selects a backend
type Config struct {
	Backend   string
	LocalRoot string
	S3        S3Config
}

// New builds the backend named by cfg.Backend
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return NewLocalStore(cfg.LocalRoot)
	case BackendS3:
		return NewS3Store(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("unknown blob store backend: %s", cfg.Backend)
	}
}

func newID() string {
	return ulid.Make().String()
}

// validID rejects anything that is not a canonical ULID, which also keeps
// ids safe to use as file names and object keys
func validID(id string) bool {
	parsed, err := ulid.ParseStrict(id)
	return err == nil && parsed.String() == id
}
