package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingBlobs struct{}

func (failingBlobs) Put(context.Context, io.Reader, blobstore.Metadata) (string, error) {
	return "", io.ErrUnexpectedEOF
}

func (failingBlobs) Get(context.Context, string) (*blobstore.Object, error) {
	return nil, io.ErrUnexpectedEOF
}

func TestGetFile(t *testing.T) {
	blobs, err := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	mine, err := blobs.Put(context.Background(), strings.NewReader("GIF89a"), blobstore.Metadata{
		OwnerID:     testUserID,
		ContentType: "image/gif",
	})
	require.NoError(t, err)

	theirs, err := blobs.Put(context.Background(), strings.NewReader("video"), blobstore.Metadata{
		OwnerID:     "someone-else",
		ContentType: "video/mp4",
		Filename:    "clip.mp4",
	})
	require.NoError(t, err)

	tests := []struct {
		name       string
		blobs      blobstore.Store
		id         string
		wantStatus int
		wantBody   string
	}{
		{name: "own file", blobs: blobs, id: mine, wantStatus: http.StatusOK, wantBody: "GIF89a"},
		{name: "someone else's file", blobs: blobs, id: theirs, wantStatus: http.StatusNotFound},
		{name: "missing file", blobs: blobs, id: "01HZX3M2Y4Z5V6W7X8Y9Z0A1B2", wantStatus: http.StatusNotFound},
		{name: "malformed id", blobs: blobs, id: "not-a-ulid", wantStatus: http.StatusNotFound},
		{name: "backend error", blobs: failingBlobs{}, id: mine, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewFileHandler(&Dependencies{Logger: discardLogger(), Blobs: tt.blobs})
			r := newEngine(testUser)
			r.GET("/api/v1/files/:file_id", h.GetFile)

			w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/files/"+tt.id, nil))

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, tt.wantBody, w.Body.String())
				assert.Equal(t, "image/gif", w.Header().Get("Content-Type"))
			}
		})
	}
}
