package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testUserID = "2f7f0d8e-52c5-4c55-a7cf-6d7b5fb3a0e1"

var testUser = &domain.User{ID: testUserID, Username: "alice"}

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreateUser(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}

func (m *mockStore) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockStore) GetUserByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	user, _ := args.Get(0).(*domain.User)
	return user, args.Error(1)
}

func (m *mockStore) CreateConversion(ctx context.Context, c *domain.Conversion) error {
	return m.Called(ctx, c).Error(0)
}

func (m *mockStore) GetConversionForOwner(ctx context.Context, id, ownerID string) (*domain.Conversion, error) {
	args := m.Called(ctx, id, ownerID)
	c, _ := args.Get(0).(*domain.Conversion)
	return c, args.Error(1)
}

func (m *mockStore) ListConversions(ctx context.Context, filter storage.ConversionFilter) ([]domain.Conversion, error) {
	args := m.Called(ctx, filter)
	c, _ := args.Get(0).([]domain.Conversion)
	return c, args.Error(1)
}

type mockEnqueuer struct {
	mock.Mock
}

func (m *mockEnqueuer) Enqueue(ctx context.Context, queue, jobID string) error {
	return m.Called(ctx, queue, jobID).Error(0)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newEngine builds a bare engine whose requests are authenticated as user
func newEngine(user *domain.User) *gin.Engine {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			SetCurrentUser(c, user)
		}
		c.Next()
	})
	return r
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type upload struct {
	filename    string
	contentType string
	body        string
	webhookURL  string
}

func newUploadRequest(t *testing.T, u upload) *http.Request {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	if u.filename != "" {
		header := textproto.MIMEHeader{}
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+u.filename+`"`)
		if u.contentType != "" {
			header.Set("Content-Type", u.contentType)
		}
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write([]byte(u.body))
		require.NoError(t, err)
	}

	if u.webhookURL != "" {
		require.NoError(t, mw.WriteField("webhook_url", u.webhookURL))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/conversions", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}
