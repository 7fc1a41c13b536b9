package router

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cuongbtq/video2gif/internal/api/auth"
	"github.com/cuongbtq/video2gif/internal/api/handler"
	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/metrics"
	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userID = "2f7f0d8e-52c5-4c55-a7cf-6d7b5fb3a0e1"

// fakeStore knows a single user and no conversions
type fakeStore struct{}

func (fakeStore) CreateUser(context.Context, *domain.User) error { return nil }

func (fakeStore) GetUserByID(_ context.Context, id string) (*domain.User, error) {
	if id == userID {
		return &domain.User{ID: userID, Username: "alice"}, nil
	}
	return nil, domain.ErrUserNotFound
}

func (fakeStore) GetUserByUsername(context.Context, string) (*domain.User, error) {
	return nil, domain.ErrUserNotFound
}

func (fakeStore) CreateConversion(context.Context, *domain.Conversion) error { return nil }

func (fakeStore) GetConversionForOwner(context.Context, string, string) (*domain.Conversion, error) {
	return nil, domain.ErrConversionNotFound
}

func (fakeStore) ListConversions(context.Context, storage.ConversionFilter) ([]domain.Conversion, error) {
	return nil, nil
}

type fakeLimiter struct {
	allowed bool
	err     error
	calls   []string
}

func (l *fakeLimiter) Allow(_ context.Context, subject string) (bool, error) {
	l.calls = append(l.calls, subject)
	return l.allowed, l.err
}

type testEnv struct {
	engine  *gin.Engine
	tokens  *auth.TokenManager
	limiter *fakeLimiter
}

func newTestEnv() *testEnv {
	gin.SetMode(gin.TestMode)

	reg := prometheus.NewRegistry()
	env := &testEnv{
		tokens:  auth.NewTokenManager("secret", time.Hour),
		limiter: &fakeLimiter{allowed: true},
	}
	env.engine = SetupRouter(&handler.Dependencies{
		Logger:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:            fakeStore{},
		Tokens:           env.tokens,
		Limiter:          env.limiter,
		Metrics:          metrics.NewHTTP(reg),
		Gatherer:         reg,
		ConversionsQueue: domain.QueueConversions,
		MaxUploadSize:    1 << 20,
		ServiceName:      "video2gif-api",
	})
	return env
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func (e *testEnv) token(t *testing.T, subject string) string {
	t.Helper()
	token, err := e.tokens.Issue(subject)
	require.NoError(t, err)
	return token
}

func TestHealth(t *testing.T) {
	env := newTestEnv()

	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","service":"video2gif-api"}`, w.Body.String())
}

func TestAuthMiddleware(t *testing.T) {
	env := newTestEnv()
	other := auth.NewTokenManager("other-secret", time.Hour)
	forged, err := other.Issue(userID)
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic YWxpY2U6cGFzcw==", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", header: "Bearer garbage", wantStatus: http.StatusForbidden},
		{name: "forged token", header: "Bearer " + forged, wantStatus: http.StatusForbidden},
		{name: "unknown user", header: "Bearer " + env.token(t, "6a4c9f0e-1111-4b7a-9b8e-000000000000"), wantStatus: http.StatusForbidden},
		{name: "valid token", header: "Bearer " + env.token(t, userID), wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			w := env.do(req)

			assert.Equal(t, tt.wantStatus, w.Code, w.Body.String())
		})
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		allowed    bool
		err        error
		wantStatus int
	}{
		// an empty body reaches the handler, which rejects the missing file
		{name: "allowed", allowed: true, wantStatus: http.StatusBadRequest},
		{name: "limited", allowed: false, wantStatus: http.StatusTooManyRequests},
		{name: "limiter unavailable", err: errors.New("redis down"), wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.limiter.allowed = tt.allowed
			env.limiter.err = tt.err

			req := httptest.NewRequest(http.MethodPost, "/api/v1/conversions", strings.NewReader(""))
			req.Header.Set("Authorization", "Bearer "+env.token(t, userID))

			w := env.do(req)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, []string{"user:" + userID}, env.limiter.calls)
		})
	}
}

func TestRateLimitOnlyOnCreate(t *testing.T) {
	env := newTestEnv()
	env.limiter.allowed = false

	req := httptest.NewRequest(http.MethodGet, "/api/v1/conversions", nil)
	req.Header.Set("Authorization", "Bearer "+env.token(t, userID))

	w := env.do(req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, env.limiter.calls)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv()

	env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	env.do(httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))

	w := env.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `http_requests_total{endpoint="/health",method="GET",status_code="200"} 1`)
	assert.Contains(t, body, `http_errors_total{endpoint="/api/v1/users/me",error_type="client_error",method="GET"} 1`)
	assert.Contains(t, body, "http_request_duration_seconds_bucket")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv()

	w := env.do(httptest.NewRequest(http.MethodOptions, "/api/v1/conversions", nil))

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}
