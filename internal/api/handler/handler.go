package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/video2gif/internal/api/auth"
	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/metrics"
	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// contextUserKey holds the authenticated *domain.User on the gin context
const contextUserKey = "user"

// UserStore is the user part of the job record store
type UserStore interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (*domain.User, error)
}

// ConversionStore is the conversion part of the job record store
type ConversionStore interface {
	CreateConversion(ctx context.Context, c *domain.Conversion) error
	GetConversionForOwner(ctx context.Context, id, ownerID string) (*domain.Conversion, error)
	ListConversions(ctx context.Context, filter storage.ConversionFilter) ([]domain.Conversion, error)
}

// Store is everything the API reads and writes in PostgreSQL
type Store interface {
	UserStore
	ConversionStore
}

// Enqueuer publishes job ids to a work queue
type Enqueuer interface {
	Enqueue(ctx context.Context, queue, jobID string) error
}

// RateLimiter reports whether subject may make one more request
type RateLimiter interface {
	Allow(ctx context.Context, subject string) (bool, error)
}

// Dependencies holds all dependencies needed by handlers and the router
type Dependencies struct {
	Logger           *slog.Logger
	Store            Store
	Blobs            blobstore.Store
	Enqueuer         Enqueuer
	Tokens           *auth.TokenManager
	Limiter          RateLimiter
	Metrics          *metrics.HTTP
	Gatherer         prometheus.Gatherer
	ConversionsQueue string
	MaxUploadSize    int64
	ServiceName      string
	EnableSentry     bool
}

// SetCurrentUser stores the authenticated user on the request
func SetCurrentUser(c *gin.Context, user *domain.User) {
	c.Set(contextUserKey, user)
}

// CurrentUser returns the authenticated user. Routes behind the auth
// middleware always have one.
func CurrentUser(c *gin.Context) *domain.User {
	user, _ := c.MustGet(contextUserKey).(*domain.User)
	return user
}

func abortWithError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func internalError(c *gin.Context, logger *slog.Logger, message string, err error) {
	logger.Error(message,
		slog.String("path", c.Request.URL.Path),
		slog.Any("error", err),
	)
	_ = c.Error(err)
	abortWithError(c, http.StatusInternalServerError, message)
}
