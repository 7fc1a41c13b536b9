package router

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cuongbtq/video2gif/internal/api/auth"
	"github.com/cuongbtq/video2gif/internal/api/handler"
	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/metrics"
	"github.com/gin-gonic/gin"
)

// LoggerMiddleware logs HTTP requests with slog
func LoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)

		logger.Info("HTTP Request",
			slog.Int("status", c.Writer.Status()),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("query", query),
			slog.String("ip", c.ClientIP()),
			slog.String("user_agent", c.Request.UserAgent()),
			slog.Duration("latency", latency),
			slog.Int("body_size", c.Writer.Size()),
		)

		for _, e := range c.Errors {
			logger.Error("Request error",
				slog.String("error", e.Error()),
				slog.Uint64("type", uint64(e.Type)),
			)
		}
	}
}

// CORSMiddleware handles Cross-Origin Resource Sharing
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// MetricsMiddleware records request counts, latencies and error classes per route template
func MetricsMiddleware(m *metrics.HTTP) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		m.ObserveRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}

// UserLookup loads the user named by a token subject
type UserLookup interface {
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
}

// AuthMiddleware requires a valid bearer token. A missing token is 401;
// a token that does not verify or names an unknown user is 403.
func AuthMiddleware(tokens *auth.TokenManager, users UserLookup, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		scheme, token, ok := strings.Cut(header, " ")
		if header == "" || !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			c.Header("WWW-Authenticate", "Bearer")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}

		userID, err := tokens.Verify(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Could not validate credentials"})
			return
		}

		user, err := users.GetUserByID(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, domain.ErrUserNotFound) {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Could not validate credentials"})
				return
			}
			logger.Error("Failed to load user", slog.String("user_id", userID), slog.Any("error", err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load user"})
			return
		}

		handler.SetCurrentUser(c, user)
		c.Next()
	}
}

// RateLimitMiddleware limits requests per authenticated user. Redis errors
// are logged and the request is let through.
func RateLimitMiddleware(limiter handler.RateLimiter, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := handler.CurrentUser(c)

		allowed, err := limiter.Allow(c.Request.Context(), "user:"+user.ID)
		if err != nil {
			logger.Error("Rate limiter unavailable",
				slog.String("user_id", user.ID),
				slog.Any("error", err),
			)
			c.Next()
			return
		}

		if !allowed {
			logger.Warn("Rate limit exceeded",
				slog.String("user_id", user.ID),
				slog.String("path", c.Request.URL.Path),
			)
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			return
		}

		c.Next()
	}
}
