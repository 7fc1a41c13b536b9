package router

import (
	"net/http"

	"github.com/cuongbtq/video2gif/internal/api/handler"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	if deps.EnableSentry {
		r.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())
	if deps.Metrics != nil {
		r.Use(MetricsMiddleware(deps.Metrics))
	}

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": deps.ServiceName,
		})
	})

	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	userHandler := handler.NewUserHandler(deps)
	conversionHandler := handler.NewConversionHandler(deps)
	fileHandler := handler.NewFileHandler(deps)

	requireUser := AuthMiddleware(deps.Tokens, deps.Store, deps.Logger)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.POST("/users", userHandler.CreateUser)
		v1.GET("/users/me", requireUser, userHandler.Me)
		v1.POST("/login/access-token", userHandler.Login)

		conversions := v1.Group("/conversions", requireUser)
		{
			create := []gin.HandlerFunc{conversionHandler.CreateConversion}
			if deps.Limiter != nil {
				create = append([]gin.HandlerFunc{RateLimitMiddleware(deps.Limiter, deps.Logger)}, create...)
			}

			// POST /api/v1/conversions - Upload a video and queue its conversion
			conversions.POST("", create...)

			// GET /api/v1/conversions - List the caller's conversions
			conversions.GET("", conversionHandler.ListConversions)

			// GET /api/v1/conversions/:conversion_id - Get one conversion
			conversions.GET("/:conversion_id", conversionHandler.GetConversion)
		}

		// GET /api/v1/files/:file_id - Download a stored video or gif
		v1.GET("/files/:file_id", requireUser, fileHandler.GetFile)
	}

	return r
}
