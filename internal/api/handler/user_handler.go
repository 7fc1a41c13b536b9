package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/video2gif/internal/api/auth"
	"github.com/cuongbtq/video2gif/internal/api/dto"
	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// UserHandler handles registration, login and profile requests
type UserHandler struct {
	logger *slog.Logger
	store  Store
	tokens *auth.TokenManager
}

// NewUserHandler creates a new UserHandler instance
func NewUserHandler(deps *Dependencies) *UserHandler {
	return &UserHandler{
		logger: deps.Logger,
		store:  deps.Store,
		tokens: deps.Tokens,
	}
}

// CreateUser handles POST /api/v1/users
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req dto.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Debug("Invalid request body", slog.String("error", err.Error()))
		abortWithError(c, http.StatusBadRequest, "Invalid request body")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		internalError(c, h.logger, "Failed to create user", err)
		return
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     req.Username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}

	if err := h.store.CreateUser(c.Request.Context(), user); err != nil {
		if errors.Is(err, domain.ErrUsernameTaken) {
			abortWithError(c, http.StatusBadRequest, "Username already registered")
			return
		}
		internalError(c, h.logger, "Failed to create user", err)
		return
	}

	h.logger.Info("User created",
		slog.String("user_id", user.ID),
		slog.String("username", user.Username),
	)

	c.JSON(http.StatusOK, dto.UserDTO{ID: user.ID, Username: user.Username})
}

// Login handles POST /api/v1/login/access-token
func (h *UserHandler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBind(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := h.store.GetUserByUsername(c.Request.Context(), req.Username)
	if err != nil && !errors.Is(err, domain.ErrUserNotFound) {
		internalError(c, h.logger, "Failed to log in", err)
		return
	}

	if user == nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		abortWithError(c, http.StatusNotFound, "Incorrect username or password")
		return
	}

	token, err := h.tokens.Issue(user.ID)
	if err != nil {
		internalError(c, h.logger, "Failed to log in", err)
		return
	}

	c.JSON(http.StatusOK, dto.TokenResponse{AccessToken: token, TokenType: "bearer"})
}

// Me handles GET /api/v1/users/me
func (h *UserHandler) Me(c *gin.Context) {
	user := CurrentUser(c)

	conversions, err := h.store.ListConversions(c.Request.Context(), storage.ConversionFilter{
		OwnerID:  user.ID,
		PageSize: maxPageSize,
	})
	if err != nil {
		internalError(c, h.logger, "Failed to load conversions", err)
		return
	}

	if len(conversions) > maxPageSize {
		conversions = conversions[:maxPageSize]
	}

	c.JSON(http.StatusOK, dto.UserProfileDTO{
		UserDTO:     dto.UserDTO{ID: user.ID, Username: user.Username},
		Conversions: dto.NewConversionDTOs(conversions),
	})
}
