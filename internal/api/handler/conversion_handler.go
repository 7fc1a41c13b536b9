package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/cuongbtq/video2gif/internal/api/dto"
	"github.com/cuongbtq/video2gif/internal/domain"
	"github.com/cuongbtq/video2gif/internal/storage"
	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConversionHandler handles conversion submission and lookup
type ConversionHandler struct {
	logger        *slog.Logger
	store         ConversionStore
	blobs         blobstore.Store
	enqueuer      Enqueuer
	queue         string
	maxUploadSize int64
}

// NewConversionHandler creates a new ConversionHandler instance
func NewConversionHandler(deps *Dependencies) *ConversionHandler {
	return &ConversionHandler{
		logger:        deps.Logger,
		store:         deps.Store,
		blobs:         deps.Blobs,
		enqueuer:      deps.Enqueuer,
		queue:         deps.ConversionsQueue,
		maxUploadSize: deps.MaxUploadSize,
	}
}

// videoExtensions covers containers missing from the system mime tables
var videoExtensions = map[string]string{
	".avi":  "video/x-msvideo",
	".m4v":  "video/x-m4v",
	".mkv":  "video/x-matroska",
	".mov":  "video/quicktime",
	".mp4":  "video/mp4",
	".mpeg": "video/mpeg",
	".webm": "video/webm",
}

// videoContentType resolves the media type of an upload from the part
// header, then the file extension, then the leading bytes of file
func videoContentType(declared, filename string, file io.ReadSeeker) (string, bool, error) {
	contentType := declared
	if contentType == "" || contentType == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(filename))
		contentType = mime.TypeByExtension(ext)
		if contentType == "" {
			contentType = videoExtensions[ext]
		}
	}

	if contentType == "" {
		detected, err := mimetype.DetectReader(file)
		if err != nil {
			return "", false, err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return "", false, err
		}
		contentType = detected.String()
	}

	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", false, nil
	}
	return mediaType, strings.HasPrefix(mediaType, "video/"), nil
}

func validWebhookURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// CreateConversion handles POST /api/v1/conversions
// Stores the uploaded video, records the conversion and queues it
func (h *ConversionHandler) CreateConversion(c *gin.Context) {
	user := CurrentUser(c)

	if h.maxUploadSize > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)
	}

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		abortWithError(c, http.StatusBadRequest, "file is required")
		return
	}

	if header.Size == 0 {
		abortWithError(c, http.StatusBadRequest, "File is empty")
		return
	}

	file, err := header.Open()
	if err != nil {
		internalError(c, h.logger, "Failed to read upload", err)
		return
	}
	defer file.Close()

	contentType, ok, err := videoContentType(header.Header.Get("Content-Type"), header.Filename, file)
	if err != nil {
		internalError(c, h.logger, "Failed to inspect upload", err)
		return
	}
	if !ok {
		abortWithError(c, http.StatusBadRequest, "File must be a video")
		return
	}

	var webhookURL *string
	if raw := strings.TrimSpace(c.PostForm("webhook_url")); raw != "" {
		if !validWebhookURL(raw) {
			abortWithError(c, http.StatusBadRequest, "webhook_url must be an http(s) URL")
			return
		}
		webhookURL = &raw
	}

	ctx := c.Request.Context()

	videoID, err := h.blobs.Put(ctx, file, blobstore.Metadata{
		OwnerID:     user.ID,
		ContentType: contentType,
		Filename:    filepath.Base(header.Filename),
	})
	if err != nil {
		internalError(c, h.logger, "Failed to store video", err)
		return
	}

	now := time.Now().UTC()
	conversion := &domain.Conversion{
		ID:          uuid.NewString(),
		OwnerID:     user.ID,
		VideoFileID: videoID,
		WebhookURL:  webhookURL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := h.store.CreateConversion(ctx, conversion); err != nil {
		internalError(c, h.logger, "Failed to create conversion", err)
		return
	}

	if err := h.enqueuer.Enqueue(ctx, h.queue, conversion.ID); err != nil {
		internalError(c, h.logger, "Failed to queue conversion", err)
		return
	}

	h.logger.Info("Conversion submitted",
		slog.String("conversion_id", conversion.ID),
		slog.String("user_id", user.ID),
		slog.String("video_file_id", videoID),
		slog.Int64("size", header.Size),
		slog.Bool("webhook", webhookURL != nil),
	)

	c.JSON(http.StatusOK, dto.NewConversionDTO(conversion))
}

// GetConversion handles GET /api/v1/conversions/:conversion_id
func (h *ConversionHandler) GetConversion(c *gin.Context) {
	conversionID := c.Param("conversion_id")

	if _, err := uuid.Parse(conversionID); err != nil {
		abortWithError(c, http.StatusNotFound, "Conversion not found")
		return
	}

	conversion, err := h.store.GetConversionForOwner(c.Request.Context(), conversionID, CurrentUser(c).ID)
	if err != nil {
		if errors.Is(err, domain.ErrConversionNotFound) {
			abortWithError(c, http.StatusNotFound, "Conversion not found")
			return
		}
		internalError(c, h.logger, "Failed to get conversion", err)
		return
	}

	c.JSON(http.StatusOK, dto.NewConversionDTO(conversion))
}

// ListConversions handles GET /api/v1/conversions
// Lists the caller's conversions newest first with cursor pagination
func (h *ConversionHandler) ListConversions(c *gin.Context) {
	var req dto.ListConversionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Invalid query parameters")
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}

	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeConversionCursor(req.Cursor)
	if err != nil {
		h.logger.Debug("Invalid cursor", slog.String("error", err.Error()))
		abortWithError(c, http.StatusBadRequest, "Invalid cursor")
		return
	}

	conversions, err := h.store.ListConversions(c.Request.Context(), storage.ConversionFilter{
		OwnerID:  CurrentUser(c).ID,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		internalError(c, h.logger, "Failed to list conversions", err)
		return
	}

	// one extra row is fetched to tell whether another page exists
	hasMore := len(conversions) > req.PageSize
	if hasMore {
		conversions = conversions[:req.PageSize]
	}

	var nextCursor string
	if hasMore {
		last := conversions[len(conversions)-1]
		nextCursor = EncodeConversionCursor(&storage.ConversionCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListConversionsResponse{
		Conversions: dto.NewConversionDTOs(conversions),
		NextCursor:  nextCursor,
	})
}
