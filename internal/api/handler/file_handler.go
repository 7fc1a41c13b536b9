package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/cuongbtq/video2gif/shared/blobstore"
	"github.com/gin-gonic/gin"
)

// FileHandler streams stored blobs back to their owners
type FileHandler struct {
	logger *slog.Logger
	blobs  blobstore.Store
}

// NewFileHandler creates a new FileHandler instance
func NewFileHandler(deps *Dependencies) *FileHandler {
	return &FileHandler{
		logger: deps.Logger,
		blobs:  deps.Blobs,
	}
}

// GetFile handles GET /api/v1/files/:file_id
// Blobs owned by someone else are reported as missing
func (h *FileHandler) GetFile(c *gin.Context) {
	obj, err := h.blobs.Get(c.Request.Context(), c.Param("file_id"))
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			abortWithError(c, http.StatusNotFound, "File not found")
			return
		}
		internalError(c, h.logger, "Failed to read file", err)
		return
	}
	defer obj.Body.Close()

	if obj.Metadata.OwnerID != CurrentUser(c).ID {
		abortWithError(c, http.StatusNotFound, "File not found")
		return
	}

	var headers map[string]string
	if obj.Metadata.Filename != "" {
		headers = map[string]string{
			"Content-Disposition": fmt.Sprintf("inline; filename=%q", obj.Metadata.Filename),
		}
	}

	c.DataFromReader(http.StatusOK, obj.Size, obj.Metadata.ContentType, obj.Body, headers)
}
