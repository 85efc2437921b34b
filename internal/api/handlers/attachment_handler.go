// internal/api/handlers/attachment_handler.go
package handlers

import (
	"fmt"
	"net/http"
	"path/filepath"

	"commande-track-api-server/internal/models"
	"commande-track-api-server/internal/orders"
	"commande-track-api-server/internal/s3"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AttachmentHandler uploads proof photos (typically from the mobile flow) to
// S3 and links them to the order.
type AttachmentHandler struct {
	Service  *orders.Service
	Uploader *s3.Uploader
}

func (h *AttachmentHandler) Upload(c *gin.Context) {
	orgID, ok := orgIDFromContext(c)
	if !ok {
		return
	}

	if h.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Attachment storage is not configured"})
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A 'file' form field is required"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read upload"})
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("orders/%s/%s%s", c.Param("id"), uuid.New().String(), filepath.Ext(fileHeader.Filename))

	url, err := h.Uploader.UploadFile(c.Request.Context(), file, key, contentType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to upload file", "details": err.Error()})
		return
	}

	order, err := h.Service.AddAttachment(c.Request.Context(), orgID, c.Param("id"), url, models.SourceWeb)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": url, "order": order})
}
