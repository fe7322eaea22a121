package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"messaging-service/internal/files"
	"messaging-service/internal/middleware"
)

// FileHandler accepts attachment uploads and serves stored attachments.
type FileHandler struct {
	store *files.LocalStore
}

// NewFileHandler builds a FileHandler.
func NewFileHandler(store *files.LocalStore) *FileHandler {
	return &FileHandler{store: store}
}

// Upload stores one multipart file and returns the reference the client then
// attaches to a message.
func (h *FileHandler) Upload(c *gin.Context) {
	userID := middleware.CallerID(c)

	header, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	src, err := header.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}

	ref, err := h.store.Save(c.Request.Context(), data, header.Filename, strconv.Itoa(userID))
	if err != nil {
		var sizeErr *files.SizeLimitError
		switch {
		case errors.As(err, &sizeErr):
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": sizeErr.Error()})
		case errors.Is(err, files.ErrExtensionNotAllowed):
			c.JSON(http.StatusBadRequest, gin.H{"error": "file type not allowed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store file"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_url":  ref.URL,
		"file_type": ref.Mime,
		"file_name": ref.Name,
		"category":  ref.Category,
	})
}

// Serve streams a stored attachment back to an authenticated caller.
func (h *FileHandler) Serve(c *gin.Context) {
	local, err := h.store.Resolve(c.Param("path"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid path"})
		return
	}
	c.File(local)
}
