package handler

import (
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/campus-ops-api/pkg/errors"
	"github.com/noah-isme/campus-ops-api/pkg/response"
)

type signedFileOpener interface {
	OpenSigned(token string) (*os.File, string, error)
}

// UploadHandler serves locally stored complaint images behind signed links.
type UploadHandler struct {
	files signedFileOpener
}

// NewUploadHandler constructs the handler.
func NewUploadHandler(files signedFileOpener) *UploadHandler {
	return &UploadHandler{files: files}
}

// Serve godoc
// @Summary Fetch an uploaded image
// @Tags Uploads
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /uploads/{token} [get]
func (h *UploadHandler) Serve(c *gin.Context) {
	file, key, err := h.files.OpenSigned(c.Param("token"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found or link expired"))
		return
	}
	defer file.Close()

	contentType := mime.TypeByExtension(filepath.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("Cache-Control", "private, max-age=300")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}
