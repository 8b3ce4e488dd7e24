package handler

import (
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/dclabs/mailadmin-api/pkg/response"
	"github.com/dclabs/mailadmin-api/pkg/storage"

	appErrors "github.com/dclabs/mailadmin-api/pkg/errors"
)

// ExportHandler serves generated CSV exports through signed download tokens.
type ExportHandler struct {
	storage *storage.LocalStorage
	signer  *storage.SignedURLSigner
}

// NewExportHandler creates a new handler.
func NewExportHandler(store *storage.LocalStorage, signer *storage.SignedURLSigner) *ExportHandler {
	return &ExportHandler{storage: store, signer: signer}
}

// Download godoc
// @Summary Download an export
// @Description Stream the CSV file referenced by a signed token
// @Tags Bulk
// @Produce text/csv
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /export/{token} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	token := c.Param("token")
	_, relPath, _, err := h.signer.Parse(token, false)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token"))
		return
	}

	// Tokens only ever carry file names generated by the export job.
	relPath = filepath.Base(relPath)

	file, err := h.storage.Open(relPath)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export no longer available"))
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not read export"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", relPath))
	c.Header("Content-Type", "text/csv")
	c.Header("Cache-Control", "no-store")
	http.ServeContent(c.Writer, c.Request, relPath, info.ModTime(), file)
}
