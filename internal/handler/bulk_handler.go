package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dclabs/mailadmin-api/internal/models"
	"github.com/dclabs/mailadmin-api/internal/service"
	appErrors "github.com/dclabs/mailadmin-api/pkg/errors"
	"github.com/dclabs/mailadmin-api/pkg/response"
)

// BulkHandler serves chunked bulk mutations.
type BulkHandler struct {
	service *service.BulkService
}

// NewBulkHandler creates a new handler.
func NewBulkHandler(svc *service.BulkService) *BulkHandler {
	return &BulkHandler{service: svc}
}

// Execute godoc
// @Summary Execute one bulk chunk
// @Description Apply a bulk action to one chunk of the given id set; callers resume with offset = processed
// @Tags Bulk
// @Accept json
// @Produce json
// @Param payload body models.BulkRequest true "Bulk payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /bulk [post]
func (h *BulkHandler) Execute(c *gin.Context) {
	var req models.BulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeBulkError(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid bulk payload"))
		return
	}

	result, err := h.service.Execute(c.Request.Context(), req)
	if err != nil {
		writeBulkError(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// writeBulkError keeps the uniform result shape on failures so the chunk
// loop on the client side can stop on ok=false without special casing.
func writeBulkError(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	c.Header("Cache-Control", "no-store")
	c.JSON(appErr.Status, response.Envelope{
		Data:  models.BulkResult{OK: false, Message: appErr.Message},
		Error: appErr,
	})
}
