package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dclabs/mailadmin-api/internal/service"
	"github.com/dclabs/mailadmin-api/pkg/response"
)

// MetaHandler serves the filter-control catalogs.
type MetaHandler struct {
	service *service.MetaService
}

// NewMetaHandler creates a new handler.
func NewMetaHandler(svc *service.MetaService) *MetaHandler {
	return &MetaHandler{service: svc}
}

// Catalog godoc
// @Summary Filter metadata
// @Description Return tags, lists, custom fields and the suggested NPA field id
// @Tags Meta
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /meta [get]
func (h *MetaHandler) Catalog(c *gin.Context) {
	catalog, err := h.service.Catalog(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, catalog, nil)
}
