package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/dclabs/mailadmin-api/internal/models"
	"github.com/dclabs/mailadmin-api/internal/service"
	"github.com/dclabs/mailadmin-api/pkg/response"
)

// SubscriberHandler serves the filtered subscriber table.
type SubscriberHandler struct {
	service *service.SubscriberService
}

// NewSubscriberHandler creates a new handler.
func NewSubscriberHandler(svc *service.SubscriberService) *SubscriberHandler {
	return &SubscriberHandler{service: svc}
}

// List godoc
// @Summary List subscribers
// @Description Return one filtered, sorted page of subscribers plus the filtered total
// @Tags Subscribers
// @Produce json
// @Param search query string false "Substring match on email/first/last name"
// @Param status query string false "Subscriber status"
// @Param tags query string false "Tag ids (repeatable or comma separated)"
// @Param tags_mode query string false "any or all"
// @Param lists query string false "List ids (repeatable or comma separated)"
// @Param lists_mode query string false "any or all"
// @Param npa query string false "Exact NPA value"
// @Param npa_min query string false "NPA lower bound"
// @Param npa_max query string false "NPA upper bound"
// @Param npa_field_id query int false "Override NPA custom field id"
// @Param sort query string false "Sort column"
// @Param order query string false "asc or desc"
// @Param page query int false "Page number"
// @Param per_page query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /subscribers [get]
func (h *SubscriberHandler) List(c *gin.Context) {
	filter := parseSubscriberFilter(c)
	page, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, page, pagination)
}

func parseSubscriberFilter(c *gin.Context) models.SubscriberFilter {
	filter := models.SubscriberFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		NPA:       strings.TrimSpace(c.Query("npa")),
		NPAMin:    strings.TrimSpace(c.Query("npa_min")),
		NPAMax:    strings.TrimSpace(c.Query("npa_max")),
		Sort:      c.Query("sort"),
		Order:     c.Query("order"),
		Tags:      parseIDList(c, "tags"),
		TagsMode:  parseMatchMode(c.Query("tags_mode")),
		Lists:     parseIDList(c, "lists"),
		ListsMode: parseMatchMode(c.Query("lists_mode")),
	}

	if status := c.Query("status"); models.ValidStatus(status) {
		filter.Status = status
	}
	if raw := c.Query("npa_field_id"); raw != "" {
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			filter.NPAFieldID = &id
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if perPage, err := strconv.Atoi(c.DefaultQuery("per_page", "50")); err == nil {
		filter.PerPage = perPage
	}
	return filter
}

// parseIDList accepts both repeated params (?tags=1&tags=2) and comma
// separated values (?tags=1,2); unparsable entries are skipped.
func parseIDList(c *gin.Context, key string) []int64 {
	values := c.QueryArray(key)
	if extra := c.QueryArray(key + "[]"); len(extra) > 0 {
		values = append(values, extra...)
	}
	var ids []int64
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			id, err := strconv.ParseInt(part, 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

func parseMatchMode(raw string) models.MatchMode {
	if models.MatchMode(strings.ToLower(raw)) == models.MatchAll {
		return models.MatchAll
	}
	return models.MatchAny
}
