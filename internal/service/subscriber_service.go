package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dclabs/mailadmin-api/internal/models"
	appErrors "github.com/dclabs/mailadmin-api/pkg/errors"
)

type subscriberRepository interface {
	List(ctx context.Context, filter models.SubscriberFilter, npaFieldID *int64) ([]models.SubscriberRow, int, error)
	TagsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.TagRef, error)
	ListsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.ListRef, error)
	CustomFieldValues(ctx context.Context, ids []int64) (map[int64]map[int64]string, error)
}

type npaDetector interface {
	DetectNPAFieldID(ctx context.Context) (*int64, error)
}

// SubscriberService assembles denormalized subscriber pages: one main query
// plus count, then grouped satellite lookups keyed by the page's ids.
type SubscriberService struct {
	repo   subscriberRepository
	meta   npaDetector
	logger *zap.Logger
}

// NewSubscriberService constructs the subscriber read service.
func NewSubscriberService(repo subscriberRepository, meta npaDetector, logger *zap.Logger) *SubscriberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubscriberService{repo: repo, meta: meta, logger: logger}
}

// List returns one filtered page and the filtered total. A page past the end
// of the result set yields an empty item list with the correct total.
func (s *SubscriberService) List(ctx context.Context, filter models.SubscriberFilter) (*models.SubscriberPage, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PerPage <= 0 {
		filter.PerPage = 50
	}
	if filter.PerPage > 200 {
		filter.PerPage = 200
	}

	npaFieldID := filter.NPAFieldID
	if npaFieldID == nil {
		detected, err := s.meta.DetectNPAFieldID(ctx)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve npa field")
		}
		npaFieldID = detected
	}

	rows, total, err := s.repo.List(ctx, filter, npaFieldID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list subscribers")
	}

	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PerPage, TotalCount: total}
	page := &models.SubscriberPage{Items: make([]models.Subscriber, 0, len(rows)), Total: total}
	if len(rows) == 0 {
		return page, pagination, nil
	}

	ids := make([]int64, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	tags, err := s.repo.TagsBySubscriber(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subscriber tags")
	}
	lists, err := s.repo.ListsBySubscriber(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subscriber lists")
	}
	values, err := s.repo.CustomFieldValues(ctx, ids)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load custom field values")
	}

	for _, row := range rows {
		item := models.Subscriber{
			SubscriberRow: row,
			Tags:          tags[row.ID],
			Lists:         lists[row.ID],
			CustomFields:  values[row.ID],
		}
		if item.Tags == nil {
			item.Tags = []models.TagRef{}
		}
		if item.Lists == nil {
			item.Lists = []models.ListRef{}
		}
		if item.CustomFields == nil {
			item.CustomFields = map[int64]string{}
		}
		page.Items = append(page.Items, item)
	}
	return page, pagination, nil
}
