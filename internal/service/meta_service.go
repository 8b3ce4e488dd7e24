package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/dclabs/mailadmin-api/internal/models"
	appErrors "github.com/dclabs/mailadmin-api/pkg/errors"
)

const metaCatalogCacheKey = "meta:catalog"

type metaRepository interface {
	Tags(ctx context.Context) ([]models.TagRef, error)
	Lists(ctx context.Context) ([]models.ListRef, error)
	CustomFields(ctx context.Context) ([]models.CustomField, error)
	DetectNPAFieldID(ctx context.Context) (*int64, error)
}

// MetaService serves the filter-control catalog (tags, lists, custom fields)
// and the suggested NPA field, cached between requests.
type MetaService struct {
	repo   metaRepository
	cache  *CacheService
	logger *zap.Logger
}

// NewMetaService constructs the metadata service.
func NewMetaService(repo metaRepository, cache *CacheService, logger *zap.Logger) *MetaService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MetaService{repo: repo, cache: cache, logger: logger}
}

// Catalog returns the full metadata catalog, from cache when fresh.
func (s *MetaService) Catalog(ctx context.Context) (*models.MetaCatalog, error) {
	if s.cache.Enabled() {
		var cached models.MetaCatalog
		if hit, err := s.cache.Get(ctx, metaCatalogCacheKey, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	tags, err := s.repo.Tags(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list tags")
	}
	lists, err := s.repo.Lists(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list lists")
	}
	fields, err := s.repo.CustomFields(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list custom fields")
	}
	npaFieldID, err := s.repo.DetectNPAFieldID(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to detect npa field")
	}

	if tags == nil {
		tags = []models.TagRef{}
	}
	if lists == nil {
		lists = []models.ListRef{}
	}
	if fields == nil {
		fields = []models.CustomField{}
	}

	catalog := &models.MetaCatalog{
		Tags:              tags,
		Lists:             lists,
		CustomFields:      fields,
		SuggestedNPAField: npaFieldID,
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, metaCatalogCacheKey, catalog, 0); err != nil {
			s.logger.Warn("meta catalog cache write failed", zap.Error(err))
		}
	}
	return catalog, nil
}
