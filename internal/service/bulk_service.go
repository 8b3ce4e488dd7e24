package service

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dclabs/mailadmin-api/internal/models"
	appErrors "github.com/dclabs/mailadmin-api/pkg/errors"
	"github.com/dclabs/mailadmin-api/pkg/export"
	"github.com/dclabs/mailadmin-api/pkg/storage"
)

// exportBatchSize bounds the parameter list of each export sub-query.
const exportBatchSize = 500

var exportHeader = []string{"email", "first_name", "last_name", "status", "npa", "tags", "lists", "created_at"}

type bulkRepository interface {
	AddTags(ctx context.Context, subscriberIDs, tagIDs []int64) error
	RemoveTags(ctx context.Context, subscriberIDs, tagIDs []int64) error
	AddLists(ctx context.Context, subscriberIDs, listIDs []int64) error
	RemoveLists(ctx context.Context, subscriberIDs, listIDs []int64) error
	Unsubscribe(ctx context.Context, subscriberIDs []int64) error
}

type exportSource interface {
	FetchByIDs(ctx context.Context, ids []int64, npaFieldID *int64) ([]models.SubscriberRow, error)
	TagsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.TagRef, error)
	ListsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.ListRef, error)
}

type exportStorage interface {
	Create(filename string) (*os.File, error)
	Delete(filename string) error
}

// BulkConfig tunes bulk execution.
type BulkConfig struct {
	APIPrefix string
}

// BulkService applies one action to a chunk of a fixed id set. All resume
// state travels through the request/response pair, so the engine itself is
// stateless between calls.
type BulkService struct {
	repo        bulkRepository
	subscribers exportSource
	meta        npaDetector
	storage     exportStorage
	signer      *storage.SignedURLSigner
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         BulkConfig
}

// NewBulkService constructs the bulk mutation engine.
func NewBulkService(repo bulkRepository, subscribers exportSource, meta npaDetector, store exportStorage, signer *storage.SignedURLSigner, cfg BulkConfig, validate *validator.Validate, logger *zap.Logger) *BulkService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BulkService{
		repo:        repo,
		subscribers: subscribers,
		meta:        meta,
		storage:     store,
		signer:      signer,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Execute runs one chunk of a bulk job and reports uniform progress. The
// caller re-invokes with offset = previous Processed until Remaining <= 0.
func (s *BulkService) Execute(ctx context.Context, req models.BulkRequest) (*models.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk payload")
	}
	if !models.ValidBulkAction(req.Action) {
		return nil, appErrors.Clone(appErrors.ErrUnknownAction, fmt.Sprintf("unknown bulk action %q", req.Action))
	}
	if len(req.IDs) > models.MaxBulkIDs {
		return nil, appErrors.Clone(appErrors.ErrTooManyIDs, fmt.Sprintf("maximum %d ids per request", models.MaxBulkIDs))
	}

	chunkSize := req.Limit
	if chunkSize <= 0 {
		chunkSize = models.DefaultBulkChunk
	}
	if chunkSize > models.MaxBulkChunk {
		chunkSize = models.MaxBulkChunk
	}

	total := len(req.IDs)
	if req.Offset >= total {
		// Nothing left; report completion without touching storage.
		return &models.BulkResult{OK: true, Processed: total, Remaining: 0}, nil
	}

	end := req.Offset + chunkSize
	if end > total {
		end = total
	}
	chunk := req.IDs[req.Offset:end]
	processed := end
	remaining := total - processed

	var downloadURL string
	var err error
	switch models.BulkAction(req.Action) {
	case models.BulkAddTag:
		err = s.applyTagAction(ctx, chunk, req.TagIDs, s.repo.AddTags)
	case models.BulkRemoveTag:
		err = s.applyTagAction(ctx, chunk, req.TagIDs, s.repo.RemoveTags)
	case models.BulkAddList:
		err = s.applyListAction(ctx, chunk, req.ListIDs, s.repo.AddLists)
	case models.BulkRemoveList:
		err = s.applyListAction(ctx, chunk, req.ListIDs, s.repo.RemoveLists)
	case models.BulkUnsubscribe:
		if e := s.repo.Unsubscribe(ctx, chunk); e != nil {
			err = appErrors.Wrap(e, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "unsubscribe chunk failed")
		}
	case models.BulkExportCSV:
		downloadURL, err = s.exportCSV(ctx, req.IDs, req.Offset)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("bulk chunk applied",
		zap.String("action", req.Action),
		zap.Int("offset", req.Offset),
		zap.Int("processed", processed),
		zap.Int("remaining", remaining),
	)

	return &models.BulkResult{
		OK:          true,
		Processed:   processed,
		Remaining:   remaining,
		DownloadURL: downloadURL,
	}, nil
}

func (s *BulkService) applyTagAction(ctx context.Context, chunk, tagIDs []int64, apply func(context.Context, []int64, []int64) error) error {
	if len(tagIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no tag ids provided")
	}
	if err := apply(ctx, chunk, tagIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "tag chunk failed")
	}
	return nil
}

func (s *BulkService) applyListAction(ctx context.Context, chunk, listIDs []int64, apply func(context.Context, []int64, []int64) error) error {
	if len(listIDs) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "no list ids provided")
	}
	if err := apply(ctx, chunk, listIDs); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "list chunk failed")
	}
	return nil
}

// exportCSV generates the full export on the offset-0 chunk only; later
// chunks are no-ops so the caller's uniform chunk loop works unmodified.
func (s *BulkService) exportCSV(ctx context.Context, ids []int64, offset int) (string, error) {
	if offset > 0 {
		return "", nil
	}

	npaFieldID, err := s.meta.DetectNPAFieldID(ctx)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve npa field")
	}

	filename := fmt.Sprintf("export-%s.csv", uuid.NewString())
	file, err := s.storage.Create(filename)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not create export file")
	}

	if err := s.writeExport(ctx, file, ids, npaFieldID); err != nil {
		_ = file.Close()
		_ = s.storage.Delete(filename)
		return "", err
	}
	if err := file.Close(); err != nil {
		_ = s.storage.Delete(filename)
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not finalize export file")
	}

	token, _, err := s.signer.Generate(strings.TrimSuffix(filename, ".csv"), filename)
	if err != nil {
		_ = s.storage.Delete(filename)
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "could not sign export url")
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/export/%s", prefix, token), nil
}

// writeExport re-queries all target ids in bounded sub-batches, resolving
// NPA, tags and lists per batch the same way the read service does.
func (s *BulkService) writeExport(ctx context.Context, file *os.File, ids []int64, npaFieldID *int64) error {
	writer := export.NewCSVWriter(file)
	if err := writer.WriteHeader(exportHeader); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export header failed")
	}

	for start := 0; start < len(ids); start += exportBatchSize {
		stop := start + exportBatchSize
		if stop > len(ids) {
			stop = len(ids)
		}
		batch := ids[start:stop]

		rows, err := s.subscribers.FetchByIDs(ctx, batch, npaFieldID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export fetch failed")
		}
		if len(rows) == 0 {
			continue
		}

		rowIDs := make([]int64, len(rows))
		for i, row := range rows {
			rowIDs[i] = row.ID
		}
		tags, err := s.subscribers.TagsBySubscriber(ctx, rowIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export tags failed")
		}
		lists, err := s.subscribers.ListsBySubscriber(ctx, rowIDs)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export lists failed")
		}

		for _, row := range rows {
			record := []string{
				row.Email,
				derefString(row.FirstName),
				derefString(row.LastName),
				row.Status,
				derefString(row.NPA),
				joinTagNames(tags[row.ID]),
				joinListNames(lists[row.ID]),
				row.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
			}
			if err := writer.WriteRow(record); err != nil {
				return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export row failed")
			}
		}
	}

	if err := writer.Flush(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export flush failed")
	}
	return nil
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func joinTagNames(tags []models.TagRef) string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return strings.Join(names, ", ")
}

func joinListNames(lists []models.ListRef) string {
	names := make([]string, len(lists))
	for i, l := range lists {
		names[i] = l.Name
	}
	return strings.Join(names, ", ")
}
