package service

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dclabs/mailadmin-api/internal/models"
	appErrors "github.com/dclabs/mailadmin-api/pkg/errors"
	"github.com/dclabs/mailadmin-api/pkg/storage"
)

type fakeBulkRepo struct {
	addTagCalls [][]int64
	tagIDs      []int64
	unsubCalls  [][]int64
	err         error
}

func (f *fakeBulkRepo) AddTags(ctx context.Context, subscriberIDs, tagIDs []int64) error {
	f.addTagCalls = append(f.addTagCalls, subscriberIDs)
	f.tagIDs = tagIDs
	return f.err
}

func (f *fakeBulkRepo) RemoveTags(ctx context.Context, subscriberIDs, tagIDs []int64) error {
	return f.err
}

func (f *fakeBulkRepo) AddLists(ctx context.Context, subscriberIDs, listIDs []int64) error {
	return f.err
}

func (f *fakeBulkRepo) RemoveLists(ctx context.Context, subscriberIDs, listIDs []int64) error {
	return f.err
}

func (f *fakeBulkRepo) Unsubscribe(ctx context.Context, subscriberIDs []int64) error {
	f.unsubCalls = append(f.unsubCalls, subscriberIDs)
	return f.err
}

type fakeExportSource struct {
	rows       map[int64]models.SubscriberRow
	tags       map[int64][]models.TagRef
	lists      map[int64][]models.ListRef
	fetchCalls [][]int64
}

func (f *fakeExportSource) FetchByIDs(ctx context.Context, ids []int64, npaFieldID *int64) ([]models.SubscriberRow, error) {
	f.fetchCalls = append(f.fetchCalls, ids)
	var out []models.SubscriberRow
	for _, id := range ids {
		if row, ok := f.rows[id]; ok {
			out = append(out, row)
		}
	}
	return out, nil
}

func (f *fakeExportSource) TagsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.TagRef, error) {
	return f.tags, nil
}

func (f *fakeExportSource) ListsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.ListRef, error) {
	return f.lists, nil
}

type fakeDetector struct {
	id  *int64
	err error
}

func (f *fakeDetector) DetectNPAFieldID(ctx context.Context) (*int64, error) {
	return f.id, f.err
}

type fakeStorage struct {
	dir     string
	created []string
	deleted []string
}

func (f *fakeStorage) Create(filename string) (*os.File, error) {
	f.created = append(f.created, filename)
	return os.Create(filepath.Join(f.dir, filename))
}

func (f *fakeStorage) Delete(filename string) error {
	f.deleted = append(f.deleted, filename)
	return os.Remove(filepath.Join(f.dir, filename))
}

func idRange(n int) []int64 {
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	return ids
}

func newBulkFixture(t *testing.T) (*BulkService, *fakeBulkRepo, *fakeExportSource, *fakeStorage) {
	t.Helper()
	repo := &fakeBulkRepo{}
	source := &fakeExportSource{rows: map[int64]models.SubscriberRow{}}
	store := &fakeStorage{dir: t.TempDir()}
	signer := storage.NewSignedURLSigner("test-secret", time.Hour)
	svc := NewBulkService(repo, source, &fakeDetector{}, store, signer, BulkConfig{APIPrefix: "/api/v1"}, nil, nil)
	return svc, repo, source, store
}

func TestBulkServiceChunkAccounting(t *testing.T) {
	svc, repo, _, _ := newBulkFixture(t)
	ids := idRange(1230)

	res, err := svc.Execute(context.Background(), models.BulkRequest{
		Action: "add_tag", IDs: ids, TagIDs: []int64{9}, Offset: 0, Limit: 500,
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 500, res.Processed)
	assert.Equal(t, 730, res.Remaining)

	res, err = svc.Execute(context.Background(), models.BulkRequest{
		Action: "add_tag", IDs: ids, TagIDs: []int64{9}, Offset: 500, Limit: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Processed)
	assert.Equal(t, 230, res.Remaining)

	res, err = svc.Execute(context.Background(), models.BulkRequest{
		Action: "add_tag", IDs: ids, TagIDs: []int64{9}, Offset: 1000, Limit: 500,
	})
	require.NoError(t, err)
	assert.Equal(t, 1230, res.Processed)
	assert.Equal(t, 0, res.Remaining)

	require.Len(t, repo.addTagCalls, 3)
	assert.Len(t, repo.addTagCalls[0], 500)
	assert.Len(t, repo.addTagCalls[2], 230)
	assert.Equal(t, int64(1), repo.addTagCalls[0][0])
	assert.Equal(t, int64(1001), repo.addTagCalls[2][0])
	assert.Equal(t, []int64{9}, repo.tagIDs)
}

func TestBulkServiceDefaultAndMaxChunk(t *testing.T) {
	svc, repo, _, _ := newBulkFixture(t)
	ids := idRange(2000)

	res, err := svc.Execute(context.Background(), models.BulkRequest{
		Action: "add_tag", IDs: ids, TagIDs: []int64{1},
	})
	require.NoError(t, err)
	assert.Equal(t, 500, res.Processed)

	res, err = svc.Execute(context.Background(), models.BulkRequest{
		Action: "add_tag", IDs: ids, TagIDs: []int64{1}, Limit: 99999,
	})
	require.NoError(t, err)
	assert.Equal(t, 1000, res.Processed)
	require.Len(t, repo.addTagCalls, 2)
}

func TestBulkServiceOffsetPastEnd(t *testing.T) {
	svc, repo, _, store := newBulkFixture(t)

	res, err := svc.Execute(context.Background(), models.BulkRequest{
		Action: "export_csv", IDs: idRange(10), Offset: 10,
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 10, res.Processed)
	assert.Equal(t, 0, res.Remaining)
	assert.Empty(t, res.DownloadURL)
	assert.Empty(t, store.created)
	assert.Empty(t, repo.addTagCalls)
}

func TestBulkServiceUnknownAction(t *testing.T) {
	svc, _, _, _ := newBulkFixture(t)

	_, err := svc.Execute(context.Background(), models.BulkRequest{Action: "explode", IDs: idRange(1)})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrUnknownAction.Code, appErr.Code)
}

func TestBulkServiceTooManyIDs(t *testing.T) {
	svc, _, _, _ := newBulkFixture(t)

	_, err := svc.Execute(context.Background(), models.BulkRequest{
		Action: "unsubscribe", IDs: idRange(models.MaxBulkIDs + 1),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrTooManyIDs.Code, appErrors.FromError(err).Code)
}

func TestBulkServiceTagActionRequiresTagIDs(t *testing.T) {
	svc, _, _, _ := newBulkFixture(t)

	_, err := svc.Execute(context.Background(), models.BulkRequest{Action: "add_tag", IDs: idRange(5)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Execute(context.Background(), models.BulkRequest{Action: "remove_list", IDs: idRange(5)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBulkServiceUnsubscribe(t *testing.T) {
	svc, repo, _, _ := newBulkFixture(t)

	res, err := svc.Execute(context.Background(), models.BulkRequest{Action: "unsubscribe", IDs: idRange(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Processed)
	require.Len(t, repo.unsubCalls, 1)
	assert.Equal(t, []int64{1, 2, 3}, repo.unsubCalls[0])
}

func TestBulkServiceRepoFailureSurfaces(t *testing.T) {
	svc, repo, _, _ := newBulkFixture(t)
	repo.err = errors.New("deadlock")

	_, err := svc.Execute(context.Background(), models.BulkRequest{Action: "unsubscribe", IDs: idRange(3)})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestBulkServiceExportWritesFullCSVOnFirstChunk(t *testing.T) {
	svc, _, source, store := newBulkFixture(t)

	created := time.Date(2024, 5, 2, 8, 30, 0, 0, time.UTC)
	first := "Ada"
	npa := "1201"
	for _, id := range idRange(700) {
		source.rows[id] = models.SubscriberRow{
			ID: id, Email: "user@example.com", Status: "subscribed", CreatedAt: created,
		}
	}
	row := source.rows[1]
	row.FirstName = &first
	row.NPA = &npa
	source.rows[1] = row
	source.tags = map[int64][]models.TagRef{1: {{ID: 1, Name: "vip"}, {ID: 2, Name: "beta"}}}
	source.lists = map[int64][]models.ListRef{1: {{ID: 3, Name: "weekly"}}}

	res, err := svc.Execute(context.Background(), models.BulkRequest{
		Action: "export_csv", IDs: idRange(700), Offset: 0, Limit: 500,
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 500, res.Processed)
	assert.Equal(t, 200, res.Remaining)
	assert.True(t, strings.HasPrefix(res.DownloadURL, "/api/v1/export/"), res.DownloadURL)

	// The whole export is generated on the first chunk, in bounded batches.
	require.Len(t, source.fetchCalls, 2)
	assert.Len(t, source.fetchCalls[0], 500)
	assert.Len(t, source.fetchCalls[1], 200)
	require.Len(t, store.created, 1)

	file, err := os.Open(filepath.Join(store.dir, store.created[0]))
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 701)
	assert.Equal(t, []string{"email", "first_name", "last_name", "status", "npa", "tags", "lists", "created_at"}, records[0])
	assert.Equal(t, []string{"user@example.com", "Ada", "", "subscribed", "1201", "vip, beta", "weekly", "2024-05-02 08:30:00"}, records[1])
	assert.Equal(t, "", records[2][4])
}

func TestBulkServiceExportLaterChunksAreNoOps(t *testing.T) {
	svc, _, source, store := newBulkFixture(t)

	res, err := svc.Execute(context.Background(), models.BulkRequest{
		Action: "export_csv", IDs: idRange(700), Offset: 500, Limit: 500,
	})
	require.NoError(t, err)
	assert.True(t, res.OK)
	assert.Equal(t, 700, res.Processed)
	assert.Equal(t, 0, res.Remaining)
	assert.Empty(t, res.DownloadURL)
	assert.Empty(t, store.created)
	assert.Empty(t, source.fetchCalls)
}
