package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dclabs/mailadmin-api/internal/models"
)

type fakeSubscriberRepo struct {
	rows       []models.SubscriberRow
	total      int
	gotFilter  models.SubscriberFilter
	gotNPA     *int64
	tags       map[int64][]models.TagRef
	lists      map[int64][]models.ListRef
	values     map[int64]map[int64]string
	listErr    error
	satellites int
}

func (f *fakeSubscriberRepo) List(ctx context.Context, filter models.SubscriberFilter, npaFieldID *int64) ([]models.SubscriberRow, int, error) {
	f.gotFilter = filter
	f.gotNPA = npaFieldID
	return f.rows, f.total, f.listErr
}

func (f *fakeSubscriberRepo) TagsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.TagRef, error) {
	f.satellites++
	return f.tags, nil
}

func (f *fakeSubscriberRepo) ListsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.ListRef, error) {
	f.satellites++
	return f.lists, nil
}

func (f *fakeSubscriberRepo) CustomFieldValues(ctx context.Context, ids []int64) (map[int64]map[int64]string, error) {
	f.satellites++
	return f.values, nil
}

func TestSubscriberServiceListAssemblesSatellites(t *testing.T) {
	repo := &fakeSubscriberRepo{
		rows: []models.SubscriberRow{
			{ID: 2, Email: "b@example.com"},
			{ID: 1, Email: "a@example.com"},
		},
		total:  42,
		tags:   map[int64][]models.TagRef{1: {{ID: 10, Name: "vip"}}},
		lists:  map[int64][]models.ListRef{2: {{ID: 20, Name: "weekly"}}},
		values: map[int64]map[int64]string{1: {7: "1201"}},
	}
	svc := NewSubscriberService(repo, &fakeDetector{}, nil)

	page, pagination, err := svc.List(context.Background(), models.SubscriberFilter{Page: 2, PerPage: 10})
	require.NoError(t, err)
	assert.Equal(t, 42, page.Total)
	assert.Equal(t, 42, pagination.TotalCount)
	assert.Equal(t, 2, pagination.Page)
	require.Len(t, page.Items, 2)

	// Row order from the repository is preserved.
	assert.Equal(t, int64(2), page.Items[0].ID)
	assert.Equal(t, int64(1), page.Items[1].ID)

	assert.Equal(t, "weekly", page.Items[0].Lists[0].Name)
	assert.Empty(t, page.Items[0].Tags)
	assert.Equal(t, "vip", page.Items[1].Tags[0].Name)
	assert.Equal(t, "1201", page.Items[1].CustomFields[7])

	// Missing satellites come back as empty, not nil.
	assert.NotNil(t, page.Items[0].Tags)
	assert.NotNil(t, page.Items[0].CustomFields)
	assert.NotNil(t, page.Items[1].Lists)
}

func TestSubscriberServiceListEmptyPageSkipsSatellites(t *testing.T) {
	repo := &fakeSubscriberRepo{total: 17}
	svc := NewSubscriberService(repo, &fakeDetector{}, nil)

	page, _, err := svc.List(context.Background(), models.SubscriberFilter{Page: 99})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, 17, page.Total)
	assert.Zero(t, repo.satellites)
}

func TestSubscriberServiceListClampsPaging(t *testing.T) {
	repo := &fakeSubscriberRepo{}
	svc := NewSubscriberService(repo, &fakeDetector{}, nil)

	_, _, err := svc.List(context.Background(), models.SubscriberFilter{Page: -3, PerPage: 9000})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.gotFilter.Page)
	assert.Equal(t, 200, repo.gotFilter.PerPage)
}

func TestSubscriberServiceListResolvesNPAField(t *testing.T) {
	repo := &fakeSubscriberRepo{}
	detected := int64(7)
	svc := NewSubscriberService(repo, &fakeDetector{id: &detected}, nil)

	_, _, err := svc.List(context.Background(), models.SubscriberFilter{})
	require.NoError(t, err)
	require.NotNil(t, repo.gotNPA)
	assert.Equal(t, int64(7), *repo.gotNPA)

	// An explicit override skips detection.
	override := int64(9)
	_, _, err = svc.List(context.Background(), models.SubscriberFilter{NPAFieldID: &override})
	require.NoError(t, err)
	assert.Equal(t, int64(9), *repo.gotNPA)
}

func TestSubscriberServiceListRepoError(t *testing.T) {
	repo := &fakeSubscriberRepo{listErr: errors.New("boom")}
	svc := NewSubscriberService(repo, &fakeDetector{}, nil)

	_, _, err := svc.List(context.Background(), models.SubscriberFilter{})
	require.Error(t, err)
}
