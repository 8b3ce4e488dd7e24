package client

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dclabs/mailadmin-api/internal/models"
)

type recordingLister struct {
	mu      sync.Mutex
	filters []models.SubscriberFilter
	delay   map[int]time.Duration
	pages   map[int]*models.SubscriberPage
}

func (r *recordingLister) ListSubscribers(ctx context.Context, filter models.SubscriberFilter) (*models.SubscriberPage, *models.Pagination, error) {
	r.mu.Lock()
	r.filters = append(r.filters, filter)
	call := len(r.filters)
	r.mu.Unlock()

	if d, ok := r.delay[call]; ok {
		time.Sleep(d)
	}
	page := r.pages[call]
	if page == nil {
		page = &models.SubscriberPage{}
	}
	return page, &models.Pagination{Page: filter.Page}, nil
}

func (r *recordingLister) calls() []models.SubscriberFilter {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.SubscriberFilter, len(r.filters))
	copy(out, r.filters)
	return out
}

type resultSink struct {
	mu      sync.Mutex
	results []PageResult
}

func (s *resultSink) accept(res PageResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, res)
}

func (s *resultSink) all() []PageResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]PageResult, len(s.results))
	copy(out, s.results)
	return out
}

func TestFilterControllerDebouncesSearch(t *testing.T) {
	lister := &recordingLister{pages: map[int]*models.SubscriberPage{}}
	sink := &resultSink{}
	fc := NewFilterController(lister, 20*time.Millisecond, sink.accept)

	fc.SetPage(context.Background(), 4)
	fc.SetSearch(context.Background(), "a")
	fc.SetSearch(context.Background(), "al")
	fc.SetSearch(context.Background(), "ali")
	fc.SetSearch(context.Background(), "alice")

	time.Sleep(100 * time.Millisecond)

	calls := lister.calls()
	// One call from SetPage, then exactly one debounced search fetch.
	require.Len(t, calls, 2)
	assert.Equal(t, "alice", calls[1].Search)
	assert.Equal(t, 1, calls[1].Page)
}

func TestFilterControllerDebouncesNPA(t *testing.T) {
	lister := &recordingLister{pages: map[int]*models.SubscriberPage{}}
	sink := &resultSink{}
	fc := NewFilterController(lister, 20*time.Millisecond, sink.accept)

	fc.SetPage(context.Background(), 3)
	fc.SetNPA(context.Background(), "1", "", "")
	fc.SetNPA(context.Background(), "12", "", "")
	fc.SetNPA(context.Background(), "120", "", "")
	fc.SetNPA(context.Background(), "1201", "", "")

	time.Sleep(100 * time.Millisecond)

	calls := lister.calls()
	// One call from SetPage, then the four keystrokes collapse into one fetch.
	require.Len(t, calls, 2)
	assert.Equal(t, "1201", calls[1].NPA)
	assert.Equal(t, 1, calls[1].Page)

	// Range edits debounce the same way.
	fc.SetNPA(context.Background(), "", "10", "")
	fc.SetNPA(context.Background(), "", "100", "2000")
	time.Sleep(100 * time.Millisecond)

	calls = lister.calls()
	require.Len(t, calls, 3)
	assert.Equal(t, "100", calls[2].NPAMin)
	assert.Equal(t, "2000", calls[2].NPAMax)
}

func TestFilterControllerDiscreteChangesFetchImmediately(t *testing.T) {
	lister := &recordingLister{pages: map[int]*models.SubscriberPage{}}
	sink := &resultSink{}
	fc := NewFilterController(lister, time.Hour, sink.accept)

	fc.SetStatus(context.Background(), "unsubscribed")
	fc.SetTags(context.Background(), []int64{3, 5}, models.MatchAll)

	calls := lister.calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "unsubscribed", calls[0].Status)
	assert.Equal(t, models.MatchAll, calls[1].TagsMode)
	assert.Equal(t, []int64{3, 5}, calls[1].Tags)
}

func TestFilterControllerFilterChangeResetsPage(t *testing.T) {
	lister := &recordingLister{pages: map[int]*models.SubscriberPage{}}
	fc := NewFilterController(lister, time.Hour, func(PageResult) {})

	fc.SetPage(context.Background(), 7)
	assert.Equal(t, 7, fc.Filter().Page)

	fc.SetStatus(context.Background(), "bounced")
	assert.Equal(t, 1, fc.Filter().Page)

	fc.Refresh(context.Background())
	assert.Equal(t, 1, fc.Filter().Page)
}

func TestFilterControllerSuppressesStaleResponses(t *testing.T) {
	slowPage := &models.SubscriberPage{Total: 1}
	fastPage := &models.SubscriberPage{Total: 2}
	lister := &recordingLister{
		delay: map[int]time.Duration{1: 80 * time.Millisecond},
		pages: map[int]*models.SubscriberPage{1: slowPage, 2: fastPage},
	}
	sink := &resultSink{}
	fc := NewFilterController(lister, time.Hour, sink.accept)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		fc.SetStatus(context.Background(), "inactive") // slow, superseded in flight
	}()
	time.Sleep(20 * time.Millisecond)
	fc.SetStatus(context.Background(), "bounced")
	wg.Wait()

	results := sink.all()
	// Only the newer fetch may surface; the slow first reply is dropped.
	require.Len(t, results, 1)
	assert.Equal(t, 2, results[0].Page.Total)
}
