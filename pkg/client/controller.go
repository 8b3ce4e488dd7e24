package client

import (
	"context"
	"sync"
	"time"

	"github.com/dclabs/mailadmin-api/internal/models"
)

// DefaultDebounce is how long free-text edits settle before a fetch fires.
const DefaultDebounce = 300 * time.Millisecond

// PageResult is delivered to the controller's sink for each applied page.
type PageResult struct {
	Page       *models.SubscriberPage
	Pagination *models.Pagination
	Err        error
}

type subscriberLister interface {
	ListSubscribers(ctx context.Context, filter models.SubscriberFilter) (*models.SubscriberPage, *models.Pagination, error)
}

// FilterController owns the console's transient filter state. Discrete
// control changes (status, tags, lists, sort, bounds) reset to page 1 and
// fetch immediately; free-text search debounces. Responses are sequence
// numbered so a slow early reply can never clobber a newer one.
type FilterController struct {
	client   subscriberLister
	debounce time.Duration
	onPage   func(PageResult)

	mu     sync.Mutex
	filter models.SubscriberFilter
	seq    uint64
	timer  *time.Timer
}

// NewFilterController constructs a controller delivering results to onPage.
// A zero debounce falls back to DefaultDebounce.
func NewFilterController(c subscriberLister, debounce time.Duration, onPage func(PageResult)) *FilterController {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &FilterController{
		client:   c,
		debounce: debounce,
		onPage:   onPage,
		filter:   models.SubscriberFilter{Page: 1},
	}
}

// Filter returns a copy of the current filter state.
func (fc *FilterController) Filter() models.SubscriberFilter {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.filter
}

// SetSearch updates the free-text term, resets paging and schedules a
// debounced fetch. Rapid successive calls collapse into one request.
func (fc *FilterController) SetSearch(ctx context.Context, term string) {
	fc.applyDebounced(ctx, func(f *models.SubscriberFilter) { f.Search = term })
}

// SetStatus applies a status filter immediately.
func (fc *FilterController) SetStatus(ctx context.Context, status string) {
	fc.applyAndFetch(ctx, func(f *models.SubscriberFilter) { f.Status = status })
}

// SetTags applies a tag membership filter immediately.
func (fc *FilterController) SetTags(ctx context.Context, ids []int64, mode models.MatchMode) {
	fc.applyAndFetch(ctx, func(f *models.SubscriberFilter) {
		f.Tags = ids
		f.TagsMode = mode
	})
}

// SetLists applies a list membership filter immediately.
func (fc *FilterController) SetLists(ctx context.Context, ids []int64, mode models.MatchMode) {
	fc.applyAndFetch(ctx, func(f *models.SubscriberFilter) {
		f.Lists = ids
		f.ListsMode = mode
	})
}

// SetNPA updates exact/range NPA criteria. NPA values are typed, so edits
// debounce like search; exact wins over the range when both are set.
func (fc *FilterController) SetNPA(ctx context.Context, exact, min, max string) {
	fc.applyDebounced(ctx, func(f *models.SubscriberFilter) {
		f.NPA = exact
		f.NPAMin = min
		f.NPAMax = max
	})
}

// SetSort applies sort column and direction immediately.
func (fc *FilterController) SetSort(ctx context.Context, column, order string) {
	fc.applyAndFetch(ctx, func(f *models.SubscriberFilter) {
		f.Sort = column
		f.Order = order
	})
}

// SetPage navigates without resetting the rest of the filter.
func (fc *FilterController) SetPage(ctx context.Context, page int) {
	fc.mu.Lock()
	if page < 1 {
		page = 1
	}
	fc.filter.Page = page
	fc.mu.Unlock()
	fc.dispatch(ctx)
}

// Refresh re-fetches the current page, e.g. after a bulk mutation.
func (fc *FilterController) Refresh(ctx context.Context) {
	fc.dispatch(ctx)
}

// applyDebounced mutates the filter, resets paging and (re)schedules the
// debounce timer; rapid successive edits collapse into one fetch.
func (fc *FilterController) applyDebounced(ctx context.Context, mutate func(*models.SubscriberFilter)) {
	fc.mu.Lock()
	mutate(&fc.filter)
	fc.filter.Page = 1
	if fc.timer != nil {
		fc.timer.Stop()
	}
	fc.timer = time.AfterFunc(fc.debounce, func() {
		fc.dispatch(ctx)
	})
	fc.mu.Unlock()
}

func (fc *FilterController) applyAndFetch(ctx context.Context, mutate func(*models.SubscriberFilter)) {
	fc.mu.Lock()
	mutate(&fc.filter)
	fc.filter.Page = 1
	if fc.timer != nil {
		fc.timer.Stop()
		fc.timer = nil
	}
	fc.mu.Unlock()
	fc.dispatch(ctx)
}

// dispatch snapshots the filter under a fresh sequence number and fetches.
// The result is dropped unless its sequence is still the newest when it
// lands.
func (fc *FilterController) dispatch(ctx context.Context) {
	fc.mu.Lock()
	fc.seq++
	seq := fc.seq
	snapshot := fc.filter
	fc.mu.Unlock()

	page, pagination, err := fc.client.ListSubscribers(ctx, snapshot)

	fc.mu.Lock()
	stale := seq != fc.seq
	fc.mu.Unlock()
	if stale || fc.onPage == nil {
		return
	}
	fc.onPage(PageResult{Page: page, Pagination: pagination, Err: err})
}
