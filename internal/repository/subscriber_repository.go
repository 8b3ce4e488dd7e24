package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dclabs/mailadmin-api/internal/models"
)

// SubscriberRepository reads subscriber pages and their satellite
// memberships. Tag/list/custom-field lookups are separate round-trips so the
// main query never multiplies rows across the many-to-many joins.
type SubscriberRepository struct {
	db *sqlx.DB
}

// NewSubscriberRepository constructs a SubscriberRepository.
func NewSubscriberRepository(db *sqlx.DB) *SubscriberRepository {
	return &SubscriberRepository{db: db}
}

// List runs the query plan for one page of base rows and the matching total.
func (r *SubscriberRepository) List(ctx context.Context, filter models.SubscriberFilter, npaFieldID *int64) ([]models.SubscriberRow, int, error) {
	plan := BuildSubscriberQuery(filter, npaFieldID)

	var rows []models.SubscriberRow
	if err := r.db.SelectContext(ctx, &rows, plan.Query, plan.Args...); err != nil {
		return nil, 0, fmt.Errorf("list subscribers: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, plan.CountQuery, plan.CountArgs...); err != nil {
		return nil, 0, fmt.Errorf("count subscribers: %w", err)
	}
	return rows, total, nil
}

// FetchByIDs returns base rows (including the NPA value when resolved) for an
// explicit id set, used by the export path in bounded sub-batches.
func (r *SubscriberRepository) FetchByIDs(ctx context.Context, ids []int64, npaFieldID *int64) ([]models.SubscriberRow, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var (
		query string
		args  []interface{}
		err   error
	)
	if npaFieldID != nil {
		query, args, err = sqlx.In(`SELECT s.id, s.email, s.first_name, s.last_name, s.status, s.created_at, npa.value AS npa
            FROM subscribers s
            LEFT JOIN subscriber_custom_fields npa ON npa.subscriber_id = s.id AND npa.custom_field_id = ?
            WHERE s.id IN (?)`, *npaFieldID, ids)
	} else {
		query, args, err = sqlx.In(`SELECT s.id, s.email, s.first_name, s.last_name, s.status, s.created_at, NULL AS npa
            FROM subscribers s WHERE s.id IN (?)`, ids)
	}
	if err != nil {
		return nil, fmt.Errorf("build fetch query: %w", err)
	}

	var rows []models.SubscriberRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch subscribers: %w", err)
	}
	return rows, nil
}

type tagMembershipRow struct {
	SubscriberID int64  `db:"subscriber_id"`
	ID           int64  `db:"id"`
	Name         string `db:"name"`
}

// TagsBySubscriber fetches tag memberships for the given ids, grouped by
// subscriber id.
func (r *SubscriberRepository) TagsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.TagRef, error) {
	result := make(map[int64][]models.TagRef)
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT st.subscriber_id, t.id, t.name
        FROM subscriber_tags st JOIN tags t ON t.id = st.tag_id
        WHERE st.subscriber_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build tags query: %w", err)
	}

	var rows []tagMembershipRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch subscriber tags: %w", err)
	}
	for _, row := range rows {
		result[row.SubscriberID] = append(result[row.SubscriberID], models.TagRef{ID: row.ID, Name: row.Name})
	}
	return result, nil
}

// ListsBySubscriber fetches list memberships for the given ids, grouped by
// subscriber id.
func (r *SubscriberRepository) ListsBySubscriber(ctx context.Context, ids []int64) (map[int64][]models.ListRef, error) {
	result := make(map[int64][]models.ListRef)
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT sl.subscriber_id, l.id, l.name
        FROM subscriber_lists sl JOIN lists l ON l.id = sl.list_id
        WHERE sl.subscriber_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build lists query: %w", err)
	}

	var rows []tagMembershipRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch subscriber lists: %w", err)
	}
	for _, row := range rows {
		result[row.SubscriberID] = append(result[row.SubscriberID], models.ListRef{ID: row.ID, Name: row.Name})
	}
	return result, nil
}

type customValueRow struct {
	SubscriberID  int64  `db:"subscriber_id"`
	CustomFieldID int64  `db:"custom_field_id"`
	Value         string `db:"value"`
}

// CustomFieldValues fetches the sparse custom-field mapping for the given
// ids, grouped by subscriber id.
func (r *SubscriberRepository) CustomFieldValues(ctx context.Context, ids []int64) (map[int64]map[int64]string, error) {
	result := make(map[int64]map[int64]string)
	if len(ids) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(`SELECT subscriber_id, custom_field_id, value
        FROM subscriber_custom_fields WHERE subscriber_id IN (?)`, ids)
	if err != nil {
		return nil, fmt.Errorf("build custom fields query: %w", err)
	}

	var rows []customValueRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("fetch custom field values: %w", err)
	}
	for _, row := range rows {
		if result[row.SubscriberID] == nil {
			result[row.SubscriberID] = make(map[int64]string)
		}
		result[row.SubscriberID][row.CustomFieldID] = row.Value
	}
	return result, nil
}
