package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/dclabs/mailadmin-api/internal/models"
)

// BulkRepository applies chunked mutations to subscriber memberships and
// status. Inserts are idempotent (ON CONFLICT DO NOTHING) so re-applying a
// chunk, or two operators racing the same ids, never duplicates rows.
type BulkRepository struct {
	db *sqlx.DB
}

// NewBulkRepository constructs a BulkRepository.
func NewBulkRepository(db *sqlx.DB) *BulkRepository {
	return &BulkRepository{db: db}
}

// AddTags inserts the full (subscriber x tag) cross product, skipping pairs
// that already exist.
func (r *BulkRepository) AddTags(ctx context.Context, subscriberIDs, tagIDs []int64) error {
	if len(subscriberIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}

	values := make([]string, 0, len(subscriberIDs)*len(tagIDs))
	args := make([]interface{}, 0, len(subscriberIDs)*len(tagIDs)*2)
	for _, sid := range subscriberIDs {
		for _, tid := range tagIDs {
			args = append(args, sid, tid)
			values = append(values, fmt.Sprintf("($%d, $%d, NOW())", len(args)-1, len(args)))
		}
	}

	query := "INSERT INTO subscriber_tags (subscriber_id, tag_id, created_at) VALUES " +
		strings.Join(values, ", ") + " ON CONFLICT (subscriber_id, tag_id) DO NOTHING"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add tags: %w", err)
	}
	return nil
}

// RemoveTags deletes every matching (subscriber, tag) pair regardless of
// prior existence.
func (r *BulkRepository) RemoveTags(ctx context.Context, subscriberIDs, tagIDs []int64) error {
	if len(subscriberIDs) == 0 || len(tagIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM subscriber_tags WHERE subscriber_id IN (?) AND tag_id IN (?)", subscriberIDs, tagIDs)
	if err != nil {
		return fmt.Errorf("build remove tags query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("remove tags: %w", err)
	}
	return nil
}

// AddLists inserts list memberships with status 'subscribed' for the full
// (subscriber x list) cross product.
func (r *BulkRepository) AddLists(ctx context.Context, subscriberIDs, listIDs []int64) error {
	if len(subscriberIDs) == 0 || len(listIDs) == 0 {
		return nil
	}

	values := make([]string, 0, len(subscriberIDs)*len(listIDs))
	args := make([]interface{}, 0, len(subscriberIDs)*len(listIDs)*3)
	for _, sid := range subscriberIDs {
		for _, lid := range listIDs {
			args = append(args, sid, lid, string(models.StatusSubscribed))
			values = append(values, fmt.Sprintf("($%d, $%d, $%d, NOW(), NOW())", len(args)-2, len(args)-1, len(args)))
		}
	}

	query := "INSERT INTO subscriber_lists (subscriber_id, list_id, status, created_at, updated_at) VALUES " +
		strings.Join(values, ", ") + " ON CONFLICT (subscriber_id, list_id) DO NOTHING"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("add lists: %w", err)
	}
	return nil
}

// RemoveLists deletes every matching (subscriber, list) pair.
func (r *BulkRepository) RemoveLists(ctx context.Context, subscriberIDs, listIDs []int64) error {
	if len(subscriberIDs) == 0 || len(listIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In("DELETE FROM subscriber_lists WHERE subscriber_id IN (?) AND list_id IN (?)", subscriberIDs, listIDs)
	if err != nil {
		return fmt.Errorf("build remove lists query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("remove lists: %w", err)
	}
	return nil
}

// Unsubscribe sets status to 'unsubscribed' for every id, unconditionally.
func (r *BulkRepository) Unsubscribe(ctx context.Context, subscriberIDs []int64) error {
	if len(subscriberIDs) == 0 {
		return nil
	}

	query, args, err := sqlx.In("UPDATE subscribers SET status = ?, updated_at = NOW() WHERE id IN (?)",
		string(models.StatusUnsubscribed), subscriberIDs)
	if err != nil {
		return fmt.Errorf("build unsubscribe query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...); err != nil {
		return fmt.Errorf("unsubscribe: %w", err)
	}
	return nil
}
