package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/dclabs/mailadmin-api/internal/models"
)

// MetaRepository reads the tag/list/custom-field catalogs.
type MetaRepository struct {
	db *sqlx.DB
}

// NewMetaRepository constructs a MetaRepository.
func NewMetaRepository(db *sqlx.DB) *MetaRepository {
	return &MetaRepository{db: db}
}

// Tags returns all tags ordered by name.
func (r *MetaRepository) Tags(ctx context.Context) ([]models.TagRef, error) {
	var tags []models.TagRef
	if err := r.db.SelectContext(ctx, &tags, "SELECT id, name FROM tags ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

// Lists returns all lists ordered by name.
func (r *MetaRepository) Lists(ctx context.Context) ([]models.ListRef, error) {
	var lists []models.ListRef
	if err := r.db.SelectContext(ctx, &lists, "SELECT id, name FROM lists ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	return lists, nil
}

// CustomFields returns all custom fields ordered by name.
func (r *MetaRepository) CustomFields(ctx context.Context) ([]models.CustomField, error) {
	var fields []models.CustomField
	if err := r.db.SelectContext(ctx, &fields, "SELECT id, name, type FROM custom_fields ORDER BY name ASC"); err != nil {
		return nil, fmt.Errorf("list custom fields: %w", err)
	}
	return fields, nil
}

// DetectNPAFieldID finds the custom field whose name case-insensitively
// equals "npa". Returns nil when no such field exists.
func (r *MetaRepository) DetectNPAFieldID(ctx context.Context) (*int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id, "SELECT id FROM custom_fields WHERE LOWER(name) = 'npa' LIMIT 1")
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("detect npa field: %w", err)
	}
	return &id, nil
}
