package repository

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetaRepositoryDetectNPAFieldID(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetaRepository(db)

	mock.ExpectQuery("SELECT id FROM custom_fields WHERE LOWER\\(name\\) = 'npa'").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	id, err := repo.DetectNPAFieldID(context.Background())
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, int64(7), *id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetaRepositoryDetectNPAFieldIDMissing(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetaRepository(db)

	mock.ExpectQuery("SELECT id FROM custom_fields WHERE LOWER\\(name\\) = 'npa'").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	id, err := repo.DetectNPAFieldID(context.Background())
	require.NoError(t, err)
	assert.Nil(t, id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMetaRepositoryTags(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewMetaRepository(db)

	mock.ExpectQuery("SELECT id, name FROM tags ORDER BY name ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(2, "newsletter").
			AddRow(1, "vip"))

	tags, err := repo.Tags(context.Background())
	require.NoError(t, err)
	require.Len(t, tags, 2)
	assert.Equal(t, "newsletter", tags[0].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}
