package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dclabs/mailadmin-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return sqlx.NewDb(db, "postgres"), mock
}

func subscriberColumns() []string {
	return []string{"id", "email", "first_name", "last_name", "status", "created_at", "npa"}
}

func TestSubscriberRepositoryList(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriberRepository(db)

	filter := models.SubscriberFilter{Status: "subscribed", Page: 1, PerPage: 2}
	plan := BuildSubscriberQuery(filter, nil)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	first := "Ada"
	mock.ExpectQuery(regexp.QuoteMeta(plan.Query)).
		WithArgs("subscribed").
		WillReturnRows(sqlmock.NewRows(subscriberColumns()).
			AddRow(1, "ada@example.com", first, nil, "subscribed", created, nil).
			AddRow(2, "bob@example.com", nil, nil, "subscribed", created, nil))
	mock.ExpectQuery(regexp.QuoteMeta(plan.CountQuery)).
		WithArgs("subscribed").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	rows, total, err := repo.List(context.Background(), filter, nil)
	require.NoError(t, err)
	assert.Equal(t, 12, total)
	require.Len(t, rows, 2)
	assert.Equal(t, "ada@example.com", rows[0].Email)
	require.NotNil(t, rows[0].FirstName)
	assert.Equal(t, "Ada", *rows[0].FirstName)
	assert.Nil(t, rows[1].FirstName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepositoryListPagePastEnd(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriberRepository(db)

	filter := models.SubscriberFilter{Page: 99, PerPage: 50}
	plan := BuildSubscriberQuery(filter, nil)

	mock.ExpectQuery(regexp.QuoteMeta(plan.Query)).
		WillReturnRows(sqlmock.NewRows(subscriberColumns()))
	mock.ExpectQuery(regexp.QuoteMeta(plan.CountQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	rows, total, err := repo.List(context.Background(), filter, nil)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepositoryFetchByIDsWithNPA(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriberRepository(db)

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	npa := "1201"
	mock.ExpectQuery("LEFT JOIN subscriber_custom_fields npa").
		WithArgs(int64(7), int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows(subscriberColumns()).
			AddRow(1, "ada@example.com", nil, nil, "subscribed", created, npa).
			AddRow(2, "bob@example.com", nil, nil, "subscribed", created, nil))

	rows, err := repo.FetchByIDs(context.Background(), []int64{1, 2}, int64Ptr(7))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0].NPA)
	assert.Equal(t, "1201", *rows[0].NPA)
	assert.Nil(t, rows[1].NPA)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepositoryFetchByIDsEmpty(t *testing.T) {
	db, _ := newMockDB(t)
	repo := NewSubscriberRepository(db)

	rows, err := repo.FetchByIDs(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Nil(t, rows)
}

func TestSubscriberRepositoryTagsBySubscriberGrouping(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriberRepository(db)

	mock.ExpectQuery("FROM subscriber_tags st JOIN tags t").
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id", "id", "name"}).
			AddRow(1, 10, "vip").
			AddRow(1, 11, "newsletter").
			AddRow(2, 10, "vip"))

	tags, err := repo.TagsBySubscriber(context.Background(), []int64{1, 2})
	require.NoError(t, err)
	require.Len(t, tags[1], 2)
	assert.Equal(t, "vip", tags[1][0].Name)
	require.Len(t, tags[2], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubscriberRepositoryCustomFieldValues(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewSubscriberRepository(db)

	mock.ExpectQuery("FROM subscriber_custom_fields").
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"subscriber_id", "custom_field_id", "value"}).
			AddRow(1, 7, "1201").
			AddRow(1, 8, "blue"))

	values, err := repo.CustomFieldValues(context.Background(), []int64{1})
	require.NoError(t, err)
	assert.Equal(t, "1201", values[1][7])
	assert.Equal(t, "blue", values[1][8])
	assert.NoError(t, mock.ExpectationsWereMet())
}
