package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dclabs/mailadmin-api/internal/models"
)

func int64Ptr(v int64) *int64 { return &v }

func TestBuildSubscriberQueryDefaults(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{}, nil)

	assert.Contains(t, plan.Query, "NULL AS npa")
	assert.NotContains(t, plan.Query, "LEFT JOIN subscriber_custom_fields")
	assert.Contains(t, plan.Query, "ORDER BY s.created_at DESC")
	assert.Contains(t, plan.Query, "LIMIT 50 OFFSET 0")
	assert.Empty(t, plan.Args)
	assert.Contains(t, plan.CountQuery, "COUNT(DISTINCT s.id)")
	assert.Empty(t, plan.CountArgs)
}

func TestBuildSubscriberQuerySearchEscapesLikeMetacharacters(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{Search: "50%_Off"}, nil)

	require.Len(t, plan.Args, 1)
	assert.Equal(t, `%50\%\_off%`, plan.Args[0])
	assert.Contains(t, plan.Query, "LOWER(s.email) LIKE $1")
	assert.Contains(t, plan.Query, "LOWER(s.first_name) LIKE $1")
	assert.Contains(t, plan.Query, "LOWER(s.last_name) LIKE $1")
}

func TestBuildSubscriberQueryStatus(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{Status: "unsubscribed"}, nil)

	require.Len(t, plan.Args, 1)
	assert.Equal(t, "unsubscribed", plan.Args[0])
	assert.Contains(t, plan.Query, "s.status = $1")
}

func TestBuildSubscriberQueryNPAJoinArgComesFirst(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{Status: "subscribed"}, int64Ptr(7))

	require.Len(t, plan.Args, 2)
	assert.Equal(t, int64(7), plan.Args[0])
	assert.Equal(t, "subscribed", plan.Args[1])
	assert.Contains(t, plan.Query, "npa.custom_field_id = $1")
	assert.Contains(t, plan.Query, "s.status = $2")
	assert.Contains(t, plan.Query, "npa.value AS npa")
	assert.Contains(t, plan.CountQuery, "LEFT JOIN subscriber_custom_fields")
}

func TestBuildSubscriberQueryNPAExactWinsOverRange(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{
		NPA:    "1200",
		NPAMin: "1000",
		NPAMax: "2000",
	}, int64Ptr(7))

	require.Len(t, plan.Args, 2)
	assert.Equal(t, int64(1200), plan.Args[1])
	assert.Contains(t, plan.Query, "CAST(npa.value AS INTEGER) = $2")
	assert.NotContains(t, plan.Query, "BETWEEN")
}

func TestBuildSubscriberQueryNPARange(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{NPAMin: "1000", NPAMax: "2000"}, int64Ptr(7))

	require.Len(t, plan.Args, 3)
	assert.Equal(t, int64(1000), plan.Args[1])
	assert.Equal(t, int64(2000), plan.Args[2])
	assert.Contains(t, plan.Query, "CAST(npa.value AS INTEGER) BETWEEN $2 AND $3")
}

func TestBuildSubscriberQueryNPAOneSidedBounds(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{NPAMin: "1000"}, int64Ptr(7))
	assert.Contains(t, plan.Query, "CAST(npa.value AS INTEGER) >= $2")

	plan = BuildSubscriberQuery(models.SubscriberFilter{NPAMax: "2000"}, int64Ptr(7))
	assert.Contains(t, plan.Query, "CAST(npa.value AS INTEGER) <= $2")
}

func TestBuildSubscriberQueryUnparsableNPAIsDropped(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{NPA: "not-a-number"}, int64Ptr(7))

	require.Len(t, plan.Args, 1) // only the join arg
	assert.NotContains(t, plan.Query, "CAST(npa.value AS INTEGER) =")
}

func TestBuildSubscriberQueryNPAIgnoredWithoutField(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{NPA: "1200", NPAMin: "1", NPAMax: "2"}, nil)

	assert.Empty(t, plan.Args)
	assert.NotContains(t, plan.Query, "npa.value")
}

func TestBuildSubscriberQueryTagsAnyMode(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{
		Tags:     []int64{3, 5},
		TagsMode: models.MatchAny,
	}, nil)

	require.Len(t, plan.Args, 2)
	assert.Equal(t, int64(3), plan.Args[0])
	assert.Equal(t, int64(5), plan.Args[1])
	assert.Contains(t, plan.Query, "s.id IN (SELECT subscriber_id FROM subscriber_tags WHERE tag_id IN ($1,$2))")
	assert.NotContains(t, plan.Query, "HAVING")
}

func TestBuildSubscriberQueryTagsAllMode(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{
		Tags:     []int64{3, 5},
		TagsMode: models.MatchAll,
	}, nil)

	require.Len(t, plan.Args, 3)
	assert.Equal(t, 2, plan.Args[2])
	assert.Contains(t, plan.Query,
		"s.id IN (SELECT subscriber_id FROM subscriber_tags WHERE tag_id IN ($1,$2) GROUP BY subscriber_id HAVING COUNT(DISTINCT tag_id) = $3)")
}

func TestBuildSubscriberQueryListsAllMode(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{
		Lists:     []int64{9},
		ListsMode: models.MatchAll,
	}, nil)

	assert.Contains(t, plan.Query,
		"s.id IN (SELECT subscriber_id FROM subscriber_lists WHERE list_id IN ($1) GROUP BY subscriber_id HAVING COUNT(DISTINCT list_id) = $2)")
}

func TestBuildSubscriberQuerySortAllowlist(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{Sort: "email", Order: "asc"}, nil)
	assert.Contains(t, plan.Query, "ORDER BY s.email ASC")

	// Unknown columns and directions fall back to safe defaults.
	plan = BuildSubscriberQuery(models.SubscriberFilter{Sort: "password; DROP TABLE", Order: "sideways"}, nil)
	assert.Contains(t, plan.Query, "ORDER BY s.created_at DESC")
}

func TestBuildSubscriberQuerySortNPA(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{Sort: "npa", Order: "asc"}, int64Ptr(7))
	assert.Contains(t, plan.Query, "ORDER BY CAST(npa.value AS INTEGER) ASC")

	plan = BuildSubscriberQuery(models.SubscriberFilter{Sort: "npa", Order: "asc"}, nil)
	assert.Contains(t, plan.Query, "ORDER BY s.created_at ASC")
}

func TestBuildSubscriberQueryPagination(t *testing.T) {
	plan := BuildSubscriberQuery(models.SubscriberFilter{Page: 3, PerPage: 25}, nil)
	assert.Contains(t, plan.Query, "LIMIT 25 OFFSET 50")

	plan = BuildSubscriberQuery(models.SubscriberFilter{Page: -1, PerPage: 10000}, nil)
	assert.Contains(t, plan.Query, "LIMIT 200 OFFSET 0")

	assert.NotContains(t, plan.CountQuery, "LIMIT")
}
