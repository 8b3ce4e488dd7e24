package repository

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dclabs/mailadmin-api/internal/models"
)

// QueryPlan is the parameterized main query for one subscriber page plus the
// matching count query (same predicates, no limit/offset).
type QueryPlan struct {
	Query      string
	Args       []interface{}
	CountQuery string
	CountArgs  []interface{}
}

const (
	defaultPerPage = 50
	maxPerPage     = 200
)

var sortColumns = map[string]string{
	"email":      "s.email",
	"first_name": "s.first_name",
	"last_name":  "s.last_name",
	"status":     "s.status",
	"created_at": "s.created_at",
}

// BuildSubscriberQuery translates a filter into a query plan. npaFieldID is
// the resolved NPA custom field; NPA predicates and npa sorting are silently
// dropped when it is nil. The function is pure: no storage access.
func BuildSubscriberQuery(f models.SubscriberFilter, npaFieldID *int64) QueryPlan {
	args := make([]interface{}, 0, 8)

	npaSelect := "NULL AS npa"
	npaJoin := ""
	if npaFieldID != nil {
		args = append(args, *npaFieldID)
		npaJoin = fmt.Sprintf("LEFT JOIN subscriber_custom_fields npa ON npa.subscriber_id = s.id AND npa.custom_field_id = $%d", len(args))
		npaSelect = "npa.value AS npa"
	}

	conds := []string{"1=1"}

	if f.Search != "" {
		p := len(args) + 1
		args = append(args, "%"+escapeLike(strings.ToLower(f.Search))+"%")
		conds = append(conds, fmt.Sprintf("(LOWER(s.email) LIKE $%d OR LOWER(s.first_name) LIKE $%d OR LOWER(s.last_name) LIKE $%d)", p, p, p))
	}

	if f.Status != "" {
		args = append(args, f.Status)
		conds = append(conds, fmt.Sprintf("s.status = $%d", len(args)))
	}

	// Exact NPA takes precedence over the min/max range when both are set.
	if npaFieldID != nil {
		switch {
		case f.NPA != "":
			if v, err := strconv.ParseUint(f.NPA, 10, 32); err == nil {
				args = append(args, int64(v))
				conds = append(conds, fmt.Sprintf("CAST(npa.value AS INTEGER) = $%d", len(args)))
			}
		default:
			min, minOK := parseBound(f.NPAMin)
			max, maxOK := parseBound(f.NPAMax)
			switch {
			case minOK && maxOK:
				args = append(args, min, max)
				conds = append(conds, fmt.Sprintf("CAST(npa.value AS INTEGER) BETWEEN $%d AND $%d", len(args)-1, len(args)))
			case minOK:
				args = append(args, min)
				conds = append(conds, fmt.Sprintf("CAST(npa.value AS INTEGER) >= $%d", len(args)))
			case maxOK:
				args = append(args, max)
				conds = append(conds, fmt.Sprintf("CAST(npa.value AS INTEGER) <= $%d", len(args)))
			}
		}
	}

	if len(f.Tags) > 0 {
		conds = append(conds, membershipCond("subscriber_tags", "tag_id", f.Tags, f.TagsMode, &args))
	}
	if len(f.Lists) > 0 {
		conds = append(conds, membershipCond("subscriber_lists", "list_id", f.Lists, f.ListsMode, &args))
	}

	where := strings.Join(conds, " AND ")

	orderBy := orderClause(f.Sort, f.Order, npaFieldID != nil)

	page := f.Page
	if page < 1 {
		page = 1
	}
	perPage := f.PerPage
	if perPage <= 0 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}
	offset := (page - 1) * perPage

	query := fmt.Sprintf(`SELECT s.id, s.email, s.first_name, s.last_name, s.status, s.created_at, %s
        FROM subscribers s %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		npaSelect, npaJoin, where, orderBy, perPage, offset)

	countQuery := fmt.Sprintf("SELECT COUNT(DISTINCT s.id) FROM subscribers s %s WHERE %s", npaJoin, where)

	countArgs := make([]interface{}, len(args))
	copy(countArgs, args)

	return QueryPlan{Query: query, Args: args, CountQuery: countQuery, CountArgs: countArgs}
}

// membershipCond builds the any/all subquery predicate for a many-to-many
// relation. In "all" mode the counted rows are restricted to the listed ids
// first, so unrelated memberships never disqualify a match.
func membershipCond(table, column string, ids []int64, mode models.MatchMode, args *[]interface{}) string {
	placeholders := make([]string, len(ids))
	for i, id := range ids {
		*args = append(*args, id)
		placeholders[i] = fmt.Sprintf("$%d", len(*args))
	}
	in := strings.Join(placeholders, ",")

	if mode == models.MatchAll {
		*args = append(*args, len(ids))
		return fmt.Sprintf("s.id IN (SELECT subscriber_id FROM %s WHERE %s IN (%s) GROUP BY subscriber_id HAVING COUNT(DISTINCT %s) = $%d)",
			table, column, in, column, len(*args))
	}
	return fmt.Sprintf("s.id IN (SELECT subscriber_id FROM %s WHERE %s IN (%s))", table, column, in)
}

func orderClause(sort, order string, npaResolved bool) string {
	dir := strings.ToUpper(order)
	if dir != "ASC" && dir != "DESC" {
		dir = "DESC"
	}

	if sort == "npa" {
		if npaResolved {
			return "CAST(npa.value AS INTEGER) " + dir
		}
		return "s.created_at " + dir
	}
	column, ok := sortColumns[sort]
	if !ok {
		column = "s.created_at"
	}
	return column + " " + dir
}

// escapeLike neutralizes LIKE metacharacters in user-supplied search text.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "%", `\%`)
	s = strings.ReplaceAll(s, "_", `\_`)
	return s
}

func parseBound(raw string) (int64, bool) {
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, false
	}
	return int64(v), true
}
