// Copyright (c) 2026 Inkwell. All rights reserved.

package comic

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/pkg/pagination"
)

// # Search DSL
//
// A search request is a boolean combination of typed filters. The whole
// request compiles into a single SELECT: direct fields become column
// predicates, many-to-many fields (credits, tags, containers) become
// EXISTS subqueries. Results are never post-filtered.

// Match modes across top-level filters.
const (
	MatchAll = "all"
	MatchAny = "any"
)

// Filter operators.
const (
	OpEqual          = "equal"
	OpNotEqual       = "not_equal"
	OpContains       = "contains"
	OpDoesNotContain = "does_not_contain"
	OpMustContain    = "must_contain"
	OpIsEmpty        = "is_empty"
	OpIsNotEmpty     = "is_not_empty"
)

// SearchFilter is one {field, operator, value} clause.
type SearchFilter struct {
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// SearchRequest is the POST /comics/search body.
type SearchRequest struct {
	Match     string         `json:"match"`
	Filters   []SearchFilter `json:"filters"`
	SortBy    string         `json:"sort_by"`
	SortOrder string         `json:"sort_order"`
	Limit     int            `json:"limit"`
	Offset    int            `json:"offset"`
}

// Column-backed fields on the joined select (c = comics, v = volumes,
// s = series, l = libraries).
var searchColumns = map[string]string{
	"library":      "l.name",
	"series":       "s.name",
	"number":       "c.number",
	"title":        "c.title",
	"publisher":    "c.publisher",
	"imprint":      "c.imprint",
	"format":       "c.format",
	"series_group": "c.series_group",
	"story_arc":    "c.story_arc",
}

// Numeric column fields.
var searchNumericColumns = map[string]string{
	"volume": "v.volume_number",
	"year":   "c.year",
}

// Credit-role fields, mapped to the stored role identifier.
var searchRoles = map[string]string{
	"writer":       "writer",
	"penciller":    "penciller",
	"inker":        "inker",
	"colorist":     "colorist",
	"letterer":     "letterer",
	"cover_artist": "cover_artist",
	"editor":       "editor",
}

// Tag fields, mapped to their join table and entity table.
var searchTags = map[string][2]string{
	"character": {"comic_characters", "characters"},
	"team":      {"comic_teams", "teams"},
	"location":  {"comic_locations", "locations"},
	"genre":     {"comic_genres", "genres"},
}

// Sortable columns.
var searchSorts = map[string]string{
	"created":    "c.created_at",
	"updated":    "c.updated_at",
	"year":       "c.year",
	"series":     "s.name",
	"title":      "c.title",
	"page_count": "c.page_count",
}

// Normalize validates the request and applies limit/offset bounds.
func (r *SearchRequest) Normalize() error {
	switch r.Match {
	case "":
		r.Match = MatchAll
	case MatchAll, MatchAny:
	default:
		return apperr.ValidationError(fmt.Sprintf("unknown match mode %q", r.Match))
	}

	if r.Limit <= 0 || r.Limit > pagination.SearchMaxSize {
		r.Limit = pagination.SearchMaxSize
	}
	if r.Offset < 0 {
		return apperr.ValidationError("offset must not be negative")
	}

	if r.SortBy == "" {
		r.SortBy = "created"
	}
	if _, ok := searchSorts[r.SortBy]; !ok {
		return apperr.ValidationError(fmt.Sprintf("unknown sort field %q", r.SortBy))
	}
	switch r.SortOrder {
	case "":
		r.SortOrder = "desc"
	case "asc", "desc":
	default:
		return apperr.ValidationError(fmt.Sprintf("unknown sort order %q", r.SortOrder))
	}

	return nil
}

// OrderBy renders the validated ORDER BY clause.
func (r SearchRequest) OrderBy() string {
	return searchSorts[r.SortBy] + " " + strings.ToUpper(r.SortOrder) + ", c.id ASC"
}

// Compile turns the filters into one WHERE fragment. The viewer is
// needed for the pull_list field, which is scoped to the caller's own
// lists.
func (r SearchRequest) Compile(viewer policy.Viewer) (policy.Fragment, error) {
	if len(r.Filters) == 0 {
		return policy.Always(), nil
	}

	joiner := " AND "
	if r.Match == MatchAny {
		joiner = " OR "
	}

	parts := make([]string, 0, len(r.Filters))
	var args []any
	for _, filter := range r.Filters {
		fragment, err := compileFilter(filter, viewer)
		if err != nil {
			return policy.Fragment{}, err
		}
		parts = append(parts, "("+fragment.SQL+")")
		args = append(args, fragment.Args...)
	}

	return policy.Fragment{SQL: strings.Join(parts, joiner), Args: args}, nil
}

func compileFilter(filter SearchFilter, viewer policy.Viewer) (policy.Fragment, error) {
	if !validOperator(filter.Operator) {
		return policy.Fragment{}, apperr.ValidationError(fmt.Sprintf("unknown operator %q", filter.Operator))
	}

	if column, ok := searchColumns[filter.Field]; ok {
		return compileColumn(column, false, filter)
	}
	if column, ok := searchNumericColumns[filter.Field]; ok {
		return compileColumn(column, true, filter)
	}
	if role, ok := searchRoles[filter.Field]; ok {
		exists := fmt.Sprintf(
			"SELECT 1 FROM credits f_cr JOIN persons f_p ON f_cr.person_id = f_p.id WHERE f_cr.comic_id = c.id AND f_cr.role = '%s'", role)
		return compileRelation(exists, "f_p.name", filter)
	}
	if tables, ok := searchTags[filter.Field]; ok {
		joinTable, entityTable := tables[0], tables[1]
		exists := fmt.Sprintf(
			"SELECT 1 FROM %s f_j JOIN %s f_e ON f_j.%s = f_e.id WHERE f_j.comic_id = c.id",
			joinTable, entityTable, strings.TrimSuffix(entityTable, "s")+"_id")
		return compileRelation(exists, "f_e.name", filter)
	}

	switch filter.Field {
	case "collection":
		exists := "SELECT 1 FROM collection_items f_i JOIN collections f_con ON f_i.collection_id = f_con.id WHERE f_i.comic_id = c.id"
		return compileRelation(exists, "f_con.name", filter)
	case "reading_list":
		exists := "SELECT 1 FROM reading_list_items f_i JOIN reading_lists f_con ON f_i.reading_list_id = f_con.id WHERE f_i.comic_id = c.id"
		return compileRelation(exists, "f_con.name", filter)
	case "pull_list":
		exists := fmt.Sprintf(
			"SELECT 1 FROM pull_list_items f_i JOIN pull_lists f_con ON f_i.pull_list_id = f_con.id WHERE f_i.comic_id = c.id AND f_con.user_id = %d",
			viewer.UserID)
		return compileRelation(exists, "f_con.name", filter)
	}

	return policy.Fragment{}, apperr.ValidationError(fmt.Sprintf("unknown search field %q", filter.Field))
}

func validOperator(op string) bool {
	switch op {
	case OpEqual, OpNotEqual, OpContains, OpDoesNotContain, OpMustContain, OpIsEmpty, OpIsNotEmpty:
		return true
	}
	return false
}

// compileColumn builds a predicate over a direct column.
func compileColumn(column string, numeric bool, filter SearchFilter) (policy.Fragment, error) {
	switch filter.Operator {
	case OpIsEmpty:
		if numeric {
			return policy.Fragment{SQL: column + " IS NULL"}, nil
		}
		return policy.Fragment{SQL: fmt.Sprintf("(%s IS NULL OR TRIM(%s) = '')", column, column)}, nil
	case OpIsNotEmpty:
		if numeric {
			return policy.Fragment{SQL: column + " IS NOT NULL"}, nil
		}
		return policy.Fragment{SQL: fmt.Sprintf("(%s IS NOT NULL AND TRIM(%s) <> '')", column, column)}, nil
	}

	values, err := valueList(filter.Value)
	if err != nil {
		return policy.Fragment{}, err
	}
	if len(values) == 0 {
		return policy.Fragment{}, apperr.ValidationError("filter value must not be empty")
	}

	switch filter.Operator {
	case OpEqual, OpNotEqual:
		var predicate policy.Fragment
		if numeric {
			predicate = policy.Fragment{SQL: column + " = ?", Args: []any{values[0]}}
		} else {
			predicate = policy.Fragment{SQL: fmt.Sprintf("LOWER(%s) = LOWER(?)", column), Args: []any{values[0]}}
		}
		if filter.Operator == OpNotEqual {
			return policy.Fragment{
				SQL:  fmt.Sprintf("(%s IS NULL OR NOT (%s))", column, predicate.SQL),
				Args: predicate.Args,
			}, nil
		}
		return predicate, nil

	case OpContains, OpDoesNotContain:
		likes := make([]string, len(values))
		args := make([]any, len(values))
		for i, value := range values {
			likes[i] = fmt.Sprintf("LOWER(%s) LIKE '%%' || LOWER(?) || '%%'", column)
			args[i] = value
		}
		predicate := "(" + strings.Join(likes, " OR ") + ")"
		if filter.Operator == OpDoesNotContain {
			return policy.Fragment{
				SQL:  fmt.Sprintf("(%s IS NULL OR NOT %s)", column, predicate),
				Args: args,
			}, nil
		}
		return policy.Fragment{SQL: predicate, Args: args}, nil

	case OpMustContain:
		likes := make([]string, len(values))
		args := make([]any, len(values))
		for i, value := range values {
			likes[i] = fmt.Sprintf("LOWER(%s) LIKE '%%' || LOWER(?) || '%%'", column)
			args[i] = value
		}
		return policy.Fragment{SQL: "(" + strings.Join(likes, " AND ") + ")", Args: args}, nil
	}

	return policy.Fragment{}, apperr.ValidationError(fmt.Sprintf("unknown operator %q", filter.Operator))
}

// compileRelation builds EXISTS predicates over a many-to-many name
// column. existsBase is the subquery up to (not including) the name
// condition.
func compileRelation(existsBase, nameColumn string, filter SearchFilter) (policy.Fragment, error) {
	exists := func(condition string, args ...any) policy.Fragment {
		return policy.Fragment{
			SQL:  fmt.Sprintf("EXISTS (%s AND %s)", existsBase, condition),
			Args: args,
		}
	}

	switch filter.Operator {
	case OpIsEmpty:
		return policy.Fragment{SQL: fmt.Sprintf("NOT EXISTS (%s)", existsBase)}, nil
	case OpIsNotEmpty:
		return policy.Fragment{SQL: fmt.Sprintf("EXISTS (%s)", existsBase)}, nil
	}

	values, err := valueList(filter.Value)
	if err != nil {
		return policy.Fragment{}, err
	}
	if len(values) == 0 {
		return policy.Fragment{}, apperr.ValidationError("filter value must not be empty")
	}

	switch filter.Operator {
	case OpEqual:
		return exists(fmt.Sprintf("LOWER(%s) = LOWER(?)", nameColumn), values[0]), nil
	case OpNotEqual:
		equal := exists(fmt.Sprintf("LOWER(%s) = LOWER(?)", nameColumn), values[0])
		return policy.Fragment{SQL: "NOT " + equal.SQL, Args: equal.Args}, nil

	case OpContains, OpDoesNotContain:
		likes := make([]string, len(values))
		args := make([]any, len(values))
		for i, value := range values {
			likes[i] = fmt.Sprintf("LOWER(%s) LIKE '%%' || LOWER(?) || '%%'", nameColumn)
			args[i] = value
		}
		predicate := exists("("+strings.Join(likes, " OR ")+")", args...)
		if filter.Operator == OpDoesNotContain {
			return policy.Fragment{SQL: "NOT " + predicate.SQL, Args: predicate.Args}, nil
		}
		return predicate, nil

	case OpMustContain:
		// One EXISTS per element: the issue must relate to every name.
		parts := make([]string, len(values))
		args := make([]any, len(values))
		for i, value := range values {
			element := exists(fmt.Sprintf("LOWER(%s) LIKE '%%' || LOWER(?) || '%%'", nameColumn), value)
			parts[i] = element.SQL
			args[i] = value
		}
		return policy.Fragment{SQL: "(" + strings.Join(parts, " AND ") + ")", Args: args}, nil
	}

	return policy.Fragment{}, apperr.ValidationError(fmt.Sprintf("unknown operator %q", filter.Operator))
}

// valueList coerces a JSON filter value (string, number, or array) into
// its string elements.
func valueList(value any) ([]string, error) {
	switch typed := value.(type) {
	case nil:
		return nil, nil
	case string:
		if strings.TrimSpace(typed) == "" {
			return nil, nil
		}
		return []string{typed}, nil
	case float64:
		if typed == float64(int64(typed)) {
			return []string{strconv.FormatInt(int64(typed), 10)}, nil
		}
		return []string{strconv.FormatFloat(typed, 'f', -1, 64)}, nil
	case int:
		return []string{strconv.Itoa(typed)}, nil
	case []string:
		return typed, nil
	case []any:
		var values []string
		for _, element := range typed {
			elements, err := valueList(element)
			if err != nil {
				return nil, err
			}
			values = append(values, elements...)
		}
		return values, nil
	}
	return nil, apperr.ValidationError("unsupported filter value type")
}
