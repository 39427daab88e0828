package repository

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"usersapi/internal/model"
)

var (
	// ErrUnknownFilterField is returned when a filter names a field the entity does not expose.
	ErrUnknownFilterField = errors.New("unknown filter field")
	// ErrInvalidFilterValue is returned when a filter value is neither a scalar nor a list of scalars.
	ErrInvalidFilterValue = errors.New("invalid filter value")
)

// Filters maps a queryable field name to either a scalar match value or a
// list of candidate values. A nil value means the field is not filtered.
//
// Scalars match as a substring of the stored value, lists match exactly
// against any of their members. All supplied fields are AND-ed together.
type Filters map[string]any

// filterField binds an accepted filter key to the column it constrains.
type filterField struct {
	key    string
	column string
}

// userFilterFields is iterated in order, which keeps predicate order stable.
var userFilterFields = []filterField{
	{key: "name", column: "name"},
	{key: "email", column: "email"},
	{key: "role", column: "role"},
	{key: "roles", column: "role"},
}

const likeEscapeChar = "!"

var likeEscaper = strings.NewReplacer(
	likeEscapeChar, likeEscapeChar+likeEscapeChar,
	"%", likeEscapeChar+"%",
	"_", likeEscapeChar+"_",
)

// buildUserPredicates translates filters into an AND-ed predicate list
// against the users table. An empty result means no filtering.
func buildUserPredicates(filters Filters) (sq.And, error) {
	if err := checkFilterKeys(filters); err != nil {
		return nil, err
	}

	preds := sq.And{}
	for _, field := range userFilterFields {
		raw, ok := filters[field.key]
		if !ok {
			continue
		}

		values, isList, skip, err := normalizeFilterValue(raw)
		if err != nil {
			return nil, fmt.Errorf("%w for %q", err, field.key)
		}
		if skip {
			continue
		}

		if isList {
			preds = append(preds, sq.Eq{field.column: values})
			continue
		}
		preds = append(preds, sq.Expr(
			field.column+" LIKE ? ESCAPE '"+likeEscapeChar+"'",
			containsPattern(values[0]),
		))
	}
	return preds, nil
}

func checkFilterKeys(filters Filters) error {
	var unknown []string
	for key := range filters {
		if !isFilterField(key) {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	sort.Strings(unknown)
	return fmt.Errorf("%w: %s", ErrUnknownFilterField, strings.Join(unknown, ", "))
}

func isFilterField(key string) bool {
	for _, field := range userFilterFields {
		if field.key == key {
			return true
		}
	}
	return false
}

// normalizeFilterValue flattens the accepted value shapes to strings.
// skip is set for undefined values (nil or a nil pointer).
func normalizeFilterValue(raw any) (values []string, isList, skip bool, err error) {
	switch v := raw.(type) {
	case nil:
		return nil, false, true, nil
	case string:
		return []string{v}, false, false, nil
	case *string:
		if v == nil {
			return nil, false, true, nil
		}
		return []string{*v}, false, false, nil
	case model.Role:
		return []string{string(v)}, false, false, nil
	case []string:
		if v == nil {
			return nil, false, true, nil
		}
		return append([]string{}, v...), true, false, nil
	case []model.Role:
		if v == nil {
			return nil, false, true, nil
		}
		out := make([]string, len(v))
		for i, role := range v {
			out[i] = string(role)
		}
		return out, true, false, nil
	default:
		return nil, false, false, fmt.Errorf("%w: %T", ErrInvalidFilterValue, raw)
	}
}

func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}
