package cache

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// KeySeparator defines the delimiter used between cache key segments.
const KeySeparator = ":"

// FilterKey derives the cache key for a filtered query under scope.
// Logically identical filters always produce the same key: field names are
// sorted, undefined values are dropped and list values are treated as sets.
func FilterKey(scope string, filters map[string]any) string {
	sum := xxhash.Sum64String(CanonicalFilters(filters))
	return scope + KeySeparator + strconv.FormatUint(sum, 16)
}

// CanonicalFilters renders filters in their canonical textual form.
func CanonicalFilters(filters map[string]any) string {
	keys := make([]string, 0, len(filters))
	for k, v := range filters {
		if isUndefined(v) {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = strconv.Quote(k) + "=" + canonicalValue(filters[k])
	}
	return "{" + strings.Join(parts, ",") + "}"
}

func canonicalValue(v any) string {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}

	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		members := make([]string, 0, rv.Len())
		seen := make(map[string]struct{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			m := scalarString(rv.Index(i))
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			members = append(members, m)
		}
		sort.Strings(members)
		return "set[" + strings.Join(members, ",") + "]"
	}
	return "val(" + scalarString(rv) + ")"
}

func scalarString(rv reflect.Value) string {
	if rv.Kind() == reflect.String {
		return strconv.Quote(rv.String())
	}
	return strconv.Quote(fmt.Sprint(rv.Interface()))
}

func isUndefined(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Slice, reflect.Map, reflect.Interface:
		return rv.IsNil()
	}
	return false
}
