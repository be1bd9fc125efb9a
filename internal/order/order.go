// Package order compiles GraphQL orderBy arguments into sort key lists.
//
// The argument maps column field names to {priority, direction} entries. Keys
// sort by ascending priority, so the lowest priority number becomes the
// outermost sort key. Entries without a priority sort after every
// prioritized entry, and ties break by column declaration order in the
// schema. Input object iteration order never influences the result.
package order

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"tablegraph/internal/gqlerr"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
)

type entry struct {
	column      string
	declIndex   int
	priority    int
	hasPriority bool
	descending  bool
}

// Compile translates an orderBy argument for the given table into sort keys.
// A nil or empty argument compiles to no sort keys, leaving row order to the
// backend.
func Compile(table *schema.Table, input map[string]interface{}) ([]relational.SortKey, error) {
	if len(input) == 0 {
		return nil, nil
	}

	entries := make([]entry, 0, len(input))
	for key, value := range input {
		declIndex := columnIndexByField(table, key)
		if declIndex < 0 {
			return nil, gqlerr.Validationf("orderBy."+key, "unknown column %q", key)
		}

		spec, ok := value.(map[string]interface{})
		if !ok {
			return nil, gqlerr.Validationf("orderBy."+key, "entry for %q must be an object", key)
		}

		e := entry{
			column:    table.Columns[declIndex].Name,
			declIndex: declIndex,
		}
		if raw, present := spec["priority"]; present && raw != nil {
			priority, err := coercePriority(raw)
			if err != nil {
				return nil, gqlerr.Validationf("orderBy."+key+".priority", "%s", err.Error())
			}
			e.priority = priority
			e.hasPriority = true
		}
		if raw, present := spec["direction"]; present && raw != nil {
			descending, err := coerceDirection(raw)
			if err != nil {
				return nil, gqlerr.Validationf("orderBy."+key+".direction", "%s", err.Error())
			}
			e.descending = descending
		}
		entries = append(entries, e)
	}

	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.hasPriority && b.hasPriority && a.priority != b.priority {
			return a.priority < b.priority
		}
		if a.hasPriority != b.hasPriority {
			return a.hasPriority
		}
		return a.declIndex < b.declIndex
	})

	keys := make([]relational.SortKey, len(entries))
	for i, e := range entries {
		keys[i] = relational.SortKey{Column: e.column, Descending: e.descending}
	}
	return keys, nil
}

func columnIndexByField(table *schema.Table, fieldName string) int {
	for i := range table.Columns {
		if table.Columns[i].FieldName == fieldName {
			return i
		}
	}
	return -1
}

func coercePriority(value interface{}) (int, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return 0, fmt.Errorf("priority must be an integer")
		}
		return int(v), nil
	default:
		return 0, fmt.Errorf("priority must be an integer")
	}
}

func coerceDirection(value interface{}) (bool, error) {
	s, ok := value.(string)
	if !ok {
		return false, fmt.Errorf("direction must be asc or desc")
	}
	switch strings.ToLower(s) {
	case "asc":
		return false, nil
	case "desc":
		return true, nil
	default:
		return false, fmt.Errorf("direction must be asc or desc")
	}
}
