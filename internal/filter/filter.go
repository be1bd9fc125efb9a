// Package filter compiles GraphQL where arguments into predicate trees.
//
// One filter object compiles to a single conjunction: every column predicate
// at that level, every element of an AND array, the disjunction formed by an
// OR array, and the negation of a NOT object are all AND-ed together. Nesting
// is unrestricted, so any boolean combination can be expressed. An empty or
// absent filter matches every row.
package filter

import (
	"fmt"
	"sort"

	"tablegraph/internal/gqlerr"
	"tablegraph/internal/relational"
	"tablegraph/internal/remap"
	"tablegraph/internal/schema"
)

// Compile translates a where argument for the given table into a predicate.
// Input keys are GraphQL field names; compiled predicates reference storage
// column names. Operator values are converted to storage form through the
// remapper so backends compare like with like.
func Compile(remapper *remap.Remapper, table *schema.Table, input map[string]interface{}) (relational.Predicate, error) {
	pred, err := compileObject(remapper, table, input, "where")
	if err != nil {
		return nil, err
	}
	if pred == nil {
		return relational.All{}, nil
	}
	return pred, nil
}

// compileObject compiles one filter object into a predicate, or nil when the
// object constrains nothing.
func compileObject(remapper *remap.Remapper, table *schema.Table, input map[string]interface{}, path string) (relational.Predicate, error) {
	if len(input) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(input))
	for key := range input {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	conjuncts := []relational.Predicate{}
	for _, key := range keys {
		value := input[key]
		switch key {
		case "AND":
			children, err := compileObjectList(remapper, table, value, path+".AND")
			if err != nil {
				return nil, err
			}
			conjuncts = append(conjuncts, children...)

		case "OR":
			children, err := compileObjectList(remapper, table, value, path+".OR")
			if err != nil {
				return nil, err
			}
			switch len(children) {
			case 0:
			case 1:
				conjuncts = append(conjuncts, children[0])
			default:
				conjuncts = append(conjuncts, relational.Or(children))
			}

		case "NOT":
			childInput, ok := value.(map[string]interface{})
			if !ok {
				return nil, gqlerr.Validationf(path+".NOT", "NOT must be a filter object")
			}
			child, err := compileObject(remapper, table, childInput, path+".NOT")
			if err != nil {
				return nil, err
			}
			if child == nil {
				child = relational.All{}
			}
			conjuncts = append(conjuncts, relational.Not{Child: child})

		default:
			col := table.ColumnByField(key)
			if col == nil {
				return nil, gqlerr.Validationf(path+"."+key, "unknown column %q", key)
			}
			operators, ok := value.(map[string]interface{})
			if !ok {
				return nil, gqlerr.Validationf(path+"."+key, "filter for %q must be an operator object", key)
			}
			preds, err := compileColumn(remapper, table, col, operators, path+"."+key)
			if err != nil {
				return nil, err
			}
			conjuncts = append(conjuncts, preds...)
		}
	}

	switch len(conjuncts) {
	case 0:
		return nil, nil
	case 1:
		return conjuncts[0], nil
	default:
		return relational.And(conjuncts), nil
	}
}

// compileObjectList compiles each element of an AND/OR array. Elements that
// constrain nothing are dropped.
func compileObjectList(remapper *remap.Remapper, table *schema.Table, value interface{}, path string) ([]relational.Predicate, error) {
	items, ok := value.([]interface{})
	if !ok {
		return nil, gqlerr.Validationf(path, "%s must be an array of filter objects", path)
	}
	children := make([]relational.Predicate, 0, len(items))
	for i, item := range items {
		itemInput, ok := item.(map[string]interface{})
		if !ok {
			return nil, gqlerr.Validationf(fmt.Sprintf("%s[%d]", path, i), "array entries must be filter objects")
		}
		child, err := compileObject(remapper, table, itemInput, fmt.Sprintf("%s[%d]", path, i))
		if err != nil {
			return nil, err
		}
		if child != nil {
			children = append(children, child)
		}
	}
	return children, nil
}

func compileColumn(remapper *remap.Remapper, table *schema.Table, col *schema.Column, operators map[string]interface{}, path string) ([]relational.Predicate, error) {
	ops := make([]string, 0, len(operators))
	for op := range operators {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	preds := make([]relational.Predicate, 0, len(ops))
	for _, op := range ops {
		value := operators[op]
		switch op {
		case "eq", "ne", "lt", "lte", "gt", "gte":
			stored, err := remapper.FromWire(table, col, value)
			if err != nil {
				return nil, err
			}
			preds = append(preds, relational.Compare{Column: col.Name, Op: relational.CompareOp(op), Value: stored})

		case "like", "ilike":
			pattern, ok := value.(string)
			if !ok {
				return nil, gqlerr.Validationf(path+"."+op, "%s pattern must be a string", op)
			}
			preds = append(preds, relational.Compare{Column: col.Name, Op: relational.CompareOp(op), Value: pattern})

		case "inArray", "notInArray":
			items, ok := value.([]interface{})
			if !ok {
				return nil, gqlerr.Validationf(path+"."+op, "%s requires an array", op)
			}
			stored := make([]interface{}, len(items))
			for i, item := range items {
				converted, err := remapper.FromWire(table, col, item)
				if err != nil {
					return nil, err
				}
				stored[i] = converted
			}
			mapped := relational.OpInArray
			if op == "notInArray" {
				mapped = relational.OpNotInArray
			}
			preds = append(preds, relational.Compare{Column: col.Name, Op: mapped, Value: stored})

		case "isNull":
			pred, err := nullCheck(col.Name, value, false, path+"."+op)
			if err != nil {
				return nil, err
			}
			preds = append(preds, pred)

		case "isNotNull":
			pred, err := nullCheck(col.Name, value, true, path+"."+op)
			if err != nil {
				return nil, err
			}
			preds = append(preds, pred)

		default:
			return nil, gqlerr.Validationf(path+"."+op, "unknown filter operator %q", op)
		}
	}
	return preds, nil
}

// nullCheck compiles isNull/isNotNull. Both take a boolean, and a false value
// flips the check, so isNull:false and isNotNull:true are equivalent.
func nullCheck(column string, value interface{}, negated bool, path string) (relational.Predicate, error) {
	wantNull, ok := value.(bool)
	if !ok {
		return nil, gqlerr.Validationf(path, "null check requires a boolean")
	}
	if negated {
		wantNull = !wantNull
	}
	op := relational.OpIsNull
	if !wantNull {
		op = relational.OpIsNotNull
	}
	return relational.Compare{Column: column, Op: op}, nil
}
