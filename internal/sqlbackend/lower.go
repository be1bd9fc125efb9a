package sqlbackend

import (
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"tablegraph/internal/relational"
	"tablegraph/internal/sqlutil"
)

// lowerPredicate converts a predicate tree into a squirrel condition. All
// lowers to nil, meaning no WHERE clause at all.
func lowerPredicate(pred relational.Predicate) (sq.Sqlizer, error) {
	switch p := pred.(type) {
	case nil, relational.All:
		return nil, nil
	case relational.Compare:
		return lowerCompare(p)
	case relational.And:
		conditions, err := lowerChildren(p)
		if err != nil {
			return nil, err
		}
		if len(conditions) == 0 {
			return nil, nil
		}
		return sq.And(conditions), nil
	case relational.Or:
		conditions, err := lowerChildren(p)
		if err != nil {
			return nil, err
		}
		// An empty disjunction holds for no row.
		if len(conditions) == 0 {
			return sq.Expr("(1=0)"), nil
		}
		return sq.Or(conditions), nil
	case relational.Not:
		child, err := lowerPredicate(p.Child)
		if err != nil {
			return nil, err
		}
		if child == nil {
			return sq.Expr("(1=0)"), nil
		}
		childSQL, childArgs, err := child.ToSql()
		if err != nil {
			return nil, err
		}
		return sq.Expr("NOT ("+childSQL+")", childArgs...), nil
	default:
		return nil, fmt.Errorf("sqlbackend: unsupported predicate %T", pred)
	}
}

func lowerChildren(children []relational.Predicate) ([]sq.Sqlizer, error) {
	conditions := make([]sq.Sqlizer, 0, len(children))
	for _, child := range children {
		cond, err := lowerPredicate(child)
		if err != nil {
			return nil, err
		}
		if cond != nil {
			conditions = append(conditions, cond)
		}
	}
	return conditions, nil
}

func lowerCompare(cmp relational.Compare) (sq.Sqlizer, error) {
	column := sqlutil.QuoteIdentifier(cmp.Column)
	switch cmp.Op {
	case relational.OpEq:
		if cmp.Value == nil {
			// col = NULL holds for no row; squirrel would turn the nil into
			// IS NULL instead.
			return sq.Expr("(1=0)"), nil
		}
		return sq.Eq{column: cmp.Value}, nil
	case relational.OpNe:
		return sq.NotEq{column: cmp.Value}, nil
	case relational.OpLt:
		return sq.Lt{column: cmp.Value}, nil
	case relational.OpLte:
		return sq.LtOrEq{column: cmp.Value}, nil
	case relational.OpGt:
		return sq.Gt{column: cmp.Value}, nil
	case relational.OpGte:
		return sq.GtOrEq{column: cmp.Value}, nil
	case relational.OpLike:
		return sq.Like{column: cmp.Value}, nil
	case relational.OpILike:
		return sq.Expr("LOWER("+column+") LIKE LOWER(?)", cmp.Value), nil
	case relational.OpInArray, relational.OpNotInArray:
		values, ok := cmp.Value.([]interface{})
		if !ok {
			return nil, fmt.Errorf("sqlbackend: %s operand must be a list, got %T", cmp.Op, cmp.Value)
		}
		// squirrel renders empty lists as (1=0) for IN and (1=1) for NOT IN.
		if cmp.Op == relational.OpInArray {
			return sq.Eq{column: values}, nil
		}
		return sq.NotEq{column: values}, nil
	case relational.OpIsNull:
		return sq.Eq{column: nil}, nil
	case relational.OpIsNotNull:
		return sq.NotEq{column: nil}, nil
	default:
		return nil, fmt.Errorf("sqlbackend: unsupported operator %q", cmp.Op)
	}
}
