// Package sqlbackend executes the relational layer against MySQL-compatible
// servers through a dbexec executor. Predicates lower to parameterized SQL,
// relation subtrees load in one batched query per relation, and recognizable
// server errors come back annotated with stable storage codes.
package sqlbackend

import (
	"context"
	"fmt"
	"math"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"tablegraph/internal/dbexec"
	"tablegraph/internal/observability"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
	"tablegraph/internal/sqlutil"
)

// Backend runs reads and mutations over a query executor. The executor
// decides connection handling, so the same backend works on a plain pool or
// behind role scoping.
type Backend struct {
	exec   dbexec.QueryExecutor
	schema *schema.Schema
}

// New returns a backend for the given declaration bound to exec.
func New(exec dbexec.QueryExecutor, s *schema.Schema) *Backend {
	return &Backend{exec: exec, schema: s}
}

// Capabilities reports that mutations yield affected counts only. MySQL has
// no RETURNING clause, so the API compiles to the success-flag mutation shape.
func (b *Backend) Capabilities() relational.Capabilities {
	return relational.Capabilities{Name: "mysql", ReturnsMutatedRows: false}
}

func (b *Backend) Read(ctx context.Context, req relational.ReadRequest) ([]relational.Row, error) {
	table := b.schema.Table(req.Table)
	if table == nil {
		return nil, fmt.Errorf("sqlbackend: unknown table %q", req.Table)
	}
	rows, err := b.selectRows(ctx, table, req.Predicate, req.Sort, req.Offset, req.Limit)
	if err != nil {
		return nil, err
	}
	loads, err := b.attachRelations(ctx, table, rows, req.Relations)
	if err != nil {
		return nil, err
	}
	if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
		metrics.RecordResultsCount(ctx, int64(len(rows)), table.Name)
		metrics.RecordRelationLoads(ctx, int64(loads), table.Name)
	}
	return rows, nil
}

func (b *Backend) Insert(ctx context.Context, req relational.InsertRequest) (relational.MutationResult, error) {
	table := b.schema.Table(req.Table)
	if table == nil {
		return relational.MutationResult{}, fmt.Errorf("sqlbackend: unknown table %q", req.Table)
	}

	var affected int64
	for _, row := range req.Rows {
		n, err := b.insertRow(ctx, table, row)
		if err != nil {
			return relational.MutationResult{}, err
		}
		affected += n
	}
	return relational.MutationResult{Affected: affected}, nil
}

func (b *Backend) Update(ctx context.Context, req relational.UpdateRequest) (relational.MutationResult, error) {
	table := b.schema.Table(req.Table)
	if table == nil {
		return relational.MutationResult{}, fmt.Errorf("sqlbackend: unknown table %q", req.Table)
	}
	if len(req.Set) == 0 {
		return relational.MutationResult{}, fmt.Errorf("sqlbackend: update set cannot be empty")
	}

	setMap := make(map[string]interface{}, len(req.Set))
	for column, value := range req.Set {
		if table.Column(column) == nil {
			return relational.MutationResult{}, fmt.Errorf("sqlbackend: table %q has no column %q", table.Name, column)
		}
		setMap[sqlutil.QuoteIdentifier(column)] = value
	}

	builder := sq.Update(sqlutil.QuoteIdentifier(table.Name)).SetMap(setMap)
	cond, err := lowerPredicate(req.Predicate)
	if err != nil {
		return relational.MutationResult{}, err
	}
	if cond != nil {
		builder = builder.Where(cond)
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return relational.MutationResult{}, err
	}
	return b.execStatement(ctx, query, args)
}

func (b *Backend) Delete(ctx context.Context, req relational.DeleteRequest) (relational.MutationResult, error) {
	table := b.schema.Table(req.Table)
	if table == nil {
		return relational.MutationResult{}, fmt.Errorf("sqlbackend: unknown table %q", req.Table)
	}

	builder := sq.Delete(sqlutil.QuoteIdentifier(table.Name))
	cond, err := lowerPredicate(req.Predicate)
	if err != nil {
		return relational.MutationResult{}, err
	}
	if cond != nil {
		builder = builder.Where(cond)
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return relational.MutationResult{}, err
	}
	return b.execStatement(ctx, query, args)
}

func (b *Backend) insertRow(ctx context.Context, table *schema.Table, row relational.Row) (int64, error) {
	for column := range row {
		if table.Column(column) == nil {
			return 0, fmt.Errorf("sqlbackend: table %q has no column %q", table.Name, column)
		}
	}

	columns := make([]string, 0, len(row))
	values := make([]interface{}, 0, len(row))
	for _, col := range table.Columns {
		if value, ok := row[col.Name]; ok {
			columns = append(columns, sqlutil.QuoteIdentifier(col.Name))
			values = append(values, value)
		}
	}

	if len(columns) == 0 {
		// squirrel cannot express a defaults-only insert.
		query := fmt.Sprintf("INSERT INTO %s () VALUES ()", sqlutil.QuoteIdentifier(table.Name))
		result, err := b.exec.ExecContext(ctx, query)
		if err != nil {
			return 0, normalizeError(err)
		}
		return result.RowsAffected()
	}

	query, args, err := sq.Insert(sqlutil.QuoteIdentifier(table.Name)).
		Columns(columns...).
		Values(values...).
		PlaceholderFormat(sq.Question).
		ToSql()
	if err != nil {
		return 0, err
	}

	result, err := b.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, normalizeError(err)
	}
	return result.RowsAffected()
}

func (b *Backend) execStatement(ctx context.Context, query string, args []interface{}) (relational.MutationResult, error) {
	result, err := b.exec.ExecContext(ctx, query, args...)
	if err != nil {
		return relational.MutationResult{}, normalizeError(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return relational.MutationResult{}, err
	}
	return relational.MutationResult{Affected: affected}, nil
}

func (b *Backend) selectRows(ctx context.Context, table *schema.Table, pred relational.Predicate, sortKeys []relational.SortKey, offset int, limit *int) ([]relational.Row, error) {
	builder := sq.Select(columnList(table)...).From(sqlutil.QuoteIdentifier(table.Name))

	cond, err := lowerPredicate(pred)
	if err != nil {
		return nil, err
	}
	if cond != nil {
		builder = builder.Where(cond)
	}

	for _, key := range sortKeys {
		builder = builder.OrderBy(sqlutil.OrderTerm(key.Column, key.Descending))
	}

	if limit != nil {
		builder = builder.Limit(uint64(*limit))
	} else if offset > 0 {
		// MySQL has no bare OFFSET; the documented idiom for "offset to the
		// end" is the maximum row count.
		builder = builder.Limit(math.MaxUint64)
	}
	if offset > 0 {
		builder = builder.Offset(uint64(offset))
	}

	query, args, err := builder.PlaceholderFormat(sq.Question).ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := b.exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, normalizeError(err)
	}
	defer rows.Close()

	return scanRows(rows, table)
}

// attachRelations loads each requested relation subtree for the whole row set
// at once and distributes the children by join key. The returned count is the
// number of batched queries executed, including nested subtrees.
func (b *Backend) attachRelations(ctx context.Context, table *schema.Table, rows []relational.Row, relLoads []relational.RelationLoad) (int, error) {
	loads := 0
	for _, load := range relLoads {
		rel := table.Relation(load.Relation)
		if rel == nil {
			return loads, fmt.Errorf("sqlbackend: table %q has no relation %q", table.Name, load.Relation)
		}
		target := b.schema.Table(rel.References)
		if target == nil {
			return loads, fmt.Errorf("sqlbackend: relation %q references unknown table %q", rel.Name, rel.References)
		}

		for _, row := range rows {
			if rel.Kind == schema.RelationMany {
				row[rel.Name] = []relational.Row{}
			} else {
				row[rel.Name] = nil
			}
		}

		tuples := distinctKeyTuples(rel, rows)
		if len(tuples) == 0 {
			continue
		}

		children, err := b.selectRows(ctx, target, batchPredicate(rel, tuples), nil, 0, nil)
		if err != nil {
			return loads, err
		}
		loads++
		if metrics := observability.GraphQLMetricsFromContext(ctx); metrics != nil {
			metrics.RecordRelationRows(ctx, int64(len(children)), string(rel.Kind))
		}

		childLoads, err := b.attachRelations(ctx, target, children, load.Children)
		loads += childLoads
		if err != nil {
			return loads, err
		}

		byKey := make(map[string][]relational.Row, len(tuples))
		for _, child := range children {
			tuple, ok := keyTuple(child, rel.Keys, referencedColumn)
			if !ok {
				continue
			}
			key := canonicalKey(tuple)
			byKey[key] = append(byKey[key], child)
		}

		for _, row := range rows {
			tuple, ok := keyTuple(row, rel.Keys, localColumn)
			if !ok {
				continue
			}
			matches := byKey[canonicalKey(tuple)]
			if rel.Kind == schema.RelationMany {
				if len(matches) > 0 {
					row[rel.Name] = matches
				}
			} else if len(matches) > 0 {
				row[rel.Name] = matches[0]
			}
		}
	}
	return loads, nil
}

// batchPredicate matches child rows whose referenced columns equal any parent
// key tuple. Single-key relations compress to one IN list.
func batchPredicate(rel *schema.Relation, tuples [][]interface{}) relational.Predicate {
	if len(rel.Keys) == 1 {
		values := make([]interface{}, len(tuples))
		for i, tuple := range tuples {
			values[i] = tuple[0]
		}
		return relational.Compare{Column: rel.Keys[0].ReferencedColumn, Op: relational.OpInArray, Value: values}
	}

	alternatives := make(relational.Or, len(tuples))
	for i, tuple := range tuples {
		conjunction := make(relational.And, len(rel.Keys))
		for k, key := range rel.Keys {
			conjunction[k] = relational.Compare{Column: key.ReferencedColumn, Op: relational.OpEq, Value: tuple[k]}
		}
		alternatives[i] = conjunction
	}
	return alternatives
}

func localColumn(key schema.JoinKey) string      { return key.LocalColumn }
func referencedColumn(key schema.JoinKey) string { return key.ReferencedColumn }

// keyTuple extracts one side of a relation's join key from a row. A null
// component never joins.
func keyTuple(row relational.Row, keys []schema.JoinKey, side func(schema.JoinKey) string) ([]interface{}, bool) {
	tuple := make([]interface{}, len(keys))
	for i, key := range keys {
		value := row[side(key)]
		if value == nil {
			return nil, false
		}
		tuple[i] = value
	}
	return tuple, len(keys) > 0
}

func distinctKeyTuples(rel *schema.Relation, rows []relational.Row) [][]interface{} {
	seen := make(map[string]struct{}, len(rows))
	var tuples [][]interface{}
	for _, row := range rows {
		tuple, ok := keyTuple(row, rel.Keys, localColumn)
		if !ok {
			continue
		}
		key := canonicalKey(tuple)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		tuples = append(tuples, tuple)
	}
	return tuples
}

// canonicalKey builds a grouping key for a join tuple. Both sides of a join
// come through the same driver conversion, so the printed form is stable.
func canonicalKey(tuple []interface{}) string {
	var b strings.Builder
	for _, value := range tuple {
		fmt.Fprintf(&b, "%v\x1f", value)
	}
	return b.String()
}

func columnList(table *schema.Table) []string {
	columns := make([]string, len(table.Columns))
	for i, col := range table.Columns {
		columns[i] = sqlutil.QuoteIdentifier(col.Name)
	}
	return columns
}

func scanRows(rows dbexec.Rows, table *schema.Table) ([]relational.Row, error) {
	var results []relational.Row
	for rows.Next() {
		values := make([]interface{}, len(table.Columns))
		valuePtrs := make([]interface{}, len(table.Columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make(relational.Row, len(table.Columns))
		for i, col := range table.Columns {
			row[col.Name] = convertValue(values[i])
		}
		results = append(results, row)
	}
	return results, rows.Err()
}

// convertValue normalizes driver values: the MySQL driver returns text
// results as []byte.
func convertValue(value interface{}) interface{} {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}
