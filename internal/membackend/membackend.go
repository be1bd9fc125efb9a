// Package membackend implements the relational layer over in-process maps.
// It backs development deployments and tests where no database is wired up,
// and it fixes the reference semantics for predicate evaluation: filters are
// plain Boolean logic over stored values, with null matching only the null
// checks.
package membackend

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"tablegraph/internal/coltype"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
)

func integerKind(k coltype.Kind) bool {
	return k == coltype.KindInteger || k == coltype.KindBigInt
}

// Backend stores rows per table and serves reads and mutations under one
// RWMutex. Rows are copied on the way in and out, so callers can hold or
// mutate results freely.
type Backend struct {
	mu     sync.RWMutex
	schema *schema.Schema
	rows   map[string][]relational.Row
	nextID map[string]int64
}

// New returns an empty backend for the given declaration. Integer primary
// key columns with a database default draw from a per-table sequence when
// inserts omit them; other defaulted columns stay absent and read as null.
func New(s *schema.Schema) *Backend {
	b := &Backend{
		schema: s,
		rows:   map[string][]relational.Row{},
		nextID: map[string]int64{},
	}
	for ti := range s.Tables {
		b.nextID[s.Tables[ti].Name] = 1
	}
	return b
}

func (b *Backend) Capabilities() relational.Capabilities {
	return relational.Capabilities{Name: "memory", ReturnsMutatedRows: true}
}

func (b *Backend) Read(ctx context.Context, req relational.ReadRequest) ([]relational.Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()

	table := b.schema.Table(req.Table)
	if table == nil {
		return nil, fmt.Errorf("membackend: unknown table %q", req.Table)
	}

	var matched []relational.Row
	for _, row := range b.rows[table.Name] {
		ok, err := matches(req.Predicate, row)
		if err != nil {
			return nil, err
		}
		if ok {
			matched = append(matched, row)
		}
	}

	sortRows(matched, req.Sort)
	matched = window(matched, req.Offset, req.Limit)

	out := make([]relational.Row, 0, len(matched))
	for _, row := range matched {
		copied := copyRow(row)
		if err := b.attachRelations(table, copied, req.Relations); err != nil {
			return nil, err
		}
		out = append(out, copied)
	}
	return out, nil
}

func (b *Backend) Insert(ctx context.Context, req relational.InsertRequest) (relational.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return relational.MutationResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	table := b.schema.Table(req.Table)
	if table == nil {
		return relational.MutationResult{}, fmt.Errorf("membackend: unknown table %q", req.Table)
	}

	inserted := make([]relational.Row, 0, len(req.Rows))
	for _, row := range req.Rows {
		stored, err := b.prepareInsert(table, row)
		if err != nil {
			return relational.MutationResult{}, err
		}
		b.rows[table.Name] = append(b.rows[table.Name], stored)
		inserted = append(inserted, copyRow(stored))
	}
	return relational.MutationResult{Rows: inserted, Affected: int64(len(inserted))}, nil
}

func (b *Backend) Update(ctx context.Context, req relational.UpdateRequest) (relational.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return relational.MutationResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	table := b.schema.Table(req.Table)
	if table == nil {
		return relational.MutationResult{}, fmt.Errorf("membackend: unknown table %q", req.Table)
	}
	for column := range req.Set {
		if table.Column(column) == nil {
			return relational.MutationResult{}, fmt.Errorf("membackend: table %q has no column %q", table.Name, column)
		}
	}

	var updated []relational.Row
	for _, row := range b.rows[table.Name] {
		ok, err := matches(req.Predicate, row)
		if err != nil {
			return relational.MutationResult{}, err
		}
		if !ok {
			continue
		}
		for column, value := range req.Set {
			row[column] = value
		}
		updated = append(updated, copyRow(row))
	}
	return relational.MutationResult{Rows: updated, Affected: int64(len(updated))}, nil
}

func (b *Backend) Delete(ctx context.Context, req relational.DeleteRequest) (relational.MutationResult, error) {
	if err := ctx.Err(); err != nil {
		return relational.MutationResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	table := b.schema.Table(req.Table)
	if table == nil {
		return relational.MutationResult{}, fmt.Errorf("membackend: unknown table %q", req.Table)
	}

	var kept, removed []relational.Row
	for _, row := range b.rows[table.Name] {
		ok, err := matches(req.Predicate, row)
		if err != nil {
			return relational.MutationResult{}, err
		}
		if ok {
			removed = append(removed, copyRow(row))
		} else {
			kept = append(kept, row)
		}
	}
	b.rows[table.Name] = kept
	return relational.MutationResult{Rows: removed, Affected: int64(len(removed))}, nil
}

// prepareInsert copies the incoming row, fills sequence-backed primary keys,
// and checks the declaration's column and null constraints.
func (b *Backend) prepareInsert(table *schema.Table, row relational.Row) (relational.Row, error) {
	stored := copyRow(row)
	for column := range stored {
		if table.Column(column) == nil {
			return nil, fmt.Errorf("membackend: table %q has no column %q", table.Name, column)
		}
	}
	for ci := range table.Columns {
		col := &table.Columns[ci]
		value, present := stored[col.Name]

		if !present && col.PrimaryKey && col.HasDefault && integerKind(col.Kind()) {
			stored[col.Name] = b.nextID[table.Name]
			b.nextID[table.Name]++
			continue
		}
		if present && col.PrimaryKey && integerKind(col.Kind()) {
			if id, ok := asInt64(value); ok && id >= b.nextID[table.Name] {
				b.nextID[table.Name] = id + 1
			}
		}
		if present && value == nil && !col.Nullable {
			return nil, fmt.Errorf("membackend: column %q of table %q does not accept null", col.Name, table.Name)
		}
		if !present && col.Required() {
			return nil, fmt.Errorf("membackend: column %q of table %q requires a value", col.Name, table.Name)
		}
	}
	return stored, nil
}

// attachRelations loads the requested relation subtrees onto row, keyed by
// the relation's declared name.
func (b *Backend) attachRelations(table *schema.Table, row relational.Row, loads []relational.RelationLoad) error {
	for _, load := range loads {
		rel := table.Relation(load.Relation)
		if rel == nil {
			return fmt.Errorf("membackend: table %q has no relation %q", table.Name, load.Relation)
		}
		target := b.schema.Table(rel.References)
		if target == nil {
			return fmt.Errorf("membackend: relation %q references unknown table %q", rel.Name, rel.References)
		}

		var related []relational.Row
		for _, candidate := range b.rows[target.Name] {
			if !joined(rel, row, candidate) {
				continue
			}
			child := copyRow(candidate)
			if err := b.attachRelations(target, child, load.Children); err != nil {
				return err
			}
			related = append(related, child)
			if rel.Kind == schema.RelationOne {
				break
			}
		}

		if rel.Kind == schema.RelationMany {
			if related == nil {
				related = []relational.Row{}
			}
			row[rel.Name] = related
		} else if len(related) > 0 {
			row[rel.Name] = related[0]
		} else {
			row[rel.Name] = nil
		}
	}
	return nil
}

// joined reports whether candidate satisfies every join key of rel against
// the parent row. A null on either side never joins.
func joined(rel *schema.Relation, parent, candidate relational.Row) bool {
	for _, key := range rel.Keys {
		local := parent[key.LocalColumn]
		referenced := candidate[key.ReferencedColumn]
		if local == nil || referenced == nil {
			return false
		}
		if !equalValues(local, referenced) {
			return false
		}
	}
	return len(rel.Keys) > 0
}

func matches(pred relational.Predicate, row relational.Row) (bool, error) {
	switch p := pred.(type) {
	case nil:
		return true, nil
	case relational.All:
		return true, nil
	case relational.And:
		for _, child := range p {
			ok, err := matches(child, row)
			if err != nil || !ok {
				return false, err
			}
		}
		return true, nil
	case relational.Or:
		for _, child := range p {
			ok, err := matches(child, row)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case relational.Not:
		ok, err := matches(p.Child, row)
		if err != nil {
			return false, err
		}
		return !ok, nil
	case relational.Compare:
		return compareMatches(p, row)
	default:
		return false, fmt.Errorf("membackend: unsupported predicate %T", pred)
	}
}

func compareMatches(cmp relational.Compare, row relational.Row) (bool, error) {
	value := row[cmp.Column]

	switch cmp.Op {
	case relational.OpIsNull:
		return value == nil, nil
	case relational.OpIsNotNull:
		return value != nil, nil
	}
	if value == nil {
		// Null matches only the null checks.
		return false, nil
	}

	switch cmp.Op {
	case relational.OpEq:
		return equalValues(value, cmp.Value), nil
	case relational.OpNe:
		return !equalValues(value, cmp.Value), nil
	case relational.OpLt, relational.OpLte, relational.OpGt, relational.OpGte:
		rank, ok := compareValues(value, cmp.Value)
		if !ok {
			return false, fmt.Errorf("membackend: cannot order %T against %T on column %q", value, cmp.Value, cmp.Column)
		}
		switch cmp.Op {
		case relational.OpLt:
			return rank < 0, nil
		case relational.OpLte:
			return rank <= 0, nil
		case relational.OpGt:
			return rank > 0, nil
		default:
			return rank >= 0, nil
		}
	case relational.OpLike, relational.OpILike:
		text, ok := asString(value)
		if !ok {
			return false, nil
		}
		pattern, ok := cmp.Value.(string)
		if !ok {
			return false, fmt.Errorf("membackend: %s pattern must be a string, got %T", cmp.Op, cmp.Value)
		}
		return likeMatch(text, pattern, cmp.Op == relational.OpILike), nil
	case relational.OpInArray, relational.OpNotInArray:
		list, ok := cmp.Value.([]interface{})
		if !ok {
			return false, fmt.Errorf("membackend: %s operand must be a list, got %T", cmp.Op, cmp.Value)
		}
		found := false
		for _, item := range list {
			if equalValues(value, item) {
				found = true
				break
			}
		}
		if cmp.Op == relational.OpInArray {
			return found, nil
		}
		return !found, nil
	default:
		return false, fmt.Errorf("membackend: unsupported operator %q", cmp.Op)
	}
}

// likeMatch evaluates a SQL LIKE pattern: % matches any run, _ matches one
// character, everything else is literal.
func likeMatch(text, pattern string, foldCase bool) bool {
	var re strings.Builder
	re.WriteString("^")
	for _, r := range pattern {
		switch r {
		case '%':
			re.WriteString("(?s).*")
		case '_':
			re.WriteString("(?s).")
		default:
			re.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	re.WriteString("$")
	expr := re.String()
	if foldCase {
		expr = "(?i)" + expr
	}
	matched, err := regexp.MatchString(expr, text)
	return err == nil && matched
}

func sortRows(rows []relational.Row, keys []relational.SortKey) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(rows, func(i, j int) bool {
		for _, key := range keys {
			a, b := rows[i][key.Column], rows[j][key.Column]
			rank, decided := rankNullable(a, b)
			if !decided || rank == 0 {
				continue
			}
			if key.Descending {
				return rank > 0
			}
			return rank < 0
		}
		return false
	})
}

// rankNullable orders two possibly-null values the way MySQL does: null
// sorts before every value.
func rankNullable(a, b interface{}) (int, bool) {
	switch {
	case a == nil && b == nil:
		return 0, true
	case a == nil:
		return -1, true
	case b == nil:
		return 1, true
	}
	return compareValues(a, b)
}

func window(rows []relational.Row, offset int, limit *int) []relational.Row {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit != nil && *limit < len(rows) {
		rows = rows[:*limit]
	}
	return rows
}

func copyRow(row relational.Row) relational.Row {
	copied := make(relational.Row, len(row))
	for column, value := range row {
		copied[column] = value
	}
	return copied
}

func equalValues(a, b interface{}) bool {
	if rank, ok := compareValues(a, b); ok {
		return rank == 0
	}
	ab, aok := a.([]byte)
	bb, bok := b.([]byte)
	if aok && bok {
		return bytes.Equal(ab, bb)
	}
	return false
}

// compareValues orders two storage values of compatible types. Integers
// compare exactly; mixing an integer with a float falls back to float64.
func compareValues(a, b interface{}) (int, bool) {
	if ai, aok := asInt64(a); aok {
		if bi, bok := asInt64(b); bok {
			switch {
			case ai < bi:
				return -1, true
			case ai > bi:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if af, aok := asFloat64(a); aok {
		if bf, bok := asFloat64(b); bok {
			switch {
			case af < bf:
				return -1, true
			case af > bf:
				return 1, true
			default:
				return 0, true
			}
		}
	}

	switch av := a.(type) {
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(av, bv), true
	case []byte:
		bv, ok := b.([]byte)
		if !ok {
			return 0, false
		}
		return bytes.Compare(av, bv), true
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		switch {
		case av.Before(bv):
			return -1, true
		case av.After(bv):
			return 1, true
		default:
			return 0, true
		}
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

func asInt64(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int8:
		return int64(n), true
	case int16:
		return int64(n), true
	case int32:
		return int64(n), true
	case int64:
		return n, true
	case uint8:
		return int64(n), true
	case uint16:
		return int64(n), true
	case uint32:
		return int64(n), true
	}
	return 0, false
}

func asFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		if i, ok := asInt64(v); ok {
			return float64(i), true
		}
	}
	return 0, false
}

func asString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	}
	return "", false
}
