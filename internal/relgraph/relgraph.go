// Package relgraph builds the output side of a compiled schema: one
// SelectItem object per table whose fields cover the table's columns and,
// recursively, its relations.
//
// Relation targets can form cycles, so construction happens in two phases.
// Phase one allocates a named placeholder object for every table and caches
// it before any field is built; phase two populates fields lazily through
// graphql.FieldsThunk, by which time every placeholder a field factory could
// reference already exists.
//
// With an unlimited depth budget each table gets a single cyclic SelectItem
// type. With a finite budget the root type keeps the SelectItem name and
// nested references use per-remaining-budget variants (SelectItemL2,
// SelectItemL1, ...), so relation chains bottom out at the limit instead of
// recursing.
package relgraph

import (
	"fmt"
	"sync"

	"github.com/graphql-go/graphql"

	"tablegraph/internal/gqlerr"
	"tablegraph/internal/relational"
	"tablegraph/internal/remap"
	"tablegraph/internal/schema"
	"tablegraph/internal/typereg"
)

// Graph owns the compiled output types for one schema. Construct with New;
// the zero value is not usable.
type Graph struct {
	schema   *schema.Schema
	registry *typereg.Registry
	remapper *remap.Remapper

	// depth is the relation depth budget; nil means unlimited.
	depth *int

	mu    sync.Mutex
	types map[string]*graphql.Object
}

// New validates the schema's column types against the registry and allocates
// the phase-one placeholders. A negative depth limit or an unresolvable
// column type is a BuildError.
func New(s *schema.Schema, registry *typereg.Registry, remapper *remap.Remapper, depth *int) (*Graph, error) {
	if depth != nil && *depth < 0 {
		return nil, gqlerr.Buildf("relation depth limit must be nonnegative, got %d", *depth)
	}

	g := &Graph{
		schema:   s,
		registry: registry,
		remapper: remapper,
		depth:    depth,
		types:    make(map[string]*graphql.Object),
	}

	for ti := range s.Tables {
		table := &s.Tables[ti]
		if table.TypePrefix == "" {
			return nil, gqlerr.Buildf("table %q has no GraphQL names; apply naming before building types", table.Name)
		}
		for ci := range table.Columns {
			if _, err := registry.ColumnType(table, &table.Columns[ci]); err != nil {
				return nil, err
			}
		}
	}

	for ti := range s.Tables {
		table := &s.Tables[ti]
		g.allocSelect(table)
		g.allocItem(table)
	}

	return g, nil
}

// SelectType returns the table's root SelectItem object, the query result
// type carrying relation fields.
func (g *Graph) SelectType(table *schema.Table) *graphql.Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.types[table.TypePrefix+"SelectItem"]
}

// ItemType returns the table's plain Item object, the mutation result type
// without relation fields.
func (g *Graph) ItemType(table *schema.Table) *graphql.Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.types[table.TypePrefix+"Item"]
}

func (g *Graph) allocSelect(table *schema.Table) *graphql.Object {
	name := table.TypePrefix + "SelectItem"
	remaining := -1
	if g.depth != nil {
		remaining = *g.depth
	}
	return g.alloc(name, table, func() graphql.Fields {
		return g.selectFields(table, remaining)
	})
}

// selectVariant returns the nested SelectItem type for the given remaining
// budget. Budgets only decrease, so variant references never cycle.
func (g *Graph) selectVariant(table *schema.Table, remaining int) *graphql.Object {
	name := fmt.Sprintf("%sSelectItemL%d", table.TypePrefix, remaining)
	return g.alloc(name, table, func() graphql.Fields {
		return g.selectFields(table, remaining)
	})
}

func (g *Graph) allocItem(table *schema.Table) *graphql.Object {
	return g.alloc(table.TypePrefix+"Item", table, func() graphql.Fields {
		return g.columnFields(table)
	})
}

// alloc returns the named object, creating and caching the placeholder
// before its fields thunk can run.
func (g *Graph) alloc(name string, table *schema.Table, fields graphql.FieldsThunk) *graphql.Object {
	g.mu.Lock()
	defer g.mu.Unlock()
	if cached, ok := g.types[name]; ok {
		return cached
	}
	objType := graphql.NewObject(graphql.ObjectConfig{
		Name:        name,
		Description: table.Description,
		Fields:      fields,
	})
	g.types[name] = objType
	return objType
}

// selectFields builds column fields plus relation fields for the remaining
// budget. A remaining budget of -1 means unlimited; 0 omits relations.
func (g *Graph) selectFields(table *schema.Table, remaining int) graphql.Fields {
	fields := g.columnFields(table)
	if remaining == 0 {
		return fields
	}

	for ri := range table.Relations {
		rel := &table.Relations[ri]
		target := g.schema.Table(rel.References)
		if target == nil {
			continue
		}

		var targetType *graphql.Object
		if remaining < 0 {
			targetType = g.allocSelect(target)
		} else {
			targetType = g.selectVariant(target, remaining-1)
		}

		if rel.Kind == schema.RelationMany {
			fields[rel.FieldName] = &graphql.Field{
				Type:    graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(targetType))),
				Resolve: relationListResolver(rel.Name),
			}
		} else {
			// To-one stays nullable even over non-null join columns; the
			// related row may be absent or filtered out.
			fields[rel.FieldName] = &graphql.Field{
				Type:    targetType,
				Resolve: relationRowResolver(rel.Name),
			}
		}
	}

	return fields
}

func (g *Graph) columnFields(table *schema.Table) graphql.Fields {
	fields := graphql.Fields{}
	for ci := range table.Columns {
		col := &table.Columns[ci]
		pair, err := g.registry.ColumnType(table, col)
		if err != nil {
			// New validated every column; this cannot fail here.
			continue
		}
		fieldType := pair.Output
		if !col.Nullable {
			fieldType = graphql.NewNonNull(fieldType)
		}
		fields[col.FieldName] = &graphql.Field{
			Type:        fieldType,
			Description: col.Description,
			Resolve:     g.columnResolver(table, col),
		}
	}
	return fields
}

// columnResolver reads the column's storage value from the source row and
// converts it to wire form. Conversion failures surface on this field alone,
// leaving sibling fields to resolve normally.
func (g *Graph) columnResolver(table *schema.Table, col *schema.Column) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		row, ok := rowSource(p.Source)
		if !ok {
			return nil, nil
		}
		return g.remapper.ToWire(table, col, row[col.Name])
	}
}

// relationRowResolver reads a preloaded to-one relation row from the source.
func relationRowResolver(relationName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		row, ok := rowSource(p.Source)
		if !ok {
			return nil, nil
		}
		switch v := row[relationName].(type) {
		case nil:
			return nil, nil
		case relational.Row:
			return v, nil
		case map[string]interface{}:
			return relational.Row(v), nil
		default:
			return nil, fmt.Errorf("relation %q: unexpected preloaded value of type %T", relationName, v)
		}
	}
}

// relationListResolver reads preloaded to-many relation rows from the
// source. An unloaded or empty relation resolves to an empty list.
func relationListResolver(relationName string) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		row, ok := rowSource(p.Source)
		if !ok {
			return []relational.Row{}, nil
		}
		switch v := row[relationName].(type) {
		case nil:
			return []relational.Row{}, nil
		case []relational.Row:
			return v, nil
		case []interface{}:
			return v, nil
		default:
			return nil, fmt.Errorf("relation %q: unexpected preloaded value of type %T", relationName, v)
		}
	}
}

func rowSource(source interface{}) (relational.Row, bool) {
	switch v := source.(type) {
	case relational.Row:
		return v, true
	case map[string]interface{}:
		return relational.Row(v), true
	default:
		return nil, false
	}
}
