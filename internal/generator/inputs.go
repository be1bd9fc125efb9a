package generator

import (
	"strings"

	"github.com/graphql-go/graphql"

	"tablegraph/internal/coltype"
	"tablegraph/internal/schema"
)

// operatorsFor returns the filter operators offered for a column kind. Kinds
// with no entry (json, geometry, vector) are left out of the Filters input
// entirely; there is no meaningful comparison to offer for them.
func operatorsFor(kind coltype.Kind) []string {
	switch {
	case kind == coltype.KindText:
		return []string{"eq", "ne", "lt", "lte", "gt", "gte", "like", "ilike", "inArray", "notInArray", "isNull", "isNotNull"}
	case kind.Comparable():
		return []string{"eq", "ne", "lt", "lte", "gt", "gte", "inArray", "notInArray", "isNull", "isNotNull"}
	case kind == coltype.KindUUID, kind == coltype.KindEnum, kind == coltype.KindBinary:
		return []string{"eq", "ne", "inArray", "notInArray", "isNull", "isNotNull"}
	case kind == coltype.KindBoolean, kind == coltype.KindSet:
		return []string{"eq", "ne", "isNull", "isNotNull"}
	default:
		return nil
	}
}

// tableFilters returns the `<Prefix>Filters` input for table: one operator
// object per filterable column plus the AND, OR, and NOT combinators. The
// combinators reference the input itself, so they are appended in a thunk
// once the object exists.
func (g *generator) tableFilters(table *schema.Table) *graphql.InputObject {
	name := table.TypePrefix + "Filters"
	if obj, ok := g.tableInputs[name]; ok {
		return obj
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for ci := range table.Columns {
		col := &table.Columns[ci]
		ops := operatorsFor(col.Kind())
		if len(ops) == 0 {
			continue
		}
		pair, err := g.registry.ColumnType(table, col)
		if err != nil {
			// Compile validated every column; unresolvable tags never get here.
			continue
		}
		fields[col.FieldName] = &graphql.InputObjectFieldConfig{
			Type:        g.columnFilter(pair.Input, ops),
			Description: "Conditions on " + col.Name + ".",
		}
	}

	var obj *graphql.InputObject
	obj = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        name,
		Description: "Row filter for " + table.Name + ". Sibling fields combine with AND.",
		Fields: graphql.InputObjectConfigFieldMapThunk(func() graphql.InputObjectConfigFieldMap {
			fields["AND"] = &graphql.InputObjectFieldConfig{
				Type:        graphql.NewList(graphql.NewNonNull(obj)),
				Description: "Every listed filter must match.",
			}
			fields["OR"] = &graphql.InputObjectFieldConfig{
				Type:        graphql.NewList(graphql.NewNonNull(obj)),
				Description: "At least one listed filter must match.",
			}
			fields["NOT"] = &graphql.InputObjectFieldConfig{
				Type:        obj,
				Description: "Inverts the nested filter.",
			}
			return fields
		}),
	})
	g.tableInputs[name] = obj
	return obj
}

// columnFilter returns the operator object for one column input type.
// Objects are shared across columns of the same type, so an Int column in
// one table and another in a second table both use IntFilter.
func (g *generator) columnFilter(input graphql.Input, ops []string) *graphql.InputObject {
	name := filterName(input)
	if obj, ok := g.columnFilters[name]; ok {
		return obj
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for _, op := range ops {
		switch op {
		case "like", "ilike":
			fields[op] = &graphql.InputObjectFieldConfig{Type: graphql.String}
		case "inArray", "notInArray":
			fields[op] = &graphql.InputObjectFieldConfig{Type: graphql.NewList(graphql.NewNonNull(input))}
		case "isNull", "isNotNull":
			fields[op] = &graphql.InputObjectFieldConfig{Type: graphql.Boolean}
		default:
			fields[op] = &graphql.InputObjectFieldConfig{Type: input}
		}
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:   name,
		Fields: fields,
	})
	g.columnFilters[name] = obj
	return obj
}

// filterName derives the operator object's name from the column input type:
// Int becomes IntFilter, a list of X becomes XListFilter, and a trailing
// Input suffix is dropped first so PointInput yields PointFilter.
func filterName(t graphql.Type) string {
	switch tt := t.(type) {
	case *graphql.NonNull:
		return filterName(tt.OfType)
	case *graphql.List:
		return strings.TrimSuffix(filterName(tt.OfType), "Filter") + "ListFilter"
	}
	return strings.TrimSuffix(t.Name(), "Input") + "Filter"
}

// sortable reports whether a column kind may appear in orderBy.
func sortable(kind coltype.Kind) bool {
	if kind.Comparable() {
		return true
	}
	switch kind {
	case coltype.KindBoolean, coltype.KindUUID, coltype.KindEnum:
		return true
	}
	return false
}

// orderByEntry is the shared {priority, direction} object used by every
// table's OrderBy input.
func (g *generator) orderByEntry() *graphql.InputObject {
	if g.orderEntry != nil {
		return g.orderEntry
	}
	direction := graphql.NewEnum(graphql.EnumConfig{
		Name: "OrderDirection",
		Values: graphql.EnumValueConfigMap{
			"asc":  &graphql.EnumValueConfig{Value: "asc", Description: "Smallest value first."},
			"desc": &graphql.EnumValueConfig{Value: "desc", Description: "Largest value first."},
		},
	})
	g.orderEntry = graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        "OrderByEntry",
		Description: "Sort instruction for one column. Lower priority values sort first; entries without a priority come last, in column declaration order.",
		Fields: graphql.InputObjectConfigFieldMap{
			"priority":  &graphql.InputObjectFieldConfig{Type: graphql.Int},
			"direction": &graphql.InputObjectFieldConfig{Type: direction},
		},
	})
	return g.orderEntry
}

func (g *generator) orderByInput(table *schema.Table) *graphql.InputObject {
	name := table.TypePrefix + "OrderBy"
	if obj, ok := g.tableInputs[name]; ok {
		return obj
	}

	entry := g.orderByEntry()
	fields := graphql.InputObjectConfigFieldMap{}
	for ci := range table.Columns {
		col := &table.Columns[ci]
		if !sortable(col.Kind()) {
			continue
		}
		fields[col.FieldName] = &graphql.InputObjectFieldConfig{Type: entry}
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        name,
		Description: "Sort order for " + table.Name + ".",
		Fields:      fields,
	})
	g.tableInputs[name] = obj
	return obj
}

// insertInput returns the `<Prefix>InsertInput` object. Columns that are
// neither nullable nor defaulted are non-null here, so the GraphQL layer
// already rejects incomplete rows.
func (g *generator) insertInput(table *schema.Table) *graphql.InputObject {
	name := table.TypePrefix + "InsertInput"
	if obj, ok := g.tableInputs[name]; ok {
		return obj
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for ci := range table.Columns {
		col := &table.Columns[ci]
		pair, err := g.registry.ColumnType(table, col)
		if err != nil {
			continue
		}
		var t graphql.Input = pair.Input
		if col.Required() {
			t = graphql.NewNonNull(t)
		}
		fields[col.FieldName] = &graphql.InputObjectFieldConfig{
			Type:        t,
			Description: col.Description,
		}
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        name,
		Description: "Values for one new row in " + table.Name + ".",
		Fields:      fields,
	})
	g.tableInputs[name] = obj
	return obj
}

// updateInput returns the `<Prefix>UpdateInput` object. Every column is
// optional; only the named columns change.
func (g *generator) updateInput(table *schema.Table) *graphql.InputObject {
	name := table.TypePrefix + "UpdateInput"
	if obj, ok := g.tableInputs[name]; ok {
		return obj
	}

	fields := graphql.InputObjectConfigFieldMap{}
	for ci := range table.Columns {
		col := &table.Columns[ci]
		pair, err := g.registry.ColumnType(table, col)
		if err != nil {
			continue
		}
		fields[col.FieldName] = &graphql.InputObjectFieldConfig{
			Type:        pair.Input,
			Description: col.Description,
		}
	}
	obj := graphql.NewInputObject(graphql.InputObjectConfig{
		Name:        name,
		Description: "Replacement values for matched rows in " + table.Name + ".",
		Fields:      fields,
	})
	g.tableInputs[name] = obj
	return obj
}
