package generator

import (
	"fmt"
	"sort"

	"github.com/graphql-go/graphql"
	"go.opentelemetry.io/otel/attribute"

	"tablegraph/internal/filter"
	"tablegraph/internal/gqlerr"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
)

// successType is the shared result object for returnless mutations.
func (g *generator) successType() *graphql.Object {
	if g.success != nil {
		return g.success
	}
	g.success = graphql.NewObject(graphql.ObjectConfig{
		Name:        "MutationSuccess",
		Description: "Outcome of a mutation on a backend that does not return mutated rows.",
		Fields: graphql.Fields{
			"isSuccess": &graphql.Field{
				Type: graphql.NewNonNull(graphql.Boolean),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if row, ok := p.Source.(relational.Row); ok {
						done, _ := row["isSuccess"].(bool)
						return done, nil
					}
					return false, nil
				},
			},
		},
	})
	return g.success
}

func successRow() relational.Row {
	return relational.Row{"isSuccess": true}
}

// addTableMutations publishes the four mutation fields for table. Multi-row
// results are either the mutated Item rows or MutationSuccess, chosen once
// from the layer's capabilities; single-row insert keeps its nullable Item
// shape in both modes and returns null on a returnless backend.
func (g *generator) addTableMutations(fields graphql.Fields, table *schema.Table) {
	itemType := g.graph.ItemType(table)
	insertInput := g.insertInput(table)
	filtersInput := g.tableFilters(table)

	var rowsResult graphql.Output
	if g.returnless {
		rowsResult = graphql.NewNonNull(g.successType())
	} else {
		rowsResult = graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(itemType)))
	}

	fields[table.InsertName] = &graphql.Field{
		Type:        rowsResult,
		Description: "Insert rows into " + table.Name + ".",
		Args: graphql.FieldConfigArgument{
			"values": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(insertInput)))},
		},
		Resolve: g.makeInsertResolver(table),
	}

	fields[table.InsertSingleName] = &graphql.Field{
		Type:        itemType,
		Description: "Insert one row into " + table.Name + ".",
		Args: graphql.FieldConfigArgument{
			"values": &graphql.ArgumentConfig{Type: graphql.NewNonNull(insertInput)},
		},
		Resolve: g.makeInsertSingleResolver(table),
	}

	fields[table.UpdateName] = &graphql.Field{
		Type:        rowsResult,
		Description: "Update rows in " + table.Name + ". An absent where updates every row.",
		Args: graphql.FieldConfigArgument{
			"set":   &graphql.ArgumentConfig{Type: graphql.NewNonNull(g.updateInput(table))},
			"where": &graphql.ArgumentConfig{Type: filtersInput},
		},
		Resolve: g.makeUpdateResolver(table),
	}

	fields[table.DeleteName] = &graphql.Field{
		Type:        rowsResult,
		Description: "Delete rows from " + table.Name + ". An absent where deletes every row.",
		Args: graphql.FieldConfigArgument{
			"where": &graphql.ArgumentConfig{Type: filtersInput},
		},
		Resolve: g.makeDeleteResolver(table),
	}
}

func (g *generator) makeInsertResolver(table *schema.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (resolved interface{}, finishErr error) {
		ctx, rctx := g.resolverContext(p.Context)
		ctx, span := startResolverSpan(ctx, "graphql.mutation.insert",
			attribute.String("graphql.table", table.Name))
		defer func() { finishResolverSpan(span, finishErr) }()

		rawValues, ok := p.Args["values"].([]interface{})
		if !ok {
			return nil, gqlerr.Validationf("values", "values must be a list of row objects")
		}
		rows := make([]relational.Row, 0, len(rawValues))
		for i, raw := range rawValues {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				return nil, gqlerr.Validationf(fmt.Sprintf("values[%d]", i), "row values must be an object")
			}
			row, err := g.storageRow(table, entry, fmt.Sprintf("values[%d]", i), true)
			if err != nil {
				return nil, err
			}
			rows = append(rows, row)
		}

		result, err := rctx.Layer.Insert(ctx, relational.InsertRequest{Table: table.Name, Rows: rows})
		if err != nil {
			rctx.Logger.Error("insert failed", "table", table.Name, "request_id", rctx.RequestID, "error", err)
			return nil, err
		}
		span.SetAttributes(attribute.Int64("graphql.mutation.affected", result.Affected))
		if g.returnless {
			return successRow(), nil
		}
		return result.Rows, nil
	}
}

func (g *generator) makeInsertSingleResolver(table *schema.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (resolved interface{}, finishErr error) {
		ctx, rctx := g.resolverContext(p.Context)
		ctx, span := startResolverSpan(ctx, "graphql.mutation.insert",
			attribute.String("graphql.table", table.Name),
			attribute.Bool("graphql.single", true))
		defer func() { finishResolverSpan(span, finishErr) }()

		entry, ok := p.Args["values"].(map[string]interface{})
		if !ok {
			return nil, gqlerr.Validationf("values", "values must be a row object")
		}
		row, err := g.storageRow(table, entry, "values", true)
		if err != nil {
			return nil, err
		}

		result, err := rctx.Layer.Insert(ctx, relational.InsertRequest{Table: table.Name, Rows: []relational.Row{row}})
		if err != nil {
			rctx.Logger.Error("insert failed", "table", table.Name, "request_id", rctx.RequestID, "error", err)
			return nil, err
		}
		span.SetAttributes(attribute.Int64("graphql.mutation.affected", result.Affected))
		if g.returnless || len(result.Rows) == 0 {
			return nil, nil
		}
		return result.Rows[0], nil
	}
}

func (g *generator) makeUpdateResolver(table *schema.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (resolved interface{}, finishErr error) {
		ctx, rctx := g.resolverContext(p.Context)
		ctx, span := startResolverSpan(ctx, "graphql.mutation.update",
			attribute.String("graphql.table", table.Name))
		defer func() { finishResolverSpan(span, finishErr) }()

		entry, ok := p.Args["set"].(map[string]interface{})
		if !ok {
			return nil, gqlerr.Validationf("set", "set must be an object")
		}
		if len(entry) == 0 {
			return nil, gqlerr.Validationf("set", "set must name at least one column")
		}
		set, err := g.storageRow(table, entry, "set", false)
		if err != nil {
			return nil, err
		}

		pred, err := g.whereArg(table, p)
		if err != nil {
			return nil, err
		}

		result, err := rctx.Layer.Update(ctx, relational.UpdateRequest{Table: table.Name, Set: set, Predicate: pred})
		if err != nil {
			rctx.Logger.Error("update failed", "table", table.Name, "request_id", rctx.RequestID, "error", err)
			return nil, err
		}
		span.SetAttributes(attribute.Int64("graphql.mutation.affected", result.Affected))
		if g.returnless {
			return successRow(), nil
		}
		return result.Rows, nil
	}
}

func (g *generator) makeDeleteResolver(table *schema.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (resolved interface{}, finishErr error) {
		ctx, rctx := g.resolverContext(p.Context)
		ctx, span := startResolverSpan(ctx, "graphql.mutation.delete",
			attribute.String("graphql.table", table.Name))
		defer func() { finishResolverSpan(span, finishErr) }()

		pred, err := g.whereArg(table, p)
		if err != nil {
			return nil, err
		}

		result, err := rctx.Layer.Delete(ctx, relational.DeleteRequest{Table: table.Name, Predicate: pred})
		if err != nil {
			rctx.Logger.Error("delete failed", "table", table.Name, "request_id", rctx.RequestID, "error", err)
			return nil, err
		}
		span.SetAttributes(attribute.Int64("graphql.mutation.affected", result.Affected))
		if g.returnless {
			return successRow(), nil
		}
		return result.Rows, nil
	}
}

// whereArg compiles the optional where argument. Absent means every row;
// update and delete run unbounded in that case.
func (g *generator) whereArg(table *schema.Table, p graphql.ResolveParams) (relational.Predicate, error) {
	whereMap, err := mapArg(p.Args, "where")
	if err != nil {
		return nil, err
	}
	return filter.Compile(g.remapper, table, whereMap)
}

// storageRow converts one wire-form values object into a storage row. For
// inserts every required column must be present; updates accept any subset.
// Explicit nulls pass through for nullable columns only.
func (g *generator) storageRow(table *schema.Table, entry map[string]interface{}, argPath string, insert bool) (relational.Row, error) {
	fieldNames := make([]string, 0, len(entry))
	for fieldName := range entry {
		fieldNames = append(fieldNames, fieldName)
	}
	sort.Strings(fieldNames)

	row := relational.Row{}
	for _, fieldName := range fieldNames {
		col := table.ColumnByField(fieldName)
		if col == nil {
			return nil, gqlerr.Validationf(argPath+"."+fieldName, "table %q has no column for %q", table.Name, fieldName)
		}
		raw := entry[fieldName]
		if raw == nil {
			if !col.Nullable {
				return nil, gqlerr.Validationf(argPath+"."+fieldName, "column %q does not accept null", col.Name)
			}
			row[col.Name] = nil
			continue
		}
		stored, err := g.remapper.FromWire(table, col, raw)
		if err != nil {
			return nil, err
		}
		row[col.Name] = stored
	}

	if insert {
		for ci := range table.Columns {
			col := &table.Columns[ci]
			if !col.Required() {
				continue
			}
			if _, ok := row[col.Name]; !ok {
				return nil, gqlerr.Validationf(argPath+"."+col.FieldName, "column %q requires a value", col.Name)
			}
		}
	}
	return row, nil
}
