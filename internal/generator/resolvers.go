package generator

import (
	"context"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"

	"tablegraph/internal/filter"
	"tablegraph/internal/gqlerr"
	"tablegraph/internal/logging"
	"tablegraph/internal/order"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
)

// ResolverContext bundles the per-request state resolvers work with: the
// relational layer, the request-scoped logger, and the request id assigned
// by the HTTP middleware.
type ResolverContext struct {
	Layer     relational.Layer
	Logger    *logging.Logger
	RequestID string
}

func (g *generator) resolverContext(ctx context.Context) (context.Context, *ResolverContext) {
	if ctx == nil {
		ctx = context.Background()
	}
	return ctx, &ResolverContext{
		Layer:     g.layer,
		Logger:    logging.FromContext(ctx),
		RequestID: logging.GetRequestID(ctx),
	}
}

func (g *generator) makeCollectionResolver(table *schema.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, rctx := g.resolverContext(p.Context)
		req, err := g.readRequest(table, p, true)
		if err != nil {
			return nil, err
		}
		rows, err := rctx.Layer.Read(ctx, req)
		if err != nil {
			rctx.Logger.Error("read failed", "table", table.Name, "request_id", rctx.RequestID, "error", err)
			return nil, err
		}
		return rows, nil
	}
}

func (g *generator) makeSingleResolver(table *schema.Table) graphql.FieldResolveFn {
	return func(p graphql.ResolveParams) (interface{}, error) {
		ctx, rctx := g.resolverContext(p.Context)
		req, err := g.readRequest(table, p, false)
		if err != nil {
			return nil, err
		}
		one := 1
		req.Limit = &one
		rows, err := rctx.Layer.Read(ctx, req)
		if err != nil {
			rctx.Logger.Error("read failed", "table", table.Name, "request_id", rctx.RequestID, "error", err)
			return nil, err
		}
		if len(rows) == 0 {
			return nil, nil
		}
		return rows[0], nil
	}
}

// readRequest assembles the relational read for one query field: predicate
// from where, sort keys from orderBy, the window arguments, and the relation
// prefetch tree from the selection set.
func (g *generator) readRequest(table *schema.Table, p graphql.ResolveParams, withLimit bool) (relational.ReadRequest, error) {
	req := relational.ReadRequest{Table: table.Name}

	whereArg, err := mapArg(p.Args, "where")
	if err != nil {
		return req, err
	}
	pred, err := filter.Compile(g.remapper, table, whereArg)
	if err != nil {
		return req, err
	}
	req.Predicate = pred

	orderArg, err := mapArg(p.Args, "orderBy")
	if err != nil {
		return req, err
	}
	sort, err := order.Compile(table, orderArg)
	if err != nil {
		return req, err
	}
	req.Sort = sort

	offset, ok, err := intArg(p.Args, "offset")
	if err != nil {
		return req, err
	}
	if ok {
		req.Offset = offset
	}

	if withLimit {
		limit, ok, err := intArg(p.Args, "limit")
		if err != nil {
			return req, err
		}
		if ok {
			req.Limit = &limit
		}
	}

	req.Relations = g.requestedRelations(table, p)
	return req, nil
}

func mapArg(args map[string]interface{}, name string) (map[string]interface{}, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, gqlerr.Validationf(name, "%s must be an object", name)
	}
	return m, nil
}

func intArg(args map[string]interface{}, name string) (int, bool, error) {
	raw, ok := args[name]
	if !ok || raw == nil {
		return 0, false, nil
	}
	n, ok := raw.(int)
	if !ok {
		return 0, false, gqlerr.Validationf(name, "%s must be an integer", name)
	}
	if n < 0 {
		return 0, false, gqlerr.Validationf(name, "%s must not be negative", name)
	}
	return n, true, nil
}

// requestedRelations derives the relation prefetch tree from the query's
// selection set, so the layer loads exactly the relations the client asked
// for. Fragment spreads and inline fragments are flattened; aliased
// selections of the same relation merge into one load.
func (g *generator) requestedRelations(table *schema.Table, p graphql.ResolveParams) []relational.RelationLoad {
	var loads []relational.RelationLoad
	index := map[string]int{}
	for _, field := range p.Info.FieldASTs {
		if field == nil || field.SelectionSet == nil {
			continue
		}
		g.collectRelationLoads(table, field.SelectionSet, p.Info.Fragments, &loads, index)
	}
	return loads
}

func (g *generator) collectRelationLoads(table *schema.Table, set *ast.SelectionSet, fragments map[string]ast.Definition, loads *[]relational.RelationLoad, index map[string]int) {
	for _, sel := range set.Selections {
		switch node := sel.(type) {
		case *ast.Field:
			if node.Name == nil {
				continue
			}
			rel := table.RelationByField(node.Name.Value)
			if rel == nil {
				continue
			}
			target := g.schema.Table(rel.References)
			if target == nil || node.SelectionSet == nil {
				continue
			}
			var children []relational.RelationLoad
			childIndex := map[string]int{}
			g.collectRelationLoads(target, node.SelectionSet, fragments, &children, childIndex)
			if i, ok := index[rel.Name]; ok {
				(*loads)[i].Children = mergeLoads((*loads)[i].Children, children)
			} else {
				index[rel.Name] = len(*loads)
				*loads = append(*loads, relational.RelationLoad{Relation: rel.Name, Children: children})
			}
		case *ast.InlineFragment:
			if node.SelectionSet != nil {
				g.collectRelationLoads(table, node.SelectionSet, fragments, loads, index)
			}
		case *ast.FragmentSpread:
			if node.Name == nil {
				continue
			}
			def, ok := fragments[node.Name.Value].(*ast.FragmentDefinition)
			if !ok || def.SelectionSet == nil {
				continue
			}
			g.collectRelationLoads(table, def.SelectionSet, fragments, loads, index)
		}
	}
}

func mergeLoads(a, b []relational.RelationLoad) []relational.RelationLoad {
	if len(b) == 0 {
		return a
	}
	index := map[string]int{}
	for i := range a {
		index[a[i].Relation] = i
	}
	for _, load := range b {
		if i, ok := index[load.Relation]; ok {
			a[i].Children = mergeLoads(a[i].Children, load.Children)
		} else {
			index[load.Relation] = len(a)
			a = append(a, load)
		}
	}
	return a
}
