// Package generator compiles a schema declaration into an executable GraphQL
// schema backed by a relational layer.
//
// Compilation is a single pass: the declaration is validated, published names
// are assigned, column types are resolved through the type registry, result
// objects come from the relation graph, and the query and mutation roots are
// assembled here. The relational layer never shapes the API except in one
// place: its capabilities decide, once at compile time, whether mutations
// return the affected rows or a bare success flag.
package generator

import (
	"context"

	"github.com/graphql-go/graphql"

	"tablegraph/internal/coltype"
	"tablegraph/internal/gqlerr"
	"tablegraph/internal/logging"
	"tablegraph/internal/naming"
	"tablegraph/internal/relational"
	"tablegraph/internal/relgraph"
	"tablegraph/internal/remap"
	"tablegraph/internal/schema"
	"tablegraph/internal/typereg"
)

// Options tunes schema generation. The zero value produces a full read/write
// API with unlimited relation depth and object-shaped points.
type Options struct {
	// DisableMutations omits the Mutation root, producing a read-only API.
	DisableMutations bool

	// Depth bounds relation nesting in query result types. Nil means
	// unlimited; zero strips relation fields from the result roots.
	Depth *int

	// Geometry selects the wire shape for point columns.
	Geometry coltype.GeometryMode

	// Namer overrides the published-name conventions. Nil uses the defaults.
	Namer *naming.Namer

	// Logger receives compile-time diagnostics. Nil falls back to the
	// process default.
	Logger *logging.Logger
}

// generator holds the state shared by the field builders and the resolver
// closures. Compile runs on one goroutine and the input caches are only
// written during it (including the thunks graphql.NewSchema evaluates), so
// they are unsynchronized; after Compile returns, resolvers read the struct
// without mutating it.
type generator struct {
	schema   *schema.Schema
	layer    relational.Layer
	registry *typereg.Registry
	remapper *remap.Remapper
	graph    *relgraph.Graph
	logger   *logging.Logger

	// returnless is fixed from the layer's capabilities before any mutation
	// field is built.
	returnless bool

	columnFilters map[string]*graphql.InputObject
	tableInputs   map[string]*graphql.InputObject
	orderEntry    *graphql.InputObject
	success       *graphql.Object
}

// Compile builds the GraphQL schema for s on top of layer. The type and value
// builders may be nil, in which case the built-in registrations apply as-is;
// passing builders lets callers override how declared type tags map to
// GraphQL types and wire values. Compile freezes both builders.
func Compile(s *schema.Schema, layer relational.Layer, types *typereg.Builder, values *remap.Builder, opts Options) (*graphql.Schema, error) {
	if s == nil {
		return nil, gqlerr.Buildf("schema declaration is nil")
	}
	if layer == nil {
		return nil, gqlerr.Buildf("relational layer is nil")
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	schema.ApplyNames(s, opts.Namer)

	if types == nil {
		types = typereg.NewBuilder()
	}
	if values == nil {
		values = remap.NewBuilder()
	}
	registry := types.Build(typereg.Options{Geometry: opts.Geometry})
	remapper := values.Build(remap.Options{Geometry: opts.Geometry})

	graph, err := relgraph.New(s, registry, remapper, opts.Depth)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.FromContext(context.Background())
	}

	g := &generator{
		schema:        s,
		layer:         layer,
		registry:      registry,
		remapper:      remapper,
		graph:         graph,
		logger:        logger,
		returnless:    !layer.Capabilities().ReturnsMutatedRows,
		columnFilters: map[string]*graphql.InputObject{},
		tableInputs:   map[string]*graphql.InputObject{},
	}

	queryFields := graphql.Fields{}
	for ti := range s.Tables {
		g.addTableQueries(queryFields, &s.Tables[ti])
	}
	cfg := graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
	}

	if !opts.DisableMutations {
		mutationFields := graphql.Fields{}
		for ti := range s.Tables {
			g.addTableMutations(mutationFields, &s.Tables[ti])
		}
		if len(mutationFields) > 0 {
			cfg.Mutation = graphql.NewObject(graphql.ObjectConfig{
				Name:   "Mutation",
				Fields: mutationFields,
			})
		}
	}

	compiled, err := graphql.NewSchema(cfg)
	if err != nil {
		return nil, gqlerr.Buildf("graphql schema assembly failed: %s", err)
	}

	logger.Info("graphql schema compiled",
		"tables", len(s.Tables),
		"mutations", cfg.Mutation != nil,
		"backend", layer.Capabilities().Name,
		"returnless", g.returnless,
	)
	return &compiled, nil
}

// addTableQueries publishes the collection and single-row fields for table.
func (g *generator) addTableQueries(fields graphql.Fields, table *schema.Table) {
	selectType := g.graph.SelectType(table)

	fields[table.CollectionName] = &graphql.Field{
		Type:        graphql.NewNonNull(graphql.NewList(graphql.NewNonNull(selectType))),
		Description: "Rows from " + table.Name + ".",
		Args:        g.readArgs(table, true),
		Resolve:     g.makeCollectionResolver(table),
	}
	fields[table.SingularName] = &graphql.Field{
		Type:        selectType,
		Description: "The first matching row from " + table.Name + ", or null.",
		Args:        g.readArgs(table, false),
		Resolve:     g.makeSingleResolver(table),
	}
}

func (g *generator) readArgs(table *schema.Table, withLimit bool) graphql.FieldConfigArgument {
	args := graphql.FieldConfigArgument{
		"where":   &graphql.ArgumentConfig{Type: g.tableFilters(table)},
		"orderBy": &graphql.ArgumentConfig{Type: g.orderByInput(table)},
		"offset":  &graphql.ArgumentConfig{Type: g.registry.NonNegativeInt()},
	}
	if withLimit {
		args["limit"] = &graphql.ArgumentConfig{Type: g.registry.NonNegativeInt()}
	}
	return args
}
