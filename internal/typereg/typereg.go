// Package typereg maps column type tags to GraphQL type pairs. A Builder
// collects factories for tags and kinds, then Build freezes the set into a
// Registry that schema compilation consults. Compilation never mutates the
// registry, so one registry can back any number of compiled schemas.
package typereg

import (
	"sync"

	"github.com/graphql-go/graphql"

	"tablegraph/internal/coltype"
	"tablegraph/internal/gqlerr"
	"tablegraph/internal/scalars"
	"tablegraph/internal/schema"
)

// TypePair carries the GraphQL types a column resolves to: Output for
// selection sets, Input for filters and mutation inputs.
type TypePair struct {
	Output graphql.Output
	Input  graphql.Input
}

// Factory produces the type pair for one column. Factories receive the
// registry so custom registrations can reuse the shared scalar instances.
type Factory func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error)

// Options configures registry construction.
type Options struct {
	// Geometry selects the point representation. Defaults to object form.
	Geometry coltype.GeometryMode
}

// Builder accumulates type factories. The zero value is not usable; call
// NewBuilder, which seeds the built-in factories for every known kind.
type Builder struct {
	tags  map[string]Factory
	kinds map[coltype.Kind]Factory
	built bool
}

// NewBuilder returns a Builder seeded with the built-in factories.
func NewBuilder() *Builder {
	b := &Builder{
		tags:  map[string]Factory{},
		kinds: map[coltype.Kind]Factory{},
	}
	for kind, factory := range builtinFactories {
		b.kinds[kind] = factory
	}
	return b
}

// RegisterTag installs a factory for an exact type tag, overriding any
// built-in. Matching is case-insensitive on the full tag, then on the tag
// with its size specifier stripped. Panics after Build.
func (b *Builder) RegisterTag(tag string, factory Factory) *Builder {
	if b.built {
		panic("typereg: RegisterTag called after Build")
	}
	if factory == nil {
		panic("typereg: nil factory")
	}
	b.tags[coltype.NormalizeTag(tag)] = factory
	return b
}

// RegisterKind installs a factory for a whole kind, overriding the built-in.
// Panics after Build.
func (b *Builder) RegisterKind(kind coltype.Kind, factory Factory) *Builder {
	if b.built {
		panic("typereg: RegisterKind called after Build")
	}
	if factory == nil {
		panic("typereg: nil factory")
	}
	b.kinds[kind] = factory
	return b
}

// Build freezes the builder and returns the registry. The builder cannot be
// used again afterwards.
func (b *Builder) Build(opts Options) *Registry {
	if b.built {
		panic("typereg: Build called twice")
	}
	b.built = true

	geometry := opts.Geometry
	if geometry == "" {
		geometry = coltype.GeometryModeObject
	}

	reg := &Registry{
		tags:     make(map[string]Factory, len(b.tags)),
		kinds:    make(map[coltype.Kind]Factory, len(b.kinds)),
		geometry: geometry,
		columns:  map[string]TypePair{},
		enums:    map[string]*graphql.Enum{},

		nonNegativeInt: scalars.NonNegativeInt(),
		jsonScalar:     scalars.JSON(),
		bigIntScalar:   scalars.BigInt(),
		decimalScalar:  scalars.Decimal(),
		dateScalar:     scalars.Date(),
		dateTimeScalar: scalars.DateTime(),
		timeScalar:     scalars.Time(),
		yearScalar:     scalars.Year(),
		bytesScalar:    scalars.Bytes(),
		uuidScalar:     scalars.UUID(),
		vectorScalar:   scalars.Vector(),
	}
	for tag, factory := range b.tags {
		reg.tags[tag] = factory
	}
	for kind, factory := range b.kinds {
		reg.kinds[kind] = factory
	}
	return reg
}

// Registry resolves columns to GraphQL type pairs. Safe for concurrent use.
type Registry struct {
	tags     map[string]Factory
	kinds    map[coltype.Kind]Factory
	geometry coltype.GeometryMode

	mu      sync.RWMutex
	columns map[string]TypePair
	enums   map[string]*graphql.Enum

	pointObject *graphql.Object
	pointInput  *graphql.InputObject

	nonNegativeInt *graphql.Scalar
	jsonScalar     *graphql.Scalar
	bigIntScalar   *graphql.Scalar
	decimalScalar  *graphql.Scalar
	dateScalar     *graphql.Scalar
	dateTimeScalar *graphql.Scalar
	timeScalar     *graphql.Scalar
	yearScalar     *graphql.Scalar
	bytesScalar    *graphql.Scalar
	uuidScalar     *graphql.Scalar
	vectorScalar   *graphql.Scalar
}

// Default returns a registry with only the built-in factories and default
// options.
func Default() *Registry {
	return NewBuilder().Build(Options{})
}

// ColumnType resolves the type pair for a column, caching the result so every
// field referencing the column shares the same type instances.
func (r *Registry) ColumnType(table *schema.Table, col *schema.Column) (TypePair, error) {
	key := table.Name + "." + col.Name
	r.mu.RLock()
	cached, ok := r.columns[key]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	factory, err := r.resolveFactory(table, col)
	if err != nil {
		return TypePair{}, err
	}
	pair, err := factory(r, table, col)
	if err != nil {
		return TypePair{}, err
	}
	if pair.Output == nil || pair.Input == nil {
		return TypePair{}, gqlerr.Buildf("type factory for column %s.%s returned an incomplete pair", table.Name, col.Name)
	}

	r.mu.Lock()
	if cached, ok := r.columns[key]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.columns[key] = pair
	r.mu.Unlock()
	return pair, nil
}

func (r *Registry) resolveFactory(table *schema.Table, col *schema.Column) (Factory, error) {
	tag := coltype.NormalizeTag(col.Type)
	if factory, ok := r.tags[tag]; ok {
		return factory, nil
	}
	if base := coltype.BaseTag(tag); base != tag {
		if factory, ok := r.tags[base]; ok {
			return factory, nil
		}
	}
	if factory, ok := r.kinds[col.Kind()]; ok && col.Kind() != coltype.KindUnknown {
		return factory, nil
	}
	return nil, gqlerr.Buildf("no type mapping for column %s.%s: unrecognized type %q", table.Name, col.Name, col.Type)
}

// NonNegativeInt returns the shared scalar backing offset and limit
// arguments.
func (r *Registry) NonNegativeInt() *graphql.Scalar {
	return r.nonNegativeInt
}

// GeometryMode reports the point representation the registry was built with.
func (r *Registry) GeometryMode() coltype.GeometryMode {
	return r.geometry
}
