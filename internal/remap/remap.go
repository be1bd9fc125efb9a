// Package remap converts column values between their storage form and their
// wire form. Storage form is what the backing layer holds (driver bytes,
// time.Time, WKB points); wire form is what GraphQL clients send and receive
// (ISO-8601 strings, decimal strings for 64-bit and binary values, member
// lists for sets, {x, y} objects or float pairs for points).
//
// A Builder collects conversion functions per tag or kind and Build freezes
// them into a Remapper, mirroring the type registry so the two stay
// registered over the same tags.
package remap

import (
	"errors"

	"tablegraph/internal/coltype"
	"tablegraph/internal/gqlerr"
	"tablegraph/internal/schema"
)

// Func converts a single non-nil value. Functions receive the remapper so
// custom registrations can consult options like the geometry mode. Returned
// errors are wrapped into RemapError with the column and direction filled in;
// returning a RemapError directly preserves it as-is.
type Func func(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error)

// Funcs pairs the two directions for one tag or kind. A nil direction falls
// back to passing the value through unchanged.
type Funcs struct {
	ToWire   Func
	FromWire Func
}

// Options configures remapper construction.
type Options struct {
	// Geometry selects the point wire form. Must match the type registry the
	// schema was compiled with. Defaults to object form.
	Geometry coltype.GeometryMode
}

// Builder accumulates conversion functions. Use NewBuilder; the zero value is
// not usable.
type Builder struct {
	tags  map[string]Funcs
	kinds map[coltype.Kind]Funcs
	built bool
}

// NewBuilder returns a Builder seeded with the built-in conversions for every
// known kind.
func NewBuilder() *Builder {
	b := &Builder{
		tags:  map[string]Funcs{},
		kinds: map[coltype.Kind]Funcs{},
	}
	for kind, funcs := range builtinFuncs {
		b.kinds[kind] = funcs
	}
	return b
}

// RegisterTag installs conversions for an exact type tag, overriding any
// built-in. Matching is case-insensitive on the full tag, then on the tag
// with its size specifier stripped. Panics after Build.
func (b *Builder) RegisterTag(tag string, funcs Funcs) *Builder {
	if b.built {
		panic("remap: RegisterTag called after Build")
	}
	b.tags[coltype.NormalizeTag(tag)] = funcs
	return b
}

// RegisterKind installs conversions for a whole kind, overriding the
// built-in. Panics after Build.
func (b *Builder) RegisterKind(kind coltype.Kind, funcs Funcs) *Builder {
	if b.built {
		panic("remap: RegisterKind called after Build")
	}
	b.kinds[kind] = funcs
	return b
}

// Build freezes the builder and returns the remapper. The builder cannot be
// used again afterwards.
func (b *Builder) Build(opts Options) *Remapper {
	if b.built {
		panic("remap: Build called twice")
	}
	b.built = true

	geometry := opts.Geometry
	if geometry == "" {
		geometry = coltype.GeometryModeObject
	}

	r := &Remapper{
		tags:     make(map[string]Funcs, len(b.tags)),
		kinds:    make(map[coltype.Kind]Funcs, len(b.kinds)),
		geometry: geometry,
	}
	for tag, funcs := range b.tags {
		r.tags[tag] = funcs
	}
	for kind, funcs := range b.kinds {
		r.kinds[kind] = funcs
	}
	return r
}

// Remapper converts values for the columns of one compiled schema. Safe for
// concurrent use.
type Remapper struct {
	tags     map[string]Funcs
	kinds    map[coltype.Kind]Funcs
	geometry coltype.GeometryMode
}

// Default returns a remapper with only the built-in conversions and default
// options.
func Default() *Remapper {
	return NewBuilder().Build(Options{})
}

// GeometryMode reports the point wire form the remapper was built with.
func (r *Remapper) GeometryMode() coltype.GeometryMode {
	return r.geometry
}

// ToWire converts a storage value to its wire form. Nil passes through.
func (r *Remapper) ToWire(table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	return r.convert(table, col, value, gqlerr.RemapToWire)
}

// FromWire converts a wire value to its storage form. Nil passes through.
func (r *Remapper) FromWire(table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	return r.convert(table, col, value, gqlerr.RemapFromWire)
}

func (r *Remapper) convert(table *schema.Table, col *schema.Column, value interface{}, direction string) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	funcs := r.resolve(col)
	fn := funcs.ToWire
	if direction == gqlerr.RemapFromWire {
		fn = funcs.FromWire
	}
	if fn == nil {
		return value, nil
	}
	out, err := fn(r, table, col, value)
	if err != nil {
		var remapErr *gqlerr.RemapError
		if errors.As(err, &remapErr) {
			return nil, err
		}
		return nil, gqlerr.Remapf(col.Name, direction, "%s", err.Error())
	}
	return out, nil
}

func (r *Remapper) resolve(col *schema.Column) Funcs {
	tag := coltype.NormalizeTag(col.Type)
	if funcs, ok := r.tags[tag]; ok {
		return funcs
	}
	if base := coltype.BaseTag(tag); base != tag {
		if funcs, ok := r.tags[base]; ok {
			return funcs
		}
	}
	if funcs, ok := r.kinds[col.Kind()]; ok {
		return funcs
	}
	// Unknown tags pass through; the type registry already failed compilation
	// unless a custom type covers them.
	return Funcs{}
}
