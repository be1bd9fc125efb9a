package typereg

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablegraph/internal/coltype"
	"tablegraph/internal/gqlerr"
	"tablegraph/internal/schema"
)

func testTable() *schema.Table {
	return &schema.Table{
		Name:       "posts",
		TypePrefix: "Post",
		Columns: []schema.Column{
			{Name: "id", Type: "int", FieldName: "id"},
			{Name: "big_id", Type: "bigint", FieldName: "bigId"},
			{Name: "content", Type: "text", FieldName: "content"},
			{Name: "published", Type: "boolean", FieldName: "published"},
			{Name: "rating", Type: "decimal(10,2)", FieldName: "rating"},
			{Name: "created_at", Type: "timestamp", FieldName: "createdAt"},
			{Name: "payload", Type: "json", FieldName: "payload"},
			{Name: "checksum", Type: "binary(16)", FieldName: "checksum"},
			{Name: "status", Type: "enum('draft','published')", FieldName: "status", EnumValues: []string{"draft", "published"}},
			{Name: "flags", Type: "set('a','b')", FieldName: "flags", EnumValues: []string{"a", "b"}},
			{Name: "location", Type: "point", FieldName: "location"},
			{Name: "embedding", Type: "vector(3)", FieldName: "embedding"},
		},
	}
}

func TestColumnType_Builtins(t *testing.T) {
	reg := Default()
	table := testTable()

	pair, err := reg.ColumnType(table, table.Column("id"))
	require.NoError(t, err)
	assert.Equal(t, graphql.Int, pair.Output)
	assert.Equal(t, graphql.Int, pair.Input)

	pair, err = reg.ColumnType(table, table.Column("big_id"))
	require.NoError(t, err)
	require.IsType(t, &graphql.Scalar{}, pair.Output)
	assert.Equal(t, "BigInt", pair.Output.(*graphql.Scalar).Name())

	pair, err = reg.ColumnType(table, table.Column("content"))
	require.NoError(t, err)
	assert.Equal(t, graphql.String, pair.Output)

	pair, err = reg.ColumnType(table, table.Column("published"))
	require.NoError(t, err)
	assert.Equal(t, graphql.Boolean, pair.Output)

	pair, err = reg.ColumnType(table, table.Column("rating"))
	require.NoError(t, err)
	assert.Equal(t, "Decimal", pair.Output.(*graphql.Scalar).Name())

	pair, err = reg.ColumnType(table, table.Column("created_at"))
	require.NoError(t, err)
	assert.Equal(t, "DateTime", pair.Output.(*graphql.Scalar).Name())

	pair, err = reg.ColumnType(table, table.Column("payload"))
	require.NoError(t, err)
	assert.Equal(t, "JSON", pair.Output.(*graphql.Scalar).Name())

	pair, err = reg.ColumnType(table, table.Column("checksum"))
	require.NoError(t, err)
	assert.Equal(t, "Bytes", pair.Output.(*graphql.Scalar).Name())

	pair, err = reg.ColumnType(table, table.Column("embedding"))
	require.NoError(t, err)
	assert.Equal(t, "Vector", pair.Output.(*graphql.Scalar).Name())
}

func TestColumnType_EnumAndSet(t *testing.T) {
	reg := Default()
	table := testTable()

	pair, err := reg.ColumnType(table, table.Column("status"))
	require.NoError(t, err)
	enum, ok := pair.Output.(*graphql.Enum)
	require.True(t, ok)
	assert.Equal(t, "PostStatusEnum", enum.Name())
	assert.Same(t, pair.Output, pair.Input)

	pair, err = reg.ColumnType(table, table.Column("flags"))
	require.NoError(t, err)
	list, ok := pair.Output.(*graphql.List)
	require.True(t, ok)
	inner, ok := list.OfType.(*graphql.NonNull)
	require.True(t, ok)
	assert.Equal(t, "PostFlagsEnum", inner.OfType.Name())
}

func TestColumnType_EnumWithoutValues(t *testing.T) {
	reg := Default()
	table := &schema.Table{
		Name:       "posts",
		TypePrefix: "Post",
		Columns: []schema.Column{
			{Name: "status", Type: "enum('a')", FieldName: "status"},
		},
	}

	_, err := reg.ColumnType(table, table.Column("status"))
	require.Error(t, err)
	var buildErr *gqlerr.BuildError
	assert.ErrorAs(t, err, &buildErr)
}

func TestColumnType_SharedInstances(t *testing.T) {
	reg := Default()
	table := testTable()

	first, err := reg.ColumnType(table, table.Column("status"))
	require.NoError(t, err)
	second, err := reg.ColumnType(table, table.Column("status"))
	require.NoError(t, err)
	assert.Same(t, first.Output, second.Output)

	bigA, err := reg.ColumnType(table, table.Column("big_id"))
	require.NoError(t, err)
	bigB, err := reg.ColumnType(table, table.Column("created_at"))
	require.NoError(t, err)
	assert.NotSame(t, bigA.Output, bigB.Output)
}

func TestColumnType_UnknownTag(t *testing.T) {
	reg := Default()
	table := &schema.Table{
		Name:       "posts",
		TypePrefix: "Post",
		Columns: []schema.Column{
			{Name: "shape", Type: "polygon", FieldName: "shape"},
		},
	}

	_, err := reg.ColumnType(table, table.Column("shape"))
	require.Error(t, err)
	var buildErr *gqlerr.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Error(), "polygon")
}

func TestRegisterTag_Override(t *testing.T) {
	builder := NewBuilder()
	builder.RegisterTag("CITEXT", func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: graphql.String, Input: graphql.String}, nil
	})
	reg := builder.Build(Options{})

	table := &schema.Table{
		Name:       "posts",
		TypePrefix: "Post",
		Columns: []schema.Column{
			{Name: "slug", Type: "citext", FieldName: "slug"},
		},
	}

	pair, err := reg.ColumnType(table, table.Column("slug"))
	require.NoError(t, err)
	assert.Equal(t, graphql.String, pair.Output)
}

func TestRegisterTag_SizeSpecifierFallsBackToBase(t *testing.T) {
	builder := NewBuilder()
	builder.RegisterTag("money", func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: graphql.Float, Input: graphql.Float}, nil
	})
	reg := builder.Build(Options{})

	table := &schema.Table{
		Name:       "orders",
		TypePrefix: "Order",
		Columns: []schema.Column{
			{Name: "total", Type: "MONEY(12,2)", FieldName: "total"},
		},
	}

	pair, err := reg.ColumnType(table, table.Column("total"))
	require.NoError(t, err)
	assert.Equal(t, graphql.Float, pair.Output)
}

func TestRegisterKind_Override(t *testing.T) {
	builder := NewBuilder()
	builder.RegisterKind(coltype.KindBinary, func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: graphql.String, Input: graphql.String}, nil
	})
	reg := builder.Build(Options{})

	table := testTable()
	pair, err := reg.ColumnType(table, table.Column("checksum"))
	require.NoError(t, err)
	assert.Equal(t, graphql.String, pair.Output)
}

func TestBuilder_FrozenAfterBuild(t *testing.T) {
	builder := NewBuilder()
	builder.Build(Options{})

	assert.Panics(t, func() {
		builder.RegisterTag("citext", func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
			return TypePair{}, nil
		})
	})
	assert.Panics(t, func() {
		builder.RegisterKind(coltype.KindText, func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
			return TypePair{}, nil
		})
	})
	assert.Panics(t, func() {
		builder.Build(Options{})
	})
}

func TestGeometryModes(t *testing.T) {
	table := testTable()

	objectReg := NewBuilder().Build(Options{Geometry: coltype.GeometryModeObject})
	pair, err := objectReg.ColumnType(table, table.Column("location"))
	require.NoError(t, err)
	object, ok := pair.Output.(*graphql.Object)
	require.True(t, ok)
	assert.Equal(t, "Point", object.Name())
	input, ok := pair.Input.(*graphql.InputObject)
	require.True(t, ok)
	assert.Equal(t, "PointInput", input.Name())

	listReg := NewBuilder().Build(Options{Geometry: coltype.GeometryModeList})
	pair, err = listReg.ColumnType(table, table.Column("location"))
	require.NoError(t, err)
	_, ok = pair.Output.(*graphql.List)
	assert.True(t, ok)
}

func TestEnumMemberName(t *testing.T) {
	testCases := []struct {
		value    string
		expected string
	}{
		{"draft", "draft"},
		{"in progress", "in_progress"},
		{"with-dash", "with_dash"},
		{"2fast", "_2fast"},
		{"true", "true_"},
		{"", "_"},
	}

	for _, tc := range testCases {
		t.Run(tc.value, func(t *testing.T) {
			assert.Equal(t, tc.expected, enumMemberName(tc.value))
		})
	}
}
