package relgraph

import (
	"testing"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablegraph/internal/gqlerr"
	"tablegraph/internal/relational"
	"tablegraph/internal/remap"
	"tablegraph/internal/schema"
	"tablegraph/internal/typereg"
)

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	s := &schema.Schema{
		Tables: []schema.Table{
			{
				Name: "users",
				Columns: []schema.Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "name", Type: "varchar(255)"},
				},
				Relations: []schema.Relation{
					{Name: "posts", Kind: schema.RelationMany, References: "posts", Keys: []schema.JoinKey{{LocalColumn: "id", ReferencedColumn: "author_id"}}},
				},
			},
			{
				Name: "posts",
				Columns: []schema.Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "author_id", Type: "int"},
					{Name: "big_id", Type: "bigint", Nullable: true},
					{Name: "payload", Type: "json", Nullable: true},
				},
				Relations: []schema.Relation{
					{Name: "author", Kind: schema.RelationOne, References: "users", Keys: []schema.JoinKey{{LocalColumn: "author_id", ReferencedColumn: "id"}}},
				},
			},
		},
	}
	require.NoError(t, s.Validate())
	schema.ApplyNames(s, nil)
	return s
}

func newGraph(t *testing.T, s *schema.Schema, depth *int) *Graph {
	t.Helper()
	g, err := New(s, typereg.Default(), remap.Default(), depth)
	require.NoError(t, err)
	return g
}

func intptr(v int) *int { return &v }

func TestNew_NegativeDepth(t *testing.T) {
	s := testSchema(t)
	_, err := New(s, typereg.Default(), remap.Default(), intptr(-1))
	require.Error(t, err)
	var buildErr *gqlerr.BuildError
	assert.ErrorAs(t, err, &buildErr)
}

func TestNew_UnresolvableColumnType(t *testing.T) {
	s := &schema.Schema{
		Tables: []schema.Table{
			{
				Name: "shapes",
				Columns: []schema.Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "outline", Type: "polygon"},
				},
			},
		},
	}
	schema.ApplyNames(s, nil)

	_, err := New(s, typereg.Default(), remap.Default(), nil)
	require.Error(t, err)
	var buildErr *gqlerr.BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Error(), "polygon")
}

func TestSelectType_UnlimitedDepthIsCyclic(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, nil)

	postType := g.SelectType(s.Table("posts"))
	userType := g.SelectType(s.Table("users"))
	require.NotNil(t, postType)
	require.NotNil(t, userType)
	assert.Equal(t, "PostsSelectItem", postType.Name())
	assert.Equal(t, "UsersSelectItem", userType.Name())

	authorField, ok := postType.Fields()["author"]
	require.True(t, ok, "expected author field")
	assert.Same(t, userType, authorField.Type)

	postsField, ok := userType.Fields()["posts"]
	require.True(t, ok, "expected posts field")
	nonNull, ok := postsField.Type.(*graphql.NonNull)
	require.True(t, ok)
	list, ok := nonNull.OfType.(*graphql.List)
	require.True(t, ok)
	inner, ok := list.OfType.(*graphql.NonNull)
	require.True(t, ok)
	assert.Same(t, postType, inner.OfType)
}

func TestSelectType_FiniteDepthUsesVariants(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, intptr(1))

	postType := g.SelectType(s.Table("posts"))
	authorField, ok := postType.Fields()["author"]
	require.True(t, ok)

	leaf, ok := authorField.Type.(*graphql.Object)
	require.True(t, ok)
	assert.Equal(t, "UsersSelectItemL0", leaf.Name())

	leafFields := leaf.Fields()
	assert.Contains(t, leafFields, "name")
	assert.NotContains(t, leafFields, "posts")
}

func TestSelectType_SelfRelationBottomsOut(t *testing.T) {
	s := &schema.Schema{
		Tables: []schema.Table{
			{
				Name: "categories",
				Columns: []schema.Column{
					{Name: "id", Type: "int", PrimaryKey: true},
					{Name: "parent_id", Type: "int", Nullable: true},
				},
				Relations: []schema.Relation{
					{Name: "parent", Kind: schema.RelationOne, References: "categories", Keys: []schema.JoinKey{{LocalColumn: "parent_id", ReferencedColumn: "id"}}},
					{Name: "subcategories", Kind: schema.RelationMany, References: "categories", Keys: []schema.JoinKey{{LocalColumn: "id", ReferencedColumn: "parent_id"}}},
				},
			},
		},
	}
	require.NoError(t, s.Validate())
	schema.ApplyNames(s, nil)

	g := newGraph(t, s, intptr(2))
	root := g.SelectType(s.Table("categories"))
	require.NotNil(t, root)

	level1, ok := root.Fields()["parent"].Type.(*graphql.Object)
	require.True(t, ok)
	assert.Equal(t, "CategoriesSelectItemL1", level1.Name())

	level0, ok := level1.Fields()["parent"].Type.(*graphql.Object)
	require.True(t, ok)
	assert.Equal(t, "CategoriesSelectItemL0", level0.Name())
	assert.NotContains(t, level0.Fields(), "parent")
	assert.NotContains(t, level0.Fields(), "subcategories")

	// Unlimited depth closes the cycle on a single type instead.
	cyclic := newGraph(t, s, nil)
	cyclicRoot := cyclic.SelectType(s.Table("categories"))
	assert.Same(t, cyclicRoot, cyclicRoot.Fields()["parent"].Type)
}

func TestSelectType_DepthZeroOmitsRelations(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, intptr(0))

	fields := g.SelectType(s.Table("posts")).Fields()
	assert.Contains(t, fields, "id")
	assert.NotContains(t, fields, "author")
}

func TestItemType_HasNoRelationFields(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, nil)

	itemType := g.ItemType(s.Table("posts"))
	require.NotNil(t, itemType)
	assert.Equal(t, "PostsItem", itemType.Name())

	fields := itemType.Fields()
	assert.Contains(t, fields, "id")
	assert.Contains(t, fields, "bigId")
	assert.NotContains(t, fields, "author")
}

func TestSharedVariantInstances(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, nil)

	first := g.SelectType(s.Table("posts"))
	second := g.SelectType(s.Table("posts"))
	assert.Same(t, first, second)
}

func TestColumnResolver_ConvertsToWireForm(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, nil)

	field := g.SelectType(s.Table("posts")).Fields()["bigId"]
	require.NotNil(t, field)

	out, err := field.Resolve(graphql.ResolveParams{
		Source: relational.Row{"big_id": int64(9007199254740993)},
	})
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", out)
}

func TestColumnResolver_ReadsStorageName(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, nil)

	field := g.SelectType(s.Table("posts")).Fields()["authorId"]
	require.NotNil(t, field)

	out, err := field.Resolve(graphql.ResolveParams{
		Source: relational.Row{"author_id": 7},
	})
	require.NoError(t, err)
	assert.Equal(t, 7, out)
}

func TestColumnResolver_FailureIsPerField(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, nil)

	row := relational.Row{
		"id":      1,
		"payload": []byte{0xff, 0xfe},
	}
	fields := g.SelectType(s.Table("posts")).Fields()

	_, err := fields["payload"].Resolve(graphql.ResolveParams{Source: row})
	require.Error(t, err)
	var remapErr *gqlerr.RemapError
	assert.ErrorAs(t, err, &remapErr)

	out, err := fields["id"].Resolve(graphql.ResolveParams{Source: row})
	require.NoError(t, err)
	assert.Equal(t, 1, out)
}

func TestRelationResolvers_ReadPreloadedRows(t *testing.T) {
	s := testSchema(t)
	g := newGraph(t, s, nil)

	postsField := g.SelectType(s.Table("users")).Fields()["posts"]
	require.NotNil(t, postsField)

	loaded := []relational.Row{{"id": 1}, {"id": 2}}
	out, err := postsField.Resolve(graphql.ResolveParams{
		Source: relational.Row{"id": 1, "posts": loaded},
	})
	require.NoError(t, err)
	assert.Equal(t, loaded, out)

	// Unloaded to-many resolves to an empty list, never nil.
	out, err = postsField.Resolve(graphql.ResolveParams{
		Source: relational.Row{"id": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []relational.Row{}, out)

	authorField := g.SelectType(s.Table("posts")).Fields()["author"]
	out, err = authorField.Resolve(graphql.ResolveParams{
		Source: relational.Row{"id": 1, "author": relational.Row{"id": 9}},
	})
	require.NoError(t, err)
	assert.Equal(t, relational.Row{"id": 9}, out)

	out, err = authorField.Resolve(graphql.ResolveParams{
		Source: relational.Row{"id": 1},
	})
	require.NoError(t, err)
	assert.Nil(t, out)
}
