package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyNames_PublishedNames(t *testing.T) {
	s := validSchema()
	require.NoError(t, s.Validate())
	ApplyNames(s, nil)

	users := s.Table("users")
	assert.Equal(t, "Users", users.TypePrefix)
	assert.Equal(t, "users", users.CollectionName)
	assert.Equal(t, "usersSingle", users.SingularName)
	assert.Equal(t, "insertIntoUsers", users.InsertName)
	assert.Equal(t, "insertIntoUsersSingle", users.InsertSingleName)
	assert.Equal(t, "updateUsers", users.UpdateName)
	assert.Equal(t, "deleteFromUsers", users.DeleteName)

	assert.Equal(t, "id", users.Column("id").FieldName)
	assert.Equal(t, "email", users.Column("email").FieldName)
	assert.Equal(t, "posts", users.Relation("posts").FieldName)
	assert.Equal(t, "author", s.Table("posts").Relation("author").FieldName)
}

func TestApplyNames_SnakeCaseConversion(t *testing.T) {
	s := &Schema{Tables: []Table{{
		Name: "user_profiles",
		Columns: []Column{
			{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
			{Name: "display_name", Type: "varchar(255)"},
		},
	}}}
	require.NoError(t, s.Validate())
	ApplyNames(s, nil)

	table := s.Table("user_profiles")
	assert.Equal(t, "UserProfiles", table.TypePrefix)
	assert.Equal(t, "userProfiles", table.CollectionName)
	assert.Equal(t, "userProfilesSingle", table.SingularName)
	assert.Equal(t, "insertIntoUserProfiles", table.InsertName)
	assert.Equal(t, "displayName", table.Column("display_name").FieldName)
}

func TestApplyNames_RelationFieldAgreesWithKind(t *testing.T) {
	s := &Schema{Tables: []Table{
		{
			Name: "users",
			Columns: []Column{
				{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
			},
			Relations: []Relation{
				{Name: "post", Kind: RelationMany, References: "posts", Keys: []JoinKey{{LocalColumn: "id", ReferencedColumn: "author_id"}}},
			},
		},
		{
			Name: "posts",
			Columns: []Column{
				{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
				{Name: "author_id", Type: "bigint"},
			},
			Relations: []Relation{
				{Name: "users", Kind: RelationOne, References: "users", Keys: []JoinKey{{LocalColumn: "author_id", ReferencedColumn: "id"}}},
			},
		},
	}}
	require.NoError(t, s.Validate())
	ApplyNames(s, nil)

	// A to-many relation declared in the singular pluralizes, and a to-one
	// relation declared in the plural singularizes.
	assert.Equal(t, "posts", s.Table("users").Relation("post").FieldName)
	assert.Equal(t, "user", s.Table("posts").Relation("users").FieldName)
}

func TestApplyNames_RelationColumnCollision(t *testing.T) {
	s := &Schema{Tables: []Table{
		{
			Name: "posts",
			Columns: []Column{
				{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
				{Name: "author", Type: "varchar(255)"},
			},
			Relations: []Relation{
				{Name: "author", Kind: RelationOne, References: "users", Keys: []JoinKey{{LocalColumn: "author", ReferencedColumn: "name"}}},
			},
		},
		{
			Name: "users",
			Columns: []Column{
				{Name: "name", Type: "varchar(255)", PrimaryKey: true},
			},
		},
	}}
	require.NoError(t, s.Validate())
	ApplyNames(s, nil)

	table := s.Table("posts")
	assert.Equal(t, "author", table.Column("author").FieldName)
	assert.Equal(t, "authorRef", table.Relation("author").FieldName)
}

func TestApplyNames_ExplicitRelationFieldNameWins(t *testing.T) {
	s := &Schema{Tables: []Table{
		{
			Name: "posts",
			Columns: []Column{
				{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
				{Name: "editor_id", Type: "bigint", Nullable: true},
			},
			Relations: []Relation{
				{Name: "editor", FieldName: "reviewedBy", Kind: RelationOne, References: "users", Keys: []JoinKey{{LocalColumn: "editor_id", ReferencedColumn: "id"}}},
			},
		},
		{
			Name: "users",
			Columns: []Column{
				{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
			},
		},
	}}
	require.NoError(t, s.Validate())
	ApplyNames(s, nil)

	assert.Equal(t, "reviewedBy", s.Table("posts").Relation("editor").FieldName)
}

func TestApplyNames_ReservedTableNameSuffixed(t *testing.T) {
	s := &Schema{Tables: []Table{{
		Name: "type",
		Columns: []Column{
			{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
		},
	}}}
	require.NoError(t, s.Validate())
	ApplyNames(s, nil)

	table := s.Table("type")
	assert.Equal(t, "Type_", table.TypePrefix)
	assert.Equal(t, "type", table.CollectionName)
	assert.Equal(t, "insertIntoType_", table.InsertName)
}

func TestApplyNames_DeterministicAcrossRuns(t *testing.T) {
	build := func() *Table {
		s := validSchema()
		require.NoError(t, s.Validate())
		ApplyNames(s, nil)
		return s.Table("users")
	}

	first := build()
	second := build()
	assert.Equal(t, first.TypePrefix, second.TypePrefix)
	assert.Equal(t, first.CollectionName, second.CollectionName)
	assert.Equal(t, first.SingularName, second.SingularName)
}
