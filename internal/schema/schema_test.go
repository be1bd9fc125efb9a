package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablegraph/internal/coltype"
)

func validSchema() *Schema {
	return &Schema{
		Tables: []Table{
			{
				Name: "users",
				Columns: []Column{
					{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
					{Name: "email", Type: "varchar(255)"},
					{Name: "role", Type: "enum", EnumValues: []string{"admin", "member"}},
				},
				Relations: []Relation{
					{Name: "posts", Kind: RelationMany, References: "posts", Keys: []JoinKey{{LocalColumn: "id", ReferencedColumn: "author_id"}}},
				},
			},
			{
				Name: "posts",
				Columns: []Column{
					{Name: "id", Type: "bigint", PrimaryKey: true, HasDefault: true},
					{Name: "author_id", Type: "bigint"},
					{Name: "title", Type: "varchar(255)", Nullable: true},
				},
				Relations: []Relation{
					{Name: "author", Kind: RelationOne, References: "users", Keys: []JoinKey{{LocalColumn: "author_id", ReferencedColumn: "id"}}},
				},
			},
		},
	}
}

func TestValidate_AcceptsWellFormedSchema(t *testing.T) {
	require.NoError(t, validSchema().Validate())
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Schema)
		wantErr string
	}{
		{
			name:    "no tables",
			mutate:  func(s *Schema) { s.Tables = nil },
			wantErr: "schema declares no tables",
		},
		{
			name:    "empty table name",
			mutate:  func(s *Schema) { s.Tables[0].Name = "" },
			wantErr: "empty name",
		},
		{
			name:    "duplicate table",
			mutate:  func(s *Schema) { s.Tables[1].Name = "users" },
			wantErr: `duplicate table "users"`,
		},
		{
			name:    "table without columns",
			mutate:  func(s *Schema) { s.Tables[0].Columns = nil },
			wantErr: `table "users" declares no columns`,
		},
		{
			name:    "duplicate column",
			mutate:  func(s *Schema) { s.Tables[0].Columns[1].Name = "id" },
			wantErr: `declares column "id" twice`,
		},
		{
			name:    "column without type",
			mutate:  func(s *Schema) { s.Tables[0].Columns[1].Type = "" },
			wantErr: "empty type tag",
		},
		{
			name:    "enum without values",
			mutate:  func(s *Schema) { s.Tables[0].Columns[2].EnumValues = nil },
			wantErr: "declares no values",
		},
		{
			name:    "relation kind",
			mutate:  func(s *Schema) { s.Tables[0].Relations[0].Kind = "sideways" },
			wantErr: `invalid kind "sideways"`,
		},
		{
			name:    "relation target",
			mutate:  func(s *Schema) { s.Tables[0].Relations[0].References = "comments" },
			wantErr: `references unknown table "comments"`,
		},
		{
			name:    "relation without keys",
			mutate:  func(s *Schema) { s.Tables[0].Relations[0].Keys = nil },
			wantErr: "declares no join keys",
		},
		{
			name:    "unknown local join column",
			mutate:  func(s *Schema) { s.Tables[0].Relations[0].Keys[0].LocalColumn = "uid" },
			wantErr: `unknown local column "uid"`,
		},
		{
			name:    "unknown referenced join column",
			mutate:  func(s *Schema) { s.Tables[1].Relations[0].Keys[0].ReferencedColumn = "uid" },
			wantErr: `unknown column "users"."uid"`,
		},
		{
			name:    "duplicate relation",
			mutate:  func(s *Schema) { s.Tables[0].Relations = append(s.Tables[0].Relations, s.Tables[0].Relations[0]) },
			wantErr: `declares relation "posts" twice`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := validSchema()
			tc.mutate(s)
			err := s.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTableAccessors(t *testing.T) {
	s := validSchema()
	users := s.Table("users")
	require.NotNil(t, users)
	assert.Nil(t, s.Table("absent"))

	assert.NotNil(t, users.Column("email"))
	assert.Nil(t, users.Column("absent"))
	assert.NotNil(t, users.Relation("posts"))
	assert.Nil(t, users.Relation("absent"))

	pk := users.PrimaryKey()
	require.Len(t, pk, 1)
	assert.Equal(t, "id", pk[0].Name)
}

func TestColumnRequired(t *testing.T) {
	assert.True(t, Column{Name: "email", Type: "varchar(255)"}.Required())
	assert.False(t, Column{Name: "id", Type: "bigint", HasDefault: true}.Required())
	assert.False(t, Column{Name: "bio", Type: "text", Nullable: true}.Required())
}

func TestColumnKind(t *testing.T) {
	assert.Equal(t, coltype.KindInteger, Column{Type: "int"}.Kind())
	assert.Equal(t, coltype.KindText, Column{Type: "varchar(255)"}.Kind())
}
