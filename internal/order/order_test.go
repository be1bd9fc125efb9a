package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablegraph/internal/gqlerr"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
)

func testTable() *schema.Table {
	return &schema.Table{
		Name:       "posts",
		TypePrefix: "Post",
		Columns: []schema.Column{
			{Name: "id", Type: "int", FieldName: "id"},
			{Name: "author_id", Type: "int", FieldName: "authorId"},
			{Name: "content", Type: "text", FieldName: "content"},
			{Name: "created_at", Type: "timestamp", FieldName: "createdAt"},
		},
	}
}

func TestCompile_Empty(t *testing.T) {
	keys, err := Compile(testTable(), nil)
	require.NoError(t, err)
	assert.Nil(t, keys)

	keys, err = Compile(testTable(), map[string]interface{}{})
	require.NoError(t, err)
	assert.Nil(t, keys)
}

func TestCompile_PriorityOrdersKeys(t *testing.T) {
	keys, err := Compile(testTable(), map[string]interface{}{
		"content":  map[string]interface{}{"priority": 2, "direction": "asc"},
		"authorId": map[string]interface{}{"priority": 1, "direction": "desc"},
	})
	require.NoError(t, err)
	assert.Equal(t, []relational.SortKey{
		{Column: "author_id", Descending: true},
		{Column: "content"},
	}, keys)
}

func TestCompile_MissingPrioritySortsLast(t *testing.T) {
	keys, err := Compile(testTable(), map[string]interface{}{
		"content":  map[string]interface{}{"direction": "asc"},
		"authorId": map[string]interface{}{"priority": 5, "direction": "asc"},
	})
	require.NoError(t, err)
	assert.Equal(t, []relational.SortKey{
		{Column: "author_id"},
		{Column: "content"},
	}, keys)
}

func TestCompile_TiesBreakByDeclarationOrder(t *testing.T) {
	// createdAt is declared after authorId, so equal priorities keep that
	// order regardless of map iteration.
	keys, err := Compile(testTable(), map[string]interface{}{
		"createdAt": map[string]interface{}{"priority": 1},
		"authorId":  map[string]interface{}{"priority": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []relational.SortKey{
		{Column: "author_id"},
		{Column: "created_at"},
	}, keys)

	// No priorities at all also falls back to declaration order.
	keys, err = Compile(testTable(), map[string]interface{}{
		"content": map[string]interface{}{},
		"id":      map[string]interface{}{"direction": "desc"},
	})
	require.NoError(t, err)
	assert.Equal(t, []relational.SortKey{
		{Column: "id", Descending: true},
		{Column: "content"},
	}, keys)
}

func TestCompile_DirectionDefaultsToAscending(t *testing.T) {
	keys, err := Compile(testTable(), map[string]interface{}{
		"id": map[string]interface{}{"priority": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, []relational.SortKey{{Column: "id"}}, keys)
}

func TestCompile_DirectionCaseInsensitive(t *testing.T) {
	keys, err := Compile(testTable(), map[string]interface{}{
		"id": map[string]interface{}{"priority": 1, "direction": "DESC"},
	})
	require.NoError(t, err)
	assert.Equal(t, []relational.SortKey{{Column: "id", Descending: true}}, keys)
}

func TestCompile_UnknownColumn(t *testing.T) {
	_, err := Compile(testTable(), map[string]interface{}{
		"missing": map[string]interface{}{"priority": 1},
	})
	require.Error(t, err)
	var validationErr *gqlerr.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "orderBy.missing", validationErr.Argument)
}

func TestCompile_MalformedEntries(t *testing.T) {
	badInputs := []map[string]interface{}{
		{"id": "asc"},
		{"id": map[string]interface{}{"priority": "first"}},
		{"id": map[string]interface{}{"priority": 1.5}},
		{"id": map[string]interface{}{"direction": "sideways"}},
		{"id": map[string]interface{}{"direction": 1}},
	}
	for _, input := range badInputs {
		_, err := Compile(testTable(), input)
		require.Error(t, err)
		var validationErr *gqlerr.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	}
}
