package generator

import (
	"context"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tablegraph/internal/gqlerr"
	"tablegraph/internal/logging"
	"tablegraph/internal/membackend"
	"tablegraph/internal/relational"
	"tablegraph/internal/schema"
)

func testDeclaration() *schema.Schema {
	return &schema.Schema{
		Tables: []schema.Table{
			{
				Name: "users",
				Columns: []schema.Column{
					{Name: "id", Type: "int", PrimaryKey: true, HasDefault: true},
					{Name: "name", Type: "varchar(255)"},
				},
				Relations: []schema.Relation{
					{Name: "posts", Kind: schema.RelationMany, References: "posts", Keys: []schema.JoinKey{{LocalColumn: "id", ReferencedColumn: "author_id"}}},
				},
			},
			{
				Name: "posts",
				Columns: []schema.Column{
					{Name: "id", Type: "int", PrimaryKey: true, HasDefault: true},
					{Name: "author_id", Type: "int"},
					{Name: "content", Type: "varchar(255)"},
					{Name: "published_on", Type: "date", Nullable: true},
				},
				Relations: []schema.Relation{
					{Name: "author", Kind: schema.RelationOne, References: "users", Keys: []schema.JoinKey{{LocalColumn: "author_id", ReferencedColumn: "id"}}},
				},
			},
		},
	}
}

func quietLogger() *logging.Logger {
	return logging.NewLogger(logging.Config{Level: "error", Format: "text"})
}

func seed(t *testing.T, layer relational.Layer) {
	t.Helper()
	ctx := context.Background()
	_, err := layer.Insert(ctx, relational.InsertRequest{Table: "users", Rows: []relational.Row{
		{"id": int64(1), "name": "ada"},
		{"id": int64(2), "name": "brin"},
	}})
	require.NoError(t, err)
	_, err = layer.Insert(ctx, relational.InsertRequest{Table: "posts", Rows: []relational.Row{
		{"id": int64(1), "author_id": int64(1), "content": "A"},
		{"id": int64(2), "author_id": int64(1), "content": "B", "published_on": time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)},
		{"id": int64(3), "author_id": int64(2), "content": "A"},
	}})
	require.NoError(t, err)
}

func compileTest(t *testing.T, opts Options) (graphql.Schema, *membackend.Backend) {
	t.Helper()
	s := testDeclaration()
	layer := membackend.New(s)
	opts.Logger = quietLogger()
	compiled, err := Compile(s, layer, nil, nil, opts)
	require.NoError(t, err)
	seed(t, layer)
	return *compiled, layer
}

func doQuery(t *testing.T, gs graphql.Schema, query string) map[string]interface{} {
	t.Helper()
	result := graphql.Do(graphql.Params{Schema: gs, RequestString: query, Context: context.Background()})
	require.Empty(t, result.Errors, "unexpected errors: %+v", result.Errors)
	data, ok := result.Data.(map[string]interface{})
	require.True(t, ok)
	return data
}

func resultIDs(t *testing.T, data interface{}) []int {
	t.Helper()
	list, ok := data.([]interface{})
	require.True(t, ok, "expected a list, got %T", data)
	ids := make([]int, 0, len(list))
	for _, item := range list {
		row, ok := item.(map[string]interface{})
		require.True(t, ok)
		id, ok := row["id"].(int)
		require.True(t, ok, "id should be an int, got %T", row["id"])
		ids = append(ids, id)
	}
	return ids
}

func TestCompile_NilInputs(t *testing.T) {
	s := testDeclaration()
	layer := membackend.New(s)

	var buildErr *gqlerr.BuildError
	_, err := Compile(nil, layer, nil, nil, Options{Logger: quietLogger()})
	require.ErrorAs(t, err, &buildErr)

	_, err = Compile(s, nil, nil, nil, Options{Logger: quietLogger()})
	require.ErrorAs(t, err, &buildErr)
}

func TestCompile_PublishedFields(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	queryFields := gs.QueryType().Fields()
	for _, name := range []string{"users", "usersSingle", "posts", "postsSingle"} {
		assert.Contains(t, queryFields, name)
	}

	collectionArgs := map[string]bool{}
	for _, arg := range queryFields["posts"].Args {
		collectionArgs[arg.Name()] = true
	}
	for _, name := range []string{"where", "orderBy", "offset", "limit"} {
		assert.True(t, collectionArgs[name], "posts should accept %s", name)
	}

	singleArgs := map[string]bool{}
	for _, arg := range queryFields["postsSingle"].Args {
		singleArgs[arg.Name()] = true
	}
	assert.False(t, singleArgs["limit"], "postsSingle should not accept limit")
	assert.True(t, singleArgs["offset"])

	require.NotNil(t, gs.MutationType())
	mutationFields := gs.MutationType().Fields()
	for _, name := range []string{"insertIntoPosts", "insertIntoPostsSingle", "updatePosts", "deleteFromPosts", "insertIntoUsers"} {
		assert.Contains(t, mutationFields, name)
	}
	assert.Equal(t, "[PostsItem!]!", mutationFields["insertIntoPosts"].Type.String())
	assert.Equal(t, "PostsItem", mutationFields["insertIntoPostsSingle"].Type.String())
}

func TestCompile_FilterInputShape(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	var whereType *graphql.InputObject
	for _, arg := range gs.QueryType().Fields()["posts"].Args {
		if arg.Name() == "where" {
			whereType, _ = arg.Type.(*graphql.InputObject)
		}
	}
	require.NotNil(t, whereType)
	assert.Equal(t, "PostsFilters", whereType.Name())

	fields := whereType.Fields()
	for _, name := range []string{"id", "authorId", "content", "publishedOn", "AND", "OR", "NOT"} {
		assert.Contains(t, fields, name)
	}

	content, ok := fields["content"].Type.(*graphql.InputObject)
	require.True(t, ok)
	contentOps := content.Fields()
	for _, op := range []string{"eq", "ne", "lt", "lte", "gt", "gte", "like", "ilike", "inArray", "notInArray", "isNull", "isNotNull"} {
		assert.Contains(t, contentOps, op)
	}
}

func TestCompile_DisabledMutations(t *testing.T) {
	gs, _ := compileTest(t, Options{DisableMutations: true})
	assert.Nil(t, gs.MutationType())
}

func TestQuery_ImplicitAndAcrossSiblings(t *testing.T) {
	gs, _ := compileTest(t, Options{})
	data := doQuery(t, gs, `{ posts(where: {content: {eq: "A"}, authorId: {eq: 1}}) { id } }`)
	assert.Equal(t, []int{1}, resultIDs(t, data["posts"]))
}

func TestQuery_Combinators(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `{ posts(where: {OR: [{content: {eq: "B"}}, {id: {eq: 3}}]}) { id } }`)
	assert.Equal(t, []int{2, 3}, resultIDs(t, data["posts"]))

	data = doQuery(t, gs, `{ posts(where: {OR: [{id: {lte: 1}}, {authorId: {eq: 2}}]}) { id } }`)
	assert.Equal(t, []int{1, 3}, resultIDs(t, data["posts"]))

	data = doQuery(t, gs, `{ posts(where: {NOT: {content: {eq: "A"}}}) { id } }`)
	assert.Equal(t, []int{2}, resultIDs(t, data["posts"]))

	data = doQuery(t, gs, `{ posts(where: {AND: [{authorId: {eq: 1}}, {content: {like: "A%"}}]}) { id } }`)
	assert.Equal(t, []int{1}, resultIDs(t, data["posts"]))
}

func TestQuery_OperatorVariety(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `{ posts(where: {content: {inArray: ["A"]}}) { id } }`)
	assert.Equal(t, []int{1, 3}, resultIDs(t, data["posts"]))

	data = doQuery(t, gs, `{ posts(where: {id: {inArray: [1, 2, 3]}, authorId: {ne: 2}}) { id } }`)
	assert.Equal(t, []int{1, 2}, resultIDs(t, data["posts"]))

	data = doQuery(t, gs, `{ posts(where: {publishedOn: {isNull: true}}) { id } }`)
	assert.Equal(t, []int{1, 3}, resultIDs(t, data["posts"]))

	data = doQuery(t, gs, `{ posts(where: {publishedOn: {gte: "2024-01-01"}}) { id } }`)
	assert.Equal(t, []int{2}, resultIDs(t, data["posts"]))
}

func TestQuery_OrderByPriority(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `{ posts(orderBy: {content: {priority: 1, direction: desc}, id: {priority: 2}}) { id } }`)
	assert.Equal(t, []int{2, 1, 3}, resultIDs(t, data["posts"]))

	// Lower priority number sorts first: content ascending groups before the
	// authorId descending tiebreak.
	data = doQuery(t, gs, `{ posts(orderBy: {authorId: {priority: 1, direction: desc}, content: {priority: 0, direction: asc}}) { id } }`)
	assert.Equal(t, []int{3, 1, 2}, resultIDs(t, data["posts"]))

	// Entries without a priority sort after prioritized ones.
	data = doQuery(t, gs, `{ posts(orderBy: {id: {direction: desc}, content: {priority: 1}}) { id } }`)
	assert.Equal(t, []int{3, 1, 2}, resultIDs(t, data["posts"]))
}

func TestQuery_OffsetLimit(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `{ posts(orderBy: {id: {priority: 1}}, offset: 1, limit: 1) { id } }`)
	assert.Equal(t, []int{2}, resultIDs(t, data["posts"]))

	result := graphql.Do(graphql.Params{
		Schema:        gs,
		RequestString: `{ posts(offset: -1) { id } }`,
		Context:       context.Background(),
	})
	assert.NotEmpty(t, result.Errors)
}

func TestQuery_SingleReturnsFirstOrNull(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `{ postsSingle(where: {content: {eq: "A"}}, orderBy: {id: {direction: desc}}) { id } }`)
	row, ok := data["postsSingle"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 3, row["id"])

	data = doQuery(t, gs, `{ postsSingle(where: {content: {eq: "Z"}}) { id } }`)
	assert.Nil(t, data["postsSingle"])
}

func TestQuery_RelationTraversal(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `{ users(orderBy: {id: {priority: 1}}) { id name posts { id author { name } } } }`)
	users, ok := data["users"].([]interface{})
	require.True(t, ok)
	require.Len(t, users, 2)

	ada, ok := users[0].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, []int{1, 2}, resultIDs(t, ada["posts"]))

	adaPosts := ada["posts"].([]interface{})
	first := adaPosts[0].(map[string]interface{})
	author, ok := first["author"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ada", author["name"])
}

func TestQuery_FragmentsAndAliases(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `
		query {
			users(where: {id: {eq: 1}}) { id ...UserPosts }
		}
		fragment UserPosts on UsersSelectItem { posts { id } }
	`)
	users := data["users"].([]interface{})
	require.Len(t, users, 1)
	ada := users[0].(map[string]interface{})
	assert.Equal(t, []int{1, 2}, resultIDs(t, ada["posts"]))

	data = doQuery(t, gs, `{ users(where: {id: {eq: 1}}) { a: posts { id } b: posts { author { id } } } }`)
	users = data["users"].([]interface{})
	ada = users[0].(map[string]interface{})
	assert.Equal(t, []int{1, 2}, resultIDs(t, ada["a"]))
	bPosts := ada["b"].([]interface{})
	firstAuthor, ok := bPosts[0].(map[string]interface{})["author"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 1, firstAuthor["id"])
}

func TestQuery_DepthZeroOmitsRelations(t *testing.T) {
	zero := 0
	gs, _ := compileTest(t, Options{Depth: &zero})

	result := graphql.Do(graphql.Params{
		Schema:        gs,
		RequestString: `{ users { id posts { id } } }`,
		Context:       context.Background(),
	})
	assert.NotEmpty(t, result.Errors)

	data := doQuery(t, gs, `{ users { id name } }`)
	assert.Len(t, data["users"], 2)
}

func TestMutation_InsertReturnsRows(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `mutation { insertIntoPosts(values: [{authorId: 2, content: "C"}, {authorId: 2, content: "D"}]) { id content } }`)
	assert.Equal(t, []int{4, 5}, resultIDs(t, data["insertIntoPosts"]))

	data = doQuery(t, gs, `mutation { insertIntoPostsSingle(values: {authorId: 1, content: "E"}) { id content } }`)
	row, ok := data["insertIntoPostsSingle"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 6, row["id"])
	assert.Equal(t, "E", row["content"])
}

func TestMutation_UpdateWithoutWhereTouchesEveryRow(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `mutation { updatePosts(set: {content: "Z"}) { id content } }`)
	assert.Len(t, data["updatePosts"], 3)

	data = doQuery(t, gs, `{ posts(where: {content: {eq: "Z"}}) { id } }`)
	assert.Equal(t, []int{1, 2, 3}, resultIDs(t, data["posts"]))
}

func TestMutation_UpdateEmptySetFails(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	result := graphql.Do(graphql.Params{
		Schema:        gs,
		RequestString: `mutation { updatePosts(set: {}) { id } }`,
		Context:       context.Background(),
	})
	require.NotEmpty(t, result.Errors)
	assert.Contains(t, result.Errors[0].Message, "at least one column")
	require.NotNil(t, result.Errors[0].Extensions)
	assert.Equal(t, "validation_failed", result.Errors[0].Extensions["code"])
}

func TestMutation_DeleteWithWhere(t *testing.T) {
	gs, _ := compileTest(t, Options{})

	data := doQuery(t, gs, `mutation { deleteFromPosts(where: {authorId: {eq: 1}}) { id } }`)
	assert.Equal(t, []int{1, 2}, resultIDs(t, data["deleteFromPosts"]))

	data = doQuery(t, gs, `{ posts { id } }`)
	assert.Equal(t, []int{3}, resultIDs(t, data["posts"]))
}

// returnless hides mutated rows, the way a plain MySQL backend does.
type returnless struct {
	inner *membackend.Backend
}

func (r returnless) Capabilities() relational.Capabilities {
	return relational.Capabilities{Name: "memory-returnless", ReturnsMutatedRows: false}
}

func (r returnless) Read(ctx context.Context, req relational.ReadRequest) ([]relational.Row, error) {
	return r.inner.Read(ctx, req)
}

func (r returnless) Insert(ctx context.Context, req relational.InsertRequest) (relational.MutationResult, error) {
	res, err := r.inner.Insert(ctx, req)
	res.Rows = nil
	return res, err
}

func (r returnless) Update(ctx context.Context, req relational.UpdateRequest) (relational.MutationResult, error) {
	res, err := r.inner.Update(ctx, req)
	res.Rows = nil
	return res, err
}

func (r returnless) Delete(ctx context.Context, req relational.DeleteRequest) (relational.MutationResult, error) {
	res, err := r.inner.Delete(ctx, req)
	res.Rows = nil
	return res, err
}

func TestMutation_ReturnlessBackend(t *testing.T) {
	s := testDeclaration()
	layer := returnless{inner: membackend.New(s)}
	gs, err := Compile(s, layer, nil, nil, Options{Logger: quietLogger()})
	require.NoError(t, err)
	seed(t, layer)

	mutationFields := gs.MutationType().Fields()
	assert.Equal(t, "MutationSuccess!", mutationFields["insertIntoPosts"].Type.String())
	assert.Equal(t, "MutationSuccess!", mutationFields["updatePosts"].Type.String())
	assert.Equal(t, "MutationSuccess!", mutationFields["deleteFromPosts"].Type.String())
	assert.Equal(t, "PostsItem", mutationFields["insertIntoPostsSingle"].Type.String())

	data := doQuery(t, *gs, `mutation { insertIntoPosts(values: [{authorId: 1, content: "C"}]) { isSuccess } }`)
	outcome, ok := data["insertIntoPosts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, outcome["isSuccess"])

	data = doQuery(t, *gs, `mutation { insertIntoPostsSingle(values: {authorId: 1, content: "D"}) { id } }`)
	assert.Nil(t, data["insertIntoPostsSingle"])

	data = doQuery(t, *gs, `mutation { updatePosts(set: {content: "W"}, where: {id: {eq: 1}}) { isSuccess } }`)
	outcome, ok = data["updatePosts"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, outcome["isSuccess"])

	rows := doQuery(t, *gs, `{ posts(where: {id: {eq: 1}}) { content } }`)
	posts := rows["posts"].([]interface{})
	require.Len(t, posts, 1)
	assert.Equal(t, "W", posts[0].(map[string]interface{})["content"])
}
