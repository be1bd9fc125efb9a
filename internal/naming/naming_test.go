package naming

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeName(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"users", "Users"},
		{"user_profiles", "UserProfiles"},
		{"order_items", "OrderItems"},
		{"api_v2_endpoints", "ApiV2Endpoints"},
		{"a", "A"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := namer.TypeName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestFieldName(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"user_name", "userName"},
		{"created_at", "createdAt"},
		{"id", "id"},
		{"user_profile_id", "userProfileId"},
		{"api_v2_key", "apiV2Key"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := namer.FieldName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPluralize(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"user", "users"},
		{"category", "categories"},
		{"person", "people"},
		{"child", "children"},
		{"status", "statuses"},
		{"analysis", "analyses"},
		{"orderItem", "orderItems"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := namer.Pluralize(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestSingularize(t *testing.T) {
	namer := Default()

	tests := []struct {
		input    string
		expected string
	}{
		{"users", "user"},
		{"categories", "category"},
		{"people", "person"},
		{"children", "child"},
		{"statuses", "status"},
		{"analyses", "analysis"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result := namer.Singularize(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestPluralizeWithOverrides(t *testing.T) {
	cfg := Config{
		PluralOverrides: map[string]string{
			"staff": "staff", // Same singular/plural
		},
		SingularOverrides: make(map[string]string),
	}
	namer := New(cfg, nil)

	assert.Equal(t, "staff", namer.Pluralize("staff"))
	assert.Equal(t, "users", namer.Pluralize("user")) // Falls back to library
}

func TestSingularizeWithOverrides(t *testing.T) {
	cfg := Config{
		PluralOverrides: make(map[string]string),
		SingularOverrides: map[string]string{
			"data": "datum",
		},
	}
	namer := New(cfg, nil)

	assert.Equal(t, "datum", namer.Singularize("data"))
	assert.Equal(t, "user", namer.Singularize("users")) // Falls back to library
}

func TestRelationFieldName(t *testing.T) {
	namer := Default()

	tests := []struct {
		name     string
		toMany   bool
		relation string
		expected string
	}{
		{"to-one singularized", false, "users", "user"},
		{"to-one already singular", false, "author", "author"},
		{"to-many pluralized", true, "comment", "comments"},
		{"to-many already plural", true, "comments", "comments"},
		{"to-many snake_case", true, "order_item", "orderItems"},
		{"to-one snake_case", false, "parent_categories", "parentCategory"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := namer.RelationFieldName(tt.toMany, tt.relation)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestMutationFieldNames(t *testing.T) {
	namer := Default()

	assert.Equal(t, "insertIntoPosts", namer.RegisterInsertField("Posts", "posts"))
	assert.Equal(t, "insertIntoPostsSingle", namer.RegisterInsertSingleField("Posts", "posts"))
	assert.Equal(t, "updatePosts", namer.RegisterUpdateField("Posts", "posts"))
	assert.Equal(t, "deleteFromPosts", namer.RegisterDeleteField("Posts", "posts"))
}

func TestReservedWordSuffixing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	tests := []struct {
		input    string
		expected string
	}{
		{"query", "Query_"},                // PascalCase + reserved suffix
		{"Query", "Query_"},                // Already PascalCase + reserved suffix
		{"type", "Type_"},                  // PascalCase + reserved suffix
		{"mutation", "Mutation_"},          // PascalCase + reserved suffix
		{"int", "Int_"},                    // Built-in scalar
		{"users", "Users"},                 // Not reserved
		{"orders_single", "OrdersSingle_"}, // Reserved pattern
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			namer.Reset() // Reset collision state
			result := namer.TypeName(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestCollectionReservedPatternSuffixing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	result := namer.RegisterCollectionField("sales_single")
	assert.Equal(t, "salesSingle_", result)
	assert.Contains(t, buf.String(), "reserved pattern")
}

func TestCollision_TableToTable(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	// First registration
	result1 := namer.RegisterTypePrefix("user_profile")
	assert.Equal(t, "UserProfile", result1)

	// Second registration with collision - different source but same GraphQL name
	// Simulating userprofile table which would also become UserProfile
	result2 := namer.resolver.RegisterType("UserProfile", "userprofile")
	assert.Equal(t, "UserProfile2", result2)

	// Verify warning was logged
	assert.Contains(t, buf.String(), "naming collision detected")
}

func TestCollision_ColumnToColumn(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	// First column
	result1 := namer.RegisterColumnField("User", "user_id")
	assert.Equal(t, "userId", result1)

	// Second column that produces same field name
	result2 := namer.resolver.RegisterField("User", "userId", "column:userId")
	assert.Equal(t, "userId2", result2)

	assert.Contains(t, buf.String(), "naming collision detected")
}

func TestCollision_RelationToColumn(t *testing.T) {
	namer := Default()

	// Register column first (columns have precedence)
	namer.RegisterColumnField("Order", "author")

	// To-one relation with the same name picks up a Ref suffix
	result := namer.RegisterRelationField("Order", "author", "users", false)
	assert.Equal(t, "authorRef", result)

	namer.Reset()
	namer.RegisterColumnField("Order", "items")

	// To-many relation with the same name picks up a Rel suffix
	result = namer.RegisterRelationField("Order", "items", "order_items", true)
	assert.Equal(t, "itemsRel", result)
}

func TestCollision_QueryNamespaceShared(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	namer := New(DefaultConfig(), logger)

	// Collection and singular fields share the query namespace
	collection := namer.RegisterCollectionField("users")
	assert.Equal(t, "users", collection)

	singular := namer.RegisterSingularField(collection, "users")
	assert.Equal(t, "usersSingle", singular)

	// A second table resolving to the same collection name gets a suffix
	result := namer.resolver.RegisterQuery("users", "user")
	assert.Equal(t, "users2", result)
	assert.Contains(t, buf.String(), "naming collision detected")
}

func TestReset(t *testing.T) {
	namer := Default()

	// Register a type
	namer.RegisterTypePrefix("users")

	// Reset
	namer.Reset()

	// Should be able to register same type again without collision
	result := namer.RegisterTypePrefix("users")
	assert.Equal(t, "Users", result)
}
