package naming

import (
	"log/slog"
	"strings"
)

// Namer converts declared schema names into the GraphQL names the generator
// publishes: type prefixes, collection/singular query fields, mutation fields,
// and per-type field names. It handles reserved words and collisions.
type Namer struct {
	config   Config
	logger   *slog.Logger
	resolver *CollisionResolver
}

// New creates a Namer with the given configuration
func New(cfg Config, logger *slog.Logger) *Namer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Namer{
		config:   cfg,
		logger:   logger,
		resolver: NewCollisionResolver(logger),
	}
}

// Default returns a Namer with default configuration
func Default() *Namer {
	return New(DefaultConfig(), nil)
}

// Reset clears the collision resolver state, allowing the namer to be reused
// for a new schema build.
func (n *Namer) Reset() {
	n.resolver = NewCollisionResolver(n.logger)
}

// TypeName converts a table name to a PascalCase GraphQL type prefix.
// Example: "user_profiles" -> "UserProfiles"
func (n *Namer) TypeName(tableName string) string {
	// Check reserved patterns on the original name, before case conversion,
	// because patterns like "_single" are lost after PascalCase conversion
	if isReservedPattern(strings.ToLower(tableName)) {
		name := toPascalCase(tableName)
		n.logger.Warn("GraphQL name conflicts with reserved pattern, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", name+"_"),
		)
		return name + "_"
	}

	name := toPascalCase(tableName)
	return n.validateTypeAndSuffix(name)
}

// FieldName converts a column or relation name to a camelCase GraphQL field
// name. Example: "author_id" -> "authorId"
func (n *Namer) FieldName(name string) string {
	return toCamelCase(name)
}

// RelationFieldName derives a kind-agreeing field name from a relation name:
// to-one relations are singularized, to-many relations pluralized.
// Example: (one, "users") -> "user"; (many, "comment") -> "comments"
func (n *Namer) RelationFieldName(toMany bool, name string) string {
	base := n.FieldName(name)
	if toMany {
		return n.Pluralize(base)
	}
	return n.Singularize(base)
}

// RegisterTypePrefix registers a table's type prefix and returns the resolved
// name. The prefix seeds every generated type name for the table
// (SelectItem, Item, Filters, OrderBy, InsertInput, UpdateInput).
func (n *Namer) RegisterTypePrefix(tableName string) string {
	return n.resolver.RegisterType(n.TypeName(tableName), tableName)
}

// RegisterCollectionField registers the collection query field for a table
// and returns the resolved name. Example: "user_profiles" -> "userProfiles"
func (n *Namer) RegisterCollectionField(tableName string) string {
	if isReservedPattern(strings.ToLower(tableName)) {
		fieldName := n.FieldName(tableName) + "_"
		n.logger.Warn("GraphQL name conflicts with reserved pattern, auto-suffixed",
			slog.String("original", n.FieldName(tableName)),
			slog.String("renamed", fieldName),
		)
		return n.resolver.RegisterQuery(fieldName, tableName)
	}
	fieldName := n.validateFieldAndSuffix(n.FieldName(tableName))
	return n.resolver.RegisterQuery(fieldName, tableName)
}

// RegisterSingularField registers the single-row query field derived from a
// resolved collection field name. Example: "posts" -> "postsSingle"
func (n *Namer) RegisterSingularField(collectionField, tableName string) string {
	return n.resolver.RegisterQuery(collectionField+"Single", tableName)
}

// Mutation field names derived from a table's resolved type prefix.
const (
	insertPrefix       = "insertInto"
	insertSingleSuffix = "Single"
	updatePrefix       = "update"
	deletePrefix       = "deleteFrom"
)

// RegisterInsertField registers the array-insert mutation field.
// Example: prefix "Posts" -> "insertIntoPosts"
func (n *Namer) RegisterInsertField(typePrefix, tableName string) string {
	return n.resolver.RegisterMutation(insertPrefix+typePrefix, tableName)
}

// RegisterInsertSingleField registers the single-insert mutation field.
// Example: prefix "Posts" -> "insertIntoPostsSingle"
func (n *Namer) RegisterInsertSingleField(typePrefix, tableName string) string {
	return n.resolver.RegisterMutation(insertPrefix+typePrefix+insertSingleSuffix, tableName)
}

// RegisterUpdateField registers the update mutation field.
// Example: prefix "Posts" -> "updatePosts"
func (n *Namer) RegisterUpdateField(typePrefix, tableName string) string {
	return n.resolver.RegisterMutation(updatePrefix+typePrefix, tableName)
}

// RegisterDeleteField registers the delete mutation field.
// Example: prefix "Posts" -> "deleteFromPosts"
func (n *Namer) RegisterDeleteField(typePrefix, tableName string) string {
	return n.resolver.RegisterMutation(deletePrefix+typePrefix, tableName)
}

// RegisterColumnField registers a column field on a type and returns the
// resolved field name. Columns register before relations, so they always win
// precedence.
func (n *Namer) RegisterColumnField(typePrefix, columnName string) string {
	fieldName := n.validateFieldAndSuffix(n.FieldName(columnName))
	return n.resolver.RegisterField(typePrefix, fieldName, "column:"+columnName)
}

// RegisterRelationField registers a relation field on a type and returns the
// resolved name. If the name collides with a column, to-one relations get a
// "Ref" suffix and to-many relations a "Rel" suffix before numeric
// disambiguation applies.
func (n *Namer) RegisterRelationField(typePrefix, fieldName, source string, toMany bool) string {
	fieldName = n.validateFieldAndSuffix(fieldName)
	if n.resolver.FieldExists(typePrefix, fieldName) {
		if toMany {
			fieldName = fieldName + "Rel"
		} else {
			fieldName = fieldName + "Ref"
		}
		fieldName = n.validateFieldAndSuffix(fieldName)
	}
	return n.resolver.RegisterField(typePrefix, fieldName, "relation:"+source)
}

func (n *Namer) validateTypeAndSuffix(name string) string {
	if isReservedTypeName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

func (n *Namer) validateFieldAndSuffix(name string) string {
	if isReservedFieldName(name) {
		safeName := name + "_"
		n.logger.Warn("GraphQL name conflicts with reserved word, auto-suffixed",
			slog.String("original", name),
			slog.String("renamed", safeName),
		)
		return safeName
	}
	return name
}

// toPascalCase converts snake_case to PascalCase
func toPascalCase(s string) string {
	parts := strings.Split(s, "_")
	for i, part := range parts {
		if len(part) > 0 {
			parts[i] = strings.ToUpper(part[:1]) + part[1:]
		}
	}
	return strings.Join(parts, "")
}

// toCamelCase converts snake_case to camelCase
func toCamelCase(s string) string {
	parts := strings.Split(s, "_")
	for i := 1; i < len(parts); i++ {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, "")
}
