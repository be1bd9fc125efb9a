// Package coltype provides the shared mapping from column type tags to the
// kinds the type registry and value remapper dispatch on. This keeps type
// interpretation consistent between schema generation and request resolution.
package coltype

import "strings"

// Kind is the category a column type tag resolves to.
type Kind int

const (
	// KindUnknown is returned for tags no built-in understands; compilation
	// fails unless a custom registration covers the tag.
	KindUnknown Kind = iota
	// KindInteger covers integer types that fit the GraphQL Int range.
	KindInteger
	// KindBigInt covers 64-bit integers, exchanged as decimal strings.
	KindBigInt
	// KindFloat covers floating-point types.
	KindFloat
	// KindDecimal covers fixed-point types, exchanged as exact decimal strings.
	KindDecimal
	// KindText covers character types.
	KindText
	// KindBoolean covers boolean types, including tinyint(1).
	KindBoolean
	// KindDate covers date-only temporal types.
	KindDate
	// KindDateTime covers temporal types carrying time-of-day.
	KindDateTime
	// KindTime covers time-of-day and duration types.
	KindTime
	// KindYear covers year-only types.
	KindYear
	// KindJSON covers JSON document types, exchanged as JSON-encoded text.
	KindJSON
	// KindBinary covers raw byte types, exchanged as decimal strings.
	KindBinary
	// KindUUID covers UUID types regardless of text or binary storage.
	KindUUID
	// KindEnum covers single-choice enumerations.
	KindEnum
	// KindSet covers multi-choice enumerations, exchanged as member lists.
	KindSet
	// KindVector covers numeric array types, exchanged as lists of floats.
	KindVector
	// KindGeometry covers planar point types, exchanged as {x,y} objects or
	// two-element lists depending on the configured geometry mode.
	KindGeometry
)

// NormalizeTag lowercases and trims a type tag for exact-match lookups in
// the registry and remapper.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// BaseTag strips a size specifier like (10,2) or ('a','b') from a tag.
func BaseTag(tag string) string {
	if idx := strings.IndexByte(tag, '('); idx != -1 {
		return strings.TrimSpace(tag[:idx])
	}
	return tag
}

// Parse maps a column type tag to its Kind. The input is case-insensitive and
// size specifiers like (10,2) or (255) are stripped before matching, except
// that tinyint(1) is recognized as boolean per the MySQL convention.
func Parse(tag string) Kind {
	trimmed := strings.TrimSpace(tag)
	if strings.EqualFold(trimmed, "tinyint(1)") {
		return KindBoolean
	}
	base := BaseTag(trimmed)
	switch strings.ToUpper(base) {
	// Integer numeric types
	case "TINYINT", "SMALLINT", "MEDIUMINT", "INT", "INTEGER", "SERIAL", "BIT":
		return KindInteger
	// 64-bit integers exceed the Int range and travel as decimal strings
	case "BIGINT":
		return KindBigInt
	// Floating-point numeric types
	case "FLOAT", "DOUBLE", "REAL":
		return KindFloat
	// Fixed-point numeric types keep exact precision as strings
	case "DECIMAL", "NUMERIC":
		return KindDecimal
	// Boolean types
	case "BOOL", "BOOLEAN":
		return KindBoolean
	// JSON document types
	case "JSON", "JSONB":
		return KindJSON
	// Character types
	case "CHAR", "VARCHAR", "TINYTEXT", "TEXT", "MEDIUMTEXT", "LONGTEXT":
		return KindText
	// Raw byte types
	case "BLOB", "TINYBLOB", "MEDIUMBLOB", "LONGBLOB", "BINARY", "VARBINARY", "BYTEA":
		return KindBinary
	// UUID types
	case "UUID":
		return KindUUID
	// Enumerations
	case "ENUM":
		return KindEnum
	case "SET":
		return KindSet
	// Numeric arrays
	case "VECTOR", "ARRAY":
		return KindVector
	// Planar points
	case "POINT", "GEOMETRY":
		return KindGeometry
	// Date and time types
	case "DATE":
		return KindDate
	case "DATETIME", "TIMESTAMP":
		return KindDateTime
	case "TIME":
		return KindTime
	case "YEAR":
		return KindYear
	default:
		return KindUnknown
	}
}

// String returns the kind name used in diagnostics.
func (k Kind) String() string {
	switch k {
	case KindInteger:
		return "integer"
	case KindBigInt:
		return "bigint"
	case KindFloat:
		return "float"
	case KindDecimal:
		return "decimal"
	case KindText:
		return "text"
	case KindBoolean:
		return "boolean"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindTime:
		return "time"
	case KindYear:
		return "year"
	case KindJSON:
		return "json"
	case KindBinary:
		return "binary"
	case KindUUID:
		return "uuid"
	case KindEnum:
		return "enum"
	case KindSet:
		return "set"
	case KindVector:
		return "vector"
	case KindGeometry:
		return "geometry"
	default:
		return "unknown"
	}
}

// Temporal reports whether the kind carries a calendar value.
func (k Kind) Temporal() bool {
	return k == KindDate || k == KindDateTime
}

// GeometryMode selects how point columns appear on the wire: as {x, y}
// objects or as two-element float lists. The registry and remapper must be
// built with the same mode.
type GeometryMode string

const (
	GeometryModeObject GeometryMode = "object"
	GeometryModeList   GeometryMode = "list"
)

// Comparable reports whether ordered comparison operators (lt, lte, gt, gte)
// are meaningful for the kind.
func (k Kind) Comparable() bool {
	switch k {
	case KindInteger, KindBigInt, KindFloat, KindDecimal, KindText, KindDate, KindDateTime, KindTime, KindYear:
		return true
	default:
		return false
	}
}
