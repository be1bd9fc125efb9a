// Package scalars defines the custom GraphQL scalar types used by the
// generated schema. Each constructor returns a fresh *graphql.Scalar; the
// type registry constructs each one once per compiled schema so every field
// that references a scalar shares the same instance.
package scalars

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/graphql-go/graphql"
	"github.com/graphql-go/graphql/language/ast"
)

func NonNegativeInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "NonNegativeInt",
		Description: "An integer greater than or equal to zero.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceNonNegativeInt(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			intValue, ok := valueAST.(*ast.IntValue)
			if !ok {
				return nil
			}
			parsed, err := strconv.Atoi(intValue.Value)
			if err != nil || parsed < 0 {
				return nil
			}
			return parsed
		},
	})
}

func JSON() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "JSON",
		Description: "Arbitrary JSON value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return string(v)
			case string:
				return v
			case json.RawMessage:
				return string(v)
			case nil:
				return nil
			default:
				serialized, err := json.Marshal(v)
				if err != nil {
					slog.Default().Warn("failed to serialize JSON scalar", slog.String("error", err.Error()))
					return nil
				}
				return string(serialized)
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				return s
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				return sv.Value
			}
			return nil
		},
	})
}

func BigInt() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "BigInt",
		Description: "64-bit integer value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case int:
				return strconv.FormatInt(int64(v), 10)
			case int8:
				return strconv.FormatInt(int64(v), 10)
			case int16:
				return strconv.FormatInt(int64(v), 10)
			case int32:
				return strconv.FormatInt(int64(v), 10)
			case int64:
				return strconv.FormatInt(v, 10)
			case uint:
				return strconv.FormatUint(uint64(v), 10)
			case uint8:
				return strconv.FormatUint(uint64(v), 10)
			case uint16:
				return strconv.FormatUint(uint64(v), 10)
			case uint32:
				return strconv.FormatUint(uint64(v), 10)
			case uint64:
				return strconv.FormatUint(v, 10)
			case float64:
				if v != math.Trunc(v) || v < math.MinInt64 || v > math.MaxInt64 {
					return nil
				}
				return strconv.FormatInt(int64(v), 10)
			case string:
				if _, err := strconv.ParseInt(v, 10, 64); err == nil {
					return v
				}
				return nil
			case []byte:
				strVal := string(v)
				if _, err := strconv.ParseInt(strVal, 10, 64); err == nil {
					return strVal
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case int:
				return int64(v)
			case int8:
				return int64(v)
			case int16:
				return int64(v)
			case int32:
				return int64(v)
			case int64:
				return v
			case uint:
				return int64(v)
			case uint8:
				return int64(v)
			case uint16:
				return int64(v)
			case uint32:
				return int64(v)
			case uint64:
				if v > math.MaxInt64 {
					return nil
				}
				return int64(v)
			case float64:
				if v != math.Trunc(v) || v < math.MinInt64 || v > math.MaxInt64 {
					return nil
				}
				return int64(v)
			case string:
				parsed, err := strconv.ParseInt(v, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				parsed, err := strconv.ParseInt(v.Value, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			case *ast.StringValue:
				parsed, err := strconv.ParseInt(v.Value, 10, 64)
				if err != nil {
					return nil
				}
				return parsed
			default:
				return nil
			}
		},
	})
}

func Decimal() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Decimal",
		Description: "Fixed-point decimal value serialized as a string.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return string(v)
			case string:
				return v
			case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
				return fmt.Sprintf("%v", v)
			case float32, float64:
				return fmt.Sprintf("%v", v)
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case string:
				if _, err := strconv.ParseFloat(v, 64); err != nil {
					return nil
				}
				return v
			case []byte:
				strVal := string(v)
				if _, err := strconv.ParseFloat(strVal, 64); err != nil {
					return nil
				}
				return strVal
			case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
				return fmt.Sprintf("%v", v)
			case float32, float64:
				return fmt.Sprintf("%v", v)
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.StringValue:
				if _, err := strconv.ParseFloat(v.Value, 64); err != nil {
					return nil
				}
				return v.Value
			case *ast.IntValue:
				return v.Value
			case *ast.FloatValue:
				return v.Value
			default:
				return nil
			}
		},
	})
}

func Date() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Date",
		Description: "Date value serialized as YYYY-MM-DD.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.UTC().Format("2006-01-02")
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.UTC().Format("2006-01-02")
			case string:
				if parsed, ok := coerceDate(v); ok {
					return parsed.Format("2006-01-02")
				}
				return nil
			case []byte:
				if parsed, ok := coerceDate(string(v)); ok {
					return parsed.Format("2006-01-02")
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v
			case string:
				if parsed, ok := coerceDate(v); ok {
					return parsed
				}
				return nil
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if parsed, ok := coerceDate(sv.Value); ok {
					return parsed
				}
			}
			return nil
		},
	})
}

func DateTime() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "DateTime",
		Description: "Timestamp value serialized as an RFC 3339 string in UTC.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v.UTC().Format(time.RFC3339)
			case *time.Time:
				if v == nil {
					return nil
				}
				return v.UTC().Format(time.RFC3339)
			case string:
				if parsed, ok := coerceDateTime(v); ok {
					return parsed.UTC().Format(time.RFC3339)
				}
				return nil
			case []byte:
				if parsed, ok := coerceDateTime(string(v)); ok {
					return parsed.UTC().Format(time.RFC3339)
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			switch v := value.(type) {
			case time.Time:
				return v
			case string:
				if parsed, ok := coerceDateTime(v); ok {
					return parsed
				}
				return nil
			default:
				return nil
			}
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if parsed, ok := coerceDateTime(sv.Value); ok {
					return parsed
				}
			}
			return nil
		},
	})
}

func Time() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Time",
		Description: "Time-of-day or duration value serialized as [-]HH:MM:SS[.ffffff].",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case string:
				if canonical, ok := canonicalTime(v); ok {
					return canonical
				}
				return nil
			case []byte:
				if canonical, ok := canonicalTime(string(v)); ok {
					return canonical
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if s, ok := value.(string); ok {
				if canonical, ok := canonicalTime(s); ok {
					return canonical
				}
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if canonical, ok := canonicalTime(sv.Value); ok {
					return canonical
				}
			}
			return nil
		},
	})
}

func Year() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Year",
		Description: "Year value in the range 1901-2155, or 0000.",
		Serialize: func(value interface{}) interface{} {
			if canonical, ok := canonicalYear(value); ok {
				return canonical
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if canonical, ok := canonicalYear(value); ok {
				return canonical
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.IntValue:
				if canonical, ok := canonicalYear(v.Value); ok {
					return canonical
				}
			case *ast.StringValue:
				if canonical, ok := canonicalYear(v.Value); ok {
					return canonical
				}
			}
			return nil
		},
	})
}

func Bytes() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Bytes",
		Description: "Binary value serialized as the decimal string of its unsigned big-endian integer form.",
		Serialize: func(value interface{}) interface{} {
			switch v := value.(type) {
			case []byte:
				return new(big.Int).SetBytes(v).String()
			case string:
				if _, ok := new(big.Int).SetString(v, 10); ok {
					return v
				}
				return nil
			default:
				return nil
			}
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceBytes(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.StringValue:
				if parsed, ok := coerceBytes(v.Value); ok {
					return parsed
				}
			case *ast.IntValue:
				if parsed, ok := coerceBytes(v.Value); ok {
					return parsed
				}
			}
			return nil
		},
	})
}

func UUID() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "UUID",
		Description: "UUID value in canonical hyphenated form.",
		Serialize: func(value interface{}) interface{} {
			if canonical, ok := canonicalUUID(value); ok {
				return canonical
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if canonical, ok := canonicalUUID(value); ok {
				return canonical
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			if sv, ok := valueAST.(*ast.StringValue); ok {
				if canonical, ok := canonicalUUID(sv.Value); ok {
					return canonical
				}
			}
			return nil
		},
	})
}

func Vector() *graphql.Scalar {
	return graphql.NewScalar(graphql.ScalarConfig{
		Name:        "Vector",
		Description: "Vector value serialized as a list of floats.",
		Serialize: func(value interface{}) interface{} {
			if parsed, ok := coerceVector(value); ok {
				return parsed
			}
			return nil
		},
		ParseValue: func(value interface{}) interface{} {
			if parsed, ok := coerceVector(value); ok {
				return parsed
			}
			return nil
		},
		ParseLiteral: func(valueAST ast.Value) interface{} {
			switch v := valueAST.(type) {
			case *ast.ListValue:
				out := make([]float64, 0, len(v.Values))
				for _, elem := range v.Values {
					switch e := elem.(type) {
					case *ast.IntValue:
						parsed, err := strconv.ParseFloat(e.Value, 64)
						if err != nil {
							return nil
						}
						out = append(out, parsed)
					case *ast.FloatValue:
						parsed, err := strconv.ParseFloat(e.Value, 64)
						if err != nil {
							return nil
						}
						out = append(out, parsed)
					default:
						return nil
					}
				}
				return out
			case *ast.StringValue:
				if parsed, ok := coerceVector(v.Value); ok {
					return parsed
				}
			}
			return nil
		},
	})
}

func coerceNonNegativeInt(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		if v < 0 {
			return 0, false
		}
		return v, true
	case int32:
		if v < 0 {
			return 0, false
		}
		return int(v), true
	case int64:
		if v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case float64:
		if v != math.Trunc(v) || v < 0 || v > math.MaxInt {
			return 0, false
		}
		return int(v), true
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}

func coerceDate(s string) (time.Time, bool) {
	if parsed, err := time.Parse("2006-01-02", s); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

func coerceDateTime(s string) (time.Time, bool) {
	if parsed, err := time.Parse(time.RFC3339, s); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse("2006-01-02", s); err == nil {
		return parsed, true
	}
	return time.Time{}, false
}

// canonicalTime normalizes MySQL TIME syntax. Accepts [-]H:MM[:SS[.ffffff]]
// and bare digit runs read right-to-left as seconds, minutes, hours. Hours
// range up to 838 because TIME doubles as a duration type.
func canonicalTime(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false
	}
	negative := strings.HasPrefix(s, "-")
	if negative {
		s = s[1:]
	}
	fraction := ""
	if idx := strings.IndexByte(s, '.'); idx >= 0 {
		fraction = s[idx+1:]
		s = s[:idx]
		if fraction == "" || len(fraction) > 6 {
			return "", false
		}
		for _, r := range fraction {
			if r < '0' || r > '9' {
				return "", false
			}
		}
	}
	var hours, minutes, seconds int
	if strings.ContainsRune(s, ':') {
		parts := strings.Split(s, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return "", false
		}
		nums := make([]int, len(parts))
		for i, part := range parts {
			if part == "" {
				return "", false
			}
			parsed, err := strconv.Atoi(part)
			if err != nil || parsed < 0 {
				return "", false
			}
			nums[i] = parsed
		}
		hours, minutes = nums[0], nums[1]
		if len(nums) == 3 {
			seconds = nums[2]
		}
	} else {
		if len(s) > 7 {
			return "", false
		}
		parsed, err := strconv.Atoi(s)
		if err != nil || parsed < 0 {
			return "", false
		}
		seconds = parsed % 100
		minutes = (parsed / 100) % 100
		hours = parsed / 10000
	}
	if hours > 838 || minutes > 59 || seconds > 59 {
		return "", false
	}
	out := fmt.Sprintf("%02d:%02d:%02d", hours, minutes, seconds)
	if fraction != "" {
		out += "." + fraction
	}
	if negative {
		out = "-" + out
	}
	return out, true
}

func canonicalYear(value interface{}) (string, bool) {
	var year int
	switch v := value.(type) {
	case int:
		year = v
	case int32:
		year = int(v)
	case int64:
		year = int(v)
	case float64:
		if v != math.Trunc(v) {
			return "", false
		}
		year = int(v)
	case string:
		if len(v) != 4 {
			return "", false
		}
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return "", false
		}
		year = parsed
	case []byte:
		return canonicalYear(string(v))
	default:
		return "", false
	}
	if year != 0 && (year < 1901 || year > 2155) {
		return "", false
	}
	return fmt.Sprintf("%04d", year), true
}

func coerceBytes(value interface{}) ([]byte, bool) {
	switch v := value.(type) {
	case []byte:
		return v, true
	case string:
		parsed, ok := new(big.Int).SetString(v, 10)
		if !ok || parsed.Sign() < 0 {
			return nil, false
		}
		return parsed.Bytes(), true
	default:
		return nil, false
	}
}

func canonicalUUID(value interface{}) (string, bool) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), true
	case string:
		parsed, err := uuid.Parse(v)
		if err != nil {
			return "", false
		}
		return parsed.String(), true
	case []byte:
		if len(v) == 16 {
			parsed, err := uuid.FromBytes(v)
			if err != nil {
				return "", false
			}
			return parsed.String(), true
		}
		parsed, err := uuid.ParseBytes(v)
		if err != nil {
			return "", false
		}
		return parsed.String(), true
	default:
		return "", false
	}
}

func coerceVector(value interface{}) ([]float64, bool) {
	switch v := value.(type) {
	case []float64:
		for _, f := range v {
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return nil, false
			}
		}
		return v, true
	case []float32:
		out := make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
		return out, true
	case []interface{}:
		out := make([]float64, len(v))
		for i, elem := range v {
			f, ok := vectorElement(elem)
			if !ok {
				return nil, false
			}
			out[i] = f
		}
		return out, true
	case string:
		var out []float64
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, false
		}
		return out, true
	case []byte:
		var out []float64
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, false
		}
		return out, true
	default:
		return nil, false
	}
}

func vectorElement(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, false
		}
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, false
		}
		return parsed, true
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
