package remap

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"math/big"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"tablegraph/internal/coltype"
	"tablegraph/internal/scalars"
	"tablegraph/internal/schema"
)

// Shared canonicalizers for the kinds whose wire form is already a string.
var (
	timeCanonical = scalars.Time()
	yearCanonical = scalars.Year()
)

var builtinFuncs = map[coltype.Kind]Funcs{
	coltype.KindInteger:  {ToWire: integerValue, FromWire: integerValue},
	coltype.KindBigInt:   {ToWire: bigIntToWire, FromWire: bigIntFromWire},
	coltype.KindFloat:    {ToWire: floatValue, FromWire: floatValue},
	coltype.KindDecimal:  {ToWire: decimalValue, FromWire: decimalValue},
	coltype.KindText:     {ToWire: textValue, FromWire: textValue},
	coltype.KindBoolean:  {ToWire: booleanValue, FromWire: booleanValue},
	coltype.KindDate:     {ToWire: dateToWire, FromWire: dateFromWire},
	coltype.KindDateTime: {ToWire: dateTimeToWire, FromWire: dateTimeFromWire},
	coltype.KindTime:     {ToWire: timeValue, FromWire: timeValue},
	coltype.KindYear:     {ToWire: yearValue, FromWire: yearValue},
	coltype.KindJSON:     {ToWire: jsonToWire, FromWire: jsonFromWire},
	coltype.KindBinary:   {ToWire: binaryToWire, FromWire: binaryFromWire},
	coltype.KindUUID:     {ToWire: uuidValue, FromWire: uuidValue},
	coltype.KindEnum:     {ToWire: enumToWire, FromWire: enumFromWire},
	coltype.KindSet:      {ToWire: setToWire, FromWire: setFromWire},
	coltype.KindVector:   {ToWire: vectorValue, FromWire: vectorValue},
	coltype.KindGeometry: {ToWire: geometryToWire, FromWire: geometryFromWire},
}

func integerValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case int:
		return v, nil
	case int8:
		return int(v), nil
	case int16:
		return int(v), nil
	case int32:
		return int(v), nil
	case int64:
		return int(v), nil
	case uint:
		return int(v), nil
	case uint8:
		return int(v), nil
	case uint16:
		return int(v), nil
	case uint32:
		return int(v), nil
	case uint64:
		if v > math.MaxInt {
			return nil, fmt.Errorf("integer value %d overflows", v)
		}
		return int(v), nil
	case float64:
		if v != math.Trunc(v) {
			return nil, fmt.Errorf("integer value has a fraction")
		}
		return int(v), nil
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid integer value %q", v)
		}
		return parsed, nil
	case []byte:
		parsed, err := strconv.Atoi(string(v))
		if err != nil {
			return nil, fmt.Errorf("invalid integer value %q", string(v))
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("unsupported integer value of type %T", value)
	}
}

func bigIntToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	parsed, err := coerceInt64(value)
	if err != nil {
		return nil, err
	}
	return strconv.FormatInt(parsed, 10), nil
}

func bigIntFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	return coerceInt64(value)
}

func coerceInt64(value interface{}) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		if v > math.MaxInt64 {
			return 0, fmt.Errorf("integer value %d overflows", v)
		}
		return int64(v), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v > math.MaxInt64 {
			return 0, fmt.Errorf("value is not a 64-bit integer")
		}
		return int64(v), nil
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer value %q", v)
		}
		return parsed, nil
	case []byte:
		parsed, err := strconv.ParseInt(string(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid integer value %q", string(v))
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported integer value of type %T", value)
	}
}

func floatValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case string:
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value %q", v)
		}
		return parsed, nil
	case []byte:
		parsed, err := strconv.ParseFloat(string(v), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid float value %q", string(v))
		}
		return parsed, nil
	default:
		return nil, fmt.Errorf("unsupported float value of type %T", value)
	}
}

func decimalValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("invalid decimal value %q", v)
		}
		return v, nil
	case []byte:
		return decimalValue(r, table, col, string(v))
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32), nil
	case int:
		return strconv.Itoa(v), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	default:
		return nil, fmt.Errorf("unsupported decimal value of type %T", value)
	}
}

func textValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return nil, fmt.Errorf("unsupported text value of type %T", value)
	}
}

func booleanValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	case int:
		return v != 0, nil
	case int64:
		return v != 0, nil
	case float64:
		return v != 0, nil
	case string:
		return parseBool(v)
	case []byte:
		return parseBool(string(v))
	default:
		return nil, fmt.Errorf("unsupported boolean value of type %T", value)
	}
}

func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "1", "true":
		return true, nil
	case "0", "false":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value %q", s)
	}
}

func dateToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	parsed, err := coerceTime(value)
	if err != nil {
		return nil, err
	}
	// Date columns drop any time-of-day component on the way out.
	return parsed.UTC().Format("2006-01-02"), nil
}

func dateFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	parsed, err := coerceTime(value)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC), nil
}

func dateTimeToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	parsed, err := coerceTime(value)
	if err != nil {
		return nil, err
	}
	return parsed.UTC().Format(time.RFC3339), nil
}

func dateTimeFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	return coerceTime(value)
}

func coerceTime(value interface{}) (time.Time, error) {
	switch v := value.(type) {
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, fmt.Errorf("nil time value")
		}
		return *v, nil
	case string:
		return parseTimeString(v)
	case []byte:
		return parseTimeString(string(v))
	default:
		return time.Time{}, fmt.Errorf("unsupported temporal value of type %T", value)
	}
}

func parseTimeString(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid temporal value %q", s)
}

func timeValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	if canonical := timeCanonical.Serialize(value); canonical != nil {
		return canonical, nil
	}
	return nil, fmt.Errorf("invalid time value")
}

func yearValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	if canonical := yearCanonical.Serialize(value); canonical != nil {
		return canonical, nil
	}
	return nil, fmt.Errorf("invalid year value")
}

func jsonToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []byte:
		if !utf8.Valid(v) {
			return nil, fmt.Errorf("stored document is not valid UTF-8 text")
		}
		return string(v), nil
	case string:
		return v, nil
	case json.RawMessage:
		return string(v), nil
	default:
		serialized, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON-encodable: %v", err)
		}
		return string(serialized), nil
	}
}

func jsonFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if !json.Valid([]byte(v)) {
			return nil, fmt.Errorf("invalid JSON document")
		}
		return v, nil
	case []byte:
		return jsonFromWire(r, table, col, string(v))
	default:
		serialized, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("value is not JSON-encodable: %v", err)
		}
		return string(serialized), nil
	}
}

func binaryToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []byte:
		return new(big.Int).SetBytes(v).String(), nil
	case string:
		if _, ok := new(big.Int).SetString(v, 10); !ok {
			return nil, fmt.Errorf("binary value is not a decimal string")
		}
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported binary value of type %T", value)
	}
}

func binaryFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		parsed, ok := new(big.Int).SetString(v, 10)
		if !ok || parsed.Sign() < 0 {
			return nil, fmt.Errorf("binary value is not a non-negative decimal string")
		}
		return parsed.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported binary value of type %T", value)
	}
}

func uuidValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case uuid.UUID:
		return v.String(), nil
	case string:
		parsed, err := uuid.Parse(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid UUID value")
		}
		return parsed.String(), nil
	case []byte:
		if len(v) == 16 {
			parsed, err := uuid.FromBytes(v)
			if err != nil {
				return nil, fmt.Errorf("invalid UUID bytes")
			}
			return parsed.String(), nil
		}
		parsed, err := uuid.ParseBytes(v)
		if err != nil {
			return nil, fmt.Errorf("invalid UUID value")
		}
		return parsed.String(), nil
	default:
		return nil, fmt.Errorf("unsupported UUID value of type %T", value)
	}
}

func enumToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		return nil, fmt.Errorf("unsupported enum value of type %T", value)
	}
}

func enumFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	member, ok := value.(string)
	if !ok {
		if raw, isBytes := value.([]byte); isBytes {
			member = string(raw)
		} else {
			return nil, fmt.Errorf("unsupported enum value of type %T", value)
		}
	}
	for _, allowed := range col.EnumValues {
		if member == allowed {
			return member, nil
		}
	}
	return nil, fmt.Errorf("invalid enum value %q", member)
}

func setToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case string:
		return splitSet(v), nil
	case []byte:
		return splitSet(string(v)), nil
	default:
		return nil, fmt.Errorf("unsupported set value of type %T", value)
	}
}

func setFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	var members []string
	switch v := value.(type) {
	case []string:
		members = v
	case []interface{}:
		members = make([]string, 0, len(v))
		for _, item := range v {
			member, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("set members must be strings")
			}
			members = append(members, member)
		}
	case string:
		members = splitSet(v)
	default:
		return nil, fmt.Errorf("unsupported set value of type %T", value)
	}
	return canonicalizeSet(members, col.EnumValues)
}

func splitSet(csv string) []string {
	if csv == "" {
		return []string{}
	}
	return strings.Split(csv, ",")
}

// canonicalizeSet validates members against the declared values, removes
// duplicates, and joins in declaration order, which is how the database
// stores SET values.
func canonicalizeSet(members []string, allowed []string) (string, error) {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, v := range allowed {
		allowedSet[v] = struct{}{}
	}

	selected := make(map[string]struct{}, len(members))
	for _, member := range members {
		if _, ok := allowedSet[member]; !ok {
			return "", fmt.Errorf("invalid set value %q", member)
		}
		selected[member] = struct{}{}
	}

	ordered := make([]string, 0, len(selected))
	for _, option := range allowed {
		if _, ok := selected[option]; ok {
			ordered = append(ordered, option)
		}
	}
	return strings.Join(ordered, ","), nil
}

func vectorValue(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	var out []float64
	switch v := value.(type) {
	case []float64:
		out = v
	case []float32:
		out = make([]float64, len(v))
		for i, f := range v {
			out[i] = float64(f)
		}
	case []interface{}:
		out = make([]float64, len(v))
		for i, item := range v {
			f, err := coerceFloat(item)
			if err != nil {
				return nil, err
			}
			out[i] = f
		}
	case string:
		if err := json.Unmarshal([]byte(v), &out); err != nil {
			return nil, fmt.Errorf("invalid vector value %q", v)
		}
	case []byte:
		if err := json.Unmarshal(v, &out); err != nil {
			return nil, fmt.Errorf("invalid vector value %q", string(v))
		}
	default:
		return nil, fmt.Errorf("unsupported vector value of type %T", value)
	}
	if col.Dimension > 0 && len(out) != col.Dimension {
		return nil, fmt.Errorf("vector has %d elements, column expects %d", len(out), col.Dimension)
	}
	return out, nil
}

func coerceFloat(value interface{}) (float64, error) {
	switch v := value.(type) {
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, fmt.Errorf("vector elements must be finite")
		}
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case json.Number:
		parsed, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("invalid vector element %q", v.String())
		}
		return parsed, nil
	default:
		return 0, fmt.Errorf("unsupported vector element of type %T", value)
	}
}

func geometryToWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	x, y, err := coercePoint(value)
	if err != nil {
		return nil, err
	}
	if r.geometry == coltype.GeometryModeList {
		return []float64{x, y}, nil
	}
	return map[string]interface{}{"x": x, "y": y}, nil
}

func geometryFromWire(r *Remapper, table *schema.Table, col *schema.Column, value interface{}) (interface{}, error) {
	x, y, err := coercePoint(value)
	if err != nil {
		return nil, err
	}
	return encodeWKBPoint(x, y), nil
}

func coercePoint(value interface{}) (float64, float64, error) {
	switch v := value.(type) {
	case []byte:
		x, y, ok := parseWKBPoint(v)
		if !ok {
			return 0, 0, fmt.Errorf("invalid point bytes")
		}
		return x, y, nil
	case map[string]interface{}:
		x, err := coerceFloat(v["x"])
		if err != nil {
			return 0, 0, fmt.Errorf("point is missing a numeric x")
		}
		y, err := coerceFloat(v["y"])
		if err != nil {
			return 0, 0, fmt.Errorf("point is missing a numeric y")
		}
		return x, y, nil
	case []float64:
		if len(v) != 2 {
			return 0, 0, fmt.Errorf("point list must have exactly two elements")
		}
		return v[0], v[1], nil
	case []interface{}:
		if len(v) != 2 {
			return 0, 0, fmt.Errorf("point list must have exactly two elements")
		}
		x, err := coerceFloat(v[0])
		if err != nil {
			return 0, 0, err
		}
		y, err := coerceFloat(v[1])
		if err != nil {
			return 0, 0, err
		}
		return x, y, nil
	default:
		return 0, 0, fmt.Errorf("unsupported point value of type %T", value)
	}
}

// MySQL exchanges spatial values as a 4-byte SRID prefix followed by WKB.
// A WKB point is byte order, uint32 type 1, then two float64 coordinates.
func parseWKBPoint(b []byte) (float64, float64, bool) {
	if len(b) == 25 {
		b = b[4:]
	}
	if len(b) != 21 {
		return 0, 0, false
	}
	var order binary.ByteOrder
	switch b[0] {
	case 0:
		order = binary.BigEndian
	case 1:
		order = binary.LittleEndian
	default:
		return 0, 0, false
	}
	if order.Uint32(b[1:5]) != 1 {
		return 0, 0, false
	}
	x := math.Float64frombits(order.Uint64(b[5:13]))
	y := math.Float64frombits(order.Uint64(b[13:21]))
	return x, y, true
}

func encodeWKBPoint(x, y float64) []byte {
	out := make([]byte, 25)
	out[4] = 1
	binary.LittleEndian.PutUint32(out[5:9], 1)
	binary.LittleEndian.PutUint64(out[9:17], math.Float64bits(x))
	binary.LittleEndian.PutUint64(out[17:25], math.Float64bits(y))
	return out
}
