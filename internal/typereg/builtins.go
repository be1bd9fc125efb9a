package typereg

import (
	"strconv"
	"strings"

	"github.com/graphql-go/graphql"

	"tablegraph/internal/coltype"
	"tablegraph/internal/gqlerr"
	"tablegraph/internal/schema"
)

var builtinFactories = map[coltype.Kind]Factory{
	coltype.KindInteger: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: graphql.Int, Input: graphql.Int}, nil
	},
	coltype.KindBigInt: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.bigIntScalar, Input: reg.bigIntScalar}, nil
	},
	coltype.KindFloat: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: graphql.Float, Input: graphql.Float}, nil
	},
	coltype.KindDecimal: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.decimalScalar, Input: reg.decimalScalar}, nil
	},
	coltype.KindText: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: graphql.String, Input: graphql.String}, nil
	},
	coltype.KindBoolean: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: graphql.Boolean, Input: graphql.Boolean}, nil
	},
	coltype.KindDate: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.dateScalar, Input: reg.dateScalar}, nil
	},
	coltype.KindDateTime: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.dateTimeScalar, Input: reg.dateTimeScalar}, nil
	},
	coltype.KindTime: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.timeScalar, Input: reg.timeScalar}, nil
	},
	coltype.KindYear: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.yearScalar, Input: reg.yearScalar}, nil
	},
	coltype.KindJSON: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.jsonScalar, Input: reg.jsonScalar}, nil
	},
	coltype.KindBinary: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.bytesScalar, Input: reg.bytesScalar}, nil
	},
	coltype.KindUUID: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.uuidScalar, Input: reg.uuidScalar}, nil
	},
	coltype.KindVector: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return TypePair{Output: reg.vectorScalar, Input: reg.vectorScalar}, nil
	},
	coltype.KindEnum: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		enum, err := reg.enumType(table, col)
		if err != nil {
			return TypePair{}, err
		}
		return TypePair{Output: enum, Input: enum}, nil
	},
	coltype.KindSet: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		enum, err := reg.enumType(table, col)
		if err != nil {
			return TypePair{}, err
		}
		list := graphql.NewList(graphql.NewNonNull(enum))
		return TypePair{Output: list, Input: list}, nil
	},
	coltype.KindGeometry: func(reg *Registry, table *schema.Table, col *schema.Column) (TypePair, error) {
		return reg.geometryPair(), nil
	},
}

// enumType builds the enum for a single-choice or multi-choice column. The
// type is cached by name so a column resolved through both the output and
// input paths shares one instance.
func (r *Registry) enumType(table *schema.Table, col *schema.Column) (*graphql.Enum, error) {
	if len(col.EnumValues) == 0 {
		return nil, gqlerr.Buildf("enum column %s.%s declares no values", table.Name, col.Name)
	}

	typeName := enumTypeName(table, col)
	r.mu.RLock()
	cached, ok := r.enums[typeName]
	r.mu.RUnlock()
	if ok {
		return cached, nil
	}

	values := graphql.EnumValueConfigMap{}
	for _, value := range col.EnumValues {
		name := enumMemberName(value)
		for i := 2; ; i++ {
			if _, taken := values[name]; !taken {
				break
			}
			name = enumMemberName(value) + "_" + strconv.Itoa(i)
		}
		values[name] = &graphql.EnumValueConfig{Value: value}
	}

	enum := graphql.NewEnum(graphql.EnumConfig{
		Name:   typeName,
		Values: values,
	})

	r.mu.Lock()
	if cached, ok := r.enums[typeName]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.enums[typeName] = enum
	r.mu.Unlock()
	return enum, nil
}

func (r *Registry) geometryPair() TypePair {
	if r.geometry == coltype.GeometryModeList {
		list := graphql.NewList(graphql.NewNonNull(graphql.Float))
		return TypePair{Output: list, Input: list}
	}

	r.mu.Lock()
	if r.pointObject == nil {
		r.pointObject = graphql.NewObject(graphql.ObjectConfig{
			Name: "Point",
			Fields: graphql.Fields{
				"x": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
				"y": &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
			},
		})
		r.pointInput = graphql.NewInputObject(graphql.InputObjectConfig{
			Name: "PointInput",
			Fields: graphql.InputObjectConfigFieldMap{
				"x": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
				"y": &graphql.InputObjectFieldConfig{Type: graphql.NewNonNull(graphql.Float)},
			},
		})
	}
	object, input := r.pointObject, r.pointInput
	r.mu.Unlock()
	return TypePair{Output: object, Input: input}
}

func enumTypeName(table *schema.Table, col *schema.Column) string {
	prefix := table.TypePrefix
	if prefix == "" {
		prefix = pascalize(table.Name)
	}
	field := col.FieldName
	if field == "" {
		field = col.Name
	}
	return prefix + pascalize(field) + "Enum"
}

// enumMemberName maps a stored enum value to a valid GraphQL enum member
// name. Invalid characters become underscores and the reserved literals pick
// up a trailing underscore.
func enumMemberName(value string) string {
	var sb strings.Builder
	for _, r := range value {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	name := sb.String()
	if name == "" {
		return "_"
	}
	if name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	switch name {
	case "true", "false", "null":
		name += "_"
	}
	return name
}

func pascalize(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' ' || r == '.'
	})
	var sb strings.Builder
	for _, part := range parts {
		if part == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(part[:1]))
		sb.WriteString(part[1:])
	}
	if sb.Len() == 0 {
		return "X"
	}
	return sb.String()
}
