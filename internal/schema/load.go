package schema

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Declaration file shapes. Keys follow the same snake_case convention as the
// server config file.
type fileSchema struct {
	Tables []fileTable `mapstructure:"tables"`
}

type fileTable struct {
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Columns     []fileColumn   `mapstructure:"columns"`
	Relations   []fileRelation `mapstructure:"relations"`
}

type fileColumn struct {
	Name        string   `mapstructure:"name"`
	Type        string   `mapstructure:"type"`
	Nullable    bool     `mapstructure:"nullable"`
	HasDefault  bool     `mapstructure:"has_default"`
	PrimaryKey  bool     `mapstructure:"primary_key"`
	Values      []string `mapstructure:"values"`
	Description string   `mapstructure:"description"`
	Dimension   int      `mapstructure:"dimension"`
}

type fileRelation struct {
	Name       string        `mapstructure:"name"`
	Kind       string        `mapstructure:"kind"`
	References string        `mapstructure:"references"`
	Keys       []fileJoinKey `mapstructure:"keys"`
}

type fileJoinKey struct {
	Local      string `mapstructure:"local"`
	Referenced string `mapstructure:"referenced"`
}

// LoadFile reads a schema declaration from a YAML or JSON file and returns the
// validated Schema. The file mirrors the Go declaration shape:
//
//	tables:
//	  - name: posts
//	    columns:
//	      - name: id
//	        type: bigint
//	        primary_key: true
//	      - name: author_id
//	        type: bigint
//	    relations:
//	      - name: author
//	        kind: one
//	        references: users
//	        keys:
//	          - local: author_id
//	            referenced: id
//
// Unknown keys are rejected so declaration typos fail at startup instead of
// silently dropping a column.
func LoadFile(path string) (*Schema, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("schema declaration path is required")
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read schema declaration %q: %w", path, err)
	}

	var decl fileSchema
	if err := v.UnmarshalExact(&decl); err != nil {
		return nil, fmt.Errorf("failed to decode schema declaration %q: %w", path, err)
	}

	s := decl.toSchema()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

func (f fileSchema) toSchema() *Schema {
	s := &Schema{Tables: make([]Table, 0, len(f.Tables))}
	for _, t := range f.Tables {
		table := Table{
			Name:        t.Name,
			Description: t.Description,
			Columns:     make([]Column, 0, len(t.Columns)),
			Relations:   make([]Relation, 0, len(t.Relations)),
		}
		for _, c := range t.Columns {
			table.Columns = append(table.Columns, Column{
				Name:        c.Name,
				Type:        c.Type,
				Nullable:    c.Nullable,
				HasDefault:  c.HasDefault,
				PrimaryKey:  c.PrimaryKey,
				EnumValues:  c.Values,
				Description: c.Description,
				Dimension:   c.Dimension,
			})
		}
		for _, r := range t.Relations {
			rel := Relation{
				Name:       r.Name,
				Kind:       RelationKind(strings.ToLower(strings.TrimSpace(r.Kind))),
				References: r.References,
				Keys:       make([]JoinKey, 0, len(r.Keys)),
			}
			for _, k := range r.Keys {
				rel.Keys = append(rel.Keys, JoinKey{
					LocalColumn:      k.Local,
					ReferencedColumn: k.Referenced,
				})
			}
			table.Relations = append(table.Relations, rel)
		}
		s.Tables = append(s.Tables, table)
	}
	return s
}
