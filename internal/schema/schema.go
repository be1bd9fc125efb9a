// Package schema defines the declarative table, column, and relation
// descriptors the generator compiles. Descriptors are constructed once at load
// time, from Go declarations or a declaration file, then validated, named, and
// treated as immutable for the process lifetime.
package schema

import (
	"tablegraph/internal/coltype"
	"tablegraph/internal/gqlerr"
)

// Column describes one table column.
type Column struct {
	Name        string
	Type        string
	Nullable    bool
	HasDefault  bool
	PrimaryKey  bool
	EnumValues  []string
	Description string
	// Dimension hints the element count for vector columns; 0 means
	// unspecified.
	Dimension int

	// FieldName is the GraphQL field name assigned by ApplyNames.
	FieldName string
}

// Kind returns the parsed kind of the column's type tag.
func (c Column) Kind() coltype.Kind {
	return coltype.Parse(c.Type)
}

// Required reports whether insert input must supply a value for the column.
func (c Column) Required() bool {
	return !c.Nullable && !c.HasDefault
}

// RelationKind distinguishes to-one from to-many relations.
type RelationKind string

const (
	RelationOne  RelationKind = "one"
	RelationMany RelationKind = "many"
)

// JoinKey pairs a column of the owning table with a column of the referenced
// table.
type JoinKey struct {
	LocalColumn      string
	ReferencedColumn string
}

// Relation describes a traversable link from its owning table to another
// table in the same schema.
type Relation struct {
	Name       string
	Kind       RelationKind
	References string
	Keys       []JoinKey

	// FieldName is the GraphQL field name assigned by ApplyNames.
	FieldName string
}

// Table describes one relational table: its columns in declaration order and
// its named relations.
type Table struct {
	Name        string
	Description string
	Columns     []Column
	Relations   []Relation

	// Published GraphQL names, assigned by ApplyNames.
	TypePrefix       string
	CollectionName   string
	SingularName     string
	InsertName       string
	InsertSingleName string
	UpdateName       string
	DeleteName       string
}

// Column returns the column with the given storage name.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnByField returns the column with the given GraphQL field name.
// ApplyNames must have run first.
func (t *Table) ColumnByField(fieldName string) *Column {
	for i := range t.Columns {
		if t.Columns[i].FieldName == fieldName {
			return &t.Columns[i]
		}
	}
	return nil
}

// Relation returns the relation with the given declared name.
func (t *Table) Relation(name string) *Relation {
	for i := range t.Relations {
		if t.Relations[i].Name == name {
			return &t.Relations[i]
		}
	}
	return nil
}

// RelationByField returns the relation with the given GraphQL field name.
// ApplyNames must have run first.
func (t *Table) RelationByField(fieldName string) *Relation {
	for i := range t.Relations {
		if t.Relations[i].FieldName == fieldName {
			return &t.Relations[i]
		}
	}
	return nil
}

// PrimaryKey returns the primary-key columns in declaration order.
func (t *Table) PrimaryKey() []Column {
	var pk []Column
	for _, col := range t.Columns {
		if col.PrimaryKey {
			pk = append(pk, col)
		}
	}
	return pk
}

// Schema is the full set of declared tables in declaration order.
type Schema struct {
	Tables []Table
}

// Table returns the table with the given name.
func (s *Schema) Table(name string) *Table {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i]
		}
	}
	return nil
}

// Validate checks structural invariants: non-empty tables with unique names,
// non-empty uniquely named columns, enum/set columns carrying value sets, and
// relations referencing tables and join columns that exist. It returns the
// first violation as a BuildError.
func (s *Schema) Validate() error {
	if len(s.Tables) == 0 {
		return gqlerr.Buildf("schema declares no tables")
	}

	seenTables := make(map[string]struct{}, len(s.Tables))
	for ti := range s.Tables {
		table := &s.Tables[ti]
		if table.Name == "" {
			return gqlerr.Buildf("table %d has an empty name", ti)
		}
		if _, dup := seenTables[table.Name]; dup {
			return gqlerr.Buildf("duplicate table %q", table.Name)
		}
		seenTables[table.Name] = struct{}{}

		if len(table.Columns) == 0 {
			return gqlerr.Buildf("table %q declares no columns", table.Name)
		}
		seenColumns := make(map[string]struct{}, len(table.Columns))
		for _, col := range table.Columns {
			if col.Name == "" {
				return gqlerr.Buildf("table %q has a column with an empty name", table.Name)
			}
			if _, dup := seenColumns[col.Name]; dup {
				return gqlerr.Buildf("table %q declares column %q twice", table.Name, col.Name)
			}
			seenColumns[col.Name] = struct{}{}
			if col.Type == "" {
				return gqlerr.Buildf("column %q.%q has an empty type tag", table.Name, col.Name)
			}
			switch col.Kind() {
			case coltype.KindEnum, coltype.KindSet:
				if len(col.EnumValues) == 0 {
					return gqlerr.Buildf("column %q.%q is %s but declares no values", table.Name, col.Name, col.Kind())
				}
			}
		}
	}

	for ti := range s.Tables {
		table := &s.Tables[ti]
		seenRelations := make(map[string]struct{}, len(table.Relations))
		for _, rel := range table.Relations {
			if rel.Name == "" {
				return gqlerr.Buildf("table %q has a relation with an empty name", table.Name)
			}
			if _, dup := seenRelations[rel.Name]; dup {
				return gqlerr.Buildf("table %q declares relation %q twice", table.Name, rel.Name)
			}
			seenRelations[rel.Name] = struct{}{}

			if rel.Kind != RelationOne && rel.Kind != RelationMany {
				return gqlerr.Buildf("relation %q.%q has invalid kind %q", table.Name, rel.Name, rel.Kind)
			}
			target := s.Table(rel.References)
			if target == nil {
				return gqlerr.Buildf("relation %q.%q references unknown table %q", table.Name, rel.Name, rel.References)
			}
			if len(rel.Keys) == 0 {
				return gqlerr.Buildf("relation %q.%q declares no join keys", table.Name, rel.Name)
			}
			for _, key := range rel.Keys {
				if table.Column(key.LocalColumn) == nil {
					return gqlerr.Buildf("relation %q.%q joins on unknown local column %q", table.Name, rel.Name, key.LocalColumn)
				}
				if target.Column(key.ReferencedColumn) == nil {
					return gqlerr.Buildf("relation %q.%q joins on unknown column %q.%q", table.Name, rel.Name, rel.References, key.ReferencedColumn)
				}
			}
		}
	}

	return nil
}
