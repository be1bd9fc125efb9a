package schema

import (
	"fmt"

	"tablegraph/internal/naming"
)

// ApplyNames assigns GraphQL names to every table, column, and relation using
// the provided namer. It resets collision state so naming is deterministic per
// schema build. Relations without an explicit FieldName get a kind-agreeing
// default derived from the relation name (singularized for to-one,
// pluralized for to-many).
func ApplyNames(s *Schema, namer *naming.Namer) {
	if s == nil {
		return
	}
	if namer == nil {
		namer = naming.Default()
	}
	namer.Reset()

	for ti := range s.Tables {
		table := &s.Tables[ti]

		prefix := namer.RegisterTypePrefix(table.Name)
		table.TypePrefix = prefix
		table.CollectionName = namer.RegisterCollectionField(table.Name)
		table.SingularName = namer.RegisterSingularField(table.CollectionName, table.Name)
		table.InsertName = namer.RegisterInsertField(prefix, table.Name)
		table.InsertSingleName = namer.RegisterInsertSingleField(prefix, table.Name)
		table.UpdateName = namer.RegisterUpdateField(prefix, table.Name)
		table.DeleteName = namer.RegisterDeleteField(prefix, table.Name)

		for ci := range table.Columns {
			col := &table.Columns[ci]
			col.FieldName = namer.RegisterColumnField(prefix, col.Name)
		}

		for ri := range table.Relations {
			rel := &table.Relations[ri]
			base := rel.FieldName
			if base == "" {
				base = namer.RelationFieldName(rel.Kind == RelationMany, rel.Name)
			}
			source := fmt.Sprintf("%s->%s", rel.Name, rel.References)
			rel.FieldName = namer.RegisterRelationField(prefix, base, source, rel.Kind == RelationMany)
		}
	}
}
