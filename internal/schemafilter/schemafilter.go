// Package schemafilter prunes schema declarations with allow/deny glob
// patterns before compilation.
package schemafilter

import (
	"path"
	"slices"
	"strings"

	"tablegraph/internal/schema"
)

// Config controls allow/deny filters for tables and columns. Patterns use
// path.Match globs and compare case-insensitively.
type Config struct {
	AllowTables  []string            `mapstructure:"allow_tables"`
	DenyTables   []string            `mapstructure:"deny_tables"`
	AllowColumns map[string][]string `mapstructure:"allow_columns"`
	DenyColumns  map[string][]string `mapstructure:"deny_columns"`
}

// Apply filters tables, columns, and relations in place. Missing allow lists
// default to allow-all; deny rules always win. Tables left without columns
// disappear, and relations survive only when their target table and every
// join column survive the filter.
func Apply(s *schema.Schema, cfg Config) {
	if s == nil {
		return
	}

	kept := make([]schema.Table, 0, len(s.Tables))
	allowedColumnsByTable := make(map[string]map[string]bool, len(s.Tables))
	for _, table := range s.Tables {
		if !tableAllowed(table.Name, cfg.AllowTables, cfg.DenyTables) {
			continue
		}

		allowedColumns := make(map[string]bool, len(table.Columns))
		columns := make([]schema.Column, 0, len(table.Columns))
		for _, column := range table.Columns {
			if !columnAllowed(table.Name, column.Name, cfg.AllowColumns, cfg.DenyColumns) {
				continue
			}
			columns = append(columns, column)
			allowedColumns[column.Name] = true
		}
		if len(columns) == 0 {
			continue
		}

		table.Columns = columns
		kept = append(kept, table)
		allowedColumnsByTable[table.Name] = allowedColumns
	}

	for i := range kept {
		table := &kept[i]
		relations := make([]schema.Relation, 0, len(table.Relations))
		for _, rel := range table.Relations {
			if relationSurvives(rel, allowedColumnsByTable[table.Name], allowedColumnsByTable) {
				relations = append(relations, rel)
			}
		}
		table.Relations = relations
	}

	s.Tables = kept
}

func relationSurvives(rel schema.Relation, localColumns map[string]bool, allowedColumnsByTable map[string]map[string]bool) bool {
	targetColumns, ok := allowedColumnsByTable[rel.References]
	if !ok {
		return false
	}
	for _, key := range rel.Keys {
		if !localColumns[key.LocalColumn] {
			return false
		}
		if !targetColumns[key.ReferencedColumn] {
			return false
		}
	}
	return true
}

func tableAllowed(table string, allow, deny []string) bool {
	if matchesAny(table, deny) {
		return false
	}
	if len(allow) == 0 {
		return true
	}
	return matchesAny(table, allow)
}

func columnAllowed(table, column string, allow, deny map[string][]string) bool {
	denyPatterns := mergePatterns(deny, table)
	if matchesAny(column, denyPatterns) {
		return false
	}
	allowPatterns := mergePatterns(allow, table)
	if len(allowPatterns) == 0 {
		return true
	}
	return matchesAny(column, allowPatterns)
}

// mergePatterns combines the wildcard table entry with the exact table entry.
func mergePatterns(patterns map[string][]string, table string) []string {
	if patterns == nil {
		return nil
	}
	combined := append([]string{}, patterns["*"]...)
	combined = append(combined, patterns[table]...)
	return slices.Compact(combined)
}

func matchesAny(value string, patterns []string) bool {
	value = strings.ToLower(value)
	for _, pattern := range patterns {
		if pattern == "" {
			continue
		}
		ok, err := path.Match(strings.ToLower(pattern), value)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
