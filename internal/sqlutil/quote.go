// Package sqlutil holds small SQL text helpers shared by the MySQL backend
// and the role-aware executor.
package sqlutil

import "strings"

// QuoteIdentifier wraps a table or column name in backticks and doubles any
// backticks inside it.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// OrderTerm renders one ORDER BY term for the named column.
func OrderTerm(column string, descending bool) string {
	if descending {
		return QuoteIdentifier(column) + " DESC"
	}
	return QuoteIdentifier(column) + " ASC"
}
