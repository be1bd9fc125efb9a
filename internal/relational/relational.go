// Package relational defines the contract between the compiled schema and the
// layer that executes data access: predicate trees, sort keys, nested
// relation-load specifications, and a self-describing capability descriptor
// the generator dispatches on instead of concrete backend types.
//
// Backends receive storage-representation values and return
// storage-representation rows keyed by column name; wire conversion is the
// caller's concern. Errors returned by a backend pass through to the response
// unmodified; the core never retries, suppresses, or reinterprets them.
package relational

import "context"

// Row is one stored record, keyed by column name. Rows loaded through a
// RelationLoad appear under the relation's declared name: a []Row for to-many
// relations, a Row or nil for to-one.
type Row map[string]interface{}

// Predicate is one node of a compiled filter tree. The set of
// implementations is closed; backends lower each to their native form.
type Predicate interface {
	isPredicate()
}

// All matches every row. Empty or absent filters compile to it.
type All struct{}

// CompareOp enumerates the column comparison operators.
type CompareOp string

const (
	OpEq         CompareOp = "eq"
	OpNe         CompareOp = "ne"
	OpLt         CompareOp = "lt"
	OpLte        CompareOp = "lte"
	OpGt         CompareOp = "gt"
	OpGte        CompareOp = "gte"
	OpLike       CompareOp = "like"
	OpILike      CompareOp = "ilike"
	OpInArray    CompareOp = "inArray"
	OpNotInArray CompareOp = "notInArray"
	OpIsNull     CompareOp = "isNull"
	OpIsNotNull  CompareOp = "isNotNull"
)

// Compare applies one operator to one column. Value carries the storage-side
// operand: a scalar for comparison operators, a []interface{} for
// inArray/notInArray, nil for the null checks.
type Compare struct {
	Column string
	Op     CompareOp
	Value  interface{}
}

// And is the conjunction of its children.
type And []Predicate

// Or is the disjunction of its children.
type Or []Predicate

// Not negates its child.
type Not struct {
	Child Predicate
}

func (All) isPredicate()     {}
func (Compare) isPredicate() {}
func (And) isPredicate()     {}
func (Or) isPredicate()      {}
func (Not) isPredicate()     {}

// SortKey orders results by one column.
type SortKey struct {
	Column     string
	Descending bool
}

// RelationLoad names a relation subtree to attach to returned rows. The
// generator requests exactly the subtrees present in the query's selection,
// so backends never eager-load unrequested relations.
type RelationLoad struct {
	Relation string
	Children []RelationLoad
}

// ReadRequest is a multi-row read. A nil Limit means unlimited.
type ReadRequest struct {
	Table     string
	Predicate Predicate
	Sort      []SortKey
	Offset    int
	Limit     *int
	Relations []RelationLoad
}

// InsertRequest inserts the given rows in order.
type InsertRequest struct {
	Table string
	Rows  []Row
}

// UpdateRequest assigns Set to every row matching Predicate. An All
// predicate updates the whole table; that contract is intentional and
// preserved by callers.
type UpdateRequest struct {
	Table     string
	Set       Row
	Predicate Predicate
}

// DeleteRequest removes every row matching Predicate.
type DeleteRequest struct {
	Table     string
	Predicate Predicate
}

// MutationResult reports a mutation's outcome. Rows holds the affected rows
// only when the backend's capabilities advertise ReturnsMutatedRows;
// otherwise it is nil and Affected alone is meaningful.
type MutationResult struct {
	Rows     []Row
	Affected int64
}

// Capabilities describes what a backend can do. The generator selects the
// mutation result shape (row-returning vs returnless) from it once at
// compile time.
type Capabilities struct {
	// Name identifies the backend in logs and diagnostics.
	Name string
	// ReturnsMutatedRows reports whether insert/update/delete results carry
	// the affected rows without requiring read-back queries.
	ReturnsMutatedRows bool
}

// Layer executes data access for the compiled schema.
type Layer interface {
	Capabilities() Capabilities
	Read(ctx context.Context, req ReadRequest) ([]Row, error)
	Insert(ctx context.Context, req InsertRequest) (MutationResult, error)
	Update(ctx context.Context, req UpdateRequest) (MutationResult, error)
	Delete(ctx context.Context, req DeleteRequest) (MutationResult, error)
}
