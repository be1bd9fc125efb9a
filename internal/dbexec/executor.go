// Package dbexec abstracts SQL execution for the MySQL backend: a plain
// pass-through executor and a role-aware one that scopes each operation to a
// database role taken from the request context.
package dbexec

import (
	"context"
	"database/sql"
)

// Rows narrows *sql.Rows so wrappers can attach cleanup behavior.
type Rows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
	Close() error
}

// QueryExecutor runs queries and statements. The MySQL backend depends on
// this instead of *sql.DB so role scoping and test fakes slot in unchanged.
type QueryExecutor interface {
	QueryContext(ctx context.Context, query string, args ...any) (Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// StandardExecutor runs everything directly on the database handle.
type StandardExecutor struct {
	db *sql.DB
}

// NewStandardExecutor returns an executor bound to db.
func NewStandardExecutor(db *sql.DB) *StandardExecutor {
	return &StandardExecutor{db: db}
}

func (e *StandardExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.QueryContext(ctx, query, args...)
}

func (e *StandardExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if e.db == nil {
		return nil, sql.ErrConnDone
	}
	return e.db.ExecContext(ctx, query, args...)
}
