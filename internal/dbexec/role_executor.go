package dbexec

import (
	"context"
	"database/sql"
	"fmt"

	"tablegraph/internal/sqlutil"
)

// RoleExecutor pins each operation to a dedicated connection, applies
// SET ROLE from the request context, and resets the role when the operation
// finishes. MySQL has no parameterized SET ROLE, so the role name is
// backtick-quoted and, when validation is on, checked against the allowlist
// first.
type RoleExecutor struct {
	db           *sql.DB
	databaseName string
	roleFromCtx  func(context.Context) (string, bool)
	allowedRoles map[string]struct{}
	validateRole bool
}

// RoleExecutorConfig wires a RoleExecutor.
type RoleExecutorConfig struct {
	DB           *sql.DB
	DatabaseName string
	RoleFromCtx  func(context.Context) (string, bool)
	AllowedRoles []string
	ValidateRole bool
}

// NewRoleExecutor returns an executor that applies SET ROLE before each
// query, enabling database-enforced access control per request.
func NewRoleExecutor(cfg RoleExecutorConfig) *RoleExecutor {
	allowed := make(map[string]struct{}, len(cfg.AllowedRoles))
	for _, role := range cfg.AllowedRoles {
		allowed[role] = struct{}{}
	}
	return &RoleExecutor{
		db:           cfg.DB,
		databaseName: cfg.DatabaseName,
		roleFromCtx:  cfg.RoleFromCtx,
		allowedRoles: allowed,
		validateRole: cfg.ValidateRole,
	}
}

// prepareConn applies the context role and database selection to conn.
func (e *RoleExecutor) prepareConn(ctx context.Context, conn *sql.Conn) error {
	role, ok := e.roleFromCtx(ctx)
	if ok && role != "" {
		if e.validateRole {
			if _, allowed := e.allowedRoles[role]; !allowed {
				return fmt.Errorf("role not allowed: %s", role)
			}
		}
		if _, err := conn.ExecContext(ctx, "SET ROLE NONE"); err != nil {
			return fmt.Errorf("clearing roles: %w", err)
		}
		if _, err := conn.ExecContext(ctx, "SET ROLE "+sqlutil.QuoteIdentifier(role)); err != nil {
			return fmt.Errorf("setting role %s: %w", role, err)
		}
	}
	if e.databaseName != "" {
		if _, err := conn.ExecContext(ctx, "USE "+sqlutil.QuoteIdentifier(e.databaseName)); err != nil {
			return fmt.Errorf("selecting database %s: %w", e.databaseName, err)
		}
	}
	return nil
}

// resetConn restores the connection's default roles before returning it to
// the pool.
func resetConn(conn *sql.Conn) {
	_, _ = conn.ExecContext(context.Background(), "SET ROLE DEFAULT")
	_ = conn.Close()
}

func (e *RoleExecutor) QueryContext(ctx context.Context, query string, args ...any) (Rows, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	if err := e.prepareConn(ctx, conn); err != nil {
		resetConn(conn)
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		resetConn(conn)
		return nil, err
	}
	return &scopedRows{Rows: rows, release: func() { resetConn(conn) }}, nil
}

func (e *RoleExecutor) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	conn, err := e.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquiring connection: %w", err)
	}
	defer resetConn(conn)

	if err := e.prepareConn(ctx, conn); err != nil {
		return nil, err
	}
	return conn.ExecContext(ctx, query, args...)
}

// scopedRows keeps the role-scoped connection checked out until the caller
// finishes reading.
type scopedRows struct {
	*sql.Rows
	release func()
}

func (r *scopedRows) Close() error {
	defer r.release()
	return r.Rows.Close()
}
