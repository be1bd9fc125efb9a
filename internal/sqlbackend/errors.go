package sqlbackend

import (
	"errors"

	"github.com/go-sql-driver/mysql"

	"tablegraph/internal/gqlerr"
)

// MySQL server error numbers the backend maps onto stable storage codes.
// See: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	mysqlErrBadNullColumn      = 1048 // Column cannot be null
	mysqlErrDupEntry           = 1062 // Duplicate entry for key
	mysqlErrRowIsReferenced    = 1451 // Cannot delete or update a parent row
	mysqlErrNoReferencedRow    = 1452 // Cannot add or update a child row
	mysqlErrDBAccessDenied     = 1044 // Access denied for user to database
	mysqlErrTableAccessDenied  = 1142 // Command denied to user for table
	mysqlErrColumnAccessDenied = 1143 // Command denied to user for column
)

// normalizeError annotates recognizable server errors with a storage code
// while keeping the driver error reachable through Unwrap. Anything else
// passes through unchanged.
func normalizeError(err error) error {
	if err == nil {
		return nil
	}
	var mysqlErr *mysql.MySQLError
	if !errors.As(err, &mysqlErr) {
		return err
	}
	switch mysqlErr.Number {
	case mysqlErrDupEntry:
		return gqlerr.Storagef(gqlerr.CodeUniqueViolation, err, "duplicate value for a unique column")
	case mysqlErrRowIsReferenced, mysqlErrNoReferencedRow:
		return gqlerr.Storagef(gqlerr.CodeForeignKeyViolation, err, "foreign key constraint failed")
	case mysqlErrBadNullColumn:
		return gqlerr.Storagef(gqlerr.CodeNotNullViolation, err, "column does not accept null")
	case mysqlErrDBAccessDenied, mysqlErrTableAccessDenied, mysqlErrColumnAccessDenied:
		return gqlerr.Storagef(gqlerr.CodeAccessDenied, err, "access denied")
	}
	return err
}
