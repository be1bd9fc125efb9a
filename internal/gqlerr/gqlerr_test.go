package gqlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildf(t *testing.T) {
	err := Buildf("table %q declared twice", "users")
	assert.Equal(t, `table "users" declared twice`, err.Error())
}

func TestValidationError_Extensions(t *testing.T) {
	err := Validationf("where.id.between", "unknown filter operator %q", "between")
	assert.Equal(t, `unknown filter operator "between"`, err.Error())
	assert.Equal(t, map[string]interface{}{
		"code":     "validation_failed",
		"argument": "where.id.between",
	}, err.Extensions())

	bare := &ValidationError{Message: "broken"}
	assert.Equal(t, map[string]interface{}{"code": "validation_failed"}, bare.Extensions())
}

func TestRemapError_Extensions(t *testing.T) {
	err := Remapf("payload", RemapToWire, "stored document is not valid UTF-8 text")
	assert.Contains(t, err.Error(), `column "payload"`)
	assert.Contains(t, err.Error(), "to_wire")

	ext := err.Extensions()
	assert.Equal(t, "remap_failed", ext["code"])
	assert.Equal(t, "payload", ext["column"])
	assert.Equal(t, RemapToWire, ext["direction"])

	columnless := Remapf("", RemapFromWire, "bad value")
	assert.NotContains(t, columnless.Error(), "column")
	_, hasColumn := columnless.Extensions()["column"]
	assert.False(t, hasColumn)
}

func TestStorageError_WrapsCause(t *testing.T) {
	cause := fmt.Errorf("Error 1062: Duplicate entry 'a' for key 'users.email'")
	err := Storagef(CodeUniqueViolation, cause, "duplicate value for a unique column")

	assert.Equal(t, "duplicate value for a unique column", err.Error())
	assert.Equal(t, map[string]interface{}{"code": "unique_violation"}, err.Extensions())
	require.ErrorIs(t, err, cause)

	var storageErr *StorageError
	wrapped := fmt.Errorf("insert failed: %w", error(err))
	require.ErrorAs(t, wrapped, &storageErr)
	assert.Equal(t, CodeUniqueViolation, storageErr.Code)
}

func TestErrorAsDistinguishesTypes(t *testing.T) {
	var buildErr *BuildError
	var validationErr *ValidationError
	err := error(Validationf("limit", "limit must not be negative"))
	assert.False(t, errors.As(err, &buildErr))
	assert.True(t, errors.As(err, &validationErr))
}
