package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeDeclaration(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "schema.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write declaration: %v", err)
	}
	return path
}

const validDeclaration = `tables:
  - name: users
    columns:
      - name: id
        type: bigint
        primary_key: true
        has_default: true
      - name: name
        type: varchar
    relations:
      - name: posts
        kind: many
        references: posts
        keys:
          - local: id
            referenced: author_id
  - name: posts
    columns:
      - name: id
        type: bigint
        primary_key: true
        has_default: true
      - name: author_id
        type: bigint
`

func TestCheck_ReportsOperations(t *testing.T) {
	path := writeDeclaration(t, validDeclaration)

	result, err := check(path, true, -1, "object")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	if len(result.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(result.Tables))
	}
	if result.Types == 0 {
		t.Fatalf("expected published types, got none")
	}

	users := result.Tables[0]
	if users.Name != "users" {
		t.Fatalf("expected users first, got %q", users.Name)
	}
	if users.Columns != 2 || users.Relations != 1 {
		t.Fatalf("unexpected users counts: %+v", users)
	}
	if got := strings.Join(users.Queries, ","); got != "users,usersSingle" {
		t.Fatalf("unexpected query fields: %q", got)
	}
	if got := strings.Join(users.Mutations, ","); got != "insertIntoUsers,insertIntoUsersSingle,updateUsers,deleteFromUsers" {
		t.Fatalf("unexpected mutation fields: %q", got)
	}
}

func TestCheck_MutationsDisabled(t *testing.T) {
	path := writeDeclaration(t, validDeclaration)

	result, err := check(path, false, -1, "object")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}
	for _, table := range result.Tables {
		if len(table.Mutations) != 0 {
			t.Fatalf("expected no mutation fields for %s, got %v", table.Name, table.Mutations)
		}
	}
}

func TestCheck_InvalidDeclarationFails(t *testing.T) {
	path := writeDeclaration(t, `tables:
  - name: users
    columns:
      - name: id
        type: bigint
    relations:
      - name: posts
        kind: many
        references: missing
        keys:
          - local: id
            referenced: author_id
`)

	if _, err := check(path, true, -1, "object"); err == nil {
		t.Fatalf("expected a validation error for a dangling relation")
	}
}

func TestCheck_MissingFileFails(t *testing.T) {
	if _, err := check(filepath.Join(t.TempDir(), "missing.yaml"), true, -1, "object"); err == nil {
		t.Fatalf("expected an error for a missing file")
	}
}

func TestReportWrite_IncludesInventory(t *testing.T) {
	path := writeDeclaration(t, validDeclaration)

	result, err := check(path, true, -1, "object")
	if err != nil {
		t.Fatalf("check failed: %v", err)
	}

	var sb strings.Builder
	result.write(&sb)
	out := sb.String()

	for _, want := range []string{"2 tables", "users", "insertIntoUsers", "deleteFromPosts"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected output to mention %q, got:\n%s", want, out)
		}
	}
}
