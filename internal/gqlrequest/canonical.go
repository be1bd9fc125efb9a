package gqlrequest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/graphql-go/graphql/language/ast"
	"github.com/graphql-go/graphql/language/printer"
)

const anonymousOperationName = "<anonymous>"

// canonicalizeOperation prints the selected operation plus the fragments it
// references, in sorted fragment order, and hashes the result. Two requests
// that differ only in whitespace, comments, or unused sibling operations
// produce the same hash.
func canonicalizeOperation(op *ast.OperationDefinition, fragments map[string]*ast.FragmentDefinition) (string, string, error) {
	if op == nil {
		return "", "", fmt.Errorf("operation is nil")
	}

	fragmentNames := referencedFragmentNames(op.SelectionSet, fragments)
	definitions := make([]ast.Node, 0, 1+len(fragmentNames))
	definitions = append(definitions, op)
	for _, name := range fragmentNames {
		fragment, ok := fragments[name]
		if !ok || fragment == nil {
			return "", "", fmt.Errorf("fragment %q not found", name)
		}
		definitions = append(definitions, fragment)
	}

	printed := printer.Print(ast.NewDocument(&ast.Document{Definitions: definitions}))
	canonicalDoc, ok := printed.(string)
	if !ok {
		return "", "", fmt.Errorf("unexpected canonical document type %T", printed)
	}
	hash := framedSHA256(canonicalDoc, effectiveOperationName(op))
	return canonicalDoc, hash, nil
}

func referencedFragmentNames(root *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition) []string {
	if root == nil || len(fragments) == 0 {
		return nil
	}

	seen := map[string]bool{}
	collectFragmentSpreads(root, fragments, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func collectFragmentSpreads(selectionSet *ast.SelectionSet, fragments map[string]*ast.FragmentDefinition, seen map[string]bool) {
	if selectionSet == nil {
		return
	}

	for _, selection := range selectionSet.Selections {
		switch sel := selection.(type) {
		case *ast.Field:
			collectFragmentSpreads(sel.SelectionSet, fragments, seen)
		case *ast.InlineFragment:
			collectFragmentSpreads(sel.SelectionSet, fragments, seen)
		case *ast.FragmentSpread:
			name := ""
			if sel.Name != nil {
				name = sel.Name.Value
			}
			if name == "" || seen[name] {
				continue
			}
			seen[name] = true
			if fragment, ok := fragments[name]; ok && fragment != nil {
				collectFragmentSpreads(fragment.SelectionSet, fragments, seen)
			}
		}
	}
}

func effectiveOperationName(op *ast.OperationDefinition) string {
	if op == nil || op.Name == nil || op.Name.Value == "" {
		return anonymousOperationName
	}
	return op.Name.Value
}

// framedSHA256 hashes parts with length framing so tuple boundaries cannot
// collide ("ab","c" and "a","bc" hash differently).
func framedSHA256(parts ...string) string {
	hash := sha256.New()
	for _, part := range parts {
		_, _ = fmt.Fprintf(hash, "%d:%s|", len(part), part)
	}
	return hex.EncodeToString(hash.Sum(nil))
}
