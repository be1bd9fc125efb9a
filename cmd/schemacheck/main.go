// Command schemacheck validates a schema declaration file without starting a
// server. It loads the declaration, compiles it against the in-memory backend,
// and prints the operations and types the server would publish. A non-zero
// exit means the declaration would fail at server startup.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"tablegraph/internal/coltype"
	"tablegraph/internal/generator"
	"tablegraph/internal/logging"
	"tablegraph/internal/membackend"
	"tablegraph/internal/schema"
)

func main() {
	if err := run(os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "schemacheck: %v\n", err)
		os.Exit(1)
	}
}

func run(out io.Writer) error {
	schemaFile := pflag.String("schema", "", "Path to the schema declaration file (YAML or JSON)")
	mutations := pflag.Bool("mutations", true, "Include mutation fields in the check")
	depth := pflag.Int("depth", -1, "Relation nesting bound: -1 for unlimited, 0 to strip relation fields")
	geometry := pflag.String("geometry", "object", "Wire shape for point columns: object or list")
	quiet := pflag.Bool("quiet", false, "Suppress the inventory and report errors only")
	pflag.Parse()

	path := *schemaFile
	if path == "" && pflag.NArg() > 0 {
		path = pflag.Arg(0)
	}
	if path == "" {
		return fmt.Errorf("no declaration file given (use --schema or a positional argument)")
	}

	result, err := check(path, *mutations, *depth, *geometry)
	if err != nil {
		return err
	}

	if !*quiet {
		result.write(out)
	}
	return nil
}

type tableReport struct {
	Name      string
	Columns   int
	Relations int
	Queries   []string
	Mutations []string
}

type report struct {
	Path   string
	Types  int
	Tables []tableReport
}

// check runs the same load-and-compile pipeline the server runs at startup,
// against the memory backend so no database is needed.
func check(path string, withMutations bool, depth int, geometry string) (*report, error) {
	s, err := schema.LoadFile(path)
	if err != nil {
		return nil, err
	}

	opts := generator.Options{
		DisableMutations: !withMutations,
		Geometry:         coltype.GeometryMode(geometry),
		Logger:           logging.NewLogger(logging.Config{Level: "error", Format: "text"}),
	}
	if depth >= 0 {
		opts.Depth = &depth
	}

	gqlSchema, err := generator.Compile(s, membackend.New(s), nil, nil, opts)
	if err != nil {
		return nil, err
	}

	result := &report{Path: path}
	for name := range gqlSchema.TypeMap() {
		if !strings.HasPrefix(name, "__") {
			result.Types++
		}
	}
	for ti := range s.Tables {
		table := &s.Tables[ti]
		tr := tableReport{
			Name:      table.Name,
			Columns:   len(table.Columns),
			Relations: len(table.Relations),
			Queries:   []string{table.CollectionName, table.SingularName},
		}
		if withMutations {
			tr.Mutations = []string{table.InsertName, table.InsertSingleName, table.UpdateName, table.DeleteName}
		}
		result.Tables = append(result.Tables, tr)
	}
	return result, nil
}

func (r *report) write(out io.Writer) {
	fmt.Fprintf(out, "%s: %d tables, %d GraphQL types\n", r.Path, len(r.Tables), r.Types)
	for _, table := range r.Tables {
		fmt.Fprintf(out, "\n%s (%d columns, %d relations)\n", table.Name, table.Columns, table.Relations)
		fmt.Fprintf(out, "  query:    %s\n", strings.Join(table.Queries, ", "))
		if len(table.Mutations) > 0 {
			fmt.Fprintf(out, "  mutation: %s\n", strings.Join(table.Mutations, ", "))
		}
	}
}
