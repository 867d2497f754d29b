package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/flatfile"
	"github.com/roach88/chronorm/internal/queryir"
	"github.com/roach88/chronorm/internal/store"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Create bool   // create tables before loading
	Layout string // time layout for date and timestamp values
}

// ImportResult counts the rows loaded per portal.
type ImportResult struct {
	Loaded map[string]int `json:"loaded"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "import <schema-dir> <flat-file>",
		Short: "Load a flat file into portal tables",
		Long: `Load every section of a flat file into its portal's table.

A section starts with a class line naming the portal, followed by a header
line of attribute names and one line of values per row:

  class Order
  id, status
  1, "open"
  2, null

Example:
  chronorm import ./schema ./fixtures.txt --create`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, args, cmd)
		},
	}
	cmd.Flags().BoolVar(&opts.Create, "create", false, "create the tables first")
	cmd.Flags().StringVar(&opts.Layout, "layout", "", "time layout for date and timestamp values")
	return cmd
}

func runImport(opts *ImportOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	schema, err := BuildSchema(args[0], opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	tables, err := flatfile.ReadFile(args[1], schema, flatfile.Options{Layout: opts.Layout})
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to read flat file", ErrCodeFixture), err)
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	result := ImportResult{Loaded: make(map[string]int)}
	for _, t := range tables {
		if opts.Create {
			if err := st.CreateTable(ctx, t.Portal); err != nil {
				return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
			}
			fp, err := schema.Fingerprint(t.Portal.BusClassName())
			if err != nil {
				return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
			}
			if err := st.RecordPortal(ctx, t.Portal, fp); err != nil {
				return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
			}
		}
		if err := st.Insert(ctx, t.Portal, t.Rows); err != nil {
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		formatter.VerboseLog("Loaded %d row(s) into %s", len(t.Rows), t.Portal.TableName())
		result.Loaded[t.Portal.BusClassName()] += len(t.Rows)
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	total := 0
	for _, t := range tables {
		total += len(t.Rows)
	}
	formatter.Mark(true, "Imported %d row(s) into %d portal(s)", total, len(result.Loaded))
	return nil
}

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Where       string // YAML predicate, or @file
	AllVersions bool
	SQL         bool // print the statement instead of running it
}

// QueryResult is the JSON payload of the query command.
type QueryResult struct {
	Portal string              `json:"portal"`
	SQL    string              `json:"sql,omitempty"`
	Args   []string            `json:"args,omitempty"`
	Rows   []map[string]string `json:"rows,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "query <schema-dir> <portal>",
		Short: "Find rows of a portal",
		Long: `Find the rows of a portal matching a YAML where clause, printed as a flat
file section. Without --all-versions only current versions of as-of
attributes the clause does not constrain are returned.

Examples:
  chronorm query ./schema Order --where '{eq: {status: open}}'
  chronorm query ./schema Order --where '{gt: {items.quantity: 5}}' --sql
  chronorm query ./schema Position --where @where.yaml --all-versions`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args, cmd)
		},
	}
	cmd.Flags().StringVarP(&opts.Where, "where", "w", "", "where clause as YAML, or @file")
	cmd.Flags().BoolVar(&opts.AllVersions, "all-versions", false, "return every version")
	cmd.Flags().BoolVar(&opts.SQL, "sql", false, "print the SQL instead of running it")
	return cmd
}

func runQuery(opts *QueryOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	schema, err := BuildSchema(args[0], opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	p, ok := schema.Portal(args[1])
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: unknown portal %q", ErrCodeUnknownPortal, args[1]))
	}

	where, err := readWhere(opts.Where)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to read where clause", ErrCodeQuery), err)
	}
	pred, err := queryir.Decode(where)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeQuery, err)
	}
	op, err := queryir.Bind(p, pred)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeQuery, err)
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	findOpts := store.FindOptions{AllVersions: opts.AllVersions, Portals: schema.Portals()}
	if opts.SQL {
		stmt, err := st.Compile(p, op, findOpts)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeQuery, err)
		}
		result := QueryResult{Portal: p.BusClassName(), SQL: stmt.SQL}
		for _, a := range stmt.Args {
			result.Args = append(result.Args, fmt.Sprint(a))
		}
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		fmt.Fprintln(formatter.Writer, stmt.SQL)
		if len(result.Args) > 0 {
			fmt.Fprintf(formatter.Writer, "-- args: %v\n", result.Args)
		}
		return nil
	}

	owners, err := st.Find(ctx, p, op, findOpts)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeQuery, err)
	}
	formatter.VerboseLog("Found %d row(s)", len(owners))

	if formatter.Format == "json" {
		return formatter.Success(QueryResult{Portal: p.BusClassName(), Rows: rowMaps(p, owners)})
	}
	if err := flatfile.Write(formatter.Writer, p, owners); err != nil {
		return WrapExitError(ExitCommandError, ErrCodeWriteFailed, err)
	}
	return nil
}

// readWhere returns the where clause text; a leading @ names a file.
func readWhere(where string) ([]byte, error) {
	if path, ok := strings.CutPrefix(where, "@"); ok {
		return os.ReadFile(path)
	}
	return []byte(where), nil
}

// rowMaps renders owners as attribute name to string value, omitting nulls.
func rowMaps(p *attribute.Portal, owners []any) []map[string]string {
	rows := make([]map[string]string, 0, len(owners))
	for _, o := range owners {
		row := make(map[string]string)
		for _, a := range p.Attributes() {
			if a.IsAttributeNull(o) {
				continue
			}
			row[a.AttributeName()] = a.ValueOfAsString(o)
		}
		rows = append(rows, row)
	}
	return rows
}
