package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/compiler"
)

// TableOptions holds flags shared by the table commands.
type TableOptions struct {
	*RootOptions
	Portals []string // restrict to these portals; all when empty
}

// TableDDL is one portal's create statement.
type TableDDL struct {
	Portal string `json:"portal"`
	Table  string `json:"table"`
	DDL    string `json:"ddl"`
}

// TableCheck is the verify outcome for one portal.
type TableCheck struct {
	Portal     string   `json:"portal"`
	Table      string   `json:"table"`
	Mismatches []string `json:"mismatches,omitempty"`

	// FingerprintChanged is true when the schema no longer matches the one
	// the table was created from.
	FingerprintChanged bool `json:"fingerprint_changed,omitempty"`
	Unrecorded         bool `json:"unrecorded,omitempty"`
}

func addPortalFlag(cmd *cobra.Command, opts *TableOptions) {
	cmd.Flags().StringSliceVarP(&opts.Portals, "portal", "p", nil, "restrict to these portals (repeatable)")
}

// NewDDLCommand creates the ddl command.
func NewDDLCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TableOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "ddl <schema-dir>",
		Short: "Print create table statements",
		Long: `Print the create table statement of every portal for the selected dialect.

Example:
  chronorm ddl ./schema --dialect postgres
  chronorm ddl ./schema --portal Order`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDDL(opts, args[0], cmd)
		},
	}
	addPortalFlag(cmd, opts)
	return cmd
}

func runDDL(opts *TableOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	dt, err := opts.dialect()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid dialect", err)
	}
	schema, err := BuildSchema(schemaDir, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	portals, err := selectPortals(schema, opts.Portals)
	if err != nil {
		return err
	}

	out := make([]TableDDL, 0, len(portals))
	for _, p := range portals {
		ddl, err := p.CreateTableStatement(dt)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("%s: ddl for %s", ErrCodeGeneric, p.BusClassName()), err)
		}
		out = append(out, TableDDL{Portal: p.BusClassName(), Table: p.TableName(), DDL: ddl})
	}

	if formatter.Format == "json" {
		return formatter.Success(out)
	}
	for i, d := range out {
		if i > 0 {
			fmt.Fprintln(formatter.Writer)
		}
		fmt.Fprintf(formatter.Writer, "-- %s\n%s;\n", d.Portal, d.DDL)
	}
	return nil
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TableOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "create <schema-dir>",
		Short: "Create portal tables in the database",
		Long: `Create the table of every portal and record the schema fingerprint it was
created from, so verify can report later schema changes.

Example:
  chronorm create ./schema --db ./orders.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(opts, args[0], cmd)
		},
	}
	addPortalFlag(cmd, opts)
	return cmd
}

func runCreate(opts *TableOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	schema, err := BuildSchema(schemaDir, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	portals, err := selectPortals(schema, opts.Portals)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var created []string
	for _, p := range portals {
		if err := st.CreateTable(ctx, p); err != nil {
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		fp, err := schema.Fingerprint(p.BusClassName())
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
		}
		if err := st.RecordPortal(ctx, p, fp); err != nil {
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		formatter.VerboseLog("Created %s for %s", p.TableName(), p.BusClassName())
		created = append(created, p.TableName())
	}

	if formatter.Format == "json" {
		return formatter.Success(map[string]any{"created": created})
	}
	formatter.Mark(true, "Created %d table(s)", len(created))
	return nil
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TableOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "verify <schema-dir>",
		Short: "Check tables against their portals",
		Long: `Compare every portal's columns with the database catalog, and its schema
fingerprint with the one recorded when the table was created.

Exit codes:
  0 - All tables match
  1 - One or more tables disagree with their portal
  2 - Command error (invalid paths, database unreachable, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}
	addPortalFlag(cmd, opts)
	return cmd
}

func runVerify(opts *TableOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	schema, err := BuildSchema(schemaDir, opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	portals, err := selectPortals(schema, opts.Portals)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	var checks []TableCheck
	failed := 0
	for _, p := range portals {
		check := TableCheck{Portal: p.BusClassName(), Table: p.TableName()}

		mismatches, err := st.VerifyTable(ctx, p)
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		for _, m := range mismatches {
			check.Mismatches = append(check.Mismatches, m.String())
		}

		want, err := schema.Fingerprint(p.BusClassName())
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeGeneric, err)
		}
		got, ok, err := st.PortalFingerprint(ctx, p.BusClassName())
		if err != nil {
			return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
		}
		check.Unrecorded = !ok
		check.FingerprintChanged = ok && got != want

		if len(check.Mismatches) > 0 || check.FingerprintChanged {
			failed++
		}
		checks = append(checks, check)
	}

	if formatter.Format == "json" {
		if failed > 0 {
			_ = formatter.Error(ErrCodeVerifyFailed, fmt.Sprintf("%d table(s) disagree with their portal", failed), checks)
			return NewExitError(ExitFailure, fmt.Sprintf("%d table(s) failed verification", failed))
		}
		return formatter.Success(checks)
	}

	for _, c := range checks {
		formatter.Mark(len(c.Mismatches) == 0 && !c.FingerprintChanged, "%s (%s)", c.Portal, c.Table)
		for _, m := range c.Mismatches {
			fmt.Fprintf(formatter.Writer, "  %s\n", m)
		}
		if c.FingerprintChanged {
			fmt.Fprintln(formatter.Writer, "  schema changed since the table was created")
		}
		if c.Unrecorded {
			fmt.Fprintln(formatter.Writer, "  no schema fingerprint recorded")
		}
	}
	if failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d table(s) failed verification", failed))
	}
	return nil
}

// selectPortals returns the named portals in schema order, or every portal
// when names is empty.
func selectPortals(schema *compiler.Schema, names []string) ([]*attribute.Portal, error) {
	if len(names) == 0 {
		return schema.Portals(), nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := schema.Portal(n); !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: unknown portal %q", ErrCodeUnknownPortal, n))
		}
		want[n] = true
	}
	var out []*attribute.Portal
	for _, p := range schema.Portals() {
		if want[p.BusClassName()] {
			out = append(out, p)
		}
	}
	return out, nil
}
