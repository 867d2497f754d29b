package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/chronorm/internal/columnar"
)

// SnapshotOptions holds flags for the snapshot commands.
type SnapshotOptions struct {
	*RootOptions
	Compression string
}

// SnapshotInfo describes one snapshot transfer.
type SnapshotInfo struct {
	ID        string `json:"id"`
	Portal    string `json:"portal"`
	Rows      int    `json:"rows"`
	Direction string `json:"direction,omitempty"`
	File      string `json:"file,omitempty"`
}

// NewSnapshotCommand creates the snapshot command and its subcommands.
func NewSnapshotCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SnapshotOptions{RootOptions: rootOpts}
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Move portal tables as columnar snapshots",
		Long: `Export a portal's table, every version included, to a compressed columnar
snapshot file, import one into another database, or list the transfers a
database has logged.`,
	}

	export := &cobra.Command{
		Use:   "export <schema-dir> <portal> <file>",
		Short: "Write a portal's rows to a snapshot file",
		Long: `Write every row of a portal's table to a snapshot file.

Example:
  chronorm snapshot export ./schema Position positions.snap --compression zstd`,
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotExport(opts, args, cmd)
		},
	}
	export.Flags().StringVar(&opts.Compression, "compression", string(columnar.DefaultSnapshotOptions().Compression),
		"body compression (none|lz4|snappy|zstd)")

	imp := &cobra.Command{
		Use:           "import <schema-dir> <portal> <file>",
		Short:         "Load a snapshot file into a portal's table",
		Args:          cobra.ExactArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotImport(opts, args, cmd)
		},
	}

	list := &cobra.Command{
		Use:           "list <portal>",
		Short:         "List the snapshot transfers logged for a portal",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSnapshotList(opts, args[0], cmd)
		},
	}

	cmd.AddCommand(export, imp, list)
	return cmd
}

func runSnapshotExport(opts *SnapshotOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	compression, err := columnar.ParseCompression(opts.Compression)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeSnapshot, err)
	}
	schema, err := BuildSchema(args[0], opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	p, ok := schema.Portal(args[1])
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: unknown portal %q", ErrCodeUnknownPortal, args[1]))
	}

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	f, err := os.Create(args[2])
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to create snapshot file", ErrCodeWriteFailed), err)
	}
	id, err := st.ExportSnapshot(ctx, p, f, columnar.SnapshotOptions{Compression: compression})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeSnapshot, err)
	}

	records, err := st.Snapshots(ctx, p.BusClassName())
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
	}
	info := SnapshotInfo{ID: id.String(), Portal: p.BusClassName(), File: args[2]}
	for _, r := range records {
		if r.ID == id {
			info.Rows = r.Rows
		}
	}

	if formatter.Format == "json" {
		return formatter.Success(info)
	}
	formatter.Mark(true, "Exported %d row(s) of %s to %s\n  snapshot %s (%s)",
		info.Rows, info.Portal, info.File, info.ID, compression)
	return nil
}

func runSnapshotImport(opts *SnapshotOptions, args []string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	schema, err := BuildSchema(args[0], opts.logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	p, ok := schema.Portal(args[1])
	if !ok {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: unknown portal %q", ErrCodeUnknownPortal, args[1]))
	}

	f, err := os.Open(args[2])
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open snapshot file", ErrCodeNotFound), err)
	}
	defer f.Close()

	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	n, err := st.ImportSnapshot(ctx, p, f)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeSnapshot, err)
	}

	info := SnapshotInfo{Portal: p.BusClassName(), Rows: n, File: args[2]}
	if formatter.Format == "json" {
		return formatter.Success(info)
	}
	formatter.Mark(true, "Imported %d row(s) into %s", n, p.TableName())
	return nil
}

func runSnapshotList(opts *SnapshotOptions, portal string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := cmd.Context()
	st, err := opts.openStore(ctx, cmd)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.Snapshots(ctx, portal)
	if err != nil {
		return WrapExitError(ExitCommandError, ErrCodeDatabase, err)
	}
	infos := make([]SnapshotInfo, len(records))
	for i, r := range records {
		infos[i] = SnapshotInfo{ID: r.ID.String(), Portal: r.Portal, Rows: r.Rows, Direction: r.Direction}
	}

	if formatter.Format == "json" {
		return formatter.Success(infos)
	}
	if len(infos) == 0 {
		fmt.Fprintf(formatter.Writer, "No snapshots for %s\n", portal)
		return nil
	}
	for _, info := range infos {
		fmt.Fprintf(formatter.Writer, "%s  %-6s  %d row(s)\n", info.ID, info.Direction, info.Rows)
	}
	return nil
}
