package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Database string // DSN; a file path for SQLite
	Dialect  string // see dialect.Names
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the chronorm CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "chronorm",
		Short: "chronorm - bitemporal portals over SQL tables",
		Long: `Compile CUE portal schemas, create and verify their tables, load flat-file
fixtures, query rows with YAML where clauses, and move tables between
databases as columnar snapshots.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			if _, err := dialect.ForName(opts.Dialect); err != nil {
				return err
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "chronorm.db", "database DSN (a file path for sqlite)")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "sqlite", "database dialect (sqlite|postgres|postgres-pq|mysql)")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewDDLCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewVerifyCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewSnapshotCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}

// formatter builds the output formatter for cmd.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   o.Verbose,
	}
}

// logger writes to w at info level, or debug with --verbose, as JSON when
// the output format is JSON.
func (o *RootOptions) logger(w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	hopts := &slog.HandlerOptions{Level: level}
	if o.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// dialect resolves --dialect; empty means sqlite.
func (o *RootOptions) dialect() (dialect.DatabaseType, error) {
	if o.Dialect == "" {
		return dialect.SQLite{}, nil
	}
	return dialect.ForName(o.Dialect)
}

// openStore connects to --db with --dialect, logging to cmd's error stream.
func (o *RootOptions) openStore(ctx context.Context, cmd *cobra.Command) (*store.Store, error) {
	dt, err := o.dialect()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(ctx, o.Database, store.Options{
		Dialect: dt,
		Logger:  o.logger(cmd.ErrOrStderr()),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: failed to open database", ErrCodeDatabase), err)
	}
	return st, nil
}
