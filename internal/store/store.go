package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/roach88/chronorm/internal/dialect"
	"github.com/roach88/chronorm/internal/querysql"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added index on chronorm_snapshots.portal
const currentSchemaVersion = 1

// Options configures a Store.
type Options struct {
	// Dialect defaults to SQLite.
	Dialect dialect.DatabaseType

	// Logger defaults to a handler that discards everything.
	Logger *slog.Logger

	// TempTableName names temp tables for large tuple sets.
	TempTableName func() string

	// SnapshotID assigns ids to exported snapshots.
	SnapshotID func() uuid.UUID
}

// DefaultOptions returns an embedded SQLite configuration.
func DefaultOptions() Options {
	return Options{
		Dialect:       dialect.SQLite{},
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		TempTableName: querysql.DefaultTempTableName,
		SnapshotID:    uuid.New,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Dialect == nil {
		o.Dialect = d.Dialect
	}
	if o.Logger == nil {
		o.Logger = d.Logger
	}
	if o.TempTableName == nil {
		o.TempTableName = d.TempTableName
	}
	if o.SnapshotID == nil {
		o.SnapshotID = d.SnapshotID
	}
	return o
}

// Store reads and writes portal rows through one connection pool.
type Store struct {
	db   *sql.DB
	dt   dialect.DatabaseType
	log  *slog.Logger
	opts Options
}

// Open connects to dsn and prepares the bookkeeping tables.
// For SQLite, dsn is a file path and the file is created if missing.
//
// This function is idempotent - safe to call multiple times.
func Open(ctx context.Context, dsn string, opts Options) (*Store, error) {
	opts = opts.withDefaults()

	db, err := dialect.Open(ctx, opts.Dialect, dsn)
	if err != nil {
		return nil, err
	}

	s := &Store{db: db, dt: opts.Dialect, log: opts.Logger, opts: opts}

	if _, ok := opts.Dialect.(dialect.SQLite); ok {
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply pragmas: %w", err)
		}
	}

	if err := s.applySchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s.log.Debug("store opened", "dialect", opts.Dialect.Name())
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Dialect returns the store's database type.
func (s *Store) Dialect() dialect.DatabaseType {
	return s.dt
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates the bookkeeping tables if they don't exist and runs
// migrations. Statements run one at a time since not every driver accepts
// several per Exec.
func (s *Store) applySchema(ctx context.Context) error {
	for _, stmt := range schemaStatements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}

	if _, ok := s.dt.(dialect.SQLite); !ok {
		return nil
	}
	if err := s.runMigrations(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func schemaStatements() []string {
	var out []string
	var lines []string
	for _, line := range strings.Split(schemaSQL, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		lines = append(lines, line)
	}
	for _, stmt := range strings.Split(strings.Join(lines, "\n"), ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// runMigrations applies incremental schema migrations based on user_version.
func (s *Store) runMigrations(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, s.db); err != nil {
			return err
		}
		s.log.Info("store migrated", "from", version, "to", 1)
	}

	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 indexes snapshots by portal for the history listing.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_snapshots_portal
		ON chronorm_snapshots(portal)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
