package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/operation"
	"github.com/roach88/chronorm/internal/querysql"
)

// FindOptions configures Find.
type FindOptions struct {
	// AllVersions returns every milestoned version instead of the current one
	// for as-of attributes op does not constrain.
	AllVersions bool

	// Portals resolves relationship targets the root cannot reach.
	Portals []*attribute.Portal
}

// Find returns the rows of p's table matching op, one new owner per row, in
// primary key order.
func (s *Store) Find(ctx context.Context, p *attribute.Portal, op operation.Operation, opts FindOptions) ([]any, error) {
	st, err := s.Compile(p, op, opts)
	if err != nil {
		return nil, err
	}

	// Temp tables only exist on the connection that created them.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", p.BusClassName(), err)
	}
	defer conn.Close()

	for _, tt := range st.TempTables {
		if err := s.fillTempTable(ctx, conn, tt); err != nil {
			return nil, err
		}
		defer s.dropTempTable(conn, tt)
	}

	rows, err := conn.QueryContext(ctx, st.SQL, st.Args...)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", p.BusClassName(), err)
	}
	defer rows.Close()

	owners, err := scanOwners(rows, p)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", p.BusClassName(), err)
	}
	return owners, nil
}

// Compile returns the statement Find runs for op.
func (s *Store) Compile(p *attribute.Portal, op operation.Operation, opts FindOptions) (*querysql.Statement, error) {
	st, err := querysql.Compile(p, op, querysql.Options{
		Dialect:       s.dt,
		Portals:       opts.Portals,
		TempTableName: s.opts.TempTableName,
		AllVersions:   opts.AllVersions,
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", p.BusClassName(), err)
	}
	return st, nil
}

func (s *Store) fillTempTable(ctx context.Context, conn *sql.Conn, tt querysql.TempTable) error {
	if _, err := conn.ExecContext(ctx, tt.Create); err != nil {
		return fmt.Errorf("create temp table %s: %w", tt.Name, err)
	}
	stmt, err := conn.PrepareContext(ctx, tt.Insert)
	if err != nil {
		return fmt.Errorf("fill temp table %s: %w", tt.Name, err)
	}
	defer stmt.Close()
	for _, r := range tt.Rows {
		if _, err := stmt.ExecContext(ctx, r...); err != nil {
			return fmt.Errorf("fill temp table %s: %w", tt.Name, err)
		}
	}
	s.log.Debug("temp table filled", "table", tt.Name, "rows", len(tt.Rows))
	return nil
}

// dropTempTable runs after the query context may be done, so it uses its own.
func (s *Store) dropTempTable(conn *sql.Conn, tt querysql.TempTable) {
	if _, err := conn.ExecContext(context.Background(), tt.Drop); err != nil {
		s.log.Warn("drop temp table failed", "table", tt.Name, "error", err)
		return
	}
	s.log.Debug("temp table dropped", "table", tt.Name)
}

// scanOwners reads every row into a new owner of p. Columns arrive in
// portal attribute order.
func scanOwners(rows *sql.Rows, p *attribute.Portal) ([]any, error) {
	attrs := p.Attributes()
	targets := make([]sql.Scanner, len(attrs))
	dest := make([]any, len(attrs))
	for i, a := range attrs {
		targets[i] = a.NewScanTarget()
		dest[i] = targets[i]
	}

	var owners []any
	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		o := p.NewOwner()
		for i, a := range attrs {
			if err := a.ReadResultSet(targets[i], o); err != nil {
				return nil, err
			}
		}
		owners = append(owners, o)
	}
	return owners, rows.Err()
}
