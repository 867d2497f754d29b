package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/chronorm/internal/attribute"
)

// CreateTable creates p's table from its DDL.
func (s *Store) CreateTable(ctx context.Context, p *attribute.Portal) error {
	ddl, err := p.CreateTableStatement(s.dt)
	if err != nil {
		return fmt.Errorf("create table %s: %w", p.TableName(), err)
	}
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create table %s: %w", p.TableName(), err)
	}
	s.log.Info("table created", "portal", p.BusClassName(), "table", p.TableName())
	return nil
}

// Insert writes owners into p's table in one transaction. Every column
// attribute binds its value, or its typed null when the owner has none.
func (s *Store) Insert(ctx context.Context, p *attribute.Portal, owners []any) (err error) {
	if len(owners) == 0 {
		return nil
	}
	attrs := p.Attributes()
	cols := p.Columns()
	query := s.dt.Rebind(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		p.TableName(), strings.Join(cols, ", "), placeholders(len(cols))))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", p.TableName(), err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", p.TableName(), err)
	}
	defer stmt.Close()

	args := make([]any, len(attrs))
	for i, o := range owners {
		for j, a := range attrs {
			v, err := a.SQLParameterOf(o)
			if err != nil {
				return fmt.Errorf("insert into %s: row %d: %w", p.TableName(), i, err)
			}
			args[j] = s.dt.BindValue(v)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("insert into %s: row %d: %w", p.TableName(), i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("insert into %s: %w", p.TableName(), err)
	}
	s.log.Debug("rows inserted", "portal", p.BusClassName(), "rows", len(owners))
	return nil
}

// RecordPortal stores the schema fingerprint p's table was created from.
func (s *Store) RecordPortal(ctx context.Context, p *attribute.Portal, fingerprint string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record portal: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, s.dt.Rebind("DELETE FROM chronorm_portals WHERE portal = ?"),
		p.BusClassName()); err != nil {
		return fmt.Errorf("record portal: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		s.dt.Rebind("INSERT INTO chronorm_portals (portal, table_name, fingerprint) VALUES (?, ?, ?)"),
		p.BusClassName(), p.TableName(), fingerprint); err != nil {
		return fmt.Errorf("record portal: %w", err)
	}
	return tx.Commit()
}

// PortalFingerprint returns the fingerprint recorded for portal. ok is false
// when none was recorded.
func (s *Store) PortalFingerprint(ctx context.Context, portal string) (fingerprint string, ok bool, err error) {
	err = s.db.QueryRowContext(ctx,
		s.dt.Rebind("SELECT fingerprint FROM chronorm_portals WHERE portal = ?"), portal).Scan(&fingerprint)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("read fingerprint of %s: %w", portal, err)
	}
	return fingerprint, true, nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
