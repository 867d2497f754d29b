package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/chronorm/internal/attribute"
)

// Mismatch is one column whose catalog definition disagrees with its
// attribute.
type Mismatch struct {
	Attribute string
	Column    string
	Problem   string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s (%s): %s", m.Attribute, m.Column, m.Problem)
}

// VerifyTable compares every column attribute of p against the database
// catalog. A missing column is a mismatch, not an error; errors are
// reserved for failed catalog queries.
func (s *Store) VerifyTable(ctx context.Context, p *attribute.Portal) ([]Mismatch, error) {
	var out []Mismatch
	for _, a := range p.Attributes() {
		col, err := a.ColumnName()
		if err != nil {
			return nil, err
		}
		m := Mismatch{Attribute: a.String(), Column: col}

		info, err := s.dt.DescribeColumn(ctx, s.db, p.TableName(), col)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			m.Problem = "column does not exist"
		case err != nil:
			return nil, fmt.Errorf("verify %s: %w", p.TableName(), err)
		default:
			if err := a.VerifyColumn(info); err != nil {
				m.Problem = err.Error()
			}
		}
		if m.Problem == "" {
			continue
		}
		s.log.Warn("column mismatch", "portal", p.BusClassName(), "column", col, "problem", m.Problem)
		out = append(out, m)
	}
	return out, nil
}
