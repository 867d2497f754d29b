package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/roach88/chronorm/internal/attribute"
	"github.com/roach88/chronorm/internal/columnar"
	"github.com/roach88/chronorm/internal/operation"
)

const (
	directionExport = "export"
	directionImport = "import"
)

// SnapshotRecord is a logged snapshot transfer.
type SnapshotRecord struct {
	ID        uuid.UUID
	Portal    string
	Rows      int
	Direction string
}

// ExportSnapshot writes every row of p's table, all versions included, to w
// as a columnar snapshot and returns its id.
func (s *Store) ExportSnapshot(ctx context.Context, p *attribute.Portal, w io.Writer, opts columnar.SnapshotOptions) (uuid.UUID, error) {
	owners, err := s.Find(ctx, p, operation.All{On: p.BusClassName()}, FindOptions{AllVersions: true})
	if err != nil {
		return uuid.Nil, fmt.Errorf("export %s: %w", p.BusClassName(), err)
	}

	snap := &columnar.Snapshot{
		ID:     s.opts.SnapshotID(),
		Portal: p.BusClassName(),
		Rows:   len(owners),
	}
	for _, a := range p.Attributes() {
		var buf bytes.Buffer
		if err := a.EncodeColumnar(columnar.NewWriter(&buf), owners); err != nil {
			return uuid.Nil, fmt.Errorf("export %s: %w", a, err)
		}
		snap.Columns = append(snap.Columns, columnar.Column{Name: a.AttributeName(), Data: buf.Bytes()})
	}

	if err := columnar.WriteSnapshot(w, snap, opts); err != nil {
		return uuid.Nil, fmt.Errorf("export %s: %w", p.BusClassName(), err)
	}
	if err := s.recordSnapshot(ctx, snap, directionExport); err != nil {
		return uuid.Nil, err
	}
	s.log.Info("snapshot exported", "portal", p.BusClassName(), "id", snap.ID, "rows", snap.Rows,
		"compression", opts.Compression)
	return snap.ID, nil
}

// ImportSnapshot reads a snapshot of p from r and inserts its rows. Every
// column attribute of p must be present in the snapshot; extra columns are
// ignored.
func (s *Store) ImportSnapshot(ctx context.Context, p *attribute.Portal, r io.Reader) (int, error) {
	snap, err := columnar.ReadSnapshot(r)
	if err != nil {
		return 0, fmt.Errorf("import %s: %w", p.BusClassName(), err)
	}
	if snap.Portal != p.BusClassName() {
		return 0, fmt.Errorf("import %s: snapshot holds %s rows", p.BusClassName(), snap.Portal)
	}

	owners := make([]any, snap.Rows)
	for i := range owners {
		owners[i] = p.NewOwner()
	}
	for _, a := range p.Attributes() {
		col, ok := snap.Column(a.AttributeName())
		if !ok {
			return 0, fmt.Errorf("import %s: snapshot has no column %s", p.BusClassName(), a.AttributeName())
		}
		if err := a.DecodeColumnar(columnar.NewReader(bytes.NewReader(col.Data)), owners); err != nil {
			return 0, fmt.Errorf("import %s: %w", p.BusClassName(), err)
		}
	}

	if err := s.Insert(ctx, p, owners); err != nil {
		return 0, err
	}
	if err := s.recordSnapshot(ctx, snap, directionImport); err != nil {
		return 0, err
	}
	s.log.Info("snapshot imported", "portal", p.BusClassName(), "id", snap.ID, "rows", snap.Rows)
	return snap.Rows, nil
}

// Snapshots lists the transfers logged for portal, in id order.
func (s *Store) Snapshots(ctx context.Context, portal string) ([]SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dt.Rebind(`
		SELECT id, portal, row_count, direction FROM chronorm_snapshots
		WHERE portal = ?
		ORDER BY id, direction
	`), portal)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []SnapshotRecord
	for rows.Next() {
		var rec SnapshotRecord
		var id string
		if err := rows.Scan(&id, &rec.Portal, &rec.Rows, &rec.Direction); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		if rec.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("list snapshots: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// recordSnapshot logs a transfer. A snapshot exported and imported by the
// same store has one record per direction.
func (s *Store) recordSnapshot(ctx context.Context, snap *columnar.Snapshot, direction string) error {
	_, err := s.db.ExecContext(ctx,
		s.dt.Rebind("INSERT INTO chronorm_snapshots (id, portal, row_count, direction) VALUES (?, ?, ?, ?)"),
		snap.ID.String(), snap.Portal, snap.Rows, direction)
	if err != nil {
		return fmt.Errorf("record snapshot %s: %w", snap.ID, err)
	}
	return nil
}
