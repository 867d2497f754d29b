package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite targets mattn/go-sqlite3.
//
// SQLite has no native temporal types, so timestamps are bound as fixed-width
// UTC text which sorts and compares correctly. Declared column types are kept
// verbatim in the catalog, which is what DescribeColumn classifies.
type SQLite struct {
	base
}

func (SQLite) Name() string       { return "sqlite" }
func (SQLite) DriverName() string { return "sqlite3" }

func (SQLite) SQLTypeForByteArray(maxLength int) string { return "blob" }

func (SQLite) BindValue(v any) any { return bindTimeAsText(v) }

// MaxInClauseRows stays under SQLite's default host parameter limit for
// two-column tuples.
func (SQLite) MaxInClauseRows() int { return 100 }

func (s SQLite) CreateTempTable(name string, columns []TempColumn) string {
	return s.createTempTable("TEMP TABLE", name, columns)
}

func (SQLite) DescribeColumn(ctx context.Context, db *sql.DB, table, column string) (ColumnInfo, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return ColumnInfo{}, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			cid      int
			name     string
			declared string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &name, &declared, &notNull, &dflt, &pk); err != nil {
			return ColumnInfo{}, fmt.Errorf("scan table_info(%s): %w", table, err)
		}
		if !strings.EqualFold(name, column) {
			continue
		}
		t, size, precision, scale := Classify(declared)
		return ColumnInfo{
			Name:      name,
			Type:      t,
			TypeName:  declared,
			Size:      size,
			Precision: precision,
			Scale:     scale,
			Nullable:  notNull == 0,
		}, nil
	}
	if err := rows.Err(); err != nil {
		return ColumnInfo{}, fmt.Errorf("iterate table_info(%s): %w", table, err)
	}
	return ColumnInfo{}, fmt.Errorf("column %s.%s: %w", table, column, sql.ErrNoRows)
}
