package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
)

// Postgres driver names. pgx is the default; lib/pq is kept for deployments
// that still link it.
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

// Postgres targets PostgreSQL through either pgx's database/sql adapter or
// lib/pq.
type Postgres struct {
	base
	Driver string
}

func (Postgres) Name() string { return "postgres" }

func (p Postgres) DriverName() string {
	if p.Driver == "" {
		return DriverPgx
	}
	return p.Driver
}

func (Postgres) SQLTypeForByte() string   { return "smallint" }
func (Postgres) SQLTypeForShort() string  { return "int2" }
func (Postgres) SQLTypeForInt() string    { return "int" }
func (Postgres) SQLTypeForFloat() string  { return "float4" }
func (Postgres) SQLTypeForDouble() string { return "float8" }
func (Postgres) SQLTypeForBigDecimal(precision, scale int) string {
	return fmt.Sprintf("numeric(%d,%d)", precision, scale)
}
func (Postgres) SQLTypeForChar() string                  { return "varchar(1)" }
func (Postgres) SQLTypeForByteArray(maxLength int) string { return "bytea" }

func (Postgres) QuoteIdentifier(name string) string { return pq.QuoteIdentifier(name) }

// Rebind rewrites ? placeholders as $1, $2, ... skipping quoted literals and
// identifiers.
func (Postgres) Rebind(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func (p Postgres) CreateTempTable(name string, columns []TempColumn) string {
	return p.createTempTable("TEMPORARY TABLE", name, columns)
}

func (Postgres) DescribeColumn(ctx context.Context, db *sql.DB, table, column string) (ColumnInfo, error) {
	const q = `SELECT column_name, data_type, character_maximum_length,
       numeric_precision, numeric_scale, is_nullable
  FROM information_schema.columns
 WHERE table_schema = current_schema() AND lower(table_name) = lower($1) AND lower(column_name) = lower($2)`
	return scanInformationSchema(db.QueryRowContext(ctx, q, table, column), table, column, pgTypeName)
}

// pgTypeName normalizes information_schema.data_type spellings that Classify
// does not know under their catalog name.
func pgTypeName(dataType string) string {
	switch strings.ToLower(dataType) {
	case "real":
		return "float4"
	case "double precision":
		return "float8"
	default:
		return dataType
	}
}

// scanInformationSchema reads one information_schema.columns row shaped as
// (name, data_type, char length, precision, scale, is_nullable).
func scanInformationSchema(row *sql.Row, table, column string, normalize func(string) string) (ColumnInfo, error) {
	var (
		name      string
		dataType  string
		length    sql.NullInt64
		precision sql.NullInt64
		scale     sql.NullInt64
		nullable  string
	)
	if err := row.Scan(&name, &dataType, &length, &precision, &scale, &nullable); err != nil {
		return ColumnInfo{}, fmt.Errorf("column %s.%s: %w", table, column, err)
	}

	t, size, _, _ := Classify(normalize(dataType))
	info := ColumnInfo{
		Name:     name,
		Type:     t,
		TypeName: dataType,
		Size:     size,
		Nullable: strings.EqualFold(nullable, "YES"),
	}
	if length.Valid {
		info.Size = int(length.Int64)
	}
	if t == Numeric || t == Decimal {
		info.Precision = int(precision.Int64)
		info.Scale = int(scale.Int64)
		info.Size = info.Precision
	}
	return info, nil
}
