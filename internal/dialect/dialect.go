// Package dialect abstracts the differences between the databases chronorm
// generates SQL for: column type names, type codes reported by catalog
// queries, placeholder syntax, temp tables, and driver registration.
package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// SQLType is a column type code. Values match the JDBC java.sql.Types
// constants so catalog metadata from any driver maps onto one vocabulary.
type SQLType int

const (
	Bit           SQLType = -7
	TinyInt       SQLType = -6
	SmallInt      SQLType = 5
	Integer       SQLType = 4
	BigInt        SQLType = -5
	Float         SQLType = 6
	Real          SQLType = 7
	Double        SQLType = 8
	Numeric       SQLType = 2
	Decimal       SQLType = 3
	Char          SQLType = 1
	VarChar       SQLType = 12
	LongVarChar   SQLType = -1
	NChar         SQLType = -15
	NVarChar      SQLType = -9
	LongNVarChar  SQLType = -16
	Date          SQLType = 91
	Time          SQLType = 92
	Timestamp     SQLType = 93
	Binary        SQLType = -2
	VarBinary     SQLType = -3
	LongVarBinary SQLType = -4
	Boolean       SQLType = 16
	Blob          SQLType = 2004
	Clob          SQLType = 2005
	Other         SQLType = 1111
)

var sqlTypeNames = map[SQLType]string{
	Bit: "BIT", TinyInt: "TINYINT", SmallInt: "SMALLINT", Integer: "INTEGER",
	BigInt: "BIGINT", Float: "FLOAT", Real: "REAL", Double: "DOUBLE",
	Numeric: "NUMERIC", Decimal: "DECIMAL", Char: "CHAR", VarChar: "VARCHAR",
	LongVarChar: "LONGVARCHAR", NChar: "NCHAR", NVarChar: "NVARCHAR",
	LongNVarChar: "LONGNVARCHAR", Date: "DATE", Time: "TIME", Timestamp: "TIMESTAMP",
	Binary: "BINARY", VarBinary: "VARBINARY", LongVarBinary: "LONGVARBINARY",
	Boolean: "BOOLEAN", Blob: "BLOB", Clob: "CLOB", Other: "OTHER",
}

func (t SQLType) String() string {
	if n, ok := sqlTypeNames[t]; ok {
		return n
	}
	return fmt.Sprintf("SQLType(%d)", int(t))
}

// ColumnInfo describes a physical column as reported by the database catalog.
type ColumnInfo struct {
	Name      string
	Type      SQLType
	TypeName  string
	Size      int
	Precision int
	Scale     int
	Nullable  bool
}

// TempColumn is a column of a temp table.
type TempColumn struct {
	Name string
	Type string
}

// DatabaseType supplies dialect-specific SQL.
type DatabaseType interface {
	Name() string
	DriverName() string

	SQLTypeForBoolean() string
	SQLTypeForByte() string
	SQLTypeForShort() string
	SQLTypeForInt() string
	SQLTypeForLong() string
	SQLTypeForFloat() string
	SQLTypeForDouble() string
	SQLTypeForBigDecimal(precision, scale int) string
	SQLTypeForChar() string
	SQLTypeForString(maxLength int) string
	SQLTypeForByteArray(maxLength int) string
	SQLTypeForDate() string
	SQLTypeForTime() string
	SQLTypeForTimestamp() string

	// BindValue adapts a driver value before it is bound, e.g. rendering
	// timestamps in a sortable text form for databases without a native type.
	BindValue(v any) any

	// Rebind rewrites ? placeholders into the dialect's placeholder syntax.
	Rebind(query string) string

	QuoteIdentifier(name string) string

	// MaxInClauseRows is the largest tuple set compiled inline; larger sets
	// go through a temp table.
	MaxInClauseRows() int
	CreateTempTable(name string, columns []TempColumn) string
	DropTempTable(name string) string

	DescribeColumn(ctx context.Context, db *sql.DB, table, column string) (ColumnInfo, error)
}

// ForName returns the dialect registered under name.
func ForName(name string) (DatabaseType, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "postgres", "postgresql", "pgx":
		return Postgres{Driver: DriverPgx}, nil
	case "postgres-pq", "pq":
		return Postgres{Driver: DriverPq}, nil
	case "mysql", "mariadb":
		return MySQL{}, nil
	default:
		return nil, fmt.Errorf("unknown dialect %q (want one of %s)", name, strings.Join(Names(), ", "))
	}
}

// Names lists the accepted dialect names.
func Names() []string {
	names := []string{"sqlite", "postgres", "postgres-pq", "mysql"}
	sort.Strings(names)
	return names
}

// timestampText is a fixed-width, lexically sortable UTC rendering.
const timestampText = "2006-01-02 15:04:05.000000000"

// base holds the ANSI defaults shared by the dialects.
type base struct{}

func (base) SQLTypeForBoolean() string { return "boolean" }
func (base) SQLTypeForByte() string    { return "tinyint" }
func (base) SQLTypeForShort() string   { return "smallint" }
func (base) SQLTypeForInt() string     { return "integer" }
func (base) SQLTypeForLong() string    { return "bigint" }
func (base) SQLTypeForFloat() string   { return "real" }
func (base) SQLTypeForDouble() string  { return "double" }
func (base) SQLTypeForBigDecimal(precision, scale int) string {
	return fmt.Sprintf("decimal(%d,%d)", precision, scale)
}
func (base) SQLTypeForChar() string { return "char(1)" }
func (base) SQLTypeForString(maxLength int) string {
	return fmt.Sprintf("varchar(%d)", maxLength)
}
func (base) SQLTypeForByteArray(maxLength int) string {
	return fmt.Sprintf("varbinary(%d)", maxLength)
}
func (base) SQLTypeForDate() string      { return "date" }
func (base) SQLTypeForTime() string      { return "time" }
func (base) SQLTypeForTimestamp() string { return "timestamp" }

func (base) BindValue(v any) any       { return v }
func (base) Rebind(query string) string { return query }
func (base) QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
func (base) MaxInClauseRows() int { return 500 }

func (b base) createTempTable(keyword, name string, columns []TempColumn) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		parts[i] = c.Name + " " + c.Type
	}
	return fmt.Sprintf("CREATE %s %s (%s)", keyword, name, strings.Join(parts, ", "))
}

func (base) DropTempTable(name string) string {
	return "DROP TABLE IF EXISTS " + name
}

// bindTimeAsText renders timestamps as sortable text, leaving other values alone.
func bindTimeAsText(v any) any {
	if t, ok := v.(time.Time); ok {
		return t.UTC().Format(timestampText)
	}
	return v
}
