package dialect

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// MySQL targets MySQL and MariaDB through go-sql-driver/mysql.
type MySQL struct {
	base
}

func (MySQL) Name() string       { return "mysql" }
func (MySQL) DriverName() string { return "mysql" }

func (MySQL) SQLTypeForInt() string    { return "int" }
func (MySQL) SQLTypeForFloat() string  { return "float" }
func (MySQL) SQLTypeForDouble() string { return "double" }
func (MySQL) SQLTypeForChar() string   { return "char" }
func (MySQL) SQLTypeForByteArray(maxLength int) string {
	return "blob"
}
func (MySQL) SQLTypeForTime() string      { return "TIME(3)" }
func (MySQL) SQLTypeForTimestamp() string { return "DATETIME(3)" }

func (MySQL) QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m MySQL) CreateTempTable(name string, columns []TempColumn) string {
	return m.createTempTable("TEMPORARY TABLE", name, columns)
}

func (MySQL) DropTempTable(name string) string {
	return "DROP TEMPORARY TABLE IF EXISTS " + name
}

func (MySQL) DescribeColumn(ctx context.Context, db *sql.DB, table, column string) (ColumnInfo, error) {
	const q = `SELECT column_name, data_type, character_maximum_length,
       numeric_precision, numeric_scale, is_nullable
  FROM information_schema.columns
 WHERE table_schema = DATABASE() AND table_name = ? AND column_name = ?`
	info, err := scanInformationSchema(db.QueryRowContext(ctx, q, table, column), table, column, func(s string) string { return s })
	if err != nil {
		return ColumnInfo{}, err
	}
	// MySQL reports float and double under their own names; FLOAT is single
	// precision there.
	switch strings.ToLower(info.TypeName) {
	case "float":
		info.Type, info.Size = Real, 4
	case "double":
		info.Type, info.Size = Double, 8
	}
	return info, nil
}

// mysqlDSN forces parseTime so DATE and DATETIME columns scan into time.Time.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}
