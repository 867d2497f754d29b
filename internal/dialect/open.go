package dialect

import (
	"context"
	"database/sql"
	"fmt"
)

// Open opens and pings a connection pool for dt.
//
// SQLite pools are limited to a single connection so temp tables and
// pragmas stay on the connection that created them.
func Open(ctx context.Context, dt DatabaseType, dsn string) (*sql.DB, error) {
	if _, ok := dt.(MySQL); ok {
		var err error
		if dsn, err = mysqlDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(dt.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dt.Name(), err)
	}
	if _, ok := dt.(SQLite); ok {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", dt.Name(), err)
	}
	return db, nil
}
