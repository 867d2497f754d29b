// Package store persists portal rows in a relational database.
//
// A store wraps one connection pool for a dialect. Portal tables are created
// from the portal's DDL; rows go in through Insert and come back through
// Find, which compiles an operation with querysql and reads every column
// with the attribute's scan target. Columnar snapshots move whole tables in
// and out of the database.
//
// # Bookkeeping
//
// Two tables live next to the portal tables:
//   - chronorm_portals: the schema fingerprint each portal table was created from
//   - chronorm_snapshots: every snapshot exported or imported, by id
//
// # SQLite
//
// Embedded SQLite databases are opened with:
//   - WAL mode for concurrent reads during writes
//   - synchronous=NORMAL
//   - a 5 second busy timeout
//   - foreign key enforcement
//
// The bookkeeping schema is versioned through PRAGMA user_version.
package store
