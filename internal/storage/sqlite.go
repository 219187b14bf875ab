package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// DB wraps a SQL connection holding the key/value table that backs the
// page collection.
type DB struct {
	conn    *sql.DB
	dialect dialect
	path    string // sqlite file path, empty for network drivers
}

// New opens (or creates) the SQLite file at dbPath.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	conn, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite only supports one writer; a single connection also serializes
	// the read-modify-write transactions.
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, dialect: sqliteDialect, path: dbPath}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// Open connects to a postgres or mysql server, or falls back to New for
// sqlite where dsn is the database file path.
func Open(driver, dsn string) (*DB, error) {
	switch driver {
	case DriverSQLite, "":
		return New(dsn)
	case DriverPostgres, DriverMySQL:
	default:
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	conn.SetMaxOpenConns(5)
	conn.SetMaxIdleConns(2)

	d := postgresDialect
	if driver == DriverMySQL {
		d = mysqlDialect
	}
	db := &DB{conn: conn, dialect: d}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

// NewWithConn wraps an already-open connection. The schema is expected to
// exist; used with sql mocks and externally managed pools.
func NewWithConn(conn *sql.DB, driver string) *DB {
	d := sqliteDialect
	switch driver {
	case DriverPostgres:
		d = postgresDialect
	case DriverMySQL:
		d = mysqlDialect
	}
	return &DB{conn: conn, dialect: d}
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Conn returns the underlying database connection.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Path returns the sqlite file path, or "" for network databases.
func (db *DB) Path() string {
	return db.path
}

// Ping verifies the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

func (db *DB) migrate() error {
	for _, m := range db.dialect.migrations {
		if _, err := db.conn.Exec(m); err != nil {
			// Re-running an index creation on mysql has no IF NOT EXISTS
			if strings.Contains(err.Error(), "Duplicate key name") {
				continue
			}
			return fmt.Errorf("migration failed: %s: %w", firstLine(m), err)
		}
	}
	return nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
