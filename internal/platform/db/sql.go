package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

// Supported values of DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite3"
)

// OpenSQL opens a database/sql handle for the MySQL or SQLite backends.
func OpenSQL(ctx context.Context, driver, dsn string, maxConns, minConns int) (*sql.DB, error) {
	var err error
	switch driver {
	case DriverMySQL:
		dsn, err = mysqlDSN(dsn)
		if err != nil {
			return nil, err
		}
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	conn, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	conn.SetMaxOpenConns(maxConns)
	conn.SetMaxIdleConns(minConns)
	conn.SetConnMaxLifetime(30 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return conn, nil
}

// mysqlDSN validates a go-sql-driver DSN and turns on DATE parsing.
func mysqlDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse database url: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// sqliteDSN opens file databases read-only unless a mode is already given.
func sqliteDSN(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "sqlite3://")
	if dsn == ":memory:" || strings.Contains(dsn, "mode=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	return dsn + sep + "mode=ro"
}
