package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// DBType supported database backends
type DBType string

const (
	DBTypeSQLite   DBType = "sqlite"
	DBTypePostgres DBType = "postgres"
)

// DBConfig database connection configuration
type DBConfig struct {
	Type DBType

	// SQLite
	Path string

	// PostgreSQL
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// DBDriver wraps *sql.DB and rewrites `?` placeholders to `$n` for postgres,
// so sub-stores can be written once against the sqlite syntax.
type DBDriver struct {
	Type DBType
	db   *sql.DB
}

// NewDBDriver opens a database connection for the given config.
func NewDBDriver(cfg DBConfig) (*DBDriver, error) {
	switch cfg.Type {
	case DBTypeSQLite, "":
		path := cfg.Path
		if path == "" {
			path = "data/data.db"
		}
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		db, err := sql.Open("sqlite", path)
		if err != nil {
			return nil, err
		}
		// Single writer; avoids SQLITE_BUSY under concurrent handlers
		db.SetMaxOpenConns(1)
		if _, err := db.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set sqlite pragmas: %w", err)
		}
		return &DBDriver{Type: DBTypeSQLite, db: db}, nil

	case DBTypePostgres:
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, sslMode)
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		return &DBDriver{Type: DBTypePostgres, db: db}, nil

	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// NewDBDriverFromEnv builds a driver from environment variables.
// DB_TYPE: sqlite (default) or postgres.
// SQLite: DB_PATH. PostgreSQL: DB_HOST, DB_PORT, DB_USER, DB_PASSWORD, DB_NAME, DB_SSLMODE.
func NewDBDriverFromEnv() (*DBDriver, error) {
	dbType := DBType(strings.ToLower(os.Getenv("DB_TYPE")))
	if dbType == "" {
		dbType = DBTypeSQLite
	}
	cfg := DBConfig{
		Type:     dbType,
		Path:     os.Getenv("DB_PATH"),
		Host:     os.Getenv("DB_HOST"),
		Port:     os.Getenv("DB_PORT"),
		User:     os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Name:     os.Getenv("DB_NAME"),
		SSLMode:  os.Getenv("DB_SSLMODE"),
	}
	if cfg.Type == DBTypePostgres {
		if cfg.Host == "" {
			cfg.Host = "localhost"
		}
		if cfg.Port == "" {
			cfg.Port = "5432"
		}
	}
	return NewDBDriver(cfg)
}

// rebind rewrites `?` placeholders to `$1..$n` for postgres.
func (d *DBDriver) rebind(query string) string {
	if d.Type != DBTypePostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Exec runs a statement with placeholder rebinding.
func (d *DBDriver) Exec(query string, args ...interface{}) (sql.Result, error) {
	return d.db.Exec(d.rebind(query), args...)
}

// Query runs a query with placeholder rebinding.
func (d *DBDriver) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return d.db.Query(d.rebind(query), args...)
}

// QueryRow runs a single-row query with placeholder rebinding.
func (d *DBDriver) QueryRow(query string, args ...interface{}) *sql.Row {
	return d.db.QueryRow(d.rebind(query), args...)
}

// Begin starts a transaction.
func (d *DBDriver) Begin() (*sql.Tx, error) {
	return d.db.Begin()
}

// DB returns the underlying connection.
func (d *DBDriver) DB() *sql.DB {
	return d.db
}

// Close closes the connection.
func (d *DBDriver) Close() error {
	return d.db.Close()
}
