// Package store provides the unified database storage layer.
// All database operations go through this package.
package store

import (
	"database/sql"
	"fmt"
	"polyterm/logger"
	"sync"
	"time"
)

// timeFormat is how timestamps are written to and parsed from TEXT columns.
// timeFormatPrecise adds fixed-width fractional seconds so same-second rows
// still order correctly under TEXT comparison; used where insertion order
// matters (transaction pairing).
const (
	timeFormat        = "2006-01-02 15:04:05"
	timeFormatPrecise = "2006-01-02 15:04:05.000000000"
)

func nowString() string {
	return time.Now().UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeFormatPrecise, s); err == nil {
		return t
	}
	t, _ := time.Parse(timeFormat, s)
	return t
}

// Store unified data storage facade
type Store struct {
	driver *DBDriver

	// Sub-stores (lazy initialization)
	user         *UserStore
	alert        *AlertStore
	watchlist    *WatchlistStore
	workspace    *WorkspaceStore
	template     *TemplateStore
	theme        *ThemeStore
	team         *TeamStore
	comment      *CommentStore
	transaction  *TransactionStore
	notification *NotificationStore

	mu sync.RWMutex
}

// New creates a new Store instance backed by SQLite at the given path.
func New(dbPath string) (*Store, error) {
	driver, err := NewDBDriver(DBConfig{Type: DBTypeSQLite, Path: dbPath})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newWithDriver(driver)
}

// NewFromEnv creates a new Store instance from environment variables.
// DB_TYPE: sqlite (default) or postgres.
func NewFromEnv() (*Store, error) {
	driver, err := NewDBDriverFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return newWithDriver(driver)
}

func newWithDriver(driver *DBDriver) (*Store, error) {
	s := &Store{driver: driver}

	if err := s.initTables(); err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to initialize table structure: %w", err)
	}

	if err := s.initDefaultData(); err != nil {
		driver.Close()
		return nil, fmt.Errorf("failed to initialize default data: %w", err)
	}

	logger.Infof("✅ Database initialized (type: %s)", driver.Type)
	return s, nil
}

// initTables initializes all database tables
func (s *Store) initTables() error {
	// System config KV table first
	if _, err := s.driver.Exec(`
		CREATE TABLE IF NOT EXISTS system_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create system_config table: %w", err)
	}

	// Initialize in dependency order
	if err := s.User().initTables(); err != nil {
		return fmt.Errorf("failed to initialize user tables: %w", err)
	}
	if err := s.Alert().initTables(); err != nil {
		return fmt.Errorf("failed to initialize alert tables: %w", err)
	}
	if err := s.Watchlist().initTables(); err != nil {
		return fmt.Errorf("failed to initialize watchlist tables: %w", err)
	}
	if err := s.Workspace().initTables(); err != nil {
		return fmt.Errorf("failed to initialize workspace tables: %w", err)
	}
	if err := s.Template().initTables(); err != nil {
		return fmt.Errorf("failed to initialize template tables: %w", err)
	}
	if err := s.Theme().initTables(); err != nil {
		return fmt.Errorf("failed to initialize theme tables: %w", err)
	}
	if err := s.Team().initTables(); err != nil {
		return fmt.Errorf("failed to initialize team tables: %w", err)
	}
	if err := s.Comment().initTables(); err != nil {
		return fmt.Errorf("failed to initialize comment tables: %w", err)
	}
	if err := s.Transaction().initTables(); err != nil {
		return fmt.Errorf("failed to initialize transaction tables: %w", err)
	}
	if err := s.Notification().initTables(); err != nil {
		return fmt.Errorf("failed to initialize notification tables: %w", err)
	}
	return nil
}

// initDefaultData seeds system defaults (templates, themes)
func (s *Store) initDefaultData() error {
	if err := s.Template().initDefaultData(); err != nil {
		return err
	}
	if err := s.Theme().initDefaultData(); err != nil {
		return err
	}
	return nil
}

// User gets user storage
func (s *Store) User() *UserStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		s.user = &UserStore{db: s.driver}
	}
	return s.user
}

// Alert gets alert storage
func (s *Store) Alert() *AlertStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.alert == nil {
		s.alert = &AlertStore{db: s.driver}
	}
	return s.alert
}

// Watchlist gets watchlist storage
func (s *Store) Watchlist() *WatchlistStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watchlist == nil {
		s.watchlist = &WatchlistStore{db: s.driver}
	}
	return s.watchlist
}

// Workspace gets workspace/layout storage
func (s *Store) Workspace() *WorkspaceStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.workspace == nil {
		s.workspace = &WorkspaceStore{db: s.driver}
	}
	return s.workspace
}

// Template gets layout template storage
func (s *Store) Template() *TemplateStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.template == nil {
		s.template = &TemplateStore{db: s.driver}
	}
	return s.template
}

// Theme gets theme storage
func (s *Store) Theme() *ThemeStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.theme == nil {
		s.theme = &ThemeStore{db: s.driver}
	}
	return s.theme
}

// Team gets team storage
func (s *Store) Team() *TeamStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.team == nil {
		s.team = &TeamStore{db: s.driver}
	}
	return s.team
}

// Comment gets comment storage
func (s *Store) Comment() *CommentStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.comment == nil {
		s.comment = &CommentStore{db: s.driver}
	}
	return s.comment
}

// Transaction gets transaction storage
func (s *Store) Transaction() *TransactionStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transaction == nil {
		s.transaction = &TransactionStore{db: s.driver}
	}
	return s.transaction
}

// Notification gets in-app notification storage
func (s *Store) Notification() *NotificationStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notification == nil {
		s.notification = &NotificationStore{db: s.driver}
	}
	return s.notification
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.driver.Close()
}

// Driver returns the database driver
func (s *Store) Driver() *DBDriver {
	return s.driver
}

// DBType returns the current database type
func (s *Store) DBType() DBType {
	return s.driver.Type
}

// GetSystemConfig gets a system configuration value by key
func (s *Store) GetSystemConfig(key string) (string, error) {
	var value string
	err := s.driver.QueryRow(`SELECT value FROM system_config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetSystemConfig sets a system configuration value
func (s *Store) SetSystemConfig(key, value string) error {
	_, err := s.driver.Exec(`
		INSERT INTO system_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

// InTx executes fn inside a transaction
func (s *Store) InTx(fn func(tx *sql.Tx) error) error {
	tx, err := s.driver.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
