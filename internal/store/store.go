package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/dasida/tutor/internal/logger"

	// Pure Go SQLite driver (no CGO), registered as "sqlite".
	_ "modernc.org/sqlite"
)

// Store holds the gorm handle and hands out repositories.
type Store struct {
	db  *gorm.DB
	log *logger.Logger
}

// Open connects to dsn and runs auto-migration. A postgres:// URL or a
// key/value DSN containing host= selects Postgres; anything else is
// treated as a SQLite path or URI.
func Open(dsn string, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.Nop()
	}
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	if isPostgresDSN(dsn) {
		db, err = gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("store: open postgres: %w", err)
		}
	} else {
		db, err = openSQLite(dsn, cfg)
		if err != nil {
			return nil, err
		}
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return &Store{db: db, log: log.With("component", "store")}, nil
}

func openSQLite(dsn string, cfg *gorm.Config) (*gorm.DB, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// One writer at a time; this also serializes transcript appends.
	sqlDB.SetMaxOpenConns(1)

	if err := applyPragmas(sqlDB); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: apply pragmas: %w", err)
	}

	db, err := gorm.Open(&sqlite.Dialector{DriverName: "sqlite", Conn: sqlDB}, cfg)
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	return db, nil
}

func isPostgresDSN(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") ||
		strings.HasPrefix(dsn, "postgresql://") ||
		strings.Contains(dsn, "host=")
}

// DB returns the underlying gorm handle.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Transcripts returns the conversation and message repository.
func (s *Store) Transcripts() *TranscriptRepo {
	return &TranscriptRepo{db: s.db, log: s.log.With("repo", "TranscriptRepo")}
}

// Catalog returns the read-side problem/concept repository.
func (s *Store) Catalog() *CatalogRepo {
	return &CatalogRepo{db: s.db}
}

// Reports returns the report repository.
func (s *Store) Reports() *ReportRepo {
	return &ReportRepo{db: s.db}
}

// Usage returns the LLM usage ledger repository.
func (s *Store) Usage() *UsageRepo {
	return &UsageRepo{db: s.db}
}

// applyPragmas configures SQLite for a single-process server.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("%s: %w", p, err)
		}
	}
	return nil
}

// DefaultDBPath resolves the SQLite file used when no DSN is configured:
// 1. DASIDA_DB environment variable
// 2. $XDG_DATA_HOME/dasida/dasida.db
// 3. ~/.local/share/dasida/dasida.db
func DefaultDBPath() (string, error) {
	if p := os.Getenv("DASIDA_DB"); p != "" {
		return p, ensureDir(p)
	}

	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		dataHome = filepath.Join(home, ".local", "share")
	}

	p := filepath.Join(dataHome, "dasida", "dasida.db")
	return p, ensureDir(p)
}

func ensureDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
