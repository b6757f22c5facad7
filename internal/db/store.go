// Package db provides read-only access to the memory store for chroma-backfill.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx driver
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite" // register sqlite driver
)

var (
	// ErrStoreNotFound is returned when the SQLite file does not exist.
	ErrStoreNotFound = errors.New("store not found")
	// ErrStoreRead is returned when the store cannot be opened or queried.
	ErrStoreRead = errors.New("store read failed")
)

// Dialect identifies the SQL backend behind a Store.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Config holds store configuration.
type Config struct {
	Path          string // SQLite file path or postgres:// DSN
	BusyTimeoutMs int    // SQLite busy timeout (default: 5000)
}

// Store is a read-only connection to the memory store.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// Open opens the store read-only. SQLite paths are checked for existence
// before opening so a typo never creates an empty database.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	dialect := DialectForPath(cfg.Path)

	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case DialectPostgres:
		db, err = sql.Open("pgx", postgresReadOnlyDSN(cfg.Path))
	default:
		if _, statErr := os.Stat(cfg.Path); statErr != nil {
			if os.IsNotExist(statErr) {
				return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, cfg.Path)
			}
			return nil, fmt.Errorf("%w: stat %s: %v", ErrStoreRead, cfg.Path, statErr)
		}
		db, err = sql.Open("sqlite", sqliteReadOnlyDSN(cfg.Path, cfg.BusyTimeoutMs))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: open: %v", ErrStoreRead, err)
	}

	// One connection: the backfill is strictly sequential.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: ping: %v", ErrStoreRead, err)
	}

	log.Debug().Str("dialect", string(dialect)).Str("path", redactDSN(cfg.Path)).Msg("Opened memory store")

	return &Store{db: db, dialect: dialect}, nil
}

// newStoreFromDB wraps an existing connection (used by tests).
func newStoreFromDB(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Dialect returns the SQL backend of the store.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// DialectForPath returns DialectPostgres for postgres:// and postgresql:// DSNs,
// DialectSQLite otherwise.
func DialectForPath(path string) Dialect {
	lower := strings.ToLower(path)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres
	}
	return DialectSQLite
}

func sqliteReadOnlyDSN(path string, busyTimeoutMs int) string {
	if busyTimeoutMs <= 0 {
		busyTimeoutMs = 5000
	}
	return fmt.Sprintf("%s?_pragma=query_only(1)&_pragma=busy_timeout(%d)", path, busyTimeoutMs)
}

// postgresReadOnlyDSN makes every transaction on the session read-only.
func postgresReadOnlyDSN(dsn string) string {
	if strings.Contains(dsn, "default_transaction_read_only=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "default_transaction_read_only=on"
}

// redactDSN hides the password of a postgres DSN for logging.
func redactDSN(path string) string {
	if DialectForPath(path) != DialectPostgres {
		return path
	}
	schemeEnd := strings.Index(path, "://") + 3
	at := strings.LastIndex(path, "@")
	if at < schemeEnd {
		return path
	}
	userInfo := path[schemeEnd:at]
	if colon := strings.Index(userInfo, ":"); colon >= 0 {
		return path[:schemeEnd] + userInfo[:colon] + ":***" + path[at:]
	}
	return path
}
