// Package sqlite implements the temporal email store on SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/store"
)

// DB wraps a sql.DB connection to a SQLite database.
type DB struct {
	db      *sql.DB
	now     func() time.Time
	workers int
	logger  *zap.Logger
}

// New opens a SQLite database at the given path and runs migrations.
// Use ":memory:" for an in-memory database.
func New(path string, opts ...store.Option) (*DB, error) {
	o := store.NewOptions(opts...)

	// Write transactions start with BEGIN IMMEDIATE so the read of the
	// current row already holds the write lock.
	var connStr string
	memory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if path == ":memory:" {
		connStr = ":memory:?_txlock=immediate"
	} else {
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		connStr = path + sep + "_journal_mode=WAL&_busy_timeout=5000&_txlock=immediate"
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if memory {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &DB{
		db:      db,
		now:     o.Clock,
		workers: o.BatchWorkers,
		logger:  o.Logger.Named("store").With(zap.String("driver", "sqlite")),
	}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return s, nil
}

func (s *DB) migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *DB) Close() error {
	return s.db.Close()
}

var _ store.Store = (*DB)(nil)
