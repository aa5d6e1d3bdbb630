// Package postgres implements the temporal email store on PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/store"
)

// DB is a pgx connection pool holding the emails table.
type DB struct {
	pool    *pgxpool.Pool
	now     func() time.Time
	workers int
	logger  *zap.Logger
}

// New connects to dsn, applies pending migrations, and returns the store.
func New(ctx context.Context, dsn string, opts ...store.Option) (*DB, error) {
	o := store.NewOptions(opts...)
	logger := o.Logger.Named("store").With(zap.String("driver", "postgres"))

	migrator, err := NewMigrator(ctx, dsn, logger)
	if err != nil {
		return nil, err
	}
	err = migrator.Up()
	if cerr := migrator.Close(); err == nil && cerr != nil {
		logger.Warn("failed to close migrator", zap.Error(cerr))
	}
	if err != nil {
		return nil, err
	}

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if want := int32(o.BatchWorkers + 2); config.MaxConns < want {
		config.MaxConns = want
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to the database: %w", err)
	}

	return &DB{
		pool:    pool,
		now:     o.Clock,
		workers: o.BatchWorkers,
		logger:  logger,
	}, nil
}

// Close closes every pooled connection.
func (s *DB) Close() error {
	s.pool.Close()
	return nil
}

var _ store.Store = (*DB)(nil)
