// Package store defines the temporal email store. Every observed label state
// of an email is kept as a versioned row; only the current row is exposed by
// default.
package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/domain"
)

// Store persists email snapshots with validity intervals.
type Store interface {
	// Upsert records email. A missing current row inserts one, a different
	// label set closes the current row and appends a new one, and anything
	// else leaves the history untouched.
	Upsert(ctx context.Context, email *domain.Email) (Outcome, error)

	// UpsertBatch upserts every email independently. The error combines the
	// failures of individual items; the result counts every outcome.
	UpsertBatch(ctx context.Context, emails []domain.Email) (BatchResult, error)

	// CurrentAll returns every current email, newest received first and
	// emails without a date last.
	CurrentAll(ctx context.Context) ([]domain.Email, error)

	// CurrentByID returns the current state of one email or ErrNotFound.
	CurrentByID(ctx context.Context, id string) (*domain.Email, error)

	// Search returns the current emails whose sender, subject or body
	// contains query, ignoring case.
	Search(ctx context.Context, query string) ([]domain.Email, error)

	// History returns every version of an email, oldest first.
	History(ctx context.Context, id string) ([]domain.Record, error)

	Count(ctx context.Context) (int, error)
	Stats(ctx context.Context) (domain.Stats, error)

	Close() error
}

// Outcome describes what an Upsert wrote.
type Outcome int

const (
	// OutcomeUnchanged means the snapshot matched the current row exactly.
	OutcomeUnchanged Outcome = iota
	// OutcomeInserted means the email was seen for the first time.
	OutcomeInserted
	// OutcomeVersioned means the label set changed and a new version was
	// appended.
	OutcomeVersioned
	// OutcomeUpdated means only untracked fields changed; the current row
	// was refreshed without creating history.
	OutcomeUpdated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeInserted:
		return "inserted"
	case OutcomeVersioned:
		return "versioned"
	case OutcomeUpdated:
		return "updated"
	default:
		return "unknown"
	}
}

// BatchResult counts the outcomes of an UpsertBatch call.
type BatchResult struct {
	Inserted  int `json:"inserted"`
	Versioned int `json:"versioned"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

func (r *BatchResult) add(o Outcome) {
	switch o {
	case OutcomeInserted:
		r.Inserted++
	case OutcomeVersioned:
		r.Versioned++
	case OutcomeUpdated:
		r.Updated++
	default:
		r.Unchanged++
	}
}

// Options holds the settings shared by the store backends.
type Options struct {
	Clock        func() time.Time
	BatchWorkers int
	Logger       *zap.Logger
}

// Option configures a store backend.
type Option func(*Options)

// WithClock replaces time.Now as the source of validity timestamps.
func WithClock(clock func() time.Time) Option {
	return func(o *Options) { o.Clock = clock }
}

// WithBatchWorkers bounds how many distinct ids UpsertBatch writes at once.
func WithBatchWorkers(n int) Option {
	return func(o *Options) { o.BatchWorkers = n }
}

// WithLogger sets the backend logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// NewOptions applies opts over the defaults.
func NewOptions(opts ...Option) Options {
	o := Options{
		Clock:        time.Now,
		BatchWorkers: 4,
		Logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.BatchWorkers < 1 {
		o.BatchWorkers = 1
	}
	return o
}
