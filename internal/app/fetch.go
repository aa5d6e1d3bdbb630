// Package app wires the message provider, the temporal store and the rule
// engine into fetch, process and daemon runs.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/metrics"
	"github.com/lu-zhengda/mailrules/internal/provider"
	"github.com/lu-zhengda/mailrules/internal/store"
)

// Fetcher copies messages from a provider into the store.
type Fetcher struct {
	source provider.Source
	store  store.Store
	logger *zap.Logger
}

// FetchSummary reports the result of one Fetch.
type FetchSummary struct {
	Fetched int               `json:"fetched"`
	Batch   store.BatchResult `json:"batch"`
	Stats   domain.Stats      `json:"stats"`
}

// NewFetcher creates a Fetcher reading from source into s.
func NewFetcher(source provider.Source, s store.Store, logger *zap.Logger) *Fetcher {
	return &Fetcher{source: source, store: s, logger: logger.Named("fetch")}
}

// NeedsConfirmation reports whether the store already holds at least max
// emails, in which case a fetch should be confirmed by the user.
func (f *Fetcher) NeedsConfirmation(ctx context.Context, max int) (int, bool, error) {
	existing, err := f.store.Count(ctx)
	if err != nil {
		return 0, false, fmt.Errorf("failed to count emails: %w", err)
	}
	return existing, existing >= max, nil
}

// Fetch reads up to max messages and upserts them as one batch. Failed items
// are counted in the summary; the returned error combines them.
func (f *Fetcher) Fetch(ctx context.Context, max int) (summary *FetchSummary, err error) {
	start := time.Now()
	defer func() { metrics.RecordRun("fetch", err, time.Since(start)) }()

	emails, err := f.source.FetchMessages(ctx, max)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	metrics.EmailsFetched.Add(float64(len(emails)))
	f.logger.Info("fetched messages", zap.Int("count", len(emails)), zap.Int("max", max))

	summary = &FetchSummary{Fetched: len(emails)}
	if len(emails) == 0 {
		return summary, nil
	}

	batch, batchErr := f.store.UpsertBatch(ctx, emails)
	summary.Batch = batch
	metrics.RecordUpserts(batch.Inserted, batch.Versioned, batch.Updated, batch.Unchanged, batch.Failed)
	if batchErr != nil {
		f.logger.Error("some emails were not stored", zap.Int("failed", batch.Failed), zap.Error(batchErr))
	}

	stats, err := f.store.Stats(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to read store stats: %w", err)
	}
	summary.Stats = stats

	if batchErr != nil {
		return summary, fmt.Errorf("failed to store %d emails: %w", batch.Failed, batchErr)
	}
	return summary, nil
}
