package store

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/lu-zhengda/mailrules/internal/domain"
)

// UpsertFunc writes a single email.
type UpsertFunc func(ctx context.Context, email *domain.Email) (Outcome, error)

// UpsertEach applies upsert to every email. Emails sharing an id are written
// one after another in batch order; distinct ids run on up to workers
// goroutines. A failed item never stops the others; all failures are
// combined into the returned error.
func UpsertEach(ctx context.Context, emails []domain.Email, workers int, upsert UpsertFunc) (BatchResult, error) {
	if workers < 1 {
		workers = 1
	}

	var order []string
	groups := make(map[string][]int)
	for i := range emails {
		id := emails[i].ID
		if _, ok := groups[id]; !ok {
			order = append(order, id)
		}
		groups[id] = append(groups[id], i)
	}

	var (
		mu     sync.Mutex
		result BatchResult
		errs   error
	)
	var g errgroup.Group
	g.SetLimit(workers)

	for _, id := range order {
		idx := groups[id]
		g.Go(func() error {
			for _, i := range idx {
				email := &emails[i]
				outcome, err := upsert(ctx, email)

				mu.Lock()
				if err != nil {
					result.Failed++
					errs = multierr.Append(errs, Wrap("upsert", email.ID, err))
				} else {
					result.add(outcome)
				}
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return result, errs
}
