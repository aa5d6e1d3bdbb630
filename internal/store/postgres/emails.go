package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/store"
)

const (
	emailColumns = `email_id, thread_id, from_email, to_email, subject, body, received_at, labels`

	maxAttempts = 10
	retryDelay  = 20 * time.Millisecond
)

// Upsert runs the read-compare-write sequence in a serializable
// transaction, retrying when a concurrent writer for the same id wins.
func (s *DB) Upsert(ctx context.Context, email *domain.Email) (store.Outcome, error) {
	if email == nil || email.ID == "" {
		return store.OutcomeUnchanged, &store.StorageError{Op: "upsert", Err: domain.ErrMissingID}
	}
	next := store.Normalize(email)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		outcome, err := s.upsertOnce(ctx, next)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		s.logger.Debug("retrying upsert",
			zap.String("email_id", email.ID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return store.OutcomeUnchanged, store.Wrap("upsert", email.ID, ctx.Err())
		case <-time.After(time.Duration(attempt) * retryDelay):
		}
	}
	return store.OutcomeUnchanged, store.Wrap("upsert", email.ID, lastErr)
}

func (s *DB) upsertOnce(ctx context.Context, email *domain.Email) (store.Outcome, error) {
	labels := email.Labels
	if labels == nil {
		labels = []string{}
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return store.OutcomeUnchanged, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	current, currentFrom, err := currentRow(ctx, tx, email.ID)
	if err != nil {
		return store.OutcomeUnchanged, err
	}

	change := store.Decide(current, email)
	switch change {
	case store.ChangeNone:
		return store.OutcomeUnchanged, nil

	case store.ChangeInsert:
		if err := insertVersion(ctx, tx, email, labels, store.ValidFrom(s.now(), time.Time{})); err != nil {
			return store.OutcomeUnchanged, err
		}

	case store.ChangeVersion:
		from := store.ValidFrom(s.now(), currentFrom)
		if _, err := tx.Exec(ctx, `
			UPDATE emails SET valid_to = $1, is_current = FALSE
			WHERE email_id = $2 AND is_current`,
			from, email.ID,
		); err != nil {
			return store.OutcomeUnchanged, fmt.Errorf("failed to close current version: %w", err)
		}
		if err := insertVersion(ctx, tx, email, labels, from); err != nil {
			return store.OutcomeUnchanged, err
		}

	case store.ChangeRefresh:
		if _, err := tx.Exec(ctx, `
			UPDATE emails SET thread_id = $1, from_email = $2, to_email = $3, subject = $4,
				body = $5, received_at = $6
			WHERE email_id = $7 AND is_current`,
			email.ThreadID, email.From, email.To, email.Subject,
			email.Body, email.ReceivedAt, email.ID,
		); err != nil {
			return store.OutcomeUnchanged, fmt.Errorf("failed to refresh current version: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return store.OutcomeUnchanged, fmt.Errorf("failed to commit upsert: %w", err)
	}

	outcome := change.Outcome()
	s.logger.Debug("upserted email", zap.String("email_id", email.ID), zap.Stringer("outcome", outcome))
	return outcome, nil
}

// retryable reports whether err came from losing a race with another
// transaction.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	switch pgErr.Code {
	case pgerrcode.SerializationFailure, pgerrcode.DeadlockDetected, pgerrcode.UniqueViolation:
		return true
	default:
		return false
	}
}

func currentRow(ctx context.Context, tx pgx.Tx, id string) (*domain.Email, time.Time, error) {
	var validFrom time.Time
	email, err := scanEmail(tx.QueryRow(ctx, `
		SELECT `+emailColumns+`, valid_from
		FROM emails WHERE email_id = $1 AND is_current
		FOR UPDATE`, id,
	), &validFrom)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read current version: %w", err)
	}
	return email, validFrom, nil
}

func insertVersion(ctx context.Context, tx pgx.Tx, email *domain.Email, labels []string, from time.Time) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO emails (email_id, thread_id, from_email, to_email, subject, body,
			received_at, labels, valid_from, valid_to, is_current)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL, TRUE)`,
		email.ID, email.ThreadID, email.From, email.To, email.Subject, email.Body,
		email.ReceivedAt, labels, from,
	)
	if err != nil {
		return fmt.Errorf("failed to insert version: %w", err)
	}
	return nil
}

// UpsertBatch upserts every email; see store.UpsertEach.
func (s *DB) UpsertBatch(ctx context.Context, emails []domain.Email) (store.BatchResult, error) {
	result, err := store.UpsertEach(ctx, emails, s.workers, s.Upsert)
	s.logger.Info("upserted batch",
		zap.Int("size", len(emails)),
		zap.Int("inserted", result.Inserted),
		zap.Int("versioned", result.Versioned),
		zap.Int("failed", result.Failed),
	)
	return result, err
}

// CurrentAll returns the current version of every email, newest first.
func (s *DB) CurrentAll(ctx context.Context) ([]domain.Email, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE is_current
		ORDER BY received_at DESC NULLS LAST, email_id`)
	if err != nil {
		return nil, store.Wrap("list current emails", "", err)
	}
	defer rows.Close()

	var emails []domain.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, store.Wrap("list current emails", "", err)
		}
		emails = append(emails, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("list current emails", "", err)
	}
	return emails, nil
}

// CurrentByID returns the current version of one email.
func (s *DB) CurrentByID(ctx context.Context, id string) (*domain.Email, error) {
	e, err := scanEmail(s.pool.QueryRow(ctx, `
		SELECT `+emailColumns+`
		FROM emails WHERE email_id = $1 AND is_current`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.Wrap("get", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Wrap("get", id, err)
	}
	return e, nil
}

// History returns every version of an email ordered by valid_from.
func (s *DB) History(ctx context.Context, id string) ([]domain.Record, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+emailColumns+`, valid_from, valid_to, is_current
		FROM emails WHERE email_id = $1
		ORDER BY valid_from`, id)
	if err != nil {
		return nil, store.Wrap("load history", id, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		e, err := scanEmail(rows, &rec.ValidFrom, &rec.ValidTo, &rec.IsCurrent)
		if err != nil {
			return nil, store.Wrap("load history", id, err)
		}
		rec.Email = *e
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("load history", id, err)
	}
	return records, nil
}

// Count returns the number of emails that have a current version.
func (s *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT email_id) FROM emails WHERE is_current`,
	).Scan(&n); err != nil {
		return 0, store.Wrap("count emails", "", err)
	}
	return n, nil
}

// Stats summarises the versions held in the table.
func (s *DB) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	if err := s.pool.QueryRow(ctx, `
		SELECT COUNT(DISTINCT email_id), COUNT(*), COUNT(*) FILTER (WHERE is_current)
		FROM emails`,
	).Scan(&st.UniqueEmails, &st.TotalVersions, &st.CurrentVersions); err != nil {
		return domain.Stats{}, store.Wrap("compute stats", "", err)
	}
	st.HistoricalVersions = st.TotalVersions - st.CurrentVersions
	return st, nil
}

func scanEmail(row pgx.Row, extra ...any) (*domain.Email, error) {
	var e domain.Email
	dest := append([]any{
		&e.ID, &e.ThreadID, &e.From, &e.To, &e.Subject, &e.Body, &e.ReceivedAt, &e.Labels,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return &e, nil
}

// Search returns current emails whose sender, subject or body contains query,
// ignoring case.
func (s *DB) Search(ctx context.Context, query string) ([]domain.Email, error) {
	pattern := "%" + likeEscaper.Replace(strings.TrimSpace(query)) + "%"
	rows, err := s.pool.Query(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE is_current
			AND (from_email ILIKE $1 OR subject ILIKE $1 OR body ILIKE $1)
		ORDER BY received_at DESC NULLS LAST, email_id`, pattern)
	if err != nil {
		return nil, store.Wrap("search emails", "", err)
	}
	defer rows.Close()

	emails, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Email, error) {
		e, err := scanEmail(row)
		if err != nil {
			return domain.Email{}, err
		}
		return *e, nil
	})
	if err != nil {
		return nil, store.Wrap("search emails", "", err)
	}
	return emails, nil
}

// likeEscaper escapes LIKE wildcards; backslash is the default escape.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
