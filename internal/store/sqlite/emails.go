package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/store"
)

const emailColumns = `email_id, thread_id, from_email, to_email, subject, body, received_at, labels`

type scanner interface {
	Scan(dest ...any) error
}

// Upsert inserts, versions, or refreshes the current row of an email inside
// one immediate transaction.
func (s *DB) Upsert(ctx context.Context, email *domain.Email) (store.Outcome, error) {
	if email == nil || email.ID == "" {
		return store.OutcomeUnchanged, &store.StorageError{Op: "upsert", Err: domain.ErrMissingID}
	}
	outcome, err := s.upsert(ctx, store.Normalize(email))
	if err != nil {
		return store.OutcomeUnchanged, store.Wrap("upsert", email.ID, err)
	}
	return outcome, nil
}

func (s *DB) upsert(ctx context.Context, email *domain.Email) (store.Outcome, error) {
	labels, err := encodeLabels(email.Labels)
	if err != nil {
		return store.OutcomeUnchanged, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.OutcomeUnchanged, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, currentFrom, err := currentRow(ctx, tx, email.ID)
	if err != nil {
		return store.OutcomeUnchanged, err
	}

	change := store.Decide(current, email)
	switch change {
	case store.ChangeNone:
		return store.OutcomeUnchanged, nil

	case store.ChangeInsert:
		from := store.ValidFrom(s.now(), time.Time{})
		if err := insertVersion(ctx, tx, email, labels, from); err != nil {
			return store.OutcomeUnchanged, err
		}

	case store.ChangeVersion:
		from := store.ValidFrom(s.now(), currentFrom)
		if _, err := tx.ExecContext(ctx, `
			UPDATE emails SET valid_to = ?, is_current = 0
			WHERE email_id = ? AND is_current = 1`,
			from.Format(timeLayout), email.ID,
		); err != nil {
			return store.OutcomeUnchanged, fmt.Errorf("failed to close current version: %w", err)
		}
		if err := insertVersion(ctx, tx, email, labels, from); err != nil {
			return store.OutcomeUnchanged, err
		}

	case store.ChangeRefresh:
		if _, err := tx.ExecContext(ctx, `
			UPDATE emails SET thread_id = ?, from_email = ?, to_email = ?, subject = ?,
				body = ?, received_at = ?
			WHERE email_id = ? AND is_current = 1`,
			email.ThreadID, email.From, email.To, email.Subject,
			email.Body, nullTime(email.ReceivedAt), email.ID,
		); err != nil {
			return store.OutcomeUnchanged, fmt.Errorf("failed to refresh current version: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return store.OutcomeUnchanged, fmt.Errorf("failed to commit upsert: %w", err)
	}

	outcome := change.Outcome()
	s.logger.Debug("upserted email", zap.String("email_id", email.ID), zap.Stringer("outcome", outcome))
	return outcome, nil
}

func currentRow(ctx context.Context, tx *sql.Tx, id string) (*domain.Email, time.Time, error) {
	var validFrom string
	email, err := scanEmail(tx.QueryRowContext(ctx, `
		SELECT `+emailColumns+`, valid_from
		FROM emails WHERE email_id = ? AND is_current = 1`, id,
	), &validFrom)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read current version: %w", err)
	}
	from, err := time.Parse(timeLayout, validFrom)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to parse valid_from: %w", err)
	}
	return email, from, nil
}

func insertVersion(ctx context.Context, tx *sql.Tx, email *domain.Email, labels string, from time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO emails (email_id, thread_id, from_email, to_email, subject, body,
			received_at, labels, valid_from, valid_to, is_current)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, 1)`,
		email.ID, email.ThreadID, email.From, email.To, email.Subject, email.Body,
		nullTime(email.ReceivedAt), labels, from.Format(timeLayout),
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
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE is_current = 1
		ORDER BY received_at IS NULL, received_at DESC, email_id`)
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
	e, err := scanEmail(s.db.QueryRowContext(ctx, `
		SELECT `+emailColumns+`
		FROM emails WHERE email_id = ? AND is_current = 1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.Wrap("get", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, store.Wrap("get", id, err)
	}
	return e, nil
}

// History returns every version of an email ordered by valid_from.
func (s *DB) History(ctx context.Context, id string) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+emailColumns+`, valid_from, valid_to, is_current
		FROM emails WHERE email_id = ?
		ORDER BY valid_from`, id)
	if err != nil {
		return nil, store.Wrap("load history", id, err)
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var validFrom string
		var validTo sql.NullString
		var current bool
		e, err := scanEmail(rows, &validFrom, &validTo, &current)
		if err != nil {
			return nil, store.Wrap("load history", id, err)
		}

		rec := domain.Record{Email: *e, IsCurrent: current}
		if rec.ValidFrom, err = time.Parse(timeLayout, validFrom); err != nil {
			return nil, store.Wrap("load history", id, fmt.Errorf("failed to parse valid_from: %w", err))
		}
		if rec.ValidTo, err = parseNullTime(validTo); err != nil {
			return nil, store.Wrap("load history", id, fmt.Errorf("failed to parse valid_to: %w", err))
		}
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
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT email_id) FROM emails WHERE is_current = 1`,
	).Scan(&n); err != nil {
		return 0, store.Wrap("count emails", "", err)
	}
	return n, nil
}

// Stats summarises the versions held in the table.
func (s *DB) Stats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT email_id),
			COUNT(*),
			COALESCE(SUM(CASE WHEN is_current = 1 THEN 1 ELSE 0 END), 0)
		FROM emails`,
	).Scan(&st.UniqueEmails, &st.TotalVersions, &st.CurrentVersions); err != nil {
		return domain.Stats{}, store.Wrap("compute stats", "", err)
	}
	st.HistoricalVersions = st.TotalVersions - st.CurrentVersions
	return st, nil
}

// scanEmail scans emailColumns followed by extra destinations.
func scanEmail(row scanner, extra ...any) (*domain.Email, error) {
	var e domain.Email
	var receivedAt sql.NullString
	var labels string

	dest := append([]any{
		&e.ID, &e.ThreadID, &e.From, &e.To, &e.Subject, &e.Body, &receivedAt, &labels,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	var err error
	if e.ReceivedAt, err = parseNullTime(receivedAt); err != nil {
		return nil, fmt.Errorf("failed to parse received_at: %w", err)
	}
	if err := json.Unmarshal([]byte(labels), &e.Labels); err != nil {
		return nil, fmt.Errorf("failed to unmarshal labels: %w", err)
	}
	return &e, nil
}

func encodeLabels(labels []string) (string, error) {
	if labels == nil {
		labels = []string{}
	}
	data, err := json.Marshal(labels)
	if err != nil {
		return "", fmt.Errorf("failed to marshal labels: %w", err)
	}
	return string(data), nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(timeLayout), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
