package sqlite

import (
	"context"
	"strings"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/store"
)

// Search returns current emails whose sender, subject or body contains query,
// ignoring case. Results are ordered like CurrentAll.
func (s *DB) Search(ctx context.Context, query string) ([]domain.Email, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(query))) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+emailColumns+`
		FROM emails
		WHERE is_current = 1
			AND (lower(from_email) LIKE ?1 ESCAPE '\'
				OR lower(subject) LIKE ?1 ESCAPE '\'
				OR lower(body) LIKE ?1 ESCAPE '\')
		ORDER BY received_at IS NULL, received_at DESC, email_id`, pattern)
	if err != nil {
		return nil, store.Wrap("search emails", "", err)
	}
	defer rows.Close()

	var emails []domain.Email
	for rows.Next() {
		e, err := scanEmail(rows)
		if err != nil {
			return nil, store.Wrap("search emails", "", err)
		}
		emails = append(emails, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, store.Wrap("search emails", "", err)
	}
	return emails, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
