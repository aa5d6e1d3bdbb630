package store

import (
	"time"

	"github.com/lu-zhengda/mailrules/internal/domain"
)

// Precision is the resolution of stored validity timestamps. Postgres keeps
// microseconds, so every backend truncates to that.
const Precision = time.Microsecond

// Change is the write an upsert has to perform.
type Change int

const (
	ChangeNone Change = iota
	ChangeInsert
	ChangeVersion
	ChangeRefresh
)

// Decide compares the incoming snapshot with the current row (nil if the
// email has none). Only the label set is tracked; differences in other fields
// refresh the current row in place.
func Decide(current, next *domain.Email) Change {
	switch {
	case current == nil:
		return ChangeInsert
	case !domain.SameLabels(current.Labels, next.Labels):
		return ChangeVersion
	case !domain.SameContent(current, next):
		return ChangeRefresh
	default:
		return ChangeNone
	}
}

// Outcome maps a change to the outcome reported to callers.
func (c Change) Outcome() Outcome {
	switch c {
	case ChangeInsert:
		return OutcomeInserted
	case ChangeVersion:
		return OutcomeVersioned
	case ChangeRefresh:
		return OutcomeUpdated
	default:
		return OutcomeUnchanged
	}
}

// Normalize returns the form of email that a backend stores: the body cut to
// domain.MaxBodyLength and the received time at storage precision.
func Normalize(email *domain.Email) *domain.Email {
	e := email.Clone()
	e.Body = domain.TruncateBody(e.Body)
	if e.ReceivedAt != nil {
		if e.ReceivedAt.IsZero() {
			e.ReceivedAt = nil
		} else {
			t := e.ReceivedAt.Truncate(Precision)
			e.ReceivedAt = &t
		}
	}
	return e
}

// ValidFrom returns the start of a new version at now. The result is always
// after currentFrom so the closed row keeps valid_to > valid_from.
func ValidFrom(now, currentFrom time.Time) time.Time {
	t := now.UTC().Truncate(Precision)
	if !currentFrom.IsZero() && !t.After(currentFrom) {
		t = currentFrom.UTC().Truncate(Precision).Add(Precision)
	}
	return t
}
