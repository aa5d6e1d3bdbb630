package domain

import (
	"errors"
	"slices"
	"time"
)

// MaxBodyLength is the number of runes of a message body that is kept.
const MaxBodyLength = 1000

// ErrMissingID is returned when an email without an ID is handed to the store.
var ErrMissingID = errors.New("email id is required")

// Email is one observed snapshot of a message.
type Email struct {
	ID         string
	ThreadID   string
	From       string
	To         string
	Subject    string
	Body       string
	ReceivedAt *time.Time
	Labels     []string
}

func (e *Email) HasLabel(label string) bool {
	return slices.Contains(e.Labels, label)
}

// Clone returns a copy that shares no slices or pointers with e.
func (e *Email) Clone() *Email {
	c := *e
	c.Labels = slices.Clone(e.Labels)
	if e.ReceivedAt != nil {
		t := *e.ReceivedAt
		c.ReceivedAt = &t
	}
	return &c
}

// TruncateBody cuts s down to MaxBodyLength runes.
func TruncateBody(s string) string {
	if len(s) <= MaxBodyLength {
		return s
	}
	n := 0
	for i := range s {
		if n == MaxBodyLength {
			return s[:i]
		}
		n++
	}
	return s
}

// SameLabels reports whether a and b hold the same labels, ignoring order
// and duplicates.
func SameLabels(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, l := range a {
		set[l] = struct{}{}
	}
	other := make(map[string]struct{}, len(b))
	for _, l := range b {
		if _, ok := set[l]; !ok {
			return false
		}
		other[l] = struct{}{}
	}
	return len(set) == len(other)
}

// SameContent reports whether the untracked fields of a and b are equal.
func SameContent(a, b *Email) bool {
	if a.ThreadID != b.ThreadID || a.From != b.From || a.To != b.To ||
		a.Subject != b.Subject || a.Body != b.Body {
		return false
	}
	switch {
	case a.ReceivedAt == nil && b.ReceivedAt == nil:
		return true
	case a.ReceivedAt == nil || b.ReceivedAt == nil:
		return false
	}
	return a.ReceivedAt.Equal(*b.ReceivedAt)
}
