// Package provider defines the collaborators that supply email snapshots and
// apply rule actions to the remote mailbox.
package provider

import (
	"context"

	"github.com/lu-zhengda/mailrules/internal/domain"
)

// Source supplies email snapshots to be recorded in the store.
type Source interface {
	// FetchMessages returns up to max messages, newest first.
	FetchMessages(ctx context.Context, max int) ([]domain.Email, error)
}

// Mutator applies rule actions to the remote mailbox.
type Mutator interface {
	MarkRead(ctx context.Context, msgID string) error
	MarkUnread(ctx context.Context, msgID string) error

	// MoveMessage removes the location labels and user labels of a message,
	// keeps its state labels, and adds the destination label, creating it
	// when missing. It returns the id of the destination label.
	MoveMessage(ctx context.Context, msgID, destination string) (string, error)

	// AddLabel adds the destination label without removing anything. It is
	// used when one email is moved to several destinations.
	AddLabel(ctx context.Context, msgID, destination string) (string, error)
}

// Provider is a mailbox that is both a Source and a Mutator.
type Provider interface {
	Source
	Mutator
}
