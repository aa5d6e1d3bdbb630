package domain

import (
	"slices"
	"strings"
)

type LabelType string

const (
	LabelTypeSystem LabelType = "system"
	LabelTypeUser   LabelType = "user"
)

type Label struct {
	ID   string
	Name string
	Type LabelType
}

const (
	LabelInbox     = "INBOX"
	LabelUnread    = "UNREAD"
	LabelStarred   = "STARRED"
	LabelImportant = "IMPORTANT"
	LabelSent      = "SENT"
	LabelDraft     = "DRAFT"
	LabelTrash     = "TRASH"
	LabelSpam      = "SPAM"
)

// LocationLabels are the labels that place a message in a mailbox folder.
// A move removes all of them.
var LocationLabels = []string{LabelInbox, LabelSent, LabelDraft, LabelTrash, LabelSpam}

// stateLabels survive a move.
var stateLabels = []string{
	LabelUnread,
	LabelStarred,
	LabelImportant,
	"CATEGORY_PERSONAL",
	"CATEGORY_SOCIAL",
	"CATEGORY_PROMOTIONS",
	"CATEGORY_UPDATES",
	"CATEGORY_FORUMS",
}

// IsStateLabel reports whether label describes mailbox state (unread,
// starred, important, category) rather than a location or user folder.
func IsStateLabel(label string) bool {
	return slices.Contains(stateLabels, label)
}

// IsLocationLabel reports whether label is one of LocationLabels.
func IsLocationLabel(label string) bool {
	return slices.Contains(LocationLabels, label)
}

// NormalizeDestination upper-cases destinations that name a system folder
// (inbox, trash, spam, sent, draft) and trims everything else.
func NormalizeDestination(dest string) string {
	dest = strings.TrimSpace(dest)
	if IsLocationLabel(strings.ToUpper(dest)) {
		return strings.ToUpper(dest)
	}
	return dest
}
