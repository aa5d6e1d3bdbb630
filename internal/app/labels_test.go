package app

import (
	"slices"
	"testing"

	"github.com/lu-zhengda/mailrules/internal/rules"
)

func TestRewriteLabels(t *testing.T) {
	move := func(dest string) rules.Action {
		return rules.Action{Type: rules.ActionMoveMessage, Destination: dest}
	}
	tests := []struct {
		name    string
		labels  []string
		action  rules.Action
		labelID string
		fanOut  bool
		want    []string
	}{
		{
			name:   "read removes unread",
			labels: []string{"INBOX", "UNREAD"},
			action: rules.Action{Type: rules.ActionMarkAsRead},
			want:   []string{"INBOX"},
		},
		{
			name:   "read on read email",
			labels: []string{"INBOX"},
			action: rules.Action{Type: rules.ActionMarkAsRead},
			want:   []string{"INBOX"},
		},
		{
			name:   "unread adds unread once",
			labels: []string{"INBOX", "UNREAD"},
			action: rules.Action{Type: rules.ActionMarkAsUnread},
			want:   []string{"INBOX", "UNREAD"},
		},
		{
			name:   "unread on read email",
			labels: []string{"INBOX"},
			action: rules.Action{Type: rules.ActionMarkAsUnread},
			want:   []string{"INBOX", "UNREAD"},
		},
		{
			name:    "move keeps state labels",
			labels:  []string{"INBOX", "UNREAD", "STARRED", "CATEGORY_UPDATES", "Label_3"},
			action:  move("Work"),
			labelID: "Label_1",
			want:    []string{"UNREAD", "STARRED", "CATEGORY_UPDATES", "Label_1"},
		},
		{
			name:   "move to system folder without label id",
			labels: []string{"INBOX", "IMPORTANT"},
			action: move("trash"),
			want:   []string{"IMPORTANT", "TRASH"},
		},
		{
			name:    "move onto the label it already has",
			labels:  []string{"Label_1", "UNREAD"},
			action:  move("Work"),
			labelID: "Label_1",
			want:    []string{"UNREAD", "Label_1"},
		},
		{
			name:    "fan-out adds the label",
			labels:  []string{"UNREAD", "Label_1"},
			action:  move("Later"),
			labelID: "Label_2",
			fanOut:  true,
			want:    []string{"UNREAD", "Label_1", "Label_2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := slices.Clone(tt.labels)
			got := rewriteLabels(tt.labels, tt.action, tt.labelID, tt.fanOut)
			if !slices.Equal(got, tt.want) {
				t.Errorf("rewriteLabels() = %v, want %v", got, tt.want)
			}
			if !slices.Equal(tt.labels, original) {
				t.Errorf("input modified to %v", tt.labels)
			}
		})
	}
}
