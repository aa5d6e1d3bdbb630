package app

import (
	"slices"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/rules"
)

// rewriteLabels returns the labels an email carries once action has been
// applied by the mutator. labelID is the label the mutator reported for move
// and add actions.
func rewriteLabels(labels []string, action rules.Action, labelID string, fanOut bool) []string {
	switch action.Type {
	case rules.ActionMarkAsRead:
		return slices.DeleteFunc(slices.Clone(labels), func(l string) bool {
			return l == domain.LabelUnread
		})
	case rules.ActionMarkAsUnread:
		if slices.Contains(labels, domain.LabelUnread) {
			return labels
		}
		return append(slices.Clone(labels), domain.LabelUnread)
	case rules.ActionMoveMessage:
		if labelID == "" {
			labelID = domain.NormalizeDestination(action.Destination)
		}
		var out []string
		if fanOut {
			out = slices.Clone(labels)
		} else {
			for _, l := range labels {
				if domain.IsStateLabel(l) {
					out = append(out, l)
				}
			}
		}
		if !slices.Contains(out, labelID) {
			out = append(out, labelID)
		}
		return out
	}
	return labels
}
