// Package rules validates rule-set documents and evaluates the resulting
// rules against emails.
package rules

// Field names an email attribute a condition can test.
type Field string

const (
	FieldFrom         Field = "from"
	FieldSubject      Field = "subject"
	FieldMessage      Field = "message"
	FieldReceivedDate Field = "received_date"
)

// Predicate combines the results of a rule's conditions.
type Predicate string

const (
	PredicateAll Predicate = "all"
	PredicateAny Predicate = "any"
)

// StringOp is the comparison applied by a StringCondition.
type StringOp string

const (
	OpContains       StringOp = "contains"
	OpDoesNotContain StringOp = "does_not_contain"
	OpEquals         StringOp = "equals"
	OpDoesNotEqual   StringOp = "does_not_equal"
)

// DateOp is the comparison applied by a DateCondition.
type DateOp string

const (
	OpLessThan    DateOp = "less_than"
	OpGreaterThan DateOp = "greater_than"
)

// Unit is the unit of a DateCondition amount. A month is always 30 days.
type Unit string

const (
	UnitDays   Unit = "days"
	UnitMonths Unit = "months"
)

// ActionType names a state change applied to a matching email.
type ActionType string

const (
	ActionMarkAsRead   ActionType = "mark_as_read"
	ActionMarkAsUnread ActionType = "mark_as_unread"
	ActionMoveMessage  ActionType = "move_message"
)

// Action is one entry of a rule's action list. Destination is only set for
// ActionMoveMessage.
type Action struct {
	Type        ActionType `json:"type"`
	Destination string     `json:"destination,omitempty"`
}

// Condition is either a StringCondition or a DateCondition.
type Condition interface {
	TargetField() Field
	isCondition()
}

// StringCondition tests one of the text fields of an email.
type StringCondition struct {
	Field Field
	Op    StringOp
	Value string
}

func (c StringCondition) TargetField() Field { return c.Field }
func (StringCondition) isCondition()         {}

// DateCondition tests the age of an email relative to the evaluation time.
type DateCondition struct {
	Op     DateOp
	Amount int
	Unit   Unit
}

func (DateCondition) TargetField() Field { return FieldReceivedDate }
func (DateCondition) isCondition()       {}

// Rule is a validated rule. Rules are never modified after validation.
type Rule struct {
	Name       string
	Predicate  Predicate
	Conditions []Condition
	Actions    []Action
}

var stringFields = map[Field]bool{
	FieldFrom:    true,
	FieldSubject: true,
	FieldMessage: true,
}

var stringOps = map[StringOp]bool{
	OpContains:       true,
	OpDoesNotContain: true,
	OpEquals:         true,
	OpDoesNotEqual:   true,
}

var dateOps = map[DateOp]bool{
	OpLessThan:    true,
	OpGreaterThan: true,
}

var units = map[Unit]bool{
	UnitDays:   true,
	UnitMonths: true,
}

var actionTypes = map[ActionType]bool{
	ActionMarkAsRead:   true,
	ActionMarkAsUnread: true,
	ActionMoveMessage:  true,
}
