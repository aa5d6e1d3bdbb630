package rules

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Default limits applied by NewValidator.
const (
	DefaultMaxRules      = 100
	DefaultMaxConditions = 10
	DefaultMaxActions    = 5
)

// Report lists the problems found in a rule-set document. Errors make the
// document unusable; warnings are advisory.
type Report struct {
	Errors   []string
	Warnings []string
}

// HasErrors reports whether any error was recorded.
func (r *Report) HasErrors() bool {
	return len(r.Errors) > 0
}

// ValidationError is returned when a rule-set document has at least one
// error. It carries every error and warning found in the document.
type ValidationError struct {
	Errors   []string
	Warnings []string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString("Validation Errors:")
	for _, msg := range e.Errors {
		sb.WriteString("\n  ERROR: ")
		sb.WriteString(msg)
	}
	if len(e.Warnings) > 0 {
		sb.WriteString("\n\nWarnings:")
		for _, msg := range e.Warnings {
			sb.WriteString("\n  WARNING: ")
			sb.WriteString(msg)
		}
	}
	return sb.String()
}

// Validator checks rule-set documents. The zero value is not usable; use
// NewValidator.
type Validator struct {
	MaxRules      int
	MaxConditions int
	MaxActions    int
}

// NewValidator returns a Validator with the default limits.
func NewValidator() *Validator {
	return &Validator{
		MaxRules:      DefaultMaxRules,
		MaxConditions: DefaultMaxConditions,
		MaxActions:    DefaultMaxActions,
	}
}

// Validate checks a JSON rule-set document. The report is always returned;
// the error is a *ValidationError when the report holds errors.
func (v *Validator) Validate(doc []byte) (*Report, error) {
	_, report, err := v.Compile(doc, FormatJSON)
	return report, err
}

// Compile validates doc and, when it holds no errors, returns its rules in
// document order.
func (v *Validator) Compile(doc []byte, format Format) ([]Rule, *Report, error) {
	c := &checker{v: v, report: &Report{}}

	var rules []Rule
	raw, err := decode(doc, format)
	if err != nil {
		c.errorf("%s", err.Error())
	} else {
		rules = c.document(raw)
	}

	if c.report.HasErrors() {
		return nil, c.report, &ValidationError{
			Errors:   c.report.Errors,
			Warnings: c.report.Warnings,
		}
	}
	return rules, c.report, nil
}

type checker struct {
	v      *Validator
	report *Report
}

func (c *checker) errorf(format string, args ...any) {
	c.report.Errors = append(c.report.Errors, fmt.Sprintf(format, args...))
}

func (c *checker) warnf(format string, args ...any) {
	c.report.Warnings = append(c.report.Warnings, fmt.Sprintf(format, args...))
}

func (c *checker) document(raw any) []Rule {
	obj, ok := raw.(map[string]any)
	if !ok {
		c.errorf("Rules file must contain 'rules' array")
		return nil
	}
	rulesRaw, ok := obj["rules"]
	if !ok {
		c.errorf("Rules file must contain 'rules' array")
		return nil
	}
	list, ok := rulesRaw.([]any)
	if !ok {
		c.errorf("'rules' must be an array")
		return nil
	}
	if len(list) == 0 {
		c.warnf("No rules defined")
		return nil
	}
	if len(list) > c.v.MaxRules {
		c.errorf("Too many rules: %d (max: %d)", len(list), c.v.MaxRules)
	}

	rules := make([]Rule, 0, len(list))
	for i, r := range list {
		if rule, ok := c.rule(r, i); ok {
			rules = append(rules, rule)
		}
	}
	return rules
}

func (c *checker) rule(raw any, idx int) (Rule, bool) {
	before := len(c.report.Errors)

	m, ok := raw.(map[string]any)
	if !ok {
		c.errorf("Rule #%d: must be an object", idx+1)
		return Rule{}, false
	}

	name := fmt.Sprintf("Rule #%d", idx+1)
	if n, present := m["name"]; present {
		if s, ok := n.(string); ok {
			name = s
		} else {
			c.errorf("Rule '%v': 'name' must be a string", n)
		}
	}

	for _, key := range []string{"name", "predicate", "conditions", "actions"} {
		if _, present := m[key]; !present {
			c.errorf("Rule '%s': Missing '%s'", name, key)
		}
	}

	rule := Rule{Name: name}

	if p, present := m["predicate"]; present {
		s, _ := p.(string)
		pred := Predicate(strings.ToLower(s))
		if pred != PredicateAll && pred != PredicateAny {
			c.errorf("Rule '%s': Invalid predicate '%v'. Must be 'all' or 'any'", name, p)
		}
		rule.Predicate = pred
	}

	if raw, present := m["conditions"]; present {
		conds, ok := raw.([]any)
		switch {
		case !ok || len(conds) == 0:
			c.errorf("Rule '%s': Must have at least one condition", name)
		case len(conds) > c.v.MaxConditions:
			c.errorf("Rule '%s': Too many conditions (%d)", name, len(conds))
		default:
			for i, cond := range conds {
				if parsed, ok := c.condition(cond, name, i); ok {
					rule.Conditions = append(rule.Conditions, parsed)
				}
			}
		}
	}

	if raw, present := m["actions"]; present {
		actions, ok := raw.([]any)
		switch {
		case !ok || len(actions) == 0:
			c.errorf("Rule '%s': Must have at least one action", name)
		case len(actions) > c.v.MaxActions:
			c.errorf("Rule '%s': Too many actions (%d)", name, len(actions))
		default:
			for i, action := range actions {
				if parsed, ok := c.action(action, name, i); ok {
					rule.Actions = append(rule.Actions, parsed)
				}
			}
			c.conflicts(actions, name)
		}
	}

	return rule, len(c.report.Errors) == before
}

func (c *checker) condition(raw any, ruleName string, idx int) (Condition, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		c.errorf("Rule '%s', Condition #%d: must be an object", ruleName, idx+1)
		return nil, false
	}
	for _, key := range []string{"field", "predicate", "value"} {
		if _, present := m[key]; !present {
			c.errorf("Rule '%s', Condition #%d: Missing '%s'", ruleName, idx+1, key)
			return nil, false
		}
	}

	fieldName, _ := m["field"].(string)
	field := Field(fieldName)
	if !stringFields[field] && field != FieldReceivedDate {
		c.errorf("Rule '%s', Condition #%d: Invalid field '%v'. Supported: from, subject, message, received_date",
			ruleName, idx+1, m["field"])
		return nil, false
	}
	predicate, _ := m["predicate"].(string)

	if stringFields[field] {
		op := StringOp(predicate)
		if !stringOps[op] {
			c.errorf("Rule '%s', Condition #%d: Invalid predicate '%v' for string field", ruleName, idx+1, m["predicate"])
			return nil, false
		}
		value, ok := scalarString(m["value"])
		if !ok {
			c.errorf("Rule '%s', Condition #%d: Value must be a string", ruleName, idx+1)
			return nil, false
		}
		return StringCondition{Field: field, Op: op, Value: value}, true
	}

	valid := true
	op := DateOp(predicate)
	if !dateOps[op] {
		c.errorf("Rule '%s', Condition #%d: Invalid predicate '%v' for date field", ruleName, idx+1, m["predicate"])
		valid = false
	}

	var unit Unit
	if u, present := m["unit"]; !present {
		c.errorf("Rule '%s', Condition #%d: Date conditions require 'unit' (days/months)", ruleName, idx+1)
		valid = false
	} else {
		s, _ := u.(string)
		unit = Unit(s)
		if !units[unit] {
			c.errorf("Rule '%s', Condition #%d: Invalid unit '%v'", ruleName, idx+1, u)
			valid = false
		}
	}

	amount, err := parseAmount(m["value"])
	switch {
	case err != nil:
		c.errorf("Rule '%s', Condition #%d: Date value must be numeric", ruleName, idx+1)
		valid = false
	case amount <= 0:
		c.errorf("Rule '%s', Condition #%d: Date value must be positive", ruleName, idx+1)
		valid = false
	}

	if !valid {
		return nil, false
	}
	return DateCondition{Op: op, Amount: amount, Unit: unit}, true
}

func (c *checker) action(raw any, ruleName string, idx int) (Action, bool) {
	m, ok := raw.(map[string]any)
	if !ok {
		c.errorf("Rule '%s', Action #%d: must be an object", ruleName, idx+1)
		return Action{}, false
	}
	t, present := m["type"]
	if !present {
		c.errorf("Rule '%s', Action #%d: Missing 'type'", ruleName, idx+1)
		return Action{}, false
	}
	s, _ := t.(string)
	actionType := ActionType(s)
	if !actionTypes[actionType] {
		c.errorf("Rule '%s', Action #%d: Invalid action '%v'", ruleName, idx+1, t)
		return Action{}, false
	}

	action := Action{Type: actionType}
	if actionType == ActionMoveMessage {
		d, present := m["destination"]
		if !present {
			c.errorf("Rule '%s', Action #%d: 'move_message' requires 'destination'", ruleName, idx+1)
			return Action{}, false
		}
		dest, _ := d.(string)
		if strings.TrimSpace(dest) == "" {
			c.errorf("Rule '%s', Action #%d: 'destination' cannot be empty", ruleName, idx+1)
			return Action{}, false
		}
		action.Destination = strings.TrimSpace(dest)
	}
	return action, true
}

// conflicts looks for contradictory or redundant actions within one rule.
func (c *checker) conflicts(actions []any, ruleName string) {
	counts := make(map[ActionType]int)
	var destinations []string
	distinct := make(map[string]struct{})
	for _, raw := range actions {
		m, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		s, _ := m["type"].(string)
		counts[ActionType(s)]++
		if ActionType(s) == ActionMoveMessage {
			dest, _ := m["destination"].(string)
			dest = strings.TrimSpace(dest)
			destinations = append(destinations, dest)
			distinct[dest] = struct{}{}
		}
	}

	if counts[ActionMarkAsRead] > 0 && counts[ActionMarkAsUnread] > 0 {
		c.errorf("Rule '%s': Cannot have both 'mark_as_read' and 'mark_as_unread'", ruleName)
	}
	if counts[ActionMarkAsRead] > 1 {
		c.warnf("Rule '%s': Duplicate 'mark_as_read' actions", ruleName)
	}
	if counts[ActionMarkAsUnread] > 1 {
		c.warnf("Rule '%s': Duplicate 'mark_as_unread' actions", ruleName)
	}
	if len(distinct) > 1 {
		c.warnf("Rule '%s': Multiple move actions - email will have all labels: %s",
			ruleName, strings.Join(destinations, ", "))
	}
}

// scalarString renders a JSON scalar as the string a condition compares
// against. A null value becomes the empty string, which never matches.
func scalarString(v any) (string, bool) {
	switch x := v.(type) {
	case nil:
		return "", true
	case string:
		return x, true
	case json.Number:
		return x.String(), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}

func parseAmount(v any) (int, error) {
	switch x := v.(type) {
	case json.Number:
		if n, err := strconv.Atoi(x.String()); err == nil {
			return n, nil
		}
		// Integral floats such as 5.0 are accepted.
		f, err := x.Float64()
		if err != nil {
			return 0, fmt.Errorf("failed to parse amount %q: %w", x, err)
		}
		if f != math.Trunc(f) || f > math.MaxInt32 || f < math.MinInt32 {
			return 0, fmt.Errorf("amount %q is not a whole number", x)
		}
		return int(f), nil
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, fmt.Errorf("failed to parse amount %q: %w", x, err)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("amount has type %T", v)
	}
}
