package rules

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func validate(t *testing.T, doc string) (*Report, error) {
	t.Helper()
	report, err := NewValidator().Validate([]byte(doc))
	if report == nil {
		t.Fatal("Validate() returned nil report")
	}
	return report, err
}

func containsMessage(msgs []string, sub string) bool {
	for _, m := range msgs {
		if strings.Contains(m, sub) {
			return true
		}
	}
	return false
}

func TestValidate_ValidDocument(t *testing.T) {
	doc := `{"rules": [{
		"name": "Boss",
		"predicate": "ALL",
		"conditions": [
			{"field": "from", "predicate": "contains", "value": "boss"},
			{"field": "received_date", "predicate": "less_than", "value": "30", "unit": "days"}
		],
		"actions": [{"type": "move_message", "destination": "FromBoss"}, {"type": "mark_as_read"}]
	}]}`

	report, err := validate(t, doc)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if len(report.Errors) != 0 || len(report.Warnings) != 0 {
		t.Errorf("report = %+v, want empty", report)
	}
}

func TestValidate_Structural(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"invalid json", `{"rules": [`, "Invalid JSON"},
		{"not an object", `[1, 2]`, "must contain 'rules' array"},
		{"missing rules", `{"other": []}`, "must contain 'rules' array"},
		{"rules not array", `{"rules": {"name": "x"}}`, "'rules' must be an array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := validate(t, tt.doc)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			if len(report.Errors) != 1 {
				t.Fatalf("errors = %v, want exactly one structural error", report.Errors)
			}
			if !strings.Contains(report.Errors[0], tt.want) {
				t.Errorf("error = %q, want it to contain %q", report.Errors[0], tt.want)
			}
		})
	}
}

func TestValidate_EmptyRulesWarns(t *testing.T) {
	report, err := validate(t, `{"rules": []}`)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if !containsMessage(report.Warnings, "No rules defined") {
		t.Errorf("warnings = %v, want 'No rules defined'", report.Warnings)
	}
}

func TestValidate_TooManyRulesStillChecksEachRule(t *testing.T) {
	v := &Validator{MaxRules: 2, MaxConditions: 10, MaxActions: 5}
	var parts []string
	for i := 0; i < 3; i++ {
		parts = append(parts, fmt.Sprintf(`{"name": "r%d", "predicate": "any",
			"conditions": [{"field": "subject", "predicate": "contains", "value": "x"}],
			"actions": [{"type": "mark_as_read"}]}`, i))
	}
	parts = append(parts, `{"name": "broken", "predicate": "sometimes",
		"conditions": [{"field": "subject", "predicate": "contains", "value": "x"}],
		"actions": [{"type": "mark_as_read"}]}`)
	doc := `{"rules": [` + strings.Join(parts, ",") + `]}`

	report, err := v.Validate([]byte(doc))
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	if !containsMessage(report.Errors, "Too many rules: 4 (max: 2)") {
		t.Errorf("errors = %v, want too many rules", report.Errors)
	}
	if !containsMessage(report.Errors, "Rule 'broken': Invalid predicate 'sometimes'") {
		t.Errorf("errors = %v, want per-rule predicate error", report.Errors)
	}
}

func TestValidate_RuleErrors(t *testing.T) {
	tests := []struct {
		name string
		rule string
		want string
	}{
		{
			"missing fields",
			`{"name": "r"}`,
			"Rule 'r': Missing 'predicate'",
		},
		{
			"unnamed rule uses index",
			`{"predicate": "all", "conditions": [{"field": "from", "predicate": "contains", "value": "a"}], "actions": [{"type": "mark_as_read"}]}`,
			"Rule 'Rule #1': Missing 'name'",
		},
		{
			"not an object",
			`"rule"`,
			"Rule #1: must be an object",
		},
		{
			"empty conditions",
			`{"name": "r", "predicate": "all", "conditions": [], "actions": [{"type": "mark_as_read"}]}`,
			"Must have at least one condition",
		},
		{
			"conditions not array",
			`{"name": "r", "predicate": "all", "conditions": "from", "actions": [{"type": "mark_as_read"}]}`,
			"Must have at least one condition",
		},
		{
			"empty actions",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "from", "predicate": "contains", "value": "a"}], "actions": []}`,
			"Must have at least one action",
		},
		{
			"condition missing value",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "from", "predicate": "contains"}], "actions": [{"type": "mark_as_read"}]}`,
			"Condition #1: Missing 'value'",
		},
		{
			"unsupported field",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "to", "predicate": "contains", "value": "a"}], "actions": [{"type": "mark_as_read"}]}`,
			"Invalid field 'to'",
		},
		{
			"date predicate on string field",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "subject", "predicate": "less_than", "value": "a"}], "actions": [{"type": "mark_as_read"}]}`,
			"Invalid predicate 'less_than' for string field",
		},
		{
			"string predicate on date field",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "received_date", "predicate": "contains", "value": "3", "unit": "days"}], "actions": [{"type": "mark_as_read"}]}`,
			"Invalid predicate 'contains' for date field",
		},
		{
			"date without unit",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "received_date", "predicate": "less_than", "value": "3"}], "actions": [{"type": "mark_as_read"}]}`,
			"Date conditions require 'unit'",
		},
		{
			"date with bad unit",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "received_date", "predicate": "less_than", "value": "3", "unit": "weeks"}], "actions": [{"type": "mark_as_read"}]}`,
			"Invalid unit 'weeks'",
		},
		{
			"date value not numeric",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "received_date", "predicate": "less_than", "value": "soon", "unit": "days"}], "actions": [{"type": "mark_as_read"}]}`,
			"Date value must be numeric",
		},
		{
			"date value fractional",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "received_date", "predicate": "less_than", "value": 5.5, "unit": "days"}], "actions": [{"type": "mark_as_read"}]}`,
			"Date value must be numeric",
		},
		{
			"date value zero",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "received_date", "predicate": "less_than", "value": 0, "unit": "days"}], "actions": [{"type": "mark_as_read"}]}`,
			"Date value must be positive",
		},
		{
			"unknown action",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "from", "predicate": "contains", "value": "a"}], "actions": [{"type": "delete"}]}`,
			"Action #1: Invalid action 'delete'",
		},
		{
			"action missing type",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "from", "predicate": "contains", "value": "a"}], "actions": [{"destination": "x"}]}`,
			"Action #1: Missing 'type'",
		},
		{
			"move without destination",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "from", "predicate": "contains", "value": "a"}], "actions": [{"type": "move_message"}]}`,
			"'move_message' requires 'destination'",
		},
		{
			"move with blank destination",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "from", "predicate": "contains", "value": "a"}], "actions": [{"type": "move_message", "destination": "   "}]}`,
			"'destination' cannot be empty",
		},
		{
			"contradictory actions",
			`{"name": "r", "predicate": "all", "conditions": [{"field": "from", "predicate": "contains", "value": "a"}], "actions": [{"type": "mark_as_read"}, {"type": "mark_as_unread"}]}`,
			"Cannot have both 'mark_as_read' and 'mark_as_unread'",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := validate(t, `{"rules": [`+tt.rule+`]}`)
			if err == nil {
				t.Fatal("Validate() error = nil, want error")
			}
			if !containsMessage(report.Errors, tt.want) {
				t.Errorf("errors = %v, want one containing %q", report.Errors, tt.want)
			}
		})
	}
}

func TestValidate_LimitsPerRule(t *testing.T) {
	cond := `{"field": "from", "predicate": "contains", "value": "a"}`
	var conds []string
	for i := 0; i < 11; i++ {
		conds = append(conds, cond)
	}
	doc := `{"rules": [{"name": "big", "predicate": "any", "conditions": [` + strings.Join(conds, ",") + `],
		"actions": [{"type": "mark_as_read"}, {"type": "mark_as_read"}, {"type": "mark_as_read"},
			{"type": "mark_as_read"}, {"type": "mark_as_read"}, {"type": "mark_as_read"}]}]}`

	report, err := validate(t, doc)
	if err == nil {
		t.Fatal("Validate() error = nil, want error")
	}
	if !containsMessage(report.Errors, "Too many conditions (11)") {
		t.Errorf("errors = %v, want too many conditions", report.Errors)
	}
	if !containsMessage(report.Errors, "Too many actions (6)") {
		t.Errorf("errors = %v, want too many actions", report.Errors)
	}
}

func TestValidate_Warnings(t *testing.T) {
	doc := `{"rules": [
		{"name": "dupes", "predicate": "any",
		 "conditions": [{"field": "from", "predicate": "contains", "value": "a"}],
		 "actions": [{"type": "mark_as_read"}, {"type": "mark_as_read"}]},
		{"name": "fanout", "predicate": "any",
		 "conditions": [{"field": "from", "predicate": "contains", "value": "a"}],
		 "actions": [{"type": "move_message", "destination": "A"}, {"type": "move_message", "destination": "B"}]},
		{"name": "same move", "predicate": "any",
		 "conditions": [{"field": "from", "predicate": "contains", "value": "a"}],
		 "actions": [{"type": "move_message", "destination": "A"}, {"type": "move_message", "destination": "A"}]},
		{"name": "padded move", "predicate": "any",
		 "conditions": [{"field": "from", "predicate": "contains", "value": "a"}],
		 "actions": [{"type": "move_message", "destination": "A"}, {"type": "move_message", "destination": " A "}]}
	]}`

	report, err := validate(t, doc)
	if err != nil {
		t.Fatalf("Validate() error: %v", err)
	}
	if !containsMessage(report.Warnings, "Rule 'dupes': Duplicate 'mark_as_read' actions") {
		t.Errorf("warnings = %v, want duplicate warning", report.Warnings)
	}
	if !containsMessage(report.Warnings, "Rule 'fanout': Multiple move actions - email will have all labels: A, B") {
		t.Errorf("warnings = %v, want fan-out warning", report.Warnings)
	}
	for _, name := range []string{"same move", "padded move"} {
		if containsMessage(report.Warnings, name) {
			t.Errorf("warnings = %v, identical destinations in %q should not warn", report.Warnings, name)
		}
	}
}

func TestValidate_AccumulatesAllErrors(t *testing.T) {
	doc := `{"rules": [
		{"name": "one", "predicate": "maybe", "conditions": [], "actions": []},
		{"name": "two", "predicate": "all",
		 "conditions": [{"field": "body", "predicate": "contains", "value": "x"}],
		 "actions": [{"type": "archive"}]}
	]}`

	_, err := validate(t, doc)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if len(verr.Errors) != 5 {
		t.Errorf("got %d errors, want 5: %v", len(verr.Errors), verr.Errors)
	}
}

func TestValidationError_Format(t *testing.T) {
	err := &ValidationError{
		Errors:   []string{"Rule 'a': Missing 'name'"},
		Warnings: []string{"Rule 'b': Duplicate 'mark_as_read' actions"},
	}
	want := "Validation Errors:\n  ERROR: Rule 'a': Missing 'name'\n\nWarnings:\n  WARNING: Rule 'b': Duplicate 'mark_as_read' actions"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestCompile_YAML(t *testing.T) {
	doc := `
rules:
  - name: Newsletters
    predicate: any
    conditions:
      - field: subject
        predicate: contains
        value: newsletter
      - field: received_date
        predicate: greater_than
        value: 2
        unit: months
    actions:
      - type: move_message
        destination: Reading
`
	rules, _, err := NewValidator().Compile([]byte(doc), FormatYAML)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	if len(rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(rules))
	}
	dc, ok := rules[0].Conditions[1].(DateCondition)
	if !ok {
		t.Fatalf("condition 2 is %T, want DateCondition", rules[0].Conditions[1])
	}
	if dc.Amount != 2 || dc.Unit != UnitMonths || dc.Op != OpGreaterThan {
		t.Errorf("date condition = %+v", dc)
	}
}

func TestCompile_IntegralFloatAmount(t *testing.T) {
	doc := `{"rules": [{"name": "r", "predicate": "all",
		"conditions": [{"field": "received_date", "predicate": "less_than", "value": 5.0, "unit": "days"}],
		"actions": [{"type": "mark_as_read"}]}]}`
	rules, _, err := NewValidator().Compile([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	dc := rules[0].Conditions[0].(DateCondition)
	if dc.Amount != 5 {
		t.Errorf("Amount = %d, want 5", dc.Amount)
	}
}

func TestCompile_NormalizesPredicate(t *testing.T) {
	doc := `{"rules": [{"name": "r", "predicate": "Any",
		"conditions": [{"field": "message", "predicate": "equals", "value": 42}],
		"actions": [{"type": "move_message", "destination": " Work "}]}]}`
	rules, _, err := NewValidator().Compile([]byte(doc), FormatJSON)
	if err != nil {
		t.Fatalf("Compile() error: %v", err)
	}
	r := rules[0]
	if r.Predicate != PredicateAny {
		t.Errorf("Predicate = %q, want %q", r.Predicate, PredicateAny)
	}
	sc := r.Conditions[0].(StringCondition)
	if sc.Value != "42" || sc.Field != FieldMessage {
		t.Errorf("string condition = %+v", sc)
	}
	if r.Actions[0].Destination != "Work" {
		t.Errorf("Destination = %q, want %q", r.Actions[0].Destination, "Work")
	}
}

func TestFormatFromPath(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"rules.json", FormatJSON},
		{"rules.yaml", FormatYAML},
		{"conf/rules.YML", FormatYAML},
		{"rules", FormatJSON},
	}
	for _, tt := range tests {
		if got := FormatFromPath(tt.path); got != tt.want {
			t.Errorf("FormatFromPath(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}
