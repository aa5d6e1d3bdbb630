package rules

import (
	"fmt"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/domain"
)

// maxDays is the largest day count whose duration fits in a time.Duration.
const maxDays = int64(math.MaxInt64 / int64(24*time.Hour))

// Engine evaluates a validated rule set. It holds no mutable state and is
// safe for concurrent use.
type Engine struct {
	rules    []Rule
	warnings []string
	logger   *zap.Logger
}

type engineOptions struct {
	validator *Validator
	logger    *zap.Logger
	format    *Format
}

// Option configures NewEngine and LoadFile.
type Option func(*engineOptions)

// WithValidator replaces the default validator, e.g. to change limits.
func WithValidator(v *Validator) Option {
	return func(o *engineOptions) { o.validator = v }
}

// WithLogger sets the logger used for validation warnings and rule matches.
func WithLogger(l *zap.Logger) Option {
	return func(o *engineOptions) { o.logger = l }
}

// WithFormat forces the document format instead of guessing it from the
// file extension.
func WithFormat(f Format) Option {
	return func(o *engineOptions) { o.format = &f }
}

// NewEngine validates doc and returns an engine holding its rules. A
// document with errors yields the validator's *ValidationError.
func NewEngine(doc []byte, opts ...Option) (*Engine, error) {
	o := engineOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.validator == nil {
		o.validator = NewValidator()
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	format := FormatJSON
	if o.format != nil {
		format = *o.format
	}

	rules, report, err := o.validator.Compile(doc, format)
	if err != nil {
		return nil, err
	}
	for _, w := range report.Warnings {
		o.logger.Warn("rule set warning", zap.String("warning", w))
	}
	o.logger.Info("loaded validated rules", zap.Int("count", len(rules)))

	return &Engine{
		rules:    rules,
		warnings: report.Warnings,
		logger:   o.logger,
	}, nil
}

// LoadFile reads and validates the rule set at path.
func LoadFile(path string, opts ...Option) (*Engine, error) {
	doc, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	opts = append([]Option{WithFormat(FormatFromPath(path))}, opts...)
	return NewEngine(doc, opts...)
}

// Rules returns the rules in document order.
func (e *Engine) Rules() []Rule {
	return slices.Clone(e.rules)
}

// Warnings returns the advisory messages produced during validation.
func (e *Engine) Warnings() []string {
	return slices.Clone(e.warnings)
}

// EvaluateAll runs every rule against email and returns the actions of all
// matching rules, in rule order and then action order.
func (e *Engine) EvaluateAll(email *domain.Email, now time.Time) []Action {
	return e.EvaluateAllFunc(email, now, nil)
}

// EvaluateAllFunc is EvaluateAll with onMatch called for every matching
// rule, in rule order. onMatch may be nil.
func (e *Engine) EvaluateAllFunc(email *domain.Email, now time.Time, onMatch func(rule *Rule)) []Action {
	var actions []Action
	for i := range e.rules {
		rule := &e.rules[i]
		if !e.EvaluateRule(rule, email, now) {
			continue
		}
		e.logger.Debug("rule matched", zap.String("rule", rule.Name), zap.String("email_id", email.ID))
		if onMatch != nil {
			onMatch(rule)
		}
		actions = append(actions, rule.Actions...)
	}
	return actions
}

// EvaluateRule evaluates every condition of rule and combines the results
// with the rule predicate.
func (e *Engine) EvaluateRule(rule *Rule, email *domain.Email, now time.Time) bool {
	results := make([]bool, len(rule.Conditions))
	for i, cond := range rule.Conditions {
		results[i] = e.EvaluateCondition(cond, email, now)
	}

	switch rule.Predicate {
	case PredicateAll:
		return !slices.Contains(results, false)
	case PredicateAny:
		return slices.Contains(results, true)
	default:
		return false
	}
}

// EvaluateCondition reports whether a single condition holds for email at
// time now. It never fails; anything it cannot evaluate is false.
func (e *Engine) EvaluateCondition(cond Condition, email *domain.Email, now time.Time) bool {
	switch c := cond.(type) {
	case StringCondition:
		return matchString(c, fieldValue(c.Field, email))
	case DateCondition:
		return matchDate(c, email.ReceivedAt, now)
	default:
		return false
	}
}

func fieldValue(field Field, email *domain.Email) string {
	switch field {
	case FieldFrom:
		return email.From
	case FieldSubject:
		return email.Subject
	case FieldMessage:
		return email.Body
	default:
		return ""
	}
}

func matchString(c StringCondition, value string) bool {
	want := strings.ToLower(strings.TrimSpace(c.Value))
	if want == "" {
		return false
	}
	got := strings.ToLower(strings.TrimSpace(value))

	switch c.Op {
	case OpContains:
		return strings.Contains(got, want)
	case OpDoesNotContain:
		return !strings.Contains(got, want)
	case OpEquals:
		return got == want
	case OpDoesNotEqual:
		return got != want
	default:
		return false
	}
}

func matchDate(c DateCondition, receivedAt *time.Time, now time.Time) bool {
	if receivedAt == nil || receivedAt.IsZero() {
		return false
	}
	at := *receivedAt
	// Zone-less timestamps are read in the local zone; compare those
	// against a local clock and everything else in UTC.
	if at.Location() != time.Local {
		at = at.UTC()
		now = now.UTC()
	}

	days := int64(c.Amount)
	switch c.Unit {
	case UnitDays:
	case UnitMonths:
		if days > maxDays/30 {
			return false
		}
		days *= 30
	default:
		return false
	}
	if days <= 0 || days > maxDays {
		return false
	}
	threshold := now.Add(-time.Duration(days) * 24 * time.Hour)

	switch c.Op {
	case OpLessThan:
		return at.After(threshold)
	case OpGreaterThan:
		return at.Before(threshold)
	default:
		return false
	}
}
