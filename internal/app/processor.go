package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/domain"
	"github.com/lu-zhengda/mailrules/internal/metrics"
	"github.com/lu-zhengda/mailrules/internal/provider"
	"github.com/lu-zhengda/mailrules/internal/rules"
	"github.com/lu-zhengda/mailrules/internal/store"
)

// ErrNoEmails is returned by Process when the store holds no current emails.
var ErrNoEmails = errors.New("no emails in store; run fetch first")

// Processor evaluates rules against the stored emails and applies the
// resulting actions through a mutator.
type Processor struct {
	store   store.Store
	mutator provider.Mutator
	clock   func() time.Time
	dryRun  bool
	logger  *zap.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithDryRun evaluates rules without calling the mutator or writing to the
// store.
func WithDryRun(dryRun bool) ProcessorOption {
	return func(p *Processor) { p.dryRun = dryRun }
}

// WithProcessorClock sets the time rules are evaluated at.
func WithProcessorClock(clock func() time.Time) ProcessorOption {
	return func(p *Processor) { p.clock = clock }
}

// NewProcessor creates a Processor.
func NewProcessor(s store.Store, m provider.Mutator, logger *zap.Logger, opts ...ProcessorOption) *Processor {
	p := &Processor{
		store:   s,
		mutator: m,
		clock:   time.Now,
		logger:  logger.Named("process"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessSummary reports the result of one Process run.
type ProcessSummary struct {
	Emails        int               `json:"emails"`
	Matched       int               `json:"matched"`
	Actions       int               `json:"actions"`
	FailedActions int               `json:"failed_actions"`
	Changed       int               `json:"changed"`
	Batch         store.BatchResult `json:"batch"`
	DryRun        bool              `json:"dry_run"`
}

// Versions is the number of new versions written for changed emails.
func (s *ProcessSummary) Versions() int {
	return s.Batch.Versioned + s.Batch.Inserted
}

// Process runs engine over every current email. Failed actions are logged
// and counted; they never stop the run. Emails whose label set changed are
// written back as new versions.
func (p *Processor) Process(ctx context.Context, engine *rules.Engine) (summary *ProcessSummary, err error) {
	start := time.Now()
	defer func() { metrics.RecordRun("process", err, time.Since(start)) }()

	emails, err := p.store.CurrentAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load emails: %w", err)
	}
	if len(emails) == 0 {
		return nil, ErrNoEmails
	}

	now := p.clock()
	summary = &ProcessSummary{Emails: len(emails), DryRun: p.dryRun}
	var changed []domain.Email

	for i := range emails {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		email := &emails[i]

		actions := engine.EvaluateAllFunc(email, now, func(rule *rules.Rule) {
			metrics.RuleMatches.WithLabelValues(rule.Name).Inc()
		})
		if len(actions) == 0 {
			continue
		}
		summary.Matched++

		if p.dryRun {
			for _, action := range actions {
				summary.Actions++
				metrics.RecordAction(string(action.Type), "dry_run")
				p.logger.Info("would apply action",
					zap.String("email_id", email.ID),
					zap.String("type", string(action.Type)),
					zap.String("destination", action.Destination),
				)
			}
			continue
		}

		labels := p.apply(ctx, email, actions, summary)
		if !domain.SameLabels(email.Labels, labels) {
			p.logger.Info("labels changed",
				zap.String("email_id", email.ID),
				zap.Strings("from", email.Labels),
				zap.Strings("to", labels),
			)
			next := email.Clone()
			next.Labels = labels
			changed = append(changed, *next)
		}
	}

	summary.Changed = len(changed)
	if len(changed) == 0 {
		return summary, nil
	}
	batch, err := p.store.UpsertBatch(ctx, changed)
	summary.Batch = batch
	metrics.RecordUpserts(batch.Inserted, batch.Versioned, batch.Updated, batch.Unchanged, batch.Failed)
	if err != nil {
		return summary, fmt.Errorf("failed to store label changes: %w", err)
	}
	return summary, nil
}

// apply runs actions in order and returns the labels the email carries
// afterwards. The first move of an email moves it; later moves to other
// destinations add their label so the email ends up under every destination.
func (p *Processor) apply(ctx context.Context, email *domain.Email, actions []rules.Action, summary *ProcessSummary) []string {
	labels := slices.Clone(email.Labels)
	moved := false

	for _, action := range actions {
		var (
			labelID string
			err     error
			fanOut  bool
		)
		switch action.Type {
		case rules.ActionMarkAsRead:
			err = p.mutator.MarkRead(ctx, email.ID)
		case rules.ActionMarkAsUnread:
			err = p.mutator.MarkUnread(ctx, email.ID)
		case rules.ActionMoveMessage:
			if moved {
				fanOut = true
				labelID, err = p.mutator.AddLabel(ctx, email.ID, action.Destination)
			} else {
				labelID, err = p.mutator.MoveMessage(ctx, email.ID, action.Destination)
			}
		default:
			err = fmt.Errorf("unknown action type %q", action.Type)
		}

		if err != nil {
			summary.FailedActions++
			metrics.RecordAction(string(action.Type), "failed")
			p.logger.Error("action failed",
				zap.String("email_id", email.ID),
				zap.String("type", string(action.Type)),
				zap.Error(err),
			)
			continue
		}
		if action.Type == rules.ActionMoveMessage {
			moved = true
		}
		summary.Actions++
		metrics.RecordAction(string(action.Type), "applied")
		labels = rewriteLabels(labels, action, labelID, fanOut)
	}
	return labels
}
