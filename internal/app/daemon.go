package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/rules"
)

// EngineSource supplies the engine used by each daemon run.
type EngineSource interface {
	Engine() *rules.Engine
}

// StaticEngine returns an EngineSource that always yields e.
func StaticEngine(e *rules.Engine) EngineSource {
	return staticEngine{e}
}

type staticEngine struct{ e *rules.Engine }

func (s staticEngine) Engine() *rules.Engine { return s.e }

// Daemon fetches and processes on a cron schedule.
type Daemon struct {
	fetcher   *Fetcher
	processor *Processor
	engines   EngineSource
	schedule  string
	maxEmails int
	logger    *zap.Logger
}

// NewDaemon creates a Daemon running fetch then process on schedule.
func NewDaemon(f *Fetcher, p *Processor, engines EngineSource, schedule string, maxEmails int, logger *zap.Logger) *Daemon {
	return &Daemon{
		fetcher:   f,
		processor: p,
		engines:   engines,
		schedule:  schedule,
		maxEmails: maxEmails,
		logger:    logger.Named("daemon"),
	}
}

// RunOnce performs one fetch and one process run.
func (d *Daemon) RunOnce(ctx context.Context) error {
	fetched, err := d.fetcher.Fetch(ctx, d.maxEmails)
	if err != nil {
		if fetched == nil {
			return err
		}
		// Partially stored batches are still processed.
		d.logger.Warn("fetch incomplete", zap.Error(err))
	}

	summary, err := d.processor.Process(ctx, d.engines.Engine())
	if errors.Is(err, ErrNoEmails) {
		d.logger.Info("no emails to process")
		return nil
	}
	if err != nil {
		return err
	}
	d.logger.Info("run complete",
		zap.Int("fetched", fetched.Fetched),
		zap.Int("matched", summary.Matched),
		zap.Int("actions", summary.Actions),
		zap.Int("failed_actions", summary.FailedActions),
		zap.Int("versions", summary.Versions()),
	)
	return nil
}

// Run schedules RunOnce and blocks until ctx is done. Runs never overlap.
func (d *Daemon) Run(ctx context.Context) error {
	if _, err := cron.ParseStandard(d.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", d.schedule, err)
	}

	logger := cronLogger{d.logger.Sugar()}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(d.schedule, func() {
		if err := d.RunOnce(ctx); err != nil {
			d.logger.Error("scheduled run failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule run: %w", err)
	}

	c.Start()
	d.logger.Info("daemon started", zap.String("schedule", d.schedule))

	<-ctx.Done()
	<-c.Stop().Done()
	d.logger.Info("daemon stopped")
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
