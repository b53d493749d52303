// Package scheduled fires SCHEDULED triggers whose cron expression is due.
package scheduled

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/flowgraph/pkg/models"
	"github.com/dukex/flowgraph/pkg/schedule"
	"github.com/dukex/flowgraph/pkg/triggers"
	"github.com/robfig/cron/v3"
)

const DefaultInterval = time.Minute

type TriggerLister interface {
	ListEnabledByType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowTrigger, error)
}

// Scheduler evaluates every enabled scheduled trigger on a fixed interval.
type Scheduler struct {
	logger     *slog.Logger
	triggers   TriggerLister
	dispatcher triggers.Firer
	interval   time.Duration
	now        func() time.Time
	cron       *cron.Cron
}

func NewScheduler(logger *slog.Logger, lister TriggerLister, dispatcher triggers.Firer, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		logger:     logger.With("module", "trigger_scheduler"),
		triggers:   lister,
		dispatcher: dispatcher,
		interval:   interval,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start runs Evaluate every interval until Stop is called or ctx is done.
// A tick that is still running when the next one is due is skipped.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.cron != nil {
		return errors.New("scheduler already started")
	}

	logger := cronLogger{logger: s.logger}

	s.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(logger),
		cron.Recover(logger),
	))

	s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(func() {
		s.Evaluate(ctx)
	}))

	s.cron.Start()

	s.logger.InfoContext(ctx, "scheduler started", "interval", s.interval)

	return nil
}

// Stop halts the ticker and waits for a running evaluation until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.cron == nil {
		return nil
	}

	select {
	case <-s.cron.Stop().Done():
		s.logger.InfoContext(ctx, "scheduler stopped")

		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Evaluate fires the due triggers once and returns how many started an
// execution.
func (s *Scheduler) Evaluate(ctx context.Context) int {
	list, err := s.triggers.ListEnabledByType(ctx, models.TriggerTypeScheduled)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list scheduled triggers", "error", err)

		return 0
	}

	now := s.now()
	fired := 0

	for _, trigger := range list {
		_, err := s.dispatcher.Fire(ctx, triggers.FireRequest{
			TriggerID: trigger.ID,
			Type:      models.TriggerTypeScheduled,
			Parameters: map[string]any{
				"scheduled_at": now.Format(time.RFC3339),
			},
			Check: Due(now),
		})

		switch {
		case err == nil:
			fired++
		case errors.Is(err, triggers.ErrNotDue), errors.Is(err, triggers.ErrTriggerDisabled):
		case errors.Is(err, triggers.ErrExhausted):
			s.logger.InfoContext(ctx, "scheduled trigger retired", "trigger_id", trigger.ID, "reason", err)
		default:
			s.logger.ErrorContext(ctx, "scheduled trigger failed", "trigger_id", trigger.ID, "error", err)
		}
	}

	return fired
}

// Due reports, at now, whether a scheduled trigger should fire. The cron is
// evaluated from the last execution, or from creation when it never ran.
func Due(now time.Time) func(*models.WorkflowTrigger) error {
	return func(trigger *models.WorkflowTrigger) error {
		config := trigger.Config

		if config.EndDate != nil && now.After(*config.EndDate) {
			return fmt.Errorf("%w: end date %s passed", triggers.ErrExhausted, config.EndDate.Format(time.RFC3339))
		}

		if config.MaxExecutions > 0 && trigger.ExecutionCount >= int64(config.MaxExecutions) {
			return fmt.Errorf("%w: %d executions reached", triggers.ErrExhausted, config.MaxExecutions)
		}

		if config.StartDate != nil && now.Before(*config.StartDate) {
			return triggers.ErrNotDue
		}

		last := trigger.CreatedAt
		if trigger.LastExecutionAt != nil {
			last = *trigger.LastExecutionAt
		}

		if config.StartDate != nil && last.Before(*config.StartDate) {
			last = config.StartDate.Add(-time.Nanosecond)
		}

		due, err := schedule.IsDue(config.CronExpression, config.Timezone, last, now)
		if err != nil {
			return err
		}

		if !due {
			return triggers.ErrNotDue
		}

		return nil
	}
}

type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
