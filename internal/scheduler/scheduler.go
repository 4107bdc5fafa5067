// Package scheduler triggers pre-generation runs on a cron schedule inside
// the serving process.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	cronlib "github.com/robfig/cron/v3"

	"github.com/ttsblind/pregen/internal/logging"
	"github.com/ttsblind/pregen/internal/svc"
)

// parser accepts standard 5-field expressions, an optional leading seconds
// field and descriptors such as @hourly or @every 10m.
var parser = cronlib.NewParser(cronlib.SecondOptional | cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)

// Scheduler runs batches on a schedule. A tick that fires while the previous
// batch is still running is skipped.
type Scheduler struct {
	cron   *cronlib.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates expr and prepares a scheduler that runs up to maxItems per
// batch. Nothing runs until Start.
func New(expr string, maxItems int, runner svc.Runner) (*Scheduler, error) {
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}

	log := cronLogger{logging.L().With("component", "scheduler")}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cronlib.New(
			cronlib.WithParser(parser),
			cronlib.WithLogger(log),
			cronlib.WithChain(cronlib.Recover(log), cronlib.SkipIfStillRunning(log)),
		),
		ctx:    ctx,
		cancel: cancel,
	}
	s.cron.Schedule(schedule, cronlib.FuncJob(func() {
		summary, err := runner.Run(s.ctx, maxItems, "")
		if err != nil {
			log.l.Error("Scheduled pre-generation failed", "error", err)
			return
		}
		log.l.Info("Scheduled pre-generation finished",
			"attempted", summary.Attempted,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"skipped", summary.Skipped)
	}))
	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents further ticks, cancels a running batch and waits for it to
// return or for ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// cronLogger adapts slog to the cron library's logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debug(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Error(msg, append(keysAndValues, "error", err)...)
}
