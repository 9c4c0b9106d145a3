// Package scheduler runs the daily prediction refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JonnyWalker81/larder/backend/internal/logger"
	"github.com/JonnyWalker81/larder/backend/internal/models"
	"github.com/robfig/cron/v3"
)

// Runner recomputes predictions for every user
type Runner interface {
	AnalyzeAll(ctx context.Context, forceRefresh bool) (*models.BatchResult, error)
}

// Config controls when the job fires and how long a run may take
type Config struct {
	// Spec is a standard five-field cron expression, e.g. "0 6 * * *"
	Spec       string
	Timezone   string
	RunTimeout time.Duration
}

// Scheduler fires a full analysis run on each cron tick. Overlapping
// ticks are skipped while a run is still in progress.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	loc      *time.Location
	runner   Runner
	timeout  time.Duration

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New validates the schedule and timezone and registers the job. The job
// does not fire until Start is called.
func New(runner Runner, cfg Config) (*Scheduler, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", cfg.Timezone, err)
	}

	schedule, err := cron.ParseStandard(cfg.Spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", cfg.Spec, err)
	}

	cl := cronLogger{}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: schedule,
		loc:      loc,
		runner:   runner,
		timeout:  cfg.RunTimeout,
		ctx:      context.Background(),
	}

	s.cron.Schedule(schedule, cron.FuncJob(s.tick))

	return s, nil
}

// Start begins firing the job. Cancelling ctx aborts an in-flight run.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()

	logger.Info("analysis scheduler started",
		logger.String("timezone", s.loc.String()),
		logger.Time("next_run", s.NextRun(time.Now())),
	)
}

// Stop halts the schedule, cancels an in-flight run and waits for it to
// return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	select {
	case <-s.cron.Stop().Done():
		logger.Info("analysis scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop: %w", ctx.Err())
	}
}

// NextRun reports when the job will next fire after the given time
func (s *Scheduler) NextRun(after time.Time) time.Time {
	return s.schedule.Next(after.In(s.loc))
}

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	// Errors are already logged by RunOnce
	_, _ = s.RunOnce(ctx)
}

// RunOnce performs one full recompute bounded by the run timeout. The
// daily job always forces a refresh so every prediction ages at most one
// day.
func (s *Scheduler) RunOnce(ctx context.Context) (*models.BatchResult, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	ctx = logger.WithRunID(ctx, "")
	log := logger.Ctx(ctx)

	start := time.Now()
	log.Info("scheduled analysis started")

	result, err := s.runner.AnalyzeAll(ctx, true)
	if err != nil {
		log.Error("scheduled analysis failed",
			logger.Err(err),
			logger.Duration("duration", time.Since(start)),
		)
		return result, err
	}

	log.Info("scheduled analysis completed",
		logger.Int("users_processed", result.UsersProcessed),
		logger.Int("users_failed", result.UsersFailed),
		logger.Int("predictions_saved", result.PredictionsSaved),
		logger.Int("predictions_pruned", result.PredictionsPruned),
		logger.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// cronLogger adapts the application logger to cron.Logger
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.Debug("cron: "+msg, kvFields(keysAndValues)...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.Error("cron: "+msg, append(kvFields(keysAndValues), logger.Err(err))...)
}

func kvFields(kv []interface{}) []logger.Field {
	fields := make([]logger.Field, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			key = fmt.Sprint(kv[i])
		}
		fields = append(fields, logger.Any(key, kv[i+1]))
	}
	return fields
}
