// Package scheduler runs periodic maintenance jobs on cron schedules.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// JobFunc is a scheduled job.
type JobFunc func(ctx context.Context) error

// JobID identifies a registered cron job.
type JobID = cron.EntryID

// OverlapPolicy decides what happens when a job fires while a previous run is
// still going.
type OverlapPolicy int

const (
	// AllowOverlap runs invocations concurrently.
	AllowOverlap OverlapPolicy = iota
	// SkipIfRunning drops the invocation if the previous one is still running.
	SkipIfRunning
	// DelayIfRunning waits for the previous invocation to finish.
	DelayIfRunning
)

// JobOptions configures a job.
type JobOptions struct {
	// Name is used in log records.
	Name string
	// Timeout bounds one invocation (zero means no limit).
	Timeout time.Duration
	OverlapPolicy OverlapPolicy
}

// cronLogger bridges the cron logger interface onto slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.LogAttrs(context.Background(), slog.LevelInfo, msg, kvAttrs(keysAndValues)...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	attrs := append([]slog.Attr{slog.Any("error", err)}, kvAttrs(keysAndValues)...)
	l.logger.LogAttrs(context.Background(), slog.LevelError, msg, attrs...)
}

func kvAttrs(keysAndValues []interface{}) []slog.Attr {
	attrs := make([]slog.Attr, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		if key, ok := keysAndValues[i].(string); ok {
			attrs = append(attrs, slog.Any(key, keysAndValues[i+1]))
		}
	}
	return attrs
}

// Scheduler manages periodic jobs.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New creates a scheduler logging through log.
func New(log *slog.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cronLogger{logger: log})),
		logger: log,
		ctx:    ctx,
		cancel: cancel,
	}
}

// AddJob registers job to run on the cron schedule spec.
func (s *Scheduler) AddJob(spec string, job JobFunc, opts JobOptions) (JobID, error) {
	if opts.Name == "" {
		opts.Name = "job"
	}
	var running sync.Mutex

	id, err := s.cron.AddFunc(spec, func() {
		switch opts.OverlapPolicy {
		case SkipIfRunning:
			if !running.TryLock() {
				s.logger.Debug("job skipped, previous run still active", "job", opts.Name)
				return
			}
			defer running.Unlock()
		case DelayIfRunning:
			running.Lock()
			defer running.Unlock()
		}

		s.wg.Add(1)
		defer s.wg.Done()

		ctx := s.ctx
		if opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
			defer cancel()
		}

		start := time.Now()
		if err := job(ctx); err != nil {
			s.logger.Error("job failed", "job", opts.Name, "duration", time.Since(start), "error", err)
			return
		}
		s.logger.Debug("job finished", "job", opts.Name, "duration", time.Since(start))
	})
	if err != nil {
		return 0, fmt.Errorf("failed to schedule %s: %w", opts.Name, err)
	}
	return id, nil
}

// Start begins executing scheduled jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		<-s.cron.Stop().Done()
		s.cancel()
		s.wg.Wait()
	})
}
