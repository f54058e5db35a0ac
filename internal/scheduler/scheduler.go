package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zeromicro/go-zero/core/logx"

	"pricesync/pkg/syncjob"
)

// Runner is the scheduled work, normally syncjob.Job.
type Runner interface {
	RunScheduled(ctx context.Context) (*syncjob.SyncSummary, error)
}

// Scheduler fires Runner on a six-field cron spec (seconds first). Runs never
// overlap: a tick arriving while the previous run is active is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	spec   string
	entry  cron.EntryID
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses spec and registers runner. Times are evaluated in loc; nil
// means UTC.
func New(runner Runner, spec string, loc *time.Location) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler: runner is nil")
	}
	if loc == nil {
		loc = time.UTC
	}
	logger := cronLogger{}
	s := &Scheduler{
		runner: runner,
		spec:   spec,
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
	}
	// The job reads s.ctx when it fires, which is only after Start.
	id, err := s.cron.AddFunc(spec, func() { s.Trigger(s.ctx) })
	if err != nil {
		return nil, fmt.Errorf("scheduler: parse spec %q: %w", spec, err)
	}
	s.entry = id
	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// Start begins firing in the background.
func (s *Scheduler) Start() {
	logx.Infof("scheduler: started spec=%q next=%s", s.spec, s.Next().Format(time.RFC3339))
	s.cron.Start()
}

// Next returns the next fire time, zero before Start.
func (s *Scheduler) Next() time.Time {
	entry := s.cron.Entry(s.entry)
	if entry.Next.IsZero() && entry.Schedule != nil {
		return entry.Schedule.Next(time.Now().In(s.cron.Location()))
	}
	return entry.Next
}

// Stop cancels an in-flight run and waits for it to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		logx.Info("scheduler: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Trigger runs the job once in the calling goroutine. Disabled updates are
// logged and not treated as failures.
func (s *Scheduler) Trigger(ctx context.Context) {
	started := time.Now()
	logger := logx.WithContext(ctx)
	summary, err := s.runner.RunScheduled(ctx)
	switch {
	case errors.Is(err, syncjob.ErrUpdatesDisabled):
		logger.Info("scheduler: updates disabled, nothing to do")
	case errors.Is(err, syncjob.ErrRunInProgress):
		logger.Info("scheduler: another run holds the lock, skipping")
	case err != nil:
		logger.Errorf("scheduler: run failed err=%v", err)
	default:
		logger.Infof("scheduler: run=%s successes=%d failures=%d records=%d cancelled=%t took=%s",
			summary.RunID, summary.Successes, summary.Failures, summary.TotalRecords, summary.Cancelled,
			time.Since(started).Round(time.Millisecond))
	}
}

// cronLogger routes cron's own logging through logx.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	logx.Debugf("scheduler: cron %s %v", msg, keysAndValues)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	logx.Errorf("scheduler: cron %s %v err=%v", msg, keysAndValues, err)
}
