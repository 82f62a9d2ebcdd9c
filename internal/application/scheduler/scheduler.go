// Package scheduler triggers batch checks on a cron schedule and on demand,
// allowing at most one batch at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/khanhnv2901/seca-certwatch/internal/application/monitor"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/settings"
	"github.com/khanhnv2901/seca-certwatch/internal/metrics"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

// Trigger names the source of a batch run.
type Trigger string

const (
	TriggerCron   Trigger = "cron"
	TriggerManual Trigger = "manual"
)

// BatchRunner runs one full batch.
type BatchRunner interface {
	RunAllChecks(ctx context.Context) monitor.BatchSummary
}

// BatchLock excludes batches started by other processes sharing the data
// directory. TryLock reports false when another holder has it.
type BatchLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithBatchLock makes every batch hold lock while it runs.
func WithBatchLock(lock BatchLock) Option {
	return func(s *Scheduler) { s.lock = lock }
}

// Info describes the current schedule.
type Info struct {
	Active     bool      `json:"active"`
	Expression string    `json:"cron_expression"`
	Timezone   string    `json:"timezone"`
	NextRun    time.Time `json:"next_run,omitempty"`
	Running    bool      `json:"running"`
}

type result struct {
	summary monitor.BatchSummary
	err     error
}

type request struct {
	trigger Trigger
	reply   chan result
}

// Scheduler feeds batch requests to a single worker goroutine.
type Scheduler struct {
	runner BatchRunner
	logger *zap.Logger
	lock   BatchLock

	requests chan request
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	busy     atomic.Bool

	mu       sync.Mutex
	started  bool
	stopped  bool
	cron     *cron.Cron
	entry    cron.EntryID
	expr     string
	timezone string
}

// New creates a scheduler. Call Start before triggering runs.
func New(runner BatchRunner, logger *zap.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{
		runner:   runner,
		logger:   logger,
		requests: make(chan request, 1),
		quit:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker. Batches run with ctx; cancelling it stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return sharedErrors.ErrSchedulerClosed
	}
	if s.started {
		return nil
	}
	s.started = true

	s.wg.Add(1)
	go s.work(ctx)

	if s.cron != nil {
		s.cron.Start()
	}
	return nil
}

// Schedule replaces the recurring trigger. The expression and timezone are
// validated first; on error the previous schedule stays in effect.
func (s *Scheduler) Schedule(expr, timezone string) error {
	sched, err := settings.ParseSchedule(expr)
	if err != nil {
		return err
	}
	loc, err := (settings.Settings{Timezone: timezone}).Location()
	if err != nil {
		return err
	}

	c := cron.New(cron.WithLocation(loc))
	entry := c.Schedule(sched, cron.FuncJob(s.fire))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return sharedErrors.ErrSchedulerClosed
	}

	if s.cron != nil {
		s.cron.Stop()
	}
	s.cron, s.entry, s.expr, s.timezone = c, entry, expr, loc.String()
	if s.started {
		c.Start()
	}

	s.logger.Info("check schedule updated",
		zap.String("cron", expr),
		zap.String("timezone", loc.String()))
	return nil
}

// Unschedule removes the recurring trigger. Manual runs keep working.
func (s *Scheduler) Unschedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		s.cron.Stop()
	}
	s.cron, s.entry, s.expr, s.timezone = nil, 0, "", ""
}

// RunNow runs a batch immediately and waits for its summary. It fails with
// ErrAlreadyRunning while another batch is active. If ctx ends first the batch
// continues in the background and ctx.Err() is returned.
func (s *Scheduler) RunNow(ctx context.Context) (monitor.BatchSummary, error) {
	reply := make(chan result, 1)
	if err := s.submit(TriggerManual, reply); err != nil {
		return monitor.BatchSummary{}, err
	}

	select {
	case res := <-reply:
		return res.summary, res.err
	case <-ctx.Done():
		return monitor.BatchSummary{}, ctx.Err()
	}
}

// Running reports whether a batch is active.
func (s *Scheduler) Running() bool {
	return s.busy.Load()
}

// Info returns the schedule state.
func (s *Scheduler) Info() Info {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{
		Active:     s.cron != nil,
		Expression: s.expr,
		Timezone:   s.timezone,
		Running:    s.busy.Load(),
	}
	if s.cron != nil {
		if s.started {
			info.NextRun = s.cron.Entry(s.entry).Next
		}
		if info.NextRun.IsZero() {
			if sched, err := settings.ParseSchedule(s.expr); err == nil {
				loc, _ := time.LoadLocation(s.timezone)
				info.NextRun = sched.Next(time.Now().In(loc))
			}
		}
	}
	return info
}

// Stop halts the cron trigger and waits for an active batch to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	if s.cron != nil {
		s.cron.Stop()
	}
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.quit) })
	s.wg.Wait()
}

func (s *Scheduler) fire() {
	reply := make(chan result, 1)
	err := s.submit(TriggerCron, reply)
	if err == nil {
		go func() { s.logSkipped(<-reply) }()
		return
	}
	switch {
	case err == nil:
	case errors.Is(err, sharedErrors.ErrAlreadyRunning):
		s.logger.Info("skipping scheduled check", zap.String("reason", "already running"))
	default:
		s.logger.Warn("failed to trigger scheduled check", zap.Error(err))
	}
}

func (s *Scheduler) logSkipped(res result) {
	if errors.Is(res.err, sharedErrors.ErrAlreadyRunning) {
		s.logger.Info("skipping scheduled check", zap.String("reason", "running in another process"))
	}
}

func (s *Scheduler) submit(trigger Trigger, reply chan result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started || s.stopped {
		return sharedErrors.ErrSchedulerClosed
	}
	if !s.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: a batch is in progress", sharedErrors.ErrAlreadyRunning)
	}
	// The busy flag admits one request at a time, so the buffered send never blocks.
	s.requests <- request{trigger: trigger, reply: reply}
	return nil
}

func (s *Scheduler) work(ctx context.Context) {
	defer s.wg.Done()
	defer s.drain()

	for {
		select {
		case <-s.quit:
			return
		case <-ctx.Done():
			return
		case req := <-s.requests:
			s.run(ctx, req)
		}
	}
}

func (s *Scheduler) run(ctx context.Context, req request) {
	log := s.logger.With(zap.String("trigger", string(req.trigger)))

	release, err := s.acquire()
	if err != nil {
		s.busy.Store(false)
		if req.reply != nil {
			req.reply <- result{err: err}
		}
		return
	}

	log.Info("batch check started")
	summary := s.runner.RunAllChecks(ctx)
	release()
	metrics.BatchesTotal.WithLabelValues(string(req.trigger)).Inc()
	s.busy.Store(false)

	log.Info("batch check finished",
		zap.Int("total", summary.Total),
		zap.Int("failed", summary.Failed))
	if req.reply != nil {
		req.reply <- result{summary: summary}
	}
}

// acquire takes the cross-process batch lock when one is configured.
func (s *Scheduler) acquire() (func(), error) {
	if s.lock == nil {
		return func() {}, nil
	}
	locked, err := s.lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to take batch lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: a batch is in progress in another process", sharedErrors.ErrAlreadyRunning)
	}
	return func() {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release batch lock", zap.Error(err))
		}
	}, nil
}

// drain rejects a request that was queued while the worker was shutting down.
func (s *Scheduler) drain() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()

	select {
	case req := <-s.requests:
		s.busy.Store(false)
		if req.reply != nil {
			req.reply <- result{err: sharedErrors.ErrSchedulerClosed}
		}
	default:
	}
}
