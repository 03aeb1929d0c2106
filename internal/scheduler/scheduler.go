// Package scheduler runs named background tasks on cron schedules. Every task
// can also be triggered by hand, and a task never overlaps with itself.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"payledger/internal/metrics"
)

var (
	// ErrUnknownTask is returned by Trigger for a name that was never registered.
	ErrUnknownTask = errors.New("unknown task")
	// ErrTaskRunning is returned when a run of the same task is in progress.
	ErrTaskRunning = errors.New("task already running")
)

// Task is one unit of background work.
type Task func(ctx context.Context) error

type task struct {
	name    string
	spec    string
	fn      Task
	running atomic.Bool
}

// Scheduler wraps a cron runner.
type Scheduler struct {
	cron   *cron.Cron
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.RWMutex
	tasks map[string]*task
}

// New creates a scheduler. Panics inside tasks are recovered and logged.
func New(log *zap.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	cl := cronLogger{log: log.Sugar()}
	return &Scheduler{
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl))),
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		tasks:  make(map[string]*task),
	}
}

// Register adds a task. An empty spec registers it for manual triggering only.
func (s *Scheduler) Register(name, spec string, fn Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %s registered twice", name)
	}

	t := &task{name: name, spec: spec, fn: fn}
	if spec != "" {
		if _, err := s.cron.AddFunc(spec, func() {
			if err := s.run(s.ctx, t); errors.Is(err, ErrTaskRunning) {
				s.log.Warn("scheduled run skipped, previous run still active", zap.String("task", name))
			}
		}); err != nil {
			return fmt.Errorf("invalid schedule %q for task %s: %w", spec, name, err)
		}
	}
	s.tasks[name] = t
	return nil
}

// Start begins running scheduled tasks in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("scheduler started", zap.Strings("tasks", s.Tasks()))
}

// Stop prevents new runs, cancels the context of running tasks and waits for
// them to return or for ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		s.log.Info("scheduler stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("scheduler did not stop in time: %w", ctx.Err())
	}
}

// Trigger runs a task now and waits for it.
func (s *Scheduler) Trigger(ctx context.Context, name string) error {
	s.mu.RLock()
	t, ok := s.tasks[name]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%s: %w", name, ErrUnknownTask)
	}
	return s.run(ctx, t)
}

// Tasks returns the registered task names in order.
func (s *Scheduler) Tasks() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Scheduler) run(ctx context.Context, t *task) error {
	if !t.running.CompareAndSwap(false, true) {
		return fmt.Errorf("%s: %w", t.name, ErrTaskRunning)
	}
	defer t.running.Store(false)

	started := time.Now()
	err := t.fn(ctx)
	metrics.RecordScheduledTask(t.name, err == nil)
	if err != nil {
		s.log.Error("task failed", zap.String("task", t.name), zap.Duration("took", time.Since(started)), zap.Error(err))
		return err
	}
	s.log.Debug("task finished", zap.String("task", t.name), zap.Duration("took", time.Since(started)))
	return nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
