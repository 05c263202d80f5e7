package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobRegistry is the timer the trigger scheduler registers jobs with
type JobRegistry interface {
	// RegisterCron adds a recurring job using a standard five-field cron expression
	RegisterCron(name, spec string, fn func()) error
	// RegisterOnce adds a job that fires once, immediately, and then unregisters itself
	RegisterOnce(name string, fn func()) error
	// Remove unregisters a job. Returns false if no job had that name.
	Remove(name string) bool
	Start()
	// Stop halts the timer and waits for running jobs, bounded by ctx
	Stop(ctx context.Context) error
	IsRunning() bool
	Names() []string
	// NextRun returns when a job fires next, if known
	NextRun(name string) (time.Time, bool)
}

// CronRegistry is a JobRegistry backed by robfig/cron
type CronRegistry struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
	running bool
}

// NewCronRegistry creates a registry evaluating cron expressions in loc
func NewCronRegistry(loc *time.Location, logger *zap.Logger) *CronRegistry {
	if logger == nil {
		logger = zap.NewNop()
	}
	if loc == nil {
		loc = time.UTC
	}
	cronLogger := zapCronLogger{logger: logger.Named("cron")}
	return &CronRegistry{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		logger:  logger,
		entries: make(map[string]cron.EntryID),
	}
}

// RegisterCron adds a recurring job
func (r *CronRegistry) RegisterCron(name, spec string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	id, err := r.cron.AddFunc(spec, fn)
	if err != nil {
		return fmt.Errorf("%w: cron spec %q: %v", ErrInvalidConfig, spec, err)
	}
	r.entries[name] = id
	return nil
}

// RegisterOnce adds a job that fires as soon as the registry runs
func (r *CronRegistry) RegisterOnce(name string, fn func()) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}
	job := cron.FuncJob(func() {
		defer r.Remove(name)
		fn()
	})
	r.entries[name] = r.cron.Schedule(&onceSchedule{}, job)
	return nil
}

// Remove unregisters a job
func (r *CronRegistry) Remove(name string) bool {
	r.mu.Lock()
	id, ok := r.entries[name]
	delete(r.entries, name)
	r.mu.Unlock()

	if ok {
		r.cron.Remove(id)
	}
	return ok
}

// Start starts the timer. Calling Start on a running registry is a no-op.
func (r *CronRegistry) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cron.Start()
	r.running = true
}

// Stop stops the timer and waits for running jobs
func (r *CronRegistry) Stop(ctx context.Context) error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	r.mu.Unlock()

	done := r.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		r.logger.Warn("Timed out waiting for running jobs")
		return ctx.Err()
	}
}

// IsRunning reports whether the timer is started
func (r *CronRegistry) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Names returns the registered job names, sorted
func (r *CronRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NextRun returns the next activation of a job. Unknown until the registry runs.
func (r *CronRegistry) NextRun(name string) (time.Time, bool) {
	r.mu.Lock()
	id, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}
	next := r.cron.Entry(id).Next
	return next, !next.IsZero()
}

// onceSchedule activates at the first evaluation and never again
type onceSchedule struct {
	fired atomic.Bool
}

func (s *onceSchedule) Next(t time.Time) time.Time {
	if s.fired.Swap(true) {
		return time.Time{}
	}
	return t
}

// zapCronLogger adapts zap to cron.Logger
type zapCronLogger struct {
	logger *zap.Logger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
