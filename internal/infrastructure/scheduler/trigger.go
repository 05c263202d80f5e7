package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/antaeus/billing/internal/application/billing"
	"github.com/antaeus/billing/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

const (
	// RecurringJobName names the monthly billing job
	RecurringJobName = "invoice_billing_job"
	// oneShotJobSuffix is appended to the unique key of every immediate run
	oneShotJobSuffix = "_invoice_payment_job"
	// DefaultMonthlySpec fires at the first instant of every month
	DefaultMonthlySpec = "0 0 1 * *"
)

// State is the lifecycle state of the trigger scheduler
type State int

const (
	StateStopped State = iota
	StateScheduled
)

// String returns a readable name for the state
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateScheduled:
		return "scheduled"
	}
	return "unknown"
}

// BatchRunner runs one billing batch
type BatchRunner interface {
	RunPendingBatch(ctx context.Context) billing.BatchReport
}

// TriggerConfig holds trigger scheduler configuration
type TriggerConfig struct {
	// MonthlySpec is the cron expression of the recurring run
	MonthlySpec string
}

// DefaultTriggerConfig returns default trigger configuration
func DefaultTriggerConfig() TriggerConfig {
	return TriggerConfig{MonthlySpec: DefaultMonthlySpec}
}

// Status is a point-in-time view of the scheduler
type Status struct {
	State      string     `json:"state"`
	Jobs       []string   `json:"jobs"`
	NextRunAt  *time.Time `json:"next_run_at,omitempty"`
	LastFireAt *time.Time `json:"last_fire_at,omitempty"`
}

// TriggerScheduler decides when billing batches run: monthly, plus on demand
type TriggerScheduler struct {
	config   TriggerConfig
	registry JobRegistry
	runner   BatchRunner
	logger   *zap.Logger
	now      func() time.Time

	mu           sync.Mutex
	state        State
	initialFired bool
	lastFireAt   *time.Time
	runCtx       context.Context
	cancel       context.CancelFunc
	seq          atomic.Uint64
}

// NewTriggerScheduler creates a stopped trigger scheduler
func NewTriggerScheduler(config TriggerConfig, registry JobRegistry, runner BatchRunner, logger *zap.Logger) *TriggerScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MonthlySpec == "" {
		config.MonthlySpec = DefaultMonthlySpec
	}
	s := &TriggerScheduler{
		config:   config,
		registry: registry,
		runner:   runner,
		logger:   logger.Named("trigger"),
		now:      time.Now,
	}
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	return s
}

// StartScheduled registers the monthly job and starts the timer. The first
// registration in the scheduler's lifetime also fires a run immediately.
// Calling it while already scheduled does nothing.
func (s *TriggerScheduler) StartScheduled(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateScheduled {
		return nil
	}

	if err := s.registry.RegisterCron(RecurringJobName, s.config.MonthlySpec, s.fire(RecurringJobName)); err != nil {
		return fmt.Errorf("register %s: %w", RecurringJobName, err)
	}
	s.registry.Start()
	s.state = StateScheduled

	s.logger.Info("Billing scheduled",
		zap.String("job", RecurringJobName),
		zap.String("spec", s.config.MonthlySpec),
	)

	if !s.initialFired {
		s.initialFired = true
		if _, err := s.registerOnce(); err != nil {
			return err
		}
	}
	return nil
}

// StartNow registers a one-shot run firing immediately and returns its job name.
// It works in either state and does not change it.
func (s *TriggerScheduler) StartNow(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, err := s.registerOnce()
	if err != nil {
		return "", err
	}
	// The one-shot needs a running timer even when no monthly job is scheduled.
	s.registry.Start()
	return name, nil
}

func (s *TriggerScheduler) registerOnce() (string, error) {
	name := fmt.Sprintf("%s-%d%s", s.now().UTC().Format(time.RFC3339Nano), s.seq.Add(1), oneShotJobSuffix)
	if err := s.registry.RegisterOnce(name, s.fire(name)); err != nil {
		return "", fmt.Errorf("register %s: %w", name, err)
	}
	s.logger.Info("Billing run requested", zap.String("job", name))
	return name, nil
}

func (s *TriggerScheduler) fire(job string) func() {
	return func() {
		s.mu.Lock()
		ctx := s.runCtx
		now := s.now()
		s.lastFireAt = &now
		s.mu.Unlock()

		trigger := "once"
		if job == RecurringJobName {
			trigger = "cron"
		}

		s.logger.Info("Billing job fired", zap.String("job", job), zap.String("trigger", trigger))
		ctx, span := telemetry.StartServiceSpan(ctx, "scheduler", "fire",
			telemetry.WithAttribute(telemetry.SpanAttrTrigger, trigger),
		)
		var report billing.BatchReport
		telemetry.WithProfilingLabels(ctx, telemetry.BatchLabels(trigger), func(ctx context.Context) {
			report = s.runner.RunPendingBatch(ctx)
		})
		span.End()
		s.logger.Info("Billing job done",
			zap.String("job", job),
			zap.String("batch_id", report.BatchID.String()),
			zap.Int("total", report.Total),
		)
	}
}

// Stop removes the monthly job, cancels in-flight batches and waits for them,
// bounded by ctx. Stopping a stopped scheduler only waits for one-shot runs.
func (s *TriggerScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.registry.Remove(RecurringJobName)
	s.state = StateStopped
	cancel := s.cancel
	s.runCtx, s.cancel = context.WithCancel(context.Background())
	s.mu.Unlock()

	cancel()
	if err := s.registry.Stop(ctx); err != nil {
		return err
	}
	s.logger.Info("Billing scheduler stopped")
	return nil
}

// IsRunning reports whether the monthly job is scheduled
func (s *TriggerScheduler) IsRunning() bool {
	return s.State() == StateScheduled
}

// State returns the lifecycle state
func (s *TriggerScheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the scheduler state and registered jobs
func (s *TriggerScheduler) Status() Status {
	s.mu.Lock()
	st := Status{
		State:      s.state.String(),
		Jobs:       s.registry.Names(),
		LastFireAt: s.lastFireAt,
	}
	s.mu.Unlock()

	if next, ok := s.registry.NextRun(RecurringJobName); ok {
		st.NextRunAt = &next
	}
	return st
}
