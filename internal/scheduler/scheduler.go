package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"qxtrader/internal/logging"

	"github.com/robfig/cron/v3"
)

// Task is one periodic job. Errors are logged and never stop the scheduler.
type Task func(ctx context.Context) error

type task struct {
	name   string
	period uint64
	fn     Task
}

// Scheduler owns a logical clock that advances one step per interval. Every
// registered task runs on the steps that are a multiple of its period, in
// registration order.
type Scheduler struct {
	interval time.Duration
	log      logging.Logger

	mu      sync.Mutex
	step    uint64
	tasks   []task
	cron    *cron.Cron
	cancel  context.CancelFunc
	running bool
}

// New builds a scheduler stepping once per interval. Intervals under one
// second are raised to one second, the finest resolution of cron's @every.
func New(interval time.Duration, log logging.Logger) *Scheduler {
	if interval < time.Second {
		interval = time.Second
	}
	if log == nil {
		log = logging.Nop()
	}
	return &Scheduler{interval: interval, log: log}
}

// Every registers fn to run once every period steps.
func (s *Scheduler) Every(period int, name string, fn Task) {
	if period < 1 {
		period = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task{name: name, period: uint64(period), fn: fn})
}

// Step advances the logical clock by one and runs every task that is due.
// It returns the new step number.
func (s *Scheduler) Step(ctx context.Context) uint64 {
	s.mu.Lock()
	s.step++
	current := s.step
	due := make([]task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if current%t.period == 0 {
			due = append(due, t)
		}
	}
	s.mu.Unlock()

	for _, t := range due {
		if err := ctx.Err(); err != nil {
			return current
		}
		if err := t.fn(ctx); err != nil {
			s.log.Warn("scheduled task failed", "task", t.name, "step", current, "error", err)
		}
	}
	return current
}

func (s *Scheduler) Interval() time.Duration {
	return s.interval
}

func (s *Scheduler) Steps() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// Start drives Step from wall time until Stop is called or ctx ends. Steps
// never overlap: a step that overruns makes the next one skip.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	cronLog := logging.CronLogger{Logger: s.log}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), func() {
		s.Step(runCtx)
	}); err != nil {
		cancel()
		return fmt.Errorf("schedule step: %w", err)
	}
	c.Start()
	s.cron = c
	s.cancel = cancel
	s.running = true
	s.log.Info("scheduler started", "interval", s.interval.String(), "tasks", len(s.tasks))
	return nil
}

// Stop halts the wall-time driver and waits for a running step to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	c, cancel := s.cron, s.cancel
	s.running = false
	s.cron = nil
	s.cancel = nil
	s.mu.Unlock()

	<-c.Stop().Done()
	cancel()
	s.log.Info("scheduler stopped", "steps", s.Steps())
}
