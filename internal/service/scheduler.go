package service

import (
	"context"
	"sync"
	"time"

	"ygo-storefront-api/pkg/logger"
)

// Task is one run of periodic work. It returns how many items it changed.
type Task func(ctx context.Context) (int64, error)

// Scheduler runs a Task on a fixed interval until stopped.
type Scheduler struct {
	name     string
	task     Task
	interval time.Duration
	timeout  time.Duration
	log      *logger.Logger

	ticker    *time.Ticker
	stopCh    chan struct{}
	stopOnce  sync.Once
	isRunning bool
	mu        sync.Mutex
}

// NewScheduler creates a scheduler. Each run is bounded by timeout.
func NewScheduler(name string, interval, timeout time.Duration, task Task, log *logger.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Scheduler{
		name:     name,
		task:     task,
		interval: interval,
		timeout:  timeout,
		log:      log.Component(name),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the loop. The first run happens after one interval.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.ticker = time.NewTicker(s.interval)
	s.mu.Unlock()

	s.log.Info(context.Background(), "scheduler started", "interval", s.interval.String())

	go s.run()
}

func (s *Scheduler) run() {
	for {
		select {
		case <-s.ticker.C:
			if _, err := s.RunNow(); err != nil {
				s.log.Error(context.Background(), "scheduled run failed", err)
			}
		case <-s.stopCh:
			s.log.Info(context.Background(), "scheduler stopped")
			return
		}
	}
}

// Stop stops the loop.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()

		if s.ticker != nil {
			s.ticker.Stop()
		}
		close(s.stopCh)
		s.isRunning = false
	})
}

// RunNow performs one run.
func (s *Scheduler) RunNow() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	changed, err := s.task(ctx)
	if changed > 0 {
		s.log.Info(ctx, "scheduled run finished", "changed", changed)
	}
	return changed, err
}
