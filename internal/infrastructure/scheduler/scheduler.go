package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// JobStatus represents the outcome of the last run of a task
type JobStatus string

const (
	JobStatusPending JobStatus = "PENDING"
	JobStatusRunning JobStatus = "RUNNING"
	JobStatusSuccess JobStatus = "SUCCESS"
	JobStatusFailed  JobStatus = "FAILED"
)

// TaskFunc performs one run of a periodic task
type TaskFunc func(ctx context.Context) error

// Task is a named unit of periodic work
type Task struct {
	Name     string
	Interval time.Duration
	Run      TaskFunc
}

// RunInfo describes the last run of a task
type RunInfo struct {
	Status      JobStatus
	Runs        int
	Failures    int
	Error       string
	StartedAt   *time.Time
	CompletedAt *time.Time
}

// Config holds scheduler configuration
type Config struct {
	Enabled    bool
	JobTimeout time.Duration
	// RunOnStart executes every task once immediately after Start
	RunOnStart bool
}

// DefaultConfig returns default scheduler configuration
func DefaultConfig() Config {
	return Config{
		Enabled:    true,
		JobTimeout: 5 * time.Minute,
	}
}

// Scheduler runs registered tasks on their own intervals until stopped
type Scheduler struct {
	config Config
	logger *zap.Logger

	tasks     []Task
	info      map[string]*RunInfo
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewScheduler creates a new scheduler instance
func NewScheduler(config Config, logger *zap.Logger) *Scheduler {
	if config.JobTimeout <= 0 {
		config.JobTimeout = DefaultConfig().JobTimeout
	}
	return &Scheduler{
		config: config,
		logger: logger,
		info:   make(map[string]*RunInfo),
	}
}

// Register adds a task. Tasks must be registered before Start.
func (s *Scheduler) Register(task Task) error {
	if task.Name == "" || task.Run == nil || task.Interval <= 0 {
		return fmt.Errorf("%w: task needs a name, a run func and a positive interval", ErrInvalidConfig)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return ErrSchedulerRunning
	}
	if _, exists := s.info[task.Name]; exists {
		return fmt.Errorf("%w: duplicate task %q", ErrInvalidConfig, task.Name)
	}
	s.tasks = append(s.tasks, task)
	s.info[task.Name] = &RunInfo{Status: JobStatusPending}
	return nil
}

// Start starts one loop per task
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	if !s.config.Enabled {
		s.logger.Info("Scheduler is disabled")
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	for _, task := range s.tasks {
		s.wg.Add(1)
		go s.loop(ctx, task)
	}

	s.logger.Info("Scheduler started",
		zap.Int("tasks", len(s.tasks)),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)
	return nil
}

// Stop cancels the loops and waits for in-flight runs, bounded by ctx
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler has been started
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// RunNow executes a registered task synchronously
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var found *Task
	for i := range s.tasks {
		if s.tasks[i].Name == name {
			found = &s.tasks[i]
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.execute(ctx, *found)
}

// Info returns a copy of the last run information of a task
func (s *Scheduler) Info(name string) (RunInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.info[name]
	if !ok {
		return RunInfo{}, false
	}
	return *info, true
}

func (s *Scheduler) loop(ctx context.Context, task Task) {
	defer s.wg.Done()

	if s.config.RunOnStart {
		_ = s.execute(ctx, task)
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.execute(ctx, task)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, task Task) error {
	s.markStarted(task.Name)

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := task.Run(jobCtx)
	s.markCompleted(task.Name, err)

	if err != nil {
		s.logger.Error("Scheduled task failed",
			zap.String("task", task.Name),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err),
		)
		return err
	}
	s.logger.Info("Scheduled task completed",
		zap.String("task", task.Name),
		zap.Duration("duration", time.Since(start)),
	)
	return nil
}

func (s *Scheduler) markStarted(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	info := s.info[name]
	info.Status = JobStatusRunning
	info.StartedAt = &now
	info.Error = ""
}

func (s *Scheduler) markCompleted(name string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	info := s.info[name]
	info.Runs++
	info.CompletedAt = &now
	if err != nil {
		info.Status = JobStatusFailed
		info.Failures++
		info.Error = err.Error()
		return
	}
	info.Status = JobStatusSuccess
}
