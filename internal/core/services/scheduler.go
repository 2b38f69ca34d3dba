package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/hibernate-pano/study-with-me-sub001/internal/core/domain"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driven"
	"github.com/hibernate-pano/study-with-me-sub001/internal/core/ports/driving"
	"github.com/hibernate-pano/study-with-me-sub001/internal/logger"
)

// Ensure Scheduler implements the interface.
var _ driving.Scheduler = (*Scheduler)(nil)

// TaskFunc runs one execution of a background task and returns the number
// of items it handled.
type TaskFunc func(ctx context.Context) (int, error)

type registeredTask struct {
	name string
	run  TaskFunc
}

// Scheduler manages background task execution.
// Task timing is persisted so intervals survive restarts.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	now    func() time.Time

	mu      sync.Mutex
	tasks   map[string]registeredTask
	running bool
	busy    map[string]bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler with configuration.
func NewScheduler(config domain.SchedulerConfig, store driven.SchedulerStore) *Scheduler {
	if config.Tick <= 0 {
		config.Tick = time.Minute
	}
	if config.HistoryLimit <= 0 {
		config.HistoryLimit = 100
	}
	return &Scheduler{
		config: config,
		store:  store,
		now:    time.Now,
		tasks:  make(map[string]registeredTask),
		busy:   make(map[string]bool),
	}
}

// Register adds a task. Tasks without an enabled TaskConfig never run.
func (s *Scheduler) Register(id, name string, run TaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[id] = registeredTask{name: name, run: run}
}

// Start begins the scheduler loop. This method blocks until Stop is called
// or ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || !s.config.Enabled {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	if err := s.initialiseTasks(ctx); err != nil {
		logger.Error("scheduler: failed to initialise tasks: %v", err)
	}

	return s.run(ctx, stopCh)
}

// Stop gracefully shuts down the scheduler and waits for running tasks.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// initialiseTasks ensures every registered task exists in the store with
// its configured interval.
func (s *Scheduler) initialiseTasks(ctx context.Context) error {
	s.mu.Lock()
	names := make(map[string]string, len(s.tasks))
	ids := make([]string, 0, len(s.tasks))
	for id, t := range s.tasks {
		ids = append(ids, id)
		names[id] = t.name
	}
	s.mu.Unlock()
	sort.Strings(ids)

	for _, id := range ids {
		if err := s.ensureTask(ctx, id, names[id], s.config.GetTaskConfig(id)); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) ensureTask(ctx context.Context, id, name string, cfg domain.TaskConfig) error {
	task, err := s.store.GetTask(ctx, id)
	if err != nil {
		return err
	}

	now := s.now()
	switch {
	case task == nil:
		task = &domain.ScheduledTask{
			ID:       id,
			Name:     name,
			Interval: cfg.Interval,
			NextRun:  now.Add(cfg.Interval),
		}
	case task.Interval != cfg.Interval:
		task.Interval = cfg.Interval
		task.NextRun = now.Add(cfg.Interval)
	}
	task.Name = name
	task.Enabled = cfg.Enabled && cfg.Interval > 0

	return s.store.SaveTask(ctx, task)
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}) error {
	s.checkAndRunDueTasks(ctx)

	ticker := time.NewTicker(s.config.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.checkAndRunDueTasks(ctx)
		}
	}
}

// checkAndRunDueTasks starts every due task that is not already running.
func (s *Scheduler) checkAndRunDueTasks(ctx context.Context) {
	tasks, err := s.store.ListTasks(ctx)
	if err != nil {
		logger.Error("scheduler: failed to list tasks: %v", err)
		return
	}

	now := s.now()
	for i := range tasks {
		task := tasks[i]
		if task.Due(now) {
			s.runTask(ctx, &task)
		}
	}
}

func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) {
	s.mu.Lock()
	registered, ok := s.tasks[task.ID]
	if !ok || s.busy[task.ID] {
		s.mu.Unlock()
		return
	}
	s.busy[task.ID] = true
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		defer func() {
			s.mu.Lock()
			delete(s.busy, task.ID)
			s.mu.Unlock()
		}()

		result := &domain.TaskResult{TaskID: task.ID, StartedAt: s.now()}
		items, err := registered.run(ctx)
		result.EndedAt = s.now()
		result.ItemsProcessed = items

		if err != nil {
			result.Error = err.Error()
			task.LastError = err.Error()
			logger.Warn("scheduler: task %s failed: %v", task.ID, err)
		} else {
			result.Success = true
			task.LastError = ""
			task.LastSuccess = result.EndedAt
		}
		task.LastRun = result.StartedAt
		task.NextRun = result.EndedAt.Add(task.Interval)

		if err := s.store.SaveTask(ctx, task); err != nil {
			logger.Error("scheduler: failed to save task %s: %v", task.ID, err)
		}
		if err := s.store.RecordResult(ctx, result); err != nil {
			logger.Error("scheduler: failed to record result for %s: %v", task.ID, err)
		}
		if err := s.store.PruneHistory(ctx, s.config.HistoryLimit); err != nil {
			logger.Error("scheduler: failed to prune history: %v", err)
		}
	}()
}
