package domain

import "time"

// Task IDs for built-in background tasks.
const (
	// TaskIDMutationReplay retries the pending mutation queue.
	TaskIDMutationReplay = "mutation-replay"

	// TaskIDStorageReport logs offline storage usage.
	TaskIDStorageReport = "storage-report"
)

// ScheduledTask represents a recurring background task.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration

	// LastRun is when the task last ran.
	LastRun time.Time

	// NextRun is when the task should run next.
	NextRun time.Time

	// LastError contains the last error message, if any.
	LastError string

	// LastSuccess is when the task last completed successfully.
	LastSuccess time.Time

	Enabled bool
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && !t.NextRun.After(now)
}

// TaskResult represents the outcome of a task execution.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string

	// ItemsProcessed is a count of items handled (e.g., mutations replayed).
	ItemsProcessed int
}

// TaskConfig holds configuration for a single task.
type TaskConfig struct {
	Enabled  bool
	Interval time.Duration
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	// Enabled is the master switch for the scheduler.
	Enabled bool

	// Tick is how often due tasks are checked.
	Tick time.Duration

	// HistoryLimit is how many results are kept per task.
	HistoryLimit int

	// TaskConfigs holds per-task configuration.
	TaskConfigs map[string]TaskConfig
}

// GetTaskConfig returns the configuration for a specific task.
// Returns a zero TaskConfig if the task is not configured.
func (c *SchedulerConfig) GetTaskConfig(taskID string) TaskConfig {
	if c.TaskConfigs == nil {
		return TaskConfig{}
	}
	return c.TaskConfigs[taskID]
}

// DefaultSchedulerConfig returns the defaults for the background scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:      true,
		Tick:         time.Minute,
		HistoryLimit: 100,
		TaskConfigs: map[string]TaskConfig{
			TaskIDMutationReplay: {Enabled: true, Interval: 15 * time.Minute},
			TaskIDStorageReport:  {Enabled: true, Interval: 24 * time.Hour},
		},
	}
}
