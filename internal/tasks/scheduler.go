package tasks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nexuscore/agentrt/pkg/models"
)

// cronParser supports both standard (5-field) and extended (6-field with
// seconds) cron expressions, mirroring the teacher's internal/tasks parser.
var cronParser = cron.NewParser(
	cron.SecondOptional |
		cron.Minute |
		cron.Hour |
		cron.Dom |
		cron.Month |
		cron.Dow |
		cron.Descriptor,
)

// SchedulerConfig configures the cron poll loop.
type SchedulerConfig struct {
	PollInterval time.Duration
	Logger       *slog.Logger
}

// DefaultSchedulerConfig mirrors the teacher's 10-second poll default.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{PollInterval: 10 * time.Second}
}

// Scheduler polls Store for cron-due tasks and runs them through Executor,
// simplified from the teacher's distributed-lock scheduler to a
// single-instance poll loop (spec §3/§4.J describe no cross-instance
// locking requirement).
type Scheduler struct {
	store    Store
	executor Executor
	config   SchedulerConfig
	logger   *slog.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	running bool
}

func NewScheduler(store Store, executor Executor, config SchedulerConfig) *Scheduler {
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Second
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default().With("component", "task-scheduler")
	}
	return &Scheduler{store: store, executor: executor, config: config, logger: logger}
}

// Start begins the poll loop in a background goroutine. Calling Start
// twice is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	go func() {
		ticker := time.NewTicker(s.config.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := s.PollOnce(ctx, time.Now()); err != nil {
					s.logger.Error("cron poll failed", "error", err)
				}
			}
		}
	}()
}

// Stop halts the poll loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.running = false
	if s.cancel != nil {
		s.cancel()
	}
}

// PollOnce runs one scheduling pass: every cron-due task is executed, its
// last_run_at/next_run_at advanced, and a cron_triggered activity appended.
func (s *Scheduler) PollOnce(ctx context.Context, now time.Time) error {
	due, err := s.store.DueForCron(ctx, now)
	if err != nil {
		return err
	}
	for _, task := range due {
		s.runDue(ctx, task, now)
	}
	return nil
}

func (s *Scheduler) runDue(ctx context.Context, task *models.Task, now time.Time) {
	task.LastRunAt = now
	task.NextRunAt = NextRun(task.CronSchedule, now)
	if err := s.store.Update(ctx, task); err != nil {
		s.logger.Error("update task after cron fire", "task_id", task.ID, "error", err)
		return
	}
	if err := s.store.AppendActivity(ctx, &models.TaskActivity{
		TaskID:    task.ID,
		Kind:      models.ActivityCronTriggered,
		Detail:    task.CronSchedule,
		CreatedAt: now,
	}); err != nil {
		s.logger.Error("append cron activity", "task_id", task.ID, "error", err)
	}
	if s.executor == nil {
		return
	}
	if err := s.executor.Execute(ctx, task); err != nil {
		s.logger.Error("execute cron task", "task_id", task.ID, "error", err)
		_ = s.store.AppendActivity(ctx, &models.TaskActivity{
			TaskID: task.ID, Kind: models.ActivityFailed, Detail: err.Error(), CreatedAt: time.Now(),
		})
		return
	}
	_ = s.store.AppendActivity(ctx, &models.TaskActivity{
		TaskID: task.ID, Kind: models.ActivityCompleted, CreatedAt: time.Now(),
	})
}

// NextRun computes the next fire time for a cron expression after now. An
// unparseable expression pushes next run a day out rather than panicking,
// so a malformed task doesn't spin the poll loop.
func NextRun(expr string, now time.Time) time.Time {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return now.Add(24 * time.Hour)
	}
	return schedule.Next(now)
}
