package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"

	"github.com/edgard/habitbot/internal/bot/tasks"
	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/habit"
)

const reminderTag = "reminder"

// ReminderFunc delivers one reminder when its daily job fires.
type ReminderFunc func(ctx context.Context, job habit.ReminderJob) error

// Scheduler runs the maintenance tasks and the daily habit reminders on gocron.
type Scheduler struct {
	scheduler gocron.Scheduler
	logger    *slog.Logger
	cfg       *config.SchedulerConfig
	deliver   ReminderFunc
	location  *time.Location

	mu        sync.Mutex
	taskMap   map[string]tasks.ScheduledTaskFunc
	reminders map[int64]uuid.UUID // habit id -> gocron job id
	running   bool
}

// NewScheduler creates a scheduler whose reminders fire in cfg.Timezone.
func NewScheduler(logger *slog.Logger, cfg *config.SchedulerConfig, deliver ReminderFunc) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		return nil, fmt.Errorf("scheduler config cannot be nil")
	}
	if deliver == nil {
		return nil, fmt.Errorf("reminder delivery func cannot be nil")
	}
	log := logger.With("component", "scheduler")

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load scheduler timezone %q: %w", cfg.Timezone, err)
	}

	s, err := gocron.NewScheduler(
		gocron.WithLocation(loc),
		gocron.WithLogger(log.With("source", "gocron")),
	)
	if err != nil {
		log.Error("Failed to create gocron scheduler", "error", err)
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: s,
		logger:    log,
		cfg:       cfg,
		deliver:   deliver,
		location:  loc,
		taskMap:   make(map[string]tasks.ScheduledTaskFunc),
		reminders: make(map[int64]uuid.UUID),
	}, nil
}

// RegisterTasks adds named maintenance tasks. It must be called before Start.
func (s *Scheduler) RegisterTasks(taskMap map[string]tasks.ScheduledTaskFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for name, fn := range taskMap {
		s.taskMap[name] = fn
	}
}

// Start schedules all enabled tasks from the configuration and starts the scheduler.
// Reminders scheduled before Start begin firing once it is called.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	s.logger.Debug("Configuring scheduler jobs...")

	scheduledCount := 0
	for taskName, taskConfig := range s.cfg.Tasks {
		if !taskConfig.Enabled {
			s.logger.Info("Skipping disabled task", "task_name", taskName)
			continue
		}

		taskFunc, exists := s.taskMap[taskName]
		if !exists {
			s.logger.Warn("Scheduled task configured but not found in registry, skipping", "task_name", taskName)
			continue
		}

		if taskConfig.Schedule == "" {
			s.logger.Warn("Scheduled task enabled but has empty schedule, skipping", "task_name", taskName)
			continue
		}

		_, err := s.scheduler.NewJob(
			gocron.CronJob(taskConfig.Schedule, true),
			gocron.NewTask(
				func(ctx context.Context, name string) {
					s.logger.Info("Running scheduled task", "task_name", name)
					startTime := time.Now()
					if taskErr := taskFunc(ctx); taskErr != nil {
						s.logger.Error("Scheduled task failed", "task_name", name, "error", taskErr)
					}
					s.logger.Info("Finished scheduled task", "task_name", name, "duration", time.Since(startTime))
				},
				context.Background(),
				taskName,
			),
			gocron.WithName(taskName),
			gocron.WithTags("task"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		)
		if err != nil {
			s.logger.Error("Failed to schedule task", "task_name", taskName, "schedule", taskConfig.Schedule, "error", err)
			continue
		}

		s.logger.Info("Scheduled task", "task_name", taskName, "schedule", taskConfig.Schedule)
		scheduledCount++
	}

	s.scheduler.Start()
	s.running = true
	s.logger.Info("Scheduler initialized and started", "tasks_scheduled", scheduledCount, "reminders", len(s.reminders), "timezone", s.location.String())

	return nil
}

// Stop gracefully stops the scheduler, waiting for running jobs to complete.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		s.logger.Info("Scheduler is not running, nothing to stop.")
		return nil
	}

	s.logger.Debug("Stopping scheduler gracefully (waiting for jobs)...")
	err := s.scheduler.Shutdown()
	if err != nil {
		s.logger.Error("Error during scheduler shutdown", "error", err)
	} else {
		s.logger.Info("Scheduler stopped gracefully.")
	}

	s.running = false
	return err
}

// ScheduleReminder registers a daily job at job.ReminderTime for the habit,
// replacing any reminder already registered for the same habit.
func (s *Scheduler) ScheduleReminder(ctx context.Context, job habit.ReminderJob) error {
	if job.HabitID == 0 {
		return fmt.Errorf("reminder job needs a habit id")
	}
	hour, minute, err := habit.ParseTime(job.ReminderTime)
	if err != nil {
		return fmt.Errorf("invalid reminder time %q for habit %d: %w", job.ReminderTime, job.HabitID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.reminders[job.HabitID]; ok {
		if err := s.scheduler.RemoveJob(prev); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
			s.logger.WarnContext(ctx, "Failed to remove previous reminder", "habit_id", job.HabitID, "error", err)
		}
		delete(s.reminders, job.HabitID)
	}

	j, err := s.scheduler.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hour), uint(minute), 0))),
		gocron.NewTask(s.runReminder, context.Background(), job),
		gocron.WithName(fmt.Sprintf("reminder:%d", job.HabitID)),
		gocron.WithTags(reminderTag, fmt.Sprintf("owner:%d", job.OwnerID)),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule reminder for habit %d: %w", job.HabitID, err)
	}

	s.reminders[job.HabitID] = j.ID()
	s.logger.InfoContext(ctx, "Scheduled habit reminder", "habit_id", job.HabitID, "owner_id", job.OwnerID, "time", job.ReminderTime, "job_id", j.ID())
	return nil
}

// RestoreReminders schedules a reminder for every stored habit and returns
// how many were scheduled. Failures are logged and skipped.
func (s *Scheduler) RestoreReminders(ctx context.Context, habits []*database.Habit) int {
	restored := 0
	for _, h := range habits {
		job := habit.ReminderJob{
			OwnerID:      h.OwnerID,
			ReminderTime: h.ReminderTime,
			HabitName:    h.HabitName,
			HabitID:      h.ID,
		}
		if err := s.ScheduleReminder(ctx, job); err != nil {
			s.logger.ErrorContext(ctx, "Failed to restore reminder", "habit_id", h.ID, "error", err)
			continue
		}
		restored++
	}
	s.logger.InfoContext(ctx, "Restored habit reminders", "restored", restored, "total", len(habits))
	return restored
}

// RemoveReminder drops the reminder of a habit if one is registered.
func (s *Scheduler) RemoveReminder(habitID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.reminders[habitID]
	if !ok {
		return
	}
	if err := s.scheduler.RemoveJob(id); err != nil && !errors.Is(err, gocron.ErrJobNotFound) {
		s.logger.Warn("Failed to remove reminder", "habit_id", habitID, "error", err)
	}
	delete(s.reminders, habitID)
}

// ReminderCount returns the number of registered reminders.
func (s *Scheduler) ReminderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reminders)
}

// NextReminder returns the next run time of the habit's reminder.
func (s *Scheduler) NextReminder(habitID int64) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.reminders[habitID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	for _, j := range s.scheduler.Jobs() {
		if j.ID() != id {
			continue
		}
		next, err := j.NextRun()
		if err != nil {
			return time.Time{}, false
		}
		return next, true
	}
	return time.Time{}, false
}

func (s *Scheduler) runReminder(ctx context.Context, job habit.ReminderJob) {
	log := s.logger.With("habit_id", job.HabitID, "owner_id", job.OwnerID)
	log.DebugContext(ctx, "Sending habit reminder")

	err := s.deliver(ctx, job)
	switch {
	case errors.Is(err, ErrReminderTargetGone):
		log.WarnContext(ctx, "Habit or owner no longer exists, dropping reminder", "error", err)
		// RemoveJob is not called from inside the running job.
		go s.RemoveReminder(job.HabitID)
	case err != nil:
		log.ErrorContext(ctx, "Failed to send habit reminder", "error", err)
	default:
		log.InfoContext(ctx, "Habit reminder sent")
	}
}
