package bot

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/habitbot/internal/bot/tasks"
	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/habit"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestScheduler(t *testing.T, tz string) *Scheduler {
	t.Helper()
	s, err := NewScheduler(quietLogger(), &config.SchedulerConfig{Timezone: tz}, func(context.Context, habit.ReminderJob) error { return nil })
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestNewSchedulerValidation(t *testing.T) {
	noop := func(context.Context, habit.ReminderJob) error { return nil }

	_, err := NewScheduler(quietLogger(), nil, noop)
	assert.Error(t, err)

	_, err = NewScheduler(quietLogger(), &config.SchedulerConfig{Timezone: "UTC"}, nil)
	assert.Error(t, err)

	_, err = NewScheduler(quietLogger(), &config.SchedulerConfig{Timezone: "Mars/Olympus"}, noop)
	assert.Error(t, err)
}

func TestScheduleReminder(t *testing.T) {
	s := newTestScheduler(t, "Europe/Moscow")
	ctx := context.Background()

	require.NoError(t, s.ScheduleReminder(ctx, habit.ReminderJob{OwnerID: 1, HabitID: 10, HabitName: "Read", ReminderTime: "20:30"}))
	require.NoError(t, s.Start())
	assert.Equal(t, 1, s.ReminderCount())

	next, ok := s.NextReminder(10)
	require.True(t, ok)
	local := next.In(s.location)
	assert.Equal(t, 20, local.Hour())
	assert.Equal(t, 30, local.Minute())
	assert.Equal(t, 0, local.Second())
}

func TestScheduleReminderReplacesExisting(t *testing.T) {
	s := newTestScheduler(t, "UTC")
	ctx := context.Background()
	require.NoError(t, s.Start())

	require.NoError(t, s.ScheduleReminder(ctx, habit.ReminderJob{OwnerID: 1, HabitID: 10, ReminderTime: "08:00"}))
	require.NoError(t, s.ScheduleReminder(ctx, habit.ReminderJob{OwnerID: 1, HabitID: 10, ReminderTime: "09:15"}))

	assert.Equal(t, 1, s.ReminderCount())
	next, ok := s.NextReminder(10)
	require.True(t, ok)
	assert.Equal(t, 9, next.In(s.location).Hour())
	assert.Equal(t, 15, next.In(s.location).Minute())

	s.RemoveReminder(10)
	assert.Equal(t, 0, s.ReminderCount())
	_, ok = s.NextReminder(10)
	assert.False(t, ok)
}

func TestScheduleReminderRejectsBadInput(t *testing.T) {
	s := newTestScheduler(t, "UTC")
	ctx := context.Background()

	assert.Error(t, s.ScheduleReminder(ctx, habit.ReminderJob{HabitID: 1, ReminderTime: "25:61"}))
	assert.Error(t, s.ScheduleReminder(ctx, habit.ReminderJob{ReminderTime: "10:00"}))
	assert.Equal(t, 0, s.ReminderCount())
}

func TestRestoreReminders(t *testing.T) {
	s := newTestScheduler(t, "UTC")

	restored := s.RestoreReminders(context.Background(), []*database.Habit{
		{ID: 1, OwnerID: 1, HabitName: "a", ReminderTime: "07:00"},
		{ID: 2, OwnerID: 1, HabitName: "b", ReminderTime: "bad"},
		{ID: 3, OwnerID: 2, HabitName: "c", ReminderTime: "22:45"},
	})

	assert.Equal(t, 2, restored)
	assert.Equal(t, 2, s.ReminderCount())
}

func TestSchedulerStartStop(t *testing.T) {
	var calls atomic.Int32
	cfg := &config.SchedulerConfig{
		Timezone: "UTC",
		Tasks: map[string]config.TaskConfig{
			"noop":     {Enabled: true, Schedule: "0 0 3 * * *"},
			"disabled": {Enabled: false, Schedule: "0 0 3 * * *"},
			"missing":  {Enabled: true, Schedule: "0 0 3 * * *"},
		},
	}
	s, err := NewScheduler(quietLogger(), cfg, func(context.Context, habit.ReminderJob) error { return nil })
	require.NoError(t, err)

	s.RegisterTasks(map[string]tasks.ScheduledTaskFunc{
		"noop": func(context.Context) error { calls.Add(1); return nil },
	})

	require.NoError(t, s.Start())
	assert.Error(t, s.Start(), "second start fails")
	assert.Len(t, s.scheduler.Jobs(), 1)

	require.NoError(t, s.Stop())
	assert.NoError(t, s.Stop(), "stopping twice is a no-op")
	assert.Equal(t, int32(0), calls.Load())
}

func TestRunReminderDropsGoneTargets(t *testing.T) {
	delivered := make(chan habit.ReminderJob, 1)
	s, err := NewScheduler(quietLogger(), &config.SchedulerConfig{Timezone: "UTC"}, func(_ context.Context, job habit.ReminderJob) error {
		delivered <- job
		return ErrReminderTargetGone
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop() })

	job := habit.ReminderJob{OwnerID: 1, HabitID: 5, ReminderTime: "06:00"}
	require.NoError(t, s.ScheduleReminder(context.Background(), job))
	require.NoError(t, s.Start())

	s.runReminder(context.Background(), job)
	assert.Equal(t, job, <-delivered)
	assert.Eventually(t, func() bool { return s.ReminderCount() == 0 }, testWait, testTick)
}
