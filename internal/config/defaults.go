package config

import (
	"time"

	"github.com/spf13/viper"
)

// Default values for configuration
const (
	DefaultLogLevel = "info"

	DefaultDBPath             = "storage.db"
	DefaultDBOperationTimeout = 15 * time.Second

	DefaultSessionBackend = "memory"
	DefaultSessionTTL     = 30 * time.Minute

	DefaultSchedulerTimezone = "UTC"

	DefaultGeminiModel       = "gemini-2.0-flash"
	DefaultGeminiTemperature = 0.9
	DefaultGeminiMaxRetries  = 2
	DefaultGeminiRetryDelay  = 2 // seconds
	DefaultGeminiTimeout     = 20 * time.Second
	DefaultGeminiInstruction = "You write one short, warm sentence that encourages a person to keep a habit. No greetings, no emojis, no quotes."
)

// Task names known to the task registry.
const (
	TaskSQLMaintenance = "sql_maintenance"
	TaskSessionCleanup = "session_cleanup"
)

// DefaultMessages are the user-facing texts used when the config file does not override them.
var DefaultMessages = MessagesConfig{
	Welcome:                "👋 Welcome! I help you build habits and remind you about them every day.\nUse /new_habit to create a habit and /habits to see yours.",
	Help:                   "/new_habit - create a new habit\n/habits - list your habits\n/cancel - stop creating a habit\n/help - show this message",
	GeneralError:           "❌ An error occurred. Please try again later.",
	PrivateOnly:            "ℹ️ Please talk to me in a private chat.",
	AskHabitName:           "Enter the name of the habit:",
	AskDuration:            "How many days do you plan to keep this habit? _For example 15 or 21_:",
	InvalidDuration:        "Invalid format. Please enter a number of days from 1 to 365.",
	AskComments:            "Enter a description:",
	AskReminderTime:        "What time should I send the reminder?\n_For example 16:00 or 10:30_",
	InvalidTime:            "Invalid time format. Please enter the time as HH:MM.\n_For example 16:00 or 10:30_",
	HabitCreated:           "✅ Habit created successfully",
	HabitCreateFailed:      "❌ An error occurred while creating the habit",
	UserNotFound:           "🚫 User not found. Send /start to register and try again.",
	ReminderScheduleFailed: "⚠️ The habit is saved, but its reminder could not be scheduled yet. It will be scheduled again automatically.",
	Cancelled:              "Habit creation cancelled.",
	NothingToCancel:        "There is nothing to cancel.",
	NoHabits:               "You have no habits yet. Send /new_habit to create one.",
	HabitsHeader:           "Your habits:\n\n",
	HabitLineFmt:           "• %s: %s days, reminder at %s\n",
	ReminderFmt:            "⏰ Reminder: time for \"%s\"",
}

// setDefaults registers every key with viper so that env overrides are
// picked up by Unmarshal even when the file does not mention the key.
func setDefaults(v *viper.Viper) {
	v.SetDefault("telegram.token", "")

	v.SetDefault("logger.level", DefaultLogLevel)
	v.SetDefault("logger.json", false)

	v.SetDefault("database.path", DefaultDBPath)
	v.SetDefault("database.operation_timeout", DefaultDBOperationTimeout)

	v.SetDefault("session.backend", DefaultSessionBackend)
	v.SetDefault("session.ttl", DefaultSessionTTL)

	v.SetDefault("scheduler.timezone", DefaultSchedulerTimezone)
	v.SetDefault("scheduler.tasks."+TaskSQLMaintenance+".enabled", true)
	v.SetDefault("scheduler.tasks."+TaskSQLMaintenance+".schedule", "0 0 4 * * 0")
	v.SetDefault("scheduler.tasks."+TaskSessionCleanup+".enabled", true)
	v.SetDefault("scheduler.tasks."+TaskSessionCleanup+".schedule", "0 */5 * * * *")

	v.SetDefault("gemini.enabled", false)
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model_name", DefaultGeminiModel)
	v.SetDefault("gemini.temperature", DefaultGeminiTemperature)
	v.SetDefault("gemini.system_instruction", DefaultGeminiInstruction)
	v.SetDefault("gemini.max_retries", DefaultGeminiMaxRetries)
	v.SetDefault("gemini.retry_delay_seconds", DefaultGeminiRetryDelay)
	v.SetDefault("gemini.timeout", DefaultGeminiTimeout)

	m := DefaultMessages
	v.SetDefault("messages.welcome", m.Welcome)
	v.SetDefault("messages.help", m.Help)
	v.SetDefault("messages.general_error", m.GeneralError)
	v.SetDefault("messages.private_only", m.PrivateOnly)
	v.SetDefault("messages.ask_habit_name", m.AskHabitName)
	v.SetDefault("messages.ask_duration", m.AskDuration)
	v.SetDefault("messages.invalid_duration", m.InvalidDuration)
	v.SetDefault("messages.ask_comments", m.AskComments)
	v.SetDefault("messages.ask_reminder_time", m.AskReminderTime)
	v.SetDefault("messages.invalid_time", m.InvalidTime)
	v.SetDefault("messages.habit_created", m.HabitCreated)
	v.SetDefault("messages.habit_create_failed", m.HabitCreateFailed)
	v.SetDefault("messages.user_not_found", m.UserNotFound)
	v.SetDefault("messages.reminder_schedule_failed", m.ReminderScheduleFailed)
	v.SetDefault("messages.cancelled", m.Cancelled)
	v.SetDefault("messages.nothing_to_cancel", m.NothingToCancel)
	v.SetDefault("messages.no_habits", m.NoHabits)
	v.SetDefault("messages.habits_header", m.HabitsHeader)
	v.SetDefault("messages.habit_line_fmt", m.HabitLineFmt)
	v.SetDefault("messages.reminder_fmt", m.ReminderFmt)
}
