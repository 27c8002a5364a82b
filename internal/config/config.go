// Package config provides configuration loading, validation, and management
// for the habit bot. It reads a YAML file, applies BOT_* environment
// overrides on top of defaults, and validates the result.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"strings"
	"time"
	_ "time/tzdata" // scheduler.timezone must resolve on hosts without zoneinfo

	"github.com/go-playground/validator/v10"
	"github.com/go-telegram/bot/models"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components.
type Config struct {
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// TelegramConfig holds the bot token and, once the bot is running, its own identity.
type TelegramConfig struct {
	Token string `mapstructure:"token" validate:"required"`

	// BotInfo is filled at startup from getMe.
	BotInfo *models.User `mapstructure:"-"`
}

type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

type DatabaseConfig struct {
	Path             string        `mapstructure:"path"              validate:"required"`
	OperationTimeout time.Duration `mapstructure:"operation_timeout" validate:"min=1s,max=5m"`
}

// SessionConfig controls where conversation sessions live and how long an
// idle one survives.
type SessionConfig struct {
	Backend string        `mapstructure:"backend" validate:"required,oneof=memory sqlite"`
	TTL     time.Duration `mapstructure:"ttl"     validate:"min=1m,max=24h"`
}

// SchedulerConfig holds the reminder timezone and the named maintenance tasks.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone" validate:"required,timezone"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks"    validate:"dive"`
}

// TaskConfig enables a registered task and gives its cron schedule (with seconds).
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule" validate:"required_if=Enabled true"`
}

// GeminiConfig configures the optional motivational line appended to reminders.
type GeminiConfig struct {
	Enabled           bool          `mapstructure:"enabled"`
	APIKey            string        `mapstructure:"api_key"             validate:"required_if=Enabled true"`
	ModelName         string        `mapstructure:"model_name"          validate:"required_if=Enabled true"`
	Temperature       float32       `mapstructure:"temperature"         validate:"min=0,max=2"`
	SystemInstruction string        `mapstructure:"system_instruction"`
	MaxRetries        int           `mapstructure:"max_retries"         validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0,max=60"`
	Timeout           time.Duration `mapstructure:"timeout"             validate:"min=1s,max=2m"`
}

// MessagesConfig holds every user-facing text. Prompts are sent with
// Telegram's legacy Markdown parse mode.
type MessagesConfig struct {
	Welcome                string `mapstructure:"welcome"                  validate:"required"`
	Help                   string `mapstructure:"help"                     validate:"required"`
	GeneralError           string `mapstructure:"general_error"            validate:"required"`
	PrivateOnly            string `mapstructure:"private_only"             validate:"required"`
	AskHabitName           string `mapstructure:"ask_habit_name"           validate:"required"`
	AskDuration            string `mapstructure:"ask_duration"             validate:"required"`
	InvalidDuration        string `mapstructure:"invalid_duration"         validate:"required"`
	AskComments            string `mapstructure:"ask_comments"             validate:"required"`
	AskReminderTime        string `mapstructure:"ask_reminder_time"        validate:"required"`
	InvalidTime            string `mapstructure:"invalid_time"             validate:"required"`
	HabitCreated           string `mapstructure:"habit_created"            validate:"required"`
	HabitCreateFailed      string `mapstructure:"habit_create_failed"      validate:"required"`
	UserNotFound           string `mapstructure:"user_not_found"           validate:"required"`
	ReminderScheduleFailed string `mapstructure:"reminder_schedule_failed" validate:"required"`
	Cancelled              string `mapstructure:"cancelled"                validate:"required"`
	NothingToCancel        string `mapstructure:"nothing_to_cancel"        validate:"required"`
	NoHabits               string `mapstructure:"no_habits"                validate:"required"`
	HabitsHeader           string `mapstructure:"habits_header"            validate:"required"`
	HabitLineFmt           string `mapstructure:"habit_line_fmt"           validate:"required"`
	ReminderFmt            string `mapstructure:"reminder_fmt"             validate:"required"`
}

// LoadConfig reads configuration from the YAML file at path, overlays BOT_*
// environment variables (BOT_TELEGRAM_TOKEN for telegram.token) and validates
// the result. A missing file is not an error; defaults and env are used.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		slog.Info("Configuration file not found, using defaults and environment", "path", path)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
