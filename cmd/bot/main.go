// Package main contains the entrypoint for the habit bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/habitbot/internal/bot"
	"github.com/edgard/habitbot/internal/bot/handlers"
	"github.com/edgard/habitbot/internal/bot/tasks"
	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/gemini"
	"github.com/edgard/habitbot/internal/habit"
	"github.com/edgard/habitbot/internal/logger"
	"github.com/edgard/habitbot/internal/telegram"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop() // Ensure context cancellation is signaled before exit
	os.Exit(exitCode)
}

// run wires config, logger, database, the habit dialog, the scheduler and
// the Telegram bot, blocks until shutdown and returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	var notes gemini.Client
	if cfg.Gemini.Enabled {
		notes, err = gemini.NewClient(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini client", "error", err)
			return 1
		}
	} else {
		log.Info("Gemini reminder notes disabled")
	}

	// hDeps is completed below, once the dialog exists; the default handler
	// reads it at call time.
	hDeps := handlers.HandlerDeps{Logger: log, Config: cfg, Store: store}
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			handlers.NewFallbackHandler(hDeps)(ctx, b, update)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	messenger := telegram.NewMessenger(tg)
	ledger := habit.NewLedger(log)

	var sessions habit.SessionStore
	switch cfg.Session.Backend {
	case "sqlite":
		sessions = habit.NewSQLSessionStore(store, cfg.Session.TTL)
	default:
		sessions = habit.NewMemorySessionStore(cfg.Session.TTL)
	}
	log.Info("Session store ready", "backend", cfg.Session.Backend, "ttl", cfg.Session.TTL)

	reminders := bot.NewReminderSender(store, messenger, notes, cfg.Messages, log)
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, reminders.Deliver)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	msgs := cfg.Messages
	creator := habit.NewCreator(habit.CreatorDeps{
		Users:     store,
		Habits:    store,
		Reminders: sched,
		Sessions:  sessions,
		Ledger:    ledger,
		Messenger: messenger,
		Messages: habit.CreatorMessages{
			HabitCreated:           msgs.HabitCreated,
			HabitCreateFailed:      msgs.HabitCreateFailed,
			UserNotFound:           msgs.UserNotFound,
			ReminderScheduleFailed: msgs.ReminderScheduleFailed,
		},
		Logger: log,
	})
	flow := habit.NewFlow(habit.FlowDeps{
		Sessions:  sessions,
		Ledger:    ledger,
		Messenger: messenger,
		Creator:   creator,
		Prompts: habit.Prompts{
			AskHabitName:    msgs.AskHabitName,
			AskDuration:     msgs.AskDuration,
			InvalidDuration: msgs.InvalidDuration,
			AskComments:     msgs.AskComments,
			AskReminderTime: msgs.AskReminderTime,
			InvalidTime:     msgs.InvalidTime,
		},
		Logger: log,
	})

	sched.RegisterTasks(tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:   log,
		Store:    store,
		Sessions: flow,
		Config:   cfg,
	}))

	hDeps.Flow = flow
	hDeps.Messenger = messenger
	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, store, tg, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		// Allow logs to flush before exiting on error
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
