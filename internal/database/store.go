package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for database operations.
// Lookups return nil, nil when the row does not exist.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error

	// SaveUser inserts a user or refreshes chat_id/username of the existing
	// user with the same telegram_id. user.ID is set on return.
	SaveUser(ctx context.Context, user *User) error
	GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// CreateHabit persists habit in a single transaction and returns the stored row.
	CreateHabit(ctx context.Context, habit *Habit) (*Habit, error)
	GetHabit(ctx context.Context, id int64) (*Habit, error)
	GetHabitsByOwner(ctx context.Context, ownerID int64) ([]*Habit, error)
	GetAllHabits(ctx context.Context) ([]*Habit, error)

	GetConversationSession(ctx context.Context, userID int64) (*ConversationSession, error)
	SaveConversationSession(ctx context.Context, session *ConversationSession) error
	DeleteConversationSession(ctx context.Context, userID int64) error
	// DeleteConversationSessionsBefore removes every session last updated
	// before cutoff and returns the removed rows.
	DeleteConversationSessionsBefore(ctx context.Context, cutoff time.Time) ([]*ConversationSession, error)
}

// sqlxStore provides an implementation of the Store interface using sqlx.
type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func isContextErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// rollback is deferred by every write; it is a no-op once the tx has been committed.
func (s *sqlxStore) rollback(ctx context.Context, tx *sqlx.Tx) {
	if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
		s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled or timed out before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	// VACUUM must run outside a transaction in SQLite.
	_, err := s.db.ExecContext(ctx, "VACUUM;")

	switch {
	case isContextErr(err):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)

	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}

func (s *sqlxStore) SaveUser(ctx context.Context, user *User) error {
	if user == nil {
		return fmt.Errorf("cannot save nil user")
	}
	if user.TelegramID == 0 {
		return fmt.Errorf("user must have a non-zero telegram_id")
	}
	if user.ChatID == 0 {
		return fmt.Errorf("user must have a non-zero chat_id")
	}

	now := time.Now().UTC()
	user.UpdatedAt = now
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for saving user", "telegram_id", user.TelegramID, "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	query := `
        INSERT INTO users (telegram_id, chat_id, username, created_at, updated_at)
        VALUES (:telegram_id, :chat_id, :username, :created_at, :updated_at)
        ON CONFLICT (telegram_id) DO UPDATE SET
            chat_id = excluded.chat_id,
            username = excluded.username,
            updated_at = excluded.updated_at;
    `
	if _, err := tx.NamedExecContext(ctx, query, user); err != nil {
		s.logger.ErrorContext(ctx, "Error saving user", "telegram_id", user.TelegramID, "error", err)
		return fmt.Errorf("failed to save user (telegram id %d): %w", user.TelegramID, err)
	}

	var stored User
	if err := tx.GetContext(ctx, &stored, `SELECT id, created_at FROM users WHERE telegram_id = ?`, user.TelegramID); err != nil {
		s.logger.ErrorContext(ctx, "Error reading back saved user", "telegram_id", user.TelegramID, "error", err)
		return fmt.Errorf("failed to read saved user (telegram id %d): %w", user.TelegramID, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "telegram_id", user.TelegramID, "error", err)
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	user.ID = stored.ID
	user.CreatedAt = stored.CreatedAt
	s.logger.DebugContext(ctx, "User saved successfully", "telegram_id", user.TelegramID, "user_id", user.ID)
	return nil
}

func (s *sqlxStore) getUser(ctx context.Context, column string, value int64) (*User, error) {
	if value == 0 {
		return nil, fmt.Errorf("%s cannot be zero", column)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var user User
	query := `SELECT id, created_at, updated_at, telegram_id, chat_id, username FROM users WHERE ` + column + ` = ?`
	err := s.db.GetContext(ctx, &user, query, value)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No user found", column, value)
		return nil, nil

	case isContextErr(err):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching user", column, value, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting user", column, value, "error", err)
		return nil, fmt.Errorf("failed to get user by %s %d: %w", column, value, err)
	}

	return &user, nil
}

func (s *sqlxStore) GetUserByTelegramID(ctx context.Context, telegramID int64) (*User, error) {
	return s.getUser(ctx, "telegram_id", telegramID)
}

func (s *sqlxStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	return s.getUser(ctx, "id", id)
}

// CreateHabit inserts the habit inside one transaction; the transaction is
// rolled back on every error path and the stored row is re-read before commit.
func (s *sqlxStore) CreateHabit(ctx context.Context, habit *Habit) (*Habit, error) {
	if habit == nil {
		return nil, fmt.Errorf("cannot create nil habit")
	}
	if habit.OwnerID == 0 {
		return nil, fmt.Errorf("habit must have a non-zero owner_id")
	}
	if habit.HabitName == "" {
		return nil, fmt.Errorf("habit must have a non-empty name")
	}

	record := *habit
	now := time.Now().UTC()
	record.CreatedAt = now
	record.UpdatedAt = now

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for creating habit", "owner_id", habit.OwnerID, "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	query := `
        INSERT INTO habits (owner_id, habit_name, duration, comments, reminder_time, created_at, updated_at)
        VALUES (:owner_id, :habit_name, :duration, :comments, :reminder_time, :created_at, :updated_at);
    `
	result, err := tx.NamedExecContext(ctx, query, &record)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error creating habit", "owner_id", habit.OwnerID, "error", err)
		return nil, fmt.Errorf("failed to create habit for owner %d: %w", habit.OwnerID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		s.logger.ErrorContext(ctx, "Could not retrieve last insert ID after creating habit", "owner_id", habit.OwnerID, "error", err)
		return nil, fmt.Errorf("failed to get id of created habit: %w", err)
	}

	var stored Habit
	err = tx.GetContext(ctx, &stored,
		`SELECT id, created_at, updated_at, owner_id, habit_name, duration, comments, reminder_time
		 FROM habits WHERE id = ?`, id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error reading back created habit", "habit_id", id, "error", err)
		return nil, fmt.Errorf("failed to read created habit %d: %w", id, err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit transaction", "owner_id", habit.OwnerID, "error", err)
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.DebugContext(ctx, "Habit created successfully", "habit_id", stored.ID, "owner_id", stored.OwnerID)
	return &stored, nil
}

func (s *sqlxStore) GetHabit(ctx context.Context, id int64) (*Habit, error) {
	if id == 0 {
		return nil, fmt.Errorf("habit id cannot be zero")
	}

	var habit Habit
	err := s.db.GetContext(ctx, &habit,
		`SELECT id, created_at, updated_at, owner_id, habit_name, duration, comments, reminder_time
		 FROM habits WHERE id = ?`, id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case isContextErr(err):
		s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching habit", "habit_id", id, "error", err)
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting habit", "habit_id", id, "error", err)
		return nil, fmt.Errorf("failed to get habit %d: %w", id, err)
	}

	return &habit, nil
}

func (s *sqlxStore) GetHabitsByOwner(ctx context.Context, ownerID int64) ([]*Habit, error) {
	if ownerID == 0 {
		return nil, fmt.Errorf("owner_id cannot be zero")
	}

	var habits []*Habit
	err := s.db.SelectContext(ctx, &habits,
		`SELECT id, created_at, updated_at, owner_id, habit_name, duration, comments, reminder_time
		 FROM habits WHERE owner_id = ? ORDER BY reminder_time ASC, id ASC`, ownerID)
	if err != nil {
		if isContextErr(err) {
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Error getting habits by owner", "owner_id", ownerID, "error", err)
		return nil, fmt.Errorf("failed to get habits for owner %d: %w", ownerID, err)
	}

	return habits, nil
}

func (s *sqlxStore) GetAllHabits(ctx context.Context) ([]*Habit, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var habits []*Habit
	err := s.db.SelectContext(ctx, &habits,
		`SELECT id, created_at, updated_at, owner_id, habit_name, duration, comments, reminder_time
		 FROM habits ORDER BY id ASC`)
	if err != nil {
		if isContextErr(err) {
			s.logger.WarnContext(ctx, "Context timeout or cancellation while fetching all habits", "error", err)
			return nil, err
		}
		s.logger.ErrorContext(ctx, "Error getting all habits", "error", err)
		return nil, fmt.Errorf("failed to get all habits: %w", err)
	}

	s.logger.DebugContext(ctx, "Fetched all habits", "count", len(habits))
	return habits, nil
}

func (s *sqlxStore) GetConversationSession(ctx context.Context, userID int64) (*ConversationSession, error) {
	var session ConversationSession
	err := s.db.GetContext(ctx, &session,
		`SELECT user_id, created_at, updated_at, chat_id, state, habit_name, duration, comments, reminder_time
		 FROM conversation_sessions WHERE user_id = ?`, userID)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil

	case isContextErr(err):
		return nil, err

	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting conversation session", "user_id", userID, "error", err)
		return nil, fmt.Errorf("failed to get conversation session for user %d: %w", userID, err)
	}

	return &session, nil
}

func (s *sqlxStore) SaveConversationSession(ctx context.Context, session *ConversationSession) error {
	if session == nil {
		return fmt.Errorf("cannot save nil conversation session")
	}
	if session.UserID == 0 {
		return fmt.Errorf("conversation session must have a non-zero user_id")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	query := `
        INSERT INTO conversation_sessions
            (user_id, chat_id, state, habit_name, duration, comments, reminder_time, created_at, updated_at)
        VALUES
            (:user_id, :chat_id, :state, :habit_name, :duration, :comments, :reminder_time, :created_at, :updated_at)
        ON CONFLICT (user_id) DO UPDATE SET
            chat_id = excluded.chat_id,
            state = excluded.state,
            habit_name = excluded.habit_name,
            duration = excluded.duration,
            comments = excluded.comments,
            reminder_time = excluded.reminder_time,
            created_at = excluded.created_at,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, session); err != nil {
		s.logger.ErrorContext(ctx, "Error saving conversation session", "user_id", session.UserID, "error", err)
		return fmt.Errorf("failed to save conversation session for user %d: %w", session.UserID, err)
	}
	return nil
}

func (s *sqlxStore) DeleteConversationSession(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM conversation_sessions WHERE user_id = ?`, userID); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting conversation session", "user_id", userID, "error", err)
		return fmt.Errorf("failed to delete conversation session for user %d: %w", userID, err)
	}
	return nil
}

// DeleteConversationSessionsBefore compares timestamps in Go rather than in
// SQL so the result does not depend on how the driver formats DATETIME values.
func (s *sqlxStore) DeleteConversationSessionsBefore(ctx context.Context, cutoff time.Time) ([]*ConversationSession, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for session cleanup", "error", err)
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer s.rollback(ctx, tx)

	var all []*ConversationSession
	err = tx.SelectContext(ctx, &all,
		`SELECT user_id, created_at, updated_at, chat_id, state, habit_name, duration, comments, reminder_time
		 FROM conversation_sessions`)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error listing conversation sessions", "error", err)
		return nil, fmt.Errorf("failed to list conversation sessions: %w", err)
	}

	var expired []*ConversationSession
	var userIDs []int64
	for _, session := range all {
		if session.UpdatedAt.Before(cutoff) {
			expired = append(expired, session)
			userIDs = append(userIDs, session.UserID)
		}
	}
	if len(expired) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`DELETE FROM conversation_sessions WHERE user_id IN (?)`, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to build session cleanup query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(query), args...); err != nil {
		s.logger.ErrorContext(ctx, "Error deleting expired conversation sessions", "error", err)
		return nil, fmt.Errorf("failed to delete expired conversation sessions: %w", err)
	}

	if err := tx.Commit(); err != nil {
		s.logger.ErrorContext(ctx, "Failed to commit session cleanup", "error", err)
		return nil, fmt.Errorf("failed to commit session cleanup: %w", err)
	}

	s.logger.InfoContext(ctx, "Deleted expired conversation sessions", "count", len(expired))
	return expired, nil
}
