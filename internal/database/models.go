package database

import (
	"time"
)

// User is an application user registered through the bot.
// TelegramID is the chat platform's user id; ID is what habits are owned by.
type User struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	TelegramID int64  `db:"telegram_id"`
	ChatID     int64  `db:"chat_id"` // private chat reminders are delivered to
	Username   string `db:"username"`
}

// Habit is a persisted recurring habit with its daily reminder time (HH:MM).
type Habit struct {
	ID        int64     `db:"id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	OwnerID      int64  `db:"owner_id"`
	HabitName    string `db:"habit_name"`
	Duration     string `db:"duration"`
	Comments     string `db:"comments"`
	ReminderTime string `db:"reminder_time"`
}

// ConversationSession is the stored form of an in-progress habit dialog.
// Draft fields stay empty until their step has been answered.
type ConversationSession struct {
	UserID    int64     `db:"user_id"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`

	ChatID       int64  `db:"chat_id"`
	State        string `db:"state"`
	HabitName    string `db:"habit_name"`
	Duration     string `db:"duration"`
	Comments     string `db:"comments"`
	ReminderTime string `db:"reminder_time"`
}
