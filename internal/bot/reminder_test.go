package bot

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgard/habitbot/internal/config"
	"github.com/edgard/habitbot/internal/database"
	"github.com/edgard/habitbot/internal/habit"
)

const (
	testWait = 2 * time.Second
	testTick = 10 * time.Millisecond
)

type fakeReminderStore struct {
	habits map[int64]*database.Habit
	users  map[int64]*database.User
	err    error
}

func (f *fakeReminderStore) GetHabit(_ context.Context, id int64) (*database.Habit, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.habits[id], nil
}

func (f *fakeReminderStore) GetUserByID(_ context.Context, id int64) (*database.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[id], nil
}

type recordingMessenger struct {
	chatID int64
	msg    habit.Outgoing
	err    error
}

func (m *recordingMessenger) Send(_ context.Context, chatID int64, msg habit.Outgoing) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.chatID = chatID
	m.msg = msg
	return 1, nil
}

func (m *recordingMessenger) DeleteMessage(context.Context, int64, int) error { return nil }

type fakeNotes struct {
	note string
	err  error
}

func (f fakeNotes) GenerateReminderNote(context.Context, *database.Habit) (string, error) {
	return f.note, f.err
}

func reminderFixture() *fakeReminderStore {
	return &fakeReminderStore{
		habits: map[int64]*database.Habit{10: {ID: 10, OwnerID: 1, HabitName: "Read", ReminderTime: "20:30"}},
		users:  map[int64]*database.User{1: {ID: 1, TelegramID: 111, ChatID: 222}},
	}
}

var reminderMessages = config.MessagesConfig{ReminderFmt: "Time for %q"}

func TestReminderDeliver(t *testing.T) {
	m := &recordingMessenger{}
	r := NewReminderSender(reminderFixture(), m, nil, reminderMessages, quietLogger())

	require.NoError(t, r.Deliver(context.Background(), habit.ReminderJob{OwnerID: 1, HabitID: 10}))

	assert.Equal(t, int64(222), m.chatID, "reminder goes to the owner's chat")
	assert.Equal(t, `Time for "Read"`, m.msg.Text)
	assert.False(t, m.msg.Markdown)
}

func TestReminderDeliverWithNote(t *testing.T) {
	m := &recordingMessenger{}
	r := NewReminderSender(reminderFixture(), m, fakeNotes{note: "One page counts."}, reminderMessages, quietLogger())

	require.NoError(t, r.Deliver(context.Background(), habit.ReminderJob{HabitID: 10}))
	assert.Equal(t, "Time for \"Read\"\n\nOne page counts.", m.msg.Text)

	r = NewReminderSender(reminderFixture(), m, fakeNotes{err: errors.New("quota")}, reminderMessages, quietLogger())
	require.NoError(t, r.Deliver(context.Background(), habit.ReminderJob{HabitID: 10}))
	assert.Equal(t, `Time for "Read"`, m.msg.Text, "note failures do not block the reminder")
}

func TestReminderDeliverTargetGone(t *testing.T) {
	store := reminderFixture()
	r := NewReminderSender(store, &recordingMessenger{}, nil, reminderMessages, quietLogger())

	err := r.Deliver(context.Background(), habit.ReminderJob{HabitID: 99})
	assert.ErrorIs(t, err, ErrReminderTargetGone)

	delete(store.users, 1)
	err = r.Deliver(context.Background(), habit.ReminderJob{HabitID: 10})
	assert.ErrorIs(t, err, ErrReminderTargetGone)
}

func TestReminderDeliverErrors(t *testing.T) {
	store := reminderFixture()
	store.err = errors.New("db closed")
	err := NewReminderSender(store, &recordingMessenger{}, nil, reminderMessages, quietLogger()).
		Deliver(context.Background(), habit.ReminderJob{HabitID: 10})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrReminderTargetGone)

	m := &recordingMessenger{err: errors.New("blocked")}
	err = NewReminderSender(reminderFixture(), m, nil, reminderMessages, quietLogger()).
		Deliver(context.Background(), habit.ReminderJob{HabitID: 10})
	assert.Error(t, err)
}
