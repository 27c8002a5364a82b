package habit

import (
	"context"
	"errors"
	"sync"

	"github.com/edgard/habitbot/internal/database"
)

type sentMessage struct {
	ChatID int64
	ID     int
	Msg    Outgoing
}

type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	sent      []sentMessage
	deleted   []int
	deleteErr map[int]error
	sendErr   error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 1000, deleteErr: make(map[int]error)}
}

func (m *fakeMessenger) Send(_ context.Context, chatID int64, msg Outgoing) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return 0, m.sendErr
	}
	m.nextID++
	m.sent = append(m.sent, sentMessage{ChatID: chatID, ID: m.nextID, Msg: msg})
	return m.nextID, nil
}

func (m *fakeMessenger) DeleteMessage(_ context.Context, _ int64, messageID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.deleteErr[messageID]; ok {
		return err
	}
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.sent))
	for _, s := range m.sent {
		out = append(out, s.Msg.Text)
	}
	return out
}

func (m *fakeMessenger) last() sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

type fakeUsers struct {
	users map[int64]*database.User
	err   error
}

func (f *fakeUsers) GetUserByTelegramID(_ context.Context, telegramID int64) (*database.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users[telegramID], nil
}

type fakeHabits struct {
	mu       sync.Mutex
	created  []*database.Habit
	err      error
	returnNo bool
}

func (f *fakeHabits) CreateHabit(_ context.Context, h *database.Habit) (*database.Habit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if f.returnNo {
		return nil, nil
	}
	stored := *h
	stored.ID = int64(len(f.created) + 1)
	f.created = append(f.created, &stored)
	return &stored, nil
}

type fakeReminders struct {
	mu   sync.Mutex
	jobs []ReminderJob
	err  error
}

func (f *fakeReminders) ScheduleReminder(_ context.Context, job ReminderJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

// failingSessions wraps a store and fails Delete.
type failingSessions struct {
	SessionStore
}

func (failingSessions) Delete(context.Context, int64) error {
	return errors.New("session backend down")
}

// sweepHookSessions runs afterSweep right after expired sessions are removed.
type sweepHookSessions struct {
	SessionStore
	afterSweep func()
}

func (s sweepHookSessions) DeleteExpired(ctx context.Context) ([]Session, error) {
	expired, err := s.SessionStore.DeleteExpired(ctx)
	if s.afterSweep != nil {
		s.afterSweep()
	}
	return expired, err
}

var testPrompts = Prompts{
	AskHabitName:    "name?",
	AskDuration:     "days?",
	InvalidDuration: "bad days",
	AskComments:     "comments?",
	AskReminderTime: "time?",
	InvalidTime:     "bad time",
}

var testCreatorMessages = CreatorMessages{
	HabitCreated:           "created",
	HabitCreateFailed:      "create failed",
	UserNotFound:           "user not found",
	ReminderScheduleFailed: "schedule failed",
}

type harness struct {
	messenger *fakeMessenger
	users     *fakeUsers
	habits    *fakeHabits
	reminders *fakeReminders
	sessions  SessionStore
	ledger    *Ledger
	flow      *Flow
}

const (
	testTelegramID int64 = 42
	testChatID     int64 = 4242
	testOwnerID    int64 = 7
)

func newHarness() *harness {
	h := &harness{
		messenger: newFakeMessenger(),
		users:     &fakeUsers{users: map[int64]*database.User{testTelegramID: {ID: testOwnerID, TelegramID: testTelegramID, ChatID: testChatID}}},
		habits:    &fakeHabits{},
		reminders: &fakeReminders{},
		sessions:  NewMemorySessionStore(0),
		ledger:    NewLedger(nil),
	}
	h.rebuild()
	return h
}

func (h *harness) rebuild() {
	creator := NewCreator(CreatorDeps{
		Users:     h.users,
		Habits:    h.habits,
		Reminders: h.reminders,
		Sessions:  h.sessions,
		Ledger:    h.ledger,
		Messenger: h.messenger,
		Messages:  testCreatorMessages,
	})
	h.flow = NewFlow(FlowDeps{
		Sessions:  h.sessions,
		Ledger:    h.ledger,
		Messenger: h.messenger,
		Creator:   creator,
		Prompts:   testPrompts,
	})
}
