package habit

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (h *harness) say(t *testing.T, msgID int, text string) bool {
	t.Helper()
	handled, err := h.flow.Handle(context.Background(), Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: msgID, Text: text})
	require.NoError(t, err)
	return handled
}

func (h *harness) state(t *testing.T) *Session {
	t.Helper()
	s, err := h.sessions.Get(context.Background(), testTelegramID)
	require.NoError(t, err)
	return s
}

func TestFlowHappyPath(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1, Text: "/new_habit"}))
	assert.Equal(t, StateAwaitingName, h.state(t).State)
	promptName := h.messenger.last().ID
	assert.Equal(t, []int{1, promptName}, h.ledger.Pending(testChatID))

	require.True(t, h.say(t, 2, "Read 10 pages"))
	// Name checkpoint: command, name prompt and the answer are gone.
	assert.Equal(t, []int{1, promptName, 2}, h.messenger.deleted)
	assert.Equal(t, []int{h.messenger.last().ID}, h.ledger.Pending(testChatID))
	assert.True(t, h.messenger.last().Msg.Markdown)

	require.True(t, h.say(t, 3, "21"))
	require.True(t, h.say(t, 4, "Evening habit"))
	assert.Equal(t, StateAwaitingReminderTime, h.state(t).State)
	assert.Len(t, h.ledger.Pending(testChatID), 5)

	require.True(t, h.say(t, 5, "20:30"))

	require.Len(t, h.habits.created, 1)
	stored := h.habits.created[0]
	assert.Equal(t, "Read 10 pages", stored.HabitName)
	assert.Equal(t, "21", stored.Duration)
	assert.Equal(t, "Evening habit", stored.Comments)
	assert.Equal(t, "20:30", stored.ReminderTime)
	assert.Equal(t, testOwnerID, stored.OwnerID)
	require.Len(t, h.reminders.jobs, 1)

	assert.Equal(t, []string{"name?", "days?", "comments?", "time?", "created"}, h.messenger.texts())
	assert.Nil(t, h.state(t))
	assert.Equal(t, []int{h.messenger.last().ID}, h.ledger.Pending(testChatID), "only the acknowledgement remains")
	assert.Contains(t, h.messenger.deleted, 5)
}

func TestFlowInvalidDurationReprompts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	h.say(t, 2, "Run")
	deletedBefore := len(h.messenger.deleted)

	h.say(t, 3, "400")

	s := h.state(t)
	assert.Equal(t, StateAwaitingDuration, s.State)
	assert.Equal(t, Draft{HabitName: "Run"}, s.Draft)
	assert.Equal(t, "bad days", h.messenger.last().Msg.Text)
	assert.Len(t, h.messenger.deleted, deletedBefore, "re-prompt never flushes")
	assert.Contains(t, h.ledger.Pending(testChatID), 3)
}

func TestFlowInvalidTimeReprompts(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	h.say(t, 2, "Run")
	h.say(t, 3, "10")
	h.say(t, 4, "")
	deletedBefore := len(h.messenger.deleted)

	h.say(t, 5, "25:61")

	s := h.state(t)
	require.NotNil(t, s)
	assert.Equal(t, StateAwaitingReminderTime, s.State)
	assert.Equal(t, Draft{HabitName: "Run", Duration: "10"}, s.Draft)
	assert.Equal(t, "bad time", h.messenger.last().Msg.Text)
	assert.Len(t, h.messenger.deleted, deletedBefore)
	assert.Empty(t, h.habits.created)
}

func TestFlowUnknownUserEndsSession(t *testing.T) {
	h := newHarness()
	h.users.users = nil
	ctx := context.Background()
	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	for i, text := range []string{"Run", "10", "x", "06:00"} {
		h.say(t, i+2, text)
	}

	assert.Empty(t, h.habits.created)
	assert.Empty(t, h.reminders.jobs)
	assert.Equal(t, "user not found", h.messenger.last().Msg.Text)
	assert.Nil(t, h.state(t))
}

func TestFlowPersistenceFailureDoesNotSchedule(t *testing.T) {
	h := newHarness()
	h.habits.returnNo = true
	ctx := context.Background()
	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	h.say(t, 2, "Run")
	h.say(t, 3, "10")
	h.say(t, 4, "x")

	_, err := h.flow.Handle(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 5, Text: "06:00"})

	assert.Error(t, err)
	assert.Empty(t, h.reminders.jobs)
	assert.Equal(t, "create failed", h.messenger.last().Msg.Text)
	assert.Nil(t, h.state(t))
}

func TestFlowRepeatedFinalInputCreatesOnce(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	h.say(t, 2, "Run")
	h.say(t, 3, "10")
	h.say(t, 4, "x")

	assert.True(t, h.say(t, 5, "06:00"))
	assert.False(t, h.say(t, 6, "06:00"), "no session after completion")

	assert.Len(t, h.habits.created, 1)
	assert.Len(t, h.reminders.jobs, 1)
}

func TestFlowWithoutSessionIgnoresMessage(t *testing.T) {
	h := newHarness()
	assert.False(t, h.say(t, 1, "hello"))
	assert.Empty(t, h.messenger.sent)
	assert.Empty(t, h.ledger.Pending(testChatID))
}

func TestFlowStartSupersedesDialog(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	h.say(t, 2, "Run")
	h.say(t, 3, "10")

	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 4}))

	s := h.state(t)
	assert.Equal(t, StateAwaitingName, s.State)
	assert.Equal(t, Draft{}, s.Draft)
}

func TestFlowCancel(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	cancelled, err := h.flow.Cancel(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1})
	require.NoError(t, err)
	assert.False(t, cancelled)

	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 2}))
	h.say(t, 3, "Run")

	cancelled, err = h.flow.Cancel(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 4})
	require.NoError(t, err)
	assert.True(t, cancelled)
	assert.Nil(t, h.state(t))
	assert.Empty(t, h.ledger.Pending(testChatID))
	assert.Contains(t, h.messenger.deleted, 4)
}

func TestFlowExpireSessions(t *testing.T) {
	h := newHarness()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mem := NewMemorySessionStore(30 * time.Minute)
	mem.now = c.now
	h.sessions = mem
	h.rebuild()
	ctx := context.Background()

	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	c.advance(31 * time.Minute)

	n, err := h.flow.ExpireSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, h.ledger.Pending(testChatID))
	assert.Len(t, h.messenger.deleted, 2)
	assert.False(t, h.say(t, 2, "Run"))
}

func TestFlowConcurrentUsers(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := int64(1); i <= 20; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			in := Inbound{UserID: user, ChatID: user * 100, MessageID: 1}
			assert.NoError(t, h.flow.Start(ctx, in))
			in.Text = "Habit"
			in.MessageID = 2
			_, err := h.flow.Handle(ctx, in)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := int64(1); i <= 20; i++ {
		s, err := h.sessions.Get(ctx, i)
		require.NoError(t, err)
		require.NotNil(t, s)
		assert.Equal(t, StateAwaitingDuration, s.State)
	}
}

func TestFlowAcceptsLongNameAndComments(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	name := strings.Repeat("я", 300)
	comments := strings.Repeat("note ", 1000)

	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	h.say(t, 2, name)
	h.say(t, 3, "21")
	h.say(t, 4, comments)
	h.say(t, 5, "20:30")

	require.Len(t, h.habits.created, 1)
	assert.Equal(t, name, h.habits.created[0].HabitName)
	assert.Equal(t, strings.TrimSpace(comments), h.habits.created[0].Comments)
	assert.Len(t, h.reminders.jobs, 1)
	assert.Equal(t, []string{"name?", "days?", "comments?", "time?", "created"}, h.messenger.texts())
}

func TestFlowExpiryKeepsNewerDialogMessages(t *testing.T) {
	h := newHarness()
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	mem := NewMemorySessionStore(30 * time.Minute)
	mem.now = c.now
	ctx := context.Background()

	h.sessions = sweepHookSessions{
		SessionStore: mem,
		afterSweep: func() {
			// The user starts over between the sweep and the chat cleanup.
			require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 10}))
		},
	}
	h.rebuild()

	require.NoError(t, h.flow.Start(ctx, Inbound{UserID: testTelegramID, ChatID: testChatID, MessageID: 1}))
	oldPrompt := h.messenger.last().ID
	c.advance(31 * time.Minute)

	n, err := h.flow.ExpireSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	newPrompt := h.messenger.last().ID
	assert.Empty(t, h.messenger.deleted)
	assert.Equal(t, []int{1, oldPrompt, 10, newPrompt}, h.ledger.Pending(testChatID))
	require.NotNil(t, h.state(t))
	assert.Equal(t, StateAwaitingName, h.state(t).State)

	// The next checkpoint clears both dialogs' leftovers.
	require.True(t, h.say(t, 11, "Run"))
	assert.Equal(t, []int{1, oldPrompt, 10, newPrompt, 11}, h.messenger.deleted)
}
