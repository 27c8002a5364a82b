package habit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// Inbound is a user message routed to the dialog.
type Inbound struct {
	UserID    int64
	ChatID    int64
	MessageID int
	Text      string
}

// FlowDeps are the collaborators of a Flow.
type FlowDeps struct {
	Sessions  SessionStore
	Ledger    *Ledger
	Messenger Messenger
	Creator   *Creator
	Prompts   Prompts
	Logger    *slog.Logger
}

// Flow executes the dialog: it loads the user's session, runs Advance and
// performs the returned effects. Messages of one user are handled strictly
// one at a time; different users proceed in parallel.
type Flow struct {
	deps  FlowDeps
	locks *userLocks
	log   *slog.Logger
}

func NewFlow(deps FlowDeps) *Flow {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Ledger == nil {
		deps.Ledger = NewLedger(logger)
	}
	return &Flow{
		deps:  deps,
		locks: newUserLocks(),
		log:   logger.With("component", "habit_flow"),
	}
}

// Start opens a new dialog for the sender, replacing any dialog in progress.
// The command message and the first prompt are recorded in the ledger.
func (f *Flow) Start(ctx context.Context, in Inbound) error {
	unlock := f.locks.lock(in.UserID)
	defer unlock()

	f.deps.Ledger.Record(in.ChatID, in.MessageID)

	if err := f.deps.Sessions.Create(ctx, NewSession(in.UserID, in.ChatID, time.Now())); err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	f.log.InfoContext(ctx, "Habit dialog started", "user_id", in.UserID, "chat_id", in.ChatID)

	return f.send(ctx, in.ChatID, SendPrompt{Text: f.deps.Prompts.AskHabitName})
}

// Handle feeds a message into the sender's dialog. It returns false when the
// sender has no active dialog and the message was not consumed.
func (f *Flow) Handle(ctx context.Context, in Inbound) (bool, error) {
	unlock := f.locks.lock(in.UserID)
	defer unlock()

	session, err := f.deps.Sessions.Get(ctx, in.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return false, nil
	}

	// The inbound message belongs to the dialog before any reply is sent.
	f.deps.Ledger.Record(in.ChatID, in.MessageID)

	prev := session.State
	next, effects := Advance(*session, in.Text, f.deps.Prompts)

	if next.State != StateCompleted {
		if err := f.deps.Sessions.Update(ctx, next); err != nil {
			return true, fmt.Errorf("failed to update session: %w", err)
		}
	}

	f.log.DebugContext(ctx, "Dialog step", "user_id", in.UserID, "from", prev, "to", next.State, "effects", len(effects))

	for _, effect := range effects {
		if err := f.run(ctx, next, effect); err != nil {
			return true, err
		}
	}
	return true, nil
}

// Cancel abandons the sender's dialog and cleans up its messages. It returns
// false when there was nothing to cancel.
func (f *Flow) Cancel(ctx context.Context, in Inbound) (bool, error) {
	unlock := f.locks.lock(in.UserID)
	defer unlock()

	session, err := f.deps.Sessions.Get(ctx, in.UserID)
	if err != nil {
		return false, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return false, nil
	}

	if err := f.deps.Sessions.Delete(ctx, in.UserID); err != nil {
		return false, fmt.Errorf("failed to delete session: %w", err)
	}

	f.deps.Ledger.Record(in.ChatID, in.MessageID)
	f.deps.Ledger.Flush(ctx, session.ChatID, f.deps.Messenger)
	if session.ChatID != in.ChatID {
		f.deps.Ledger.Flush(ctx, in.ChatID, f.deps.Messenger)
	}

	f.log.InfoContext(ctx, "Habit dialog cancelled", "user_id", in.UserID, "state", session.State)
	return true, nil
}

// ExpireSessions removes idle dialogs and flushes their chats. It returns the
// number of dialogs removed.
func (f *Flow) ExpireSessions(ctx context.Context) (int, error) {
	expired, err := f.deps.Sessions.DeleteExpired(ctx)
	if err != nil {
		return 0, err
	}
	for _, s := range expired {
		f.flushExpired(ctx, s)
	}
	return len(expired), nil
}

// flushExpired clears the chat of an expired dialog unless the user already
// opened a new one there, whose messages share the chat's ledger.
func (f *Flow) flushExpired(ctx context.Context, s Session) {
	unlock := f.locks.lock(s.UserID)
	defer unlock()

	live, err := f.deps.Sessions.Get(ctx, s.UserID)
	if err != nil {
		f.log.WarnContext(ctx, "Failed to check for a newer dialog, chat left as is", "user_id", s.UserID, "error", err)
		return
	}
	if live != nil && live.ChatID == s.ChatID {
		f.log.InfoContext(ctx, "Habit dialog expired, newer dialog keeps the chat", "user_id", s.UserID, "chat_id", s.ChatID, "state", s.State)
		return
	}

	f.deps.Ledger.Flush(ctx, s.ChatID, f.deps.Messenger)
	f.log.InfoContext(ctx, "Habit dialog expired", "user_id", s.UserID, "chat_id", s.ChatID, "state", s.State)
}

func (f *Flow) run(ctx context.Context, s Session, effect Effect) error {
	switch e := effect.(type) {
	case SendPrompt:
		return f.send(ctx, s.ChatID, e)
	case FlushLedger:
		f.deps.Ledger.Flush(ctx, s.ChatID, f.deps.Messenger)
		return nil
	case CompleteHabit:
		s.Draft = e.Draft
		result := f.deps.Creator.Complete(ctx, s)
		f.log.InfoContext(ctx, "Habit dialog finished", "user_id", s.UserID, "outcome", result.Outcome)
		return result.Err
	default:
		return fmt.Errorf("unknown dialog effect %T", effect)
	}
}

func (f *Flow) send(ctx context.Context, chatID int64, p SendPrompt) error {
	id, err := f.deps.Messenger.Send(ctx, chatID, Outgoing{Text: p.Text, Markdown: true})
	if err != nil {
		return fmt.Errorf("failed to send prompt: %w", err)
	}
	f.deps.Ledger.Record(chatID, id)
	return nil
}

// userLocks hands out one mutex per user id and drops it once unused.
type userLocks struct {
	mu    sync.Mutex
	locks map[int64]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

func newUserLocks() *userLocks {
	return &userLocks{locks: make(map[int64]*userLock)}
}

func (u *userLocks) lock(userID int64) (unlock func()) {
	u.mu.Lock()
	l, ok := u.locks[userID]
	if !ok {
		l = &userLock{}
		u.locks[userID] = l
	}
	l.refs++
	u.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		u.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(u.locks, userID)
		}
		u.mu.Unlock()
	}
}
