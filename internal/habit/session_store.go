package habit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/edgard/habitbot/internal/database"
)

// SessionStore keeps one dialog session per user. Implementations must be
// safe for concurrent use. Get returns nil, nil for a missing or expired
// session.
type SessionStore interface {
	// Create stores s as the user's session, replacing any existing one.
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, userID int64) (*Session, error)
	// Update stores s and refreshes its idle timer.
	Update(ctx context.Context, s Session) error
	Delete(ctx context.Context, userID int64) error
	// DeleteExpired removes sessions idle longer than the TTL and returns them.
	DeleteExpired(ctx context.Context) ([]Session, error)
}

// MemorySessionStore keeps sessions in process memory.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[int64]Session
	ttl      time.Duration
	now      func() time.Time
}

// NewMemorySessionStore returns an in-memory store. A ttl <= 0 disables expiry.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[int64]Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (m *MemorySessionStore) expired(s Session, now time.Time) bool {
	return m.ttl > 0 && now.Sub(s.UpdatedAt) > m.ttl
}

func (m *MemorySessionStore) Create(_ context.Context, s Session) error {
	now := m.now()
	s.StartedAt = now
	s.UpdatedAt = now
	m.mu.Lock()
	m.sessions[s.UserID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, userID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	if !ok || m.expired(s, m.now()) {
		return nil, nil
	}
	return &s, nil
}

func (m *MemorySessionStore) Update(_ context.Context, s Session) error {
	s.UpdatedAt = m.now()
	m.mu.Lock()
	m.sessions[s.UserID] = s
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) Delete(_ context.Context, userID int64) error {
	m.mu.Lock()
	delete(m.sessions, userID)
	m.mu.Unlock()
	return nil
}

func (m *MemorySessionStore) DeleteExpired(_ context.Context) ([]Session, error) {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var expired []Session
	for id, s := range m.sessions {
		if m.expired(s, now) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	return expired, nil
}

// SessionRecords is the part of database.Store the SQL session store needs.
type SessionRecords interface {
	GetConversationSession(ctx context.Context, userID int64) (*database.ConversationSession, error)
	SaveConversationSession(ctx context.Context, session *database.ConversationSession) error
	DeleteConversationSession(ctx context.Context, userID int64) error
	DeleteConversationSessionsBefore(ctx context.Context, cutoff time.Time) ([]*database.ConversationSession, error)
}

// SQLSessionStore persists sessions in the conversation_sessions table so a
// dialog survives a restart.
type SQLSessionStore struct {
	records SessionRecords
	ttl     time.Duration
	now     func() time.Time
}

// NewSQLSessionStore returns a database-backed store. A ttl <= 0 disables expiry.
func NewSQLSessionStore(records SessionRecords, ttl time.Duration) *SQLSessionStore {
	return &SQLSessionStore{records: records, ttl: ttl, now: time.Now}
}

func (s *SQLSessionStore) Create(ctx context.Context, session Session) error {
	now := s.now().UTC()
	session.StartedAt = now
	session.UpdatedAt = now
	return s.save(ctx, session)
}

func (s *SQLSessionStore) Get(ctx context.Context, userID int64) (*Session, error) {
	rec, err := s.records.GetConversationSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if rec == nil {
		return nil, nil
	}
	if s.ttl > 0 && s.now().Sub(rec.UpdatedAt) > s.ttl {
		return nil, nil
	}
	session := sessionFromRecord(rec)
	if !session.State.Valid() {
		return nil, fmt.Errorf("stored session for user %d has unknown state %q", userID, rec.State)
	}
	return &session, nil
}

func (s *SQLSessionStore) Update(ctx context.Context, session Session) error {
	session.UpdatedAt = s.now().UTC()
	return s.save(ctx, session)
}

func (s *SQLSessionStore) Delete(ctx context.Context, userID int64) error {
	if err := s.records.DeleteConversationSession(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *SQLSessionStore) DeleteExpired(ctx context.Context) ([]Session, error) {
	if s.ttl <= 0 {
		return nil, nil
	}
	recs, err := s.records.DeleteConversationSessionsBefore(ctx, s.now().Add(-s.ttl))
	if err != nil {
		return nil, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	out := make([]Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, sessionFromRecord(rec))
	}
	return out, nil
}

func (s *SQLSessionStore) save(ctx context.Context, session Session) error {
	rec := &database.ConversationSession{
		UserID:       session.UserID,
		ChatID:       session.ChatID,
		State:        session.State.String(),
		HabitName:    session.Draft.HabitName,
		Duration:     session.Draft.Duration,
		Comments:     session.Draft.Comments,
		ReminderTime: session.Draft.ReminderTime,
		CreatedAt:    session.StartedAt,
		UpdatedAt:    session.UpdatedAt,
	}
	if err := s.records.SaveConversationSession(ctx, rec); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

func sessionFromRecord(rec *database.ConversationSession) Session {
	return Session{
		UserID: rec.UserID,
		ChatID: rec.ChatID,
		State:  State(rec.State),
		Draft: Draft{
			HabitName:    rec.HabitName,
			Duration:     rec.Duration,
			Comments:     rec.Comments,
			ReminderTime: rec.ReminderTime,
		},
		StartedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}
