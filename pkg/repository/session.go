package repository

import (
	"sync"
	"time"

	"github.com/jphacks/os-2412/pkg/domain"
)

type sessionEntry struct {
	state      *domain.ConversationState
	lastUpdate time.Time
}

// sessionRepository keeps one conversation state per session. A session not
// touched for longer than ttl is treated as gone.
type sessionRepository struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionRepository(ttl time.Duration) *sessionRepository {
	return &sessionRepository{
		sessions: make(map[string]*sessionEntry),
		ttl:      ttl,
		now:      time.Now,
	}
}

func (s *sessionRepository) expired(entry *sessionEntry, now time.Time) bool {
	return s.ttl > 0 && now.Sub(entry.lastUpdate) > s.ttl
}

func (s *sessionRepository) GetOrCreate(sessionID string) *domain.ConversationState {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.sessions[sessionID]
	if !ok || s.expired(entry, now) {
		entry = &sessionEntry{state: domain.NewConversationState()}
		s.sessions[sessionID] = entry
	}
	entry.lastUpdate = now

	return entry.state
}

func (s *sessionRepository) Find(sessionID string) (*domain.ConversationState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	entry, ok := s.sessions[sessionID]
	if !ok {
		return nil, false
	}
	if s.expired(entry, now) {
		delete(s.sessions, sessionID)
		return nil, false
	}
	entry.lastUpdate = now

	return entry.state, true
}

func (s *sessionRepository) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, sessionID)
}

// Sweep drops every expired session and returns how many were removed.
func (s *sessionRepository) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for id, entry := range s.sessions {
		if s.expired(entry, now) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed
}

func (s *sessionRepository) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.sessions)
}
