package domain

import (
	"sync"
	"time"
)

type TurnRole string

const (
	TurnRoleAssistant TurnRole = "assistant"
	TurnRoleUser      TurnRole = "user"
)

type Turn struct {
	Role      TurnRole  `json:"type"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// ConversationContext is the place a chat is anchored to. ID matches the
// persisted Record the context was seeded from.
type ConversationContext struct {
	ID        string `json:"image_id"`
	PlaceName string `json:"place_name"`
	Narration string `json:"description"`
	Coordinates
}

// ConversationLog is an append-only sequence of turns. Insertion order is
// the replay order used when prompting.
type ConversationLog struct {
	turns []Turn
}

func (l *ConversationLog) Append(turn Turn) {
	l.turns = append(l.turns, turn)
}

// Turns returns a copy of the log.
func (l *ConversationLog) Turns() []Turn {
	out := make([]Turn, len(l.turns))
	copy(out, l.turns)
	return out
}

func (l *ConversationLog) Len() int {
	return len(l.turns)
}

// ConversationState binds one active context to its log. The two are always
// created and replaced together; a log never exists without a context.
type ConversationState struct {
	mu      sync.Mutex
	context *ConversationContext
	log     ConversationLog
}

func NewConversationState() *ConversationState {
	return &ConversationState{}
}

// Activate replaces whatever is active with c and seeds a fresh log with the
// narration as the single assistant turn.
func (s *ConversationState) Activate(c ConversationContext, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.context = &c
	s.log = ConversationLog{}
	s.log.Append(Turn{
		Role:      TurnRoleAssistant,
		Content:   c.Narration,
		Timestamp: at,
	})
}

// Active returns the active context and a copy of its log.
func (s *ConversationState) Active() (ConversationContext, []Turn, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.context == nil {
		return ConversationContext{}, nil, false
	}
	return *s.context, s.log.Turns(), true
}

// Exchange runs fn while holding the state's lock, so exchanges against one
// context are serialized. It returns ErrNoActiveContext without calling fn
// when nothing is active.
func (s *ConversationState) Exchange(fn func(c ConversationContext, log *ConversationLog) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.context == nil {
		return ErrNoActiveContext
	}
	return fn(*s.context, &s.log)
}
