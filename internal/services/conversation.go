package services

import (
	"sync"
	"time"

	"github.com/biasharahub/biashara/internal/ai"
)

// ConversationStore keeps the recent turns of each chat so the router can give the
// backends some context. It is process-local.
type ConversationStore struct {
	mu       sync.Mutex
	convs    map[string]*conversation
	maxTurns int
	now      func() time.Time
}

type conversation struct {
	turns    []ai.Message
	lastUsed time.Time
}

func NewConversationStore(maxTurns int) *ConversationStore {
	if maxTurns <= 0 {
		maxTurns = 20
	}
	return &ConversationStore{
		convs:    make(map[string]*conversation),
		maxTurns: maxTurns,
		now:      time.Now,
	}
}

// History returns a copy of the stored turns.
func (s *ConversationStore) History(id string) []ai.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		return nil
	}
	out := make([]ai.Message, len(c.turns))
	copy(out, c.turns)
	return out
}

// Append records turns, dropping the oldest beyond the limit.
func (s *ConversationStore) Append(id string, turns ...ai.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.convs[id]
	if !ok {
		c = &conversation{}
		s.convs[id] = c
	}
	c.turns = append(c.turns, turns...)
	if over := len(c.turns) - s.maxTurns; over > 0 {
		c.turns = append([]ai.Message(nil), c.turns[over:]...)
	}
	c.lastUsed = s.now()
}

// Evict drops conversations idle for longer than ttl and returns how many were removed.
func (s *ConversationStore) Evict(ttl time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-ttl)
	n := 0
	for id, c := range s.convs {
		if c.lastUsed.Before(cutoff) {
			delete(s.convs, id)
			n++
		}
	}
	return n
}
