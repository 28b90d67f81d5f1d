package negotiation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrNoNegotiation is returned when an offer arrives for a conversation with no open
// negotiation and no list price to start one.
var ErrNoNegotiation = errors.New("no negotiation in progress")

// Reply is what the chat layer sends back for one customer offer.
type Reply struct {
	Text    string  `json:"text"`
	Outcome Outcome `json:"outcome"`
	State   State   `json:"state"`
}

type session struct {
	mu       sync.Mutex
	n        *Negotiation
	lastUsed time.Time
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	Ladder     LadderConfig
	FloorRatio float64 // floor = list price * FloorRatio
	IdleTTL    time.Duration
}

// Manager owns one Negotiation per conversation. Offers within the same conversation
// are applied one at a time; different conversations proceed in parallel.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*session
	cfg      ManagerConfig
	phrases  *Phrasebook
	logger   *slog.Logger
	now      func() time.Time
}

func NewManager(cfg ManagerConfig, phrases *Phrasebook, logger *slog.Logger) (*Manager, error) {
	if cfg.FloorRatio <= 0 || cfg.FloorRatio > 1 {
		return nil, fmt.Errorf("floor ratio %v must be in (0, 1]", cfg.FloorRatio)
	}
	if err := cfg.Ladder.Validate(); err != nil {
		return nil, err
	}
	if phrases == nil {
		phrases = NewPhrasebook()
	}
	return &Manager{
		sessions: make(map[string]*session),
		cfg:      cfg,
		phrases:  phrases,
		logger:   logger,
		now:      time.Now,
	}, nil
}

// acquire returns the conversation's session, creating one from listPrice if needed.
// An abandoned negotiation is replaced when a list price is supplied.
func (m *Manager) acquire(conversationID string, listPrice float64) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[conversationID]
	if ok && !(s.n.Status() == StatusAbandoned && listPrice > 0) {
		s.lastUsed = m.now()
		return s, nil
	}
	if listPrice <= 0 {
		return nil, ErrNoNegotiation
	}

	n, err := Open(listPrice, listPrice*m.cfg.FloorRatio, m.cfg.Ladder)
	if err != nil {
		return nil, err
	}
	s = &session{n: n, lastUsed: m.now()}
	m.sessions[conversationID] = s
	return s, nil
}

// Negotiate applies a customer offer to the conversation's negotiation.
func (m *Manager) Negotiate(ctx context.Context, conversationID string, listPrice, offer float64) (Reply, error) {
	if conversationID == "" {
		return Reply{}, ErrNoNegotiation
	}
	if err := ctx.Err(); err != nil {
		return Reply{}, err
	}

	s, err := m.acquire(conversationID, listPrice)
	if err != nil {
		return Reply{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out, err := s.n.Propose(offer)
	if err != nil {
		return Reply{}, err
	}
	state := s.n.Snapshot()

	m.logger.DebugContext(ctx, "negotiation step",
		slog.String("conversation_id", conversationID),
		slog.String("decision", string(out.Decision)),
		slog.String("bracket", string(out.Bracket)),
		slog.Float64("offer", out.Offer),
		slog.Float64("price", out.Price),
	)

	return Reply{
		Text:    m.phrases.Phrase(out, len(state.History)),
		Outcome: out,
		State:   state,
	}, nil
}

// HasOpen reports whether the conversation has a negotiation that can take offers.
func (m *Manager) HasOpen(conversationID string) bool {
	m.mu.Lock()
	s, ok := m.sessions[conversationID]
	m.mu.Unlock()
	if !ok {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.n.Status().Terminal()
}

// Abandon closes the conversation's negotiation.
func (m *Manager) Abandon(conversationID string) error {
	m.mu.Lock()
	s, ok := m.sessions[conversationID]
	m.mu.Unlock()
	if !ok {
		return ErrNoNegotiation
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n.Abandon()
}

// Snapshot returns a copy of the conversation's negotiation state.
func (m *Manager) Snapshot(conversationID string) (State, bool) {
	m.mu.Lock()
	s, ok := m.sessions[conversationID]
	m.mu.Unlock()
	if !ok {
		return State{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.n.Snapshot(), true
}

// Evict drops sessions idle for longer than the configured TTL.
func (m *Manager) Evict() int {
	if m.cfg.IdleTTL <= 0 {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-m.cfg.IdleTTL)
	removed := 0
	for id, s := range m.sessions {
		if s.lastUsed.Before(cutoff) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// Len reports the number of tracked conversations.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
