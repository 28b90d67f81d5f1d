// Package negotiation implements the deterministic price concession ladder used when a
// customer haggles over a quoted price. Phrasing sits on top of the numeric decision.
package negotiation

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrInvalidOffer      = errors.New("offer must be a positive finite amount")
	ErrInvalidTerms      = errors.New("negotiation requires 0 < floor <= initial price")
	ErrNegotiationClosed = errors.New("negotiation is closed")
)

type Status string

const (
	StatusOpen        Status = "open"
	StatusNegotiating Status = "negotiating"
	StatusAccepted    Status = "accepted"
	StatusAbandoned   Status = "abandoned"
)

func (s Status) Terminal() bool {
	return s == StatusAccepted || s == StatusAbandoned
}

type Offerer string

const (
	OffererBusiness Offerer = "business"
	OffererCustomer Offerer = "customer"
)

// Entry is one price statement in the negotiation history.
type Entry struct {
	Price   float64 `json:"price"`
	Offerer Offerer `json:"offerer"`
}

type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionCounter Decision = "counter"
)

// Outcome is the result of one customer offer.
type Outcome struct {
	Decision         Decision `json:"decision"`
	Bracket          Bracket  `json:"bracket"`
	Offer            float64  `json:"offer"`
	Price            float64  `json:"price"` // final price when accepted, counter otherwise
	PercentOfInitial float64  `json:"percentOfInitial"`
	Status           Status   `json:"status"`
}

// State is a copy of the negotiation, safe to hand to callers.
type State struct {
	InitialPrice  float64 `json:"initialPrice"`
	FloorPrice    float64 `json:"floorPrice"`
	CurrentAsking float64 `json:"currentAsking"`
	Status        Status  `json:"status"`
	FinalPrice    float64 `json:"finalPrice,omitempty"`
	History       []Entry `json:"history"`
}

// Negotiation is the state machine for one haggling session. It is not safe for
// concurrent use; Manager serializes access per conversation.
type Negotiation struct {
	ladder   LadderConfig
	initial  float64
	floor    float64
	asking   float64
	status   Status
	history  []Entry
	accepted *Outcome
}

// Open starts a negotiation at initialPrice. The floor is supplied by the caller and
// never changes afterwards.
func Open(initialPrice, floorPrice float64, ladder LadderConfig) (*Negotiation, error) {
	if !validAmount(initialPrice) || !validAmount(floorPrice) || floorPrice > initialPrice {
		return nil, fmt.Errorf("%w (initial=%v floor=%v)", ErrInvalidTerms, initialPrice, floorPrice)
	}
	if err := ladder.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ladder: %w", err)
	}
	return &Negotiation{
		ladder:  ladder,
		initial: initialPrice,
		floor:   floorPrice,
		asking:  initialPrice,
		status:  StatusOpen,
		history: []Entry{{Price: initialPrice, Offerer: OffererBusiness}},
	}, nil
}

// Propose applies one customer offer. Invalid offers are rejected before any state
// changes. Once accepted, the same accepted outcome is returned for every later call;
// an abandoned negotiation returns ErrNegotiationClosed.
func (n *Negotiation) Propose(offer float64) (Outcome, error) {
	switch n.status {
	case StatusAccepted:
		return *n.accepted, nil
	case StatusAbandoned:
		return Outcome{}, ErrNegotiationClosed
	}
	if !validAmount(offer) {
		return Outcome{}, fmt.Errorf("%w: %v", ErrInvalidOffer, offer)
	}

	bracket, price := n.ladder.Evaluate(offer, n.asking, n.floor, n.initial)
	out := Outcome{
		Bracket:          bracket,
		Offer:            offer,
		PercentOfInitial: offer / n.initial * 100,
	}

	n.history = append(n.history, Entry{Price: offer, Offerer: OffererCustomer})

	if bracket == BracketAccept {
		n.status = StatusAccepted
		out.Decision = DecisionAccept
		out.Price = offer
		out.Status = n.status
		n.accepted = &out
		return out, nil
	}

	// never below the floor, never above what was last asked: once the asking price
	// has reached the floor, a far-below-floor offer is countered at the floor itself
	counter := math.Max(price, n.floor)
	counter = math.Min(counter, math.Max(n.asking, n.floor))

	n.asking = counter
	n.status = StatusNegotiating
	n.history = append(n.history, Entry{Price: counter, Offerer: OffererBusiness})

	out.Decision = DecisionCounter
	out.Price = counter
	out.Status = n.status
	return out, nil
}

// Abandon closes the negotiation without a deal. Abandoning an accepted negotiation
// is an error; abandoning twice is not.
func (n *Negotiation) Abandon() error {
	switch n.status {
	case StatusAccepted:
		return ErrNegotiationClosed
	case StatusAbandoned:
		return nil
	}
	n.status = StatusAbandoned
	return nil
}

func (n *Negotiation) Status() Status { return n.status }

func (n *Negotiation) Snapshot() State {
	s := State{
		InitialPrice:  n.initial,
		FloorPrice:    n.floor,
		CurrentAsking: n.asking,
		Status:        n.status,
		History:       append([]Entry(nil), n.history...),
	}
	if n.accepted != nil {
		s.FinalPrice = n.accepted.Price
	}
	return s
}

func validAmount(v float64) bool {
	return v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}
