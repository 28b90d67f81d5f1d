package negotiation

import (
	"errors"
	"fmt"
)

// Bracket names the ladder rule that produced a decision.
type Bracket string

const (
	BracketAccept        Bracket = "accept"
	BracketFarBelowFloor Bracket = "far_below_floor"
	BracketBelowFloor    Bracket = "below_floor"
	BracketMidpoint      Bracket = "midpoint"
	BracketBump          Bracket = "bump"
	BracketNudge         Bracket = "nudge"
)

// LadderConfig holds the concession ladder breakpoints. Zero values are not defaults;
// start from DefaultLadder.
type LadderConfig struct {
	// Accept when offer >= asking*AcceptAskingRatio.
	AcceptAskingRatio float64
	// Accept any offer at or above the floor.
	AcceptAtFloor bool
	// Offers below floor*FarBelowFloorRatio are countered at floor*FarBelowFloorCounter.
	FarBelowFloorRatio   float64
	FarBelowFloorCounter float64
	// Percent-of-initial breakpoints for the midpoint and bump brackets.
	MidpointBelowPct float64
	BumpBelowPct     float64
	BumpRatio        float64
	NudgeRatio       float64
}

// DefaultLadder returns the production breakpoints.
func DefaultLadder() LadderConfig {
	return LadderConfig{
		AcceptAskingRatio:    0.95,
		AcceptAtFloor:        true,
		FarBelowFloorRatio:   0.9,
		FarBelowFloorCounter: 1.05,
		MidpointBelowPct:     70,
		BumpBelowPct:         85,
		BumpRatio:            1.10,
		NudgeRatio:           1.02,
	}
}

func (c LadderConfig) Validate() error {
	var errs []error
	if c.AcceptAskingRatio <= 0 || c.AcceptAskingRatio > 1 {
		errs = append(errs, fmt.Errorf("accept asking ratio %.2f must be in (0, 1]", c.AcceptAskingRatio))
	}
	if c.FarBelowFloorRatio <= 0 || c.FarBelowFloorRatio >= 1 {
		errs = append(errs, fmt.Errorf("far-below-floor ratio %.2f must be in (0, 1)", c.FarBelowFloorRatio))
	}
	if c.FarBelowFloorCounter < 1 {
		errs = append(errs, fmt.Errorf("far-below-floor counter %.2f must be >= 1", c.FarBelowFloorCounter))
	}
	if c.MidpointBelowPct <= 0 || c.BumpBelowPct <= c.MidpointBelowPct {
		errs = append(errs, fmt.Errorf("percent breakpoints %.0f/%.0f must be positive and increasing", c.MidpointBelowPct, c.BumpBelowPct))
	}
	if c.BumpRatio < 1 || c.NudgeRatio < 1 {
		errs = append(errs, errors.New("bump and nudge ratios must be >= 1"))
	}
	return errors.Join(errs...)
}

// Evaluate applies the ladder top-down; the first matching bracket wins. For counter
// brackets the returned price is the raw ladder value before clamping. Nothing below
// the floor is accepted, even when it is close to the current asking price.
func (c LadderConfig) Evaluate(offer, asking, floor, initial float64) (Bracket, float64) {
	if offer >= floor && (offer >= asking*c.AcceptAskingRatio || c.AcceptAtFloor) {
		return BracketAccept, offer
	}

	pct := offer / initial * 100

	switch {
	case offer < floor*c.FarBelowFloorRatio:
		return BracketFarBelowFloor, floor * c.FarBelowFloorCounter
	case offer < floor:
		return BracketBelowFloor, floor
	case pct < c.MidpointBelowPct:
		return BracketMidpoint, (offer + asking) / 2
	case pct < c.BumpBelowPct:
		return BracketBump, offer * c.BumpRatio
	default:
		return BracketNudge, offer * c.NudgeRatio
	}
}
