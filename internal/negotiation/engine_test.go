package negotiation

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openDefault(t *testing.T, initial, floor float64) *Negotiation {
	t.Helper()
	n, err := Open(initial, floor, DefaultLadder())
	require.NoError(t, err)
	return n
}

func TestPropose_AcceptsAtOrAboveFloor(t *testing.T) {
	n := openDefault(t, 1000, 800)

	out, err := n.Propose(820)
	require.NoError(t, err)

	assert.Equal(t, DecisionAccept, out.Decision)
	assert.Equal(t, 820.0, out.Price)
	assert.Equal(t, StatusAccepted, n.Status())
	assert.Equal(t, 820.0, n.Snapshot().FinalPrice)
}

func TestPropose_FarBelowFloorCountersAboveFloor(t *testing.T) {
	n := openDefault(t, 1000, 800)

	out, err := n.Propose(500)
	require.NoError(t, err)

	assert.Equal(t, DecisionCounter, out.Decision)
	assert.Equal(t, BracketFarBelowFloor, out.Bracket)
	assert.InDelta(t, 840.0, out.Price, 1e-9)
	assert.InDelta(t, 50.0, out.PercentOfInitial, 1e-9)

	state := n.Snapshot()
	assert.Equal(t, StatusNegotiating, state.Status)
	assert.InDelta(t, 840.0, state.CurrentAsking, 1e-9)
	assert.Equal(t, []Entry{
		{Price: 1000, Offerer: OffererBusiness},
		{Price: 500, Offerer: OffererCustomer},
		{Price: 840, Offerer: OffererBusiness},
	}, roundHistory(state.History))
}

func TestPropose_AcceptanceBoundary(t *testing.T) {
	t.Run("exactly floor is accepted", func(t *testing.T) {
		n := openDefault(t, 1000, 800)
		out, err := n.Propose(800)
		require.NoError(t, err)
		assert.Equal(t, DecisionAccept, out.Decision)
	})

	t.Run("one below floor is countered at floor", func(t *testing.T) {
		n := openDefault(t, 1000, 800)
		out, err := n.Propose(799)
		require.NoError(t, err)
		assert.Equal(t, DecisionCounter, out.Decision)
		assert.Equal(t, BracketBelowFloor, out.Bracket)
		assert.Equal(t, 800.0, out.Price)
	})

	t.Run("ninety percent of floor is not far below", func(t *testing.T) {
		n := openDefault(t, 1000, 800)
		out, err := n.Propose(720)
		require.NoError(t, err)
		assert.Equal(t, BracketBelowFloor, out.Bracket)
	})
}

func TestPropose_NearAskingBelowFloorIsCountered(t *testing.T) {
	n := openDefault(t, 1000, 800)

	out, err := n.Propose(750)
	require.NoError(t, err)
	require.Equal(t, DecisionCounter, out.Decision)
	require.Equal(t, 800.0, out.Price)

	// 760 is within 95% of the 800 asking price but still under the floor
	out, err = n.Propose(760)
	require.NoError(t, err)
	assert.Equal(t, DecisionCounter, out.Decision)
	assert.Equal(t, BracketBelowFloor, out.Bracket)
	assert.Equal(t, 800.0, out.Price)
	assert.Equal(t, StatusNegotiating, n.Status())
	assert.Zero(t, n.Snapshot().FinalPrice)
}

func TestPropose_CounterCappedAtLastAsking(t *testing.T) {
	n := openDefault(t, 1000, 800)

	_, err := n.Propose(750)
	require.NoError(t, err)

	// the ladder says 840 for a far-below-floor offer, but the asking price is already 800
	out, err := n.Propose(500)
	require.NoError(t, err)
	assert.Equal(t, BracketFarBelowFloor, out.Bracket)
	assert.Equal(t, 800.0, out.Price)
	assert.Equal(t, 800.0, n.Snapshot().CurrentAsking)
}

func TestPropose_AcceptedIsIdempotent(t *testing.T) {
	n := openDefault(t, 1000, 800)

	first, err := n.Propose(900)
	require.NoError(t, err)
	historyLen := len(n.Snapshot().History)

	again, err := n.Propose(100)
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Len(t, n.Snapshot().History, historyLen)
}

func TestPropose_AbandonedRejectsOffers(t *testing.T) {
	n := openDefault(t, 1000, 800)
	require.NoError(t, n.Abandon())
	require.NoError(t, n.Abandon())

	_, err := n.Propose(900)
	assert.ErrorIs(t, err, ErrNegotiationClosed)
}

func TestAbandon_AcceptedIsClosed(t *testing.T) {
	n := openDefault(t, 1000, 800)
	_, err := n.Propose(1000)
	require.NoError(t, err)
	assert.ErrorIs(t, n.Abandon(), ErrNegotiationClosed)
}

func TestPropose_InvalidOfferLeavesStateUntouched(t *testing.T) {
	for _, offer := range []float64{0, -10, math.NaN(), math.Inf(1)} {
		n := openDefault(t, 1000, 800)
		before := n.Snapshot()

		_, err := n.Propose(offer)
		assert.ErrorIs(t, err, ErrInvalidOffer)
		assert.Equal(t, before, n.Snapshot())
	}
}

func TestOpen_RejectsBadTerms(t *testing.T) {
	_, err := Open(1000, 1200, DefaultLadder())
	assert.ErrorIs(t, err, ErrInvalidTerms)

	_, err = Open(0, 0, DefaultLadder())
	assert.ErrorIs(t, err, ErrInvalidTerms)

	_, err = Open(1000, 800, LadderConfig{})
	assert.Error(t, err)
}

func TestPropose_CounterNeverBelowFloor(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ladder := DefaultLadder()
	ladder.AcceptAtFloor = false // exercise every bracket

	for i := 0; i < 500; i++ {
		initial := 100 + rng.Float64()*10000
		floor := initial * (0.5 + rng.Float64()*0.5)
		n, err := Open(initial, floor, ladder)
		require.NoError(t, err)

		for step := 0; step < 10 && !n.Status().Terminal(); step++ {
			offer := 1 + rng.Float64()*initial*1.1
			out, err := n.Propose(offer)
			require.NoError(t, err)
			if out.Decision == DecisionCounter {
				assert.GreaterOrEqual(t, out.Price, floor)
				assert.GreaterOrEqual(t, n.Snapshot().CurrentAsking, floor)
			}
		}
	}
}

func TestEvaluate_Brackets(t *testing.T) {
	ladder := DefaultLadder()
	ladder.AcceptAtFloor = false

	tests := []struct {
		name    string
		offer   float64
		asking  float64
		bracket Bracket
		price   float64
	}{
		{"near asking accepts", 960, 1000, BracketAccept, 960},
		{"near asking below floor", 590, 610, BracketBelowFloor, 600},
		{"far below floor", 500, 1000, BracketFarBelowFloor, 630},
		{"below floor", 590, 1000, BracketBelowFloor, 600},
		{"midpoint under 70 percent", 650, 1000, BracketMidpoint, 825},
		{"bump under 85 percent", 800, 1000, BracketBump, 880},
		{"nudge from 85 percent", 900, 1000, BracketNudge, 918},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bracket, price := ladder.Evaluate(tt.offer, tt.asking, 600, 1000)
			assert.Equal(t, tt.bracket, bracket)
			assert.InDelta(t, tt.price, price, 1e-9)
		})
	}
}

func roundHistory(h []Entry) []Entry {
	out := make([]Entry, len(h))
	for i, e := range h {
		out[i] = Entry{Price: math.Round(e.Price*100) / 100, Offerer: e.Offerer}
	}
	return out
}
