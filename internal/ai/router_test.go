package ai

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	"github.com/biasharahub/biashara/internal/negotiation"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	name     string
	complete func(ctx context.Context, p Prompt) (string, error)
	calls    atomic.Int32
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Complete(ctx context.Context, p Prompt) (string, error) {
	f.calls.Add(1)
	return f.complete(ctx, p)
}

// jsonOr answers JSON prompts with classification and free-text prompts with reply.
func jsonOr(classification, reply string) func(context.Context, Prompt) (string, error) {
	return func(_ context.Context, p Prompt) (string, error) {
		if p.JSON {
			return classification, nil
		}
		return reply, nil
	}
}

type countingObserver struct {
	backends []string
	failed   int
}

func (o *countingObserver) ObserveRoute(backend string, failed bool, _ time.Duration) {
	o.backends = append(o.backends, backend)
	if failed {
		o.failed++
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestNegotiator(t *testing.T) *negotiation.Manager {
	t.Helper()
	m, err := negotiation.NewManager(negotiation.ManagerConfig{
		Ladder:     negotiation.DefaultLadder(),
		FloorRatio: 0.8,
		IdleTTL:    time.Hour,
	}, nil, testLogger())
	require.NoError(t, err)
	return m
}

func TestRoute_UrgentOfferGoesToNegotiation(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr(`{"isUrgent": true, "reason": "now"}`, "should not be used")}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr("{}", "should not be used")}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Negotiator: newTestNegotiator(t), Logger: testLogger()})

	resp := r.Route(context.Background(), Request{
		Message:        "I need it now, I'll pay KES 500",
		ConversationID: "conv-1",
		ListPrice:      1000,
	})

	assert.Equal(t, BackendFast, resp.Backend)
	assert.Equal(t, UrgencyHigh, resp.Urgency)
	assert.Equal(t, "counter", resp.Metadata["decision"])
	assert.Contains(t, resp.Response, "840")
	assert.EqualValues(t, 1, fast.calls.Load(), "only the urgency classifier should hit the fast backend")
	assert.Zero(t, quality.calls.Load())
}

func TestRoute_PriceQuestionWithoutContextUsesFastReply(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr(`{"isUrgent": false, "reason": "question"}`, "Bei ni KES 1,000.")}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr("{}", "unused")}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Negotiator: newTestNegotiator(t), Logger: testLogger()})

	// an offer but no list price and no open negotiation
	resp := r.Route(context.Background(), Request{Message: "nitalipa 500", ConversationID: "conv-2"})

	assert.Equal(t, BackendFast, resp.Backend)
	assert.Equal(t, UrgencyHigh, resp.Urgency)
	assert.Equal(t, "Bei ni KES 1,000.", resp.Response)
	assert.Equal(t, true, resp.Metadata["priceDetected"])
	assert.EqualValues(t, 2, fast.calls.Load())
}

func TestRoute_UrgentWithoutOfferUsesFastReply(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr(`{"isUrgent": true, "reason": "emergency"}`, "Tunakuja sasa hivi.")}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr("{}", "unused")}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Logger: testLogger()})

	resp := r.Route(context.Background(), Request{Message: "Pipe imepasuka, come quickly!"})

	assert.Equal(t, BackendFast, resp.Backend)
	assert.Equal(t, "Tunakuja sasa hivi.", resp.Response)
	assert.Nil(t, resp.Intent)
	assert.Zero(t, quality.calls.Load())
}

type countingNegotiator struct {
	Negotiator
	calls atomic.Int32
}

func (c *countingNegotiator) Negotiate(ctx context.Context, conversationID string, listPrice, offer float64) (negotiation.Reply, error) {
	c.calls.Add(1)
	return c.Negotiator.Negotiate(ctx, conversationID, listPrice, offer)
}

func TestRoute_UrgentQuantityQuestionSkipsNegotiation(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr(`{"isUrgent": true, "reason": "NOW"}`, "50 bags ni KES 32,500. Tunaweza kuleta leo.")}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr("{}", "unused")}
	neg := &countingNegotiator{Negotiator: newTestNegotiator(t)}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Negotiator: neg, Logger: testLogger()})

	resp := r.Route(context.Background(), Request{
		Message:        "I need this NOW, how much for 50 bags",
		BusinessType:   "hardware",
		ConversationID: "conv-cement",
		ListPrice:      650,
	})

	assert.Equal(t, BackendFast, resp.Backend)
	assert.Equal(t, UrgencyHigh, resp.Urgency)
	assert.Equal(t, "50 bags ni KES 32,500. Tunaweza kuleta leo.", resp.Response)
	assert.Equal(t, true, resp.Metadata["isUrgent"])
	assert.Equal(t, true, resp.Metadata["priceDetected"])
	assert.NotContains(t, resp.Metadata, "decision")
	assert.Zero(t, neg.calls.Load())
	assert.False(t, neg.HasOpen("conv-cement"))
	assert.Zero(t, quality.calls.Load())
}

func TestQuotedPrice(t *testing.T) {
	history := []Message{
		{Role: "user", Content: "Bei gani?"},
		{Role: "assistant", Content: "Ni KES 1,000 kwa kilo."},
		{Role: "user", Content: "Nitalipa KES 700"},
		{Role: "assistant", Content: "Tuna mahindi mazuri sana."},
	}
	assert.Equal(t, 1000.0, QuotedPrice(history))
	assert.Zero(t, QuotedPrice(history[:1]))
	assert.Zero(t, QuotedPrice(nil))
}

func TestRoute_QualityPathWithIntent(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr(`{"isUrgent": false, "reason": "general"}`, "unused")}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr(
		"```json\n{\"category\": \"booking\", \"urgency\": \"LOW\", \"requiresRealtime\": true}\n```",
		"We are open Monday to Saturday.",
	)}
	obs := &countingObserver{}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Observer: obs, Logger: testLogger()})

	resp := r.Route(context.Background(), Request{
		Message:      "Can I book a haircut for Saturday?",
		BusinessType: "salon",
		Business:     BusinessContext{Name: "Mama Njeri Salon", Location: "Kisumu"},
	})

	require.NotNil(t, resp.Intent)
	assert.Equal(t, BackendQuality, resp.Backend)
	assert.Equal(t, Intent{Category: "booking", Urgency: UrgencyLow, RequiresRealtime: true}, *resp.Intent)
	assert.Equal(t, UrgencyLow, resp.Urgency)
	assert.Equal(t, "We are open Monday to Saturday.", resp.Response)
	assert.Equal(t, []string{BackendQuality}, obs.backends)
	assert.Zero(t, obs.failed)
}

func TestRoute_MalformedIntentUsesDefaults(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr(`{"isUrgent": false}`, "unused")}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr("I think this is a booking", "Karibu!")}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Logger: testLogger()})
	resp := r.Route(context.Background(), Request{Message: "Hello there"})

	require.NotNil(t, resp.Intent)
	assert.Equal(t, DefaultIntent(), *resp.Intent)
	assert.Equal(t, BackendQuality, resp.Backend)
	assert.Equal(t, "Karibu!", resp.Response)
}

func TestRoute_MalformedUrgencyUsesKeywords(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr("yes it is urgent", "Tunakuja!")}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr("{}", "unused")}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Logger: testLogger()})
	resp := r.Route(context.Background(), Request{Message: "Nahitaji fundi haraka"})

	assert.Equal(t, BackendFast, resp.Backend)
	assert.Equal(t, "keyword: haraka", resp.Metadata["urgencyReason"])
}

func TestRoute_BackendErrorFallsBack(t *testing.T) {
	fast := &fakeBackend{name: BackendFast, complete: jsonOr(`{"isUrgent": false}`, "unused")}
	quality := &fakeBackend{name: BackendQuality, complete: func(_ context.Context, p Prompt) (string, error) {
		if p.JSON {
			return `{"category": "general", "urgency": "medium"}`, nil
		}
		return "", errors.New("connection reset by peer")
	}}
	obs := &countingObserver{}

	r := NewRouter(RouterDeps{Fast: fast, Quality: quality, Observer: obs, Logger: testLogger()})
	resp := r.Route(context.Background(), Request{Message: "Tell me about your services"})

	assert.Equal(t, BackendFallback, resp.Backend)
	assert.Equal(t, FallbackText, resp.Response)
	assert.Equal(t, true, resp.Metadata["error"])
	assert.Equal(t, 1, obs.failed)
}

func TestRoute_TimeoutFallsBackWithinBudget(t *testing.T) {
	// ignores ctx on purpose
	slow := &fakeBackend{name: BackendFast, complete: func(context.Context, Prompt) (string, error) {
		time.Sleep(2 * time.Second)
		return `{"isUrgent": true}`, nil
	}}
	quality := &fakeBackend{name: BackendQuality, complete: jsonOr("{}", "unused")}

	r := NewRouter(RouterDeps{
		Fast:    NewResilientBackend(slow, 50*time.Millisecond, testLogger()),
		Quality: quality,
		Logger:  testLogger(),
	})

	start := time.Now()
	resp := r.Route(context.Background(), Request{Message: "hello"})

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, BackendFallback, resp.Backend)
	assert.Equal(t, FallbackText, resp.Response)
	assert.Positive(t, resp.ProcessingTime)
}

func TestResilientBackend_OpensAfterConsecutiveFailures(t *testing.T) {
	inner := &fakeBackend{name: BackendQuality, complete: func(context.Context, Prompt) (string, error) {
		return "", errors.New("503 from upstream")
	}}
	b := NewResilientBackend(inner, time.Second, testLogger())

	for i := 0; i < 5; i++ {
		_, err := b.Complete(context.Background(), Prompt{})
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, b.State())

	_, err := b.Complete(context.Background(), Prompt{})
	assert.ErrorIs(t, err, models.ErrServiceUnavailable)
	assert.EqualValues(t, 5, inner.calls.Load(), "open breaker must not reach the backend")
}

func TestResilientBackend_EmptyOutputIsFailure(t *testing.T) {
	inner := &fakeBackend{name: BackendFast, complete: func(context.Context, Prompt) (string, error) {
		return "  \n", nil
	}}
	b := NewResilientBackend(inner, time.Second, testLogger())

	_, err := b.Complete(context.Background(), Prompt{})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
	assert.ErrorIs(t, err, models.ErrBackendGeneration)
}
