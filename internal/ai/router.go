package ai

import (
	"context"
	"log/slog"
	"time"

	"github.com/biasharahub/biashara/internal/negotiation"
)

// Negotiator is the slice of the negotiation manager the router needs.
type Negotiator interface {
	Negotiate(ctx context.Context, conversationID string, listPrice, offer float64) (negotiation.Reply, error)
	HasOpen(conversationID string) bool
}

// RouteObserver receives one call per routed message.
type RouteObserver interface {
	ObserveRoute(backend string, failed bool, elapsed time.Duration)
}

// RouterDeps wires a Router.
type RouterDeps struct {
	Fast       Backend
	Quality    Backend
	Urgency    UrgencyClassifier // defaults to the fast backend classifier
	Intent     IntentClassifier  // defaults to the quality backend classifier
	Price      PriceDetector     // defaults to LexiconPriceDetector
	Negotiator Negotiator        // optional
	Observer   RouteObserver     // optional
	Logger     *slog.Logger
}

// Router picks a backend for each customer message.
type Router struct {
	fast       Backend
	quality    Backend
	urgency    UrgencyClassifier
	intent     IntentClassifier
	price      PriceDetector
	negotiator Negotiator
	observer   RouteObserver
	logger     *slog.Logger
	now        func() time.Time
}

func NewRouter(deps RouterDeps) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &Router{
		fast:       deps.Fast,
		quality:    deps.Quality,
		urgency:    deps.Urgency,
		intent:     deps.Intent,
		price:      deps.Price,
		negotiator: deps.Negotiator,
		observer:   deps.Observer,
		logger:     logger,
		now:        time.Now,
	}
	if r.urgency == nil {
		r.urgency = NewBackendUrgencyClassifier(r.fast, logger)
	}
	if r.intent == nil {
		r.intent = NewBackendIntentClassifier(r.quality, logger)
	}
	if r.price == nil {
		r.price = LexiconPriceDetector{}
	}
	return r
}

// Route produces exactly one response for req. Backend failures never surface as
// errors; they yield the fallback response.
func (r *Router) Route(ctx context.Context, req Request) Response {
	start := r.now()

	resp := r.route(ctx, req)
	resp.ProcessingTime = r.now().Sub(start)
	if resp.Metadata == nil {
		resp.Metadata = map[string]any{}
	}

	if r.observer != nil {
		r.observer.ObserveRoute(resp.Backend, resp.Backend == BackendFallback, resp.ProcessingTime)
	}
	return resp
}

func (r *Router) route(ctx context.Context, req Request) Response {
	urgency, err := r.urgency.ClassifyUrgency(ctx, req.Message)
	if err != nil {
		return r.fallback(ctx, "urgency", err)
	}
	signal := r.price.DetectPrice(req.Message)

	if urgency.IsUrgent || signal.Detected {
		return r.fastPath(ctx, req, urgency, signal)
	}
	return r.qualityPath(ctx, req)
}

func (r *Router) fastPath(ctx context.Context, req Request, urgency UrgencyResult, signal PriceSignal) Response {
	meta := map[string]any{
		"isUrgent":      urgency.IsUrgent,
		"urgencyReason": urgency.Reason,
		"priceDetected": signal.Detected,
	}

	if signal.Offer > 0 && r.canNegotiate(req) {
		reply, err := r.negotiator.Negotiate(ctx, req.ConversationID, req.ListPrice, signal.Offer)
		if err == nil {
			meta["negotiation"] = reply.State
			meta["decision"] = string(reply.Outcome.Decision)
			meta["offer"] = signal.Offer
			return Response{
				Response: reply.Text,
				Urgency:  UrgencyHigh,
				Backend:  BackendFast,
				Metadata: meta,
			}
		}
		r.logger.WarnContext(ctx, "negotiation failed, answering without it",
			slog.String("conversation_id", req.ConversationID),
			slog.Any("error", err),
		)
	}

	text, err := r.fast.Complete(ctx, urgentReplyPrompt(req))
	if err != nil {
		return r.fallback(ctx, BackendFast, err)
	}
	return Response{
		Response: text,
		Urgency:  UrgencyHigh,
		Backend:  BackendFast,
		Metadata: meta,
	}
}

func (r *Router) canNegotiate(req Request) bool {
	if r.negotiator == nil || req.ConversationID == "" {
		return false
	}
	return req.ListPrice > 0 || r.negotiator.HasOpen(req.ConversationID)
}

func (r *Router) qualityPath(ctx context.Context, req Request) Response {
	intent, err := r.intent.ClassifyIntent(ctx, req)
	if err != nil {
		return r.fallback(ctx, "intent", err)
	}

	text, err := r.quality.Complete(ctx, qualityReplyPrompt(req, intent))
	if err != nil {
		return r.fallback(ctx, BackendQuality, err)
	}
	return Response{
		Response: text,
		Intent:   &intent,
		Urgency:  intent.Urgency,
		Backend:  BackendQuality,
		Metadata: map[string]any{"category": intent.Category},
	}
}

func (r *Router) fallback(ctx context.Context, stage string, err error) Response {
	r.logger.ErrorContext(ctx, "ai generation failed",
		slog.String("stage", stage),
		slog.Any("error", err),
	)
	return Response{
		Response: FallbackText,
		Urgency:  UrgencyMedium,
		Backend:  BackendFallback,
		Metadata: map[string]any{"error": true, "stage": stage},
	}
}
