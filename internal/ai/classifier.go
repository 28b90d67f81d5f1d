package ai

import (
	"context"
	"log/slog"
	"strings"
	"unicode"
)

// UrgencyResult is the urgency classifier's verdict.
type UrgencyResult struct {
	IsUrgent bool   `json:"isUrgent"`
	Reason   string `json:"reason"`
}

// UrgencyClassifier decides whether a message needs the fast path. An error means the
// classifier could not run at all; unparseable output is not an error.
type UrgencyClassifier interface {
	ClassifyUrgency(ctx context.Context, message string) (UrgencyResult, error)
}

// IntentClassifier labels a message for the quality path.
type IntentClassifier interface {
	ClassifyIntent(ctx context.Context, req Request) (Intent, error)
}

var urgencyKeywords = []string{
	"urgent", "urgently", "asap", "immediately", "emergency", "right now", "now",
	"today", "quick", "quickly", "hurry",
	"haraka", "sasa hivi", "leo", "dharura", "upesi", "mara moja",
}

// KeywordUrgencyClassifier is the deterministic classifier, also used when the backend
// classifier returns output it cannot parse.
type KeywordUrgencyClassifier struct{}

func (KeywordUrgencyClassifier) ClassifyUrgency(_ context.Context, message string) (UrgencyResult, error) {
	return keywordUrgency(message), nil
}

func keywordUrgency(message string) UrgencyResult {
	words := tokenize(message)
	joined := " " + strings.Join(words, " ") + " "
	for _, kw := range urgencyKeywords {
		if strings.Contains(joined, " "+kw+" ") {
			return UrgencyResult{IsUrgent: true, Reason: "keyword: " + kw}
		}
	}
	if shouting(message) {
		return UrgencyResult{IsUrgent: true, Reason: "shouting"}
	}
	return UrgencyResult{IsUrgent: false, Reason: "no urgency cues"}
}

// shouting reports a message that is mostly upper-case letters over a minimum length.
func shouting(message string) bool {
	var letters, upper int
	for _, r := range message {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 12 && float64(upper)/float64(letters) > 0.7
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// BackendUrgencyClassifier asks the fast backend for {"isUrgent", "reason"}.
type BackendUrgencyClassifier struct {
	backend Backend
	logger  *slog.Logger
}

func NewBackendUrgencyClassifier(backend Backend, logger *slog.Logger) *BackendUrgencyClassifier {
	return &BackendUrgencyClassifier{backend: backend, logger: logger}
}

func (c *BackendUrgencyClassifier) ClassifyUrgency(ctx context.Context, message string) (UrgencyResult, error) {
	raw, err := c.backend.Complete(ctx, urgencyPrompt(message))
	if err != nil {
		return UrgencyResult{}, err
	}

	var res UrgencyResult
	if err := parseJSONObject(raw, &res); err != nil {
		c.logger.WarnContext(ctx, "urgency output unparseable, using keyword classifier",
			slog.String("backend", c.backend.Name()),
			slog.Any("error", err),
		)
		return keywordUrgency(message), nil
	}
	return res, nil
}

var intentCategories = map[string]bool{
	"general":      true,
	"pricing":      true,
	"availability": true,
	"order":        true,
	"delivery":     true,
	"complaint":    true,
	"booking":      true,
	"location":     true,
	"hours":        true,
}

// BackendIntentClassifier asks a backend for {"category", "urgency", "requiresRealtime"}.
type BackendIntentClassifier struct {
	backend Backend
	logger  *slog.Logger
}

func NewBackendIntentClassifier(backend Backend, logger *slog.Logger) *BackendIntentClassifier {
	return &BackendIntentClassifier{backend: backend, logger: logger}
}

func (c *BackendIntentClassifier) ClassifyIntent(ctx context.Context, req Request) (Intent, error) {
	raw, err := c.backend.Complete(ctx, intentPrompt(req))
	if err != nil {
		return Intent{}, err
	}

	var in Intent
	if err := parseJSONObject(raw, &in); err != nil {
		c.logger.WarnContext(ctx, "intent output unparseable, using default intent",
			slog.String("backend", c.backend.Name()),
			slog.Any("error", err),
		)
		return DefaultIntent(), nil
	}
	return normalizeIntent(in), nil
}

func normalizeIntent(in Intent) Intent {
	def := DefaultIntent()
	in.Category = strings.ToLower(strings.TrimSpace(in.Category))
	if !intentCategories[in.Category] {
		in.Category = def.Category
	}
	switch in.Urgency = strings.ToLower(strings.TrimSpace(in.Urgency)); in.Urgency {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
	default:
		in.Urgency = def.Urgency
	}
	return in
}
