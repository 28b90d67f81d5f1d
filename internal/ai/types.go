// Package ai routes customer chat messages between a low-latency and a high-quality
// text generation backend, with price negotiations handled by a deterministic engine.
package ai

import "time"

// Backend tags reported in every response.
const (
	BackendFast     = "fast"
	BackendQuality  = "quality"
	BackendFallback = "fallback"
)

// Urgency levels.
const (
	UrgencyLow    = "low"
	UrgencyMedium = "medium"
	UrgencyHigh   = "high"
)

// FallbackText is returned whenever a backend cannot produce a usable answer.
const FallbackText = "Samahani, could you repeat that?"

// BusinessContext describes the tenant the customer is talking to.
type BusinessContext struct {
	Name     string   `json:"name"`
	Location string   `json:"location"`
	Services []string `json:"services"`
}

// Message is one prior turn of the conversation.
type Message struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is one inbound customer message.
type Request struct {
	Message        string
	BusinessType   string
	Business       BusinessContext
	History        []Message
	ConversationID string
	// ListPrice is the quoted price of the item under discussion; zero when unknown.
	ListPrice float64
}

// Intent is the quality path's side classification.
type Intent struct {
	Category         string `json:"category"`
	Urgency          string `json:"urgency"`
	RequiresRealtime bool   `json:"requiresRealtime"`
}

// DefaultIntent is used when the classifier output cannot be parsed.
func DefaultIntent() Intent {
	return Intent{Category: "general", Urgency: UrgencyMedium, RequiresRealtime: false}
}

// Response is produced for every Request, including failed ones.
type Response struct {
	Response       string
	Intent         *Intent
	Urgency        string
	Backend        string
	ProcessingTime time.Duration
	Metadata       map[string]any
}
