package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/biasharahub/biashara/internal/ai"
	"github.com/biasharahub/biashara/internal/auth"
	"github.com/biasharahub/biashara/internal/services"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
)

const maxChatBody = 64 << 10

// ChatServiceInterface answers chat messages.
type ChatServiceInterface interface {
	Chat(ctx context.Context, in services.ChatInput) (ai.Response, error)
}

type ChatHandler struct {
	service ChatServiceInterface
	logger  *slog.Logger
}

func NewChatHandler(service ChatServiceInterface, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{service: service, logger: logger}
}

// ChatRequest is the body of POST /ai/chat.
type ChatRequest struct {
	Message             string             `json:"message" validate:"required,max=4000"`
	BusinessType        string             `json:"businessType"`
	BusinessContext     ai.BusinessContext `json:"businessContext"`
	ConversationHistory []ai.Message       `json:"conversationHistory" validate:"max=50"`
	ConversationID      string             `json:"conversationId" validate:"max=128"`
	ListPrice           float64            `json:"listPrice" validate:"gte=0"`
}

// ChatResponse mirrors ai.Response with processingTime in milliseconds.
type ChatResponse struct {
	Response       string         `json:"response"`
	Intent         *ai.Intent     `json:"intent,omitempty"`
	Urgency        string         `json:"urgency,omitempty"`
	AIModel        string         `json:"aiModel"`
	ProcessingTime int64          `json:"processingTime"`
	Metadata       map[string]any `json:"metadata"`
}

// Chat handles POST /ai/chat. Backend failures still answer 200 with the fallback text.
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}
	if fields := ValidateRequest(req); fields != nil {
		pkghttp.WriteValidationError(w, fields)
		return
	}

	resp, err := h.service.Chat(r.Context(), services.ChatInput{
		Message:        req.Message,
		BusinessType:   req.BusinessType,
		Business:       req.BusinessContext,
		History:        req.ConversationHistory,
		ConversationID: req.ConversationID,
		ListPrice:      req.ListPrice,
		Subdomain:      auth.TenantSubdomainFromContext(r.Context()),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	metadata := resp.Metadata
	if metadata == nil {
		metadata = map[string]any{}
	}
	pkghttp.WriteJSON(w, http.StatusOK, ChatResponse{
		Response:       resp.Response,
		Intent:         resp.Intent,
		Urgency:        resp.Urgency,
		AIModel:        resp.Backend,
		ProcessingTime: resp.ProcessingTime.Milliseconds(),
		Metadata:       metadata,
	})
}
