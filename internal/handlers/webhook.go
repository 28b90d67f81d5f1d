package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/biasharahub/biashara/internal/messaging"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
)

const maxWebhookBody = 1 << 20

// InboundQueue accepts verified inbound messages for asynchronous processing.
type InboundQueue interface {
	Enqueue(ctx context.Context, msgs []messaging.InboundMessage)
}

// WebhookConfig holds the WhatsApp app credentials.
type WebhookConfig struct {
	VerifyToken string
	AppSecret   string
}

type WebhookHandler struct {
	queue  InboundQueue
	cfg    WebhookConfig
	logger *slog.Logger
}

func NewWebhookHandler(queue InboundQueue, cfg WebhookConfig, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{queue: queue, cfg: cfg, logger: logger}
}

// Verify answers the subscription handshake on GET /webhooks/whatsapp.
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, ok := messaging.VerifyChallenge(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"), h.cfg.VerifyToken)
	if !ok {
		pkghttp.WriteForbidden(w, "Verification failed")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, challenge)
}

// Receive handles POST /webhooks/whatsapp. The body is acknowledged once the signature
// checks out; replies are produced in the background.
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	if err := messaging.VerifySignature(h.cfg.AppSecret, body, r.Header.Get(messaging.SignatureHeader)); err != nil {
		if errors.Is(err, messaging.ErrMissingSignature) {
			pkghttp.WriteUnauthorized(w, "Missing signature")
			return
		}
		h.logger.WarnContext(r.Context(), "webhook signature mismatch", slog.String("remote_addr", r.RemoteAddr))
		pkghttp.WriteForbidden(w, "Invalid signature")
		return
	}

	msgs, err := messaging.ParseInbound(body)
	if err != nil {
		// Non-2xx responses are redelivered, so malformed payloads are acked and dropped.
		h.logger.WarnContext(r.Context(), "unparseable webhook payload", slog.Any("error", err))
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		return
	}

	if len(msgs) > 0 {
		h.queue.Enqueue(r.Context(), msgs)
	}
	pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "received"})
}
