package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/biasharahub/biashara/internal/ai"
	"github.com/biasharahub/biashara/internal/messaging"
	"github.com/biasharahub/biashara/internal/models"
	pkglogger "github.com/biasharahub/biashara/pkg/logger"
	"github.com/cenkalti/backoff/v4"
)

// MessageRouter answers a customer message. It never fails.
type MessageRouter interface {
	Route(ctx context.Context, req ai.Request) ai.Response
}

// TenantDirectory finds the tenant a chat belongs to.
type TenantDirectory interface {
	GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error)
	GetByWhatsAppPhoneID(ctx context.Context, phoneNumberID string) (*models.Tenant, error)
}

// ChatInput is a chat request from the HTTP API.
type ChatInput struct {
	Message        string
	BusinessType   string
	Business       ai.BusinessContext
	History        []ai.Message
	ConversationID string
	ListPrice      float64
	Subdomain      string // tenant resolved from the host, if any
}

// Conversation ids supplied by API callers without a tenant live in their own namespace.
const unscopedConversationPrefix = "api:"

// ChatService connects inbound messages to the AI router and sends replies back.
type ChatService struct {
	router     MessageRouter
	tenants    TenantDirectory
	sender     messaging.Sender
	history    *ConversationStore
	dispatcher *Dispatcher
	logger     *slog.Logger

	sendAttempts uint64
	sendBackoff  time.Duration
}

func NewChatService(router MessageRouter, tenants TenantDirectory, sender messaging.Sender, history *ConversationStore, dispatcher *Dispatcher, logger *slog.Logger) *ChatService {
	if history == nil {
		history = NewConversationStore(0)
	}
	return &ChatService{
		router:     router,
		tenants:    tenants,
		sender:     sender,
		history:    history,
		dispatcher: dispatcher,
		logger:     logger,

		sendAttempts: 3,
		sendBackoff:  500 * time.Millisecond,
	}
}

// Chat answers one API chat message. When a tenant subdomain is known its profile fills
// in any business context the caller left out.
func (s *ChatService) Chat(ctx context.Context, in ChatInput) (ai.Response, error) {
	if strings.TrimSpace(in.Message) == "" {
		return ai.Response{}, models.NewValidationError("message", "is required")
	}
	if in.ListPrice < 0 {
		return ai.Response{}, models.NewValidationError("listPrice", "must not be negative")
	}

	req := ai.Request{
		Message:        in.Message,
		BusinessType:   in.BusinessType,
		Business:       in.Business,
		History:        in.History,
		ConversationID: in.ConversationID,
		ListPrice:      in.ListPrice,
	}

	scope := unscopedConversationPrefix
	if in.Subdomain != "" && s.tenants != nil {
		tenant, err := s.tenants.GetBySubdomain(ctx, in.Subdomain)
		switch {
		case err == nil:
			fillBusiness(&req, tenant)
			scope = tenant.ID + ":"
		case errors.Is(err, models.ErrNotFound):
		default:
			s.logger.WarnContext(ctx, "tenant lookup for chat failed", slog.Any("error", err))
		}
	}
	if req.ConversationID != "" {
		req.ConversationID = scope + req.ConversationID
	}

	return s.router.Route(ctx, req), nil
}

// Enqueue schedules inbound webhook messages for processing after the webhook is acked.
func (s *ChatService) Enqueue(ctx context.Context, msgs []messaging.InboundMessage) {
	for _, m := range msgs {
		m := m
		task := func(ctx context.Context) error { return s.ProcessInbound(ctx, m) }
		if s.dispatcher != nil {
			if !s.dispatcher.Go("chat.inbound", task) {
				s.logger.ErrorContext(ctx, "inbound message dropped",
					slog.String("message_id", m.ID),
					slog.String("from", pkglogger.SanitizedPhone(m.From)),
				)
			}
			continue
		}
		if err := task(context.WithoutCancel(ctx)); err != nil {
			s.logger.ErrorContext(ctx, "inbound message failed", slog.Any("error", err))
		}
	}
}

// ProcessInbound routes one WhatsApp message and sends the reply. Messages for unknown
// or inactive tenants are dropped. The message is routed once; only the send is retried.
func (s *ChatService) ProcessInbound(ctx context.Context, m messaging.InboundMessage) error {
	tenant, err := s.tenants.GetByWhatsAppPhoneID(ctx, m.PhoneNumberID)
	if errors.Is(err, models.ErrNotFound) {
		s.logger.WarnContext(ctx, "message for unknown business number", slog.String("phone_number_id", m.PhoneNumberID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("lookup tenant for %s: %w", m.PhoneNumberID, err)
	}
	if !tenant.AllowsSessions(time.Now()) {
		s.logger.InfoContext(ctx, "message for inactive tenant dropped", slog.String("tenant_id", tenant.ID))
		return nil
	}

	convID := tenant.ID + ":" + m.From
	history := s.history.History(convID)
	req := ai.Request{
		Message:        m.Text,
		History:        history,
		ConversationID: convID,
		ListPrice:      ai.QuotedPrice(history),
	}
	fillBusiness(&req, tenant)

	resp := s.router.Route(ctx, req)
	s.history.Append(convID,
		ai.Message{Role: "user", Content: m.Text},
		ai.Message{Role: "assistant", Content: resp.Response},
	)

	s.logger.InfoContext(ctx, "chat reply routed",
		slog.String("tenant_id", tenant.ID),
		slog.String("from", pkglogger.SanitizedPhone(m.From)),
		slog.String("backend", resp.Backend),
		slog.Duration("processing_time", resp.ProcessingTime),
	)

	if err := s.sendReply(ctx, m.PhoneNumberID, m.From, resp.Response); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (s *ChatService) sendReply(ctx context.Context, phoneNumberID, to, body string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.sendBackoff
	b.MaxElapsedTime = 0

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := s.sender.SendText(ctx, phoneNumberID, to, body)
		if errors.Is(err, messaging.ErrNotConfigured) {
			return backoff.Permanent(err)
		}
		if err != nil && ctx.Err() == nil {
			s.logger.WarnContext(ctx, "reply send failed",
				slog.Int("attempt", attempt),
				slog.String("to", pkglogger.SanitizedPhone(to)),
				slog.Any("error", err),
			)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, s.sendAttempts-1), ctx))
}

func fillBusiness(req *ai.Request, t *models.Tenant) {
	if req.BusinessType == "" {
		req.BusinessType = t.BusinessType
	}
	if req.Business.Name == "" {
		req.Business.Name = t.BusinessName
	}
	if req.Business.Location == "" {
		req.Business.Location = t.Location
	}
	if len(req.Business.Services) == 0 {
		req.Business.Services = t.Services
	}
}
