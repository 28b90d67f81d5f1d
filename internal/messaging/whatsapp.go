// Package messaging talks to the WhatsApp Cloud API: outbound text messages and
// verification of inbound webhook deliveries.
package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var ErrNotConfigured = errors.New("whatsapp client is not configured")

// Sender delivers a text reply to a customer.
type Sender interface {
	SendText(ctx context.Context, phoneNumberID, to, body string) error
}

// WhatsAppClient sends messages through the Graph API.
type WhatsAppClient struct {
	apiBase     string
	accessToken string
	httpClient  *http.Client
}

func NewWhatsAppClient(apiBase, accessToken string, httpClient *http.Client) *WhatsAppClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &WhatsAppClient{
		apiBase:     strings.TrimSuffix(apiBase, "/"),
		accessToken: accessToken,
		httpClient:  httpClient,
	}
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type graphError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// SendText posts a text message from the business number phoneNumberID.
func (c *WhatsAppClient) SendText(ctx context.Context, phoneNumberID, to, body string) error {
	if c.accessToken == "" || phoneNumberID == "" {
		return ErrNotConfigured
	}

	msg := textMessage{MessagingProduct: "whatsapp", RecipientType: "individual", To: to, Type: "text"}
	msg.Text.Body = body
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal whatsapp message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.apiBase, phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build whatsapp request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var ge graphError
		if json.Unmarshal(raw, &ge) == nil && ge.Error.Message != "" {
			return fmt.Errorf("whatsapp api status %d: %s (code %d)", resp.StatusCode, ge.Error.Message, ge.Error.Code)
		}
		return fmt.Errorf("whatsapp api status %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
