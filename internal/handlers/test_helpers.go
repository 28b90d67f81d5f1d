package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/biasharahub/biashara/internal/ai"
	"github.com/biasharahub/biashara/internal/messaging"
	"github.com/biasharahub/biashara/internal/models"
	"github.com/biasharahub/biashara/internal/services"
	pkghttp "github.com/biasharahub/biashara/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithURLParams attaches chi route parameters to a request.
func WithURLParams(req *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target any) {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks that response is a valid error response
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError string) pkghttp.ErrorResponse {
	t.Helper()
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	return resp
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc  func(ctx context.Context, realm models.Realm, in services.LoginInput) (*services.LoginResult, error)
	LogoutFunc func(ctx context.Context, realm models.Realm, token string) error
}

func (m *MockAuthService) Login(ctx context.Context, realm models.Realm, in services.LoginInput) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, realm, in)
}

func (m *MockAuthService) Logout(ctx context.Context, realm models.Realm, token string) error {
	if m.LogoutFunc == nil {
		return nil
	}
	return m.LogoutFunc(ctx, realm, token)
}

// MockChatService implements ChatServiceInterface for testing
type MockChatService struct {
	ChatFunc func(ctx context.Context, in services.ChatInput) (ai.Response, error)
}

func (m *MockChatService) Chat(ctx context.Context, in services.ChatInput) (ai.Response, error) {
	if m.ChatFunc == nil {
		return ai.Response{Response: ai.FallbackText, Backend: ai.BackendFallback}, nil
	}
	return m.ChatFunc(ctx, in)
}

// MockTenantService implements TenantServiceInterface for testing
type MockTenantService struct {
	RegisterFunc     func(ctx context.Context, in services.RegisterTenantInput) (*models.Tenant, *models.TenantUser, error)
	GetFunc          func(ctx context.Context, subdomain string) (*models.Tenant, error)
	UpdateStatusFunc func(ctx context.Context, actorID, subdomain string, status models.TenantStatus) (*models.Tenant, error)
}

func (m *MockTenantService) Register(ctx context.Context, in services.RegisterTenantInput) (*models.Tenant, *models.TenantUser, error) {
	if m.RegisterFunc == nil {
		return nil, nil, models.ErrConflict
	}
	return m.RegisterFunc(ctx, in)
}

func (m *MockTenantService) Get(ctx context.Context, subdomain string) (*models.Tenant, error) {
	if m.GetFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.GetFunc(ctx, subdomain)
}

func (m *MockTenantService) UpdateStatus(ctx context.Context, actorID, subdomain string, status models.TenantStatus) (*models.Tenant, error) {
	if m.UpdateStatusFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UpdateStatusFunc(ctx, actorID, subdomain, status)
}

// MockInboundQueue records enqueued messages.
type MockInboundQueue struct {
	Messages []messaging.InboundMessage
}

func (m *MockInboundQueue) Enqueue(_ context.Context, msgs []messaging.InboundMessage) {
	m.Messages = append(m.Messages, msgs...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
