package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/biasharahub/biashara/internal/ai"
	"github.com/biasharahub/biashara/internal/models"
	pkgauth "github.com/biasharahub/biashara/pkg/auth"
	"golang.org/x/crypto/bcrypt"
)

// MockPlatformUserRepository implements PlatformUserRepository for testing
type MockPlatformUserRepository struct {
	GetByEmailFunc     func(ctx context.Context, email string) (*models.PlatformUser, error)
	TouchLastLoginFunc func(ctx context.Context, id string) error
}

func (m *MockPlatformUserRepository) GetByEmail(ctx context.Context, email string) (*models.PlatformUser, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockPlatformUserRepository) TouchLastLogin(ctx context.Context, id string) error {
	if m.TouchLastLoginFunc != nil {
		return m.TouchLastLoginFunc(ctx, id)
	}
	return nil
}

// MockTenantUserRepository implements TenantUserRepository for testing
type MockTenantUserRepository struct {
	GetByEmailFunc func(ctx context.Context, tenantID, email string) (*models.TenantUser, error)
}

func (m *MockTenantUserRepository) GetByEmail(ctx context.Context, tenantID, email string) (*models.TenantUser, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, tenantID, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockTenantUserRepository) TouchLastLogin(context.Context, string) error { return nil }

// MockTenantRepository implements TenantRepository and TenantDirectory for testing
type MockTenantRepository struct {
	GetBySubdomainFunc       func(ctx context.Context, subdomain string) (*models.Tenant, error)
	GetByIDFunc              func(ctx context.Context, id string) (*models.Tenant, error)
	GetByWhatsAppPhoneIDFunc func(ctx context.Context, phoneNumberID string) (*models.Tenant, error)
	CreateWithOwnerFunc      func(ctx context.Context, t *models.Tenant, owner *models.TenantUser) (*models.Tenant, *models.TenantUser, error)
	UpdateStatusFunc         func(ctx context.Context, id string, status models.TenantStatus) (*models.Tenant, error)
}

func (m *MockTenantRepository) GetBySubdomain(ctx context.Context, subdomain string) (*models.Tenant, error) {
	if m.GetBySubdomainFunc != nil {
		return m.GetBySubdomainFunc(ctx, subdomain)
	}
	return nil, models.ErrNotFound
}

func (m *MockTenantRepository) GetByID(ctx context.Context, id string) (*models.Tenant, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockTenantRepository) GetByWhatsAppPhoneID(ctx context.Context, phoneNumberID string) (*models.Tenant, error) {
	if m.GetByWhatsAppPhoneIDFunc != nil {
		return m.GetByWhatsAppPhoneIDFunc(ctx, phoneNumberID)
	}
	return nil, models.ErrNotFound
}

func (m *MockTenantRepository) CreateWithOwner(ctx context.Context, t *models.Tenant, owner *models.TenantUser) (*models.Tenant, *models.TenantUser, error) {
	if m.CreateWithOwnerFunc != nil {
		return m.CreateWithOwnerFunc(ctx, t, owner)
	}
	return nil, nil, models.ErrInternalServer
}

func (m *MockTenantRepository) UpdateStatus(ctx context.Context, id string, status models.TenantStatus) (*models.Tenant, error) {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil, models.ErrInternalServer
}

// MemoryAttemptRepository mirrors the counter semantics of the SQL upsert.
type MemoryAttemptRepository struct {
	mu       sync.Mutex
	counters map[string]*models.LoginAttemptCounter
	now      func() time.Time
	// Err, when set, is returned by every method.
	Err error
}

func NewMemoryAttemptRepository() *MemoryAttemptRepository {
	return &MemoryAttemptRepository{counters: map[string]*models.LoginAttemptCounter{}, now: time.Now}
}

func (m *MemoryAttemptRepository) key(realm models.Realm, email string) string {
	return string(realm) + "|" + email
}

func (m *MemoryAttemptRepository) Get(_ context.Context, realm models.Realm, email string) (*models.LoginAttemptCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	c, ok := m.counters[m.key(realm, email)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryAttemptRepository) RecordFailure(_ context.Context, realm models.Realm, email string, threshold int, lockFor time.Duration) (*models.LoginAttemptCounter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	now := m.now()
	c, ok := m.counters[m.key(realm, email)]
	if !ok || (c.LockedUntil != nil && !now.Before(*c.LockedUntil)) {
		c = &models.LoginAttemptCounter{Realm: realm, Email: email}
		m.counters[m.key(realm, email)] = c
	}
	c.FailedCount++
	c.LastFailedAt = now
	if c.LockedUntil == nil && c.FailedCount >= threshold {
		until := now.Add(lockFor)
		c.LockedUntil = &until
	}
	cp := *c
	return &cp, nil
}

func (m *MemoryAttemptRepository) Reset(_ context.Context, realm models.Realm, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.counters, m.key(realm, email))
	return nil
}

// Count returns the stored failure count, zero when there is no counter.
func (m *MemoryAttemptRepository) Count(realm models.Realm, email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[m.key(realm, email)]; ok {
		return c.FailedCount
	}
	return 0
}

// MockRevocationRepository keeps revoked ids in memory.
type MockRevocationRepository struct {
	mu      sync.Mutex
	revoked map[string]bool
	Err     error
}

func (m *MockRevocationRepository) Revoke(_ context.Context, jti string, _ models.Realm, _ string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if m.revoked == nil {
		m.revoked = map[string]bool{}
	}
	m.revoked[jti] = true
	return nil
}

func (m *MockRevocationRepository) IsRevoked(_ context.Context, jti string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return false, m.Err
	}
	return m.revoked[jti], nil
}

// RecordingAuditor captures emitted events.
type RecordingAuditor struct {
	mu     sync.Mutex
	Events []models.AuditEvent
}

func (a *RecordingAuditor) Emit(_ context.Context, evt models.AuditEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.Events = append(a.Events, evt)
}

// Kinds lists the kinds of the captured events in order.
func (a *RecordingAuditor) Kinds() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	kinds := make([]string, 0, len(a.Events))
	for _, e := range a.Events {
		kinds = append(kinds, e.Kind())
	}
	return kinds
}

// MockEmailService records sent emails.
type MockEmailService struct {
	mu      sync.Mutex
	Locked  []string
	Welcome []string
}

func (m *MockEmailService) SendAccountLocked(_ context.Context, to string, _ models.Realm, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Locked = append(m.Locked, to)
	return nil
}

func (m *MockEmailService) SendWelcome(_ context.Context, to, _, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Welcome = append(m.Welcome, to)
	return nil
}

// MockPublisher records published subjects.
type MockPublisher struct {
	mu       sync.Mutex
	Subjects []string
	Err      error
}

func (m *MockPublisher) Publish(_ context.Context, subject string, _ any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Subjects = append(m.Subjects, subject)
	return nil
}

// MockAuditLogRepository records persisted rows.
type MockAuditLogRepository struct {
	mu   sync.Mutex
	Rows []*models.AuditLog
	Err  error
}

func (m *MockAuditLogRepository) Create(_ context.Context, row *models.AuditLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Rows = append(m.Rows, row)
	return nil
}

// MockRouter answers every message with a fixed reply.
type MockRouter struct {
	mu       sync.Mutex
	Requests []ai.Request
	Reply    string
}

func (m *MockRouter) Route(_ context.Context, req ai.Request) ai.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	return ai.Response{Response: m.Reply, Backend: ai.BackendQuality, Urgency: ai.UrgencyMedium}
}

// MockSender records outbound messages. Attempts counts every call, failed or not.
type MockSender struct {
	mu       sync.Mutex
	Sent     []SentMessage
	Err      error
	Attempts int
}

type SentMessage struct {
	PhoneNumberID, To, Body string
}

func (m *MockSender) SendText(_ context.Context, phoneNumberID, to, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Attempts++
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMessage{PhoneNumberID: phoneNumberID, To: to, Body: body})
	return nil
}

// MockLoginObserver counts outcomes.
type MockLoginObserver struct {
	mu       sync.Mutex
	Outcomes []string
}

func (m *MockLoginObserver) ObserveLogin(_ models.Realm, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Outcomes = append(m.Outcomes, outcome)
}

// NewTestPlatformUser creates a platform user whose password is "Correct-Horse-9".
func NewTestPlatformUser(id, email, role string) *models.PlatformUser {
	return &models.PlatformUser{
		ID:           id,
		Email:        email,
		FullName:     "Test Operator",
		PasswordHash: mustHash("Correct-Horse-9"),
		Role:         role,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// NewTestTenant creates an active tenant.
func NewTestTenant(id, subdomain string) *models.Tenant {
	return &models.Tenant{
		ID:           id,
		Subdomain:    subdomain,
		BusinessName: "Mama Mboga Fresh",
		BusinessType: "grocery",
		Location:     "Nairobi",
		Services:     []string{"vegetables", "fruit"},
		Status:       models.TenantStatusActive,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

// NewTestTenantUser creates a tenant user whose password is "Correct-Horse-9".
func NewTestTenantUser(id string, tenant *models.Tenant, email string) *models.TenantUser {
	return &models.TenantUser{
		ID:           id,
		TenantID:     tenant.ID,
		Subdomain:    tenant.Subdomain,
		Email:        email,
		FullName:     "Test Owner",
		PasswordHash: mustHash("Correct-Horse-9"),
		Role:         models.TenantRoleOwner,
		Active:       true,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
}

func mustHash(pw string) string {
	h, err := pkgauth.HashPasswordWithCost(pw, bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return h
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
