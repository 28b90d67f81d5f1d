package services

import (
	"context"
	"testing"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRegistration() RegisterTenantInput {
	return RegisterTenantInput{
		Subdomain:     " MamaMboga ",
		BusinessName:  "Mama Mboga Fresh",
		BusinessType:  "grocery",
		Location:      "Gikomba, Nairobi",
		Services:      []string{"Sukuma wiki", " ", "sukuma wiki", "Tomatoes"},
		OwnerEmail:    "Owner@MamaMboga.co.ke",
		OwnerName:     "Wanjiku Kamau",
		OwnerPassword: "Strong-Pass-42",
	}
}

func TestTenantService_Register_Success(t *testing.T) {
	var created *models.Tenant
	var createdOwner *models.TenantUser
	repo := &MockTenantRepository{
		CreateWithOwnerFunc: func(_ context.Context, tn *models.Tenant, owner *models.TenantUser) (*models.Tenant, *models.TenantUser, error) {
			created, createdOwner = tn, owner
			tn.ID = "t-1"
			owner.ID = "u-1"
			owner.TenantID = "t-1"
			return tn, owner, nil
		},
	}
	auditor := &RecordingAuditor{}
	mailer := &MockEmailService{}
	events := &MockPublisher{}
	svc := NewTenantService(repo, auditor, mailer, events, nil, TenantServiceConfig{BaseDomain: "biashara.co.ke"}, testLogger())

	tenant, owner, err := svc.Register(context.Background(), validRegistration())
	require.NoError(t, err)

	assert.Equal(t, "mamamboga", tenant.Subdomain)
	assert.Equal(t, models.TenantStatusTrial, created.Status)
	require.NotNil(t, created.TrialEndsAt)
	assert.WithinDuration(t, time.Now().Add(14*24*time.Hour), *created.TrialEndsAt, time.Minute)
	assert.Equal(t, []string{"Sukuma wiki", "Tomatoes"}, created.Services)

	assert.Equal(t, "owner@mamamboga.co.ke", owner.Email)
	assert.Equal(t, models.TenantRoleOwner, createdOwner.Role)
	assert.NotEqual(t, "Strong-Pass-42", createdOwner.PasswordHash)

	assert.Equal(t, []string{models.AuditKindTenantRegistered}, auditor.Kinds())
	assert.Equal(t, []string{"owner@mamamboga.co.ke"}, mailer.Welcome)
	assert.Equal(t, []string{SubjectTenantRegistered}, events.Subjects)
}

func TestTenantService_Register_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *RegisterTenantInput)
		field  string
	}{
		{"reserved subdomain", func(in *RegisterTenantInput) { in.Subdomain = "admin" }, "subdomain"},
		{"short subdomain", func(in *RegisterTenantInput) { in.Subdomain = "ab" }, "subdomain"},
		{"bad characters", func(in *RegisterTenantInput) { in.Subdomain = "mama_mboga" }, "subdomain"},
		{"missing business", func(in *RegisterTenantInput) { in.BusinessName = " " }, "businessName"},
		{"display-name email", func(in *RegisterTenantInput) { in.OwnerEmail = "Owner <owner@x.co.ke>" }, "ownerEmail"},
		{"missing owner", func(in *RegisterTenantInput) { in.OwnerName = "" }, "ownerName"},
		{"weak password", func(in *RegisterTenantInput) { in.OwnerPassword = "short" }, "ownerPassword"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewTenantService(&MockTenantRepository{}, nil, nil, nil, nil, TenantServiceConfig{}, testLogger())
			in := validRegistration()
			tt.mutate(&in)

			_, _, err := svc.Register(context.Background(), in)
			var ve *models.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Contains(t, ve.Fields, tt.field)
		})
	}
}

func TestTenantService_Register_DuplicateSubdomain(t *testing.T) {
	repo := &MockTenantRepository{
		CreateWithOwnerFunc: func(context.Context, *models.Tenant, *models.TenantUser) (*models.Tenant, *models.TenantUser, error) {
			return nil, nil, models.ErrConflict
		},
	}
	mailer := &MockEmailService{}
	svc := NewTenantService(repo, nil, mailer, nil, nil, TenantServiceConfig{}, testLogger())

	_, _, err := svc.Register(context.Background(), validRegistration())
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Contains(t, err.Error(), "mamamboga")
	assert.Empty(t, mailer.Welcome)
}

func TestTenantService_UpdateStatus(t *testing.T) {
	tenant := NewTestTenant("t-1", "mamamboga")
	updates := 0
	repo := &MockTenantRepository{
		GetBySubdomainFunc: func(_ context.Context, sub string) (*models.Tenant, error) {
			if sub == "mamamboga" {
				cp := *tenant
				return &cp, nil
			}
			return nil, models.ErrNotFound
		},
		UpdateStatusFunc: func(_ context.Context, id string, status models.TenantStatus) (*models.Tenant, error) {
			updates++
			tenant.Status = status
			cp := *tenant
			return &cp, nil
		},
	}
	auditor := &RecordingAuditor{}
	events := &MockPublisher{}
	svc := NewTenantService(repo, auditor, nil, events, nil, TenantServiceConfig{}, testLogger())
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, "op-1", "mamamboga", models.TenantStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, models.TenantStatusSuspended, updated.Status)
	assert.Equal(t, []string{models.AuditKindTenantStatusChanged}, auditor.Kinds())
	assert.Equal(t, []string{SubjectTenantStatusChanged}, events.Subjects)

	// Same status is a no-op.
	_, err = svc.UpdateStatus(ctx, "op-1", "mamamboga", models.TenantStatusSuspended)
	require.NoError(t, err)
	assert.Equal(t, 1, updates)
	assert.Len(t, auditor.Events, 1)

	_, err = svc.UpdateStatus(ctx, "op-1", "nobody", models.TenantStatusActive)
	assert.ErrorIs(t, err, models.ErrNotFound)
}
