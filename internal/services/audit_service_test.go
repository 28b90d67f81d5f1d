package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/biasharahub/biashara/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditService_Emit_PersistsAndPublishes(t *testing.T) {
	repo := &MockAuditLogRepository{}
	events := &MockPublisher{}
	svc := NewAuditService(repo, events, nil, testLogger())

	svc.Emit(context.Background(), models.LoginFailed{
		Realm:             models.RealmTenant,
		Email:             "owner@mamamboga.co.ke",
		Reason:            "invalid_password",
		RemainingAttempts: 3,
		IPAddress:         "203.0.113.7",
	})

	require.Len(t, repo.Rows, 1)
	row := repo.Rows[0]
	assert.Equal(t, models.AuditKindLoginFailed, row.EventType)
	require.NotNil(t, row.Realm)
	assert.Equal(t, "tenant", *row.Realm)
	assert.False(t, row.Success)
	assert.Nil(t, row.ActorID)
	assert.JSONEq(t, `{"realm":"tenant","email":"owner@mamamboga.co.ke","reason":"invalid_password","remaining_attempts":3,"ip_address":"203.0.113.7"}`, string(row.Payload))

	assert.Equal(t, []string{SubjectAuditPrefix + models.AuditKindLoginFailed}, events.Subjects)
}

func TestAuditService_Emit_FailuresDoNotPropagate(t *testing.T) {
	repo := &MockAuditLogRepository{Err: errors.New("db down")}
	events := &MockPublisher{Err: errors.New("nats down")}
	svc := NewAuditService(repo, events, nil, testLogger())

	assert.NotPanics(t, func() {
		svc.Emit(context.Background(), models.LoggedOut{Realm: models.RealmPlatform, UserID: "op-1", SessionID: "s-1"})
	})
}

func TestAuditService_Emit_ThroughDispatcher(t *testing.T) {
	repo := &MockAuditLogRepository{}
	d := NewDispatcher(DispatcherConfig{Workers: 4, TaskTimeout: time.Second}, testLogger())
	svc := NewAuditService(repo, nil, d, testLogger())

	svc.Emit(context.Background(), models.TenantRegistered{TenantID: "t-1", Subdomain: "mamamboga", OwnerID: "u-1", OwnerEmail: "o@m.co.ke"})
	require.NoError(t, d.Close(context.Background()))

	require.Len(t, repo.Rows, 1)
	require.NotNil(t, repo.Rows[0].TenantID)
	assert.Equal(t, "t-1", *repo.Rows[0].TenantID)
	assert.True(t, repo.Rows[0].Success)
}
