package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/campusgate/edu-gateway/internal/config"
	"github.com/campusgate/edu-gateway/internal/domain"
	"github.com/campusgate/edu-gateway/internal/events"
)

func TestAuditService_LogsEvents(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	audit := NewAuditService(dispatcher, zap.New(core), config.AuditConfig{Enabled: true})
	audit.RegisterHandlers()

	ctx := context.Background()
	at := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID: "e1", Type: events.EventLoginFailed, Flow: "password", Email: "ghost@example.com", Timestamp: at,
		Payload: events.LoginFailedPayload{Reason: "unknown identity"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{
		ID: "e2", Type: events.EventIdentityProvisioned, Flow: "oauth", IdentityID: "id-1", Email: "new@example.com",
		Role: domain.RoleStudent, Timestamp: at,
		Payload: events.IdentityProvisionedPayload{Provider: "google", ProviderID: "g-1"},
	}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "e3", Type: events.EventLoginSucceeded, Flow: "oauth", IdentityID: "id-1"}))
	require.NoError(t, dispatcher.Publish(ctx, events.Event{ID: "e4", Type: events.EventTokenRefreshed, Flow: "refresh", IdentityID: "id-1"}))

	entries := logs.All()
	require.Len(t, entries, 4)

	failed := entries[0]
	assert.Equal(t, "audit", failed.LoggerName)
	assert.Equal(t, zapcore.WarnLevel, failed.Level)
	assert.Equal(t, "LoginFailed", failed.Message)
	assert.Equal(t, "unknown identity", failed.ContextMap()["reason"])
	assert.Equal(t, "ghost@example.com", failed.ContextMap()["email"])

	provisioned := entries[1].ContextMap()
	assert.Equal(t, "IdentityProvisioned", entries[1].Message)
	assert.Equal(t, "google", provisioned["provider"])
	assert.Equal(t, "g-1", provisioned["provider_id"])
	assert.Equal(t, "student", provisioned["role"])

	assert.Equal(t, "LoginSucceeded", entries[2].Message)
	assert.Equal(t, zapcore.DebugLevel, entries[3].Level)
}

func TestAuditService_Disabled(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	dispatcher := events.NewInMemoryDispatcher()
	NewAuditService(dispatcher, zap.New(core), config.AuditConfig{Enabled: false}).RegisterHandlers()

	require.NoError(t, dispatcher.Publish(context.Background(), events.Event{Type: events.EventLoginSucceeded}))
	assert.Zero(t, logs.Len())
}
