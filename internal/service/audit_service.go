package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/campusgate/edu-gateway/internal/config"
	"github.com/campusgate/edu-gateway/internal/events"
)

// AuditService writes auth events to the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.AuditConfig
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.AuditConfig) *AuditService {
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil || !a.cfg.Enabled {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventTokenRefreshed, a.handleTokenRefreshed)
	a.dispatcher.Subscribe(events.EventIdentityProvisioned, a.handleIdentityProvisioned)
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	a.logger.Info("LoginSucceeded", eventFields(event)...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if payload, ok := event.Payload.(events.LoginFailedPayload); ok {
		fields = append(fields, zap.String("reason", payload.Reason))
	}
	a.logger.Warn("LoginFailed", fields...)
	return nil
}

func (a *AuditService) handleTokenRefreshed(_ context.Context, event events.Event) error {
	a.logger.Debug("TokenRefreshed", eventFields(event)...)
	return nil
}

func (a *AuditService) handleIdentityProvisioned(_ context.Context, event events.Event) error {
	fields := eventFields(event)
	if payload, ok := event.Payload.(events.IdentityProvisionedPayload); ok {
		fields = append(fields,
			zap.String("provider", payload.Provider),
			zap.String("provider_id", payload.ProviderID))
	}
	a.logger.Info("IdentityProvisioned", fields...)
	return nil
}

func eventFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("flow", event.Flow),
		zap.String("identity_id", event.IdentityID),
		zap.String("email", event.Email),
		zap.String("role", string(event.Role)),
		zap.Time("at", event.Timestamp),
	}
}
