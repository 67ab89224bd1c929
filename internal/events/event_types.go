package events

import (
	"time"

	"github.com/campusgate/edu-gateway/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded      EventType = "login_succeeded"
	EventLoginFailed         EventType = "login_failed"
	EventTokenRefreshed      EventType = "token_refreshed"
	EventIdentityProvisioned EventType = "identity_provisioned"
)

// Event represents an auth event emitted by the gateway.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	IdentityID string      `json:"identity_id,omitempty"`
	Email      string      `json:"email,omitempty"`
	Role       domain.Role `json:"role,omitempty"`
	Flow       string      `json:"flow"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload,omitempty"`
}

// LoginFailedPayload payload.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}

// IdentityProvisionedPayload payload.
type IdentityProvisionedPayload struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"provider_id"`
}
