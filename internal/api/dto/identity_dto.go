package dto

import "time"

// IdentityResponse is the public projection of an identity.
type IdentityResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	Role      string    `json:"role"`
	Active    bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// PrincipalResponse describes the caller of /auth/me.
type PrincipalResponse struct {
	User        IdentityResponse `json:"user"`
	Permissions []string         `json:"permissions"`
	ExpiresAt   time.Time        `json:"token_expires_at"`
}
