package domain

import "time"

// Identity is a dashboard account as held by the identity store.
type Identity struct {
	ID           string
	Email        string
	Name         string
	Picture      string
	GoogleID     *string
	Role         Role
	PasswordHash string
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OAuthProfile is the subset of the provider profile the gateway consumes.
type OAuthProfile struct {
	ID      string
	Email   string
	Name    string
	Picture string
}

// ProviderTokens are the tokens an OAuth provider returns on code exchange.
// They stay inside the gateway and are never handed to callers.
type ProviderTokens struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       time.Time
}
