package domain

import "errors"

// TokenKind differentiates access vs refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// Valid reports whether k is a known token kind.
func (k TokenKind) Valid() bool {
	return k == TokenKindAccess || k == TokenKindRefresh
}

var (
	// ErrAuthenticationFailed covers bad credentials, unknown or inactive
	// identities and any invalid, expired or malformed token.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAuthorizationDenied means the caller is authenticated but lacks the
	// required role or permission.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrServiceUnavailable wraps failures of the identity store, state store
	// or OAuth provider.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrIdentityNotFound is returned by identity stores on a lookup miss.
	ErrIdentityNotFound = errors.New("identity not found")
)
