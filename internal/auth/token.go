package auth

import (
	"errors"
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/campusgate/edu-gateway/internal/domain"
)

var (
	// ErrTokenInvalid covers bad signatures, malformed tokens, wrong kinds and
	// missing subjects.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired is returned once the verifying clock is past exp.
	ErrTokenExpired = errors.New("token expired")
)

// Claims describes the JWT payload: {sub, email, role, type, iat, exp}.
type Claims struct {
	Email string           `json:"email"`
	Role  domain.Role      `json:"role"`
	Type  domain.TokenKind `json:"type"`
	jwt.RegisteredClaims
}

// TokenCodec issues and decodes HS256 tokens.
type TokenCodec struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// CodecOption customises a TokenCodec.
type CodecOption func(*TokenCodec)

// WithClock overrides the clock used for iat/exp and for expiry checks.
func WithClock(now func() time.Time) CodecOption {
	return func(c *TokenCodec) {
		if now != nil {
			c.now = now
		}
	}
}

// WithIssuer stamps and requires the iss claim.
func WithIssuer(issuer string) CodecOption {
	return func(c *TokenCodec) { c.issuer = issuer }
}

// NewTokenCodec builds a codec signing with secret.
func NewTokenCodec(secret string, opts ...CodecOption) *TokenCodec {
	c := &TokenCodec{secret: []byte(secret), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Issue signs a token of the given kind for identity, valid for ttl.
func (c *TokenCodec) Issue(identity *domain.Identity, kind domain.TokenKind, ttl time.Duration) (string, time.Time, error) {
	if identity == nil || identity.ID == "" {
		return "", time.Time{}, errors.New("issue token: identity without id")
	}
	if !kind.Valid() {
		return "", time.Time{}, fmt.Errorf("issue token: unknown kind %q", kind)
	}

	now := c.now()
	expiresAt := now.Add(ttl)
	claims := &Claims{
		Email: identity.Email,
		Role:  identity.Role,
		Type:  kind,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   identity.ID,
			Issuer:    c.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Decode validates tokenStr and returns its claims when it is of kind expected.
func (c *TokenCodec) Decode(tokenStr string, expected domain.TokenKind) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	}
	if c.issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.issuer))
	}

	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return c.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, fmt.Errorf("%w: unexpected claims", ErrTokenInvalid)
	}
	if claims.Type != expected {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrTokenInvalid, expected, claims.Type)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}
	if !claims.Role.Valid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrTokenInvalid, claims.Role)
	}
	return claims, nil
}
