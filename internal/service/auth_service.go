package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campusgate/edu-gateway/internal/auth"
	"github.com/campusgate/edu-gateway/internal/config"
	"github.com/campusgate/edu-gateway/internal/domain"
	"github.com/campusgate/edu-gateway/internal/events"
	"github.com/campusgate/edu-gateway/internal/observability"
	"github.com/campusgate/edu-gateway/internal/repository"
)

const (
	flowPassword = "password"
	flowRefresh  = "refresh"
	flowOAuth    = "oauth"

	resultSuccess = "success"
	resultFailure = "failure"
	resultError   = "error"
)

// OAuthProvider is the external identity provider used for social sign-in.
type OAuthProvider interface {
	AuthorizationURL(state, codeChallenge string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.ProviderTokens, error)
	FetchProfile(ctx context.Context, accessToken string) (*domain.OAuthProfile, error)
}

// TokenPair is the gateway's own access/refresh pair.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// LoginResult is returned by the password and OAuth login flows.
type LoginResult struct {
	Identity *domain.Identity
	Tokens   *TokenPair
}

// OAuthStart carries what a client needs to send the user to the provider.
// CodeVerifier must be kept by the client and presented again on completion.
type OAuthStart struct {
	AuthorizationURL string
	State            string
	CodeVerifier     string
}

// GatewayDependencies encapsulates collaborators of the gateway.
type GatewayDependencies struct {
	Identities repository.IdentityRepository
	States     repository.OAuthStateRepository
	Provider   OAuthProvider
	Events     events.Dispatcher
	Logger     *zap.Logger
	Metrics    *observability.Metrics
	Clock      func() time.Time
}

// AuthGateway coordinates login, refresh, OAuth sign-in and request
// authorization. It keeps no per-request state and is safe for concurrent use.
type AuthGateway struct {
	identities       repository.IdentityRepository
	states           repository.OAuthStateRepository
	provider         OAuthProvider
	events           events.Dispatcher
	logger           *zap.Logger
	metrics          *observability.Metrics
	tokens           *auth.TokenCodec
	hasher           *auth.PasswordHasher
	now              func() time.Time
	accessTTL        time.Duration
	refreshTTL       time.Duration
	stateTTL         time.Duration
	recheckOnRefresh bool
	dummyDigest      string
}

// NewAuthGateway builds the gateway.
func NewAuthGateway(cfg config.Config, deps GatewayDependencies) *AuthGateway {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	hasher := auth.NewPasswordHasher(cfg.Auth.PasswordSecret)
	return &AuthGateway{
		identities:       deps.Identities,
		states:           deps.States,
		provider:         deps.Provider,
		events:           deps.Events,
		logger:           logger,
		metrics:          deps.Metrics,
		tokens:           auth.NewTokenCodec(cfg.Auth.JWTSecret, auth.WithClock(now), auth.WithIssuer(cfg.Auth.JWTIssuer)),
		hasher:           hasher,
		now:              now,
		accessTTL:        cfg.Auth.AccessTokenTTL(),
		refreshTTL:       cfg.Auth.RefreshTokenTTL(),
		stateTTL:         cfg.OAuth.StateTTL(),
		recheckOnRefresh: cfg.Auth.RefreshRecheckIdentity,
		dummyDigest:      hasher.Hash(uuid.NewString()),
	}
}

// Login authenticates email/password and issues a token pair.
func (g *AuthGateway) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	identity, err := g.identities.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, domain.ErrIdentityNotFound) {
			g.metrics.RecordAuthAttempt(flowPassword, resultError)
			return nil, unavailable("identity store", err)
		}
		// Burn one hash so unknown emails cost the same as wrong passwords.
		g.hasher.Verify(password, g.dummyDigest)
		return nil, g.loginFailed(ctx, email, "unknown identity")
	}
	if !identity.Active {
		return nil, g.loginFailed(ctx, email, "inactive identity")
	}
	if !g.hasher.Verify(password, identity.PasswordHash) {
		return nil, g.loginFailed(ctx, email, "password mismatch")
	}

	pair, err := g.issuePair(identity)
	if err != nil {
		g.metrics.RecordAuthAttempt(flowPassword, resultError)
		return nil, err
	}

	g.metrics.RecordAuthAttempt(flowPassword, resultSuccess)
	g.publish(ctx, events.Event{Type: events.EventLoginSucceeded, Flow: flowPassword}, identity)
	return &LoginResult{Identity: identity, Tokens: pair}, nil
}

// Refresh exchanges a valid refresh token for a new pair. The pair is issued
// from the token claims; the identity store is consulted only when the
// gateway was configured with AUTH_REFRESH_RECHECK_IDENTITY.
func (g *AuthGateway) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := g.tokens.Decode(refreshToken, domain.TokenKindRefresh)
	if err != nil {
		g.metrics.RecordAuthAttempt(flowRefresh, resultFailure)
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	}

	identity := &domain.Identity{
		ID:     claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
		Active: true,
	}
	if g.recheckOnRefresh {
		identity, err = g.activeIdentity(ctx, claims.Subject)
		if err != nil {
			g.metrics.RecordAuthAttempt(flowRefresh, attemptResult(err))
			return nil, err
		}
	}

	pair, err := g.issuePair(identity)
	if err != nil {
		g.metrics.RecordAuthAttempt(flowRefresh, resultError)
		return nil, err
	}

	g.metrics.RecordAuthAttempt(flowRefresh, resultSuccess)
	g.publish(ctx, events.Event{Type: events.EventTokenRefreshed, Flow: flowRefresh}, identity)
	return pair, nil
}

// Authorize decodes an access token, re-checks that its subject is still an
// active identity and evaluates req against the token role.
func (g *AuthGateway) Authorize(ctx context.Context, accessToken string, req auth.Requirement) (*auth.Principal, error) {
	claims, err := g.tokens.Decode(accessToken, domain.TokenKindAccess)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrAuthenticationFailed, err)
	}

	identity, err := g.activeIdentity(ctx, claims.Subject)
	if err != nil {
		return nil, err
	}

	decision := auth.Check(claims.Role, req)
	g.metrics.RecordAuthorization(decision.Allowed)
	if !decision.Allowed {
		g.logger.Debug("authorization denied",
			zap.String("identity_id", identity.ID),
			zap.String("requirement", req.String()),
			zap.String("reason", decision.Reason))
		return nil, fmt.Errorf("%w: %s", domain.ErrAuthorizationDenied, decision.Reason)
	}

	return &auth.Principal{Identity: identity, Claims: claims}, nil
}

// BeginOAuth starts an authorization-code flow with PKCE. The state is
// remembered together with the code challenge until CompleteOAuth consumes it.
func (g *AuthGateway) BeginOAuth(ctx context.Context) (*OAuthStart, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("%w: oauth provider not configured", domain.ErrServiceUnavailable)
	}

	pkce, err := auth.GeneratePKCE()
	if err != nil {
		return nil, err
	}
	state, err := auth.GenerateState()
	if err != nil {
		return nil, err
	}
	if err := g.states.Save(ctx, state, pkce.CodeChallenge, g.stateTTL); err != nil {
		return nil, unavailable("oauth state store", err)
	}

	return &OAuthStart{
		AuthorizationURL: g.provider.AuthorizationURL(state, pkce.CodeChallenge),
		State:            state,
		CodeVerifier:     pkce.CodeVerifier,
	}, nil
}

// CompleteOAuth redeems state exactly once, checks that verifier matches the
// challenge recorded by BeginOAuth and then runs OAuthLogin.
func (g *AuthGateway) CompleteOAuth(ctx context.Context, state, code, codeVerifier string) (*LoginResult, error) {
	challenge, err := g.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, repository.ErrStateNotFound) {
			g.metrics.RecordAuthAttempt(flowOAuth, resultFailure)
			return nil, fmt.Errorf("%w: unknown or already used oauth state", domain.ErrAuthenticationFailed)
		}
		g.metrics.RecordAuthAttempt(flowOAuth, resultError)
		return nil, unavailable("oauth state store", err)
	}

	if !auth.VerifyPKCE(codeVerifier, challenge) {
		g.metrics.RecordAuthAttempt(flowOAuth, resultFailure)
		return nil, fmt.Errorf("%w: pkce verification failed", domain.ErrAuthenticationFailed)
	}

	return g.OAuthLogin(ctx, code, codeVerifier)
}

// OAuthLogin exchanges code for provider tokens, maps the provider profile to
// an identity (creating it on first sight) and issues the gateway's own pair.
func (g *AuthGateway) OAuthLogin(ctx context.Context, code, codeVerifier string) (*LoginResult, error) {
	if g.provider == nil {
		return nil, fmt.Errorf("%w: oauth provider not configured", domain.ErrServiceUnavailable)
	}
	if code == "" || codeVerifier == "" {
		g.metrics.RecordAuthAttempt(flowOAuth, resultFailure)
		return nil, fmt.Errorf("%w: code and code_verifier required", domain.ErrAuthenticationFailed)
	}

	providerTokens, err := g.provider.ExchangeCode(ctx, code, codeVerifier)
	if err != nil {
		return nil, g.providerFailed(err)
	}
	profile, err := g.provider.FetchProfile(ctx, providerTokens.AccessToken)
	if err != nil {
		return nil, g.providerFailed(err)
	}

	_, lookupErr := g.identities.GetByEmail(ctx, profile.Email)
	if lookupErr != nil && !errors.Is(lookupErr, domain.ErrIdentityNotFound) {
		g.metrics.RecordAuthAttempt(flowOAuth, resultError)
		return nil, unavailable("identity store", lookupErr)
	}
	provisioned := errors.Is(lookupErr, domain.ErrIdentityNotFound)

	identity, err := g.identities.Upsert(ctx, *profile)
	if err != nil {
		g.metrics.RecordAuthAttempt(flowOAuth, resultError)
		return nil, unavailable("identity store", err)
	}
	if provisioned {
		g.publish(ctx, events.Event{
			Type: events.EventIdentityProvisioned,
			Flow: flowOAuth,
			Payload: events.IdentityProvisionedPayload{
				Provider:   "google",
				ProviderID: profile.ID,
			},
		}, identity)
	}
	if !identity.Active {
		g.metrics.RecordAuthAttempt(flowOAuth, resultFailure)
		return nil, fmt.Errorf("%w: identity inactive", domain.ErrAuthenticationFailed)
	}

	pair, err := g.issuePair(identity)
	if err != nil {
		g.metrics.RecordAuthAttempt(flowOAuth, resultError)
		return nil, err
	}

	g.metrics.RecordAuthAttempt(flowOAuth, resultSuccess)
	g.publish(ctx, events.Event{Type: events.EventLoginSucceeded, Flow: flowOAuth}, identity)
	return &LoginResult{Identity: identity, Tokens: pair}, nil
}

// HashPassword digests password with the gateway's hasher.
func (g *AuthGateway) HashPassword(password string) string {
	return g.hasher.Hash(password)
}

// TokenCodec exposes the underlying codec.
func (g *AuthGateway) TokenCodec() *auth.TokenCodec {
	return g.tokens
}

// AccessTokenTTL returns the configured access token lifetime.
func (g *AuthGateway) AccessTokenTTL() time.Duration {
	return g.accessTTL
}

func (g *AuthGateway) issuePair(identity *domain.Identity) (*TokenPair, error) {
	access, accessExp, err := g.tokens.Issue(identity, domain.TokenKindAccess, g.accessTTL)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordTokenIssued(string(domain.TokenKindAccess))

	refresh, refreshExp, err := g.tokens.Issue(identity, domain.TokenKindRefresh, g.refreshTTL)
	if err != nil {
		return nil, err
	}
	g.metrics.RecordTokenIssued(string(domain.TokenKindRefresh))

	return &TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessExp,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshExp,
	}, nil
}

func (g *AuthGateway) activeIdentity(ctx context.Context, id string) (*domain.Identity, error) {
	identity, err := g.identities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			return nil, fmt.Errorf("%w: identity no longer exists", domain.ErrAuthenticationFailed)
		}
		return nil, unavailable("identity store", err)
	}
	if !identity.Active {
		return nil, fmt.Errorf("%w: identity inactive", domain.ErrAuthenticationFailed)
	}
	return identity, nil
}

func (g *AuthGateway) loginFailed(ctx context.Context, email, reason string) error {
	g.metrics.RecordAuthAttempt(flowPassword, resultFailure)
	g.publish(ctx, events.Event{
		Type:    events.EventLoginFailed,
		Flow:    flowPassword,
		Email:   email,
		Payload: events.LoginFailedPayload{Reason: reason},
	}, nil)
	return fmt.Errorf("%w: invalid credentials", domain.ErrAuthenticationFailed)
}

// Provider errors are already classified by the client; anything else counts
// as the provider being unavailable.
func (g *AuthGateway) providerFailed(err error) error {
	switch {
	case errors.Is(err, domain.ErrAuthenticationFailed):
		g.metrics.RecordAuthAttempt(flowOAuth, resultFailure)
		return err
	case errors.Is(err, domain.ErrServiceUnavailable):
		g.metrics.RecordAuthAttempt(flowOAuth, resultError)
		return err
	default:
		g.metrics.RecordAuthAttempt(flowOAuth, resultError)
		return unavailable("oauth provider", err)
	}
}

func (g *AuthGateway) publish(ctx context.Context, event events.Event, identity *domain.Identity) {
	if g.events == nil {
		return
	}
	event.ID = uuid.NewString()
	event.Timestamp = g.now().UTC()
	if identity != nil {
		event.IdentityID = identity.ID
		event.Email = identity.Email
		event.Role = identity.Role
	}
	if err := g.events.Publish(ctx, event); err != nil {
		g.logger.Warn("publish auth event", zap.String("type", string(event.Type)), zap.Error(err))
	}
}

func unavailable(component string, err error) error {
	return fmt.Errorf("%w: %s: %w", domain.ErrServiceUnavailable, component, err)
}

func attemptResult(err error) string {
	if errors.Is(err, domain.ErrServiceUnavailable) {
		return resultError
	}
	return resultFailure
}
