package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusgate/edu-gateway/internal/auth"
	"github.com/campusgate/edu-gateway/internal/config"
	"github.com/campusgate/edu-gateway/internal/domain"
	"github.com/campusgate/edu-gateway/internal/events"
	"github.com/campusgate/edu-gateway/internal/repository"
)

var errStoreDown = errors.New("connection refused")

type fakeProvider struct {
	mu          sync.Mutex
	profile     *domain.OAuthProfile
	exchangeErr error
	profileErr  error
	codes       []string
	verifiers   []string
}

func (f *fakeProvider) AuthorizationURL(state, codeChallenge string) string {
	return "https://accounts.example.com/auth?state=" + state + "&code_challenge=" + codeChallenge
}

func (f *fakeProvider) ExchangeCode(_ context.Context, code, codeVerifier string) (*domain.ProviderTokens, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.codes = append(f.codes, code)
	f.verifiers = append(f.verifiers, codeVerifier)
	if f.exchangeErr != nil {
		return nil, f.exchangeErr
	}
	return &domain.ProviderTokens{AccessToken: "provider-access-" + code}, nil
}

func (f *fakeProvider) FetchProfile(_ context.Context, _ string) (*domain.OAuthProfile, error) {
	if f.profileErr != nil {
		return nil, f.profileErr
	}
	p := *f.profile
	return &p, nil
}

// flakyIdentities wraps a repository and fails every call once broken is set.
type flakyIdentities struct {
	repository.IdentityRepository
	broken bool
}

func (f *flakyIdentities) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	if f.broken {
		return nil, errStoreDown
	}
	return f.IdentityRepository.GetByID(ctx, id)
}

func (f *flakyIdentities) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	if f.broken {
		return nil, errStoreDown
	}
	return f.IdentityRepository.GetByEmail(ctx, email)
}

func (f *flakyIdentities) Upsert(ctx context.Context, profile domain.OAuthProfile) (*domain.Identity, error) {
	if f.broken {
		return nil, errStoreDown
	}
	return f.IdentityRepository.Upsert(ctx, profile)
}

type brokenStates struct{}

func (brokenStates) Save(context.Context, string, string, time.Duration) error {
	return errStoreDown
}

func (brokenStates) Consume(context.Context, string) (string, error) {
	return "", errStoreDown
}

type gatewayFixture struct {
	gateway    *AuthGateway
	identities *flakyIdentities
	provider   *fakeProvider
	published  []events.Event
	now        time.Time
}

func (f *gatewayFixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func testConfig() config.Config {
	return config.Config{
		Auth: config.AuthConfig{
			JWTSecret:             "test-jwt-secret",
			JWTIssuer:             "edu-gateway",
			PasswordSecret:        "test-password-secret",
			AccessTokenTTLMinutes: 30,
			RefreshTokenTTLDays:   7,
		},
		OAuth: config.OAuthConfig{StateTTLMinutes: 10},
	}
}

func newGatewayFixture(t *testing.T, mutate ...func(*config.Config)) *gatewayFixture {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	f := &gatewayFixture{
		now: time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC),
		provider: &fakeProvider{profile: &domain.OAuthProfile{
			ID:    "google-42",
			Email: "new.student@example.com",
			Name:  "New Student",
		}},
	}
	clock := func() time.Time { return f.now }

	hasher := auth.NewPasswordHasher(cfg.Auth.PasswordSecret)
	f.identities = &flakyIdentities{IdentityRepository: repository.NewMemoryIdentityRepository(repository.DemoIdentities(hasher.Hash)...)}

	dispatcher := events.NewInMemoryDispatcher()
	for _, et := range []events.EventType{events.EventLoginSucceeded, events.EventLoginFailed, events.EventTokenRefreshed, events.EventIdentityProvisioned} {
		dispatcher.Subscribe(et, func(_ context.Context, e events.Event) error {
			f.published = append(f.published, e)
			return nil
		})
	}

	f.gateway = NewAuthGateway(cfg, GatewayDependencies{
		Identities: f.identities,
		States:     repository.NewMemoryOAuthStateRepository(clock),
		Provider:   f.provider,
		Events:     dispatcher,
		Clock:      clock,
	})
	return f
}

func (f *gatewayFixture) eventTypes() []events.EventType {
	out := make([]events.EventType, 0, len(f.published))
	for _, e := range f.published {
		out = append(out, e.Type)
	}
	return out
}

func (f *gatewayFixture) setActive(t *testing.T, email string, active bool) {
	t.Helper()
	// The memory store hands out copies; recreate the identity through a fresh store.
	all, err := f.identities.List(context.Background(), 0, 0)
	require.NoError(t, err)
	seed := make([]domain.Identity, 0, len(all))
	for _, identity := range all {
		if identity.Email == email {
			identity.Active = active
		}
		seed = append(seed, identity)
	}
	f.identities.IdentityRepository = repository.NewMemoryIdentityRepository(seed...)
}

func TestLogin_AdminScenario(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	result, err := f.gateway.Login(ctx, "admin@example.com", "admin123")
	require.NoError(t, err)

	assert.Equal(t, domain.RoleAdmin, result.Identity.Role)
	assert.Equal(t, f.now.Add(30*time.Minute), result.Tokens.AccessExpiresAt)
	assert.Equal(t, f.now.Add(7*24*time.Hour), result.Tokens.RefreshExpiresAt)
	assert.NotEqual(t, result.Tokens.AccessToken, result.Tokens.RefreshToken)

	claims, err := f.gateway.TokenCodec().Decode(result.Tokens.AccessToken, domain.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, result.Identity.ID, claims.Subject)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, domain.RoleAdmin, claims.Role)

	principal, err := f.gateway.Authorize(ctx, result.Tokens.AccessToken, auth.RequireRole(domain.RoleAdmin))
	require.NoError(t, err)
	assert.Equal(t, result.Identity.ID, principal.Identity.ID)

	assert.Equal(t, []events.EventType{events.EventLoginSucceeded}, f.eventTypes())
}

func TestLogin_Failures(t *testing.T) {
	tests := []struct {
		name     string
		email    string
		password string
		prepare  func(*testing.T, *gatewayFixture)
	}{
		{name: "wrong password", email: "admin@example.com", password: "admin124"},
		{name: "unknown email", email: "ghost@example.com", password: "admin123"},
		{name: "empty password", email: "admin@example.com", password: ""},
		{
			name: "inactive identity", email: "teacher@example.com", password: "teacher123",
			prepare: func(t *testing.T, f *gatewayFixture) { f.setActive(t, "teacher@example.com", false) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t)
			if tt.prepare != nil {
				tt.prepare(t, f)
			}

			_, err := f.gateway.Login(context.Background(), tt.email, tt.password)
			require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
			assert.Equal(t, "authentication failed: invalid credentials", err.Error())
			require.Len(t, f.published, 1)
			assert.Equal(t, events.EventLoginFailed, f.published[0].Type)
			assert.Equal(t, tt.email, f.published[0].Email)
		})
	}
}

func TestLogin_StoreUnavailable(t *testing.T) {
	f := newGatewayFixture(t)
	f.identities.broken = true

	_, err := f.gateway.Login(context.Background(), "admin@example.com", "admin123")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
	assert.NotErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Empty(t, f.published)
}

func TestAuthorize_RoleHierarchy(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	teacher, err := f.gateway.Login(ctx, "teacher@example.com", "teacher123")
	require.NoError(t, err)

	_, err = f.gateway.Authorize(ctx, teacher.Tokens.AccessToken, auth.RequireRole(domain.RoleAdmin))
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)
	assert.NotErrorIs(t, err, domain.ErrAuthenticationFailed)

	_, err = f.gateway.Authorize(ctx, teacher.Tokens.AccessToken, auth.RequireRole(domain.RoleStudent))
	assert.NoError(t, err)

	_, err = f.gateway.Authorize(ctx, teacher.Tokens.AccessToken, auth.RequirePermission(auth.PermGradeAssignments))
	assert.NoError(t, err)

	_, err = f.gateway.Authorize(ctx, teacher.Tokens.AccessToken, auth.RequirePermission(auth.PermReadReports))
	assert.ErrorIs(t, err, domain.ErrAuthorizationDenied)
}

func TestAuthorize_RejectsBadTokens(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	result, err := f.gateway.Login(ctx, "student@example.com", "student123")
	require.NoError(t, err)

	_, err = f.gateway.Authorize(ctx, result.Tokens.RefreshToken, auth.Requirement{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)

	_, err = f.gateway.Authorize(ctx, "garbage", auth.Requirement{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)

	f.advance(31 * time.Minute)
	_, err = f.gateway.Authorize(ctx, result.Tokens.AccessToken, auth.Requirement{})
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestAuthorize_ChecksIdentityBeforeRole(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	result, err := f.gateway.Login(ctx, "teacher@example.com", "teacher123")
	require.NoError(t, err)

	f.setActive(t, "teacher@example.com", false)
	_, err = f.gateway.Authorize(ctx, result.Tokens.AccessToken, auth.RequireRole(domain.RoleAdmin))
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.NotErrorIs(t, err, domain.ErrAuthorizationDenied)

	f.identities.broken = true
	_, err = f.gateway.Authorize(ctx, result.Tokens.AccessToken, auth.Requirement{})
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestRefresh(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	login, err := f.gateway.Login(ctx, "coordinator@example.com", "coord123")
	require.NoError(t, err)

	f.advance(time.Hour)
	pair, err := f.gateway.Refresh(ctx, login.Tokens.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(30*time.Minute), pair.AccessExpiresAt)

	claims, err := f.gateway.TokenCodec().Decode(pair.AccessToken, domain.TokenKindAccess)
	require.NoError(t, err)
	assert.Equal(t, login.Identity.ID, claims.Subject)
	assert.Equal(t, domain.RoleCoordinator, claims.Role)

	assert.Equal(t, []events.EventType{events.EventLoginSucceeded, events.EventTokenRefreshed}, f.eventTypes())
}

func TestRefresh_RejectsAccessToken(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	login, err := f.gateway.Login(ctx, "student@example.com", "student123")
	require.NoError(t, err)

	_, err = f.gateway.Refresh(ctx, login.Tokens.AccessToken)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, auth.ErrTokenInvalid)
}

func TestRefresh_Expired(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	login, err := f.gateway.Login(ctx, "student@example.com", "student123")
	require.NoError(t, err)

	f.advance(7*24*time.Hour + time.Second)
	_, err = f.gateway.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.ErrorIs(t, err, auth.ErrTokenExpired)
}

func TestRefresh_IdentityRecheck(t *testing.T) {
	ctx := context.Background()

	lenient := newGatewayFixture(t)
	login, err := lenient.gateway.Login(ctx, "teacher@example.com", "teacher123")
	require.NoError(t, err)
	lenient.setActive(t, "teacher@example.com", false)
	_, err = lenient.gateway.Refresh(ctx, login.Tokens.RefreshToken)
	assert.NoError(t, err)

	strict := newGatewayFixture(t, func(c *config.Config) { c.Auth.RefreshRecheckIdentity = true })
	login, err = strict.gateway.Login(ctx, "teacher@example.com", "teacher123")
	require.NoError(t, err)
	strict.setActive(t, "teacher@example.com", false)
	_, err = strict.gateway.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)

	strict.identities.broken = true
	_, err = strict.gateway.Refresh(ctx, login.Tokens.RefreshToken)
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestOAuth_BeginAndComplete(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	start, err := f.gateway.BeginOAuth(ctx)
	require.NoError(t, err)
	assert.Len(t, start.State, 64)
	assert.Len(t, start.CodeVerifier, 43)
	assert.Contains(t, start.AuthorizationURL, "state="+start.State)
	assert.Contains(t, start.AuthorizationURL, "code_challenge="+auth.ChallengeFromVerifier(start.CodeVerifier))

	result, err := f.gateway.CompleteOAuth(ctx, start.State, "code-1", start.CodeVerifier)
	require.NoError(t, err)

	assert.Equal(t, "new.student@example.com", result.Identity.Email)
	assert.Equal(t, domain.RoleStudent, result.Identity.Role)
	require.NotNil(t, result.Identity.GoogleID)
	assert.Equal(t, "google-42", *result.Identity.GoogleID)
	assert.Equal(t, []string{start.CodeVerifier}, f.provider.verifiers)
	assert.Equal(t, []events.EventType{events.EventIdentityProvisioned, events.EventLoginSucceeded}, f.eventTypes())

	_, err = f.gateway.Authorize(ctx, result.Tokens.AccessToken, auth.RequireRole(domain.RoleStudent))
	assert.NoError(t, err)
}

func TestOAuth_StateIsSingleUse(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	start, err := f.gateway.BeginOAuth(ctx)
	require.NoError(t, err)

	_, err = f.gateway.CompleteOAuth(ctx, start.State, "code-1", start.CodeVerifier)
	require.NoError(t, err)

	_, err = f.gateway.CompleteOAuth(ctx, start.State, "code-1", start.CodeVerifier)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Len(t, f.provider.codes, 1)
}

func TestOAuth_StateExpires(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	start, err := f.gateway.BeginOAuth(ctx)
	require.NoError(t, err)

	f.advance(11 * time.Minute)
	_, err = f.gateway.CompleteOAuth(ctx, start.State, "code-1", start.CodeVerifier)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Empty(t, f.provider.codes)
}

func TestOAuth_PKCEMismatch(t *testing.T) {
	f := newGatewayFixture(t)
	ctx := context.Background()

	start, err := f.gateway.BeginOAuth(ctx)
	require.NoError(t, err)
	other, err := auth.GeneratePKCE()
	require.NoError(t, err)

	_, err = f.gateway.CompleteOAuth(ctx, start.State, "code-1", other.CodeVerifier)
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	assert.Empty(t, f.provider.codes)
}

func TestOAuthLogin_ExistingIdentityKeepsRole(t *testing.T) {
	f := newGatewayFixture(t)
	f.provider.profile = &domain.OAuthProfile{ID: "google-7", Email: "coordinator@example.com", Name: "Cora"}

	result, err := f.gateway.OAuthLogin(context.Background(), "code-1", "verifier-from-client")
	require.NoError(t, err)

	assert.Equal(t, domain.RoleCoordinator, result.Identity.Role)
	assert.Equal(t, []events.EventType{events.EventLoginSucceeded}, f.eventTypes())
}

func TestOAuthLogin_InactiveIdentity(t *testing.T) {
	f := newGatewayFixture(t)
	f.setActive(t, "teacher@example.com", false)
	f.provider.profile = &domain.OAuthProfile{ID: "google-9", Email: "teacher@example.com"}

	_, err := f.gateway.OAuthLogin(context.Background(), "code-1", "verifier")
	assert.ErrorIs(t, err, domain.ErrAuthenticationFailed)
}

func TestOAuthLogin_Errors(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		prepare func(*gatewayFixture)
		want    error
	}{
		{name: "missing code", code: "", want: domain.ErrAuthenticationFailed},
		{
			name: "exchange rejected", code: "bad",
			prepare: func(f *gatewayFixture) {
				f.provider.exchangeErr = errors.Join(domain.ErrAuthenticationFailed, errors.New("invalid_grant"))
			},
			want: domain.ErrAuthenticationFailed,
		},
		{
			name: "provider unclassified failure", code: "c",
			prepare: func(f *gatewayFixture) { f.provider.exchangeErr = errors.New("tls handshake timeout") },
			want:    domain.ErrServiceUnavailable,
		},
		{
			name: "profile outage", code: "c",
			prepare: func(f *gatewayFixture) { f.provider.profileErr = domain.ErrServiceUnavailable },
			want:    domain.ErrServiceUnavailable,
		},
		{
			name: "identity store down", code: "c",
			prepare: func(f *gatewayFixture) { f.identities.broken = true },
			want:    domain.ErrServiceUnavailable,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newGatewayFixture(t)
			if tt.prepare != nil {
				tt.prepare(f)
			}
			_, err := f.gateway.OAuthLogin(context.Background(), tt.code, "verifier")
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOAuth_ProviderNotConfigured(t *testing.T) {
	cfg := testConfig()
	gateway := NewAuthGateway(cfg, GatewayDependencies{
		Identities: repository.NewMemoryIdentityRepository(),
		States:     repository.NewMemoryOAuthStateRepository(nil),
	})

	_, err := gateway.BeginOAuth(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	_, err = gateway.OAuthLogin(context.Background(), "code", "verifier")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestOAuth_StateStoreDown(t *testing.T) {
	cfg := testConfig()
	gateway := NewAuthGateway(cfg, GatewayDependencies{
		Identities: repository.NewMemoryIdentityRepository(),
		States:     brokenStates{},
		Provider:   &fakeProvider{},
	})

	_, err := gateway.BeginOAuth(context.Background())
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)

	_, err = gateway.CompleteOAuth(context.Background(), "state", "code", "verifier")
	assert.ErrorIs(t, err, domain.ErrServiceUnavailable)
}

func TestAuthGateway_ConcurrentLogins(t *testing.T) {
	cfg := testConfig()
	hasher := auth.NewPasswordHasher(cfg.Auth.PasswordSecret)
	gateway := NewAuthGateway(cfg, GatewayDependencies{
		Identities: repository.NewMemoryIdentityRepository(repository.DemoIdentities(hasher.Hash)...),
		States:     repository.NewMemoryOAuthStateRepository(nil),
	})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := gateway.Login(context.Background(), "student@example.com", "student123")
			if err != nil {
				errs <- err
				return
			}
			_, err = gateway.Authorize(context.Background(), result.Tokens.AccessToken, auth.RequireRole(domain.RoleStudent))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}
