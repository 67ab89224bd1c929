// Package oauth holds the OAuth2 provider clients used for social sign-in.
package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/campusgate/edu-gateway/internal/config"
	"github.com/campusgate/edu-gateway/internal/domain"
)

const defaultGoogleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleProvider performs the authorization-code exchange against Google.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// GoogleOption customises a GoogleProvider.
type GoogleOption func(*GoogleProvider)

// WithEndpoint overrides the authorization and token endpoints.
func WithEndpoint(endpoint oauth2.Endpoint) GoogleOption {
	return func(p *GoogleProvider) { p.cfg.Endpoint = endpoint }
}

// WithUserInfoURL overrides the profile endpoint.
func WithUserInfoURL(url string) GoogleOption {
	return func(p *GoogleProvider) { p.userInfoURL = url }
}

// WithHTTPClient sets the client used for every provider call.
func WithHTTPClient(client *http.Client) GoogleOption {
	return func(p *GoogleProvider) { p.httpClient = client }
}

// NewGoogleProvider builds a provider from configuration.
func NewGoogleProvider(cfg config.OAuthConfig, opts ...GoogleOption) *GoogleProvider {
	p := &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: defaultGoogleUserInfoURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// AuthorizationURL returns the consent URL bound to state and the S256 code challenge.
func (p *GoogleProvider) AuthorizationURL(state, codeChallenge string) string {
	return p.cfg.AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)
}

// ExchangeCode trades an authorization code plus its PKCE verifier for provider tokens.
func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*domain.ProviderTokens, error) {
	token, err := p.cfg.Exchange(p.clientContext(ctx), code, oauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, classifyExchangeError(err)
	}

	out := &domain.ProviderTokens{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Expiry:       token.Expiry,
	}
	if idToken, ok := token.Extra("id_token").(string); ok {
		out.IDToken = idToken
	}
	return out, nil
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// FetchProfile reads the signed-in user's profile.
func (p *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (*domain.OAuthProfile, error) {
	client := p.cfg.Client(p.clientContext(ctx), &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: userinfo request: %v", domain.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: userinfo rejected token (status %d)", domain.ErrAuthenticationFailed, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: userinfo status %d", domain.ErrServiceUnavailable, resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("%w: decode userinfo: %v", domain.ErrServiceUnavailable, err)
	}
	if strings.TrimSpace(info.Email) == "" {
		return nil, fmt.Errorf("%w: provider profile has no email", domain.ErrAuthenticationFailed)
	}
	if !info.VerifiedEmail {
		return nil, fmt.Errorf("%w: provider email not verified", domain.ErrAuthenticationFailed)
	}

	return &domain.OAuthProfile{
		ID:      info.ID,
		Email:   strings.ToLower(strings.TrimSpace(info.Email)),
		Name:    info.Name,
		Picture: info.Picture,
	}, nil
}

func (p *GoogleProvider) clientContext(ctx context.Context) context.Context {
	if p.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
}

// A 4xx from the token endpoint (invalid_grant, PKCE mismatch) is the caller's
// fault; anything else is the provider being unavailable.
func classifyExchangeError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil &&
		retrieveErr.Response.StatusCode >= 400 && retrieveErr.Response.StatusCode < 500 {
		return fmt.Errorf("%w: code exchange rejected: %v", domain.ErrAuthenticationFailed, err)
	}
	return fmt.Errorf("%w: code exchange: %v", domain.ErrServiceUnavailable, err)
}
