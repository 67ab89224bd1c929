package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campusgate/edu-gateway/internal/api/dto"
	"github.com/campusgate/edu-gateway/internal/service"
)

const verifierCookie = "oauth_verifier"

// OAuthHandler exposes the Google sign-in endpoints.
type OAuthHandler struct {
	gateway       *service.AuthGateway
	stateTTL      time.Duration
	secureCookies bool
	now           func() time.Time
}

// NewOAuthHandler constructs handler.
func NewOAuthHandler(gateway *service.AuthGateway, stateTTL time.Duration, secureCookies bool) *OAuthHandler {
	return &OAuthHandler{gateway: gateway, stateTTL: stateTTL, secureCookies: secureCookies, now: time.Now}
}

// Start handles GET /auth/google/login. The PKCE verifier is kept in an
// HttpOnly cookie so only the browser that started the flow can finish it.
func (h *OAuthHandler) Start(c *fiber.Ctx) error {
	start, err := h.gateway.BeginOAuth(c.UserContext())
	if err != nil {
		return err
	}

	c.Cookie(&fiber.Cookie{
		Name:     verifierCookie,
		Value:    start.CodeVerifier,
		Path:     "/auth/google",
		MaxAge:   int(h.stateTTL.Seconds()),
		Secure:   h.secureCookies,
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return c.JSON(fiber.Map{"data": dto.OAuthStartResponse{
		AuthorizationURL: start.AuthorizationURL,
		State:            start.State,
	}})
}

// Callback handles GET /auth/google/callback.
func (h *OAuthHandler) Callback(c *fiber.Ctx) error {
	if providerErr := c.Query("error"); providerErr != "" {
		return fiber.NewError(http.StatusUnauthorized, "authorization denied by provider: "+providerErr)
	}
	state, code := c.Query("state"), c.Query("code")
	if state == "" || code == "" {
		return fiber.NewError(http.StatusBadRequest, "state and code required")
	}
	verifier := c.Cookies(verifierCookie)
	c.ClearCookie(verifierCookie)
	if verifier == "" {
		return fiber.NewError(http.StatusUnauthorized, "missing oauth verifier cookie")
	}

	result, err := h.gateway.CompleteOAuth(c.UserContext(), state, code, verifier)
	if err != nil {
		return err
	}
	return c.JSON(loginResponse(result, h.now))
}

// Token handles POST /auth/google/token for public clients holding their own verifier.
func (h *OAuthHandler) Token(c *fiber.Ctx) error {
	var req dto.OAuthTokenRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.gateway.OAuthLogin(c.UserContext(), req.Code, req.CodeVerifier)
	if err != nil {
		return err
	}
	return c.JSON(loginResponse(result, h.now))
}
