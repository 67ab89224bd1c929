package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/campusgate/edu-gateway/internal/api/dto"
	"github.com/campusgate/edu-gateway/internal/auth"
	"github.com/campusgate/edu-gateway/internal/service"
)

// AuthHandler exposes password login, refresh and session endpoints.
type AuthHandler struct {
	gateway *service.AuthGateway
	now     func() time.Time
}

// NewAuthHandler constructs handler.
func NewAuthHandler(gateway *service.AuthGateway) *AuthHandler {
	return &AuthHandler{gateway: gateway, now: time.Now}
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req dto.LoginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	result, err := h.gateway.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return c.JSON(loginResponse(result, h.now))
}

// Refresh handles POST /auth/refresh.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req dto.RefreshRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	pair, err := h.gateway.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"auth": tokenResponse(pair, h.now)}})
}

// Me handles GET /auth/me.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := auth.PrincipalFromContext(c)
	if !ok {
		return fiber.NewError(http.StatusUnauthorized, "authentication required")
	}

	perms := auth.Permissions(principal.Claims.Role)
	sort.Strings(perms)
	return c.JSON(fiber.Map{"data": dto.PrincipalResponse{
		User:        identityResponse(principal.Identity),
		Permissions: perms,
		ExpiresAt:   principal.Claims.ExpiresAt.Time,
	}})
}

// Logout handles POST /auth/logout. Tokens are stateless, so the client just drops them.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	return c.SendStatus(http.StatusNoContent)
}
