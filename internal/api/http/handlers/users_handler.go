package handlers

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/campusgate/edu-gateway/internal/api/dto"
	"github.com/campusgate/edu-gateway/internal/service"
)

// UsersHandler exposes the identity directory to administrators.
type UsersHandler struct {
	identities *service.IdentityService
}

// NewUsersHandler constructs handler.
func NewUsersHandler(identities *service.IdentityService) *UsersHandler {
	return &UsersHandler{identities: identities}
}

// List handles GET /api/admin/users.
func (h *UsersHandler) List(c *fiber.Ctx) error {
	page := parseIntQuery(c, "page", 1)
	pageSize := parseIntQuery(c, "page_size", 50)

	list, err := h.identities.List(c.UserContext(), page, pageSize)
	if err != nil {
		return err
	}
	resp := make([]dto.IdentityResponse, 0, len(list))
	for i := range list {
		resp = append(resp, identityResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": resp, "page": page, "page_size": pageSize})
}

func parseIntQuery(c *fiber.Ctx, key string, defaultVal int) int {
	if val := c.Query(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultVal
}
