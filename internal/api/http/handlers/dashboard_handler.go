package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/campusgate/edu-gateway/internal/auth"
	"github.com/campusgate/edu-gateway/internal/domain"
)

// DashboardHandler serves the role dashboards. The figures are fixed sample
// data; only access to them is enforced here.
type DashboardHandler struct {
	dashboards map[domain.Role]fiber.Map
}

// NewDashboardHandler constructs handler.
func NewDashboardHandler() *DashboardHandler {
	return &DashboardHandler{dashboards: sampleDashboards()}
}

// Show returns the handler for GET /api/{role}/dashboard.
func (h *DashboardHandler) Show(role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := auth.PrincipalFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, "authentication required")
		}
		board, ok := h.dashboards[role]
		if !ok {
			return fiber.NewError(http.StatusNotFound, "dashboard not found")
		}
		return c.JSON(fiber.Map{
			"data": fiber.Map{
				"dashboard": role,
				"viewer": fiber.Map{
					"id":    principal.Identity.ID,
					"email": principal.Identity.Email,
					"role":  principal.Claims.Role,
				},
				"widgets": board,
			},
		})
	}
}

// Reports handles GET /api/reports.
func (h *DashboardHandler) Reports(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"data": []fiber.Map{
		{"id": "enrollment", "title": "Enrollment by term", "period": "2024-S1", "total": 1240},
		{"id": "attendance", "title": "Average attendance", "period": "2024-S1", "rate": 0.92},
		{"id": "completion", "title": "Assignment completion", "period": "2024-S1", "rate": 0.87},
	}})
}

func sampleDashboards() map[domain.Role]fiber.Map {
	return map[domain.Role]fiber.Map{
		domain.RoleAdmin: {
			"total_users":    1325,
			"active_courses": 48,
			"system_health":  "ok",
			"users_by_role": fiber.Map{
				"admin": 5, "coordinator": 12, "teacher": 68, "student": 1240,
			},
		},
		domain.RoleCoordinator: {
			"department":       "Sciences",
			"teachers":         18,
			"courses":          22,
			"pending_reviews":  4,
			"average_progress": 0.74,
		},
		domain.RoleTeacher: {
			"courses": []fiber.Map{
				{"code": "MATH-101", "students": 32, "ungraded": 7},
				{"code": "MATH-204", "students": 21, "ungraded": 2},
			},
			"upcoming_classes": 5,
		},
		domain.RoleStudent: {
			"enrolled_courses": []fiber.Map{
				{"code": "MATH-101", "progress": 0.62},
				{"code": "PHYS-110", "progress": 0.48},
			},
			"assignments_due": 3,
			"gpa":             3.4,
		},
	}
}
