package handlers

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/campusgate/edu-gateway/internal/api/dto"
	"github.com/campusgate/edu-gateway/internal/domain"
	"github.com/campusgate/edu-gateway/internal/service"
	apperrors "github.com/campusgate/edu-gateway/pkg/util/errorutil"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// bindAndValidate parses the JSON body into out and runs struct validation.
func bindAndValidate(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if err := validate.Struct(out); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fiber.NewError(http.StatusBadRequest, "invalid payload")
		}
		details := make(map[string]any, len(verrs))
		fields := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			name := jsonFieldName(fe)
			details[name] = fe.Tag()
			fields = append(fields, name)
		}
		sort.Strings(fields)
		return apperrors.NewValidationError("invalid fields: "+strings.Join(fields, ", "), details)
	}
	return nil
}

func jsonFieldName(fe validator.FieldError) string {
	name := fe.Field()
	var b strings.Builder
	for i, r := range name {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func identityResponse(identity *domain.Identity) dto.IdentityResponse {
	return dto.IdentityResponse{
		ID:        identity.ID,
		Email:     identity.Email,
		Name:      identity.Name,
		Picture:   identity.Picture,
		Role:      string(identity.Role),
		Active:    identity.Active,
		CreatedAt: identity.CreatedAt,
	}
}

func tokenResponse(pair *service.TokenPair, now func() time.Time) dto.TokenResponse {
	expiresIn := int64(pair.AccessExpiresAt.Sub(now()).Seconds())
	if expiresIn < 0 {
		expiresIn = 0
	}
	return dto.TokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "bearer",
		ExpiresIn:        expiresIn,
		ExpiresAt:        pair.AccessExpiresAt,
		RefreshExpiresAt: pair.RefreshExpiresAt,
	}
}

func loginResponse(result *service.LoginResult, now func() time.Time) fiber.Map {
	return fiber.Map{
		"data": fiber.Map{
			"user": identityResponse(result.Identity),
			"auth": tokenResponse(result.Tokens, now),
		},
	}
}
