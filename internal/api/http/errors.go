package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/campusgate/edu-gateway/internal/auth"
	"github.com/campusgate/edu-gateway/internal/domain"
	apperrors "github.com/campusgate/edu-gateway/pkg/util/errorutil"
)

var errPanic = errors.New("panic while handling request")

// toDomainError maps gateway sentinels and fiber errors to transport errors.
func toDomainError(err error) *apperrors.DomainError {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}

	var fiberErr *fiber.Error
	switch {
	case errors.Is(err, domain.ErrAuthorizationDenied):
		return apperrors.ToDomainError(apperrors.NewForbidden("insufficient role or permission", err))
	case errors.Is(err, auth.ErrTokenExpired):
		return apperrors.ToDomainError(apperrors.NewTokenExpired(err))
	case errors.Is(err, domain.ErrAuthenticationFailed):
		return apperrors.ToDomainError(apperrors.NewUnauthorized("not authenticated", err))
	case errors.Is(err, domain.ErrServiceUnavailable):
		return apperrors.ToDomainError(apperrors.NewServiceUnavailable(err))
	case errors.As(err, &fiberErr):
		return apperrors.NewDomainError(codeForStatus(fiberErr.Code), fiberErr.Message, fiberErr.Code, nil)
	}
	return apperrors.ToDomainError(err)
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest, fiber.StatusUnprocessableEntity:
		return apperrors.CodeValidationFailed
	case fiber.StatusUnauthorized:
		return apperrors.CodeAuthenticationFailed
	case fiber.StatusForbidden:
		return apperrors.CodeAuthorizationDenied
	case fiber.StatusNotFound, fiber.StatusMethodNotAllowed:
		return apperrors.CodeNotFound
	case fiber.StatusTooManyRequests:
		return apperrors.CodeRateLimited
	case fiber.StatusServiceUnavailable:
		return apperrors.CodeServiceUnavailable
	}
	if status >= 500 {
		return apperrors.CodeInternal
	}
	return apperrors.CodeValidationFailed
}
