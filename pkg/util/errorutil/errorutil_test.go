package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainError(t *testing.T) {
	require.Nil(t, ToDomainError(nil))

	forbidden := NewForbidden("nope", nil)
	wrapped := fmt.Errorf("handler: %w", forbidden)
	got := ToDomainError(wrapped)
	assert.Equal(t, CodeAuthorizationDenied, got.Code)
	assert.Equal(t, http.StatusForbidden, got.HTTPStatus)

	plain := errors.New("disk on fire")
	got = ToDomainError(plain)
	assert.Equal(t, CodeInternal, got.Code)
	assert.Equal(t, http.StatusInternalServerError, got.HTTPStatus)
	assert.ErrorIs(t, got, plain)
}

func TestDomainError_ErrorIncludesCause(t *testing.T) {
	cause := errors.New("redis down")
	err := NewServiceUnavailable(cause)
	assert.Equal(t, "service temporarily unavailable: redis down", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "token expired", NewTokenExpired(nil).Error())
}
