package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoleFailuresAreForbidden(t *testing.T) {
	err := NewForbidden("admin role required to purge archived tickets")
	domainErr := ToDomainError(fmt.Errorf("purge: %w", err))
	require.NotNil(t, domainErr)
	assert.Equal(t, CodeForbidden, domainErr.Code)
	assert.Equal(t, http.StatusForbidden, domainErr.HTTPStatus)
	assert.False(t, IsCode(err, CodeUnauthorized))

	missing := ToDomainError(NewUnauthorized("missing bearer token"))
	assert.Equal(t, CodeUnauthorized, missing.Code)
	assert.Equal(t, http.StatusUnauthorized, missing.HTTPStatus)
}

func TestFromStatusAndMapError(t *testing.T) {
	assert.Equal(t, CodeForbidden, FromStatus(http.StatusForbidden, "forbidden").Code)
	assert.Equal(t, CodeUnauthorized, FromStatus(http.StatusUnauthorized, "who").Code)
	assert.Equal(t, CodeInvalidRequest, FromStatus(http.StatusUnprocessableEntity, "bad").Code)
	assert.Equal(t, CodeInternal, FromStatus(http.StatusBadGateway, "upstream").Code)

	assert.NoError(t, MapError(nil))
	raw := errors.New("boom")
	mapped := MapError(raw)
	assert.True(t, IsCode(mapped, CodeInternal))
	assert.ErrorIs(t, mapped, raw)
}
