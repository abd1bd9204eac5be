package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	base := NotFound("product", "p1")
	wrapped := fmt.Errorf("load: %w", base)

	se := GetServiceError(wrapped)
	require.NotNil(t, se)
	assert.Equal(t, CodeNotFound, se.Code)
	assert.Equal(t, http.StatusNotFound, se.HTTPStatus)
	assert.Equal(t, "p1", se.Details["id"])
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeConflict))
}

func TestGetServiceErrorPlainError(t *testing.T) {
	assert.Nil(t, GetServiceError(stderrors.New("boom")))
	assert.Nil(t, GetServiceError(nil))
}

func TestUnwrapKeepsCause(t *testing.T) {
	cause := stderrors.New("dial tcp: refused")
	err := Internal("database unavailable", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "refused")
}

func TestRateLimitDetails(t *testing.T) {
	err := RateLimitExceeded(20, "1s")
	assert.Equal(t, http.StatusTooManyRequests, err.HTTPStatus)
	assert.Equal(t, 20, err.Details["limit"])
	assert.Equal(t, "1s", err.Details["window"])
}

func TestDefaultMessages(t *testing.T) {
	assert.Equal(t, "unauthorized", Unauthorized("").Message)
	assert.Equal(t, "forbidden", Forbidden("").Message)
}
