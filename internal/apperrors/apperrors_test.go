package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusMapping(t *testing.T) {
	cases := []struct {
		err  *AppError
		want int
	}{
		{Unauthorized("x"), http.StatusUnauthorized},
		{Forbidden("x"), http.StatusForbidden},
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{Validation("x"), http.StatusUnprocessableEntity},
		{Storage("x", nil), http.StatusBadGateway},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.err.Status())
	}
}

func TestResponseBody(t *testing.T) {
	err := NotFound("Benchmark not found")
	assert.Equal(t, Detail{Detail: "Benchmark not found"}, err.Response())
}

func TestAs_PreservesKindThroughWrapping(t *testing.T) {
	inner := Conflict("User already exists")
	wrapped := fmt.Errorf("create user: %w", inner)

	appErr := As(wrapped)
	assert.Equal(t, KindConflict, appErr.Kind)
	assert.Equal(t, "User already exists", appErr.Message)
}

func TestAs_UnclassifiedBecomesStorage(t *testing.T) {
	appErr := As(errors.New("connection reset"))
	assert.Equal(t, KindStorage, appErr.Kind)
	// Raw backend messages never leak into the detail body.
	assert.Equal(t, "storage backend failure", appErr.Message)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("x")))
	assert.True(t, IsNotFound(fmt.Errorf("wrap: %w", NotFound("x"))))
	assert.False(t, IsNotFound(Forbidden("x")))
	assert.False(t, IsNotFound(nil))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("io failure")
	err := Storage("backend failure", cause)
	assert.ErrorIs(t, err, cause)
}
