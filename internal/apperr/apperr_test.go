package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorContext(t *testing.T) {
	err := InsufficientStock(42, 7)

	assert.Equal(t, KindInsufficientStock, err.Kind)
	assert.Equal(t, int64(42), err.Context["product_id"])
	assert.Equal(t, 7, err.Context["requested"])
	assert.Contains(t, err.Error(), "42")
}

func TestInternalHidesCause(t *testing.T) {
	cause := errors.New("pq: connection refused")
	err := Internal("failed to load order", cause)

	assert.Equal(t, "failed to load order", err.Message)
	assert.ErrorIs(t, err, cause)
}

func TestFrom(t *testing.T) {
	appErr := NotFound("order", 5)
	wrapped := fmt.Errorf("handling request: %w", appErr)

	assert.Equal(t, KindNotFound, From(wrapped).Kind)
	assert.Equal(t, KindInternal, From(errors.New("boom")).Kind)
	require.Nil(t, From(nil))
}

func TestIs(t *testing.T) {
	err := InvalidTransition("delivered", "pending")

	assert.True(t, Is(err, KindInvalidTransition))
	assert.False(t, Is(err, KindValidation))
	assert.False(t, Is(errors.New("plain"), KindInternal))
}

func TestWithChaining(t *testing.T) {
	err := Forbidden("nope").With("order_id", int64(3)).With("role", "pharmacy")

	assert.Equal(t, int64(3), err.Context["order_id"])
	assert.Equal(t, "pharmacy", err.Context["role"])
}
