package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHooksRunSwallowsFailures(t *testing.T) {
	var hooks Hooks
	var calls []string

	hooks.Add(func(ctx context.Context) error {
		calls = append(calls, "broker")
		return errors.New("broker unavailable")
	})
	hooks.Add(func(ctx context.Context) error {
		calls = append(calls, "cache")
		return nil
	})

	// a failing hook never stops the ones after it
	hooks.Run(context.Background())

	assert.Equal(t, []string{"broker", "cache"}, calls)
}

func TestHooksRunInRegistrationOrder(t *testing.T) {
	var hooks Hooks
	var calls []int

	for i := 0; i < 5; i++ {
		i := i
		hooks.Add(func(ctx context.Context) error {
			calls = append(calls, i)
			return nil
		})
	}

	hooks.Run(context.Background())

	assert.Equal(t, []int{0, 1, 2, 3, 4}, calls)
}

func TestHooksRunEmpty(t *testing.T) {
	var hooks Hooks

	assert.NotPanics(t, func() {
		hooks.Run(context.Background())
	})
}
