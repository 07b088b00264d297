package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_registered_action_is_invoked_with_params_and_token(t *testing.T) {
	// setup
	registry := NewRegistry()
	registry.Register("ship-order", func(ctx context.Context, params any, accessToken string) (any, error) {
		assert.Equal(t, map[string]any{"carrier": "fast"}, params)
		assert.Equal(t, "svc-token", accessToken)
		return "tracked", nil
	})

	// when
	result, err := registry.Invoke(context.Background(), "ship-order", map[string]any{"carrier": "fast"}, "svc-token")

	// then
	require.NoError(t, err)
	assert.Equal(t, "tracked", result)
}

func Test_unknown_action_is_an_error(t *testing.T) {
	registry := NewRegistry()

	_, err := registry.Invoke(context.Background(), "nope", nil, "svc-token")

	assert.Error(t, err)
}

func Test_action_failure_propagates(t *testing.T) {
	// setup
	registry := NewRegistry()
	boom := errors.New("carrier unreachable")
	registry.Register("ship-order", func(ctx context.Context, params any, accessToken string) (any, error) {
		return nil, boom
	})

	// when
	_, err := registry.Invoke(context.Background(), "ship-order", nil, "svc-token")

	// then
	assert.ErrorIs(t, err, boom)
}
