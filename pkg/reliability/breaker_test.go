package reliability_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbelfort/falcon-ai-sub003/pkg/reliability"
	falconerrors "github.com/tbelfort/falcon-ai-sub003/pkg/shared/errors"
)

func TestBreaker_TripsAfterConsecutiveFailures(t *testing.T) {
	cfg := reliability.DefaultBreakerConfig("test-circuit")
	cfg.ConsecutiveTrips = 2
	b := reliability.NewBreaker(cfg)

	boom := errors.New("boom")
	failing := func(context.Context) (interface{}, error) { return nil, boom }

	_, err := b.Execute(context.Background(), failing)
	require.ErrorIs(t, err, boom)
	_, err = b.Execute(context.Background(), failing)
	require.ErrorIs(t, err, boom)

	_, err = b.Execute(context.Background(), func(context.Context) (interface{}, error) {
		t.Fatal("breaker should be open and must not invoke fn")
		return nil, nil
	})
	require.Error(t, err)
	assert.True(t, falconerrors.Is(err, falconerrors.KindTimeout))
}

func TestBreaker_StaysClosedOnSuccess(t *testing.T) {
	b := reliability.NewBreaker(reliability.DefaultBreakerConfig("healthy-circuit"))

	result, err := b.Execute(context.Background(), func(context.Context) (interface{}, error) {
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
}

func TestWithFallback_UsesPrimaryOnSuccess(t *testing.T) {
	primary := func(context.Context) (string, error) { return "primary", nil }
	fallback := func(context.Context) (string, error) {
		t.Fatal("fallback must not run when primary succeeds")
		return "", nil
	}

	got, err := reliability.WithFallback(context.Background(), primary, fallback)
	require.NoError(t, err)
	assert.Equal(t, "primary", got)
}

func TestWithFallback_UsesFallbackOnPrimaryError(t *testing.T) {
	primary := func(context.Context) (string, error) { return "", errors.New("primary down") }
	fallback := func(context.Context) (string, error) { return "fallback", nil }

	got, err := reliability.WithFallback(context.Background(), primary, fallback)
	require.NoError(t, err)
	assert.Equal(t, "fallback", got)
}

func TestWithFallback_PropagatesFallbackError(t *testing.T) {
	boom := errors.New("both down")
	primary := func(context.Context) (string, error) { return "", errors.New("primary down") }
	fallback := func(context.Context) (string, error) { return "", boom }

	_, err := reliability.WithFallback(context.Background(), primary, fallback)
	require.ErrorIs(t, err, boom)
}
