package app_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"labelflow/internal/app"
	"labelflow/internal/config"
)

func TestWithRetry(t *testing.T) {
	t.Run("Succeeds First Try", func(t *testing.T) {
		calls := 0
		err := app.WithRetry(context.Background(), "step", 3, time.Millisecond, func(context.Context) error {
			calls++
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("Retries Until Success", func(t *testing.T) {
		calls := 0
		err := app.WithRetry(context.Background(), "step", 5, time.Millisecond, func(context.Context) error {
			calls++
			if calls <= 2 {
				return errors.New("not ready")
			}
			return nil
		})
		assert.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("Returns Last Error", func(t *testing.T) {
		calls := 0
		err := app.WithRetry(context.Background(), "step", 3, time.Millisecond, func(context.Context) error {
			calls++
			return errors.New("permanent error")
		})
		assert.EqualError(t, err, "permanent error")
		assert.Equal(t, 3, calls)
	})

	t.Run("Stops On Context Cancel", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := app.WithRetry(ctx, "step", 3, time.Hour, func(context.Context) error {
			return errors.New("not ready")
		})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestBootstrap_ConfigurationError(t *testing.T) {
	cfg := &config.Config{
		DBHost:                 "invalid-host",
		BootstrapRetryAttempts: 1,
	}
	deps, err := app.Bootstrap(context.Background(), cfg)
	assert.Error(t, err)
	assert.Nil(t, deps)
}
