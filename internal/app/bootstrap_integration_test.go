package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"labelflow/internal/app"
	"labelflow/internal/testutils"
)

func TestBootstrap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.Setup()
	defer suite.Teardown()

	cfg := suite.GetAppConfig()

	deps, err := app.Bootstrap(context.Background(), cfg)
	require.NoError(t, err)
	defer deps.Close()

	for _, table := range []string{"settings", "templates", "workers", "tasks", "failed_jobs"} {
		var exists bool
		err = deps.DB.QueryRow("SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = $1)", table).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "%s table should exist", table)
	}

	assert.NoError(t, deps.Redis.Ping(context.Background()).Err())
	assert.NoError(t, deps.NSQProducer.Ping())
}
