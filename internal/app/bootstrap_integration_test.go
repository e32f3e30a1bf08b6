package app_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flowkit/internal/app"
	"flowkit/internal/testutils"
)

func TestBootstrap_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	suite := testutils.NewIntegrationSuite(t)
	suite.StartPostgres()
	suite.StartNSQ()
	defer suite.Teardown()

	deps, err := app.Bootstrap(context.Background(), suite.AppConfig())
	require.NoError(t, err)
	defer deps.Close()
	assert.NotNil(t, deps.DB)

	var exists bool
	err = deps.DB.QueryRow("SELECT EXISTS (SELECT FROM information_schema.tables WHERE table_name = 'messages')").Scan(&exists)
	require.NoError(t, err)
	assert.True(t, exists, "messages table should exist")

	err = deps.NSQProducer.Ping()
	assert.NoError(t, err)
}
