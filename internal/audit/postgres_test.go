package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/corvuslab/meshbus/internal/hub"
)

// setupTestPostgresSink starts a throwaway Postgres container, runs
// migrations against it, and returns a connected PostgresSink.
func setupTestPostgresSink(t *testing.T) *PostgresSink {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("meshbus_test"),
		postgres.WithUsername("meshbus"),
		postgres.WithPassword("meshbus"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(15*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sink, err := NewPostgresSink(ctx, dsn, "migrations", nil)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestPostgresSinkRecordsAndListsEvents(t *testing.T) {
	sink := setupTestPostgresSink(t)
	ctx := context.Background()

	req := hub.Request{Path: "/orders/42"}
	resp := hub.Response{Status: hub.StatusSuccess, Metadata: hub.Metadata{"region": "us"}}
	require.NoError(t, sink.RecordResolution(ctx, "hub-standard", req, resp))

	events, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hub-standard", events[0].HubID)
	assert.Equal(t, "/orders/42", events[0].Path)
	assert.Equal(t, "success", events[0].Status)
}
