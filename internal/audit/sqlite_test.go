package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvuslab/meshbus/internal/hub"
)

func newTestSQLiteSink(t *testing.T) *SQLiteSink {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	sink, err := NewSQLiteSink(context.Background(), path, nil)
	require.NoError(t, err)
	t.Cleanup(func() { sink.Close() })
	return sink
}

func TestSQLiteSinkRecordsAndListsResolutions(t *testing.T) {
	sink := newTestSQLiteSink(t)
	ctx := context.Background()

	req := hub.Request{Path: "/widgets/1"}
	resp := hub.Response{Status: hub.StatusSuccess, Metadata: hub.Metadata{"x": "y"}}

	require.NoError(t, sink.RecordResolution(ctx, "hub-a", req, resp))

	events, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "hub-a", events[0].HubID)
	assert.Equal(t, EventResolution, events[0].Kind)
	assert.Equal(t, "/widgets/1", events[0].Path)
	assert.Equal(t, "success", events[0].Status)
}

func TestSQLiteSinkRecordsPublishes(t *testing.T) {
	sink := newTestSQLiteSink(t)
	ctx := context.Background()

	msg := hub.Message{Topic: "alerts.fired"}
	result := hub.PublishResult{Delivered: 2}

	require.NoError(t, sink.RecordPublish(ctx, "hub-a", msg, result))

	events, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventPublish, events[0].Kind)
	assert.Equal(t, "delivered", events[0].Status)
}

func TestSQLiteSinkRecentRespectsLimit(t *testing.T) {
	sink := newTestSQLiteSink(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, sink.RecordResolution(ctx, "hub-a", hub.Request{Path: "/x"}, hub.Response{Status: hub.StatusSuccess}))
	}

	events, err := sink.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}
