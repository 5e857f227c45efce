package dashboard

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorDeliversEventsToConnectedClient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := NewMonitor(nil)
	go m.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(m.ServeWS))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(20 * time.Millisecond) // let registration land before publishing
	m.Publish(Event{Type: "resolution", Path: "/x", Status: "success"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, "/x", got.Path)
	assert.Equal(t, "success", got.Status)
}

func TestMonitorPublishDropsWhenChannelFull(t *testing.T) {
	m := NewMonitor(nil)
	for i := 0; i < 256; i++ {
		m.Publish(Event{Path: "/fill"})
	}
	// The 257th publish must not block the test, regardless of whether it's
	// dropped; reaching this line proves Publish is non-blocking.
	m.Publish(Event{Path: "/overflow"})
}
