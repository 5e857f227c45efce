// Package audit records resolved requests and published messages for replay
// and observability, independent of the core hub.Hub resolution path. A Sink
// is a thin wrapper — none of the cascading resolver logic depends on it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/corvuslab/meshbus/internal/hub"
)

// EventKind distinguishes what operation produced an Event.
type EventKind string

const (
	EventResolution EventKind = "resolution"
	EventPublish    EventKind = "publish"
)

// Event is one recorded occurrence in a hub's audit trail.
type Event struct {
	ID        string    `json:"id"`
	HubID     string    `json:"hub_id"`
	Kind      EventKind `json:"kind"`
	Path      string    `json:"path"`
	Status    string    `json:"status"`
	Metadata  string    `json:"metadata"` // JSON-encoded hub.Metadata
	Timestamp time.Time `json:"timestamp"`
}

// Sink persists and retrieves audit events. Implementations must be safe for
// concurrent use.
type Sink interface {
	RecordResolution(ctx context.Context, hubID string, req hub.Request, resp hub.Response) error
	RecordPublish(ctx context.Context, hubID string, msg hub.Message, result hub.PublishResult) error
	Recent(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

func encodeMetadata(m hub.Metadata) string {
	if len(m) == 0 {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func resolutionEvent(hubID string, req hub.Request, resp hub.Response) Event {
	return Event{
		HubID:     hubID,
		Kind:      EventResolution,
		Path:      req.Path,
		Status:    resp.Status.String(),
		Metadata:  encodeMetadata(resp.Metadata),
		Timestamp: time.Now(),
	}
}

func publishEvent(hubID string, msg hub.Message, result hub.PublishResult) Event {
	status := "delivered"
	switch {
	case result.Intercepted:
		status = "intercepted"
	case result.Escalated:
		status = "escalated"
	case result.Delivered == 0:
		status = "undelivered"
	}
	return Event{
		HubID:     hubID,
		Kind:      EventPublish,
		Path:      msg.Topic,
		Status:    status,
		Metadata:  encodeMetadata(msg.Metadata),
		Timestamp: time.Now(),
	}
}
