// Package dashboard implements the embedded monitoring dashboard named as a
// thin external collaborator: a REST surface over a hub's identity,
// hierarchy and audit trail, plus a live WebSocket feed of resolutions and publishes. None of
// the resolution/pub-sub logic lives here — this package only observes it.
package dashboard

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Event is one item on the dashboard's live feed.
type Event struct {
	Type      string            `json:"type"` // "resolution" or "publish"
	Path      string            `json:"path"`
	Status    string            `json:"status"`
	HubID     string            `json:"hub_id"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Monitor fans Event values out to every connected WebSocket client.
type Monitor struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewMonitor builds a Monitor. Call Run in a goroutine before accepting
// connections.
func NewMonitor(logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Monitor{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		logger:     logger,
	}
}

// Run pumps register/unregister/broadcast events until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case conn := <-m.register:
			m.mu.Lock()
			m.clients[conn] = true
			m.mu.Unlock()
		case conn := <-m.unregister:
			m.mu.Lock()
			if _, ok := m.clients[conn]; ok {
				delete(m.clients, conn)
				conn.Close()
			}
			m.mu.Unlock()
		case event := <-m.broadcast:
			m.mu.RLock()
			for conn := range m.clients {
				go m.send(conn, event)
			}
			m.mu.RUnlock()
		}
	}
}

func (m *Monitor) send(conn *websocket.Conn, event Event) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if err := conn.WriteJSON(event); err != nil {
		m.logger.Warn("dashboard: failed to push event to client", "error", err)
		m.unregister <- conn
	}
}

func (m *Monitor) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for conn := range m.clients {
		conn.Close()
		delete(m.clients, conn)
	}
}

// Publish queues event for delivery to connected clients, dropping it if the
// broadcast channel is saturated rather than blocking the caller.
func (m *Monitor) Publish(event Event) {
	select {
	case m.broadcast <- event:
	default:
		m.logger.Warn("dashboard: broadcast channel full, dropping event", "type", event.Type)
	}
}

// ServeWS upgrades r to a WebSocket and streams Monitor events to it until
// the client disconnects.
func (m *Monitor) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		m.logger.Error("dashboard: websocket upgrade failed", "error", err)
		return
	}
	m.register <- conn
	go m.readPump(conn)
}

func (m *Monitor) readPump(conn *websocket.Conn) {
	defer func() { m.unregister <- conn }()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(50 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
			}
		}
	}()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
