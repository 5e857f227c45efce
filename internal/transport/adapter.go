package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/corvuslab/meshbus/internal/hub"
	"github.com/corvuslab/meshbus/internal/resilience"
)

// Peer is one bidirectional, single-stream connection to another hub
// process. At most one request is ever in flight: Call blocks subsequent
// callers until the prior response (or error) arrives, per §6's "at most
// one in-flight request per connection" contract — an implementation is
// free to multiplex, but this adapter does not.
type Peer struct {
	conn       net.Conn
	reader     *bufio.Reader
	serializer Serializer
	logger     *slog.Logger

	mu sync.Mutex
}

// DialConfig configures Dial.
type DialConfig struct {
	Address    string
	TLSConfig  *tls.Config // nil dials a plain TCP connection.
	Serializer Serializer  // nil defaults to JSONSerializer.
	Logger     *slog.Logger
	Retry      *resilience.RetryPolicy // nil uses resilience.DefaultRetryPolicy.
}

// Dial connects to a peer hub process, retrying transient failures under
// cfg.Retry.
func Dial(ctx context.Context, cfg DialConfig) (*Peer, error) {
	serializer := cfg.Serializer
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	retry := cfg.Retry
	if retry == nil {
		retry = resilience.DefaultRetryPolicy()
	}
	retry.OperationName = "transport_dial"
	retry.Logger = logger

	conn, err := resilience.WithRetryFunc(ctx, retry, func() (net.Conn, error) {
		dialer := net.Dialer{}
		if cfg.TLSConfig != nil {
			return tls.DialWithDialer(&dialer, "tcp", cfg.Address, cfg.TLSConfig)
		}
		return dialer.DialContext(ctx, "tcp", cfg.Address)
	})
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", cfg.Address, err)
	}

	return &Peer{
		conn:       conn,
		reader:     bufio.NewReader(conn),
		serializer: serializer,
		logger:     logger,
	}, nil
}

// Close closes the underlying connection.
func (p *Peer) Close() error {
	return p.conn.Close()
}

// Call sends req as a request frame and blocks for the matching response
// frame. Only one Call may be in flight at a time on a given Peer.
func (p *Peer) Call(ctx context.Context, req hub.Request) (hub.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetDeadline(deadline)
		defer p.conn.SetDeadline(time.Time{})
	}

	payload, err := p.serializer.EncodeRequest(req)
	if err != nil {
		return hub.Response{}, fmt.Errorf("transport: encode request: %w", err)
	}
	if err := WriteFrame(p.conn, Frame{Type: FrameRequest, Payload: payload}); err != nil {
		return hub.Response{}, err
	}

	frame, err := ReadFrame(p.reader)
	if err != nil {
		return hub.Response{}, fmt.Errorf("transport: read response: %w", err)
	}
	if frame.Type != FrameResponse {
		return hub.Response{}, fmt.Errorf("transport: expected response frame, got type %d", frame.Type)
	}
	return p.serializer.DecodeResponse(frame.Payload)
}

// PublishRemote forwards msg to the peer as a fire-and-forget published-message
// frame; it does not wait for any acknowledgement.
func (p *Peer) PublishRemote(msg hub.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	payload, err := p.serializer.EncodeMessage(msg)
	if err != nil {
		return fmt.Errorf("transport: encode message: %w", err)
	}
	return WriteFrame(p.conn, Frame{Type: FramePublishedMsg, Payload: payload})
}

// Heartbeat sends a heartbeat request and waits for the peer's ack, bounding
// its wait by ctx.
func (p *Peer) Heartbeat(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if deadline, ok := ctx.Deadline(); ok {
		_ = p.conn.SetDeadline(deadline)
		defer p.conn.SetDeadline(time.Time{})
	}

	if err := WriteFrame(p.conn, Frame{Type: FrameHeartbeatReq}); err != nil {
		return err
	}
	frame, err := ReadFrame(p.reader)
	if err != nil {
		return fmt.Errorf("transport: read heartbeat ack: %w", err)
	}
	if frame.Type != FrameHeartbeatAck {
		return fmt.Errorf("transport: expected heartbeat ack, got type %d", frame.Type)
	}
	return nil
}

// ServeConn is the server-side counterpart of Call/Heartbeat: it reads
// frames from conn in a loop, dispatching requests to h and replying to
// heartbeats, until the connection closes or ctx is cancelled. Published-
// message frames are handed to onMessage, if set.
func ServeConn(ctx context.Context, conn net.Conn, h *hub.Hub, serializer Serializer, onMessage func(hub.Message)) error {
	if serializer == nil {
		serializer = JSONSerializer{}
	}
	reader := bufio.NewReader(conn)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := ReadFrame(reader)
		if err != nil {
			return err
		}

		switch frame.Type {
		case FrameRequest:
			req, err := serializer.DecodeRequest(frame.Payload)
			if err != nil {
				return err
			}
			resp := h.Handle(req)
			payload, err := serializer.EncodeResponse(resp)
			if err != nil {
				return err
			}
			if err := WriteFrame(conn, Frame{Type: FrameResponse, Payload: payload}); err != nil {
				return err
			}
		case FramePublishedMsg:
			if onMessage != nil {
				msg, err := serializer.DecodeMessage(frame.Payload)
				if err != nil {
					return err
				}
				onMessage(msg)
			}
		case FrameHeartbeatReq:
			if err := WriteFrame(conn, Frame{Type: FrameHeartbeatAck}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("transport: unknown frame type %d", frame.Type)
		}
	}
}
