// Package meshbus is the public embedding surface for the hierarchical
// service bus: the core of what internal/hub, internal/transport and
// internal/discovery expose for building a request/response and pub-sub
// mesh into another Go program, re-exported from one stable import path.
// Not every exported identifier is re-exported: the hub's error values and
// WithMetrics, the transport's JSONSerializer and frame codec, and the UDP
// listener are only reachable through the internal packages.
//
// Callers that only need to embed a hub in-process (no CLI, no dashboard,
// no audit trail) should depend on this package rather than reaching into
// internal/hub directly.
package meshbus

import (
	"context"
	"net"

	"github.com/corvuslab/meshbus/internal/discovery"
	"github.com/corvuslab/meshbus/internal/hub"
	"github.com/corvuslab/meshbus/internal/transport"
)

// Scope levels, strictly ordered Thread < Process < Machine < Network.
type Scope = hub.Scope

const (
	ScopeThread  = hub.ScopeThread
	ScopeProcess = hub.ScopeProcess
	ScopeMachine = hub.ScopeMachine
	ScopeNetwork = hub.ScopeNetwork
)

// ParseScope parses a scope name ("thread", "process", "machine", "network").
func ParseScope(name string) (Scope, error) { return hub.ParseScope(name) }

type (
	// Hub is one node of the hierarchy.
	Hub = hub.Hub
	// Option configures a Hub at construction time.
	Option = hub.Option
	// Handler answers a request registered at a path.
	Handler = hub.Handler
	// RequestInterceptor, TopicInterceptor and MethodInterceptor preempt
	// resolution before it reaches the registry, pub-sub delivery, or an
	// in-process method call, respectively.
	RequestInterceptor = hub.RequestInterceptor
	TopicInterceptor   = hub.TopicInterceptor
	MethodInterceptor  = hub.MethodInterceptor
	// SubscriptionHandler receives messages delivered by Publish.
	SubscriptionHandler = hub.SubscriptionHandler
	// Metadata is the free-form string map carried by requests, responses
	// and messages.
	Metadata = hub.Metadata
	// Payload is the opaque value carried across the bus.
	Payload = hub.Payload
	// Request, Response and Message are the three wire-level shapes the
	// bus moves: a call, its answer, and a pub-sub publication.
	Request  = hub.Request
	Response = hub.Response
	Message  = hub.Message
	// Status is the outcome of a resolved request.
	Status = hub.Status
	// PublishResult reports how a Publish call was handled.
	PublishResult = hub.PublishResult
	// InterceptResult is returned by a RequestInterceptor.
	InterceptResult = hub.InterceptResult
)

// WithLogger and WithID configure a Hub at construction time; see New.
var (
	WithLogger = hub.WithLogger
	WithID     = hub.WithID
)

// New creates a root hub of the given scope. Use (*Hub).AttachParent to
// wire it into a larger hierarchy afterward.
func New(scope Scope, opts ...Option) *Hub {
	return hub.New(scope, opts...)
}

// Peer is one connection to another hub process over the wire transport.
type Peer = transport.Peer

// DialConfig configures Dial.
type DialConfig = transport.DialConfig

// Dial connects to a peer hub process.
func Dial(ctx context.Context, cfg DialConfig) (*Peer, error) {
	return transport.Dial(ctx, cfg)
}

// ServeConn serves one incoming peer connection against h until it closes
// or ctx is cancelled.
func ServeConn(ctx context.Context, conn net.Conn, h *Hub, serializer transport.Serializer, onMessage func(Message)) error {
	return transport.ServeConn(ctx, conn, h, serializer, onMessage)
}

// Peer discovery types and constructors, re-exported for callers that want
// to announce or enumerate hubs without importing internal/discovery.
type (
	DiscoveryPeer    = discovery.Peer
	K8sBackendConfig = discovery.K8sBackendConfig
)

// NewUDPAnnouncer and NewK8sBackend build the UDP broadcast announcer and
// the Kubernetes Endpoints backend.
var (
	NewUDPAnnouncer = discovery.NewUDPAnnouncer
	NewK8sBackend   = discovery.NewK8sBackend
)
