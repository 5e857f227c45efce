package hub

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/corvuslab/meshbus/internal/metrics"
)

// Hub is one node of the hierarchy: a scope-tagged bus that owns a path
// registry, an interceptor manager, a subscription table, and an optional
// link to a parent hub of strictly greater scope.
type Hub struct {
	id    string
	scope Scope

	registry      *Registry
	interceptors  *InterceptorManager
	subscriptions *table[subscription]

	hier hierarchy

	logger  *slog.Logger
	metrics *metrics.HubMetrics
}

// Option configures a Hub at construction time.
type Option func(*Hub)

// WithLogger overrides the hub's default logger (slog.Default()).
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hub) { h.logger = logger }
}

// WithID overrides the hub's generated identifier. Mostly useful in tests
// that need a stable, human-readable hub name.
func WithID(id string) Option {
	return func(h *Hub) { h.id = id }
}

// WithMetrics attaches a HubMetrics collector; Handle and Publish report
// into it when set. Hubs built without this option carry no metrics
// overhead.
func WithMetrics(m *metrics.HubMetrics) Option {
	return func(h *Hub) { h.metrics = m }
}

// New creates a root hub of the given scope. Use AttachParent to wire it
// into a larger hierarchy afterward.
func New(scope Scope, opts ...Option) *Hub {
	h := &Hub{
		id:            uuid.NewString(),
		scope:         scope,
		interceptors:  NewInterceptorManager(),
		subscriptions: newTable[subscription](),
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	h.registry = NewRegistry(h.logger)
	return h
}

// ID returns the hub's unique identifier.
func (h *Hub) ID() string { return h.id }

// Scope returns the hub's scope level.
func (h *Hub) Scope() Scope { return h.scope }

// Register adds path to this hub's registry, replacing any prior entry at
// the same path. metadata["fallback"], if present, names an alias target
// consulted by the resolver's AliasFallback step.
func (h *Hub) Register(path string, handler Handler, metadata Metadata) error {
	if path == "" {
		return ErrEmptyPath
	}
	h.registry.Register(path, handler, metadata)
	return nil
}

// Unregister removes path from this hub's registry, if present.
func (h *Hub) Unregister(path string) {
	h.registry.Unregister(path)
}

// RegisterInterceptor adds a request-path interceptor and returns an id for
// later removal with UnregisterInterceptor.
func (h *Hub) RegisterInterceptor(pattern string, priority int, interceptor RequestInterceptor) string {
	return h.interceptors.RegisterRequest(pattern, priority, interceptor)
}

// UnregisterInterceptor removes a previously registered request interceptor.
func (h *Hub) UnregisterInterceptor(id string) bool {
	return h.interceptors.UnregisterRequest(id)
}

// RegisterTopicInterceptor adds a topic interceptor and returns an id for
// later removal.
func (h *Hub) RegisterTopicInterceptor(pattern string, priority int, interceptor TopicInterceptor) string {
	return h.interceptors.RegisterTopic(pattern, priority, interceptor)
}

// UnregisterTopicInterceptor removes a previously registered topic interceptor.
func (h *Hub) UnregisterTopicInterceptor(id string) bool {
	return h.interceptors.UnregisterTopic(id)
}

// RegisterMethodInterceptor adds an in-process method-call interceptor,
// keyed by typeTag and methodName.
func (h *Hub) RegisterMethodInterceptor(typeTag, methodName string, priority int, interceptor MethodInterceptor) string {
	return h.interceptors.RegisterMethod(typeTag, methodName, priority, interceptor)
}

// UnregisterMethodInterceptor removes a previously registered method interceptor.
func (h *Hub) UnregisterMethodInterceptor(id string) bool {
	return h.interceptors.UnregisterMethod(id)
}

// InterceptMethod runs the method-call interceptor chain for an in-process
// call, without touching the request/pub-sub resolver paths at all.
func (h *Hub) InterceptMethod(typeTag, methodName string, target, args any) (any, bool) {
	return h.interceptors.InterceptMethod(typeTag, methodName, target, args)
}
