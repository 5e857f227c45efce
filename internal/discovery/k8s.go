package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"

	"github.com/corvuslab/meshbus/internal/hub"
)

// ScopeLabel is the pod label name for annotating a hub's own Scope.
// K8sBackend does not read it: every peer it lists has Scope ScopeMachine.
const ScopeLabel = "meshbus.corvuslab.io/scope"

// K8sBackend discovers peer hubs via a Kubernetes Endpoints object, as an
// alternative to UDP broadcast for clusters where broadcast traffic is
// blocked or unreliable.
type K8sBackend struct {
	clientset kubernetes.Interface
	namespace string
	service   string
	logger    *slog.Logger
}

// K8sBackendConfig configures NewK8sBackend.
type K8sBackendConfig struct {
	Namespace string
	Service   string
	Timeout   time.Duration
	Logger    *slog.Logger
}

// NewK8sBackend builds a backend using in-cluster configuration.
func NewK8sBackend(cfg K8sBackendConfig) (*K8sBackend, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	restConfig, err := rest.InClusterConfig()
	if err != nil {
		return nil, fmt.Errorf("discovery: load in-cluster config: %w", err)
	}
	restConfig.Timeout = cfg.Timeout

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("discovery: build k8s clientset: %w", err)
	}

	return &K8sBackend{
		clientset: clientset,
		namespace: cfg.Namespace,
		service:   cfg.Service,
		logger:    cfg.Logger,
	}, nil
}

// ListPeers resolves the service's current Endpoints into a Peer per ready
// address. Every returned Peer has Scope ScopeMachine; no label is consulted.
func (b *K8sBackend) ListPeers(ctx context.Context) ([]Peer, error) {
	endpoints, err := b.clientset.CoreV1().Endpoints(b.namespace).Get(ctx, b.service, metav1.GetOptions{})
	if err != nil {
		return nil, fmt.Errorf("discovery: get endpoints %s/%s: %w", b.namespace, b.service, err)
	}

	var peers []Peer
	for _, subset := range endpoints.Subsets {
		port := 0
		for _, p := range subset.Ports {
			port = int(p.Port)
			break
		}
		for _, addr := range subset.Addresses {
			peers = append(peers, Peer{
				ID:    endpointTargetID(addr),
				Addr:  fmt.Sprintf("%s:%d", addr.IP, port),
				Scope: hubScopeFromAddress(addr),
			})
		}
	}

	b.logger.Debug("discovery: listed k8s peers", "service", b.service, "count", len(peers))
	return peers, nil
}

func endpointTargetID(addr corev1.EndpointAddress) string {
	if addr.TargetRef != nil {
		return addr.TargetRef.Name
	}
	return addr.IP
}

// hubScopeFromAddress defaults every discovered peer to ScopeMachine:
// Endpoints addresses don't carry arbitrary pod labels directly, and
// resolving ScopeLabel would mean a second Pod lookup per address, which
// this backend does not make.
func hubScopeFromAddress(addr corev1.EndpointAddress) hub.Scope {
	return hub.ScopeMachine
}
