package main

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/corvuslab/meshbus/internal/audit"
	"github.com/corvuslab/meshbus/internal/config"
	"github.com/corvuslab/meshbus/internal/dashboard"
	"github.com/corvuslab/meshbus/internal/discovery"
	"github.com/corvuslab/meshbus/internal/hub"
	"github.com/corvuslab/meshbus/internal/logger"
	"github.com/corvuslab/meshbus/internal/metrics"
	"github.com/corvuslab/meshbus/internal/transport"
)

func startCommand() *cobra.Command {
	var configPath, scopeOverride string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a hub process",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if scopeOverride != "" {
				cfg.Hub.Scope = scopeOverride
			}
			return runHub(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&scopeOverride, "scope", "", "override hub.scope: thread|process|machine|network")
	return cmd
}

func runHub(ctx context.Context, cfg *config.Config) error {
	log := logger.NewLogger(logger.Config(cfg.Log))

	scope, err := hub.ParseScope(cfg.Hub.Scope)
	if err != nil {
		return err
	}
	opts := []hub.Option{hub.WithLogger(log)}
	if cfg.Hub.ID != "" {
		opts = append(opts, hub.WithID(cfg.Hub.ID))
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, hub.WithMetrics(metrics.NewHubMetrics()))
	}
	h := hub.New(scope, opts...)

	sink, err := buildAuditSink(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer sink.Close()

	monitor := dashboard.NewMonitor(log)

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go monitor.Run(ctx)
	go serveTransport(ctx, h, cfg, log)
	go serveDashboard(ctx, h, monitor, sink, cfg, log)
	go runDiscovery(ctx, h, cfg, log)

	log.Info("meshbusd started", "hub_id", h.ID(), "scope", h.Scope().String(), "profile", cfg.Profile)
	<-ctx.Done()
	log.Info("meshbusd shutting down")
	return nil
}

func buildAuditSink(ctx context.Context, cfg *config.Config, log *slog.Logger) (audit.Sink, error) {
	switch cfg.Audit.Backend {
	case config.AuditBackendPostgres:
		sink, err := audit.NewPostgresSink(ctx, cfg.AuditDSN(), cfg.Audit.MigrationsDir, nil)
		if err != nil {
			return nil, err
		}
		if cfg.Audit.Redis.Addr != "" {
			buffered, err := audit.NewRedisRecentBuffer(ctx, sink, audit.RedisRecentBufferConfig{
				Addr:            cfg.Audit.Redis.Addr,
				Password:        cfg.Audit.Redis.Password,
				DB:              cfg.Audit.Redis.DB,
				PoolSize:        cfg.Audit.Redis.PoolSize,
				MinIdleConns:    cfg.Audit.Redis.MinIdleConns,
				DialTimeout:     cfg.Audit.Redis.DialTimeout,
				ReadTimeout:     cfg.Audit.Redis.ReadTimeout,
				WriteTimeout:    cfg.Audit.Redis.WriteTimeout,
				MaxRetries:      cfg.Audit.Redis.MaxRetries,
				MinRetryBackoff: cfg.Audit.Redis.MinRetryBackoff,
				MaxRetryBackoff: cfg.Audit.Redis.MaxRetryBackoff,
				Capacity:        int64(cfg.Audit.RecentBufferSize),
			}, nil)
			if err != nil {
				log.Warn("audit: redis recent buffer unavailable, using postgres directly", "error", err)
				return sink, nil
			}
			return buffered, nil
		}
		return sink, nil
	default:
		return audit.NewSQLiteSink(ctx, cfg.Audit.SQLitePath, nil)
	}
}

func serveTransport(ctx context.Context, h *hub.Hub, cfg *config.Config, log *slog.Logger) {
	var listener net.Listener
	var err error

	if cfg.Transport.TLS.Enabled {
		cert, cerr := tls.LoadX509KeyPair(cfg.Transport.TLS.CertFile, cfg.Transport.TLS.KeyFile)
		if cerr != nil {
			log.Error("transport: failed to load TLS material", "error", cerr)
			return
		}
		listener, err = tls.Listen("tcp", cfg.Transport.ListenAddr, &tls.Config{Certificates: []tls.Certificate{cert}})
	} else {
		listener, err = net.Listen("tcp", cfg.Transport.ListenAddr)
	}
	if err != nil {
		log.Error("transport: failed to listen", "error", err, "addr", cfg.Transport.ListenAddr)
		return
	}
	defer listener.Close()

	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	log.Info("transport: listening", "addr", cfg.Transport.ListenAddr)
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Warn("transport: accept failed", "error", err)
			continue
		}
		go func() {
			defer conn.Close()
			if err := transport.ServeConn(ctx, conn, h, nil, func(msg hub.Message) { h.Publish(msg) }); err != nil {
				log.Debug("transport: connection closed", "error", err)
			}
		}()
	}
}

func serveDashboard(ctx context.Context, h *hub.Hub, monitor *dashboard.Monitor, sink audit.Sink, cfg *config.Config, log *slog.Logger) {
	if !cfg.Dashboard.Enabled {
		return
	}
	router := dashboard.Router(h, monitor, sink, log, dashboard.WithMetrics(cfg.Metrics.Enabled, cfg.Metrics.Path))
	server := &http.Server{Addr: cfg.Dashboard.Addr, Handler: router}

	go func() {
		<-ctx.Done()
		server.Close()
	}()

	log.Info("dashboard: listening", "addr", cfg.Dashboard.Addr)
	if err := server.ListenAndServe(); err != nil && ctx.Err() == nil {
		log.Warn("dashboard: server exited", "error", err)
	}
}

func runDiscovery(ctx context.Context, h *hub.Hub, cfg *config.Config, log *slog.Logger) {
	switch cfg.Discovery.Backend {
	case config.DiscoveryBackendUDP:
		self := discovery.Peer{ID: h.ID(), Addr: cfg.Transport.ListenAddr, Scope: h.Scope()}
		announcer := discovery.NewUDPAnnouncer(self, cfg.Discovery.UDP.AnnounceInterval, log)
		if err := announcer.Run(ctx); err != nil && ctx.Err() == nil {
			log.Warn("discovery: udp announcer stopped", "error", err)
		}
	case config.DiscoveryBackendK8s:
		backend, err := discovery.NewK8sBackend(discovery.K8sBackendConfig{
			Namespace: cfg.Discovery.K8s.Namespace,
			Service:   cfg.Discovery.K8s.Service,
			Timeout:   cfg.Discovery.K8s.Timeout,
			Logger:    log,
		})
		if err != nil {
			log.Warn("discovery: k8s backend unavailable", "error", err)
			return
		}
		peers, err := backend.ListPeers(ctx)
		if err != nil {
			log.Warn("discovery: failed to list k8s peers", "error", err)
			return
		}
		log.Info("discovery: listed k8s peers", "count", len(peers))
	}
}
