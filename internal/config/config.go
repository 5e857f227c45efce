// Package config loads meshbus's runtime configuration from a YAML file and
// environment variables via viper, following the same profile/defaults/
// validate pattern used across the corvuslab Go services.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

var structValidator = validator.New()

// DeploymentProfile selects which ambient collaborators a hub process wires
// up at startup.
type DeploymentProfile string

const (
	// ProfileStandalone runs a single hub with no peer discovery and an
	// embedded sqlite audit sink. No external dependencies.
	ProfileStandalone DeploymentProfile = "standalone"

	// ProfileClustered runs a hub with a discovery backend (UDP broadcast
	// announcements or a Kubernetes Endpoints listing) and audits to Postgres
	// with a Redis-backed recent-event buffer. The daemon does not attach to
	// the peers it discovers.
	ProfileClustered DeploymentProfile = "clustered"
)

// Config is the root configuration for a meshbus hub process.
type Config struct {
	Profile   DeploymentProfile `mapstructure:"profile"`
	Hub       HubConfig         `mapstructure:"hub"`
	Audit     AuditConfig       `mapstructure:"audit"`
	Transport TransportConfig   `mapstructure:"transport"`
	Discovery DiscoveryConfig   `mapstructure:"discovery"`
	Dashboard DashboardConfig   `mapstructure:"dashboard"`
	Log       LogConfig         `mapstructure:"log"`
	Retry     RetryConfig       `mapstructure:"retry"`
	Metrics   MetricsConfig     `mapstructure:"metrics"`
}

// HubConfig identifies this process's hub and its place in the hierarchy.
type HubConfig struct {
	ID         string `mapstructure:"id"`
	Scope      string `mapstructure:"scope" validate:"required,oneof=thread process machine network"`
	ParentAddr string `mapstructure:"parent_addr"`
}

// AuditBackend selects the storage engine backing the audit trail.
type AuditBackend string

const (
	AuditBackendSQLite   AuditBackend = "sqlite"
	AuditBackendPostgres AuditBackend = "postgres"
)

// AuditConfig configures where resolved requests and published messages are
// recorded for replay and observability.
type AuditConfig struct {
	Backend          AuditBackend   `mapstructure:"backend" validate:"required,oneof=sqlite postgres"`
	SQLitePath       string         `mapstructure:"sqlite_path"`
	Postgres         DatabaseConfig `mapstructure:"postgres"`
	Redis            RedisConfig    `mapstructure:"redis"`
	RecentBufferSize int            `mapstructure:"recent_buffer_size" validate:"gte=0"`
	MigrationsDir    string         `mapstructure:"migrations_dir"`
}

// DatabaseConfig holds Postgres connection settings for AuditBackendPostgres.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxConnections  int32         `mapstructure:"max_connections" validate:"gte=0"`
	MinConnections  int32         `mapstructure:"min_connections" validate:"gte=0"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	URL             string        `mapstructure:"url"`
}

// RedisConfig holds connection settings for the recent-event ring buffer.
type RedisConfig struct {
	Addr            string        `mapstructure:"addr"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// TransportConfig configures the TLS peer-to-peer listener.
type TransportConfig struct {
	ListenAddr  string        `mapstructure:"listen_addr" validate:"required"`
	DialTimeout time.Duration `mapstructure:"dial_timeout" validate:"omitempty,gt=0"`
	TLS         TLSConfig     `mapstructure:"tls"`
}

// TLSConfig configures TLS for the daemon's transport listener. When Enabled
// is true, `meshbusd start` listens with CertFile/KeyFile; CAFile is not read
// and client certificates are not requested. When Enabled is false the
// listener runs over plain TCP — acceptable for loopback/test use only.
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
	CAFile   string `mapstructure:"ca_file"`
}

// DiscoveryBackend selects how a clustered hub finds its peers.
type DiscoveryBackend string

const (
	DiscoveryBackendNone DiscoveryBackend = "none"
	DiscoveryBackendUDP  DiscoveryBackend = "udp"
	DiscoveryBackendK8s  DiscoveryBackend = "k8s"
)

// DiscoveryConfig configures peer discovery.
type DiscoveryConfig struct {
	Backend DiscoveryBackend   `mapstructure:"backend" validate:"required,oneof=none udp k8s"`
	UDP     UDPDiscoveryConfig `mapstructure:"udp"`
	K8s     K8sDiscoveryConfig `mapstructure:"k8s"`
}

// UDPDiscoveryConfig configures the broadcast announcer/listener.
type UDPDiscoveryConfig struct {
	AnnounceInterval time.Duration `mapstructure:"announce_interval"`
}

// K8sDiscoveryConfig configures the Endpoints-based backend.
type K8sDiscoveryConfig struct {
	Namespace string        `mapstructure:"namespace"`
	Service   string        `mapstructure:"service"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// DashboardConfig configures the embedded monitoring dashboard.
type DashboardConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr"`
}

// LogConfig mirrors internal/logger.Config's shape for mapstructure binding.
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	Output     string `mapstructure:"output"`
	Filename   string `mapstructure:"filename"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// RetryConfig holds the same backoff tunables as internal/resilience.
// RetryPolicy, except Jitter: here it is a fraction, while RetryPolicy.Jitter
// only switches a fixed 10% jitter on or off.
type RetryConfig struct {
	MaxRetries int           `mapstructure:"max_retries"`
	BaseDelay  time.Duration `mapstructure:"base_delay"`
	MaxDelay   time.Duration `mapstructure:"max_delay"`
	Multiplier float64       `mapstructure:"multiplier"`
	Jitter     float64       `mapstructure:"jitter"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
	Port    int    `mapstructure:"port"`
}

// LoadConfig loads configuration from configPath (if non-empty and present)
// layered under defaults, with environment variables taking precedence over
// both. Environment variables use "_" in place of ".", e.g.
// MESHBUS_HUB_SCOPE=process.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("MESHBUS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// LoadConfigFromEnv loads configuration from defaults and environment
// variables only, skipping any file lookup.
func LoadConfigFromEnv() (*Config, error) {
	return LoadConfig("")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("profile", "standalone")

	v.SetDefault("hub.id", "")
	v.SetDefault("hub.scope", "process")
	v.SetDefault("hub.parent_addr", "")

	v.SetDefault("audit.backend", "sqlite")
	v.SetDefault("audit.sqlite_path", "/data/meshbus-audit.db")
	v.SetDefault("audit.recent_buffer_size", 256)
	v.SetDefault("audit.migrations_dir", "migrations")

	v.SetDefault("audit.postgres.host", "localhost")
	v.SetDefault("audit.postgres.port", 5432)
	v.SetDefault("audit.postgres.database", "meshbus")
	v.SetDefault("audit.postgres.username", "meshbus")
	v.SetDefault("audit.postgres.password", "meshbus")
	v.SetDefault("audit.postgres.ssl_mode", "disable")
	v.SetDefault("audit.postgres.max_connections", 25)
	v.SetDefault("audit.postgres.min_connections", 2)
	v.SetDefault("audit.postgres.max_conn_lifetime", "1h")
	v.SetDefault("audit.postgres.max_conn_idle_time", "30m")
	v.SetDefault("audit.postgres.connect_timeout", "10s")

	v.SetDefault("audit.redis.addr", "localhost:6379")
	v.SetDefault("audit.redis.db", 0)
	v.SetDefault("audit.redis.pool_size", 10)
	v.SetDefault("audit.redis.min_idle_conns", 2)
	v.SetDefault("audit.redis.dial_timeout", "5s")
	v.SetDefault("audit.redis.read_timeout", "3s")
	v.SetDefault("audit.redis.write_timeout", "3s")
	v.SetDefault("audit.redis.max_retries", 3)
	v.SetDefault("audit.redis.min_retry_backoff", "100ms")
	v.SetDefault("audit.redis.max_retry_backoff", "500ms")

	v.SetDefault("transport.listen_addr", "0.0.0.0:9443")
	v.SetDefault("transport.dial_timeout", "10s")
	v.SetDefault("transport.tls.enabled", false)

	v.SetDefault("discovery.backend", "none")
	v.SetDefault("discovery.udp.announce_interval", "5s")
	v.SetDefault("discovery.k8s.namespace", "default")
	v.SetDefault("discovery.k8s.timeout", "10s")

	v.SetDefault("dashboard.enabled", true)
	v.SetDefault("dashboard.addr", "0.0.0.0:8090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("retry.max_retries", 3)
	v.SetDefault("retry.base_delay", "100ms")
	v.SetDefault("retry.max_delay", "5s")
	v.SetDefault("retry.multiplier", 2.0)
	v.SetDefault("retry.jitter", 0.2)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.port", 9090)
}

// Validate checks the loaded configuration for internal consistency: struct
// tags first (field-level shape), then the profile's cross-field rules.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return fmt.Errorf("structural: %w", err)
	}

	if err := c.validateProfile(); err != nil {
		return fmt.Errorf("profile: %w", err)
	}

	if c.Discovery.Backend == DiscoveryBackendK8s && c.Discovery.K8s.Service == "" {
		return fmt.Errorf("discovery.k8s.service is required when discovery.backend=k8s")
	}

	return nil
}

func (c *Config) validateProfile() error {
	if c.Profile != ProfileStandalone && c.Profile != ProfileClustered {
		return fmt.Errorf("invalid deployment profile: %s (must be 'standalone' or 'clustered')", c.Profile)
	}

	switch c.Profile {
	case ProfileStandalone:
		if c.Audit.Backend != AuditBackendSQLite {
			return fmt.Errorf("standalone profile requires audit.backend='sqlite' (got %q)", c.Audit.Backend)
		}
		if c.Audit.SQLitePath == "" {
			return fmt.Errorf("standalone profile requires audit.sqlite_path")
		}
	case ProfileClustered:
		if c.Audit.Backend != AuditBackendPostgres {
			return fmt.Errorf("clustered profile requires audit.backend='postgres' (got %q)", c.Audit.Backend)
		}
		if c.Audit.Postgres.Host == "" {
			return fmt.Errorf("clustered profile requires audit.postgres.host")
		}
		if c.Discovery.Backend == DiscoveryBackendNone {
			return fmt.Errorf("clustered profile requires a discovery.backend (udp or k8s)")
		}
	}

	return nil
}

// AuditDSN constructs a Postgres connection string from the configuration,
// preferring an explicit URL when one is set.
func (c *Config) AuditDSN() string {
	if c.Audit.Postgres.URL != "" {
		return c.Audit.Postgres.URL
	}

	sslMode := c.Audit.Postgres.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Audit.Postgres.Username,
		c.Audit.Postgres.Password,
		c.Audit.Postgres.Host,
		c.Audit.Postgres.Port,
		c.Audit.Postgres.Database,
		sslMode,
	)
}

// IsStandalone reports whether this process runs without cluster peers.
func (c *Config) IsStandalone() bool {
	return c.Profile == ProfileStandalone
}

// IsClustered reports whether this process runs the clustered profile.
func (c *Config) IsClustered() bool {
	return c.Profile == ProfileClustered
}
