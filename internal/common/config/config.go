// Package config provides configuration management for Conductor.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for Conductor.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	NATS       NATSConfig       `mapstructure:"nats"`
	Events     EventsConfig     `mapstructure:"events"`
	Supervisor SupervisorConfig `mapstructure:"supervisor"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Tracing    TracingConfig    `mapstructure:"tracing"`
}

// ServerConfig holds the daemon's RPC transport configuration.
// Conductor serves its control plane over a Unix domain socket rather than
// a TCP listener; there is no remote, multi-tenant deployment mode.
type ServerConfig struct {
	SocketPath      string `mapstructure:"socketPath"`
	SocketPermMode  int    `mapstructure:"socketPermMode"` // e.g. 0600
	ShutdownGraceMS int    `mapstructure:"shutdownGraceMs"`
}

// ShutdownGrace returns the shutdown grace period as a time.Duration.
func (s *ServerConfig) ShutdownGrace() time.Duration {
	return time.Duration(s.ShutdownGraceMS) * time.Millisecond
}

// StoreConfig holds configuration for the on-disk workspace store (SQLite).
type StoreConfig struct {
	HomeDir           string `mapstructure:"homeDir"`           // default: $HOME/conductor
	DBPath            string `mapstructure:"dbPath"`            // override; default: <homeDir>/conductor.db
	BusyTimeoutMS     int    `mapstructure:"busyTimeoutMs"`      // default: 5000
	ReaderConnections int    `mapstructure:"readerConnections"`  // default: 4
}

// NATSConfig holds NATS messaging configuration. Conductor uses NATS only
// as an optional secondary event transport; an empty URL selects the
// in-memory bus and is the common case for a single-workstation daemon.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClusterID     string `mapstructure:"clusterId"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// EventsConfig holds event bus namespace configuration.
type EventsConfig struct {
	// Namespace isolates queue-group subscribers across deployments/instances.
	Namespace string `mapstructure:"namespace"`
}

// SupervisorConfig holds agent-process supervision configuration.
type SupervisorConfig struct {
	EnginesConfigPath   string `mapstructure:"enginesConfigPath"`   // path to engines.yaml override
	BroadcastBufferSize int    `mapstructure:"broadcastBufferSize"` // per-session event channel capacity
	DefaultEngine       string `mapstructure:"defaultEngine"`
	StopGraceMS         int    `mapstructure:"stopGraceMs"` // grace period before SIGKILL on Stop
}

// StopGrace returns the stop grace period as a time.Duration.
func (s *SupervisorConfig) StopGrace() time.Duration {
	return time.Duration(s.StopGraceMS) * time.Millisecond
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// TracingConfig holds OpenTelemetry tracing configuration. When Endpoint is
// empty, tracing is a soft no-op: spans are created against a no-op tracer
// provider and nothing is exported.
type TracingConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	ServiceName    string `mapstructure:"serviceName"`
	SampleRatio    float64 `mapstructure:"sampleRatio"`
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}
	if env := os.Getenv("CONDUCTOR_ENV"); env == "production" || env == "prod" {
		return "json"
	}
	return "text"
}

// defaultHomeDir returns $HOME/conductor, Conductor's default data
// directory.
func defaultHomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "conductor")
	}
	return "conductor"
}

// defaultSocketPath is fixed at /tmp/conductor-daemon.sock per spec.md §6,
// not os.TempDir() -- the socket location is a stable, well-known path
// every client on the box can find without reading conductord's config.
func defaultSocketPath() string {
	return "/tmp/conductor-daemon.sock"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.socketPath", defaultSocketPath())
	v.SetDefault("server.socketPermMode", 0600)
	v.SetDefault("server.shutdownGraceMs", 100)

	// Store defaults
	v.SetDefault("store.homeDir", defaultHomeDir())
	v.SetDefault("store.dbPath", "")
	v.SetDefault("store.busyTimeoutMs", 5000)
	v.SetDefault("store.readerConnections", 4)

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clusterId", "conductor-cluster")
	v.SetDefault("nats.clientId", "conductor-client")
	v.SetDefault("nats.maxReconnects", 10)

	// Events defaults
	v.SetDefault("events.namespace", "")

	// Supervisor defaults
	v.SetDefault("supervisor.enginesConfigPath", "")
	v.SetDefault("supervisor.broadcastBufferSize", 256)
	v.SetDefault("supervisor.defaultEngine", "claude")
	v.SetDefault("supervisor.stopGraceMs", 2000)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// Tracing defaults - empty endpoint disables exporting
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.serviceName", "conductor")
	v.SetDefault("tracing.sampleRatio", 1.0)
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix CONDUCTOR_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory,
// $CONDUCTOR_HOME/ (when set), $HOME/conductor/, or /etc/conductor/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("CONDUCTOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys).
	_ = v.BindEnv("store.homeDir", "CONDUCTOR_HOME")
	_ = v.BindEnv("server.socketPath", "CONDUCTOR_SOCKET_PATH")
	_ = v.BindEnv("logging.level", "CONDUCTOR_LOG_LEVEL")
	_ = v.BindEnv("events.namespace", "CONDUCTOR_EVENTS_NAMESPACE")
	_ = v.BindEnv("supervisor.enginesConfigPath", "CONDUCTOR_ENGINES_CONFIG")
	_ = v.BindEnv("tracing.endpoint", "CONDUCTOR_OTEL_ENDPOINT")

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	if h := os.Getenv("CONDUCTOR_HOME"); h != "" {
		v.AddConfigPath(h)
	}
	v.AddConfigPath(defaultHomeDir())
	v.AddConfigPath("/etc/conductor/")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if cfg.Store.DBPath == "" {
		cfg.Store.DBPath = filepath.Join(cfg.Store.HomeDir, "conductor.db")
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	if cfg.Server.SocketPath == "" {
		errs = append(errs, "server.socketPath must not be empty")
	}

	if cfg.Store.HomeDir == "" {
		errs = append(errs, "store.homeDir must not be empty")
	}
	if cfg.Store.BusyTimeoutMS <= 0 {
		errs = append(errs, "store.busyTimeoutMs must be positive")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true, "console": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text, console")
	}

	if cfg.Supervisor.BroadcastBufferSize <= 0 {
		errs = append(errs, "supervisor.broadcastBufferSize must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
