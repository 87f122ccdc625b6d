// Package config resolves the server's immutable runtime configuration from
// environment variables.
//
// Configuration is read exactly once at process start and never mutated
// afterwards: every component receives the same Config value for the lifetime
// of the process.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultBindAddress          = "0.0.0.0"
	DefaultPort                 = 8080
	DefaultWorkerThreads        = 8
	DefaultShutdownGraceSeconds = 30
)

// Config is the immutable runtime configuration of the server process.
type Config struct {
	ServiceName string `env:"SERVICE_NAME" validate:"required"`
	Version     string `env:"VERSION"`
	EnvName     string `env:"ENV_NAME"`
	LogLevel    string `env:"LOG_LEVEL"`

	BindAddress          string `env:"BIND_ADDRESS"           validate:"required"`
	Port                 int    `env:"PORT"                   validate:"min=1,max=65535"`
	WorkerThreads        int    `env:"WORKER_THREADS"         validate:"min=1"`
	ShutdownGraceSeconds int    `env:"SHUTDOWN_GRACE_SECONDS" validate:"min=1"`

	TelemetryEnabled     bool   `env:"TELEMETRY_ENABLED"`
	OtelExporterEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	DebugAuthUsername    string `env:"DEBUG_AUTH_USERNAME"`
	DebugAuthPassword    string `env:"DEBUG_AUTH_PASSWORD"`
	CorsAllowOrigins     string `env:"ACCESS_CONTROL_ALLOW_ORIGIN"`
	CorsAllowMethods     string `env:"ACCESS_CONTROL_ALLOW_METHODS"`
	CorsAllowHeaders     string `env:"ACCESS_CONTROL_ALLOW_HEADERS"`
}

// Load builds a Config from the process environment, applies defaults and
// validates the result. The returned value is complete: callers must not
// re-read environment variables afterwards.
func Load() (Config, error) {
	cfg := Config{}

	if err := SetConfigFromEnvVars(&cfg); err != nil {
		return Config{}, fmt.Errorf("reading environment: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.ServiceName == "" {
		c.ServiceName = "workflowgenie"
	}

	if c.Version == "" {
		c.Version = "0.0.0"
	}

	if c.EnvName == "" {
		c.EnvName = "production"
	}

	if c.BindAddress == "" {
		c.BindAddress = DefaultBindAddress
	}

	if c.Port == 0 {
		c.Port = DefaultPort
	}

	if c.WorkerThreads == 0 {
		c.WorkerThreads = DefaultWorkerThreads
	}

	if c.ShutdownGraceSeconds == 0 {
		c.ShutdownGraceSeconds = DefaultShutdownGraceSeconds
	}
}

// Validate checks the configuration against its struct-tag constraints.
func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	return nil
}

// ListenAddress returns the host:port string the listening socket binds to.
func (c Config) ListenAddress() string {
	return net.JoinHostPort(c.BindAddress, strconv.Itoa(c.Port))
}

// ShutdownGrace returns the drain grace period as a duration.
func (c Config) ShutdownGrace() time.Duration {
	return time.Duration(c.ShutdownGraceSeconds) * time.Second
}
