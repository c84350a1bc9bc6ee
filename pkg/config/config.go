package config

import (
	"strings"
	"time"

	"github.com/nimburion/cosmoskit/pkg/store/cosmosdb"
)

// Environment names
const (
	// EnvironmentDevelopment enables emulator certificate pinning
	EnvironmentDevelopment = "development"
	// EnvironmentProduction is the default environment
	EnvironmentProduction = "production"
)

// DefaultEnvPrefix is the environment variable prefix used when none is given.
const DefaultEnvPrefix = "COSMOSKIT"

// Config is the root configuration structure of cosmoskit
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Cosmos        CosmosConfig        `mapstructure:"cosmos" yaml:"cosmos"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// CosmosConfig configures the Cosmos DB connection, bootstrap and repository behaviour.
type CosmosConfig struct {
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	Key             string `mapstructure:"key" yaml:"key"`
	Database        string `mapstructure:"database" yaml:"database"`
	ApplicationName string `mapstructure:"application_name" yaml:"application_name"`

	RequestTimeout      time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ConnectTimeout      time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
	OperationTimeout    time.Duration `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	MaxRateLimitRetries int32         `mapstructure:"max_rate_limit_retries" yaml:"max_rate_limit_retries"`
	MaxRateLimitWait    time.Duration `mapstructure:"max_rate_limit_wait" yaml:"max_rate_limit_wait"`
	PreferredRegions    []string      `mapstructure:"preferred_regions" yaml:"preferred_regions"`

	EmulatorHosts           []string `mapstructure:"emulator_hosts" yaml:"emulator_hosts"`
	EmulatorCertFingerprint string   `mapstructure:"emulator_cert_fingerprint" yaml:"emulator_cert_fingerprint"`

	AllowedContainers []string                 `mapstructure:"allowed_containers" yaml:"allowed_containers"`
	Containers        []cosmosdb.ContainerSpec `mapstructure:"containers" yaml:"containers"`

	UpsertRetryDelay time.Duration `mapstructure:"upsert_retry_delay" yaml:"upsert_retry_delay"`
	BulkConcurrency  int           `mapstructure:"bulk_concurrency" yaml:"bulk_concurrency"`
	// BulkRateLimit caps bulk requests per second; zero disables the limit.
	BulkRateLimit float64 `mapstructure:"bulk_rate_limit" yaml:"bulk_rate_limit"`
}

// ObservabilityConfig configures logging, tracing and metrics
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string  `mapstructure:"log_format" yaml:"log_format"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
	// TracingSecure uses TLS towards the OTLP collector.
	TracingSecure  bool `mapstructure:"tracing_secure" yaml:"tracing_secure"`
	MetricsEnabled bool `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	// MetricsAddress is where the Prometheus endpoint listens while a command runs.
	MetricsAddress string `mapstructure:"metrics_address" yaml:"metrics_address"`
}

// DefaultConfig returns the configuration of a local deployment against the emulator.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "cosmoskit",
			Environment: EnvironmentProduction,
		},
		Cosmos: CosmosConfig{
			Endpoint:            cosmosdb.DefaultEndpoint,
			Key:                 cosmosdb.EmulatorKey,
			Database:            cosmosdb.DefaultDatabase,
			ApplicationName:     cosmosdb.DefaultApplicationName,
			RequestTimeout:      10 * time.Second,
			ConnectTimeout:      30 * time.Second,
			OperationTimeout:    0,
			MaxRateLimitRetries: 10,
			MaxRateLimitWait:    30 * time.Second,
			PreferredRegions:    []string{},
			EmulatorHosts:       []string{},
			AllowedContainers:   cosmosdb.DefaultAllowedContainers(),
			Containers:          cosmosdb.DefaultContainers(),
			UpsertRetryDelay:    500 * time.Millisecond,
			BulkConcurrency:     8,
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			TracingEndpoint:   "localhost:4317",
			TracingSampleRate: 1.0,
			MetricsAddress:    ":9090",
		},
	}
}

// IsDevelopment reports whether the service runs in the development environment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(strings.TrimSpace(c.Service.Environment), EnvironmentDevelopment)
}

// AdapterConfig converts the cosmos section into the adapter configuration.
func (c *Config) AdapterConfig() cosmosdb.Config {
	return cosmosdb.Config{
		Endpoint:                c.Cosmos.Endpoint,
		Key:                     c.Cosmos.Key,
		Database:                c.Cosmos.Database,
		ApplicationName:         c.Cosmos.ApplicationName,
		Development:             c.IsDevelopment(),
		RequestTimeout:          c.Cosmos.RequestTimeout,
		ConnectTimeout:          c.Cosmos.ConnectTimeout,
		OperationTimeout:        c.Cosmos.OperationTimeout,
		MaxRateLimitRetries:     c.Cosmos.MaxRateLimitRetries,
		MaxRateLimitWait:        c.Cosmos.MaxRateLimitWait,
		PreferredRegions:        c.Cosmos.PreferredRegions,
		EmulatorHosts:           c.Cosmos.EmulatorHosts,
		EmulatorCertFingerprint: c.Cosmos.EmulatorCertFingerprint,
		AllowedContainers:       c.Cosmos.AllowedContainers,
		Containers:              c.Cosmos.Containers,
	}
}
