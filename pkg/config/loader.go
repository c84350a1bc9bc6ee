package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (defaults to "COSMOSKIT")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithFlags makes changed flags registered by RegisterFlags override every other source.
func (l *ViperLoader) WithFlags(flags *pflag.FlagSet) *ViperLoader {
	if l == nil {
		return l
	}
	l.flags = flags
	return l
}

// ConfigFile returns the path of the configuration file, or empty string if none.
func (l *ViperLoader) ConfigFile() string {
	return l.configFile
}

// Load loads configuration with precedence: flags > ENV > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	cfg, _, err := l.load(false)
	return cfg, err
}

func (l *ViperLoader) load(withSecrets bool) (*Config, *Config, error) {
	v := viper.New()

	// Start with defaults
	l.setDefaults(v, DefaultConfig())

	// Read config file if provided
	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			// Only return error if file was explicitly specified but couldn't be read
			return nil, nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	var secrets *Config
	if withSecrets {
		var err error
		if secrets, err = l.mergeSecrets(v); err != nil {
			return nil, nil, err
		}
	}

	// Environment variables override file config through explicit bindings.
	v.SetEnvPrefix(l.prefix())
	l.bindLegacyEnvVars()
	l.bindEnvVars(v)

	if err := l.applyFlags(v); err != nil {
		return nil, nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, secrets, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	// Service
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("ENVIRONMENT"), l.prefixedEnv("SERVICE_ENVIRONMENT"))

	// Cosmos
	v.BindEnv("cosmos.endpoint", l.prefixedEnv("COSMOS_ENDPOINT"))
	v.BindEnv("cosmos.key", l.prefixedEnv("COSMOS_KEY"))
	v.BindEnv("cosmos.database", l.prefixedEnv("COSMOS_DATABASE"))
	v.BindEnv("cosmos.application_name", l.prefixedEnv("COSMOS_APPLICATION_NAME"))
	v.BindEnv("cosmos.request_timeout", l.prefixedEnv("COSMOS_REQUEST_TIMEOUT"))
	v.BindEnv("cosmos.connect_timeout", l.prefixedEnv("COSMOS_CONNECT_TIMEOUT"))
	v.BindEnv("cosmos.operation_timeout", l.prefixedEnv("COSMOS_OPERATION_TIMEOUT"))
	v.BindEnv("cosmos.max_rate_limit_retries", l.prefixedEnv("COSMOS_MAX_RATE_LIMIT_RETRIES"))
	v.BindEnv("cosmos.max_rate_limit_wait", l.prefixedEnv("COSMOS_MAX_RATE_LIMIT_WAIT"))
	v.BindEnv("cosmos.preferred_regions", l.prefixedEnv("COSMOS_PREFERRED_REGIONS"))
	v.BindEnv("cosmos.emulator_hosts", l.prefixedEnv("COSMOS_EMULATOR_HOSTS"))
	v.BindEnv("cosmos.emulator_cert_fingerprint", l.prefixedEnv("COSMOS_EMULATOR_CERT_FINGERPRINT"))
	v.BindEnv("cosmos.allowed_containers", l.prefixedEnv("COSMOS_ALLOWED_CONTAINERS"))
	v.BindEnv("cosmos.upsert_retry_delay", l.prefixedEnv("COSMOS_UPSERT_RETRY_DELAY"))
	v.BindEnv("cosmos.bulk_concurrency", l.prefixedEnv("COSMOS_BULK_CONCURRENCY"))
	v.BindEnv("cosmos.bulk_rate_limit", l.prefixedEnv("COSMOS_BULK_RATE_LIMIT"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("TRACING_SAMPLE_RATE"))
	v.BindEnv("observability.tracing_secure", l.prefixedEnv("TRACING_SECURE"))
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("METRICS_ENABLED"))
	v.BindEnv("observability.metrics_address", l.prefixedEnv("METRICS_ADDRESS"))
}

// bindLegacyEnvVars maps legacy env vars to current names when the current vars are absent.
// A legacy name is looked up with the prefix first ("COSMOSKIT_COSMOSDB_KEY"), then bare
// ("COSMOSDB_KEY") as older deployments set it.
func (l *ViperLoader) bindLegacyEnvVars() {
	aliases := []struct {
		currentSuffix string
		legacySuffix  string
	}{
		{"COSMOS_ENDPOINT", "COSMOSDB_ENDPOINT"},
		{"COSMOS_KEY", "COSMOSDB_KEY"},
		{"COSMOS_DATABASE", "COSMOSDB_DATABASE"},
	}

	for _, alias := range aliases {
		currentEnv := l.prefixedEnv(alias.currentSuffix)
		if _, hasCurrent := os.LookupEnv(currentEnv); hasCurrent {
			continue
		}
		for _, legacyEnv := range []string{l.prefixedEnv(alias.legacySuffix), alias.legacySuffix} {
			if legacyValue, hasLegacy := os.LookupEnv(legacyEnv); hasLegacy {
				_ = os.Setenv(currentEnv, legacyValue)
				break
			}
		}
	}
}

func (l *ViperLoader) prefix() string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return strings.ToUpper(prefix)
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	return fmt.Sprintf("%s_%s", l.prefix(), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	// Service defaults
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	// Cosmos defaults
	v.SetDefault("cosmos.endpoint", cfg.Cosmos.Endpoint)
	v.SetDefault("cosmos.key", cfg.Cosmos.Key)
	v.SetDefault("cosmos.database", cfg.Cosmos.Database)
	v.SetDefault("cosmos.application_name", cfg.Cosmos.ApplicationName)
	v.SetDefault("cosmos.request_timeout", cfg.Cosmos.RequestTimeout)
	v.SetDefault("cosmos.connect_timeout", cfg.Cosmos.ConnectTimeout)
	v.SetDefault("cosmos.operation_timeout", cfg.Cosmos.OperationTimeout)
	v.SetDefault("cosmos.max_rate_limit_retries", cfg.Cosmos.MaxRateLimitRetries)
	v.SetDefault("cosmos.max_rate_limit_wait", cfg.Cosmos.MaxRateLimitWait)
	v.SetDefault("cosmos.preferred_regions", cfg.Cosmos.PreferredRegions)
	v.SetDefault("cosmos.emulator_hosts", cfg.Cosmos.EmulatorHosts)
	v.SetDefault("cosmos.emulator_cert_fingerprint", cfg.Cosmos.EmulatorCertFingerprint)
	v.SetDefault("cosmos.allowed_containers", cfg.Cosmos.AllowedContainers)
	v.SetDefault("cosmos.containers", cfg.Cosmos.Containers)
	v.SetDefault("cosmos.upsert_retry_delay", cfg.Cosmos.UpsertRetryDelay)
	v.SetDefault("cosmos.bulk_concurrency", cfg.Cosmos.BulkConcurrency)
	v.SetDefault("cosmos.bulk_rate_limit", cfg.Cosmos.BulkRateLimit)

	// Observability defaults
	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
	v.SetDefault("observability.tracing_secure", cfg.Observability.TracingSecure)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.metrics_address", cfg.Observability.MetricsAddress)
}

// Validate validates the configuration and returns detailed errors
func (l *ViperLoader) Validate(cfg *Config) error {
	var errs []error

	cfg.Cosmos.AllowedContainers = normalizeStringSlice(cfg.Cosmos.AllowedContainers)
	cfg.Cosmos.PreferredRegions = normalizeStringSlice(cfg.Cosmos.PreferredRegions)
	cfg.Cosmos.EmulatorHosts = normalizeStringSlice(cfg.Cosmos.EmulatorHosts)

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	if strings.TrimSpace(cfg.Cosmos.Endpoint) == "" {
		errs = append(errs, errors.New("cosmos.endpoint is required"))
	}
	if strings.TrimSpace(cfg.Cosmos.Key) == "" {
		errs = append(errs, errors.New("cosmos.key is required"))
	}
	if strings.TrimSpace(cfg.Cosmos.Database) == "" {
		errs = append(errs, errors.New("cosmos.database is required"))
	}
	if cfg.Cosmos.RequestTimeout < 0 {
		errs = append(errs, fmt.Errorf("cosmos.request_timeout must not be negative, got %s", cfg.Cosmos.RequestTimeout))
	}
	if cfg.Cosmos.ConnectTimeout < 0 {
		errs = append(errs, fmt.Errorf("cosmos.connect_timeout must not be negative, got %s", cfg.Cosmos.ConnectTimeout))
	}
	if cfg.Cosmos.OperationTimeout < 0 {
		errs = append(errs, fmt.Errorf("cosmos.operation_timeout must not be negative, got %s", cfg.Cosmos.OperationTimeout))
	}
	if cfg.Cosmos.MaxRateLimitRetries < 0 {
		errs = append(errs, fmt.Errorf("cosmos.max_rate_limit_retries must not be negative, got %d", cfg.Cosmos.MaxRateLimitRetries))
	}
	if cfg.Cosmos.UpsertRetryDelay < 0 {
		errs = append(errs, fmt.Errorf("cosmos.upsert_retry_delay must not be negative, got %s", cfg.Cosmos.UpsertRetryDelay))
	}
	if cfg.Cosmos.BulkConcurrency < 0 {
		errs = append(errs, fmt.Errorf("cosmos.bulk_concurrency must not be negative, got %d", cfg.Cosmos.BulkConcurrency))
	}
	if cfg.Cosmos.BulkRateLimit < 0 {
		errs = append(errs, fmt.Errorf("cosmos.bulk_rate_limit must not be negative, got %v", cfg.Cosmos.BulkRateLimit))
	}
	for i, spec := range cfg.Cosmos.Containers {
		if strings.TrimSpace(spec.Name) == "" {
			errs = append(errs, fmt.Errorf("cosmos.containers[%d].name is required", i))
		}
		if !strings.HasPrefix(spec.PartitionKeyPath, "/") {
			errs = append(errs, fmt.Errorf("cosmos.containers[%d].partition_key_path must start with '/', got %q", i, spec.PartitionKeyPath))
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLevels, strings.ToLower(cfg.Observability.LogLevel)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLevels))
	}
	validFormats := []string{"json", "text"}
	if !slices.Contains(validFormats, strings.ToLower(cfg.Observability.LogFormat)) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validFormats))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("observability.tracing_sample_rate must be between 0 and 1, got %v", cfg.Observability.TracingSampleRate))
	}
	if cfg.Observability.TracingEnabled && strings.TrimSpace(cfg.Observability.TracingEndpoint) == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}
	if cfg.Observability.MetricsEnabled && strings.TrimSpace(cfg.Observability.MetricsAddress) == "" {
		errs = append(errs, errors.New("observability.metrics_address is required when metrics are enabled"))
	}

	return errors.Join(errs...)
}

func normalizeStringSlice(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
