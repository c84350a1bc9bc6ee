package cosmosdb

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/nimburion/cosmoskit/pkg/observability/logger"
	"github.com/nimburion/cosmoskit/pkg/observability/tracing"
)

const (
	// DefaultEndpoint is the address of the local Cosmos DB emulator container.
	DefaultEndpoint = "https://azurecosmosemulator:8081/"
	// EmulatorKey is the well-known account key shipped with the emulator.
	EmulatorKey = "C2y6yDjf5/R+ob0N8A7Cgv30VRDJIWEHLM+4QDU5DE2nQ9nDuVTqobD4b8mGGyPMbIZnqyMsEcaGQy67XIw/Jw=="
	// DefaultDatabase is the database created and used when none is configured.
	DefaultDatabase = "towbook-dev"
	// DefaultApplicationName is appended to the SDK user agent.
	DefaultApplicationName = "cosmoskit"
)

// Adapter provides Azure Cosmos DB connectivity for a single database.
type Adapter struct {
	client     *azcosmos.Client
	database   *azcosmos.DatabaseClient
	databaseID string
	endpoint   string
	emulator   bool
	httpClient *http.Client
	allowed    AllowList
	paths      sync.Map
	logger     logger.Logger
	timeout    time.Duration
	mu         sync.RWMutex
	closed     bool
}

// Config holds Cosmos DB adapter configuration.
type Config struct {
	Endpoint        string
	Key             string
	Database        string
	ApplicationName string
	// Development enables certificate pinning when the endpoint is an emulator.
	Development bool

	RequestTimeout      time.Duration
	ConnectTimeout      time.Duration
	OperationTimeout    time.Duration
	MaxRateLimitRetries int32
	MaxRateLimitWait    time.Duration
	PreferredRegions    []string

	EmulatorHosts           []string
	EmulatorCertFingerprint string

	AllowedContainers []string
	Containers        []ContainerSpec
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.ApplicationName) == "" {
		c.ApplicationName = DefaultApplicationName
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 30 * time.Second
	}
	if c.OperationTimeout < 0 {
		c.OperationTimeout = 0
	}
	if c.MaxRateLimitRetries == 0 {
		c.MaxRateLimitRetries = 10
	}
	if c.MaxRateLimitWait <= 0 {
		c.MaxRateLimitWait = 30 * time.Second
	}
	if len(c.AllowedContainers) == 0 {
		c.AllowedContainers = DefaultAllowedContainers()
	}
}

func (c Config) validate() error {
	var errs []error
	if strings.TrimSpace(c.Endpoint) == "" {
		errs = append(errs, errors.New("cosmos endpoint is required"))
	}
	if strings.TrimSpace(c.Key) == "" {
		errs = append(errs, errors.New("cosmos key is required"))
	}
	if strings.TrimSpace(c.Database) == "" {
		errs = append(errs, errors.New("cosmos database is required"))
	}
	for _, spec := range c.Containers {
		if err := spec.validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Cosa fa: costruisce il client Cosmos DB, crea il database se assente e verifica la connettività.
// Cosa NON fa: non crea i container (vedi EnsureContainers).
// Esempio minimo: adapter, err := cosmosdb.NewAdapter(cfg, log)
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	emulator := IsEmulator(cfg.Endpoint, cfg.EmulatorHosts...)
	opts, httpClient, err := clientOptions(ctx, cfg, emulator)
	if err != nil {
		return nil, err
	}

	cred, err := azcosmos.NewKeyCredential(cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("invalid cosmos key: %w", err)
	}
	client, err := azcosmos.NewClientWithKey(cfg.Endpoint, cred, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create cosmos client: %w", err)
	}

	a, err := newAdapter(client, cfg, log)
	if err != nil {
		return nil, err
	}
	a.emulator = emulator
	a.httpClient = httpClient

	if _, err := a.EnsureDatabase(ctx); err != nil {
		return nil, err
	}

	log.Info("Cosmos DB connection established",
		"endpoint", cfg.Endpoint,
		"database", cfg.Database,
		"emulator", emulator,
		"pinned_certificate", httpClient != nil,
	)
	return a, nil
}

func newAdapter(client *azcosmos.Client, cfg Config, log logger.Logger) (*Adapter, error) {
	database, err := client.NewDatabase(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open cosmos database %s: %w", cfg.Database, err)
	}
	a := &Adapter{
		client:     client,
		database:   database,
		databaseID: cfg.Database,
		endpoint:   cfg.Endpoint,
		allowed:    NewAllowList(cfg.AllowedContainers...),
		logger:     log,
		timeout:    cfg.OperationTimeout,
	}
	for _, spec := range cfg.Containers {
		a.paths.Store(spec.Name, spec.PartitionKeyPath)
	}
	return a, nil
}

// clientOptions maps the adapter config onto SDK options. The SDK has no
// endpoint-only switch, so emulator mode clears preferred regions instead.
func clientOptions(ctx context.Context, cfg Config, emulator bool) (*azcosmos.ClientOptions, *http.Client, error) {
	opts := &azcosmos.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    cfg.MaxRateLimitRetries,
				MaxRetryDelay: cfg.MaxRateLimitWait,
				TryTimeout:    cfg.RequestTimeout,
			},
			Telemetry: policy.TelemetryOptions{
				ApplicationID: cfg.ApplicationName,
			},
		},
		PreferredRegions: cfg.PreferredRegions,
	}
	if !emulator {
		return opts, nil, nil
	}
	opts.PreferredRegions = nil

	if !cfg.Development {
		return opts, nil, nil
	}
	fingerprint := cfg.EmulatorCertFingerprint
	if fingerprint == "" {
		var err error
		fingerprint, err = CertificateFingerprint(ctx, cfg.Endpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to read emulator certificate: %w", err)
		}
	}
	httpClient := PinnedHTTPClient(fingerprint, cfg.RequestTimeout)
	opts.Transport = httpClient
	return opts, httpClient, nil
}

// Client returns the underlying SDK client.
func (a *Adapter) Client() *azcosmos.Client {
	return a.client
}

// Database returns the SDK client of the configured database.
func (a *Adapter) Database() *azcosmos.DatabaseClient {
	return a.database
}

func (a *Adapter) DatabaseID() string {
	return a.databaseID
}

func (a *Adapter) Endpoint() string {
	return a.endpoint
}

func (a *Adapter) IsEmulator() bool {
	return a.emulator
}

// EnsureDatabase creates the configured database when it does not exist yet.
func (a *Adapter) EnsureDatabase(ctx context.Context) (Status, error) {
	if err := a.ensureOpen(); err != nil {
		return StatusFailed, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	opCtx, span := a.startBootstrapSpan(opCtx)
	defer span.End()

	resp, err := a.client.CreateDatabase(opCtx, azcosmos.DatabaseProperties{ID: a.databaseID}, nil)
	switch {
	case err == nil:
		tracing.RecordRequestCharge(span, resp.RequestCharge)
		tracing.RecordSuccess(span)
		a.logger.Info("database created and is ready to use", "database", a.databaseID)
		return StatusCreated, nil
	case IsConflict(err):
		tracing.RecordSuccess(span)
		a.logger.Info("database found and is ready to use", "database", a.databaseID)
		return StatusExists, nil
	default:
		err = fmt.Errorf("failed to create or find database %s: %w", a.databaseID, err)
		tracing.RecordError(span, err)
		return StatusFailed, err
	}
}

func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	_, err := a.database.Read(ctx, nil)
	return err
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("Cosmos DB health check failed", "error", err)
		return fmt.Errorf("cosmosdb health check failed: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if a.httpClient != nil {
		a.httpClient.CloseIdleConnections()
	}
	if a.logger != nil {
		a.logger.Info("Cosmos DB adapter closed", "database", a.databaseID)
	}
	return nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrAdapterClosed
	}
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
