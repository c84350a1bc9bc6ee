package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nimburion/cosmoskit/pkg/config"
	"github.com/nimburion/cosmoskit/pkg/observability/logger"
	"github.com/nimburion/cosmoskit/pkg/observability/metrics"
	"github.com/nimburion/cosmoskit/pkg/observability/tracing"
	"github.com/nimburion/cosmoskit/pkg/repository/document"
	"github.com/nimburion/cosmoskit/pkg/store/cosmosdb"
	"github.com/nimburion/cosmoskit/pkg/version"
	"github.com/spf13/cobra"
)

// session holds what one command needs to talk to Cosmos DB.
type session struct {
	cfg      *config.Config
	log      logger.Logger
	metrics  *metrics.Registry
	tracer   *tracing.TracerProvider
	provider *cosmosdb.Provider
	server   *http.Server

	connected *cosmosdb.Adapter
}

func openSession(ctx context.Context, name string, cfg *config.Config, log logger.Logger) (*session, error) {
	info := version.Current(name)

	tracer, err := tracing.NewTracerProvider(ctx, tracing.TracerConfig{
		ServiceName:    cfg.Service.Name,
		ServiceVersion: info.Version,
		Environment:    cfg.Service.Environment,
		Endpoint:       cfg.Observability.TracingEndpoint,
		Secure:         cfg.Observability.TracingSecure,
		SampleRate:     cfg.Observability.TracingSampleRate,
		Enabled:        cfg.Observability.TracingEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("create tracer provider: %w", err)
	}

	adapterCfg := cfg.AdapterConfig()
	if adapterCfg.ApplicationName == cosmosdb.DefaultApplicationName {
		adapterCfg.ApplicationName = info.UserAgent()
	}

	s := &session{
		cfg:      cfg,
		log:      log,
		metrics:  metrics.NewRegistry(),
		tracer:   tracer,
		provider: cosmosdb.Shared(adapterCfg, log),
	}
	if cfg.Observability.MetricsEnabled {
		s.serveMetrics(cfg.Observability.MetricsAddress)
	}
	return s, nil
}

func (s *session) serveMetrics(addr string) {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.metrics.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics endpoint stopped", "address", addr, "error", err)
		}
	}()
	s.log.Info("metrics endpoint listening", "address", addr)
}

// adapter connects on first use and bootstraps the database.
func (s *session) adapter() (*cosmosdb.Adapter, error) {
	a, err := s.provider.Adapter()
	if err != nil {
		return nil, err
	}
	s.connected = a
	return a, nil
}

func (s *session) documents() (*document.Repository[json.RawMessage], error) {
	a, err := s.adapter()
	if err != nil {
		return nil, err
	}
	exec, err := document.NewCosmosExecutor(a)
	if err != nil {
		return nil, err
	}
	return document.New[json.RawMessage](exec, document.Options{
		Logger:           s.log,
		Metrics:          s.metrics.Cosmos(),
		UpsertRetryDelay: s.cfg.Cosmos.UpsertRetryDelay,
		BulkConcurrency:  s.cfg.Cosmos.BulkConcurrency,
		BulkRateLimit:    s.cfg.Cosmos.BulkRateLimit,
	})
}

func (s *session) Close(ctx context.Context) error {
	var errs []error
	if s.connected != nil {
		errs = append(errs, s.connected.Close())
	}
	if s.server != nil {
		errs = append(errs, s.server.Shutdown(ctx))
	}
	errs = append(errs, s.tracer.Shutdown(ctx))
	return errors.Join(errs...)
}

// withSession loads the configuration, opens a session for the command and closes it
// when run returns. Interrupts cancel the context passed to run.
func (a *app) withSession(cmd *cobra.Command, run func(ctx context.Context, s *session) error) error {
	cfg, _, log, err := a.loadConfig(cmd.Flags())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, log = commandContext(ctx, log)

	s, err := openSession(ctx, a.opts.Name, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if closeErr := s.Close(shutdownCtx); closeErr != nil {
			log.Warn("failed to close session", "error", closeErr)
		}
	}()

	return run(ctx, s)
}

// commandContext tags one command run with a fresh correlation id so its log lines can
// be grouped.
func commandContext(ctx context.Context, log logger.Logger) (context.Context, logger.Logger) {
	ctx = logger.ContextWithCorrelationID(ctx, uuid.NewString())
	return ctx, log.WithContext(ctx)
}
