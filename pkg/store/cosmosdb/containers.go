package cosmosdb

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/nimburion/cosmoskit/pkg/observability/tracing"
	"go.opentelemetry.io/otel/trace"
)

var defaultAllowedContainers = []string{
	"calls",
	"quotes",
	"call-requests",
	"gps-history",
	"event-notifications",
	"notifications",
	"braintree",
	"report-history",
	"quote-photos",
	"activity-log",
}

// DefaultAllowedContainers returns the container names data operations accept by default.
func DefaultAllowedContainers() []string {
	return slices.Clone(defaultAllowedContainers)
}

// AllowList is the fixed set of container names data operations may address.
// Names are matched exactly.
type AllowList struct {
	names map[string]struct{}
}

func NewAllowList(names ...string) AllowList {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			set[name] = struct{}{}
		}
	}
	return AllowList{names: set}
}

// Validate returns ErrUnexpectedContainer when name is not in the list.
func (l AllowList) Validate(name string) error {
	if _, ok := l.names[name]; ok {
		return nil
	}
	return fmt.Errorf("%w %q: add it to the allowed containers if it is valid", ErrUnexpectedContainer, name)
}

// Names returns the allowed names in sorted order.
func (l AllowList) Names() []string {
	names := make([]string, 0, len(l.names))
	for name := range l.names {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// ContainerSpec names a container and the partition key path it is created with.
type ContainerSpec struct {
	Name             string `mapstructure:"name" yaml:"name"`
	PartitionKeyPath string `mapstructure:"partition_key_path" yaml:"partition_key_path"`
}

func (s ContainerSpec) validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return errors.New("container name is required")
	}
	if !strings.HasPrefix(s.PartitionKeyPath, "/") || len(s.PartitionKeyPath) < 2 {
		return fmt.Errorf("container %s: partition key path %q must start with '/'", s.Name, s.PartitionKeyPath)
	}
	return nil
}

// DefaultContainers returns the containers created by a default bootstrap.
func DefaultContainers() []ContainerSpec {
	return []ContainerSpec{
		{Name: "calls", PartitionKeyPath: "/companyId"},
		{Name: "quotes", PartitionKeyPath: "/companyId"},
		{Name: "quote-photos", PartitionKeyPath: "/quoteId"},
		{Name: "call-requests", PartitionKeyPath: "/companyId"},
		{Name: "event-notifications", PartitionKeyPath: "/companyId"},
		{Name: "report-history", PartitionKeyPath: "/companyId"},
		{Name: "activity-log", PartitionKeyPath: "/partitionKey"},
	}
}

// Status is the bootstrap outcome of a database or container.
type Status string

const (
	StatusCreated Status = "created"
	StatusExists  Status = "exists"
	StatusFailed  Status = "failed"
)

// ContainerStatus reports the bootstrap outcome of one container.
type ContainerStatus struct {
	Name             string
	PartitionKeyPath string
	Status           Status
	Err              error
}

// ValidateContainerName checks name against the adapter's allow-list.
func (a *Adapter) ValidateContainerName(name string) error {
	return a.allowed.Validate(name)
}

// AllowedContainers returns the adapter's allow-list in sorted order.
func (a *Adapter) AllowedContainers() []string {
	return a.allowed.Names()
}

// Cosa fa: crea ogni container richiesto se non esiste, proseguendo oltre i fallimenti.
// Cosa NON fa: non modifica la partition key di container già esistenti.
// Esempio minimo: statuses, err := adapter.EnsureContainers(ctx, cosmosdb.DefaultContainers())
func (a *Adapter) EnsureContainers(ctx context.Context, specs []ContainerSpec) ([]ContainerStatus, error) {
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}

	statuses := make([]ContainerStatus, 0, len(specs))
	var errs []error
	for _, spec := range specs {
		status := ContainerStatus{Name: spec.Name, PartitionKeyPath: spec.PartitionKeyPath}
		status.Status, status.Err = a.ensureContainer(ctx, spec)
		if status.Err != nil {
			a.logger.Error("failed to create or check container", "container", spec.Name, "error", status.Err)
			errs = append(errs, status.Err)
		} else {
			a.logger.Info("container is ready", "container", spec.Name, "partition_key_path", spec.PartitionKeyPath, "status", string(status.Status))
		}
		statuses = append(statuses, status)
	}
	return statuses, errors.Join(errs...)
}

func (a *Adapter) ensureContainer(ctx context.Context, spec ContainerSpec) (Status, error) {
	if err := spec.validate(); err != nil {
		return StatusFailed, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	opCtx, span := a.startBootstrapSpan(opCtx, tracing.WithDBTable(spec.Name))
	defer span.End()

	resp, err := a.database.CreateContainer(opCtx, azcosmos.ContainerProperties{
		ID: spec.Name,
		PartitionKeyDefinition: azcosmos.PartitionKeyDefinition{
			Paths: []string{spec.PartitionKeyPath},
		},
	}, nil)
	switch {
	case err == nil:
		a.paths.Store(spec.Name, spec.PartitionKeyPath)
		tracing.RecordRequestCharge(span, resp.RequestCharge)
		tracing.RecordSuccess(span)
		return StatusCreated, nil
	case IsConflict(err):
		tracing.RecordSuccess(span)
		return StatusExists, nil
	default:
		err = fmt.Errorf("container %s: %w", spec.Name, err)
		tracing.RecordError(span, err)
		return StatusFailed, err
	}
}

func (a *Adapter) startBootstrapSpan(ctx context.Context, opts ...tracing.DatabaseSpanOption) (context.Context, trace.Span) {
	opts = append([]tracing.DatabaseSpanOption{
		tracing.WithDBSystem(tracing.DBSystemCosmos),
		tracing.WithDBName(a.databaseID),
	}, opts...)
	return tracing.StartDatabaseSpan(ctx, tracing.SpanOperationDBBootstrap, opts...)
}
