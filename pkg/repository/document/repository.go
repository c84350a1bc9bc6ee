// Package document provides typed access to Cosmos DB containers.
//
// Every operation checks the container against the allow-list before any request is
// made. Reads and deletes log and swallow backend failures; everything else returns them.
package document

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/nimburion/cosmoskit/pkg/codec"
	"github.com/nimburion/cosmoskit/pkg/observability/logger"
	"github.com/nimburion/cosmoskit/pkg/observability/metrics"
	"github.com/nimburion/cosmoskit/pkg/observability/tracing"
	"github.com/nimburion/cosmoskit/pkg/resilience"
	"github.com/nimburion/cosmoskit/pkg/store/cosmosdb"
	"go.opentelemetry.io/otel/trace"
)

// ErrMultipleResults is returned by QueryScalar when the first page holds more than one item.
var ErrMultipleResults = errors.New("query returned more than one result")

// DefaultUpsertRetryDelay is waited before the single upsert retry.
const DefaultUpsertRetryDelay = 500 * time.Millisecond

// Options configures a Repository. Zero values select the defaults.
type Options struct {
	Codec   codec.Codec
	Logger  logger.Logger
	Metrics *metrics.CosmosMetrics

	UpsertRetryDelay time.Duration
	// BulkConcurrency bounds in-flight requests of UpsertBulk (default 8).
	BulkConcurrency int
	// BulkRateLimit caps UpsertBulk requests per second. Zero means unlimited.
	BulkRateLimit float64
}

// Repository reads and writes documents of type T in any allowed container.
type Repository[T any] struct {
	exec    Executor
	codec   codec.Codec
	log     logger.Logger
	metrics *metrics.CosmosMetrics

	retryDelay      time.Duration
	bulkConcurrency int
	bulkRateLimit   float64
}

// Cosa fa: costruisce un repository tipizzato sopra un Executor Cosmos DB.
// Cosa NON fa: non crea container né valida lo schema dei documenti.
// Esempio minimo: calls, err := document.New[CallModel](exec, document.Options{Logger: log})
func New[T any](exec Executor, opts Options) (*Repository[T], error) {
	if exec == nil {
		return nil, errors.New("document executor is required")
	}
	if opts.Codec == nil {
		opts.Codec = codec.NewDefaultCodec()
	}
	if opts.Logger == nil {
		opts.Logger = logger.NewNopLogger()
	}
	if opts.UpsertRetryDelay <= 0 {
		opts.UpsertRetryDelay = DefaultUpsertRetryDelay
	}
	if opts.BulkConcurrency <= 0 {
		opts.BulkConcurrency = 8
	}
	if opts.BulkRateLimit < 0 {
		opts.BulkRateLimit = 0
	}
	return &Repository[T]{
		exec:            exec,
		codec:           opts.Codec,
		log:             opts.Logger,
		metrics:         opts.Metrics,
		retryDelay:      opts.UpsertRetryDelay,
		bulkConcurrency: opts.BulkConcurrency,
		bulkRateLimit:   opts.BulkRateLimit,
	}, nil
}

// Insert creates item and returns the stored document. An existing id is a conflict error.
func (r *Repository[T]) Insert(ctx context.Context, container string, item T) (*T, error) {
	ctx, op := r.begin(ctx, tracing.SpanOperationDBInsert, container, "insert")
	if err := r.exec.ValidateContainerName(container); err != nil {
		op.reject(err)
		return nil, err
	}

	body, pk, err := r.encodeWithKey(ctx, container, item)
	if err != nil {
		op.fail(0, err)
		return nil, err
	}
	res, err := r.exec.CreateItem(ctx, container, pk, body)
	if err != nil {
		op.fail(res.RequestCharge, err)
		return nil, err
	}
	op.succeed(res.RequestCharge)

	if len(res.Value) == 0 {
		return &item, nil
	}
	stored := new(T)
	if err := r.codec.Unmarshal(res.Value, stored); err != nil {
		return nil, fmt.Errorf("decode inserted document: %w", err)
	}
	return stored, nil
}

// Upsert inserts or replaces item. The partition key is read from the encoded document.
func (r *Repository[T]) Upsert(ctx context.Context, container string, item T) error {
	ctx, op := r.begin(ctx, tracing.SpanOperationDBUpsert, container, "upsert")
	if err := r.exec.ValidateContainerName(container); err != nil {
		op.reject(err)
		return err
	}

	body, pk, err := r.encodeWithKey(ctx, container, item)
	if err != nil {
		op.fail(0, err)
		return err
	}
	res, err := r.exec.UpsertItem(ctx, container, pk, body)
	op.finish(res.RequestCharge, err)
	return err
}

// UpsertWithPartitionKey upserts item under pk. A failure with sub-status 3200 is
// retried once after the retry delay; any later failure is returned.
func (r *Repository[T]) UpsertWithPartitionKey(ctx context.Context, container string, item T, pk azcosmos.PartitionKey) error {
	return r.upsertWithPartitionKey(ctx, container, item, pk, true)
}

// UpsertWithPartitionKeyNoRetry upserts item under pk without retrying.
func (r *Repository[T]) UpsertWithPartitionKeyNoRetry(ctx context.Context, container string, item T, pk azcosmos.PartitionKey) error {
	return r.upsertWithPartitionKey(ctx, container, item, pk, false)
}

func (r *Repository[T]) upsertWithPartitionKey(ctx context.Context, container string, item T, pk azcosmos.PartitionKey, allowRetry bool) error {
	ctx, op := r.begin(ctx, tracing.SpanOperationDBUpsert, container, "upsert")
	if err := r.exec.ValidateContainerName(container); err != nil {
		op.reject(err)
		return err
	}

	body, err := r.codec.Marshal(item)
	if err != nil {
		err = fmt.Errorf("encode document: %w", err)
		op.fail(0, err)
		return err
	}

	policy := resilience.Policy{MaxAttempts: 1}
	if allowRetry {
		policy = resilience.Policy{
			MaxAttempts: 2,
			Delay:       r.retryDelay,
			ShouldRetry: func(err error) bool {
				return cosmosdb.SubStatusCode(err) == cosmosdb.SubStatusRetryableUpsert
			},
			OnRetry: func(attempt int, err error) {
				r.metrics.IncUpsertRetry(container)
				r.log.Warn("retrying upsert after retryable conflict",
					"container", container,
					"sub_status", cosmosdb.SubStatusCode(err),
					"delay", r.retryDelay,
				)
			},
		}
	}

	var charge float32
	err = resilience.Retry(ctx, policy, func(ctx context.Context) error {
		res, err := r.exec.UpsertItem(ctx, container, pk, body)
		charge += res.RequestCharge
		return err
	})
	op.finish(charge, err)
	return err
}

// Delete removes the document id under pk. Only allow-list violations are returned;
// backend failures, a missing document included, are logged and swallowed.
func (r *Repository[T]) Delete(ctx context.Context, container, id string, pk azcosmos.PartitionKey) error {
	ctx, op := r.begin(ctx, tracing.SpanOperationDBDelete, container, "delete", tracing.WithDocumentID(id))
	if err := r.exec.ValidateContainerName(container); err != nil {
		op.reject(err)
		return err
	}

	res, err := r.exec.DeleteItem(ctx, container, pk, id)
	if err != nil {
		r.log.WithContext(ctx).Warn("delete failed",
			"container", container,
			"id", id,
			"status", cosmosdb.StatusCode(err),
			"error", err,
		)
		op.suppress(res.RequestCharge, err)
		return nil
	}
	op.succeed(res.RequestCharge)
	return nil
}

// DeleteByNumber removes the document id stored under a numeric partition key.
func (r *Repository[T]) DeleteByNumber(ctx context.Context, container, id string, key int) error {
	return r.Delete(ctx, container, id, cosmosdb.IntPartitionKey(key))
}

// Get reads the document id under pk. It returns nil when the document is missing,
// cannot be read or cannot be decoded; only allow-list violations are errors.
func (r *Repository[T]) Get(ctx context.Context, container, id string, pk azcosmos.PartitionKey) (*T, error) {
	ctx, op := r.begin(ctx, tracing.SpanOperationDBRead, container, "get", tracing.WithDocumentID(id))
	if err := r.exec.ValidateContainerName(container); err != nil {
		op.reject(err)
		return nil, err
	}

	res, err := r.exec.ReadItem(ctx, container, pk, id)
	if err != nil {
		if cosmosdb.IsNotFound(err) {
			r.log.WithContext(ctx).Debug("document not found", "container", container, "id", id)
		} else {
			r.log.WithContext(ctx).Warn("read failed", "container", container, "id", id, "error", err)
		}
		op.suppress(res.RequestCharge, err)
		return nil, nil
	}

	out := new(T)
	if err := r.codec.Unmarshal(res.Value, out); err != nil {
		r.log.WithContext(ctx).Warn("read returned an undecodable document", "container", container, "id", id, "error", err)
		op.suppress(res.RequestCharge, err)
		return nil, nil
	}
	op.succeed(res.RequestCharge)
	return out, nil
}

// Query runs q across all partitions and returns every result.
func (r *Repository[T]) Query(ctx context.Context, container string, q Query) ([]T, error) {
	return r.query(ctx, container, q, cosmosdb.CrossPartition(), false)
}

// QueryPartition runs q in the numeric partition partitionKey, or across all
// partitions when partitionKey is empty, and returns every result.
func (r *Repository[T]) QueryPartition(ctx context.Context, container string, q Query, partitionKey string) ([]T, error) {
	pk, err := r.numericKey(container, partitionKey)
	if err != nil {
		return nil, err
	}
	return r.query(ctx, container, q, pk, false)
}

// QueryScalar runs q like QueryPartition but reads only the first page. It returns nil
// for an empty page and ErrMultipleResults when the page holds more than one item.
func (r *Repository[T]) QueryScalar(ctx context.Context, container string, q Query, partitionKey string) (*T, error) {
	pk, err := r.numericKey(container, partitionKey)
	if err != nil {
		return nil, err
	}
	items, err := r.query(ctx, container, q, pk, true)
	if err != nil {
		return nil, err
	}
	switch len(items) {
	case 0:
		return nil, nil
	case 1:
		return &items[0], nil
	default:
		return nil, fmt.Errorf("%w: %d items", ErrMultipleResults, len(items))
	}
}

func (r *Repository[T]) numericKey(container, partitionKey string) (azcosmos.PartitionKey, error) {
	if err := r.exec.ValidateContainerName(container); err != nil {
		return azcosmos.PartitionKey{}, err
	}
	return cosmosdb.NumericPartitionKey(partitionKey)
}

func (r *Repository[T]) query(ctx context.Context, container string, q Query, pk azcosmos.PartitionKey, firstPageOnly bool) ([]T, error) {
	ctx, op := r.begin(ctx, tracing.SpanOperationDBQuery, container, "query", tracing.WithDBStatement(q.Text))
	if err := r.exec.ValidateContainerName(container); err != nil {
		op.reject(err)
		return nil, err
	}

	pager, err := r.exec.Query(container, q, pk)
	if err != nil {
		op.fail(0, err)
		return nil, err
	}

	var (
		results []T
		charge  float32
	)
	for pager.More() {
		page, err := pager.NextPage(ctx)
		charge += page.RequestCharge
		if err != nil {
			op.fail(charge, err)
			return nil, err
		}
		for _, raw := range page.Items {
			var item T
			if err := r.codec.Unmarshal(raw, &item); err != nil {
				err = fmt.Errorf("decode query result: %w", err)
				op.fail(charge, err)
				return nil, err
			}
			results = append(results, item)
		}
		if firstPageOnly {
			break
		}
	}
	op.succeed(charge)
	return results, nil
}

func (r *Repository[T]) encodeWithKey(ctx context.Context, container string, item T) ([]byte, azcosmos.PartitionKey, error) {
	body, err := r.codec.Marshal(item)
	if err != nil {
		return nil, azcosmos.PartitionKey{}, fmt.Errorf("encode document: %w", err)
	}
	pk, err := r.exec.PartitionKeyFor(ctx, container, body)
	if err != nil {
		return nil, azcosmos.PartitionKey{}, err
	}
	return body, pk, nil
}

// operation tracks the span and metrics of one repository call.
type operation struct {
	span      trace.Span
	metrics   *metrics.CosmosMetrics
	container string
	name      string
	start     time.Time
}

func (r *Repository[T]) begin(ctx context.Context, spanOp tracing.SpanOperation, container, name string, opts ...tracing.DatabaseSpanOption) (context.Context, *operation) {
	opts = append([]tracing.DatabaseSpanOption{
		tracing.WithDBSystem(tracing.DBSystemCosmos),
		tracing.WithDBName(r.exec.DatabaseID()),
		tracing.WithDBTable(container),
	}, opts...)
	ctx, span := tracing.StartDatabaseSpan(ctx, spanOp, opts...)
	return ctx, &operation{
		span:      span,
		metrics:   r.metrics,
		container: container,
		name:      name,
		start:     time.Now(),
	}
}

func (op *operation) end(outcome string, charge float32) {
	tracing.RecordRequestCharge(op.span, charge)
	op.metrics.ObserveOperation(op.container, op.name, outcome, time.Since(op.start), charge)
	op.span.End()
}

func (op *operation) succeed(charge float32) {
	tracing.RecordSuccess(op.span)
	op.end(metrics.OutcomeSuccess, charge)
}

func (op *operation) fail(charge float32, err error) {
	tracing.RecordError(op.span, err)
	op.end(metrics.OutcomeError, charge)
}

func (op *operation) finish(charge float32, err error) {
	if err != nil {
		op.fail(charge, err)
		return
	}
	op.succeed(charge)
}

func (op *operation) suppress(charge float32, err error) {
	op.span.RecordError(err)
	op.end(metrics.OutcomeSuppressed, charge)
}

func (op *operation) reject(err error) {
	tracing.RecordError(op.span, err)
	op.end(metrics.OutcomeRejected, 0)
}
