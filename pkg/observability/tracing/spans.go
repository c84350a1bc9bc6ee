package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DBSystemCosmos is the db.system value of Cosmos DB spans.
const DBSystemCosmos = "cosmosdb"

// SpanOperation represents a traced operation type.
type SpanOperation string

const (
	SpanOperationDBQuery  SpanOperation = "db.query"
	SpanOperationDBRead   SpanOperation = "db.read"
	SpanOperationDBInsert SpanOperation = "db.insert"
	SpanOperationDBUpsert SpanOperation = "db.upsert"
	SpanOperationDBDelete SpanOperation = "db.delete"
	// SpanOperationDBBootstrap covers database and container creation.
	SpanOperationDBBootstrap SpanOperation = "db.bootstrap"
)

// StartDatabaseSpan creates a client span for a database operation.
func StartDatabaseSpan(ctx context.Context, operation SpanOperation, opts ...DatabaseSpanOption) (context.Context, trace.Span) {
	tracer := otel.Tracer("database")

	spanOpts := &databaseSpanOptions{
		attributes: []attribute.KeyValue{
			attribute.String("db.operation", string(operation)),
		},
	}
	for _, opt := range opts {
		opt(spanOpts)
	}

	spanName := fmt.Sprintf("DB %s", operation)
	if spanOpts.table != "" {
		spanName = fmt.Sprintf("DB %s %s", operation, spanOpts.table)
	}

	ctx, span := tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(spanOpts.attributes...)
	return ctx, span
}

// DatabaseSpanOption configures a database span.
type DatabaseSpanOption func(*databaseSpanOptions)

type databaseSpanOptions struct {
	table      string
	attributes []attribute.KeyValue
}

// WithDBTable sets the container (table) name and uses it in the span name.
func WithDBTable(table string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.table = table
		opts.attributes = append(opts.attributes, attribute.String("db.table", table))
	}
}

func WithDBSystem(system string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.system", system))
	}
}

// WithDBStatement sets the query text. Parameter values are never recorded.
func WithDBStatement(statement string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.statement", statement))
	}
}

func WithDBName(name string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.name", name))
	}
}

// WithDocumentID sets the id of the document an operation addresses.
func WithDocumentID(id string) DatabaseSpanOption {
	return func(opts *databaseSpanOptions) {
		opts.attributes = append(opts.attributes, attribute.String("db.cosmosdb.item_id", id))
	}
}

// RecordRequestCharge adds the request units consumed by an operation.
func RecordRequestCharge(span trace.Span, charge float32) {
	span.SetAttributes(attribute.Float64("db.cosmosdb.request_charge", float64(charge)))
}

// RecordError records err on span and marks it failed. A nil err is ignored.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// RecordSuccess sets the span status to OK.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}
