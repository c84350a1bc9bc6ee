package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()

	spanRecorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(spanRecorder),
	)
	otel.SetTracerProvider(provider)

	return spanRecorder
}

func TestStartDatabaseSpan(t *testing.T) {
	recorder := setupTestTracer(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		operation     SpanOperation
		opts          []DatabaseSpanOption
		expectedName  string
		expectedAttrs map[string]interface{}
	}{
		{
			name:         "query without options",
			operation:    SpanOperationDBQuery,
			expectedName: "DB db.query",
			expectedAttrs: map[string]interface{}{
				"db.operation": "db.query",
			},
		},
		{
			name:      "read with container",
			operation: SpanOperationDBRead,
			opts: []DatabaseSpanOption{
				WithDBTable("calls"),
				WithDocumentID("42"),
			},
			expectedName: "DB db.read calls",
			expectedAttrs: map[string]interface{}{
				"db.operation":        "db.read",
				"db.table":            "calls",
				"db.cosmosdb.item_id": "42",
			},
		},
		{
			name:      "query with all options",
			operation: SpanOperationDBQuery,
			opts: []DatabaseSpanOption{
				WithDBTable("quotes"),
				WithDBSystem(DBSystemCosmos),
				WithDBStatement("SELECT * FROM c WHERE c.companyId = @companyId"),
				WithDBName("towbook-dev"),
			},
			expectedName: "DB db.query quotes",
			expectedAttrs: map[string]interface{}{
				"db.operation": "db.query",
				"db.table":     "quotes",
				"db.system":    "cosmosdb",
				"db.statement": "SELECT * FROM c WHERE c.companyId = @companyId",
				"db.name":      "towbook-dev",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder.Reset()

			_, span := StartDatabaseSpan(ctx, tt.operation, tt.opts...)
			if span == nil {
				t.Fatal("expected span to be non-nil")
			}
			span.End()

			spans := recorder.Ended()
			if len(spans) != 1 {
				t.Fatalf("expected 1 span, got %d", len(spans))
			}

			recordedSpan := spans[0]
			if recordedSpan.Name() != tt.expectedName {
				t.Errorf("expected span name %q, got %q", tt.expectedName, recordedSpan.Name())
			}

			attrs := recordedSpan.Attributes()
			for key, expectedValue := range tt.expectedAttrs {
				found := false
				for _, attr := range attrs {
					if string(attr.Key) == key {
						found = true
						if attr.Value.AsInterface() != expectedValue {
							t.Errorf("expected attribute %s=%v, got %v", key, expectedValue, attr.Value.AsInterface())
						}
						break
					}
				}
				if !found {
					t.Errorf("expected attribute %s not found", key)
				}
			}
		})
	}
}

func TestRecordRequestCharge(t *testing.T) {
	recorder := setupTestTracer(t)

	_, span := StartDatabaseSpan(context.Background(), SpanOperationDBUpsert, WithDBTable("calls"))
	RecordRequestCharge(span, 6.5)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	for _, attr := range spans[0].Attributes() {
		if attr.Key == "db.cosmosdb.request_charge" {
			if attr.Value.AsFloat64() != 6.5 {
				t.Fatalf("expected 6.5, got %v", attr.Value.AsFloat64())
			}
			return
		}
	}
	t.Fatal("request charge attribute not found")
}

func TestRecordError(t *testing.T) {
	recorder := setupTestTracer(t)

	_, span := otel.Tracer("test").Start(context.Background(), "test-span")
	testErr := errors.New("test error")
	RecordError(span, testErr)
	RecordError(span, nil)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	recordedSpan := spans[0]
	events := recordedSpan.Events()
	if len(events) != 1 {
		t.Fatalf("expected 1 event (error), got %d", len(events))
	}
	if events[0].Name != "exception" {
		t.Errorf("expected event name 'exception', got %q", events[0].Name)
	}
	if recordedSpan.Status().Code != codes.Error {
		t.Errorf("expected span status Error, got %v", recordedSpan.Status().Code)
	}
	if recordedSpan.Status().Description != testErr.Error() {
		t.Errorf("expected span status description %q, got %q", testErr.Error(), recordedSpan.Status().Description)
	}
}

func TestRecordSuccess(t *testing.T) {
	recorder := setupTestTracer(t)

	_, span := otel.Tracer("test").Start(context.Background(), "test-span")
	RecordSuccess(span)
	span.End()

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Ok {
		t.Errorf("expected span status Ok, got %v", spans[0].Status().Code)
	}
}
