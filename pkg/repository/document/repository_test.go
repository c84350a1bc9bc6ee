package document

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/google/uuid"
	"github.com/nimburion/cosmoskit/pkg/observability/metrics"
	"github.com/nimburion/cosmoskit/pkg/store/cosmosdb"
	"github.com/nimburion/cosmoskit/pkg/testutil"
)

type CallModel struct {
	ID        int
	CompanyID int `json:"companyId"`
	Status    string
	Channels  []string
}

func newTestRepository(t *testing.T, exec Executor, opts Options) (*Repository[CallModel], *testutil.MockLogger) {
	t.Helper()
	log := &testutil.MockLogger{}
	opts.Logger = log
	if opts.UpsertRetryDelay == 0 {
		opts.UpsertRetryDelay = time.Millisecond
	}
	repo, err := New[CallModel](exec, opts)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return repo, log
}

func counterValue(t *testing.T, reg *metrics.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	var total float64
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestNew_RequiresExecutor(t *testing.T) {
	if _, err := New[CallModel](nil, Options{}); err == nil {
		t.Fatal("expected error for nil executor")
	}
	if _, err := NewCosmosExecutor(nil); err == nil {
		t.Fatal("expected error for nil adapter")
	}
}

func TestInsert(t *testing.T) {
	exec := newFakeExecutor()
	exec.createBody = []byte(`{"id":"42","companyId":7,"status":"stored"}`)
	repo, _ := newTestRepository(t, exec, Options{})

	stored, err := repo.Insert(context.Background(), "calls", CallModel{ID: 42, CompanyID: 7, Status: "new", Channels: []string{"sms"}})
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if stored.Status != "stored" || stored.ID != 42 {
		t.Fatalf("expected the stored document, got %+v", stored)
	}

	creates := exec.callsOf("create")
	if len(creates) != 1 {
		t.Fatalf("expected 1 create, got %d", len(creates))
	}
	if !reflect.DeepEqual(creates[0].pk, cosmosdb.IntPartitionKey(7)) {
		t.Fatalf("expected partition key from companyId, got %+v", creates[0].pk)
	}
	body := string(creates[0].body)
	if !strings.Contains(body, `"id":"42"`) || strings.Contains(body, "channels") {
		t.Fatalf("expected document encoded with the call rules, got %s", body)
	}
}

func TestInsert_ConflictIsReturned(t *testing.T) {
	exec := newFakeExecutor()
	exec.createErr = serviceError(http.StatusConflict, 0)
	repo, _ := newTestRepository(t, exec, Options{})

	if _, err := repo.Insert(context.Background(), "calls", CallModel{ID: 1, CompanyID: 1}); !cosmosdb.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestUpsert_MissingPartitionKey(t *testing.T) {
	exec := newFakeExecutor()
	repo, _ := newTestRepository(t, exec, Options{})

	err := repo.Upsert(context.Background(), "activity-log", CallModel{ID: 1})
	if !errors.Is(err, cosmosdb.ErrPartitionKeyMissing) {
		t.Fatalf("expected ErrPartitionKeyMissing, got %v", err)
	}
	if exec.totalCalls() != 0 {
		t.Fatalf("expected no request, got %d", exec.totalCalls())
	}
}

func TestOperations_RejectUnexpectedContainerBeforeAnyRequest(t *testing.T) {
	exec := newFakeExecutor()
	repo, log := newTestRepository(t, exec, Options{})
	ctx := context.Background()
	pk := cosmosdb.IntPartitionKey(1)
	item := CallModel{ID: 1, CompanyID: 1}

	ops := map[string]func() error{
		"insert":  func() error { _, err := repo.Insert(ctx, "users", item); return err },
		"upsert":  func() error { return repo.Upsert(ctx, "users", item) },
		"upsertk": func() error { return repo.UpsertWithPartitionKey(ctx, "users", item, pk) },
		"noretry": func() error { return repo.UpsertWithPartitionKeyNoRetry(ctx, "users", item, pk) },
		"bulk":    func() error { return repo.UpsertBulk(ctx, "users", []CallModel{item}, nil) },
		"delete":  func() error { return repo.Delete(ctx, "users", "1", pk) },
		"deleten": func() error { return repo.DeleteByNumber(ctx, "users", "1", 1) },
		"get":     func() error { _, err := repo.Get(ctx, "users", "1", pk); return err },
		"query":   func() error { _, err := repo.Query(ctx, "users", NewQuery("SELECT * FROM c")); return err },
		"querypk": func() error { _, err := repo.QueryPartition(ctx, "users", NewQuery("SELECT * FROM c"), "1"); return err },
		"scalar":  func() error { _, err := repo.QueryScalar(ctx, "users", NewQuery("SELECT * FROM c"), ""); return err },
	}
	for name, op := range ops {
		if err := op(); !errors.Is(err, cosmosdb.ErrUnexpectedContainer) {
			t.Fatalf("%s: expected ErrUnexpectedContainer, got %v", name, err)
		}
	}
	if exec.totalCalls() != 0 {
		t.Fatalf("expected no requests, got %d", exec.totalCalls())
	}
	if len(log.Entries("")) != 0 {
		t.Fatalf("rejections are returned, not logged: %+v", log.Entries(""))
	}
}

func TestUpsertWithPartitionKey_RetriesOnceOnSubStatus3200(t *testing.T) {
	reg := metrics.NewRegistry()
	exec := newFakeExecutor()
	exec.upsertErrs = []error{serviceError(http.StatusTooManyRequests, 3200)}
	repo, log := newTestRepository(t, exec, Options{Metrics: reg.Cosmos()})

	if err := repo.UpsertWithPartitionKey(context.Background(), "calls", CallModel{ID: 1, CompanyID: 3}, cosmosdb.IntPartitionKey(3)); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if n := len(exec.callsOf("upsert")); n != 2 {
		t.Fatalf("expected 2 upserts, got %d", n)
	}
	if got := counterValue(t, reg, "cosmos_upsert_retries_total"); got != 1 {
		t.Fatalf("expected 1 recorded retry, got %v", got)
	}
	if len(log.Entries("warn")) != 1 {
		t.Fatalf("expected the retry to be logged, got %+v", log.Entries(""))
	}
}

func TestUpsertWithPartitionKey_SurfacesSecondFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.upsertErrs = []error{
		serviceError(http.StatusTooManyRequests, 3200),
		serviceError(http.StatusTooManyRequests, 3200),
		nil,
	}
	repo, _ := newTestRepository(t, exec, Options{UpsertRetryDelay: 20 * time.Millisecond})

	start := time.Now()
	err := repo.UpsertWithPartitionKey(context.Background(), "calls", CallModel{ID: 1, CompanyID: 3}, cosmosdb.IntPartitionKey(3))
	if cosmosdb.SubStatusCode(err) != 3200 {
		t.Fatalf("expected the 3200 failure to surface, got %v", err)
	}
	if n := len(exec.callsOf("upsert")); n != 2 {
		t.Fatalf("expected exactly 2 upserts, got %d", n)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Fatalf("expected the retry delay to be waited, took %v", elapsed)
	}
}

func TestUpsertWithPartitionKey_OtherFailuresAreNotRetried(t *testing.T) {
	exec := newFakeExecutor()
	exec.upsertErrs = []error{serviceError(http.StatusConflict, 0)}
	repo, _ := newTestRepository(t, exec, Options{})

	err := repo.UpsertWithPartitionKey(context.Background(), "calls", CallModel{ID: 1, CompanyID: 3}, cosmosdb.IntPartitionKey(3))
	if !cosmosdb.IsConflict(err) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if n := len(exec.callsOf("upsert")); n != 1 {
		t.Fatalf("expected 1 upsert, got %d", n)
	}
}

func TestUpsertWithPartitionKeyNoRetry(t *testing.T) {
	exec := newFakeExecutor()
	exec.upsertErrs = []error{serviceError(http.StatusTooManyRequests, 3200)}
	repo, _ := newTestRepository(t, exec, Options{})

	err := repo.UpsertWithPartitionKeyNoRetry(context.Background(), "calls", CallModel{ID: 1}, cosmosdb.IntPartitionKey(3))
	if cosmosdb.SubStatusCode(err) != 3200 {
		t.Fatalf("expected the 3200 failure, got %v", err)
	}
	if n := len(exec.callsOf("upsert")); n != 1 {
		t.Fatalf("expected 1 upsert, got %d", n)
	}
}

func TestDelete_SwallowsBackendFailures(t *testing.T) {
	reg := metrics.NewRegistry()
	exec := newFakeExecutor()
	exec.deleteErr = serviceError(http.StatusNotFound, 0)
	repo, log := newTestRepository(t, exec, Options{Metrics: reg.Cosmos()})

	if err := repo.Delete(context.Background(), "calls", "42", cosmosdb.IntPartitionKey(7)); err != nil {
		t.Fatalf("expected failure to be swallowed, got %v", err)
	}
	warns := log.Entries("warn")
	if len(warns) != 1 || warns[0].Fields["id"] != "42" || warns[0].Fields["status"] != http.StatusNotFound {
		t.Fatalf("expected a warning naming the document, got %+v", warns)
	}
	if got := counterValue(t, reg, "cosmos_operations_total"); got != 1 {
		t.Fatalf("expected the operation to be counted, got %v", got)
	}
}

func TestDeleteByNumber(t *testing.T) {
	exec := newFakeExecutor()
	repo, _ := newTestRepository(t, exec, Options{})

	if err := repo.DeleteByNumber(context.Background(), "quotes", "q-1", 12); err != nil {
		t.Fatalf("DeleteByNumber() error = %v", err)
	}
	deletes := exec.callsOf("delete")
	if len(deletes) != 1 || deletes[0].id != "q-1" || !reflect.DeepEqual(deletes[0].pk, cosmosdb.IntPartitionKey(12)) {
		t.Fatalf("unexpected delete calls %+v", deletes)
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		name     string
		readErr  error
		readBody string
		wantNil  bool
		logLevel string
	}{
		{name: "found", readBody: `{"id":"42","companyId":7,"status":"open"}`},
		{name: "not found", readErr: serviceError(http.StatusNotFound, 0), wantNil: true, logLevel: "debug"},
		{name: "service failure", readErr: serviceError(http.StatusServiceUnavailable, 0), wantNil: true, logLevel: "warn"},
		{name: "undecodable", readBody: `{"id":"not-a-number"}`, wantNil: true, logLevel: "warn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			exec.readErr = tt.readErr
			exec.readBody = []byte(tt.readBody)
			repo, log := newTestRepository(t, exec, Options{})

			got, err := repo.Get(context.Background(), "calls", "42", cosmosdb.IntPartitionKey(7))
			if err != nil {
				t.Fatalf("Get() must not return backend errors, got %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				if len(log.Entries(tt.logLevel)) != 1 {
					t.Fatalf("expected a %s log entry, got %+v", tt.logLevel, log.Entries(""))
				}
				return
			}
			if got == nil || got.ID != 42 || got.Status != "open" {
				t.Fatalf("unexpected document %+v", got)
			}
		})
	}
}

func TestQuery_DrainsAllPagesAcrossPartitions(t *testing.T) {
	exec := newFakeExecutor()
	exec.pages = []cosmosdb.QueryPage{
		page(`{"id":"1","companyId":1}`, `{"id":"2","companyId":1}`),
		page(`{"id":3,"companyId":2}`),
	}
	repo, _ := newTestRepository(t, exec, Options{})

	q := NewQuery("SELECT * FROM c WHERE c.status = @status").WithParameter("@status", "open")
	got, err := repo.Query(context.Background(), "calls", q)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	if len(got) != 3 || got[2].ID != 3 {
		t.Fatalf("unexpected results %+v", got)
	}

	queries := exec.callsOf("query")
	if len(queries) != 1 {
		t.Fatalf("expected 1 query, got %d", len(queries))
	}
	if !reflect.DeepEqual(queries[0].pk, cosmosdb.CrossPartition()) {
		t.Fatalf("expected cross-partition query, got %+v", queries[0].pk)
	}
	if queries[0].query.Text != q.Text || len(queries[0].query.Parameters) != 1 {
		t.Fatalf("query must be passed through unchanged, got %+v", queries[0].query)
	}
}

func TestQuery_PageErrorIsReturned(t *testing.T) {
	exec := newFakeExecutor()
	exec.pages = []cosmosdb.QueryPage{page(`{"id":"1"}`)}
	exec.pageErr = serviceError(http.StatusBadRequest, 0)
	repo, _ := newTestRepository(t, exec, Options{})

	if _, err := repo.Query(context.Background(), "calls", NewQuery("SELECT * FROM c")); cosmosdb.StatusCode(err) != http.StatusBadRequest {
		t.Fatalf("expected the page error, got %v", err)
	}
}

func TestQueryPartition(t *testing.T) {
	exec := newFakeExecutor()
	exec.pages = []cosmosdb.QueryPage{page(`{"id":"1","companyId":12}`)}
	repo, _ := newTestRepository(t, exec, Options{})
	ctx := context.Background()

	if _, err := repo.QueryPartition(ctx, "calls", NewQuery("SELECT * FROM c"), "12"); err != nil {
		t.Fatalf("QueryPartition() error = %v", err)
	}
	if _, err := repo.QueryPartition(ctx, "calls", NewQuery("SELECT * FROM c"), ""); err != nil {
		t.Fatalf("QueryPartition() error = %v", err)
	}
	if _, err := repo.QueryPartition(ctx, "calls", NewQuery("SELECT * FROM c"), "twelve"); err == nil {
		t.Fatal("expected error for non-numeric partition key")
	}

	queries := exec.callsOf("query")
	if len(queries) != 2 {
		t.Fatalf("expected 2 queries, got %d", len(queries))
	}
	if !reflect.DeepEqual(queries[0].pk, cosmosdb.IntPartitionKey(12)) {
		t.Fatalf("expected numeric partition key, got %+v", queries[0].pk)
	}
	if !reflect.DeepEqual(queries[1].pk, cosmosdb.CrossPartition()) {
		t.Fatalf("expected cross-partition query, got %+v", queries[1].pk)
	}
}

func TestQueryScalar(t *testing.T) {
	tests := []struct {
		name    string
		pages   []cosmosdb.QueryPage
		wantID  int
		wantNil bool
		wantErr error
	}{
		{name: "no pages", wantNil: true},
		{name: "empty first page", pages: []cosmosdb.QueryPage{page(), page(`{"id":"9"}`)}, wantNil: true},
		{name: "single item", pages: []cosmosdb.QueryPage{page(`{"id":"5"}`), page(`{"id":"6"}`)}, wantID: 5},
		{name: "many items", pages: []cosmosdb.QueryPage{page(`{"id":"5"}`, `{"id":"6"}`)}, wantErr: ErrMultipleResults},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := newFakeExecutor()
			exec.pages = tt.pages
			repo, _ := newTestRepository(t, exec, Options{})

			got, err := repo.QueryScalar(context.Background(), "calls", NewQuery("SELECT * FROM c"), "1")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("QueryScalar() error = %v", err)
			}
			if tt.wantNil {
				if got != nil {
					t.Fatalf("expected nil, got %+v", got)
				}
				return
			}
			if got == nil || got.ID != tt.wantID {
				t.Fatalf("expected id %d, got %+v", tt.wantID, got)
			}
		})
	}
}

func TestUpsertBulk(t *testing.T) {
	exec := newFakeExecutor()
	repo, log := newTestRepository(t, exec, Options{BulkConcurrency: 4, BulkRateLimit: 1000})

	items := make([]CallModel, 25)
	for i := range items {
		items[i] = CallModel{ID: i + 1, CompanyID: i % 3}
	}
	err := repo.UpsertBulk(context.Background(), "calls", items, func(c CallModel) azcosmos.PartitionKey {
		return cosmosdb.IntPartitionKey(c.CompanyID)
	})
	if err != nil {
		t.Fatalf("UpsertBulk() error = %v", err)
	}
	if n := len(exec.callsOf("upsert")); n != len(items) {
		t.Fatalf("expected %d upserts, got %d", len(items), n)
	}
	infos := log.Entries("info")
	if len(infos) != 2 || infos[1].Fields["items"] != len(items) {
		t.Fatalf("expected start and finish log entries, got %+v", infos)
	}
	if _, ok := infos[1].Fields["elapsed_ms"]; !ok {
		t.Fatal("expected elapsed time to be logged")
	}
}

func TestUpsertBulk_ReturnsFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.upsertErrs = []error{serviceError(http.StatusRequestEntityTooLarge, 0)}
	repo, log := newTestRepository(t, exec, Options{BulkConcurrency: 1})

	items := []CallModel{{ID: 1, CompanyID: 1}, {ID: 2, CompanyID: 1}}
	if err := repo.UpsertBulk(context.Background(), "calls", items, nil); cosmosdb.StatusCode(err) != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected the upsert failure, got %v", err)
	}
	if len(log.Entries("error")) != 1 {
		t.Fatalf("expected the failure to be logged, got %+v", log.Entries(""))
	}
}

func TestQuery_WithParameterDoesNotShareState(t *testing.T) {
	base := NewQuery("SELECT * FROM c WHERE c.companyId = @companyId AND c.status = @status").
		WithParameter("@companyId", 7)
	open := base.WithParameter("@status", "open")
	closed := base.WithParameter("@status", "closed")

	if len(base.Parameters) != 1 {
		t.Fatalf("base query must keep one parameter, got %d", len(base.Parameters))
	}
	if open.Parameters[1].Value != "open" || closed.Parameters[1].Value != "closed" {
		t.Fatalf("derived queries share parameters: %+v %+v", open.Parameters, closed.Parameters)
	}
	if params := open.sdkParameters(); len(params) != 2 || params[0].Name != "@companyId" {
		t.Fatalf("unexpected sdk parameters %+v", params)
	}
	if NewQuery("SELECT 1").sdkParameters() != nil {
		t.Fatal("expected nil parameters without WithParameter")
	}
}

func TestNewID(t *testing.T) {
	id := NewID()
	if _, err := uuid.Parse(id); err != nil {
		t.Fatalf("expected a UUID, got %q", id)
	}
	if id == NewID() {
		t.Fatal("expected distinct ids")
	}
}
