package document

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/nimburion/cosmoskit/pkg/store/cosmosdb"
)

type call struct {
	op        string
	container string
	id        string
	pk        azcosmos.PartitionKey
	body      []byte
	query     Query
}

// fakeExecutor records calls and answers them from scripted results.
type fakeExecutor struct {
	mu      sync.Mutex
	allowed cosmosdb.AllowList
	calls   []call

	upsertErrs []error
	createErr  error
	createBody []byte
	readErr    error
	readBody   []byte
	deleteErr  error
	pages      []cosmosdb.QueryPage
	pageErr    error
	charge     float32
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{allowed: cosmosdb.NewAllowList(cosmosdb.DefaultAllowedContainers()...), charge: 1}
}

func (f *fakeExecutor) record(c call) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
}

func (f *fakeExecutor) callsOf(op string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.op == op {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeExecutor) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeExecutor) DatabaseID() string { return "towbook-dev" }

func (f *fakeExecutor) ValidateContainerName(name string) error {
	return f.allowed.Validate(name)
}

func (f *fakeExecutor) PartitionKeyFor(_ context.Context, container string, document []byte) (azcosmos.PartitionKey, error) {
	path := "/companyId"
	if container == "activity-log" {
		path = "/partitionKey"
	}
	return cosmosdb.PartitionKeyAt(document, path)
}

func (f *fakeExecutor) CreateItem(_ context.Context, container string, pk azcosmos.PartitionKey, item []byte) (cosmosdb.ItemResult, error) {
	f.record(call{op: "create", container: container, pk: pk, body: item})
	if f.createErr != nil {
		return cosmosdb.ItemResult{}, f.createErr
	}
	return cosmosdb.ItemResult{Value: f.createBody, RequestCharge: f.charge}, nil
}

func (f *fakeExecutor) UpsertItem(_ context.Context, container string, pk azcosmos.PartitionKey, item []byte) (cosmosdb.ItemResult, error) {
	f.record(call{op: "upsert", container: container, pk: pk, body: item})
	f.mu.Lock()
	var err error
	if len(f.upsertErrs) > 0 {
		err = f.upsertErrs[0]
		f.upsertErrs = f.upsertErrs[1:]
	}
	f.mu.Unlock()
	if err != nil {
		return cosmosdb.ItemResult{}, err
	}
	return cosmosdb.ItemResult{RequestCharge: f.charge}, nil
}

func (f *fakeExecutor) ReadItem(_ context.Context, container string, pk azcosmos.PartitionKey, id string) (cosmosdb.ItemResult, error) {
	f.record(call{op: "read", container: container, pk: pk, id: id})
	if f.readErr != nil {
		return cosmosdb.ItemResult{}, f.readErr
	}
	return cosmosdb.ItemResult{Value: f.readBody, RequestCharge: f.charge}, nil
}

func (f *fakeExecutor) DeleteItem(_ context.Context, container string, pk azcosmos.PartitionKey, id string) (cosmosdb.ItemResult, error) {
	f.record(call{op: "delete", container: container, pk: pk, id: id})
	if f.deleteErr != nil {
		return cosmosdb.ItemResult{}, f.deleteErr
	}
	return cosmosdb.ItemResult{RequestCharge: f.charge}, nil
}

func (f *fakeExecutor) Query(container string, query Query, pk azcosmos.PartitionKey) (Pager, error) {
	f.record(call{op: "query", container: container, pk: pk, query: query})
	return &fakePager{pages: f.pages, err: f.pageErr}, nil
}

type fakePager struct {
	pages []cosmosdb.QueryPage
	err   error
	read  int
}

func (p *fakePager) More() bool {
	return p.read < len(p.pages) || (p.err != nil && p.read == len(p.pages))
}

func (p *fakePager) NextPage(context.Context) (cosmosdb.QueryPage, error) {
	if p.read == len(p.pages) {
		p.read++
		return cosmosdb.QueryPage{}, p.err
	}
	page := p.pages[p.read]
	p.read++
	return page, nil
}

func serviceError(status, subStatus int) error {
	header := http.Header{}
	header.Set(cosmosdb.SubStatusHeader, strconv.Itoa(subStatus))
	return &azcore.ResponseError{
		StatusCode:  status,
		RawResponse: &http.Response{
			StatusCode: status,
			Header:     header,
			Body:       http.NoBody,
			Request:    httptest.NewRequest(http.MethodPost, "https://localhost:8081/dbs/towbook-dev/colls/calls/docs", nil),
		},
	}
}

func page(items ...string) cosmosdb.QueryPage {
	p := cosmosdb.QueryPage{RequestCharge: 2}
	for _, item := range items {
		p.Items = append(p.Items, []byte(item))
	}
	return p
}
