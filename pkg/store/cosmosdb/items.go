package cosmosdb

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/runtime"
	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
)

// ItemResult is the outcome of a single item request.
type ItemResult struct {
	Value         []byte
	RequestCharge float32
	ActivityID    string
}

func itemResult(resp azcosmos.ItemResponse) ItemResult {
	return ItemResult{
		Value:         resp.Value,
		RequestCharge: resp.RequestCharge,
		ActivityID:    resp.ActivityID,
	}
}

// container resolves an allowed container. It never touches the network.
func (a *Adapter) container(name string) (*azcosmos.ContainerClient, error) {
	if err := a.ValidateContainerName(name); err != nil {
		return nil, err
	}
	if err := a.ensureOpen(); err != nil {
		return nil, err
	}
	c, err := a.database.NewContainer(name)
	if err != nil {
		return nil, fmt.Errorf("failed to open container %s: %w", name, err)
	}
	return c, nil
}

// CreateItem inserts item, failing with a 409 conflict when the id already exists.
func (a *Adapter) CreateItem(ctx context.Context, container string, pk azcosmos.PartitionKey, item []byte) (ItemResult, error) {
	c, err := a.container(container)
	if err != nil {
		return ItemResult{}, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := c.CreateItem(opCtx, pk, item, &azcosmos.ItemOptions{EnableContentResponseOnWrite: true})
	if err != nil {
		return ItemResult{}, err
	}
	return itemResult(resp), nil
}

// UpsertItem inserts or replaces item. The stored document is not echoed back.
func (a *Adapter) UpsertItem(ctx context.Context, container string, pk azcosmos.PartitionKey, item []byte) (ItemResult, error) {
	c, err := a.container(container)
	if err != nil {
		return ItemResult{}, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := c.UpsertItem(opCtx, pk, item, &azcosmos.ItemOptions{EnableContentResponseOnWrite: false})
	if err != nil {
		return ItemResult{}, err
	}
	return itemResult(resp), nil
}

func (a *Adapter) ReadItem(ctx context.Context, container string, pk azcosmos.PartitionKey, id string) (ItemResult, error) {
	c, err := a.container(container)
	if err != nil {
		return ItemResult{}, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := c.ReadItem(opCtx, pk, id, nil)
	if err != nil {
		return ItemResult{}, err
	}
	return itemResult(resp), nil
}

func (a *Adapter) DeleteItem(ctx context.Context, container string, pk azcosmos.PartitionKey, id string) (ItemResult, error) {
	c, err := a.container(container)
	if err != nil {
		return ItemResult{}, err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := c.DeleteItem(opCtx, pk, id, &azcosmos.ItemOptions{EnableContentResponseOnWrite: false})
	if err != nil {
		return ItemResult{}, err
	}
	return itemResult(resp), nil
}

// QueryPage is one page of query results.
type QueryPage struct {
	Items             [][]byte
	RequestCharge     float32
	ContinuationToken string
}

// ItemPager walks the pages of a query. The SDK pager follows continuation tokens.
type ItemPager struct {
	pager   *runtime.Pager[azcosmos.QueryItemsResponse]
	adapter *Adapter
}

func (p *ItemPager) More() bool {
	return p.pager.More()
}

func (p *ItemPager) NextPage(ctx context.Context) (QueryPage, error) {
	if err := p.adapter.ensureOpen(); err != nil {
		return QueryPage{}, err
	}
	opCtx, cancel := p.adapter.withOperationTimeout(ctx)
	defer cancel()

	resp, err := p.pager.NextPage(opCtx)
	if err != nil {
		return QueryPage{}, err
	}
	page := QueryPage{Items: resp.Items, RequestCharge: resp.RequestCharge}
	if resp.ContinuationToken != nil {
		page.ContinuationToken = *resp.ContinuationToken
	}
	return page, nil
}

// NewQueryPager prepares query against container. The query text is passed through unchanged;
// an empty partition key (azcosmos.NewPartitionKey()) runs it across partitions.
func (a *Adapter) NewQueryPager(container, query string, params []azcosmos.QueryParameter, pk azcosmos.PartitionKey) (*ItemPager, error) {
	c, err := a.container(container)
	if err != nil {
		return nil, err
	}
	var opts *azcosmos.QueryOptions
	if len(params) > 0 {
		opts = &azcosmos.QueryOptions{QueryParameters: params}
	}
	return &ItemPager{pager: c.NewQueryItemsPager(query, pk, opts), adapter: a}, nil
}
