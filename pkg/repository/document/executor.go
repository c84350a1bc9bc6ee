package document

import (
	"context"
	"errors"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"github.com/nimburion/cosmoskit/pkg/store/cosmosdb"
)

// Pager walks the pages of a query.
type Pager interface {
	More() bool
	NextPage(ctx context.Context) (cosmosdb.QueryPage, error)
}

// Executor is the byte-level contract a Repository runs on.
type Executor interface {
	DatabaseID() string
	ValidateContainerName(name string) error
	PartitionKeyFor(ctx context.Context, container string, document []byte) (azcosmos.PartitionKey, error)
	CreateItem(ctx context.Context, container string, pk azcosmos.PartitionKey, item []byte) (cosmosdb.ItemResult, error)
	UpsertItem(ctx context.Context, container string, pk azcosmos.PartitionKey, item []byte) (cosmosdb.ItemResult, error)
	ReadItem(ctx context.Context, container string, pk azcosmos.PartitionKey, id string) (cosmosdb.ItemResult, error)
	DeleteItem(ctx context.Context, container string, pk azcosmos.PartitionKey, id string) (cosmosdb.ItemResult, error)
	Query(container string, query Query, pk azcosmos.PartitionKey) (Pager, error)
}

// CosmosExecutor adapts store/cosmosdb to the Executor contract.
type CosmosExecutor struct {
	*cosmosdb.Adapter
}

func NewCosmosExecutor(adapter *cosmosdb.Adapter) (*CosmosExecutor, error) {
	if adapter == nil {
		return nil, errors.New("cosmosdb adapter is required")
	}
	return &CosmosExecutor{Adapter: adapter}, nil
}

// Query prepares a pager for query on container.
func (e *CosmosExecutor) Query(container string, query Query, pk azcosmos.PartitionKey) (Pager, error) {
	pager, err := e.NewQueryPager(container, query.Text, query.sdkParameters(), pk)
	if err != nil {
		return nil, err
	}
	return pager, nil
}
