package cosmosdb

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	jsoniter "github.com/json-iterator/go"
)

// CrossPartition is the empty partition key that runs a query over every partition.
func CrossPartition() azcosmos.PartitionKey {
	return azcosmos.NewPartitionKey()
}

func IntPartitionKey(value int) azcosmos.PartitionKey {
	return azcosmos.NewPartitionKeyNumber(float64(value))
}

func StringPartitionKey(value string) azcosmos.PartitionKey {
	return azcosmos.NewPartitionKeyString(value)
}

// NumericPartitionKey parses value as a number. An empty value selects every partition.
func NumericPartitionKey(value string) (azcosmos.PartitionKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return CrossPartition(), nil
	}
	n, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return azcosmos.PartitionKey{}, fmt.Errorf("partition key %q is not numeric: %w", value, err)
	}
	return azcosmos.NewPartitionKeyNumber(n), nil
}

// PartitionKeyPath returns the partition key path of container. Paths come from the
// configured container specs or are read once from the container properties.
func (a *Adapter) PartitionKeyPath(ctx context.Context, container string) (string, error) {
	if err := a.ValidateContainerName(container); err != nil {
		return "", err
	}
	if path, ok := a.paths.Load(container); ok {
		return path.(string), nil
	}

	c, err := a.container(container)
	if err != nil {
		return "", err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := c.Read(opCtx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to read container %s: %w", container, err)
	}
	if resp.ContainerProperties == nil || len(resp.ContainerProperties.PartitionKeyDefinition.Paths) == 0 {
		return "", fmt.Errorf("container %s has no partition key path", container)
	}
	path := resp.ContainerProperties.PartitionKeyDefinition.Paths[0]
	a.paths.Store(container, path)
	return path, nil
}

// PartitionKeyFor extracts the partition key of an encoded document of container.
func (a *Adapter) PartitionKeyFor(ctx context.Context, container string, document []byte) (azcosmos.PartitionKey, error) {
	path, err := a.PartitionKeyPath(ctx, container)
	if err != nil {
		return azcosmos.PartitionKey{}, err
	}
	return PartitionKeyAt(document, path)
}

// PartitionKeyAt reads the value at path ("/companyId", "/address/zip") from an
// encoded document. Strings, numbers and booleans are supported.
func PartitionKeyAt(document []byte, path string) (azcosmos.PartitionKey, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	keys := make([]interface{}, len(segments))
	for i, s := range segments {
		keys[i] = s
	}

	value := jsoniter.Get(document, keys...)
	switch value.ValueType() {
	case jsoniter.StringValue:
		return azcosmos.NewPartitionKeyString(value.ToString()), nil
	case jsoniter.NumberValue:
		return azcosmos.NewPartitionKeyNumber(value.ToFloat64()), nil
	case jsoniter.BoolValue:
		return azcosmos.NewPartitionKeyBool(value.ToBool()), nil
	default:
		return azcosmos.PartitionKey{}, fmt.Errorf("%w at %s", ErrPartitionKeyMissing, path)
	}
}
