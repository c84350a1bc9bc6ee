package cosmosdb

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
)

var (
	// ErrAdapterClosed is returned by every operation after Close.
	ErrAdapterClosed = errors.New("cosmosdb adapter is closed")
	// ErrUnexpectedContainer is returned for container names outside the allow-list.
	ErrUnexpectedContainer = errors.New("unexpected container name")
	// ErrPartitionKeyMissing is returned when a document has no value at its container's partition path.
	ErrPartitionKeyMissing = errors.New("partition key value missing")
)

// SubStatusHeader carries the service sub-status code of a failed request.
const SubStatusHeader = "x-ms-substatus"

// SubStatusRetryableUpsert is the sub-status a partitioned upsert retries once on.
const SubStatusRetryableUpsert = 3200

// StatusCode returns the HTTP status of a service error, or 0 when err did not come from the service.
func StatusCode(err error) int {
	var respErr *azcore.ResponseError
	if errors.As(err, &respErr) {
		return respErr.StatusCode
	}
	return 0
}

// SubStatusCode returns the x-ms-substatus value of a service error, or 0.
func SubStatusCode(err error) int {
	var respErr *azcore.ResponseError
	if !errors.As(err, &respErr) || respErr.RawResponse == nil {
		return 0
	}
	raw := strings.TrimSpace(respErr.RawResponse.Header.Get(SubStatusHeader))
	if raw == "" {
		return 0
	}
	code, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return code
}

func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

func IsConflict(err error) bool {
	return StatusCode(err) == http.StatusConflict
}

// IsThrottled reports a request rejected for exceeding provisioned throughput.
func IsThrottled(err error) bool {
	return StatusCode(err) == http.StatusTooManyRequests
}
