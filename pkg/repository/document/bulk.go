package document

import (
	"context"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/data/azcosmos"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// UpsertBulk upserts items concurrently, bounded by BulkConcurrency and BulkRateLimit.
// partitionKey selects each item's key; when nil the key is read from the encoded
// document. Items are not retried. The first failure cancels the remaining requests
// and is returned.
func (r *Repository[T]) UpsertBulk(ctx context.Context, container string, items []T, partitionKey func(T) azcosmos.PartitionKey) error {
	if err := r.exec.ValidateContainerName(container); err != nil {
		return err
	}

	start := time.Now()
	log := r.log.WithContext(ctx)
	log.Info("bulk upsert started", "container", container, "items", len(items))

	limit := rate.Inf
	if r.bulkRateLimit > 0 {
		limit = rate.Limit(r.bulkRateLimit)
	}
	limiter := rate.NewLimiter(limit, r.bulkConcurrency)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.bulkConcurrency)

	for _, item := range items {
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			if partitionKey == nil {
				return r.Upsert(gctx, container, item)
			}
			return r.UpsertWithPartitionKeyNoRetry(gctx, container, item, partitionKey(item))
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	elapsed := time.Since(start)
	if err != nil {
		log.Error("bulk upsert failed", "container", container, "items", len(items), "elapsed_ms", elapsed.Milliseconds(), "error", err)
		return err
	}
	log.Info("bulk upsert finished", "container", container, "items", len(items), "elapsed_ms", elapsed.Milliseconds())
	return nil
}
