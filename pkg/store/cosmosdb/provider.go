package cosmosdb

import (
	"sync"

	"github.com/nimburion/cosmoskit/pkg/observability/logger"
)

// Provider hands out one lazily connected Adapter. The first call connects;
// every later or concurrent call observes the same adapter or the same error.
type Provider struct {
	get func() (*Adapter, error)
}

func NewProvider(cfg Config, log logger.Logger) *Provider {
	return newProvider(func() (*Adapter, error) {
		return NewAdapter(cfg, log)
	})
}

func newProvider(connect func() (*Adapter, error)) *Provider {
	return &Provider{get: sync.OnceValues(connect)}
}

// Adapter returns the shared adapter, connecting on first use.
func (p *Provider) Adapter() (*Adapter, error) {
	return p.get()
}

var (
	sharedOnce     sync.Once
	sharedProvider *Provider
)

// Shared returns the process-wide provider. The configuration of the first call wins.
func Shared(cfg Config, log logger.Logger) *Provider {
	sharedOnce.Do(func() {
		sharedProvider = NewProvider(cfg, log)
	})
	return sharedProvider
}
