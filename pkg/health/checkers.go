package health

import (
	"context"
	"time"
)

// Checkable is implemented by adapters that can verify their backend.
type Checkable interface {
	HealthCheck(ctx context.Context) error
}

// AdapterChecker turns a Checkable into a Checker with its own timeout.
type AdapterChecker struct {
	name     string
	adapter  Checkable
	timeout  time.Duration
	metadata map[string]interface{}
}

// NewAdapterChecker wraps adapter. A zero timeout means 5 seconds.
func NewAdapterChecker(name string, adapter Checkable, timeout time.Duration) *AdapterChecker {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &AdapterChecker{
		name:    name,
		adapter: adapter,
		timeout: timeout,
	}
}

// NewDatabaseChecker wraps a database adapter with a 5 second timeout and
// reports the endpoint and database in the result metadata.
func NewDatabaseChecker(name string, db Checkable, endpoint, database string) *AdapterChecker {
	c := NewAdapterChecker(name, db, 5*time.Second)
	c.metadata = map[string]interface{}{
		"endpoint": endpoint,
		"database": database,
	}
	return c
}

func (c *AdapterChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()

	checkCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	err := c.adapter.HealthCheck(checkCtx)
	result := CheckResult{
		Name:      c.name,
		Status:    StatusHealthy,
		Message:   "OK",
		Timestamp: time.Now(),
		Duration:  time.Since(start),
		Metadata:  c.metadata,
	}
	if err != nil {
		result.Status = StatusUnhealthy
		result.Message = ""
		result.Error = err.Error()
	}
	return result
}

func (c *AdapterChecker) Name() string {
	return c.name
}

// CustomChecker builds a checker from a function returning (status, message, error).
type CustomChecker struct {
	name      string
	checkFunc func(ctx context.Context) (Status, string, error)
}

func NewCustomChecker(name string, checkFunc func(ctx context.Context) (Status, string, error)) *CustomChecker {
	return &CustomChecker{
		name:      name,
		checkFunc: checkFunc,
	}
}

func (c *CustomChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	status, message, err := c.checkFunc(ctx)

	result := CheckResult{
		Name:      c.name,
		Status:    status,
		Message:   message,
		Timestamp: time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
	}
	return result
}

func (c *CustomChecker) Name() string {
	return c.name
}
