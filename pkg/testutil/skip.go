package testutil

import (
	"os"
	"strings"
	"testing"
)

// EmulatorEndpointEnv points integration tests at an already running emulator
// instead of starting a container.
const EmulatorEndpointEnv = "COSMOSKIT_TEST_COSMOS_ENDPOINT"

// RequireIntegration skips emulator tests in short mode and, on CI, unless
// INTEGRATION_TESTS is set or an emulator endpoint is provided.
func RequireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping Cosmos DB emulator test in short mode")
	}
	if os.Getenv("CI") == "" || os.Getenv("INTEGRATION_TESTS") != "" {
		return
	}
	if ExternalEmulatorEndpoint() == "" {
		t.Skipf("skipping Cosmos DB emulator test on CI (set INTEGRATION_TESTS=1 or %s)", EmulatorEndpointEnv)
	}
}

// ExternalEmulatorEndpoint returns the endpoint set in EmulatorEndpointEnv, or "".
func ExternalEmulatorEndpoint() string {
	return strings.TrimSpace(os.Getenv(EmulatorEndpointEnv))
}
