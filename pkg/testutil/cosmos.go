package testutil

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// CosmosEmulatorImage is the Linux Cosmos DB emulator image used by integration tests.
const CosmosEmulatorImage = "mcr.microsoft.com/cosmosdb/linux/azure-cosmos-emulator:latest"

// StartCosmosEmulator returns the gateway endpoint of an emulator. It reuses the one
// named by EmulatorEndpointEnv when set; otherwise it starts a container and registers
// its termination with t.Cleanup.
func StartCosmosEmulator(ctx context.Context, t *testing.T) string {
	t.Helper()
	if endpoint := ExternalEmulatorEndpoint(); endpoint != "" {
		return endpoint
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        CosmosEmulatorImage,
			ExposedPorts: []string{"8081/tcp"},
			Env: map[string]string{
				"AZURE_COSMOS_EMULATOR_PARTITION_COUNT":         "3",
				"AZURE_COSMOS_EMULATOR_ENABLE_DATA_PERSISTENCE": "false",
				"AZURE_COSMOS_EMULATOR_IP_ADDRESS_OVERRIDE":     "127.0.0.1",
			},
			WaitingFor: wait.ForLog("Started").WithStartupTimeout(5 * time.Minute),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("Failed to start Cosmos DB emulator: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get emulator host: %v", err)
	}
	port, err := container.MappedPort(ctx, "8081/tcp")
	if err != nil {
		t.Fatalf("Failed to get emulator port: %v", err)
	}
	return fmt.Sprintf("https://%s:%s/", host, port.Port())
}
