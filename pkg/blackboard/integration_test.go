//go:build integration

package blackboard

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupRedis starts a Redis container and returns its URL.
func setupRedis(t *testing.T) string {
	ctx := context.Background()

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err, "failed to start Redis container")
	t.Cleanup(func() {
		if err := redisC.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate Redis container: %v", err)
		}
	})

	host, err := redisC.Host(ctx)
	require.NoError(t, err)
	port, err := redisC.MappedPort(ctx, "6379")
	require.NoError(t, err)

	return fmt.Sprintf("redis://%s:%s", host, port.Port())
}

func TestRecorderAgainstRedis(t *testing.T) {
	client, err := NewClientFromURL(setupRedis(t), "integration")
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sub, err := client.SubscribeArtefactEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	runID := uuid.New().String()
	rec, err := NewRecorder(client, runID)
	require.NoError(t, err)

	for _, payload := range []string{"v1", "v2", "v3"} {
		_, err := rec.Record(ctx, Entry{Type: TypeBackendCode, Role: "Unit Tester", Payload: payload})
		require.NoError(t, err)
	}

	for i := 0; i < 3; i++ {
		select {
		case a := <-sub.Events():
			assert.Equal(t, i+1, a.Version)
		case <-ctx.Done():
			t.Fatal("timed out waiting for events")
		}
	}

	stored, err := client.ListRunArtefacts(ctx, runID)
	require.NoError(t, err)
	require.Len(t, stored, 3)
	assert.Equal(t, "v3", stored[2].Payload)
}
