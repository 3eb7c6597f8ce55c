//go:build integration

package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"ledgerbank/internal/logging"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func TestViewCacheRoundTrip(t *testing.T) {
	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client, err := NewClient(ctx, fmt.Sprintf("%s:%s", host, port.Port()), "", 0)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	c := NewViewCache[[]string](client, "test:", time.Minute, logging.Discard())
	c.Set(ctx, "list", []string{"a", "b"})
	got, ok := c.Get(ctx, "list")
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, got)

	c.Delete(ctx, "list")
	_, ok = c.Get(ctx, "list")
	require.False(t, ok)
}
