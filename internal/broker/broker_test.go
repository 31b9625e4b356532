package broker_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/morphcv/morphcv/internal/broker"
)

// --- Memory broker ---

func TestMemory_EnqueueDequeueOrder(t *testing.T) {
	b := broker.NewMemory(10)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	require.NoError(t, b.Enqueue(ctx, first))
	require.NoError(t, b.Enqueue(ctx, second))

	id, ok, err := b.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, id)

	id, ok, err = b.Dequeue(ctx, time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, id)
}

func TestMemory_DequeueWaitElapses(t *testing.T) {
	b := broker.NewMemory(1)

	id, ok, err := b.Dequeue(context.Background(), 20*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
}

func TestMemory_DequeueCancelled(t *testing.T) {
	b := broker.NewMemory(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok, err := b.Dequeue(ctx, time.Minute)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMemory_EnqueueFullBlocksUntilCancel(t *testing.T) {
	b := broker.NewMemory(1)
	ctx := context.Background()
	require.NoError(t, b.Enqueue(ctx, uuid.New()))

	deadline, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := b.Enqueue(deadline, uuid.New())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// --- Redis broker ---

// setupRedisBroker spins up a Redis container and returns a connected broker.
func setupRedisBroker(t *testing.T) *broker.Redis {
	t.Helper()
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	b, err := broker.NewRedis("redis://"+host+":"+port.Port(), "test:jobs")
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, b.Close()) })

	return b
}

func TestRedis_EnqueueDequeueOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	b := setupRedisBroker(t)
	ctx := context.Background()

	first, second := uuid.New(), uuid.New()
	require.NoError(t, b.Enqueue(ctx, first))
	require.NoError(t, b.Enqueue(ctx, second))

	id, ok, err := b.Dequeue(ctx, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, first, id)

	id, ok, err = b.Dequeue(ctx, 2*time.Second)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, second, id)
}

func TestRedis_DequeueWaitElapses(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	b := setupRedisBroker(t)

	id, ok, err := b.Dequeue(context.Background(), time.Second)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uuid.Nil, id)
}

func TestRedis_BadURL(t *testing.T) {
	_, err := broker.NewRedis("not-a-url", "q")
	assert.Error(t, err)
}
