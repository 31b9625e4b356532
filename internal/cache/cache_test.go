package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/morphcv/morphcv/internal/cache"
	"github.com/morphcv/morphcv/pkg/models"
)

// setupRedis spins up a Redis container and returns a connected RedisCache + cleanup.
func setupRedis(t *testing.T) *cache.RedisCache {
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

	rc, err := cache.NewRedisCache("redis://" + host + ":" + port.Port())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, rc.Close()) })

	return rc
}

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	assert.NoError(t, rc.Ping(context.Background()))
}

func TestJobStatus_Roundtrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	jobID := uuid.New()

	entry := cache.StatusEntry{
		Status:   models.JobStatusProcessing,
		Progress: 33,
		Step:     "content tailored",
	}
	require.NoError(t, rc.SetJobStatus(ctx, jobID, entry, time.Minute))

	got, found, err := rc.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, entry, got)
}

func TestJobStatus_FailedEntryKeepsError(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	jobID := uuid.New()

	entry := cache.StatusEntry{
		Status:   models.JobStatusFailed,
		Progress: 66,
		Step:     "document rendered",
		Error:    &models.JobError{Kind: "CompileError", Message: "document failed to compile"},
	}
	require.NoError(t, rc.SetJobStatus(ctx, jobID, entry, time.Minute))

	got, found, err := rc.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	require.True(t, found)
	require.NotNil(t, got.Error)
	assert.Equal(t, "CompileError", got.Error.Kind)
}

func TestJobStatus_Miss(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)

	_, found, err := rc.GetJobStatus(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestJobStatus_Delete(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, rc.SetJobStatus(ctx, jobID, cache.StatusEntry{Status: models.JobStatusPending}, time.Minute))
	require.NoError(t, rc.DeleteJobStatus(ctx, jobID))

	_, found, err := rc.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting a missing entry is a no-op.
	assert.NoError(t, rc.DeleteJobStatus(ctx, jobID))
}

func TestJobStatus_TTLExpires(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	jobID := uuid.New()

	require.NoError(t, rc.SetJobStatus(ctx, jobID, cache.StatusEntry{Status: models.JobStatusPending}, 500*time.Millisecond))
	time.Sleep(time.Second)

	_, found, err := rc.GetJobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestIncrWithExpiry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	rc := setupRedis(t)
	ctx := context.Background()
	key := cache.RateLimitKey("mcv_test")

	n, err := rc.IncrWithExpiry(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = rc.IncrWithExpiry(ctx, key, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
