package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/morphcv/morphcv/pkg/models"
	"github.com/redis/go-redis/v9"
)

// StatusEntry is the cached projection served to polling clients so status
// reads do not hit Postgres on every request.
type StatusEntry struct {
	Status   models.JobStatus `json:"status"`
	Progress int              `json:"progress"`
	Step     string           `json:"step"`
	Error    *models.JobError `json:"error,omitempty"`
	HasPDF   bool             `json:"has_pdf"`
	HasPrev  bool             `json:"has_preview"`
}

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	SetJobStatus(ctx context.Context, jobID uuid.UUID, entry StatusEntry, ttl time.Duration) error
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (StatusEntry, bool, error)
	DeleteJobStatus(ctx context.Context, jobID uuid.UUID) error
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) SetJobStatus(ctx context.Context, jobID uuid.UUID, entry StatusEntry, ttl time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, JobStatusKey(jobID), data, ttl).Err()
}

func (c *RedisCache) GetJobStatus(ctx context.Context, jobID uuid.UUID) (StatusEntry, bool, error) {
	val, err := c.client.Get(ctx, JobStatusKey(jobID)).Bytes()
	if err == redis.Nil {
		return StatusEntry{}, false, nil
	}
	if err != nil {
		return StatusEntry{}, false, err
	}
	var entry StatusEntry
	if err := json.Unmarshal(val, &entry); err != nil {
		return StatusEntry{}, false, err
	}
	return entry, true, nil
}

func (c *RedisCache) DeleteJobStatus(ctx context.Context, jobID uuid.UUID) error {
	return c.client.Del(ctx, JobStatusKey(jobID)).Err()
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
