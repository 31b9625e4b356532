package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Redis implements Broker on a Redis list. LPUSH on enqueue, BRPOP on
// dequeue, so references are delivered oldest-first and a blocked worker
// wakes as soon as work arrives.
type Redis struct {
	client *redis.Client
	queue  string
}

// NewRedis creates a Redis broker from a Redis URL and a queue (list) name.
func NewRedis(redisURL, queue string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), queue: queue}, nil
}

func (b *Redis) Close() error {
	return b.client.Close()
}

func (b *Redis) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *Redis) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	if err := b.client.LPush(ctx, b.queue, jobID.String()).Err(); err != nil {
		return fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return nil
}

func (b *Redis) Dequeue(ctx context.Context, wait time.Duration) (uuid.UUID, bool, error) {
	vals, err := b.client.BRPop(ctx, wait, b.queue).Result()
	if errors.Is(err, redis.Nil) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("dequeue: %w", err)
	}
	// BRPop returns [key, value]
	id, err := uuid.Parse(vals[1])
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("malformed job reference %q: %w", vals[1], err)
	}
	return id, true, nil
}

var _ Broker = (*Redis)(nil)
var _ Broker = (*Memory)(nil)
