// Package broker hands job references from the request path to the worker
// pool. Delivery is at-least-once: a redelivered reference must be absorbed
// by the orchestrator's terminal-state check, never by the broker itself.
package broker

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Broker is the queue contract between the API and the worker pool.
// Constructed explicitly and passed down; there is no package-level queue.
type Broker interface {
	// Enqueue hands a job reference to the queue.
	Enqueue(ctx context.Context, jobID uuid.UUID) error
	// Dequeue blocks up to wait for the next reference. The second return is
	// false when the wait elapsed with nothing to deliver.
	Dequeue(ctx context.Context, wait time.Duration) (uuid.UUID, bool, error)
}

// Memory is a channel-backed Broker for tests and single-process deployments.
type Memory struct {
	ch chan uuid.UUID
}

// NewMemory creates an in-memory broker holding at most size references.
func NewMemory(size int) *Memory {
	return &Memory{ch: make(chan uuid.UUID, size)}
}

func (m *Memory) Enqueue(ctx context.Context, jobID uuid.UUID) error {
	select {
	case m.ch <- jobID:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Memory) Dequeue(ctx context.Context, wait time.Duration) (uuid.UUID, bool, error) {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case id := <-m.ch:
		return id, true, nil
	case <-timer.C:
		return uuid.Nil, false, nil
	case <-ctx.Done():
		return uuid.Nil, false, ctx.Err()
	}
}
