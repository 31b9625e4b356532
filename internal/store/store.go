package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/morphcv/morphcv/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// ErrTerminal is returned by worker-side mutations that would move a job out
// of a terminal state. Once success or failed, a job record never transitions
// again.
var ErrTerminal = errors.New("job is in a terminal state")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error

	// CreateJob persists a pending job record and its content record in one
	// transaction. The request handler calls this before enqueueing.
	CreateJob(ctx context.Context, job *models.Job, content *models.ContentRecord) error
	// GetJob loads a job scoped to its owner (API read path).
	GetJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error)
	// GetJobForWorker loads a job without an ownership filter (worker path).
	GetJobForWorker(ctx context.Context, id uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)

	GetContent(ctx context.Context, jobID uuid.UUID) (*models.ContentRecord, error)
	// SetTailoredContent replaces the content record after the tailoring stage.
	SetTailoredContent(ctx context.Context, jobID uuid.UUID, content models.Content) error

	// MarkProcessing transitions pending -> processing. Returns ErrTerminal if
	// the job already reached a terminal state (duplicate delivery).
	MarkProcessing(ctx context.Context, id uuid.UUID) error
	// UpdateProgress records stage completion. Progress never decreases.
	UpdateProgress(ctx context.Context, id uuid.UUID, progress int, step string) error
	// CompleteJob sets success with artifact references. Artifacts must already
	// be durably written before this is called.
	CompleteJob(ctx context.Context, id uuid.UUID, pdfPath string, previewPath *string) error
	// FailJob sets failed with a classified error.
	FailJob(ctx context.Context, id uuid.UUID, kind, message string) error

	// TombstoneJob flags a job as deleted by its owner. Safe to race an
	// in-flight worker; the worker checks the flag between stages.
	TombstoneJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
	// CountActiveJobs counts pending + processing jobs for an owner, used to
	// enforce the per-owner concurrency cap.
	CountActiveJobs(ctx context.Context, ownerID uuid.UUID) (int, error)
	// CountProcessingJobs counts jobs an owner currently has in flight. The
	// worker pool requeues a dequeued job when this reaches the cap.
	CountProcessingJobs(ctx context.Context, ownerID uuid.UUID) (int, error)
}

type JobFilter struct {
	OwnerID uuid.UUID
	Status  models.JobStatus
	Page    int
	Limit   int
}
