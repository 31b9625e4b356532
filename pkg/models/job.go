package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle state of a generation job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusSuccess    JobStatus = "success"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether no further transitions are permitted.
func (s JobStatus) Terminal() bool {
	return s == JobStatusSuccess || s == JobStatusFailed
}

// JobError is the classified error recorded on a failed job.
// Kind is one of the pipeline error kinds (e.g. "CompileError");
// Message is a short operator-safe summary, never a raw diagnostic.
type JobError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// Job tracks one generation request end-to-end. The API returns a job ID on
// POST /api/v1/cvs; the client polls GET /api/v1/cvs/{id}/status until the
// status is success or failed. Only the owning worker mutates status,
// progress, and step; the API reads and, on DELETE, sets the tombstone.
type Job struct {
	ID          uuid.UUID  `db:"id"           json:"id"`
	OwnerID     uuid.UUID  `db:"owner_id"     json:"owner_id"`
	Title       string     `db:"title"        json:"title"`
	Template    string     `db:"template"     json:"template"`
	Status      JobStatus  `db:"status"       json:"status"`
	Progress    int        `db:"progress"     json:"progress"`
	Step        string     `db:"step"         json:"step"`
	Error       *JobError  `db:"-"            json:"error,omitempty"`
	PDFPath     *string    `db:"pdf_path"     json:"-"`
	PreviewPath *string    `db:"preview_path" json:"-"`
	Tombstoned  bool       `db:"tombstoned"   json:"-"`
	StartedAt   *time.Time `db:"started_at"   json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at"   json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"   json:"updated_at"`
}

// ArtifactFlags tells a client which downloads are available.
type ArtifactFlags struct {
	PDF     bool `json:"pdf"`
	Preview bool `json:"preview"`
}

// Snapshot is a closed, read-only projection of a job's current state.
// Each status has its own variant so "artifacts present" and "error present"
// cannot be expressed outside their valid states. The unexported method seals
// the set of implementations to this package.
type Snapshot interface {
	Status() JobStatus
	snapshot()
}

type PendingSnapshot struct {
	JobID uuid.UUID
}

type ProcessingSnapshot struct {
	JobID    uuid.UUID
	Progress int
	Step     string
}

type SuccessSnapshot struct {
	JobID     uuid.UUID
	Step      string
	Artifacts ArtifactFlags
}

type FailedSnapshot struct {
	JobID    uuid.UUID
	Progress int
	Step     string
	Err      JobError
}

func (PendingSnapshot) Status() JobStatus    { return JobStatusPending }
func (ProcessingSnapshot) Status() JobStatus { return JobStatusProcessing }
func (SuccessSnapshot) Status() JobStatus    { return JobStatusSuccess }
func (FailedSnapshot) Status() JobStatus     { return JobStatusFailed }

func (PendingSnapshot) snapshot()    {}
func (ProcessingSnapshot) snapshot() {}
func (SuccessSnapshot) snapshot()    {}
func (FailedSnapshot) snapshot()     {}

// SnapshotOf projects a job row into its status variant.
func SnapshotOf(j *Job) Snapshot {
	switch j.Status {
	case JobStatusProcessing:
		return ProcessingSnapshot{JobID: j.ID, Progress: j.Progress, Step: j.Step}
	case JobStatusSuccess:
		return SuccessSnapshot{
			JobID: j.ID,
			Step:  j.Step,
			Artifacts: ArtifactFlags{
				PDF:     j.PDFPath != nil,
				Preview: j.PreviewPath != nil,
			},
		}
	case JobStatusFailed:
		e := JobError{Kind: "InternalError", Message: "job failed"}
		if j.Error != nil {
			e = *j.Error
		}
		return FailedSnapshot{JobID: j.ID, Progress: j.Progress, Step: j.Step, Err: e}
	default:
		return PendingSnapshot{JobID: j.ID}
	}
}
