package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/morphcv/morphcv/internal/api/middleware"
	"github.com/morphcv/morphcv/internal/api/response"
	"github.com/morphcv/morphcv/internal/cache"
	"github.com/morphcv/morphcv/internal/store"
	"github.com/morphcv/morphcv/pkg/models"
)

// JobReader loads a job scoped to its owner.
type JobReader interface {
	GetJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error)
}

type statusResponse struct {
	JobID      uuid.UUID        `json:"job_id"`
	Status     models.JobStatus `json:"status"`
	Progress   int              `json:"progress"`
	Step       string           `json:"step"`
	Error      *models.JobError `json:"error,omitempty"`
	HasPDF     bool             `json:"has_pdf"`
	HasPreview bool             `json:"has_preview"`
}

// NewStatusHandler returns an http.HandlerFunc for
// GET /api/v1/cvs/{jobID}/status. Read-only: it never mutates the job and is
// safe to poll arbitrarily often. Cache first, Postgres on miss.
func NewStatusHandler(st JobReader, ca StatusCache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a UUID", nil)
			return
		}

		// The cache is keyed by job ID alone, so ownership has to be proven
		// against the store before a cached entry may be served.
		job, err := st.GetJob(r.Context(), jobID, ownerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		if entry, ok, err := ca.GetJobStatus(r.Context(), jobID); err == nil && ok {
			response.JSON(w, statusResponse{
				JobID:      jobID,
				Status:     entry.Status,
				Progress:   entry.Progress,
				Step:       entry.Step,
				Error:      entry.Error,
				HasPDF:     entry.HasPDF,
				HasPreview: entry.HasPrev,
			})
			return
		}

		resp := statusFromJob(job)
		_ = ca.SetJobStatus(r.Context(), jobID, cache.StatusEntry{
			Status:   resp.Status,
			Progress: resp.Progress,
			Step:     resp.Step,
			Error:    resp.Error,
			HasPDF:   resp.HasPDF,
			HasPrev:  resp.HasPreview,
		}, statusTTL)
		response.JSON(w, resp)
	}
}

// statusFromJob projects the durable record into the poll response via the
// job's snapshot, so each state only exposes the fields it actually has.
func statusFromJob(job *models.Job) statusResponse {
	resp := statusResponse{JobID: job.ID, Status: job.Status}
	switch snap := models.SnapshotOf(job).(type) {
	case models.PendingSnapshot:
		resp.Step = job.Step
	case models.ProcessingSnapshot:
		resp.Progress = snap.Progress
		resp.Step = snap.Step
	case models.SuccessSnapshot:
		resp.Progress = 100
		resp.Step = snap.Step
		resp.HasPDF = snap.Artifacts.PDF
		resp.HasPreview = snap.Artifacts.Preview
	case models.FailedSnapshot:
		resp.Progress = snap.Progress
		resp.Step = snap.Step
		resp.Error = &snap.Err
	}
	return resp
}
