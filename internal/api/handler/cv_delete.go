package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/morphcv/morphcv/internal/api/middleware"
	"github.com/morphcv/morphcv/internal/api/response"
	"github.com/morphcv/morphcv/internal/store"
)

// Tombstoner marks a job deleted. The flag is observed by in-flight workers
// between stages, so deletion is safe to race against processing.
type Tombstoner interface {
	TombstoneJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error
}

// ArtifactRemover deletes a job's stored artifacts.
type ArtifactRemover interface {
	RemoveJob(jobID uuid.UUID) error
}

// NewDeleteCVHandler returns an http.HandlerFunc for DELETE /api/v1/cvs/{jobID}.
func NewDeleteCVHandler(st Tombstoner, ca StatusCache, art ArtifactRemover) http.HandlerFunc {
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

		if err := st.TombstoneJob(r.Context(), jobID, ownerID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to delete job", nil)
			return
		}

		// Best-effort cleanup; the tombstone is the source of truth.
		if err := ca.DeleteJobStatus(r.Context(), jobID); err != nil {
			slog.Warn("clearing cached status", "job_id", jobID, "error", err)
		}
		if err := art.RemoveJob(jobID); err != nil {
			slog.Warn("removing artifacts", "job_id", jobID, "error", err)
		}

		response.NoContent(w)
	}
}
