package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	mw "github.com/morphcv/morphcv/internal/api/middleware"
	"github.com/morphcv/morphcv/internal/api/response"
	"github.com/morphcv/morphcv/internal/cache"
	"github.com/morphcv/morphcv/internal/render"
	"github.com/morphcv/morphcv/pkg/models"
)

const statusTTL = 30 * time.Minute

// JobCreator is the persistence surface the create handler depends on.
type JobCreator interface {
	CreateJob(ctx context.Context, job *models.Job, content *models.ContentRecord) error
	CountActiveJobs(ctx context.Context, ownerID uuid.UUID) (int, error)
}

// Enqueuer hands the freshly created job reference to the worker pool.
type Enqueuer interface {
	Enqueue(ctx context.Context, jobID uuid.UUID) error
}

// StatusCache caches the pollable status projection.
type StatusCache interface {
	GetJobStatus(ctx context.Context, jobID uuid.UUID) (cache.StatusEntry, bool, error)
	SetJobStatus(ctx context.Context, jobID uuid.UUID, entry cache.StatusEntry, ttl time.Duration) error
	DeleteJobStatus(ctx context.Context, jobID uuid.UUID) error
}

type createCVRequest struct {
	Title      string         `json:"title"`
	Template   string         `json:"template"`
	TargetRole string         `json:"target_role"`
	Content    models.Content `json:"content"`
}

type createCVResponse struct {
	JobID    uuid.UUID        `json:"job_id"`
	Status   models.JobStatus `json:"status"`
	Template string           `json:"template"`
}

// NewCreateCVHandler returns an http.HandlerFunc for POST /api/v1/cvs.
// It validates input, persists a pending job plus its content record, hands
// the reference to the broker, and returns 202 without waiting for the
// pipeline.
func NewCreateCVHandler(st JobCreator, q Enqueuer, ca StatusCache, maxActivePerOwner int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		var req createCVRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if strings.TrimSpace(req.Content.Name) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "content.name is required", nil)
			return
		}
		if strings.TrimSpace(req.Content.Email) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "content.email is required", nil)
			return
		}
		if strings.TrimSpace(req.TargetRole) == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "target_role is required", nil)
			return
		}
		tpl, err := render.ParseTemplate(req.Template)
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"template must be one of classic, modern, compact", nil)
			return
		}

		active, err := st.CountActiveJobs(r.Context(), ownerID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job", nil)
			return
		}
		if active >= maxActivePerOwner {
			response.Error(w, http.StatusTooManyRequests, "TOO_MANY_JOBS",
				"Too many jobs in flight; wait for one to finish", nil)
			return
		}

		title := strings.TrimSpace(req.Title)
		if title == "" {
			title = req.Content.Name
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:        uuid.New(),
			OwnerID:   ownerID,
			Title:     title,
			Template:  string(tpl),
			Status:    models.JobStatusPending,
			Step:      "queued",
			CreatedAt: now,
			UpdatedAt: now,
		}
		record := &models.ContentRecord{
			JobID:      job.ID,
			Content:    req.Content,
			TargetRole: strings.TrimSpace(req.TargetRole),
		}

		if err := st.CreateJob(r.Context(), job, record); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to create job", nil)
			return
		}
		if err := q.Enqueue(r.Context(), job.ID); err != nil {
			// The record exists but no worker will ever see it; surface the
			// failure instead of leaving the caller polling forever.
			response.Error(w, http.StatusServiceUnavailable, "QUEUE_UNAVAILABLE", "Failed to enqueue job", nil)
			return
		}

		_ = ca.SetJobStatus(r.Context(), job.ID, cache.StatusEntry{
			Status: models.JobStatusPending, Step: job.Step,
		}, statusTTL)

		response.Accepted(w, createCVResponse{
			JobID:    job.ID,
			Status:   job.Status,
			Template: job.Template,
		})
	}
}
