package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/morphcv/morphcv/internal/api/middleware"
	"github.com/morphcv/morphcv/internal/api/response"
	"github.com/morphcv/morphcv/internal/store"
	"github.com/morphcv/morphcv/pkg/models"
)

// JobDetailReader loads a job and its content record for the detail endpoint.
type JobDetailReader interface {
	JobReader
	GetContent(ctx context.Context, jobID uuid.UUID) (*models.ContentRecord, error)
}

// JobLister loads an owner's jobs for the list endpoint.
type JobLister interface {
	ListJobs(ctx context.Context, filter store.JobFilter) ([]*models.Job, int, error)
}

const (
	defaultPageLimit = 20
	maxPageLimit     = 100
)

// jobView is the record projection shared by the list and detail endpoints.
// Artifact flags come from the job's snapshot, so they only appear set on
// success; raw artifact paths never leave the server.
type jobView struct {
	ID          uuid.UUID        `json:"id"`
	Title       string           `json:"title"`
	Template    string           `json:"template"`
	Status      models.JobStatus `json:"status"`
	Progress    int              `json:"progress"`
	Step        string           `json:"step"`
	Error       *models.JobError `json:"error,omitempty"`
	HasPDF      bool             `json:"has_pdf"`
	HasPreview  bool             `json:"has_preview"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	StartedAt   *time.Time       `json:"started_at,omitempty"`
	CompletedAt *time.Time       `json:"completed_at,omitempty"`
}

// jobDetail adds the content echo to the detail endpoint only.
type jobDetail struct {
	jobView
	Content    models.Content `json:"content"`
	TargetRole string         `json:"target_role"`
	Tailored   bool           `json:"tailored"`
}

func viewOf(job *models.Job) jobView {
	v := jobView{
		ID:          job.ID,
		Title:       job.Title,
		Template:    job.Template,
		Status:      job.Status,
		Progress:    job.Progress,
		Step:        job.Step,
		Error:       job.Error,
		CreatedAt:   job.CreatedAt,
		UpdatedAt:   job.UpdatedAt,
		StartedAt:   job.StartedAt,
		CompletedAt: job.CompletedAt,
	}
	if snap, ok := models.SnapshotOf(job).(models.SuccessSnapshot); ok {
		v.HasPDF = snap.Artifacts.PDF
		v.HasPreview = snap.Artifacts.Preview
	}
	return v
}

// NewGetCVHandler returns an http.HandlerFunc for GET /api/v1/cvs/{jobID}.
func NewGetCVHandler(st JobDetailReader) http.HandlerFunc {
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

		job, err := st.GetJob(r.Context(), jobID, ownerID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "NOT_FOUND", "Job not found", nil)
				return
			}
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job", nil)
			return
		}

		rec, err := st.GetContent(r.Context(), jobID)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load job content", nil)
			return
		}

		response.JSON(w, jobDetail{
			jobView:    viewOf(job),
			Content:    rec.Content,
			TargetRole: rec.TargetRole,
			Tailored:   rec.Tailored,
		})
	}
}

// NewListCVsHandler returns an http.HandlerFunc for GET /api/v1/cvs.
// Supports ?status=, ?page=, ?limit=.
func NewListCVsHandler(st JobLister) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ownerID, ok := mw.GetOwnerID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing owner", nil)
			return
		}

		filter := store.JobFilter{
			OwnerID: ownerID,
			Page:    1,
			Limit:   defaultPageLimit,
		}

		if s := r.URL.Query().Get("status"); s != "" {
			status := models.JobStatus(s)
			switch status {
			case models.JobStatusPending, models.JobStatusProcessing,
				models.JobStatusSuccess, models.JobStatusFailed:
				filter.Status = status
			default:
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					"status must be one of pending, processing, success, failed", nil)
				return
			}
		}
		if p := r.URL.Query().Get("page"); p != "" {
			page, err := strconv.Atoi(p)
			if err != nil || page < 1 {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "page must be a positive integer", nil)
				return
			}
			filter.Page = page
		}
		if l := r.URL.Query().Get("limit"); l != "" {
			limit, err := strconv.Atoi(l)
			if err != nil || limit < 1 || limit > maxPageLimit {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be between 1 and 100", nil)
				return
			}
			filter.Limit = limit
		}

		jobs, total, err := st.ListJobs(r.Context(), filter)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to list jobs", nil)
			return
		}

		views := make([]jobView, 0, len(jobs))
		for _, job := range jobs {
			views = append(views, viewOf(job))
		}

		response.Collection(w, views, response.PaginationMeta{
			Page:    filter.Page,
			Limit:   filter.Limit,
			Total:   total,
			HasNext: filter.Page*filter.Limit < total,
		})
	}
}
