package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	mw "github.com/morphcv/morphcv/internal/api/middleware"
	"github.com/morphcv/morphcv/internal/api/response"
	"github.com/morphcv/morphcv/internal/store"
	"github.com/morphcv/morphcv/pkg/models"
)

// ArtifactOpener streams a previously stored artifact.
type ArtifactOpener interface {
	Open(path string) (io.ReadCloser, error)
}

// NewDownloadHandler returns an http.HandlerFunc for
// GET /api/v1/cvs/{jobID}/download?kind=pdf|preview. Only successful jobs
// have downloadable artifacts.
func NewDownloadHandler(st JobReader, art ArtifactOpener) http.HandlerFunc {
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

		kind := r.URL.Query().Get("kind")
		if kind == "" {
			kind = "pdf"
		}
		if kind != "pdf" && kind != "preview" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "kind must be pdf or preview", nil)
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
		if job.Status != models.JobStatusSuccess {
			response.Error(w, http.StatusConflict, "NOT_READY", "Job has no artifacts yet", nil)
			return
		}

		var path *string
		contentType := "application/pdf"
		filename := "cv.pdf"
		if kind == "pdf" {
			path = job.PDFPath
		} else {
			path = job.PreviewPath
			contentType = "image/jpeg"
			filename = "preview.jpg"
		}
		if path == nil {
			response.Error(w, http.StatusNotFound, "NOT_FOUND", "Artifact not available", nil)
			return
		}

		rc, err := art.Open(*path)
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to open artifact", nil)
			return
		}
		defer rc.Close()

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
		io.Copy(w, rc)
	}
}
