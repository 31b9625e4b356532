package handler

import (
	"context"
	"net/http"

	"github.com/morphcv/morphcv/internal/api/response"
)

// Pinger is anything that can report its own liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
	Cache    string `json:"cache"`
}

// NewHealthHandler returns an http.HandlerFunc for GET /api/v1/health.
func NewHealthHandler(db Pinger, ca Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthResponse{Status: "ok", Database: "ok", Cache: "ok"}

		if err := db.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Database = "unreachable"
		}
		if err := ca.Ping(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Cache = "unreachable"
		}

		if resp.Status != "ok" {
			response.Error(w, http.StatusServiceUnavailable, "UNHEALTHY", "One or more dependencies are unreachable", resp)
			return
		}
		response.JSON(w, resp)
	}
}
