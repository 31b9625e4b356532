package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphcv/morphcv/internal/api"
	mw "github.com/morphcv/morphcv/internal/api/middleware"
	"github.com/morphcv/morphcv/internal/cache"
	"github.com/morphcv/morphcv/internal/store"
	"github.com/morphcv/morphcv/pkg/models"
)

// --- stub store that returns empty results (all auth fails) ---

type stubStore struct{}

func (s *stubStore) Ping(_ context.Context) error { return nil }
func (s *stubStore) GetAPIKeyByPrefix(_ context.Context, _ string) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) UpdateAPIKeyLastUsed(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateAPIKey(_ context.Context, _ *models.APIKey) error    { return nil }
func (s *stubStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return nil, nil
}
func (s *stubStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *stubStore) CreateJob(_ context.Context, _ *models.Job, _ *models.ContentRecord) error {
	return nil
}
func (s *stubStore) GetJob(_ context.Context, _ uuid.UUID, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) GetJobForWorker(_ context.Context, _ uuid.UUID) (*models.Job, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) ListJobs(_ context.Context, _ store.JobFilter) ([]*models.Job, int, error) {
	return nil, 0, nil
}
func (s *stubStore) GetContent(_ context.Context, _ uuid.UUID) (*models.ContentRecord, error) {
	return nil, store.ErrNotFound
}
func (s *stubStore) SetTailoredContent(_ context.Context, _ uuid.UUID, _ models.Content) error {
	return nil
}
func (s *stubStore) MarkProcessing(_ context.Context, _ uuid.UUID) error { return nil }
func (s *stubStore) UpdateProgress(_ context.Context, _ uuid.UUID, _ int, _ string) error {
	return nil
}
func (s *stubStore) CompleteJob(_ context.Context, _ uuid.UUID, _ string, _ *string) error {
	return nil
}
func (s *stubStore) FailJob(_ context.Context, _ uuid.UUID, _, _ string) error      { return nil }
func (s *stubStore) TombstoneJob(_ context.Context, _ uuid.UUID, _ uuid.UUID) error { return nil }
func (s *stubStore) CountActiveJobs(_ context.Context, _ uuid.UUID) (int, error)    { return 0, nil }
func (s *stubStore) CountProcessingJobs(_ context.Context, _ uuid.UUID) (int, error) {
	return 0, nil
}

// --- stub cache ---

type stubCache struct{}

func (c *stubCache) Ping(_ context.Context) error { return nil }
func (c *stubCache) SetJobStatus(_ context.Context, _ uuid.UUID, _ cache.StatusEntry, _ time.Duration) error {
	return nil
}
func (c *stubCache) GetJobStatus(_ context.Context, _ uuid.UUID) (cache.StatusEntry, bool, error) {
	return cache.StatusEntry{}, false, nil
}
func (c *stubCache) DeleteJobStatus(_ context.Context, _ uuid.UUID) error { return nil }
func (c *stubCache) IncrWithExpiry(_ context.Context, _ string, _ time.Duration) (int64, error) {
	return 1, nil
}

// --- router tests ---

func newTestRouter() http.Handler {
	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(&stubStore{}),
		RateLimit: mw.NewRateLimit(&stubCache{}, 60),
		HealthHandler: func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		},
	})
}

func TestRouter_HealthEndpoint_Public(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedEndpoints_RequireAuth(t *testing.T) {
	router := newTestRouter()

	jobID := uuid.New().String()
	endpoints := []struct {
		method string
		path   string
	}{
		{"POST", "/api/v1/cvs"},
		{"GET", "/api/v1/cvs"},
		{"GET", "/api/v1/cvs/" + jobID},
		{"GET", "/api/v1/cvs/" + jobID + "/status"},
		{"GET", "/api/v1/cvs/" + jobID + "/download"},
		{"DELETE", "/api/v1/cvs/" + jobID},
		{"POST", "/api/v1/admin/keys"},
		{"GET", "/api/v1/admin/keys"},
	}

	for _, ep := range endpoints {
		t.Run(ep.method+" "+ep.path, func(t *testing.T) {
			req := httptest.NewRequest(ep.method, ep.path, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)

			var body map[string]any
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			errObj := body["error"].(map[string]any)
			assert.Equal(t, "INVALID_TOKEN", errObj["code"])
		})
	}
}

func TestRouter_NotFound(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest("GET", "/api/v1/nonexistent", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

// Verify unused interfaces are satisfied
var _ store.Store = (*stubStore)(nil)
var _ cache.Cache = (*stubCache)(nil)
