package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/morphcv/morphcv/internal/store"
	"github.com/morphcv/morphcv/pkg/models"
)

type fakeKeyStore struct {
	created   []*models.APIKey
	keys      []*models.APIKey
	revokeErr error
}

func (f *fakeKeyStore) CreateAPIKey(_ context.Context, key *models.APIKey) error {
	f.created = append(f.created, key)
	return nil
}

func (f *fakeKeyStore) ListAPIKeys(_ context.Context, _ uuid.UUID) ([]*models.APIKey, error) {
	return f.keys, nil
}

func (f *fakeKeyStore) RevokeAPIKey(_ context.Context, _ uuid.UUID, _ uuid.UUID) error {
	return f.revokeErr
}

func keyReq(t *testing.T, body any, ownerID uuid.UUID) *http.Request {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys", bytes.NewReader(b))
	r.Header.Set("Content-Type", "application/json")
	return ownerCtx(r, ownerID)
}

func TestCreateKey_ReturnsRawKeyOnce(t *testing.T) {
	st := &fakeKeyStore{}
	rec := httptest.NewRecorder()

	NewCreateKeyHandler(st)(rec, keyReq(t, map[string]any{"name": "ci key"}, uuid.New()))

	require.Equal(t, http.StatusCreated, rec.Code)
	data := decodeData(t, rec)
	rawKey, _ := data["key"].(string)
	require.True(t, strings.HasPrefix(rawKey, "mcv_"))
	assert.Equal(t, rawKey[:8], data["key_prefix"])

	require.Len(t, st.created, 1)
	stored := st.created[0]
	assert.NotEqual(t, rawKey, stored.KeyHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.KeyHash), []byte(rawKey)))
	assert.Equal(t, []string{"cvs"}, stored.Scopes)
}

func TestCreateKey_CustomScopes(t *testing.T) {
	st := &fakeKeyStore{}
	rec := httptest.NewRecorder()

	NewCreateKeyHandler(st)(rec, keyReq(t, map[string]any{
		"name":   "admin key",
		"scopes": []string{"cvs", "admin"},
	}, uuid.New()))

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, st.created, 1)
	assert.Equal(t, []string{"cvs", "admin"}, st.created[0].Scopes)
}

func TestCreateKey_MissingName(t *testing.T) {
	rec := httptest.NewRecorder()

	NewCreateKeyHandler(&fakeKeyStore{})(rec, keyReq(t, map[string]any{"name": "  "}, uuid.New()))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST", errorCode(t, rec))
}

func TestListKeys_EmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	r := ownerCtx(httptest.NewRequest(http.MethodGet, "/api/v1/admin/keys", nil), uuid.New())

	NewListKeysHandler(&fakeKeyStore{})(rec, r)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"data":[]`)
}

func TestRevokeKey_NotFound(t *testing.T) {
	st := &fakeKeyStore{revokeErr: store.ErrNotFound}
	keyID := uuid.New()

	rec := httptest.NewRecorder()
	r := ownerCtx(httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys/"+keyID.String(), nil), uuid.New())
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("keyID", keyID.String())
	r = r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))

	NewRevokeKeyHandler(st)(rec, r)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", errorCode(t, rec))
}
