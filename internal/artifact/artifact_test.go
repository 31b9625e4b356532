package artifact_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphcv/morphcv/internal/artifact"
)

func newStore(t *testing.T) *artifact.FSStore {
	t.Helper()
	s, err := artifact.NewFSStore(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestSave_AndOpen(t *testing.T) {
	s := newStore(t)
	jobID := uuid.New()

	path, err := s.Save(jobID, artifact.KindPDF, []byte("pdf bytes"))
	require.NoError(t, err)
	assert.Equal(t, "cv.pdf", filepath.Base(path))
	assert.Contains(t, path, jobID.String())

	r, err := s.Open(path)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf bytes"), data)
}

func TestSave_PreviewFilename(t *testing.T) {
	s := newStore(t)

	path, err := s.Save(uuid.New(), artifact.KindPreview, []byte("jpg"))
	require.NoError(t, err)
	assert.Equal(t, "preview.jpg", filepath.Base(path))
}

func TestSave_Overwrite(t *testing.T) {
	s := newStore(t)
	jobID := uuid.New()

	_, err := s.Save(jobID, artifact.KindPDF, []byte("first"))
	require.NoError(t, err)
	path, err := s.Save(jobID, artifact.KindPDF, []byte("second"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}

func TestSave_NoTempFilesLeftBehind(t *testing.T) {
	s := newStore(t)
	jobID := uuid.New()

	path, err := s.Save(jobID, artifact.KindPDF, []byte("pdf"))
	require.NoError(t, err)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "cv.pdf", entries[0].Name())
}

func TestRemoveJob(t *testing.T) {
	s := newStore(t)
	jobID := uuid.New()

	path, err := s.Save(jobID, artifact.KindPDF, []byte("pdf"))
	require.NoError(t, err)

	require.NoError(t, s.RemoveJob(jobID))

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveJob_MissingIsNoop(t *testing.T) {
	s := newStore(t)
	assert.NoError(t, s.RemoveJob(uuid.New()))
}

func TestOpen_Missing(t *testing.T) {
	s := newStore(t)
	_, err := s.Open(filepath.Join(t.TempDir(), "nope.pdf"))
	assert.Error(t, err)
}
