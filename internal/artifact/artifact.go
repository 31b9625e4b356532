// Package artifact persists compiled documents. A job record may only
// reference an artifact after it has been durably written, so every save
// goes through a temp file, fsync, and an atomic rename.
package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Kind names an artifact within a job's directory.
type Kind string

const (
	KindPDF     Kind = "pdf"
	KindPreview Kind = "preview"
)

func (k Kind) filename() string {
	switch k {
	case KindPDF:
		return "cv.pdf"
	case KindPreview:
		return "preview.jpg"
	default:
		return string(k)
	}
}

// Store is the artifact persistence contract.
type Store interface {
	// Save durably writes data and returns the path to record on the job.
	Save(jobID uuid.UUID, kind Kind, data []byte) (string, error)
	// Open returns a reader for a previously saved artifact.
	Open(path string) (io.ReadCloser, error)
	// RemoveJob deletes every artifact belonging to the job.
	RemoveJob(jobID uuid.UUID) error
}

// FSStore keeps artifacts on the local filesystem under
// baseDir/<jobID>/<filename>.
type FSStore struct {
	baseDir string
}

func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating artifact dir: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

func (s *FSStore) Save(jobID uuid.UUID, kind Kind, data []byte) (string, error) {
	dir := filepath.Join(s.baseDir, jobID.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating job dir: %w", err)
	}

	final := filepath.Join(dir, kind.filename())

	tmp, err := os.CreateTemp(dir, "."+kind.filename()+".*")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", fmt.Errorf("syncing artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("closing artifact: %w", err)
	}
	if err := os.Rename(tmpName, final); err != nil {
		return "", fmt.Errorf("publishing artifact: %w", err)
	}
	return final, nil
}

func (s *FSStore) Open(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening artifact: %w", err)
	}
	return f, nil
}

func (s *FSStore) RemoveJob(jobID uuid.UUID) error {
	return os.RemoveAll(filepath.Join(s.baseDir, jobID.String()))
}

var _ Store = (*FSStore)(nil)
