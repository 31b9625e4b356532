package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/morphcv/morphcv/pkg/models"
)

// PostgresStore implements the Store interface using pgx/v5.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- API Keys ---

func (s *PostgresStore) GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE key_prefix = $1 AND deleted_at IS NULL`, prefix)
	if err != nil {
		return nil, fmt.Errorf("get api key by prefix: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET last_used_at = NOW(), updated_at = NOW() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("update api key last used: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAPIKey(ctx context.Context, key *models.APIKey) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO api_keys (id, owner_id, name, key_hash, key_prefix, scopes, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		key.ID, key.OwnerID, key.Name, key.KeyHash, key.KeyPrefix, key.Scopes, key.CreatedAt, key.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("create api key: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAPIKeys(ctx context.Context, ownerID uuid.UUID) ([]*models.APIKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, owner_id, name, key_hash, key_prefix, scopes, last_used_at, deleted_at, created_at, updated_at
		 FROM api_keys WHERE owner_id = $1 AND deleted_at IS NULL ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list api keys: %w", err)
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.OwnerID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
			&k.LastUsedAt, &k.DeletedAt, &k.CreatedAt, &k.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan api key: %w", err)
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

func (s *PostgresStore) RevokeAPIKey(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE api_keys SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND deleted_at IS NULL`, id, ownerID)
	if err != nil {
		return fmt.Errorf("revoke api key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Jobs ---

const jobColumns = `id, owner_id, title, template, status, progress, step,
	error_kind, error_message, pdf_path, preview_path, tombstoned,
	started_at, completed_at, created_at, updated_at`

func (s *PostgresStore) CreateJob(ctx context.Context, job *models.Job, content *models.ContentRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create job: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx,
		`INSERT INTO jobs (id, owner_id, title, template, status, progress, step, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		job.ID, job.OwnerID, job.Title, job.Template, job.Status, job.Progress, job.Step,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrDuplicateKey
		}
		return fmt.Errorf("insert job: %w", err)
	}

	contentJSON, err := json.Marshal(content.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	_, err = tx.Exec(ctx,
		`INSERT INTO job_contents (job_id, content, target_role, tailored, updated_at)
		 VALUES ($1, $2, $3, FALSE, NOW())`,
		job.ID, contentJSON, content.TargetRole)
	if err != nil {
		return fmt.Errorf("insert job content: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create job: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND owner_id = $2 AND NOT tombstoned`, id, ownerID)
	return scanJob(row)
}

func (s *PostgresStore) GetJobForWorker(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

func (s *PostgresStore) ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error) {
	where := "owner_id = $1 AND NOT tombstoned"
	args := []any{filter.OwnerID}
	if filter.Status != "" {
		where += " AND status = $2"
		args = append(args, filter.Status)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM jobs WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count jobs: %w", err)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	offset := (page - 1) * limit

	query := fmt.Sprintf("SELECT %s FROM jobs WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d",
		jobColumns, where, limit, offset)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, j)
	}
	return jobs, total, rows.Err()
}

// --- Content ---

func (s *PostgresStore) GetContent(ctx context.Context, jobID uuid.UUID) (*models.ContentRecord, error) {
	var rec models.ContentRecord
	var contentJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT job_id, content, target_role, tailored, updated_at FROM job_contents WHERE job_id = $1`,
		jobID,
	).Scan(&rec.JobID, &contentJSON, &rec.TargetRole, &rec.Tailored, &rec.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content: %w", err)
	}
	if err := json.Unmarshal(contentJSON, &rec.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	return &rec, nil
}

func (s *PostgresStore) SetTailoredContent(ctx context.Context, jobID uuid.UUID, content models.Content) error {
	contentJSON, err := json.Marshal(content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE job_contents SET content = $2, tailored = TRUE, updated_at = NOW() WHERE job_id = $1`,
		jobID, contentJSON)
	if err != nil {
		return fmt.Errorf("set tailored content: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Worker-side transitions ---

func (s *PostgresStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'processing', started_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

func (s *PostgresStore) UpdateProgress(ctx context.Context, id uuid.UUID, progress int, step string) error {
	// GREATEST keeps progress monotonically non-decreasing even under
	// out-of-order writes.
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET progress = GREATEST(progress, $2), step = $3, updated_at = NOW()
		 WHERE id = $1 AND status = 'processing'`, id, progress, step)
	if err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

func (s *PostgresStore) CompleteJob(ctx context.Context, id uuid.UUID, pdfPath string, previewPath *string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'success', progress = 100, step = 'done',
		        pdf_path = $2, preview_path = $3, completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'processing' AND NOT tombstoned`, id, pdfPath, previewPath)
	if err != nil {
		return fmt.Errorf("complete job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

func (s *PostgresStore) FailJob(ctx context.Context, id uuid.UUID, kind, message string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET status = 'failed', error_kind = $2, error_message = $3,
		        completed_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status IN ('pending', 'processing')`, id, kind, message)
	if err != nil {
		return fmt.Errorf("fail job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.transitionConflict(ctx, id)
	}
	return nil
}

func (s *PostgresStore) TombstoneJob(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE jobs SET tombstoned = TRUE, updated_at = NOW()
		 WHERE id = $1 AND owner_id = $2 AND NOT tombstoned`, id, ownerID)
	if err != nil {
		return fmt.Errorf("tombstone job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CountActiveJobs(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs
		 WHERE owner_id = $1 AND status IN ('pending', 'processing') AND NOT tombstoned`,
		ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active jobs: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) CountProcessingJobs(ctx context.Context, ownerID uuid.UUID) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs
		 WHERE owner_id = $1 AND status = 'processing' AND NOT tombstoned`,
		ownerID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count processing jobs: %w", err)
	}
	return n, nil
}

// transitionConflict distinguishes "job gone" from "job already terminal"
// after a guarded UPDATE matched zero rows.
func (s *PostgresStore) transitionConflict(ctx context.Context, id uuid.UUID) error {
	var status models.JobStatus
	err := s.pool.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check job status: %w", err)
	}
	if status.Terminal() {
		return ErrTerminal
	}
	return ErrNotFound
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*models.Job, error) {
	var j models.Job
	var errKind, errMsg *string
	err := row.Scan(&j.ID, &j.OwnerID, &j.Title, &j.Template, &j.Status, &j.Progress, &j.Step,
		&errKind, &errMsg, &j.PDFPath, &j.PreviewPath, &j.Tombstoned,
		&j.StartedAt, &j.CompletedAt, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan job: %w", err)
	}
	if errKind != nil {
		j.Error = &models.JobError{Kind: *errKind}
		if errMsg != nil {
			j.Error.Message = *errMsg
		}
	}
	return &j, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
