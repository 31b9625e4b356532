// Package pipeline runs the generation pipeline: a pool of workers pulls job
// references from the broker and executes Tailoring, Rendering, and
// Compilation strictly in order, persisting progress after each stage. The
// worker that claims a job is its sole writer until the job reaches a
// terminal state.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/morphcv/morphcv/internal/artifact"
	"github.com/morphcv/morphcv/internal/broker"
	"github.com/morphcv/morphcv/internal/cache"
	"github.com/morphcv/morphcv/internal/compiler"
	"github.com/morphcv/morphcv/internal/render"
	"github.com/morphcv/morphcv/internal/store"
	"github.com/morphcv/morphcv/pkg/models"
)

// Progress milestones, one per completed stage.
const (
	progressDequeued = 0
	progressTailored = 33
	progressRendered = 66
	progressDone     = 100
)

const (
	stepStarting      = "starting"
	stepTailored      = "content tailored"
	stepTailoringSkip = "tailoring skipped"
	stepRendered      = "document rendered"
	stepDone          = "done"
	statusTTL         = 30 * time.Minute
	dequeueWait       = 5 * time.Second
	compileAttempts   = 2
)

// DocumentCompiler is the compilation stage contract, satisfied by
// compiler.Compiler.
type DocumentCompiler interface {
	Compile(ctx context.Context, jobID uuid.UUID, source string) (compiler.Result, error)
}

// Config tunes the worker pool. Built from the application config in main.
type Config struct {
	Workers         int
	MaxJobsPerOwner int
	RequeueDelay    time.Duration
	StorageRetries  int
	TailorTimeout   time.Duration
	TailorRetries   int
}

// WorkerPool owns the worker goroutines.
type WorkerPool struct {
	store     store.Store
	cache     cache.Cache
	broker    broker.Broker
	provider  models.TextProvider
	compiler  DocumentCompiler
	artifacts artifact.Store
	cfg       Config
	wg        sync.WaitGroup
}

func NewWorkerPool(st store.Store, ca cache.Cache, br broker.Broker, provider models.TextProvider, comp DocumentCompiler, art artifact.Store, cfg Config) *WorkerPool {
	return &WorkerPool{
		store:     st,
		cache:     ca,
		broker:    br,
		provider:  provider,
		compiler:  comp,
		artifacts: art,
		cfg:       cfg,
	}
}

// Start launches the workers. They run until ctx is cancelled.
func (p *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
	slog.Info("worker pool started", "workers", p.cfg.Workers)
}

// Wait blocks until every worker has exited.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for {
		jobID, ok, err := p.broker.Dequeue(ctx, dequeueWait)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Error("dequeue failed", "worker", id, "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		if !ok {
			if ctx.Err() != nil {
				return
			}
			continue
		}
		p.runJob(ctx, jobID)
	}
}

// runJob isolates a single job so a panic in one stage never takes down the
// worker.
func (p *WorkerPool) runJob(ctx context.Context, jobID uuid.UUID) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in pipeline", "job_id", jobID, "panic", r)
			p.fail(ctx, jobID, fatal(KindStorage, "internal pipeline failure", nil))
		}
	}()
	p.process(ctx, jobID)
}

func (p *WorkerPool) process(ctx context.Context, jobID uuid.UUID) {
	job, err := p.store.GetJobForWorker(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			slog.Warn("dequeued unknown job", "job_id", jobID)
			return
		}
		slog.Error("loading job", "job_id", jobID, "error", err)
		return
	}

	// Duplicate delivery of a finished job is a no-op.
	if job.Status.Terminal() {
		slog.Info("duplicate delivery of terminal job", "job_id", jobID, "status", job.Status)
		return
	}
	if job.Tombstoned {
		p.discard(ctx, jobID)
		return
	}

	// Per-owner concurrency cap: push the job back rather than run it
	// alongside the owner's other in-flight jobs.
	inFlight, err := p.store.CountProcessingJobs(ctx, job.OwnerID)
	if err != nil {
		slog.Error("counting in-flight jobs", "job_id", jobID, "error", err)
		return
	}
	if inFlight >= p.cfg.MaxJobsPerOwner {
		p.requeue(ctx, jobID)
		return
	}

	if err := p.store.MarkProcessing(ctx, jobID); err != nil {
		if errors.Is(err, store.ErrTerminal) {
			slog.Info("duplicate delivery absorbed", "job_id", jobID)
			return
		}
		slog.Error("marking processing", "job_id", jobID, "error", err)
		return
	}
	p.cacheStatus(ctx, jobID, cache.StatusEntry{
		Status: models.JobStatusProcessing, Progress: progressDequeued, Step: stepStarting,
	})

	record, err := p.store.GetContent(ctx, jobID)
	if err != nil {
		p.fail(ctx, jobID, fatal(KindStorage, "content record unavailable", err))
		return
	}

	// Stage 1: tailoring. The only absorbable stage.
	content, step := p.tailor(ctx, jobID, record)
	if !p.advance(ctx, jobID, progressTailored, step) {
		return
	}

	// Stage 2: rendering.
	source, stageErr := p.renderStage(job.Template, content)
	if stageErr != nil {
		p.fail(ctx, jobID, stageErr)
		return
	}
	if !p.advance(ctx, jobID, progressRendered, stepRendered) {
		return
	}

	// Stage 3: compilation.
	result, stageErr := p.compileStage(ctx, jobID, source)
	if stageErr != nil {
		p.fail(ctx, jobID, stageErr)
		return
	}

	// A tombstone set during compilation must win: no artifacts for a
	// deleted job.
	if p.tombstoned(ctx, jobID) {
		p.discard(ctx, jobID)
		return
	}

	pdfPath, previewPath, stageErr := p.storeArtifacts(ctx, jobID, result)
	if stageErr != nil {
		p.fail(ctx, jobID, stageErr)
		return
	}

	if err := p.store.CompleteJob(ctx, jobID, pdfPath, previewPath); err != nil {
		// A lost race against deletion: the artifacts must not outlive the
		// job record's tombstone.
		if err := p.artifacts.RemoveJob(jobID); err != nil {
			slog.Error("removing orphaned artifacts", "job_id", jobID, "error", err)
		}
		slog.Warn("could not complete job", "job_id", jobID, "error", err)
		p.discard(ctx, jobID)
		return
	}

	p.cacheStatus(ctx, jobID, cache.StatusEntry{
		Status:   models.JobStatusSuccess,
		Progress: progressDone,
		Step:     stepDone,
		HasPDF:   true,
		HasPrev:  previewPath != nil,
	})
	slog.Info("job completed", "job_id", jobID, "preview", previewPath != nil)
}

// tailor runs the tailoring stage and returns the content the renderer should
// use plus the step label. Failure degrades to the original content.
func (p *WorkerPool) tailor(ctx context.Context, jobID uuid.UUID, record *models.ContentRecord) (models.Content, string) {
	content := record.Content

	var result models.TailorResult
	retryCfg := DefaultRetryConfig()
	retryCfg.MaxAttempts = p.cfg.TailorRetries
	err := retryWithBackoff(ctx, retryCfg, func() error {
		tctx, cancel := context.WithTimeout(ctx, p.cfg.TailorTimeout)
		defer cancel()
		var terr error
		result, terr = p.provider.Tailor(tctx, models.TailorRequest{
			Content:    content,
			TargetRole: record.TargetRole,
		})
		return terr
	})
	if err != nil {
		slog.Warn("tailoring failed, using original content", "job_id", jobID, "error", err)
		return content, stepTailoringSkip
	}

	if result.Summary != "" {
		content.Summary = result.Summary
	}
	if result.Experience != "" {
		content.Experience = result.Experience
	}
	if len(result.Skills) > 0 {
		content.Skills = result.Skills
	}
	if err := p.store.SetTailoredContent(ctx, jobID, content); err != nil {
		slog.Warn("persisting tailored content failed", "job_id", jobID, "error", err)
		return record.Content, stepTailoringSkip
	}
	return content, stepTailored
}

func (p *WorkerPool) renderStage(templateID string, content models.Content) (string, *StageError) {
	tpl, err := render.ParseTemplate(templateID)
	if err != nil {
		return "", fatal(KindRender, fmt.Sprintf("unknown template %q", templateID), err)
	}
	source, err := render.Render(tpl, content)
	if err != nil {
		return "", fatal(KindRender, err.Error(), err)
	}
	return source, nil
}

func (p *WorkerPool) compileStage(ctx context.Context, jobID uuid.UUID, source string) (compiler.Result, *StageError) {
	var result compiler.Result
	retryCfg := DefaultRetryConfig()
	retryCfg.MaxAttempts = compileAttempts
	err := retryWithBackoff(ctx, retryCfg, func() error {
		var cerr error
		result, cerr = p.compiler.Compile(ctx, jobID, source)
		return classifyCompileError(cerr)
	})
	if err == nil {
		return result, nil
	}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		return compiler.Result{}, stageErr
	}
	return compiler.Result{}, fatal(KindCompile, err.Error(), err)
}

// classifyCompileError maps adapter errors onto the failure taxonomy.
// Timeouts are transient; toolchain rejections are bad input and fatal;
// empty output counts as a storage defect.
func classifyCompileError(err error) error {
	if err == nil {
		return nil
	}
	var exitErr *compiler.ExitError
	switch {
	case errors.Is(err, compiler.ErrTimeout):
		return transient(KindTimeout, "document compilation timed out", err)
	case errors.Is(err, compiler.ErrEmptyOutput):
		return transient(KindStorage, "compiler produced no usable output", err)
	case errors.As(err, &exitErr):
		return fatal(KindCompile, exitErr.Diagnostic, err)
	default:
		return transient(KindCompile, err.Error(), err)
	}
}

func (p *WorkerPool) storeArtifacts(ctx context.Context, jobID uuid.UUID, result compiler.Result) (string, *string, *StageError) {
	var pdfPath string
	var previewPath *string

	retryCfg := DefaultRetryConfig()
	retryCfg.MaxAttempts = p.cfg.StorageRetries
	err := retryWithBackoff(ctx, retryCfg, func() error {
		path, serr := p.artifacts.Save(jobID, artifact.KindPDF, result.PDF)
		if serr != nil {
			return transient(KindStorage, "writing document artifact failed", serr)
		}
		pdfPath = path
		return nil
	})
	if err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			return "", nil, stageErr
		}
		return "", nil, fatal(KindStorage, err.Error(), err)
	}

	// The preview is optional; losing it is not worth failing the job.
	if len(result.Preview) > 0 {
		if path, serr := p.artifacts.Save(jobID, artifact.KindPreview, result.Preview); serr != nil {
			slog.Warn("writing preview artifact failed", "job_id", jobID, "error", serr)
		} else {
			previewPath = &path
		}
	}
	return pdfPath, previewPath, nil
}

// advance records stage completion. Returns false when the job must stop,
// either because it was tombstoned or its record is gone.
func (p *WorkerPool) advance(ctx context.Context, jobID uuid.UUID, progress int, step string) bool {
	if p.tombstoned(ctx, jobID) {
		p.discard(ctx, jobID)
		return false
	}
	if err := p.store.UpdateProgress(ctx, jobID, progress, step); err != nil {
		slog.Warn("progress update rejected", "job_id", jobID, "error", err)
		return false
	}
	p.cacheStatus(ctx, jobID, cache.StatusEntry{
		Status: models.JobStatusProcessing, Progress: progress, Step: step,
	})
	return true
}

func (p *WorkerPool) tombstoned(ctx context.Context, jobID uuid.UUID) bool {
	job, err := p.store.GetJobForWorker(ctx, jobID)
	if err != nil {
		return errors.Is(err, store.ErrNotFound)
	}
	return job.Tombstoned
}

// discard abandons a tombstoned job: no artifacts, no terminal transition.
// The tombstone flag itself is the deletion marker clients observe.
func (p *WorkerPool) discard(ctx context.Context, jobID uuid.UUID) {
	if err := p.cache.DeleteJobStatus(ctx, jobID); err != nil {
		slog.Warn("clearing cached status", "job_id", jobID, "error", err)
	}
	slog.Info("job discarded after deletion", "job_id", jobID)
}

func (p *WorkerPool) requeue(ctx context.Context, jobID uuid.UUID) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(p.cfg.RequeueDelay):
	}
	if err := p.broker.Enqueue(ctx, jobID); err != nil {
		slog.Error("requeue failed", "job_id", jobID, "error", err)
	}
}

func (p *WorkerPool) fail(ctx context.Context, jobID uuid.UUID, stageErr *StageError) {
	// Shutdown is not a job failure: leave the record in processing for a
	// redelivery instead of burning a terminal state on a raw ctx error.
	if errors.Is(stageErr, context.Canceled) {
		slog.Warn("job interrupted by shutdown", "job_id", jobID)
		return
	}
	if err := p.store.FailJob(ctx, jobID, string(stageErr.Kind), stageErr.Message); err != nil {
		if !errors.Is(err, store.ErrTerminal) {
			slog.Error("marking job failed", "job_id", jobID, "error", err)
		}
		return
	}
	job, err := p.store.GetJobForWorker(ctx, jobID)
	progress := progressDequeued
	step := stepStarting
	if err == nil {
		progress = job.Progress
		step = job.Step
	}
	p.cacheStatus(ctx, jobID, cache.StatusEntry{
		Status:   models.JobStatusFailed,
		Progress: progress,
		Step:     step,
		Error:    &models.JobError{Kind: string(stageErr.Kind), Message: stageErr.Message},
	})
	slog.Warn("job failed", "job_id", jobID, "kind", stageErr.Kind, "message", stageErr.Message)
}

func (p *WorkerPool) cacheStatus(ctx context.Context, jobID uuid.UUID, entry cache.StatusEntry) {
	if err := p.cache.SetJobStatus(ctx, jobID, entry, statusTTL); err != nil {
		slog.Warn("caching job status", "job_id", jobID, "error", err)
	}
}
