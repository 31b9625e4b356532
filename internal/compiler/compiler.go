// Package compiler wraps the external LaTeX toolchain. Every invocation runs
// in a job-scoped working directory that is removed on all exit paths, so
// concurrent jobs can never collide on intermediate files.
package compiler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/morphcv/morphcv/internal/config"
)

// Result holds the compiled artifacts in memory. The working directory is
// gone by the time Compile returns, so callers must persist these themselves.
type Result struct {
	PDF     []byte
	Preview []byte
}

// Compiler shells out to pdflatex and, when available, pdftoppm.
type Compiler struct {
	latexPath   string
	previewPath string
	timeout     time.Duration
	workDir     string
}

func New(cfg config.CompilerConfig) *Compiler {
	return &Compiler{
		latexPath:   cfg.LatexPath,
		previewPath: cfg.PreviewPath,
		timeout:     cfg.Timeout,
		workDir:     cfg.WorkDir,
	}
}

// Compile writes the rendered source into a fresh per-job directory, runs the
// toolchain, and returns the produced document plus an optional preview
// image. Preview generation is best-effort: its failure never fails the job.
func (c *Compiler) Compile(ctx context.Context, jobID uuid.UUID, source string) (Result, error) {
	dir, err := os.MkdirTemp(c.workDir, fmt.Sprintf("cv-%s-*", jobID))
	if err != nil {
		return Result{}, fmt.Errorf("creating workdir: %w", err)
	}
	defer os.RemoveAll(dir)

	texPath := filepath.Join(dir, "cv.tex")
	if err := os.WriteFile(texPath, []byte(source), 0o600); err != nil {
		return Result{}, fmt.Errorf("writing source: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.latexPath,
		"-interaction=nonstopmode",
		"-halt-on-error",
		"-output-directory", dir,
		texPath,
	)
	cmd.Dir = dir

	var output bytes.Buffer
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return Result{}, fmt.Errorf("%w after %s", ErrTimeout, c.timeout)
		case ctx.Err() != nil:
			// Parent cancellation (shutdown), not the stage deadline.
			return Result{}, fmt.Errorf("compilation interrupted: %w", ctx.Err())
		}
		return Result{}, &ExitError{Diagnostic: logTail(output.String())}
	}

	pdf, err := os.ReadFile(filepath.Join(dir, "cv.pdf"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Result{}, ErrEmptyOutput
		}
		return Result{}, fmt.Errorf("reading output: %w", err)
	}
	if len(pdf) == 0 {
		return Result{}, ErrEmptyOutput
	}

	return Result{PDF: pdf, Preview: c.preview(ctx, dir, jobID)}, nil
}

// preview rasterizes the first page. Returns nil when the tool is not
// configured or fails.
func (c *Compiler) preview(ctx context.Context, dir string, jobID uuid.UUID) []byte {
	if c.previewPath == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, c.previewPath,
		"-jpeg",
		"-singlefile",
		"-r", "150",
		filepath.Join(dir, "cv.pdf"),
		filepath.Join(dir, "preview"),
	)
	cmd.Dir = dir

	if err := cmd.Run(); err != nil {
		slog.Warn("preview generation failed", "job_id", jobID, "error", err)
		return nil
	}

	img, err := os.ReadFile(filepath.Join(dir, "preview.jpg"))
	if err != nil || len(img) == 0 {
		slog.Warn("preview unreadable", "job_id", jobID, "error", err)
		return nil
	}
	return img
}

// logTail keeps the last few lines of the compile log, which is where
// pdflatex prints the actual error.
func logTail(s string) string {
	const maxLines = 15
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
