package compiler_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morphcv/morphcv/internal/compiler"
	"github.com/morphcv/morphcv/internal/config"
)

// writeScript installs an executable shell script standing in for the
// toolchain binary.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tool.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func testConfig(t *testing.T, latex, preview string) config.CompilerConfig {
	t.Helper()
	return config.CompilerConfig{
		LatexPath:   latex,
		PreviewPath: preview,
		Timeout:     5 * time.Second,
		WorkDir:     t.TempDir(),
	}
}

func TestCompile_Success(t *testing.T) {
	latex := writeScript(t, `printf 'fake pdf bytes' > cv.pdf`)
	cfg := testConfig(t, latex, "")

	result, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), `\documentclass{article}`)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake pdf bytes"), result.PDF)
	assert.Nil(t, result.Preview)
}

func TestCompile_WithPreview(t *testing.T) {
	latex := writeScript(t, `printf 'fake pdf bytes' > cv.pdf`)
	preview := writeScript(t, `printf 'fake jpg bytes' > preview.jpg`)
	cfg := testConfig(t, latex, preview)

	result, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	require.NoError(t, err)
	assert.Equal(t, []byte("fake pdf bytes"), result.PDF)
	assert.Equal(t, []byte("fake jpg bytes"), result.Preview)
}

func TestCompile_PreviewFailureIsNotFatal(t *testing.T) {
	latex := writeScript(t, `printf 'fake pdf bytes' > cv.pdf`)
	preview := writeScript(t, `exit 1`)
	cfg := testConfig(t, latex, preview)

	result, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	require.NoError(t, err)
	assert.NotEmpty(t, result.PDF)
	assert.Nil(t, result.Preview)
}

func TestCompile_ExitError(t *testing.T) {
	latex := writeScript(t, `echo '! LaTeX Error: Undefined control sequence.'; exit 1`)
	cfg := testConfig(t, latex, "")

	_, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	require.Error(t, err)

	var exitErr *compiler.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Contains(t, exitErr.Diagnostic, "Undefined control sequence")
}

func TestCompile_Timeout(t *testing.T) {
	latex := writeScript(t, `sleep 10`)
	cfg := testConfig(t, latex, "")
	cfg.Timeout = 100 * time.Millisecond

	_, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	assert.ErrorIs(t, err, compiler.ErrTimeout)
}

func TestCompile_NoOutputFile(t *testing.T) {
	latex := writeScript(t, `exit 0`)
	cfg := testConfig(t, latex, "")

	_, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	assert.ErrorIs(t, err, compiler.ErrEmptyOutput)
}

func TestCompile_ZeroByteOutput(t *testing.T) {
	latex := writeScript(t, `: > cv.pdf`)
	cfg := testConfig(t, latex, "")

	_, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	assert.ErrorIs(t, err, compiler.ErrEmptyOutput)
}

func TestCompile_WorkdirRemoved(t *testing.T) {
	latex := writeScript(t, `printf 'fake pdf bytes' > cv.pdf`)
	cfg := testConfig(t, latex, "")

	_, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "workdir must be cleaned up after compile")
}

func TestCompile_WorkdirRemovedOnFailure(t *testing.T) {
	latex := writeScript(t, `exit 1`)
	cfg := testConfig(t, latex, "")

	_, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), "src")
	require.Error(t, err)

	entries, err := os.ReadDir(cfg.WorkDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompile_SourceReachesToolchain(t *testing.T) {
	// The script copies its input file to the output so we can assert the
	// rendered source arrived intact.
	latex := writeScript(t, `cp "$5" cv.pdf`)
	cfg := testConfig(t, latex, "")

	result, err := compiler.New(cfg).Compile(context.Background(), uuid.New(), `\hello{world}`)
	require.NoError(t, err)
	assert.Equal(t, []byte(`\hello{world}`), result.PDF)
}

func TestCompile_ParentCancellationIsNotATimeout(t *testing.T) {
	latex := writeScript(t, `sleep 10`)
	cfg := testConfig(t, latex, "")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := compiler.New(cfg).Compile(ctx, uuid.New(), "src")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, compiler.ErrTimeout)
}
