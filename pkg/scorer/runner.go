package scorer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"time"

	"github.com/moca-trajectory-engine/internal/domain"
)

// waitDelay bounds how long Run waits for stdio after the process is killed.
const waitDelay = 2 * time.Second

// Runner executes one scoring round trip.
type Runner interface {
	Run(ctx context.Context, payload []byte) ([]byte, error)
}

// RunnerConfig describes the scoring executable.
type RunnerConfig struct {
	Command string
	Args    []string
	WorkDir string
	Timeout time.Duration
	// Env is appended to the current environment.
	Env []string
}

// ProcessRunner starts a fresh scorer process per call.
type ProcessRunner struct {
	config RunnerConfig
}

// NewProcessRunner creates a runner for the configured command
func NewProcessRunner(config RunnerConfig) *ProcessRunner {
	return &ProcessRunner{config: config}
}

// Run writes payload to the process stdin, closes it and returns stdout. A
// missing executable yields domain.ErrScorerUnavailable.
func (r *ProcessRunner) Run(ctx context.Context, payload []byte) ([]byte, error) {
	path, err := exec.LookPath(r.config.Command)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrScorerUnavailable, err)
	}

	runCtx := ctx
	if r.config.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, r.config.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, path, r.config.Args...)
	cmd.Dir = r.config.WorkDir
	if len(r.config.Env) > 0 {
		cmd.Env = append(os.Environ(), r.config.Env...)
	}
	cmd.WaitDelay = waitDelay
	cmd.Stdin = bytes.NewReader(payload)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return nil, &domain.ScoringTimeoutError{Timeout: r.config.Timeout, Stderr: stderr.String()}
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("scoring process cancelled: %w", ctx.Err())
		}

		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &domain.ScoringProcessError{
				ExitCode: exitErr.ExitCode(),
				Stderr:   stderr.String(),
				Reason:   "non-zero exit",
				Err:      err,
			}
		}
		if errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %v", domain.ErrScorerUnavailable, err)
		}
		return nil, &domain.ScoringProcessError{Reason: "failed to run", Stderr: stderr.String(), Err: err}
	}

	return stdout.Bytes(), nil
}
