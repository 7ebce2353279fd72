package backend

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"
)

// errCanceled marks a run terminated by the caller's cancellation signal, as
// opposed to a genuine backend failure.
var errCanceled = errors.New("run canceled")

// cancelMessage is the failure text for caller-driven cancellation. It must
// not imply backend fault.
const cancelMessage = "run canceled before the backend finished"

// isMissingExecutable reports whether err means the backend binary is not on
// PATH, so the caller can degrade to the canonical missing-command result
// instead of surfacing a spawn error.
func isMissingExecutable(err error) bool {
	var execErr *exec.Error
	if errors.As(err, &execErr) {
		return errors.Is(execErr.Err, exec.ErrNotFound)
	}
	return errors.Is(err, exec.ErrNotFound)
}

// runProcess executes one backend invocation to completion.
//
// The message, when non-empty, is written to the child's stdin. onStart is
// invoked with the live process handle after a successful start and before
// blocking on exit. When ctx is done the child is killed and errCanceled
// returned; partial output is still returned for logging but callers must
// discard it from results.
func runProcess(ctx context.Context, bin string, args []string, stdin, workDir string, onStart func(*os.Process)) (stdout, stderr string, err error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = workDir
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}

	var outBuf, errBuf bytes.Buffer
	cmd.Stdout = &outBuf
	cmd.Stderr = &errBuf

	// Give the child a short grace period between ctx firing and the kill,
	// then make sure Wait cannot hang on inherited pipes.
	cmd.Cancel = func() error { return cmd.Process.Kill() }
	cmd.WaitDelay = 5 * time.Second

	start := time.Now()
	if err := cmd.Start(); err != nil {
		if ctx.Err() != nil {
			return "", "", errCanceled
		}
		return "", "", err
	}
	if onStart != nil {
		onStart(cmd.Process)
	}

	waitErr := cmd.Wait()
	slog.Debug("backend process finished",
		"bin", bin,
		"args", strings.Join(args, " "),
		"duration_ms", time.Since(start).Milliseconds(),
		"err", waitErr)

	if ctx.Err() != nil {
		return outBuf.String(), errBuf.String(), errCanceled
	}
	return outBuf.String(), errBuf.String(), waitErr
}
