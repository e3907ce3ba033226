package utils

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const waitDelay = 2 * time.Second

// SafeCommand wraps exec.Cmd with buffers for stdout and stderr so a failing
// helper process (ollama, say, espeak) leaves its diagnostics in the error.
type SafeCommand struct {
	*exec.Cmd
	Stdout *bytes.Buffer
	Stderr *bytes.Buffer
}

// NewSafeCommand prepares a command bound to ctx; it is killed when ctx ends.
func NewSafeCommand(ctx context.Context, name string, args ...string) *SafeCommand {
	cmd := exec.CommandContext(ctx, name, args...)
	// Grandchildren may keep the pipes open after the kill.
	cmd.WaitDelay = waitDelay
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return &SafeCommand{Cmd: cmd, Stdout: stdout, Stderr: stderr}
}

// Run executes the command and returns trimmed stdout. A context deadline is
// reported as context.DeadlineExceeded; a non-zero exit carries stderr.
func (s *SafeCommand) Run(ctx context.Context) (string, error) {
	err := s.Cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", fmt.Errorf("%s: %w", s.Path, ctxErr)
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("%s exited with status %d: %s", s.Path, exitErr.ExitCode(), strings.TrimSpace(s.Stderr.String()))
		}
		return "", fmt.Errorf("%s failed: %w", s.Path, err)
	}
	return strings.TrimSpace(s.Stdout.String()), nil
}

// RunCommand is a shorthand for NewSafeCommand(ctx, name, args...).Run(ctx).
func RunCommand(ctx context.Context, name string, args ...string) (string, error) {
	return NewSafeCommand(ctx, name, args...).Run(ctx)
}
