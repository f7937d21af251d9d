package gitupdater

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// DefaultCommandTimeout is applied to git commands whose context has no
// deadline.
const DefaultCommandTimeout = 5 * time.Minute

// CommandError represents a failed git command execution.
type CommandError struct {
	Args   []string
	Stdout string
	Stderr string
	Err    error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("git command failed: git %s", strings.Join(e.Args, " "))
	if e.Stderr != "" {
		msg += fmt.Sprintf("\nstderr: %s", e.Stderr)
	}
	if e.Stdout != "" {
		msg += fmt.Sprintf("\nstdout: %s", e.Stdout)
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\n%v", e.Err)
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// Runner executes git commands in a working directory.
type Runner struct {
	dir string
}

// NewRunner creates a Runner for dir.
func NewRunner(dir string) *Runner {
	return &Runner{dir: dir}
}

// Run executes git with args and returns trimmed stdout. Prompts are
// disabled so a missing credential fails instead of blocking.
func (r *Runner) Run(ctx context.Context, args ...string) (string, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultCommandTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "GIT_EDITOR=true")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return "", &CommandError{Args: args, Stdout: stdout.String(), Stderr: stderr.String(), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// isConflict reports whether err is a git command that stopped on conflicts.
func isConflict(err error) bool {
	var ce *CommandError
	if !errors.As(err, &ce) {
		return false
	}
	out := ce.Stdout + ce.Stderr
	return strings.Contains(out, "CONFLICT") || strings.Contains(out, "could not apply")
}
