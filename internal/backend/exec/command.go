package exec

import (
	"bytes"
	"context"
	osexec "os/exec"
	"strings"

	"github.com/pkg/errors"
)

// commandResult is the outcome of one process execution.
type commandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// commandRunner abstracts process execution for testability.
type commandRunner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (commandResult, error)
}

// execRunner executes commands via os/exec.
type execRunner struct{}

// Run executes one command with stdin as its input and captures stdout, stderr and the exit code.
func (r *execRunner) Run(ctx context.Context, stdin string, name string, args ...string) (commandResult, error) {
	cmd := osexec.CommandContext(ctx, name, args...)
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := commandResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		result.ExitCode = -1
		var exitErr *osexec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
		}

		return result, errors.Wrapf(err, "unable to run %s", name)
	}

	return result, nil
}
