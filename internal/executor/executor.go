// Package executor runs external binaries (ffmpeg, whisper.cpp, lame).
package executor

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type Executor interface {
	Execute(ctx context.Context, name string, args ...string) ([]byte, error)
}

type implExecutor struct{}

func New() Executor {
	return &implExecutor{}
}

// Execute runs name with args and returns its stdout. Stderr is folded into
// the error on failure.
func (e *implExecutor) Execute(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if msg := lastLines(stderr.String(), 5); msg != "" {
			return nil, fmt.Errorf("command %q failed: %w\nstderr: %s", name, err, msg)
		}
		return nil, fmt.Errorf("command %q failed: %w", name, err)
	}

	return stdout.Bytes(), nil
}

// LookPath reports whether name resolves to an executable.
func LookPath(name string) error {
	if _, err := exec.LookPath(name); err != nil {
		return fmt.Errorf("%s not found in PATH: %w", name, err)
	}
	return nil
}

func lastLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
