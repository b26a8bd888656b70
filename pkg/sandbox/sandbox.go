// Package sandbox is a thin shim over the docker CLI for running
// analysis commands against a repository in isolation. It contains no
// pipeline logic; it exists so tool invocations are observable and
// countable.
package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Counter receives one tick per executed command. The pipeline's run
// context satisfies this.
type Counter interface {
	CountToolCall() int64
}

// Container identifies a running sandbox container.
type Container struct {
	ID    string
	Image string
}

// Engine drives sandbox containers through the docker CLI.
type Engine struct {
	dockerPath string
	counter    Counter
	logger     *zap.Logger
}

// NewEngine creates a sandbox engine. counter may be nil when tool
// accounting is not needed.
func NewEngine(counter Counter, logger *zap.Logger) (*Engine, error) {
	path, err := exec.LookPath("docker")
	if err != nil {
		return nil, fmt.Errorf("docker not available: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{dockerPath: path, counter: counter, logger: logger}, nil
}

// Start launches a container with the repository mounted at /workspace.
func (e *Engine) Start(ctx context.Context, image, repoPath string) (*Container, error) {
	out, err := e.run(ctx, "run", "-d",
		"-v", fmt.Sprintf("%s:/workspace", repoPath),
		"-w", "/workspace",
		image, "sleep", "infinity")
	if err != nil {
		return nil, fmt.Errorf("start container: %w", err)
	}
	id := strings.TrimSpace(out)
	if id == "" {
		return nil, fmt.Errorf("docker returned no container id")
	}
	return &Container{ID: id, Image: image}, nil
}

// Exec runs a command inside the container and returns its stdout.
func (e *Engine) Exec(ctx context.Context, c *Container, argv ...string) (string, error) {
	if c == nil || c.ID == "" {
		return "", fmt.Errorf("container is required")
	}
	args := append([]string{"exec", c.ID}, argv...)
	out, err := e.run(ctx, args...)
	if err != nil {
		return "", fmt.Errorf("exec %v: %w", argv, err)
	}
	return out, nil
}

// Remove stops and deletes the container. Best-effort: a container that
// is already gone is not an error.
func (e *Engine) Remove(ctx context.Context, c *Container) {
	if c == nil || c.ID == "" {
		return
	}
	if _, err := e.run(ctx, "rm", "-f", c.ID); err != nil {
		e.logger.Warn("container removal failed", zap.String("container", c.ID), zap.Error(err))
	}
}

func (e *Engine) run(ctx context.Context, args ...string) (string, error) {
	if e.counter != nil {
		e.counter.CountToolCall()
	}

	cmd := exec.CommandContext(ctx, e.dockerPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("docker %s: %w: %s", args[0], err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
