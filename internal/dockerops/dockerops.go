package dockerops

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/loykin/opsgate/internal/command"
)

// Container is one row from a container listing.
type Container struct {
	Name   string `json:"name"`
	Image  string `json:"image"`
	Status string `json:"status"`
}

// Ops is the Docker capability the router delegates to. Failures surface as
// typed *OpError values, never as panics across the router boundary.
type Ops interface {
	List(ctx context.Context) ([]Container, error)
	Details(ctx context.Context, name string) (string, error)
	Logs(ctx context.Context, name string, lines int) (string, error)
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Restart(ctx context.Context, name string) error
	Rebuild(ctx context.Context, name string) error
}

// OpError wraps a failed container operation with its stderr output.
type OpError struct {
	Op     string
	Name   string
	Stderr string
	Err    error
}

func (e *OpError) Error() string {
	msg := fmt.Sprintf("docker %s %s failed", e.Op, e.Name)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OpError) Unwrap() error { return e.Err }

// Execution bounds for CLI calls. Rebuild gets a wider window since it may
// pull and build images.
const (
	cliTimeout     = 30 * time.Second
	rebuildTimeout = 5 * time.Minute
	outputCap      = 64 * 1024
)

// CLI implements Ops by shelling out to the docker binary through a
// command.Runner.
type CLI struct {
	runner     command.Runner
	composeDir string // working directory hint for rebuilds
}

func NewCLI(runner command.Runner, composeDir string) *CLI {
	return &CLI{runner: runner, composeDir: composeDir}
}

func (c *CLI) run(ctx context.Context, op, name, cmdStr string, timeout time.Duration) (command.Result, error) {
	res, err := c.runner.Run(ctx, cmdStr, timeout, outputCap)
	if err != nil || !res.ExitedOk {
		return res, &OpError{Op: op, Name: name, Stderr: strings.TrimSpace(res.Stderr), Err: err}
	}
	return res, nil
}

func (c *CLI) List(ctx context.Context) ([]Container, error) {
	res, err := c.run(ctx, "ps", "",
		`docker ps -a --format '{{.Names}}|{{.Image}}|{{.Status}}'`, cliTimeout)
	if err != nil {
		return nil, err
	}
	var out []Container
	for _, line := range strings.Split(strings.TrimSpace(res.Stdout), "\n") {
		parts := strings.SplitN(line, "|", 3)
		if len(parts) != 3 {
			continue
		}
		out = append(out, Container{Name: parts[0], Image: parts[1], Status: parts[2]})
	}
	return out, nil
}

func (c *CLI) Details(ctx context.Context, name string) (string, error) {
	res, err := c.run(ctx, "stats", name,
		fmt.Sprintf("docker stats --no-stream %s", name), cliTimeout)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

func (c *CLI) Logs(ctx context.Context, name string, lines int) (string, error) {
	if lines <= 0 {
		lines = 50
	}
	res, err := c.run(ctx, "logs", name,
		fmt.Sprintf("docker logs --tail %d %s", lines, name), cliTimeout)
	if err != nil {
		return "", err
	}
	// docker logs writes to both streams depending on how the container logs
	out := res.Stdout
	if out == "" {
		out = res.Stderr
	}
	return strings.TrimSpace(out), nil
}

func (c *CLI) Start(ctx context.Context, name string) error {
	_, err := c.run(ctx, "start", name, fmt.Sprintf("docker start %s", name), cliTimeout)
	return err
}

func (c *CLI) Stop(ctx context.Context, name string) error {
	_, err := c.run(ctx, "stop", name, fmt.Sprintf("docker stop %s", name), cliTimeout)
	return err
}

func (c *CLI) Restart(ctx context.Context, name string) error {
	_, err := c.run(ctx, "restart", name, fmt.Sprintf("docker restart %s", name), cliTimeout)
	return err
}

func (c *CLI) Rebuild(ctx context.Context, name string) error {
	cmdStr := fmt.Sprintf("docker compose up -d --build %s", name)
	if c.composeDir != "" {
		cmdStr = fmt.Sprintf("cd %s && %s", c.composeDir, cmdStr)
	}
	_, err := c.run(ctx, "rebuild", name, cmdStr, rebuildTimeout)
	return err
}
