package command

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Result is the outcome of one shell execution. Stdout/Stderr are truncated
// to the configured byte cap.
type Result struct {
	Stdout    string
	Stderr    string
	ExitedOk  bool
	TimedOut  bool
	Truncated bool
}

// Runner executes a shell command bounded by a timeout and an output cap.
type Runner interface {
	Run(ctx context.Context, cmdStr string, timeout time.Duration, maxOutputBytes int) (Result, error)
}

// Execution bounds applied when the caller passes zero values.
const (
	DefaultTimeout        = 30 * time.Second
	DefaultMaxOutputBytes = 64 * 1024
)

// ShellRunner runs commands on the local host. Commands containing shell
// metacharacters go through /bin/sh -c; plain commands are executed directly.
type ShellRunner struct{}

func NewShellRunner() *ShellRunner { return &ShellRunner{} }

func (r *ShellRunner) Run(ctx context.Context, cmdStr string, timeout time.Duration, maxOutputBytes int) (Result, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = DefaultMaxOutputBytes
	}
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return Result{}, errors.New("empty command")
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := buildShellAwareCommand(ctx, cmdStr)
	stdout := newCappedBuffer(maxOutputBytes)
	stderr := newCappedBuffer(maxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	err := cmd.Run()
	res := Result{
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
		ExitedOk:  err == nil,
		Truncated: stdout.Truncated() || stderr.Truncated(),
	}
	if ctx.Err() == context.DeadlineExceeded {
		res.TimedOut = true
		res.ExitedOk = false
		return res, context.DeadlineExceeded
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) {
		// non-zero exit is an outcome, not an execution error
		return res, nil
	}
	return res, err
}

// buildShellAwareCommand constructs an *exec.Cmd for an operator command.
// Avoids invoking a shell unless obvious shell metacharacters are present (G204 mitigation).
func buildShellAwareCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		// #nosec G204
		return exec.CommandContext(ctx, "/bin/sh", "-c", cmdStr)
	}
	parts := strings.Fields(cmdStr)
	name := parts[0]
	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}
	// #nosec G204
	return exec.CommandContext(ctx, name, args...)
}

// cappedBuffer keeps the first n bytes written and drops the rest.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       []byte
	cap       int
	truncated bool
}

func newCappedBuffer(n int) *cappedBuffer {
	return &cappedBuffer{cap: n}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	room := b.cap - len(b.buf)
	if room <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > room {
		b.buf = append(b.buf, p[:room]...)
		b.truncated = true
		return len(p), nil
	}
	b.buf = append(b.buf, p...)
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *cappedBuffer) Truncated() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.truncated
}
