// Package grass wraps invocation of GRASS GIS modules and external
// processing binaries, and tracks the temporary maps, regions and masks
// a driver creates so they can be removed again at exit.
package grass

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// Command is a single external process invocation.
type Command struct {
	Name string
	Args []string
	Env  []string
}

// Result carries the captured output of a finished Command.
type Result struct {
	Stdout []byte
	Stderr []byte
}

// Runner executes external commands. The abstraction exists so drivers
// can be unit tested without a GRASS installation.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// ExecRunner runs commands on the local system. BaseEnv is appended to
// the inherited environment of every child process.
type ExecRunner struct {
	BaseEnv []string
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	if len(r.BaseEnv) > 0 || len(cmd.Env) > 0 {
		c.Env = append(c.Environ(), r.BaseEnv...)
		c.Env = append(c.Env, cmd.Env...)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	err := c.Run()
	res := Result{Stdout: stdout.Bytes(), Stderr: stderr.Bytes()}
	if err != nil {
		return res, fmt.Errorf("%s %s: %w: %s", cmd.Name,
			strings.Join(cmd.Args, " "), err, firstLines(stderr.String(), 5))
	}
	return res, nil
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}

// Call records one invocation seen by a MockRunner.
type Call struct {
	Name string
	Args []string
}

// MockRunner implements Runner for tests. Handler, when set, scripts the
// output per command; otherwise every command succeeds with empty output.
type MockRunner struct {
	mu      sync.Mutex
	Calls   []Call
	Handler func(cmd Command) (Result, error)
}

func (m *MockRunner) Run(ctx context.Context, cmd Command) (Result, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, Call{Name: cmd.Name, Args: cmd.Args})
	m.mu.Unlock()
	if m.Handler != nil {
		return m.Handler(cmd)
	}
	return Result{}, nil
}

// CallNames returns the module names in invocation order.
func (m *MockRunner) CallNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, len(m.Calls))
	for i, c := range m.Calls {
		names[i] = c.Name
	}
	return names
}
