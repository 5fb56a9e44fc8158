// ABOUTME: Exec adapter: talks JSON-RPC over stdio to a process inside a running container.
// ABOUTME: Every call is a fresh subprocess execution; no pipe is held open between calls.

package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/2389/fold-bridge/internal/manifest"
	"github.com/2389/fold-bridge/internal/result"
)

// defaultExecCommand is the execution primitive used to reach the backend
// process. The container name and the backend's command argv are appended.
var defaultExecCommand = []string{"docker", "exec", "-i"}

// ExecAdapter reaches a backend that is a long-lived external process.
//
// Each Invoke runs a fresh execution of the backend's command, writes one
// JSON-RPC request to its stdin, waits for it to exit, and parses stdout.
// Paying the subprocess-start cost on every call is deliberate: a persistent
// duplex pipe cannot distinguish interleaved responses after a partial read,
// and resynchronizing a desynced stdio stream is worse than the latency.
type ExecAdapter struct {
	desc         *manifest.Descriptor
	runner       []string
	callTimeout  time.Duration
	probeTimeout time.Duration
	format       Formatter
	logger       *slog.Logger
}

// NewExec creates an exec adapter for the given descriptor.
func NewExec(desc *manifest.Descriptor, opts Options) (*ExecAdapter, error) {
	if desc.Exec == nil {
		return nil, fmt.Errorf("backend %s has no exec connection block", desc.ID)
	}
	opts = opts.withDefaults()

	runner := opts.ExecCommand
	if len(runner) == 0 {
		runner = defaultExecCommand
	}

	return &ExecAdapter{
		desc:         desc,
		runner:       runner,
		callTimeout:  opts.CallTimeout,
		probeTimeout: opts.ProbeTimeout,
		format:       opts.Formatter,
		logger:       opts.Logger.With("component", "adapter", "backend", desc.ID),
	}, nil
}

// Probe checks the backend process is reachable by listing its working
// directory through the execution primitive. Side-effect free.
func (a *ExecAdapter) Probe(ctx context.Context) error {
	workdir := a.desc.Exec.Workdir
	if workdir == "" {
		workdir = "/"
	}

	ctx, cancel := context.WithTimeout(ctx, a.probeTimeout)
	defer cancel()

	argv := a.argv("ls", workdir)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("probing %s: %w (%s)", a.desc.Exec.Container, err, strings.TrimSpace(stderr.String()))
	}
	return nil
}

// Invoke executes one tool call as a fresh subprocess run.
func (a *ExecAdapter) Invoke(ctx context.Context, tool string, args map[string]any) (*result.Result, error) {
	payload, err := encodeCall(tool, args)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.callTimeout)
	defer cancel()

	argv := a.argv(a.desc.Exec.Command...)
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	a.logger.Debug("invoking tool via exec", "tool", tool, "argv", argv)
	start := time.Now()
	err = cmd.Run()
	elapsed := time.Since(start)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		a.logger.Warn("tool call timed out", "tool", tool, "elapsed", elapsed)
		return result.Failure("timed out"), nil
	case err != nil:
		a.logger.Warn("tool call failed", "tool", tool, "error", err)
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return result.Failuref("backend unreachable: %s", detail), nil
	}

	a.logger.Debug("tool call completed", "tool", tool, "elapsed", elapsed)
	return decodeResponse(stdout.Bytes(), a.format), nil
}

// argv assembles runner + container + trailing arguments.
func (a *ExecAdapter) argv(trailing ...string) []string {
	argv := make([]string, 0, len(a.runner)+1+len(trailing))
	argv = append(argv, a.runner...)
	argv = append(argv, a.desc.Exec.Container)
	argv = append(argv, trailing...)
	return argv
}
