package remote

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/juls0730/fluxops/models"
	"go.uber.org/zap"
)

// CommandResult is the outcome of one remote command.
type CommandResult struct {
	Stdout   string        `json:"stdout"`
	Stderr   string        `json:"stderr"`
	ExitCode int           `json:"exit_code"`
	TimedOut bool          `json:"timed_out,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (r CommandResult) Successful() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

func (r CommandResult) Output() string {
	return strings.TrimSpace(r.Stdout)
}

// Detail is the text an operator needs to diagnose a failure: stderr when
// there is any, stdout otherwise.
func (r CommandResult) Detail() string {
	if s := strings.TrimSpace(r.Stderr); s != "" {
		return s
	}

	if s := strings.TrimSpace(r.Stdout); s != "" {
		return s
	}

	if r.TimedOut {
		return "command timed out"
	}

	return fmt.Sprintf("command exited with status %d", r.ExitCode)
}

// Executor runs fully formed shell commands on a server. Callers are
// responsible for quoting every interpolated value, see Quote and Join.
//
// A non-zero exit is not an error: it is reported through the result. The
// returned error is reserved for connectivity faults and timeouts.
type Executor interface {
	Run(ctx context.Context, server models.Server, command string, interactive bool) (CommandResult, error)
	RunWithTimeout(ctx context.Context, server models.Server, command string, timeout time.Duration, interactive bool) (CommandResult, error)
	RunWithInput(ctx context.Context, server models.Server, command string, stdin []byte, interactive bool) (CommandResult, error)
}

type request struct {
	command     string
	timeout     time.Duration
	stdin       []byte
	interactive bool
}

type runner interface {
	execute(ctx context.Context, server models.Server, req request) (CommandResult, error)
}

// Dispatcher sends commands for local servers to a local shell and
// everything else over SSH.
type Dispatcher struct {
	ssh    runner
	local  runner
	logger *zap.SugaredLogger
}

var _ Executor = (*Dispatcher)(nil)

func NewDispatcher(config SSHConfig, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{
		ssh:    NewSSHExecutor(config),
		local:  NewLocalExecutor(),
		logger: logger,
	}
}

func (d *Dispatcher) Run(ctx context.Context, server models.Server, command string, interactive bool) (CommandResult, error) {
	return d.dispatch(ctx, server, request{command: command, interactive: interactive})
}

func (d *Dispatcher) RunWithTimeout(ctx context.Context, server models.Server, command string, timeout time.Duration, interactive bool) (CommandResult, error) {
	return d.dispatch(ctx, server, request{command: command, timeout: timeout, interactive: interactive})
}

func (d *Dispatcher) RunWithInput(ctx context.Context, server models.Server, command string, stdin []byte, interactive bool) (CommandResult, error) {
	if stdin == nil {
		stdin = []byte{}
	}

	return d.dispatch(ctx, server, request{command: command, stdin: stdin, interactive: interactive})
}

func (d *Dispatcher) dispatch(ctx context.Context, server models.Server, req request) (CommandResult, error) {
	var r runner = d.ssh
	if server.IsLocal() {
		r = d.local
	}

	d.logger.Debugw("Running command", "server", server.Host, "command", abbreviate(req.command), "timeout", req.timeout)

	res, err := r.execute(ctx, server, req)
	if err != nil {
		d.logger.Debugw("Command fault", "server", server.Host, "kind", Classify(err).String(), "error", err)
	} else if !res.Successful() {
		d.logger.Debugw("Command exited non-zero", "server", server.Host, "exit_code", res.ExitCode, "duration", res.Duration)
	}

	return res, err
}

// abbreviate keeps env flags and heredocs out of the logs.
func abbreviate(command string) string {
	const limit = 96
	if i := strings.Index(command, " -e "); i >= 0 {
		command = command[:i] + " ..."
	}

	if len(command) > limit {
		return command[:limit] + "..."
	}

	return command
}
