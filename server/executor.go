package server

import (
	"context"
	"time"

	"github.com/juls0730/fluxops/metrics"
	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote"
)

// instrumentedExecutor records the duration and outcome of every command
// before handing the result back unchanged.
type instrumentedExecutor struct {
	next remote.Executor
}

var _ remote.Executor = (*instrumentedExecutor)(nil)

func Instrument(next remote.Executor) remote.Executor {
	return &instrumentedExecutor{next: next}
}

func (e *instrumentedExecutor) Run(ctx context.Context, server models.Server, command string, interactive bool) (remote.CommandResult, error) {
	started := time.Now()
	res, err := e.next.Run(ctx, server, command, interactive)
	observe(server, started, res, err)

	return res, err
}

func (e *instrumentedExecutor) RunWithTimeout(ctx context.Context, server models.Server, command string, timeout time.Duration, interactive bool) (remote.CommandResult, error) {
	started := time.Now()
	res, err := e.next.RunWithTimeout(ctx, server, command, timeout, interactive)
	observe(server, started, res, err)

	return res, err
}

func (e *instrumentedExecutor) RunWithInput(ctx context.Context, server models.Server, command string, stdin []byte, interactive bool) (remote.CommandResult, error) {
	started := time.Now()
	res, err := e.next.RunWithInput(ctx, server, command, stdin, interactive)
	observe(server, started, res, err)

	return res, err
}

func observe(server models.Server, started time.Time, res remote.CommandResult, err error) {
	transport := "ssh"
	if server.IsLocal() {
		transport = "local"
	}

	outcome := "ok"
	if err := remote.Check(res, err); err != nil {
		outcome = remote.Classify(err).String()
	}

	metrics.RemoteCommandDuration.WithLabelValues(transport, outcome).Observe(time.Since(started).Seconds())
	metrics.RemoteCommandsTotal.WithLabelValues(transport, outcome).Inc()
}
