package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/juls0730/fluxops/models"
)

// LocalExecutor runs commands through sh on this machine. It serves servers
// whose host is a loopback address.
type LocalExecutor struct {
	shell string
}

func NewLocalExecutor() *LocalExecutor {
	return &LocalExecutor{shell: "sh"}
}

func (e *LocalExecutor) Run(ctx context.Context, server models.Server, command string, interactive bool) (CommandResult, error) {
	return e.execute(ctx, server, request{command: command, interactive: interactive})
}

func (e *LocalExecutor) RunWithTimeout(ctx context.Context, server models.Server, command string, timeout time.Duration, interactive bool) (CommandResult, error) {
	return e.execute(ctx, server, request{command: command, timeout: timeout, interactive: interactive})
}

func (e *LocalExecutor) RunWithInput(ctx context.Context, server models.Server, command string, stdin []byte, interactive bool) (CommandResult, error) {
	if stdin == nil {
		stdin = []byte{}
	}

	return e.execute(ctx, server, request{command: command, stdin: stdin, interactive: interactive})
}

func (e *LocalExecutor) execute(ctx context.Context, _ models.Server, req request) (CommandResult, error) {
	start := time.Now()

	runCtx := ctx
	if req.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.Command(e.shell, "-c", req.command)
	cmd.SysProcAttr = sysProcAttr()
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second
	if req.stdin != nil {
		cmd.Stdin = bytes.NewReader(req.stdin)
	}

	if err := cmd.Start(); err != nil {
		return CommandResult{ExitCode: -1}, fmt.Errorf("%w: failed to start shell: %v", ErrConnectivity, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	var err error
	select {
	case err = <-done:
	case <-runCtx.Done():
		killProcessGroup(cmd)
		<-done

		res := CommandResult{
			Stdout:   stdout.String(),
			Stderr:   stderr.String(),
			ExitCode: -1,
			TimedOut: req.timeout > 0,
			Duration: time.Since(start),
		}
		if req.timeout > 0 && ctx.Err() == nil {
			return res, &TimeoutError{After: req.timeout}
		}

		return res, fmt.Errorf("command cancelled: %w", ctx.Err())
	}

	res := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
	default:
		res.ExitCode = -1
		return res, fmt.Errorf("%w: %v", ErrConnectivity, err)
	}

	return res, nil
}
