// Package remotetest provides a scripted remote.Executor for tests.
package remotetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote"
)

type Call struct {
	Server      models.Server
	Command     string
	Timeout     time.Duration
	Stdin       []byte
	Interactive bool
}

type Response struct {
	Result remote.CommandResult
	Err    error
	// Delay holds the answer back. The call ends early with the context's
	// error when ctx is done first.
	Delay time.Duration
}

// Slow answers like resp after d, unless the caller's context ends first.
func Slow(d time.Duration, resp Response) Response {
	resp.Delay = d
	return resp
}

func OK(stdout string) Response {
	return Response{Result: remote.CommandResult{Stdout: stdout}}
}

func Fail(exitCode int, stderr string) Response {
	return Response{Result: remote.CommandResult{ExitCode: exitCode, Stderr: stderr}}
}

func Fault(err error) Response {
	return Response{Result: remote.CommandResult{ExitCode: -1}, Err: err}
}

type rule struct {
	match     string
	responses []Response
	hits      int
}

// Executor answers each command with the responses of the first rule whose
// substring it contains. A rule with several responses plays them in order
// and then keeps repeating the last one. Unmatched commands succeed with no
// output.
type Executor struct {
	mu    sync.Mutex
	rules []*rule
	calls []Call
}

var _ remote.Executor = (*Executor)(nil)

func New() *Executor {
	return &Executor{}
}

func (e *Executor) On(match string, responses ...Response) *Executor {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(responses) == 0 {
		responses = []Response{OK("")}
	}
	e.rules = append(e.rules, &rule{match: match, responses: responses})

	return e
}

func (e *Executor) Run(ctx context.Context, server models.Server, command string, interactive bool) (remote.CommandResult, error) {
	return e.record(ctx, Call{Server: server, Command: command, Interactive: interactive})
}

func (e *Executor) RunWithTimeout(ctx context.Context, server models.Server, command string, timeout time.Duration, interactive bool) (remote.CommandResult, error) {
	return e.record(ctx, Call{Server: server, Command: command, Timeout: timeout, Interactive: interactive})
}

func (e *Executor) RunWithInput(ctx context.Context, server models.Server, command string, stdin []byte, interactive bool) (remote.CommandResult, error) {
	return e.record(ctx, Call{Server: server, Command: command, Stdin: stdin, Interactive: interactive})
}

func (e *Executor) record(ctx context.Context, call Call) (remote.CommandResult, error) {
	resp := e.respond(call)
	if resp.Delay <= 0 {
		return resp.Result, resp.Err
	}

	timer := time.NewTimer(resp.Delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return resp.Result, resp.Err
	case <-ctx.Done():
		return remote.CommandResult{ExitCode: -1}, ctx.Err()
	}
}

func (e *Executor) respond(call Call) Response {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.calls = append(e.calls, call)

	for _, r := range e.rules {
		if !strings.Contains(call.Command, r.match) {
			continue
		}

		idx := r.hits
		if idx >= len(r.responses) {
			idx = len(r.responses) - 1
		}
		r.hits++

		return r.responses[idx]
	}

	return Response{}
}

func (e *Executor) Calls() []Call {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]Call(nil), e.calls...)
}

func (e *Executor) Commands() []string {
	var commands []string
	for _, c := range e.Calls() {
		commands = append(commands, c.Command)
	}

	return commands
}

// Find returns the first recorded call containing match.
func (e *Executor) Find(match string) (Call, bool) {
	for _, c := range e.Calls() {
		if strings.Contains(c.Command, match) {
			return c, true
		}
	}

	return Call{}, false
}

func (e *Executor) Ran(match string) bool {
	_, ok := e.Find(match)
	return ok
}

// Index returns the position of the first call containing match, or -1.
func (e *Executor) Index(match string) int {
	for i, c := range e.Calls() {
		if strings.Contains(c.Command, match) {
			return i
		}
	}

	return -1
}
