package remote

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrConnectivity  = errors.New("connectivity fault")
	ErrCommandFailed = errors.New("remote command failed")
	ErrTimeout       = errors.New("timeout exceeded")
	ErrPrecondition  = errors.New("precondition unmet")
)

type Kind int

const (
	KindNone Kind = iota
	KindConnectivity
	KindCommandFailed
	KindTimeout
	KindPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindCommandFailed:
		return "command_failed"
	case KindTimeout:
		return "timeout"
	case KindPrecondition:
		return "precondition"
	default:
		return "none"
	}
}

// connectivityPatterns are messages emitted by ssh or the network stack when
// the command never reached the remote shell.
var connectivityPatterns = []string{
	"Session open refused by peer",
	"no more sessions",
	"Connection closed by",
	"connection refused",
	"Connection reset by peer",
	"Could not resolve hostname",
	"Permission denied (publickey",
	"connection timed out",
	"i/o timeout",
	"no such host",
	"network is unreachable",
	"unable to authenticate",
	"handshake failed",
}

func looksLikeConnectivity(msg string) bool {
	lower := strings.ToLower(msg)
	for _, pattern := range connectivityPatterns {
		if strings.Contains(lower, strings.ToLower(pattern)) {
			return true
		}
	}

	return false
}

// Classify maps an error returned by this package onto the error taxonomy.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrPrecondition):
		return KindPrecondition
	case errors.Is(err, ErrConnectivity):
		return KindConnectivity
	case errors.Is(err, ErrCommandFailed):
		return KindCommandFailed
	case looksLikeConnectivity(err.Error()):
		return KindConnectivity
	default:
		return KindCommandFailed
	}
}

// CommandFailure is returned by callers when a command ran and exited non-zero.
// Its message is the captured remote output so operators can diagnose it.
type CommandFailure struct {
	Result CommandResult
}

func (e *CommandFailure) Error() string {
	return e.Result.Detail()
}

func (e *CommandFailure) Is(target error) bool {
	return target == ErrCommandFailed
}

func Failure(res CommandResult) error {
	return &CommandFailure{Result: res}
}

type TimeoutError struct {
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("command timed out after %s", e.After)
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

type preconditionError struct {
	msg string
}

func (e *preconditionError) Error() string {
	return e.msg
}

func (e *preconditionError) Is(target error) bool {
	return target == ErrPrecondition
}

func Preconditionf(format string, args ...any) error {
	return &preconditionError{msg: fmt.Sprintf(format, args...)}
}

// Check turns an executor outcome into a single error: the executor's own
// error if there is one, a CommandFailure on a non-zero exit, nil otherwise.
func Check(res CommandResult, err error) error {
	if err != nil {
		return err
	}

	if !res.Successful() {
		return Failure(res)
	}

	return nil
}
