package remote

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindNone},
		{"timeout", &TimeoutError{After: time.Second}, KindTimeout},
		{"wrapped timeout", fmt.Errorf("exec: %w", &TimeoutError{After: time.Second}), KindTimeout},
		{"precondition", Preconditionf("Project has no associated server"), KindPrecondition},
		{"connectivity", fmt.Errorf("%w: dial tcp", ErrConnectivity), KindConnectivity},
		{"command", Failure(CommandResult{ExitCode: 1, Stderr: "nope"}), KindCommandFailed},
		{"ssh text", errors.New("ssh: connect to host 10.0.0.1 port 22: Connection refused"), KindConnectivity},
		{"other", errors.New("something else"), KindCommandFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestCommandFailureCarriesDetail(t *testing.T) {
	err := Failure(CommandResult{ExitCode: 2, Stdout: "out", Stderr: "  err \n"})
	assert.EqualError(t, err, "err")
	assert.ErrorIs(t, err, ErrCommandFailed)

	err = Failure(CommandResult{ExitCode: 2, Stdout: "only stdout"})
	assert.EqualError(t, err, "only stdout")

	err = Failure(CommandResult{ExitCode: 7})
	assert.EqualError(t, err, "command exited with status 7")
}

func TestCheck(t *testing.T) {
	assert.NoError(t, Check(CommandResult{}, nil))
	assert.ErrorIs(t, Check(CommandResult{ExitCode: 1}, nil), ErrCommandFailed)
	assert.ErrorIs(t, Check(CommandResult{}, ErrConnectivity), ErrConnectivity)
	assert.ErrorIs(t, Check(CommandResult{TimedOut: true}, nil), ErrCommandFailed)
}
