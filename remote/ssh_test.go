package remote

import (
	"context"
	"testing"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWrapTimeout(t *testing.T) {
	got := wrapTimeout("echo 'hi'", 300*time.Second, 5*time.Second)
	assert.Equal(t, `timeout -k 5 300 sh -c 'echo '"'"'hi'"'"''`, got)

	got = wrapTimeout("true", 1500*time.Millisecond, 0)
	assert.Equal(t, "timeout -k 1 2 sh -c true", got)
}

func TestHitRemoteTimeout(t *testing.T) {
	tests := []struct {
		name     string
		exitCode int
		elapsed  time.Duration
		want     bool
	}{
		{"killed at the limit", timeoutExitCode, 30 * time.Second, true},
		{"killed after the limit", timeoutExitCode, 31 * time.Second, true},
		{"command exited 124 itself", timeoutExitCode, 2 * time.Second, false},
		{"ordinary failure", 1, 45 * time.Second, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, hitRemoteTimeout(tt.exitCode, tt.elapsed, 30*time.Second))
		})
	}
}

func TestSSHConfigDefaults(t *testing.T) {
	c := SSHConfig{}.withDefaults()
	assert.Equal(t, DefaultConnectTimeout, c.ConnectTimeout)
	assert.Equal(t, DefaultKillGrace, c.KillGrace)
}

func TestDispatcherReportsMissingCredentialsAsConnectivity(t *testing.T) {
	d := NewDispatcher(SSHConfig{}, zap.NewNop().Sugar())

	_, err := d.Run(context.Background(), models.Server{Host: "203.0.113.10", Username: "deploy"}, "true", false)
	require.Error(t, err)
	assert.Equal(t, KindConnectivity, Classify(err))
}

func TestDispatcherRunsLocalServersInAShell(t *testing.T) {
	d := NewDispatcher(SSHConfig{}, zap.NewNop().Sugar())

	res, err := d.Run(context.Background(), models.Server{Host: "localhost"}, "echo hello", false)
	require.NoError(t, err)
	assert.True(t, res.Successful())
	assert.Equal(t, "hello", res.Output())
}
