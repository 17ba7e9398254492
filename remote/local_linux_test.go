package remote

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var localhost = models.Server{Host: "localhost"}

var _ Executor = (*LocalExecutor)(nil)

func TestLocalRunCapturesOutputAndExitCode(t *testing.T) {
	e := NewLocalExecutor()

	res, err := e.Run(context.Background(), localhost, "echo out; echo err >&2; exit 3", false)
	require.NoError(t, err)
	assert.Equal(t, "out\n", res.Stdout)
	assert.Equal(t, "err\n", res.Stderr)
	assert.Equal(t, 3, res.ExitCode)
	assert.False(t, res.Successful())
	assert.Equal(t, "err", res.Detail())
}

func TestLocalRunWithInputKeepsSecretOffTheCommandLine(t *testing.T) {
	e := NewLocalExecutor()

	res, err := e.RunWithInput(context.Background(), localhost, "cat", []byte("s3cret"), false)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", res.Stdout)
}

// processAlive treats zombies as dead since nothing may be reaping them in
// a container.
func processAlive(pid int) bool {
	stat, err := os.ReadFile(fmt.Sprintf("/proc/%d/stat", pid))
	if err != nil {
		return false
	}

	idx := strings.LastIndex(string(stat), ") ")
	if idx < 0 || idx+2 >= len(stat) {
		return false
	}

	return stat[idx+2] != 'Z'
}

func TestLocalTimeoutKillsTheWholeProcessGroup(t *testing.T) {
	e := NewLocalExecutor()
	pidFile := filepath.Join(t.TempDir(), "pid")

	command := fmt.Sprintf("sleep 30 & echo $! > %s; wait", Quote(pidFile))

	start := time.Now()
	res, err := e.RunWithTimeout(context.Background(), localhost, command, 300*time.Millisecond, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, KindTimeout, Classify(err))
	assert.True(t, res.TimedOut)
	assert.False(t, res.Successful())
	assert.Less(t, time.Since(start), 10*time.Second)

	raw, err := os.ReadFile(pidFile)
	require.NoError(t, err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return !processAlive(pid)
	}, 3*time.Second, 20*time.Millisecond)
}

func TestLocalRunHonoursCancellation(t *testing.T) {
	e := NewLocalExecutor()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	res, err := e.Run(ctx, localhost, "sleep 30", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.TimedOut)
}
