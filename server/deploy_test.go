package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploymentLockRejectsSecondRun(t *testing.T) {
	dl := NewDeploymentLock()

	ctx, err := dl.StartDeployment(7, "run-a")
	require.NoError(t, err)

	_, err = dl.StartDeployment(7, "run-b")
	assert.ErrorContains(t, err, "already being deployed (run run-a)")

	_, err = dl.StartDeployment(8, "run-c")
	assert.NoError(t, err)

	runID, ok := dl.Running(7)
	assert.True(t, ok)
	assert.Equal(t, "run-a", runID)

	dl.CompleteDeployment(7, "run-b")
	_, ok = dl.Running(7)
	assert.True(t, ok, "completing another run must not release the project")

	dl.CompleteDeployment(7, "run-a")
	_, ok = dl.Running(7)
	assert.False(t, ok)
	assert.Error(t, ctx.Err())

	_, err = dl.StartDeployment(7, "run-d")
	assert.NoError(t, err)
}

func TestDeploymentLockContext(t *testing.T) {
	dl := NewDeploymentLock()

	started, err := dl.StartDeployment(7, "run-a")
	require.NoError(t, err)

	ctx, ok := dl.Context(7, "run-a")
	require.True(t, ok)
	assert.Equal(t, started, ctx)

	_, ok = dl.Context(7, "run-b")
	assert.False(t, ok)

	dl.CancelAll()
	assert.Error(t, ctx.Err())
	_, ok = dl.Running(7)
	assert.False(t, ok)
}
