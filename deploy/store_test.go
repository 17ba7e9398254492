package deploy

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/juls0730/fluxops/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func sampleRun() pkg.DeploymentRun {
	return pkg.DeploymentRun{
		ID:          "run-1",
		ProjectID:   7,
		Status:      pkg.StatusRunning,
		CurrentStep: 0,
		Steps:       []pkg.DeploymentStep{{Name: StepGitPull, Status: pkg.StatusSuccess, Output: "Successfully pulled"}},
		Output:      "Starting deployment...\n",
		StartedAt:   time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC),
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Put(ctx, sampleRun(), time.Minute))
	require.NoError(t, store.MarkStart(ctx, "run-1", clock, 10*time.Second))

	run, ok, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Successfully pulled", run.Steps[0].Output)

	clock = clock.Add(30 * time.Second)
	_, ok, _ = store.StartedAt(ctx, "run-1")
	assert.False(t, ok)
	_, ok, _ = store.Get(ctx, "run-1")
	assert.True(t, ok)

	clock = clock.Add(time.Minute)
	_, ok, _ = store.Get(ctx, "run-1")
	assert.False(t, ok)

	_, stale := store.runs.Load("run-1")
	assert.False(t, stale)
	_, stale = store.markers.Load("run-1")
	assert.False(t, stale)
}

func TestMemoryStoreKeepsRefreshedEntry(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 14, 15, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	store.now = func() time.Time { return clock }

	require.NoError(t, store.Put(ctx, sampleRun(), time.Minute))
	clock = clock.Add(2 * time.Minute)
	require.NoError(t, store.Put(ctx, sampleRun(), time.Minute))

	run, ok, err := store.Get(ctx, "run-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "run-1", run.ID)
}

func TestMemoryStoreCopiesSteps(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	run := sampleRun()
	require.NoError(t, store.Put(ctx, run, time.Minute))
	run.Steps[0].Status = pkg.StatusFailed

	stored, _, _ := store.Get(ctx, "run-1")
	assert.Equal(t, pkg.StatusSuccess, stored.Steps[0].Status)

	stored.Steps[0].Status = pkg.StatusFailed
	again, _, _ := store.Get(ctx, "run-1")
	assert.Equal(t, pkg.StatusSuccess, again.Steps[0].Status)
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	store, err := NewRedisStore(RedisConfig{Addr: mr.Addr()}, zap.NewNop().Sugar())
	require.NoError(t, err)
	defer store.Close()

	t.Run("runs", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, sampleRun(), time.Minute))
		assert.Equal(t, time.Minute, mr.TTL(runKeyPrefix+"run-1"))

		run, ok, err := store.Get(ctx, "run-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, sampleRun().StartedAt, run.StartedAt.UTC())
		assert.Equal(t, sampleRun().Steps, run.Steps)

		mr.FastForward(2 * time.Minute)
		_, ok, err = store.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, store.Put(ctx, sampleRun(), time.Minute))
		require.NoError(t, store.Delete(ctx, "run-1"))

		_, ok, err := store.Get(ctx, "run-1")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("marker", func(t *testing.T) {
		at := time.Date(2025, 3, 14, 15, 0, 0, 123, time.UTC)
		require.NoError(t, store.MarkStart(ctx, "run-2", at, 600*time.Second))
		assert.Equal(t, 600*time.Second, mr.TTL(markerKeyPrefix+"run-2"))

		got, ok, err := store.StartedAt(ctx, "run-2")
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, at.Equal(got))

		require.NoError(t, store.ClearStart(ctx, "run-2"))
		_, ok, err = store.StartedAt(ctx, "run-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("corrupt value", func(t *testing.T) {
		require.NoError(t, mr.Set(runKeyPrefix+"bad", "{not json"))

		_, _, err := store.Get(ctx, "bad")
		assert.Error(t, err)
	})
}

func TestNewRedisStoreUnreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	addr := mr.Addr()
	mr.Close()

	_, err = NewRedisStore(RedisConfig{Addr: addr}, zap.NewNop().Sugar())
	assert.Error(t, err)
}
