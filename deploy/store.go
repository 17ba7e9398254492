package deploy

import (
	"context"
	"sync"
	"time"

	"github.com/juls0730/fluxops/pkg"
)

// RunStore holds deployment runs between advance calls.
type RunStore interface {
	Get(ctx context.Context, id string) (pkg.DeploymentRun, bool, error)
	Put(ctx context.Context, run pkg.DeploymentRun, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// Marker is the short lived slot recording when a run started.
type Marker interface {
	MarkStart(ctx context.Context, runID string, at time.Time, ttl time.Duration) error
	StartedAt(ctx context.Context, runID string) (time.Time, bool, error)
	ClearStart(ctx context.Context, runID string) error
}

type expiringEntry[T any] struct {
	value   T
	expires time.Time
}

// MemoryStore keeps runs and start markers in process memory.
type MemoryStore struct {
	runs    sync.Map
	markers sync.Map
	now     func() time.Time
}

var (
	_ RunStore = (*MemoryStore)(nil)
	_ Marker   = (*MemoryStore)(nil)
)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func load[T any](m *sync.Map, key string, now time.Time) (T, bool) {
	var zero T

	value, ok := m.Load(key)
	if !ok {
		return zero, false
	}

	entry := value.(*expiringEntry[T])
	if now.After(entry.expires) {
		m.CompareAndDelete(key, value)
		return zero, false
	}

	return entry.value, true
}

func (s *MemoryStore) Get(ctx context.Context, id string) (pkg.DeploymentRun, bool, error) {
	run, ok := load[pkg.DeploymentRun](&s.runs, id, s.now())
	if !ok {
		return run, false, nil
	}

	// steps are shared with the stored copy otherwise
	run.Steps = append([]pkg.DeploymentStep(nil), run.Steps...)
	return run, true, nil
}

func (s *MemoryStore) Put(ctx context.Context, run pkg.DeploymentRun, ttl time.Duration) error {
	run.Steps = append([]pkg.DeploymentStep(nil), run.Steps...)
	s.runs.Store(run.ID, &expiringEntry[pkg.DeploymentRun]{value: run, expires: s.now().Add(ttl)})
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.runs.Delete(id)
	return nil
}

func (s *MemoryStore) MarkStart(ctx context.Context, runID string, at time.Time, ttl time.Duration) error {
	s.markers.Store(runID, &expiringEntry[time.Time]{value: at, expires: s.now().Add(ttl)})
	return nil
}

func (s *MemoryStore) StartedAt(ctx context.Context, runID string) (time.Time, bool, error) {
	at, ok := load[time.Time](&s.markers, runID, s.now())
	return at, ok, nil
}

func (s *MemoryStore) ClearStart(ctx context.Context, runID string) error {
	s.markers.Delete(runID)
	return nil
}
