package docker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote/remotetest"
	"go.uber.org/zap"
)

var errNotFound = errors.New("not found")

type fakeInventory struct {
	mu      sync.Mutex
	servers map[int64]models.Server
	ports   map[int64]int
	writes  int
}

func newFakeInventory(servers ...models.Server) *fakeInventory {
	inv := &fakeInventory{
		servers: make(map[int64]models.Server),
		ports:   make(map[int64]int),
	}
	for _, s := range servers {
		inv.servers[s.ID] = s
	}

	return inv
}

func (f *fakeInventory) Server(ctx context.Context, id int64) (models.Server, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	server, ok := f.servers[id]
	if !ok {
		return models.Server{}, errNotFound
	}

	return server, nil
}

func (f *fakeInventory) RecordPort(ctx context.Context, projectID int64, port int) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ports[projectID] != 0 {
		return false, nil
	}
	f.ports[projectID] = port
	f.writes++

	return true, nil
}

var testServer = models.Server{ID: 1, Name: "web-1", Host: "203.0.113.5", Username: "root"}

func laravelProject() models.Project {
	return models.Project{ID: 7, Slug: "demo", Framework: "Laravel", ServerID: 1}
}

func newTestService(exec *remotetest.Executor, inventory *fakeInventory) *Service {
	svc := NewService(exec, inventory, DefaultConfig(), zap.NewNop().Sugar())

	fixed := time.Date(2025, 3, 14, 15, 9, 26, 0, time.UTC)
	svc.Containers.now = func() time.Time { return fixed }
	svc.Logs.now = func() time.Time { return fixed }

	return svc
}

const composeDetect = "test -f /var/www/demo/docker-compose.yml"
