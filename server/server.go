package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/juls0730/fluxops/deploy"
	"github.com/juls0730/fluxops/docker"
	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"k8s.io/utils/keymutex"
)

const Version = "0.3.0"

type runStore interface {
	deploy.RunStore
	deploy.Marker
}

type FluxServer struct {
	config       Config
	store        *Store
	docker       *docker.Service
	engine       *deploy.Engine
	runs         runStore
	runStoreName string
	deployments  *DeploymentLock
	projectLocks keymutex.KeyMutex
	httpServer   *http.Server
	Logger       *zap.SugaredLogger
}

// NewServer opens the database and run store named in config and wires the
// engine over SSH and local shells.
func NewServer(config Config, logger *zap.SugaredLogger) (*FluxServer, error) {
	store, err := OpenStore(config.Database)
	if err != nil {
		return nil, err
	}

	exec := Instrument(remote.NewDispatcher(config.SSH, logger.Named("remote")))

	var runs runStore = deploy.NewMemoryStore()
	runStoreName := "memory"
	if config.Redis.Addr != "" {
		redisStore, err := deploy.NewRedisStore(config.Redis, logger.Named("redis"))
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		runs = redisStore
		runStoreName = "redis"
	}

	s := newServer(config, store, exec, runs, logger)
	s.runStoreName = runStoreName

	return s, nil
}

func newServer(config Config, store *Store, exec remote.Executor, runs runStore, logger *zap.SugaredLogger) *FluxServer {
	s := &FluxServer{
		config:       config,
		store:        store,
		runs:         runs,
		runStoreName: "memory",
		deployments:  NewDeploymentLock(),
		projectLocks: keymutex.NewHashed(0),
		Logger:       logger,
	}

	config.Deploy.ProjectsRoot = config.Engine.ProjectsRoot
	s.docker = docker.NewService(exec, store, config.Engine, logger.Named("docker"))
	s.engine = deploy.NewEngine(exec, store, lockedRestarter{s}, runs, runs, config.Deploy, logger.Named("deploy"))

	return s
}

// lockedRestarter restarts containers for the deploy engine while holding
// the same per-project lock the HTTP handlers take.
type lockedRestarter struct {
	s *FluxServer
}

func (r lockedRestarter) Restart(ctx context.Context, project models.Project) pkg.MessageResult {
	unlock := r.s.lockProject(project.ID)
	defer unlock()

	return r.s.docker.Containers.Restart(ctx, project)
}

func (s *FluxServer) lockProject(id int64) func() {
	key := strconv.FormatInt(id, 10)
	s.projectLocks.LockKey(key)

	return func() {
		_ = s.projectLocks.UnlockKey(key)
	}
}

func (s *FluxServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /heartbeat", s.DaemonInfoHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /servers", s.CreateServerHandler)
	mux.HandleFunc("GET /servers", s.ListServersHandler)

	mux.HandleFunc("POST /projects", s.CreateProjectHandler)
	mux.HandleFunc("GET /projects", s.ListProjectsHandler)
	mux.HandleFunc("GET /projects/{id}", s.GetProjectHandler)
	mux.HandleFunc("DELETE /projects/{id}", s.DeleteProjectHandler)

	mux.HandleFunc("POST /projects/{id}/build", s.BuildHandler)
	mux.HandleFunc("POST /projects/{id}/start", s.StartHandler)
	mux.HandleFunc("POST /projects/{id}/stop", s.StopHandler)
	mux.HandleFunc("POST /projects/{id}/restart", s.RestartHandler)
	mux.HandleFunc("POST /projects/{id}/export", s.ExportHandler)
	mux.HandleFunc("POST /projects/{id}/exec", s.ExecHandler)
	mux.HandleFunc("GET /projects/{id}/status", s.StatusHandler)
	mux.HandleFunc("GET /projects/{id}/stats", s.StatsHandler)
	mux.HandleFunc("GET /projects/{id}/limits", s.GetLimitsHandler)
	mux.HandleFunc("PUT /projects/{id}/limits", s.SetLimitsHandler)
	mux.HandleFunc("GET /projects/{id}/processes", s.ProcessesHandler)
	mux.HandleFunc("GET /projects/{id}/images", s.ProjectImagesHandler)

	mux.HandleFunc("GET /projects/{id}/logs", s.ContainerLogsHandler)
	mux.HandleFunc("GET /projects/{id}/logs/framework", s.FrameworkLogsHandler)
	mux.HandleFunc("DELETE /projects/{id}/logs/framework", s.ClearFrameworkLogsHandler)
	mux.HandleFunc("GET /projects/{id}/logs/framework/download", s.DownloadFrameworkLogsHandler)

	mux.HandleFunc("POST /projects/{id}/deployments", s.StartDeploymentHandler)
	mux.HandleFunc("GET /deployments/{run}", s.GetDeploymentHandler)
	mux.HandleFunc("POST /deployments/{run}/advance", s.AdvanceDeploymentHandler)
	mux.HandleFunc("GET /deployments/{run}/events", s.DeploymentEventsHandler)
	mux.HandleFunc("DELETE /deployments/{run}", s.ResetDeploymentHandler)

	mux.HandleFunc("GET /servers/{id}/images", s.ListImagesHandler)
	mux.HandleFunc("POST /servers/{id}/images/{action}", s.ImageActionHandler)

	mux.HandleFunc("GET /servers/{id}/networks", s.ListNetworksHandler)
	mux.HandleFunc("POST /servers/{id}/networks", s.CreateNetworkHandler)
	mux.HandleFunc("DELETE /servers/{id}/networks/{name}", s.DeleteNetworkHandler)
	mux.HandleFunc("POST /servers/{id}/networks/{name}/{action}", s.NetworkMembershipHandler)

	mux.HandleFunc("GET /servers/{id}/volumes", s.ListVolumesHandler)
	mux.HandleFunc("POST /servers/{id}/volumes", s.CreateVolumeHandler)
	mux.HandleFunc("GET /servers/{id}/volumes/{name}", s.VolumeInfoHandler)
	mux.HandleFunc("DELETE /servers/{id}/volumes/{name}", s.DeleteVolumeHandler)

	mux.HandleFunc("POST /servers/{id}/registry/{action}", s.RegistryHandler)

	mux.HandleFunc("GET /servers/{id}/docker/installation", s.InstallationHandler)
	mux.HandleFunc("GET /servers/{id}/docker/info", s.DockerInfoHandler)
	mux.HandleFunc("GET /servers/{id}/docker/disk-usage", s.DiskUsageHandler)
	mux.HandleFunc("POST /servers/{id}/docker/prune", s.SystemPruneHandler)

	return mux
}

func (s *FluxServer) ListenAndServe() error {
	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           s.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.Logger.Infof("Fluxd started on %s", s.config.ListenAddr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop drains in-flight requests, cancels deployment streams and closes the
// stores.
func (s *FluxServer) Stop(ctx context.Context) error {
	var errs []error

	s.deployments.CancelAll()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if closer, ok := s.runs.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func (s *FluxServer) DaemonInfoHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, pkg.Info{
		Version:      Version,
		ProjectsRoot: s.config.Engine.ProjectsRoot,
		RunStore:     s.runStoreName,
	})
}
