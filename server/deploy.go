package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/juls0730/fluxops/metrics"
	"github.com/juls0730/fluxops/pkg"
)

type deployment struct {
	runID  string
	ctx    context.Context
	cancel context.CancelFunc
}

// DeploymentLock tracks the one deployment run each project may have in
// flight.
type DeploymentLock struct {
	mu       sync.Mutex
	deployed map[int64]deployment
}

func NewDeploymentLock() *DeploymentLock {
	return &DeploymentLock{
		deployed: make(map[int64]deployment),
	}
}

// StartDeployment registers runID for the project. The returned context is
// cancelled when the deployment completes or is dismissed.
func (dl *DeploymentLock) StartDeployment(projectID int64, runID string) (context.Context, error) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if existing, exists := dl.deployed[projectID]; exists {
		return nil, fmt.Errorf("project %d is already being deployed (run %s)", projectID, existing.runID)
	}

	ctx, cancel := context.WithCancel(context.Background())
	dl.deployed[projectID] = deployment{runID: runID, ctx: ctx, cancel: cancel}

	return ctx, nil
}

func (dl *DeploymentLock) Running(projectID int64) (string, bool) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	d, exists := dl.deployed[projectID]
	return d.runID, exists
}

// Context returns the context of the run if it is the project's current
// deployment.
func (dl *DeploymentLock) Context(projectID int64, runID string) (context.Context, bool) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	d, exists := dl.deployed[projectID]
	if !exists || d.runID != runID {
		return nil, false
	}

	return d.ctx, true
}

// CompleteDeployment releases the project if runID is still its current
// deployment.
func (dl *DeploymentLock) CompleteDeployment(projectID int64, runID string) {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	if d, exists := dl.deployed[projectID]; exists && d.runID == runID {
		d.cancel()
		delete(dl.deployed, projectID)
	}
}

func (dl *DeploymentLock) CancelAll() {
	dl.mu.Lock()
	defer dl.mu.Unlock()

	for projectID, d := range dl.deployed {
		d.cancel()
		delete(dl.deployed, projectID)
	}
}

// activeRun reports the project's deployment run if one is still running.
// Runs that finished or expired without anyone advancing them through this
// daemon are released here.
func (s *FluxServer) activeRun(ctx context.Context, projectID int64) (string, bool) {
	runID, ok := s.deployments.Running(projectID)
	if !ok {
		return "", false
	}

	res := s.engine.Get(ctx, runID)
	if res.Success && res.Run != nil && !res.Run.Done() {
		return runID, true
	}

	s.deployments.CompleteDeployment(projectID, runID)
	return "", false
}

func (s *FluxServer) StartDeploymentHandler(w http.ResponseWriter, r *http.Request) {
	project, ok := s.project(w, r)
	if !ok {
		return
	}

	unlock := s.lockProject(project.ID)
	defer unlock()

	if runID, ok := s.activeRun(r.Context(), project.ID); ok {
		metrics.DeploymentConflictsTotal.Inc()
		writeError(w, http.StatusConflict, fmt.Sprintf("project %s is already being deployed (run %s)", project.Slug, runID))
		return
	}

	res := s.engine.Start(r.Context(), project.ID)
	if res.Success {
		if _, err := s.deployments.StartDeployment(project.ID, res.Run.ID); err != nil {
			s.Logger.Errorw("Failed to track deployment", "project", project.ID, "run", res.Run.ID, "error", err)
		}
	}

	writeResult(w, res)
}

func (s *FluxServer) GetDeploymentHandler(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.engine.Get(r.Context(), r.PathValue("run")))
}

func (s *FluxServer) advance(ctx context.Context, runID string) pkg.DeploymentResult {
	res := s.engine.Advance(ctx, runID)
	if res.Run != nil && res.Run.Done() {
		s.deployments.CompleteDeployment(res.Run.ProjectID, res.Run.ID)
	}

	return res
}

func (s *FluxServer) AdvanceDeploymentHandler(w http.ResponseWriter, r *http.Request) {
	writeResult(w, s.advance(context.WithoutCancel(r.Context()), r.PathValue("run")))
}

func (s *FluxServer) ResetDeploymentHandler(w http.ResponseWriter, r *http.Request) {
	res := s.engine.Reset(r.Context(), r.PathValue("run"))
	if res.Run != nil {
		s.deployments.CompleteDeployment(res.Run.ProjectID, res.Run.ID)
	}

	writeResult(w, res)
}

// DeploymentEventsHandler drives the run to completion itself and streams
// the run after every step as server-sent events. The stream ends early when
// the client goes away or the run is dismissed.
func (s *FluxServer) DeploymentEventsHandler(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("run")

	current := s.engine.Get(r.Context(), runID)
	if !current.Success {
		writeResult(w, current)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	dismissed, tracked := s.deployments.Context(current.Run.ProjectID, runID)
	if !tracked {
		dismissed = context.Background()
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	send := func(event string, res pkg.DeploymentResult) {
		data, err := json.Marshal(res)
		if err != nil {
			data, _ = json.Marshal(pkg.DeploymentResult{Envelope: pkg.Failed(err)})
			event = "error"
		}

		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
		flusher.Flush()
	}

	send("step", current)

	for !current.Run.Done() {
		select {
		case <-r.Context().Done():
			return
		case <-dismissed.Done():
			send("dismissed", current)
			return
		default:
		}

		// a step that started keeps running if the client disconnects
		res := s.advance(context.WithoutCancel(r.Context()), runID)
		if !res.Success || res.Run == nil {
			send("error", res)
			return
		}
		current = res
		send("step", current)
	}

	event := "complete"
	if current.Run.Status == pkg.StatusFailed {
		event = "failed"
	}
	send(event, current)
}
