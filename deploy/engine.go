package deploy

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/juls0730/fluxops/metrics"
	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
	"k8s.io/utils/keymutex"
)

const banner = "========================================"

// Projects looks up the project being deployed and the server it lives on.
type Projects interface {
	Project(ctx context.Context, id int64) (models.Project, error)
	Server(ctx context.Context, id int64) (models.Server, error)
}

// Restarter restarts a project's containers.
type Restarter interface {
	Restart(ctx context.Context, project models.Project) pkg.MessageResult
}

// Engine drives deployment runs one step per Advance call. Runs live in the
// RunStore between calls, so any engine sharing the store can advance them.
type Engine struct {
	exec      remote.Executor
	projects  Projects
	restarter Restarter
	store     RunStore
	marker    Marker
	config    Config
	locks     keymutex.KeyMutex
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewEngine(exec remote.Executor, projects Projects, restarter Restarter, store RunStore, marker Marker, config Config, logger *zap.SugaredLogger) *Engine {
	return &Engine{
		exec:      exec,
		projects:  projects,
		restarter: restarter,
		store:     store,
		marker:    marker,
		config:    config.withDefaults(),
		locks:     keymutex.NewHashed(0),
		logger:    logger,
		now:       time.Now,
	}
}

// StepNames lists the steps every run goes through, in order.
func (e *Engine) StepNames() []string {
	var names []string
	for _, s := range e.steps() {
		names = append(names, s.name)
	}

	return names
}

func (e *Engine) target(ctx context.Context, projectID int64) (target, error) {
	project, err := e.projects.Project(ctx, projectID)
	if err != nil {
		return target{}, remote.Preconditionf("project %d not found", projectID)
	}

	if project.ServerID == 0 {
		return target{}, remote.Preconditionf("Project has no associated server")
	}

	server, err := e.projects.Server(ctx, project.ServerID)
	if err != nil {
		return target{}, remote.Preconditionf("Project has no associated server")
	}

	if _, err := project.ValidatedSlug(); err != nil {
		return target{}, remote.Preconditionf("invalid project slug %q", project.Slug)
	}

	return target{
		server:  server,
		project: project,
		path:    project.Path(e.config.ProjectsRoot),
	}, nil
}

// Start creates a run for the project and returns it before any step has
// executed.
func (e *Engine) Start(ctx context.Context, projectID int64) pkg.DeploymentResult {
	t, err := e.target(ctx, projectID)
	if err != nil {
		return pkg.DeploymentResult{Envelope: pkg.Failed(err)}
	}

	now := e.now()
	run := pkg.DeploymentRun{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Status:      pkg.StatusRunning,
		CurrentStep: -1,
		Output:      "Starting deployment...\n",
		StartedAt:   now,
	}
	for _, name := range e.StepNames() {
		run.Steps = append(run.Steps, pkg.DeploymentStep{Name: name, Status: pkg.StatusPending})
	}

	if err := e.store.Put(ctx, run, e.config.RunTTL); err != nil {
		return pkg.DeploymentResult{Envelope: pkg.Failed(fmt.Errorf("failed to store deployment run: %w", err))}
	}

	if err := e.marker.MarkStart(ctx, run.ID, now, e.config.MarkerTTL); err != nil {
		e.logger.Warnw("Failed to write deployment start marker", "run", run.ID, "error", err)
	}

	e.logger.Infow("Deployment started", "run", run.ID, "project", t.project.Slug, "server", t.server.Host)

	return pkg.DeploymentResult{Envelope: pkg.Succeeded(""), Run: &run}
}

func (e *Engine) load(ctx context.Context, runID string) (pkg.DeploymentRun, error) {
	run, ok, err := e.store.Get(ctx, runID)
	if err != nil {
		return run, fmt.Errorf("failed to load deployment run: %w", err)
	}
	if !ok {
		return run, remote.Preconditionf("deployment run %s not found", runID)
	}

	return run, nil
}

func (e *Engine) Get(ctx context.Context, runID string) pkg.DeploymentResult {
	run, err := e.load(ctx, runID)
	if err != nil {
		return pkg.DeploymentResult{Envelope: pkg.Failed(err)}
	}

	return pkg.DeploymentResult{Envelope: pkg.Succeeded(""), Run: &run}
}

// Advance executes the next step of the run. A finished run is returned
// unchanged.
func (e *Engine) Advance(ctx context.Context, runID string) (res pkg.DeploymentResult) {
	e.locks.LockKey(runID)
	defer func() {
		_ = e.locks.UnlockKey(runID)
	}()

	defer func() {
		if r := recover(); r != nil {
			e.logger.Errorw("Recovered from panic", "op", "advance", "run", runID, "panic", r)
			res = pkg.DeploymentResult{Envelope: pkg.Failure(fmt.Sprintf("advance failed: %v", r))}
		}
	}()

	run, err := e.load(ctx, runID)
	if err != nil {
		return pkg.DeploymentResult{Envelope: pkg.Failed(err)}
	}

	if run.Status != pkg.StatusRunning {
		return pkg.DeploymentResult{Envelope: pkg.Succeeded(""), Run: &run}
	}

	steps := e.steps()
	run.CurrentStep++

	if run.CurrentStep >= len(steps) {
		e.finish(ctx, &run, nil)
		return e.save(ctx, run)
	}

	current := &run.Steps[run.CurrentStep]
	current.Status = pkg.StatusRunning
	run.Output += fmt.Sprintf("\n[%d/%d] %s...\n", run.CurrentStep+1, len(steps), current.Name)

	// pollers see the step as running while it executes
	if err := e.store.Put(ctx, run, e.config.RunTTL); err != nil {
		e.logger.Warnw("Failed to store deployment run", "run", run.ID, "error", err)
	}

	started := e.now()
	output, stepErr := e.runStep(ctx, run, steps[run.CurrentStep])
	metrics.DeploymentStepDuration.WithLabelValues(current.Name, metrics.Result(stepErr == nil)).Observe(e.now().Sub(started).Seconds())

	if stepErr != nil {
		if output != "" {
			run.Output += indent(output)
		}
		current.Status = pkg.StatusFailed
		current.Output = pkg.Failed(stepErr).Error
		e.finish(ctx, &run, stepErr)
		return e.save(ctx, run)
	}

	current.Status = pkg.StatusSuccess
	current.Output = output
	run.Output += fmt.Sprintf("  ✓ %s\n", output)

	if run.CurrentStep >= len(steps)-1 {
		e.finish(ctx, &run, nil)
	}

	return e.save(ctx, run)
}

func (e *Engine) runStep(ctx context.Context, run pkg.DeploymentRun, s step) (string, error) {
	t, err := e.target(ctx, run.ProjectID)
	if err != nil {
		return "", err
	}

	e.logger.Infow("Running deployment step", "run", run.ID, "project", t.project.Slug, "step", s.name)
	return s.run(ctx, t)
}

func (e *Engine) save(ctx context.Context, run pkg.DeploymentRun) pkg.DeploymentResult {
	if err := e.store.Put(ctx, run, e.config.RunTTL); err != nil {
		return pkg.DeploymentResult{Envelope: pkg.Failed(fmt.Errorf("failed to store deployment run: %w", err)), Run: &run}
	}

	return pkg.DeploymentResult{Envelope: pkg.Succeeded(""), Run: &run}
}

// finish moves the run to its terminal status. A nil cause means success.
func (e *Engine) finish(ctx context.Context, run *pkg.DeploymentRun, cause error) {
	now := e.now()

	started, ok, err := e.marker.StartedAt(ctx, run.ID)
	if err != nil {
		e.logger.Warnw("Failed to read deployment start marker", "run", run.ID, "error", err)
	}
	if !ok {
		started = run.StartedAt
	}
	if err := e.marker.ClearStart(ctx, run.ID); err != nil {
		e.logger.Warnw("Failed to clear deployment start marker", "run", run.ID, "error", err)
	}

	seconds := now.Sub(started).Seconds()
	run.FinishedAt = &now
	run.Duration = fmt.Sprintf("%.2fs", seconds)

	var b strings.Builder
	b.WriteString("\n" + banner + "\n")

	if cause == nil {
		run.Status = pkg.StatusSuccess
		b.WriteString("DEPLOYMENT SUCCESSFUL\n")
		fmt.Fprintf(&b, "Duration: %.2fs\n", seconds)
		fmt.Fprintf(&b, "Completed: %s\n", now.Format(time.DateTime))

		e.logger.Infow("Deployment completed", "run", run.ID, "duration", run.Duration)
	} else {
		name := "Unknown"
		if run.CurrentStep >= 0 && run.CurrentStep < len(run.Steps) {
			name = run.Steps[run.CurrentStep].Name
		}

		run.Status = pkg.StatusFailed
		run.FailedStep = name
		run.Error = pkg.Failed(cause).Error
		b.WriteString("DEPLOYMENT FAILED\n")
		fmt.Fprintf(&b, "Step: %s\n", name)
		fmt.Fprintf(&b, "Error: %s\n", run.Error)

		e.logger.Errorw("Deployment failed", "run", run.ID, "step", name, "error", run.Error)
	}

	b.WriteString(banner + "\n")
	run.Output += b.String()

	metrics.DeploymentRunsTotal.WithLabelValues(run.Status).Inc()
}

// Reset returns every step to pending and dismisses the run. Nothing is
// executed.
func (e *Engine) Reset(ctx context.Context, runID string) pkg.DeploymentResult {
	e.locks.LockKey(runID)
	defer func() {
		_ = e.locks.UnlockKey(runID)
	}()

	run, err := e.load(ctx, runID)
	if err != nil {
		return pkg.DeploymentResult{Envelope: pkg.Failed(err)}
	}

	for i := range run.Steps {
		run.Steps[i].Status = pkg.StatusPending
		run.Steps[i].Output = ""
	}
	run.Output = ""
	run.CurrentStep = -1
	run.Status = pkg.StatusPending
	run.FinishedAt = nil
	run.Duration = ""
	run.FailedStep = ""
	run.Error = ""

	if err := e.store.Delete(ctx, runID); err != nil {
		return pkg.DeploymentResult{Envelope: pkg.Failed(fmt.Errorf("failed to dismiss deployment run: %w", err))}
	}
	if err := e.marker.ClearStart(ctx, runID); err != nil {
		e.logger.Warnw("Failed to clear deployment start marker", "run", runID, "error", err)
	}

	return pkg.DeploymentResult{Envelope: pkg.Succeeded(""), Run: &run}
}

func indent(text string) string {
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		b.WriteString("  " + line + "\n")
	}

	return b.String()
}
