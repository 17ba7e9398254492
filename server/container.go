package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/juls0730/fluxops/metrics"
	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
)

type ExportRequest struct {
	Name string `json:"name"`
}

type ExecRequest struct {
	Command     string `json:"command"`
	Interactive bool   `json:"interactive"`
}

type LimitsRequest struct {
	MemoryMB  *int `json:"memory_mb"`
	CPUShares *int `json:"cpu_shares"`
}

const defaultLogLines = 100

// mutate runs a container operation that changes state while holding the
// project's lock, and counts it.
func mutate[T any](s *FluxServer, w http.ResponseWriter, r *http.Request, op string, fn func(ctx context.Context, project models.Project) T, success func(T) bool) {
	project, ok := s.project(w, r)
	if !ok {
		return
	}

	unlock := s.lockProject(project.ID)
	defer unlock()

	s.Logger.Infow("Container operation", "op", op, "project", project.ID, "slug", project.Slug)

	// a command that started runs to completion or to its own timeout
	res := fn(context.WithoutCancel(r.Context()), project)
	metrics.ContainerOpsTotal.WithLabelValues(op, metrics.Result(success(res))).Inc()

	writeResult(w, res)
}

func (s *FluxServer) BuildHandler(w http.ResponseWriter, r *http.Request) {
	mutate(s, w, r, "build", s.docker.Containers.Build, func(res pkg.BuildResult) bool { return res.Success })
}

func (s *FluxServer) StartHandler(w http.ResponseWriter, r *http.Request) {
	mutate(s, w, r, "start", s.docker.Containers.Start, func(res pkg.StartResult) bool { return res.Success })
}

func (s *FluxServer) StopHandler(w http.ResponseWriter, r *http.Request) {
	mutate(s, w, r, "stop", s.docker.Containers.Stop, messageSucceeded)
}

func (s *FluxServer) RestartHandler(w http.ResponseWriter, r *http.Request) {
	mutate(s, w, r, "restart", s.docker.Containers.Restart, messageSucceeded)
}

func messageSucceeded(res pkg.MessageResult) bool {
	return res.Success
}

func (s *FluxServer) ExportHandler(w http.ResponseWriter, r *http.Request) {
	var req ExportRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid export request: %v", err))
		return
	}

	mutate(s, w, r, "export", func(ctx context.Context, project models.Project) pkg.ExportResult {
		return s.docker.Containers.ExportContainer(ctx, project, req.Name)
	}, func(res pkg.ExportResult) bool { return res.Success })
}

func (s *FluxServer) ExecHandler(w http.ResponseWriter, r *http.Request) {
	var req ExecRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid exec request: %v", err))
		return
	}

	project, ok := s.project(w, r)
	if !ok {
		return
	}

	writeResult(w, s.docker.Containers.ExecInContainer(context.WithoutCancel(r.Context()), project, req.Command, req.Interactive))
}

func (s *FluxServer) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if project, ok := s.project(w, r); ok {
		writeResult(w, s.docker.Containers.Status(r.Context(), project))
	}
}

func (s *FluxServer) StatsHandler(w http.ResponseWriter, r *http.Request) {
	if project, ok := s.project(w, r); ok {
		writeResult(w, s.docker.Containers.Stats(r.Context(), project))
	}
}

func (s *FluxServer) GetLimitsHandler(w http.ResponseWriter, r *http.Request) {
	if project, ok := s.project(w, r); ok {
		writeResult(w, s.docker.Containers.GetResourceLimits(r.Context(), project))
	}
}

func (s *FluxServer) SetLimitsHandler(w http.ResponseWriter, r *http.Request) {
	var req LimitsRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid limits: %v", err))
		return
	}

	mutate(s, w, r, "limits", func(ctx context.Context, project models.Project) pkg.MessageResult {
		return s.docker.Containers.SetResourceLimits(ctx, project, req.MemoryMB, req.CPUShares)
	}, messageSucceeded)
}

func (s *FluxServer) ProcessesHandler(w http.ResponseWriter, r *http.Request) {
	if project, ok := s.project(w, r); ok {
		writeResult(w, s.docker.Containers.Processes(r.Context(), project))
	}
}

func (s *FluxServer) ProjectImagesHandler(w http.ResponseWriter, r *http.Request) {
	project, ok := s.project(w, r)
	if !ok {
		return
	}

	server, err := s.store.Server(r.Context(), project.ServerID)
	if err != nil {
		writeResult(w, pkg.ImagesResult{Envelope: pkg.Failure("Project has no associated server")})
		return
	}

	writeResult(w, s.docker.Images.ListForProject(r.Context(), server, project))
}

func (s *FluxServer) ContainerLogsHandler(w http.ResponseWriter, r *http.Request) {
	lines, err := queryInt(r, "lines", defaultLogLines)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if project, ok := s.project(w, r); ok {
		writeResult(w, s.docker.Logs.ContainerLogs(r.Context(), project, lines))
	}
}

func (s *FluxServer) FrameworkLogsHandler(w http.ResponseWriter, r *http.Request) {
	lines, err := queryInt(r, "lines", defaultLogLines)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if project, ok := s.project(w, r); ok {
		writeResult(w, s.docker.Logs.FrameworkLogs(r.Context(), project, lines))
	}
}

func (s *FluxServer) ClearFrameworkLogsHandler(w http.ResponseWriter, r *http.Request) {
	if project, ok := s.project(w, r); ok {
		writeResult(w, s.docker.Logs.ClearFrameworkLogs(r.Context(), project))
	}
}

func (s *FluxServer) DownloadFrameworkLogsHandler(w http.ResponseWriter, r *http.Request) {
	project, ok := s.project(w, r)
	if !ok {
		return
	}

	res := s.docker.Logs.DownloadFrameworkLogs(r.Context(), project)
	if !res.Success || r.URL.Query().Get("raw") == "" {
		writeResult(w, res)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Filename))
	_, _ = w.Write([]byte(res.Content))
}
