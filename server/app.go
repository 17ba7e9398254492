package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
)

type ServersResponse struct {
	pkg.Envelope
	Servers []models.Server `json:"servers"`
}

type ProjectResponse struct {
	pkg.Envelope
	Project *models.Project `json:"project,omitempty"`
}

type ProjectsResponse struct {
	pkg.Envelope
	Projects []models.Project `json:"projects"`
}

func (s *FluxServer) CreateServerHandler(w http.ResponseWriter, r *http.Request) {
	var server models.Server
	if err := decodeBody(r, &server); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid server: %v", err))
		return
	}

	server.Host = strings.TrimSpace(server.Host)
	if server.Host == "" {
		writeError(w, http.StatusBadRequest, "a host must be specified")
		return
	}
	if server.Name == "" {
		server.Name = server.Host
	}

	server, err := s.store.CreateServer(r.Context(), server)
	if err != nil {
		s.Logger.Errorw("Failed to create server", "host", server.Host, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.Logger.Infow("Server registered", "server", server.ID, "host", server.Host)

	server.Password = ""
	writeJSON(w, http.StatusCreated, ServersResponse{Envelope: pkg.Succeeded(""), Servers: []models.Server{server}})
}

func (s *FluxServer) ListServersHandler(w http.ResponseWriter, r *http.Request) {
	servers, err := s.store.Servers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	for i := range servers {
		servers[i].Password = ""
	}

	writeJSON(w, http.StatusOK, ServersResponse{Envelope: pkg.Succeeded(""), Servers: servers})
}

func (s *FluxServer) CreateProjectHandler(w http.ResponseWriter, r *http.Request) {
	var body struct {
		pkg.ProjectConfig
		Env map[string]string `json:"env"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid project: %v", err))
		return
	}
	config := body.ProjectConfig

	if config.Slug == "" || config.ServerID == 0 {
		writeError(w, http.StatusBadRequest, "a slug and server_id must be specified")
		return
	}

	switch models.Runtime(config.Runtime) {
	case "", models.RuntimeDocker, models.RuntimeHost:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown runtime %q", config.Runtime))
		return
	}

	if _, err := s.store.Server(r.Context(), config.ServerID); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("server %d not found", config.ServerID))
		return
	}

	project, err := s.store.CreateProject(r.Context(), models.Project{
		Slug:        config.Slug,
		Framework:   config.Framework,
		Environment: config.Environment,
		Port:        config.Port,
		Env:         body.Env,
		ServerID:    config.ServerID,
		Branch:      config.Branch,
		Runtime:     models.Runtime(config.Runtime),
	})
	if errors.Is(err, models.ErrInvalidSlug) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.Logger.Errorw("Failed to create project", "slug", config.Slug, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.Logger.Infow("Project registered", "project", project.ID, "slug", project.Slug, "server", project.ServerID)

	writeJSON(w, http.StatusCreated, ProjectResponse{Envelope: pkg.Succeeded(""), Project: &project})
}

func (s *FluxServer) ListProjectsHandler(w http.ResponseWriter, r *http.Request) {
	projects, err := s.store.Projects(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ProjectsResponse{Envelope: pkg.Succeeded(""), Projects: projects})
}

func (s *FluxServer) GetProjectHandler(w http.ResponseWriter, r *http.Request) {
	project, ok := s.project(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, ProjectResponse{Envelope: pkg.Succeeded(""), Project: &project})
}

// DeleteProjectHandler stops the project's containers and forgets the
// project. Files on the server are left alone.
func (s *FluxServer) DeleteProjectHandler(w http.ResponseWriter, r *http.Request) {
	project, ok := s.project(w, r)
	if !ok {
		return
	}

	unlock := s.lockProject(project.ID)
	defer unlock()

	if runID, ok := s.activeRun(r.Context(), project.ID); ok {
		writeError(w, http.StatusConflict, fmt.Sprintf("project %s is being deployed (run %s)", project.Slug, runID))
		return
	}

	s.Logger.Infow("Deleting project", "project", project.ID, "slug", project.Slug)

	if project.ServerID != 0 {
		stopped := s.docker.Containers.Stop(context.WithoutCancel(r.Context()), project)
		if !stopped.Success {
			s.Logger.Warnw("Failed to stop containers of deleted project", "project", project.ID, "error", stopped.Error)
		}
	}

	if err := s.store.DeleteProject(r.Context(), project.ID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeResult(w, pkg.MessageResult{Envelope: pkg.Succeeded(""), Message: fmt.Sprintf("Project %s deleted", project.Slug)})
}
