package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult answers an engine call. Engine outcomes, failed or not, are
// always 200.
func writeResult(w http.ResponseWriter, v any) {
	writeJSON(w, http.StatusOK, v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, pkg.Failure(msg))
}

// decodeBody reads an optional JSON body into v. An empty body leaves v
// untouched.
func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return nil
	}

	err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, r.PathValue(name))
	}

	return id, nil
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}

	return n, nil
}

// project resolves the {id} path value, answering the request itself when it
// cannot.
func (s *FluxServer) project(w http.ResponseWriter, r *http.Request) (models.Project, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return models.Project{}, false
	}

	project, err := s.store.Project(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("project %d not found", id))
		return project, false
	}
	if err != nil {
		s.Logger.Errorw("Failed to load project", "project", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return project, false
	}

	return project, true
}

func (s *FluxServer) server(w http.ResponseWriter, r *http.Request) (models.Server, bool) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return models.Server{}, false
	}

	server, err := s.store.Server(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("server %d not found", id))
		return server, false
	}
	if err != nil {
		s.Logger.Errorw("Failed to load server", "server", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return server, false
	}

	return server, true
}
