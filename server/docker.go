package server

import (
	"fmt"
	"net/http"

	"github.com/juls0730/fluxops/docker"
	"github.com/juls0730/fluxops/pkg"
)

type ImageRequest struct {
	Image  string `json:"image"`
	Source string `json:"source"`
	Target string `json:"target"`
	Path   string `json:"path"`
	Force  bool   `json:"force"`
	All    bool   `json:"all"`
}

type NetworkRequest struct {
	Name      string `json:"name"`
	Driver    string `json:"driver"`
	Container string `json:"container"`
}

type VolumeRequest struct {
	Name string `json:"name"`
	docker.VolumeOptions
}

type RegistryRequest struct {
	Registry string `json:"registry"`
	Username string `json:"username"`
	Password string `json:"password"`
	Image    string `json:"image"`
}

type PruneRequest struct {
	Volumes bool `json:"volumes"`
}

func (s *FluxServer) ListImagesHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Images.List(r.Context(), server))
	}
}

func (s *FluxServer) ImageActionHandler(w http.ResponseWriter, r *http.Request) {
	var req ImageRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid image request: %v", err))
		return
	}

	server, ok := s.server(w, r)
	if !ok {
		return
	}

	images := s.docker.Images
	ctx := r.Context()

	var res pkg.Envelope
	switch action := r.PathValue("action"); action {
	case "pull":
		res = images.Pull(ctx, server, req.Image)
	case "tag":
		res = images.Tag(ctx, server, req.Source, req.Target)
	case "save":
		res = images.Save(ctx, server, req.Image, req.Path)
	case "load":
		res = images.Load(ctx, server, req.Path)
	case "prune":
		res = images.Prune(ctx, server, req.All)
	case "delete":
		res = images.Delete(ctx, server, req.Image, req.Force)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown image action %q", action))
		return
	}

	writeResult(w, res)
}

func (s *FluxServer) ListNetworksHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Networks.List(r.Context(), server))
	}
}

func (s *FluxServer) CreateNetworkHandler(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid network: %v", err))
		return
	}

	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Networks.Create(r.Context(), server, req.Name, req.Driver))
	}
}

func (s *FluxServer) DeleteNetworkHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Networks.Delete(r.Context(), server, r.PathValue("name")))
	}
}

func (s *FluxServer) NetworkMembershipHandler(w http.ResponseWriter, r *http.Request) {
	var req NetworkRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid network request: %v", err))
		return
	}

	server, ok := s.server(w, r)
	if !ok {
		return
	}

	network := r.PathValue("name")
	switch action := r.PathValue("action"); action {
	case "connect":
		writeResult(w, s.docker.Networks.Connect(r.Context(), server, network, req.Container))
	case "disconnect":
		writeResult(w, s.docker.Networks.Disconnect(r.Context(), server, network, req.Container))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown network action %q", action))
	}
}

func (s *FluxServer) ListVolumesHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Volumes.List(r.Context(), server))
	}
}

func (s *FluxServer) CreateVolumeHandler(w http.ResponseWriter, r *http.Request) {
	var req VolumeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid volume: %v", err))
		return
	}

	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Volumes.Create(r.Context(), server, req.Name, req.VolumeOptions))
	}
}

func (s *FluxServer) VolumeInfoHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Volumes.Info(r.Context(), server, r.PathValue("name")))
	}
}

func (s *FluxServer) DeleteVolumeHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.Volumes.Delete(r.Context(), server, r.PathValue("name")))
	}
}

func (s *FluxServer) RegistryHandler(w http.ResponseWriter, r *http.Request) {
	var req RegistryRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid registry request: %v", err))
		return
	}

	server, ok := s.server(w, r)
	if !ok {
		return
	}

	registry := s.docker.Registry
	switch action := r.PathValue("action"); action {
	case "login":
		writeResult(w, registry.Login(r.Context(), server, req.Registry, req.Username, req.Password))
	case "push":
		writeResult(w, registry.Push(r.Context(), server, req.Image))
	case "logout":
		writeResult(w, registry.Logout(r.Context(), server, req.Registry))
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown registry action %q", action))
	}
}

func (s *FluxServer) InstallationHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.System.CheckInstallation(r.Context(), server))
	}
}

func (s *FluxServer) DockerInfoHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.System.Info(r.Context(), server))
	}
}

func (s *FluxServer) DiskUsageHandler(w http.ResponseWriter, r *http.Request) {
	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.System.DiskUsage(r.Context(), server))
	}
}

func (s *FluxServer) SystemPruneHandler(w http.ResponseWriter, r *http.Request) {
	var req PruneRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid prune request: %v", err))
		return
	}

	if server, ok := s.server(w, r); ok {
		writeResult(w, s.docker.System.Prune(r.Context(), server, req.Volumes))
	}
}
