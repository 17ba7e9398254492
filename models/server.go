package models

import (
	"net"
	"strconv"
	"strings"
)

const DefaultSSHPort = 22

type ServerStatus string

const (
	ServerOnline  ServerStatus = "online"
	ServerOffline ServerStatus = "offline"
)

// Server identifies a remote host and how to reach it over SSH.
type Server struct {
	ID             int64        `json:"id,omitempty"`
	Name           string       `json:"name,omitempty"`
	Host           string       `json:"host,omitempty"`
	Port           int          `json:"port,omitempty"`
	Username       string       `json:"username,omitempty"`
	PrivateKeyPath string       `json:"private_key_path,omitempty"`
	Password       string       `json:"password,omitempty"`
	Status         ServerStatus `json:"status,omitempty"`
}

func (s Server) Address() string {
	port := s.Port
	if port == 0 {
		port = DefaultSSHPort
	}

	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

func (s Server) User() string {
	if s.Username == "" {
		return "root"
	}

	return s.Username
}

func (s Server) IsRoot() bool {
	return s.User() == "root"
}

func (s Server) IsLocal() bool {
	switch strings.ToLower(strings.TrimSpace(s.Host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	}

	return false
}
