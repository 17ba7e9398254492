package models

import "strings"

type FrameworkFamily int

const (
	FamilyUnknown FrameworkFamily = iota
	FamilyPHP
	FamilyNode
	FamilySPA
)

func (f FrameworkFamily) String() string {
	switch f {
	case FamilyPHP:
		return "php"
	case FamilyNode:
		return "node"
	case FamilySPA:
		return "spa"
	default:
		return "generic"
	}
}

var frameworkFamilies = map[string]FrameworkFamily{
	"laravel":     FamilyPHP,
	"symfony":     FamilyPHP,
	"codeigniter": FamilyPHP,
	"node.js":     FamilyNode,
	"nodejs":      FamilyNode,
	"next.js":     FamilyNode,
	"nextjs":      FamilyNode,
	"nuxt.js":     FamilyNode,
	"nuxtjs":      FamilyNode,
	"express":     FamilyNode,
	"nestjs":      FamilyNode,
	"react":       FamilySPA,
	"vue":         FamilySPA,
	"vue.js":      FamilySPA,
	"angular":     FamilySPA,
	"svelte":      FamilySPA,
}

func FamilyOf(framework string) FrameworkFamily {
	return frameworkFamilies[strings.ToLower(strings.TrimSpace(framework))]
}

// ContainerPort is the port the application listens on inside its container.
func ContainerPort(framework string) int {
	switch FamilyOf(framework) {
	case FamilyNode, FamilySPA:
		return 3000
	default:
		return 80
	}
}

// ContainerSummary is one row of `docker ps --format '{{json .}}'`.
type ContainerSummary struct {
	ID         string `json:"ID"`
	Names      string `json:"Names"`
	Image      string `json:"Image"`
	Command    string `json:"Command"`
	CreatedAt  string `json:"CreatedAt"`
	RunningFor string `json:"RunningFor"`
	Ports      string `json:"Ports"`
	State      string `json:"State"`
	Status     string `json:"Status"`
	Size       string `json:"Size,omitempty"`
	Labels     string `json:"Labels,omitempty"`
	Networks   string `json:"Networks,omitempty"`
}

// ContainerStats is one row of `docker stats --no-stream --format '{{json .}}'`.
type ContainerStats struct {
	ID       string `json:"ID"`
	Name     string `json:"Name"`
	CPUPerc  string `json:"CPUPerc"`
	MemUsage string `json:"MemUsage"`
	MemPerc  string `json:"MemPerc"`
	NetIO    string `json:"NetIO"`
	BlockIO  string `json:"BlockIO"`
	PIDs     string `json:"PIDs"`
}

// ComposeService is one row of `docker compose ps --format json`.
type ComposeService struct {
	ID      string `json:"ID"`
	Name    string `json:"Name"`
	Service string `json:"Service"`
	Image   string `json:"Image"`
	State   string `json:"State"`
	Status  string `json:"Status"`
	Ports   string `json:"Ports"`
}

type ImageSummary struct {
	ID           string `json:"ID"`
	Repository   string `json:"Repository"`
	Tag          string `json:"Tag"`
	Digest       string `json:"Digest,omitempty"`
	CreatedAt    string `json:"CreatedAt"`
	CreatedSince string `json:"CreatedSince"`
	Size         string `json:"Size"`
}

type NetworkSummary struct {
	ID        string `json:"ID"`
	Name      string `json:"Name"`
	Driver    string `json:"Driver"`
	Scope     string `json:"Scope"`
	IPv6      string `json:"IPv6,omitempty"`
	Internal  string `json:"Internal,omitempty"`
	CreatedAt string `json:"CreatedAt,omitempty"`
}

type VolumeSummary struct {
	Name       string `json:"Name"`
	Driver     string `json:"Driver"`
	Scope      string `json:"Scope"`
	Mountpoint string `json:"Mountpoint,omitempty"`
	Labels     string `json:"Labels,omitempty"`
}
