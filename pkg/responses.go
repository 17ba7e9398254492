package pkg

import (
	"strings"
	"time"

	"github.com/docker/docker/api/types/volume"
	"github.com/juls0730/fluxops/models"
)

// Envelope is embedded in every engine result. Exactly one of Output or
// Error is meaningful, selected by Success.
type Envelope struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

func Succeeded(output string) Envelope {
	return Envelope{Success: true, Output: output}
}

func Failure(msg string) Envelope {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		msg = "unknown error"
	}

	return Envelope{Success: false, Error: msg}
}

func Failed(err error) Envelope {
	if err == nil {
		return Failure("")
	}

	return Failure(err.Error())
}

type MessageResult struct {
	Envelope
	Message string `json:"message,omitempty"`
}

type BuildResult struct {
	Envelope
	Type string `json:"type,omitempty"`
}

type StartResult struct {
	Envelope
	Message     string `json:"message,omitempty"`
	ContainerID string `json:"container_id,omitempty"`
	Port        int    `json:"port,omitempty"`
}

type StatusResult struct {
	Envelope
	Exists    bool                     `json:"exists"`
	Container *models.ContainerSummary `json:"container"`
	Services  []models.ComposeService  `json:"services,omitempty"`
}

type StatsResult struct {
	Envelope
	Exists bool                   `json:"exists"`
	Stats  *models.ContainerStats `json:"stats"`
}

type LimitsResult struct {
	Envelope
	MemoryBytes int64  `json:"memory_bytes"`
	Memory      string `json:"memory,omitempty"`
	CPUShares   int64  `json:"cpu_shares"`
	CPUQuota    int64  `json:"cpu_quota"`
}

type ExecResult struct {
	Envelope
	Stderr   string `json:"stderr,omitempty"`
	ExitCode int    `json:"exit_code"`
	TimedOut bool   `json:"timed_out,omitempty"`
}

type ExportResult struct {
	Envelope
	BackupName string `json:"backup_name,omitempty"`
	ImageID    string `json:"image_id,omitempty"`
}

type LogsResult struct {
	Envelope
	Logs   string `json:"logs"`
	Source string `json:"source,omitempty"`
	Lines  int    `json:"lines"`
}

type DownloadResult struct {
	Envelope
	Content  string `json:"content,omitempty"`
	Filename string `json:"filename,omitempty"`
}

type CreateResult struct {
	Envelope
	ID string `json:"id,omitempty"`
}

type ImagesResult struct {
	Envelope
	Images []models.ImageSummary `json:"images"`
}

type NetworksResult struct {
	Envelope
	Networks []models.NetworkSummary `json:"networks"`
}

type VolumesResult struct {
	Envelope
	Volumes []models.VolumeSummary `json:"volumes"`
}

type VolumeInfoResult struct {
	Envelope
	Volume     *volume.Volume `json:"volume,omitempty"`
	UsageBytes int64          `json:"usage_bytes"`
	Usage      string         `json:"usage,omitempty"`
}

type InstallationResult struct {
	Envelope
	Installed      bool   `json:"installed"`
	Version        string `json:"version,omitempty"`
	ComposeVersion string `json:"compose_version,omitempty"`
}

const (
	StatusPending = "pending"
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

type DeploymentStep struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Output string `json:"output,omitempty"`
}

type DeploymentRun struct {
	ID          string           `json:"id"`
	ProjectID   int64            `json:"project_id"`
	Status      string           `json:"status"`
	CurrentStep int              `json:"current_step"`
	Steps       []DeploymentStep `json:"steps"`
	Output      string           `json:"output"`
	StartedAt   time.Time        `json:"started_at"`
	FinishedAt  *time.Time       `json:"finished_at,omitempty"`
	Duration    string           `json:"duration,omitempty"`
	FailedStep  string           `json:"failed_step,omitempty"`
	Error       string           `json:"error,omitempty"`
}

func (r DeploymentRun) Done() bool {
	return r.Status == StatusSuccess || r.Status == StatusFailed
}

type DeploymentResult struct {
	Envelope
	Run *DeploymentRun `json:"run,omitempty"`
}

type Info struct {
	Version      string `json:"version"`
	ProjectsRoot string `json:"projects_root"`
	RunStore     string `json:"run_store"`
}
