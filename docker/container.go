package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/go-connections/nat"
	units "github.com/docker/go-units"
	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

const (
	BuildTypeCompose    = "docker-compose"
	BuildTypeStandalone = "standalone"
)

var envKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ContainerManager drives the lifecycle of a project's container or compose
// stack on its server.
type ContainerManager struct {
	exec      remote.Executor
	inventory Inventory
	detector  *Detector
	config    Config
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewContainerManager(exec remote.Executor, inventory Inventory, detector *Detector, config Config, logger *zap.SugaredLogger) *ContainerManager {
	return &ContainerManager{
		exec:      exec,
		inventory: inventory,
		detector:  detector,
		config:    config.withDefaults(),
		logger:    logger,
		now:       time.Now,
	}
}

func (m *ContainerManager) Build(ctx context.Context, project models.Project) (res pkg.BuildResult) {
	defer guard(m.logger, "build", &res.Envelope)

	server, err := serverFor(ctx, m.inventory, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	desc, err := m.detector.describe(ctx, server, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	m.logger.Infow("Building project", "project", desc.Slug, "compose", desc.Compose)

	if desc.Compose {
		out, err := m.exec.RunWithTimeout(ctx, server, remote.InDir(desc.Path, "docker compose build --no-cache --pull"), m.config.Timeouts.ComposeBuild, false)
		res.Envelope = envelopeOf(out, err)
		res.Type = BuildTypeCompose
		return res
	}

	probe := remote.InDir(desc.Path, "if [ -f Dockerfile ]; then echo 'Dockerfile'; elif [ -f Dockerfile.production ]; then echo 'Dockerfile.production'; else echo 'missing'; fi")
	out, err := m.exec.Run(ctx, server, probe, false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	var build string
	switch out.Output() {
	case "Dockerfile":
		build = remote.Join("docker", "build", "-t", desc.Slug, ".")
	case "Dockerfile.production":
		build = remote.Join("docker", "build", "-f", "Dockerfile.production", "-t", desc.Slug, ".")
	default:
		m.logger.Infow("No Dockerfile found, generating one", "project", desc.Slug, "framework", project.Framework)
		build = remote.And(
			"printf '%s' "+remote.Quote(GenerateDockerfile(project))+" > Dockerfile",
			remote.Join("docker", "build", "-t", desc.Slug, "."),
		)
	}

	out, err = m.exec.RunWithTimeout(ctx, server, remote.InDir(desc.Path, build), m.config.Timeouts.DockerBuild, false)
	res.Envelope = envelopeOf(out, err)
	res.Type = BuildTypeStandalone
	return res
}

func (m *ContainerManager) Start(ctx context.Context, project models.Project) (res pkg.StartResult) {
	defer guard(m.logger, "start", &res.Envelope)

	server, err := serverFor(ctx, m.inventory, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	desc, err := m.detector.describe(ctx, server, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if desc.Compose {
		m.cleanupOrphans(ctx, server, project, desc)

		out, err := m.exec.RunWithTimeout(ctx, server, remote.InDir(desc.Path, "docker compose up -d --remove-orphans"), m.config.Timeouts.ComposeStart, false)
		if err := remote.Check(out, err); err != nil {
			res.Envelope = pkg.Failed(err)
			return res
		}

		res.Envelope = pkg.Succeeded(out.Output())
		res.Message = "Docker Compose services started"
		return res
	}

	portSpec := fmt.Sprintf("%d:%d", desc.HostPort, desc.ContainerPort)
	if _, err := nat.ParsePortSpec(portSpec); err != nil {
		res.Envelope = pkg.Failed(remote.Preconditionf("invalid port mapping %s: %v", portSpec, err))
		return res
	}

	m.removeContainer(ctx, server, desc.ContainerName)

	args := []string{"run", "-d", "--name", desc.ContainerName, "-p", portSpec}
	args = append(args, m.envFlags(project)...)
	args = append(args, desc.Slug)

	out, err := m.exec.Run(ctx, server, remote.Join("docker", args...), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if project.Port == 0 {
		written, err := m.inventory.RecordPort(ctx, project.ID, desc.HostPort)
		if err != nil {
			m.logger.Warnw("Failed to persist project port", "project", desc.Slug, "port", desc.HostPort, "error", err)
		} else if written {
			m.logger.Infow("Persisted project port", "project", desc.Slug, "port", desc.HostPort)
		}
	}

	res.Envelope = pkg.Succeeded(out.Output())
	res.Message = "Container started"
	res.ContainerID = firstLine(out.Output())
	res.Port = desc.HostPort
	return res
}

// envFlags renders -e flags for APP_ENV, APP_DEBUG and the project's own
// variables in key order.
func (m *ContainerManager) envFlags(project models.Project) []string {
	flags := []string{
		"-e", "APP_ENV=" + project.AppEnv(),
		"-e", fmt.Sprintf("APP_DEBUG=%t", project.DebugEnabled()),
	}

	keys := make([]string, 0, len(project.Env))
	for key := range project.Env {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if !envKeyPattern.MatchString(key) {
			m.logger.Warnw("Skipping invalid environment variable name", "project", project.Slug, "key", key)
			continue
		}
		flags = append(flags, "-e", key+"="+project.Env[key])
	}

	return flags
}

// cleanupOrphans removes containers left over from earlier generations of a
// compose stack. Every phase is opportunistic.
func (m *ContainerManager) cleanupOrphans(ctx context.Context, server models.Server, project models.Project, desc Descriptor) {
	remote.BestEffort(ctx, m.logger,
		remote.Step{
			Name: "compose down",
			Run: func(ctx context.Context) error {
				return remote.Check(m.exec.RunWithTimeout(ctx, server, remote.InDir(desc.Path, "docker compose down --remove-orphans"), m.config.Timeouts.ComposeCleanup, false))
			},
		},
		remote.Step{
			Name: "remove slug-prefixed containers",
			Run: func(ctx context.Context) error {
				out, err := m.exec.Run(ctx, server, remote.Join("docker", "ps", "-a", "--format", "{{.Names}}"), false)
				if err := remote.Check(out, err); err != nil {
					return err
				}

				return m.forceRemove(ctx, server, prefixedContainerNames(out.Stdout, desc.Slug))
			},
		},
		remote.Step{
			Name: "remove declared container names",
			Run: func(ctx context.Context) error {
				content, err := m.detector.readManifest(ctx, server, project)
				if err != nil {
					return err
				}

				return m.forceRemove(ctx, server, declaredContainerNames(content))
			},
		},
	)
}

func (m *ContainerManager) forceRemove(ctx context.Context, server models.Server, names []string) error {
	if len(names) == 0 {
		return nil
	}

	m.logger.Debugw("Force removing containers", "containers", names)
	return remote.Check(m.exec.Run(ctx, server, remote.Join("docker", append([]string{"rm", "-f"}, names...)...), false))
}

// removeContainer stops and removes a standalone container, ignoring a
// container that is already gone.
func (m *ContainerManager) removeContainer(ctx context.Context, server models.Server, name string) []error {
	return remote.BestEffort(ctx, m.logger,
		remote.Step{
			Name: "stop container",
			Run: func(ctx context.Context) error {
				return remote.Check(m.exec.Run(ctx, server, remote.Join("docker", "stop", name), false))
			},
		},
		remote.Step{
			Name: "remove container",
			Run: func(ctx context.Context) error {
				return remote.Check(m.exec.Run(ctx, server, remote.Join("docker", "rm", "-f", name), false))
			},
		},
	)
}

func (m *ContainerManager) Stop(ctx context.Context, project models.Project) (res pkg.MessageResult) {
	defer guard(m.logger, "stop", &res.Envelope)

	server, err := serverFor(ctx, m.inventory, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	desc, err := m.detector.describe(ctx, server, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if desc.Compose {
		out, err := m.exec.RunWithTimeout(ctx, server, remote.InDir(desc.Path, "docker compose down --remove-orphans"), m.config.Timeouts.ComposeCleanup, false)
		if err := remote.Check(out, err); err != nil {
			res.Envelope = pkg.Failed(err)
			return res
		}

		res.Envelope = pkg.Succeeded(out.Output())
		res.Message = "Docker Compose services stopped and orphans removed"
		return res
	}

	for _, err := range m.removeContainer(ctx, server, desc.ContainerName) {
		if k := remote.Classify(err); k == remote.KindConnectivity || k == remote.KindTimeout {
			res.Envelope = pkg.Failed(err)
			return res
		}
	}

	res.Envelope = pkg.Succeeded("")
	res.Message = "Container stopped and removed"
	return res
}

func (m *ContainerManager) Restart(ctx context.Context, project models.Project) (res pkg.MessageResult) {
	defer guard(m.logger, "restart", &res.Envelope)

	server, err := serverFor(ctx, m.inventory, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	desc, err := m.detector.describe(ctx, server, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if desc.Compose {
		res.Envelope = envelopeOf(m.exec.RunWithTimeout(ctx, server, remote.InDir(desc.Path, "docker compose restart"), m.config.Timeouts.ComposeStart, false))
		res.Message = "Docker Compose services restarted"
		return res
	}

	res.Envelope = envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "restart", desc.ContainerName), false))
	res.Message = "Container restarted"
	return res
}

func (m *ContainerManager) Status(ctx context.Context, project models.Project) (res pkg.StatusResult) {
	defer guard(m.logger, "status", &res.Envelope)

	server, desc, err := m.resolve(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	command := remote.Join("docker", "ps", "-a", "--filter", "name="+desc.ContainerName, "--format", "{{json .}}")
	out, err := m.exec.Run(ctx, server, command, false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	rows, err := parseJSONLines[models.ContainerSummary](out.Stdout)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	if len(rows) > 0 {
		// the name filter is a substring match, prefer the exact container
		row := rows[0]
		for _, r := range rows {
			if r.Names == desc.ContainerName {
				row = r
				break
			}
		}
		res.Exists = true
		res.Container = &row
	}

	if desc.Compose {
		services, err := m.detector.ComposeStatus(ctx, server, project)
		if err != nil {
			m.logger.Debugw("Failed to list compose services", "project", desc.Slug, "error", err)
		}
		res.Services = services
	}

	return res
}

func (m *ContainerManager) Stats(ctx context.Context, project models.Project) (res pkg.StatsResult) {
	defer guard(m.logger, "stats", &res.Envelope)

	server, desc, err := m.resolve(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "stats", "--no-stream", "--format", "{{json .}}", desc.ContainerName), false)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if !out.Successful() {
		if isNoSuchContainer(out) {
			res.Envelope = pkg.Succeeded("")
			return res
		}
		res.Envelope = pkg.Failed(remote.Failure(out))
		return res
	}

	rows, err := parseJSONLines[models.ContainerStats](out.Stdout)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	if len(rows) > 0 {
		res.Exists = true
		res.Stats = &rows[0]
	}

	return res
}

func isNoSuchContainer(out remote.CommandResult) bool {
	return strings.Contains(strings.ToLower(out.Stderr+out.Stdout), "no such container")
}

func (m *ContainerManager) GetResourceLimits(ctx context.Context, project models.Project) (res pkg.LimitsResult) {
	defer guard(m.logger, "get resource limits", &res.Envelope)

	server, desc, err := m.resolve(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "inspect", "--format={{json .HostConfig}}", desc.ContainerName), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	var hostConfig container.HostConfig
	if err := json.Unmarshal([]byte(out.Output()), &hostConfig); err != nil {
		res.Envelope = pkg.Failed(fmt.Errorf("failed to parse host config: %v", err))
		return res
	}

	res.Envelope = pkg.Succeeded("")
	res.MemoryBytes = hostConfig.Memory
	res.Memory = "unlimited"
	if hostConfig.Memory > 0 {
		res.Memory = units.BytesSize(float64(hostConfig.Memory))
	}
	res.CPUShares = hostConfig.CPUShares
	res.CPUQuota = hostConfig.CPUQuota
	return res
}

// SetResourceLimits updates the memory cap (in MB) and/or the CPU shares of
// the running container. Nil leaves a value untouched.
func (m *ContainerManager) SetResourceLimits(ctx context.Context, project models.Project, memoryMB, cpuShares *int) (res pkg.MessageResult) {
	defer guard(m.logger, "set resource limits", &res.Envelope)

	if memoryMB == nil && cpuShares == nil {
		res.Envelope = pkg.Failed(remote.Preconditionf("no resource limits specified"))
		return res
	}

	args := []string{"update"}
	if memoryMB != nil {
		if *memoryMB <= 0 {
			res.Envelope = pkg.Failed(remote.Preconditionf("memory limit must be positive"))
			return res
		}
		args = append(args, fmt.Sprintf("--memory=%dm", *memoryMB))
	}
	if cpuShares != nil {
		if *cpuShares <= 0 {
			res.Envelope = pkg.Failed(remote.Preconditionf("cpu shares must be positive"))
			return res
		}
		args = append(args, fmt.Sprintf("--cpu-shares=%d", *cpuShares))
	}

	server, desc, err := m.resolve(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	args = append(args, desc.ContainerName)
	res.Envelope = envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", args...), false))
	res.Message = "Resource limits updated"
	return res
}

// ExecInContainer runs command through sh inside the project's container,
// bounded by the command exec timeout.
func (m *ContainerManager) ExecInContainer(ctx context.Context, project models.Project, command string, interactive bool) (res pkg.ExecResult) {
	defer guard(m.logger, "exec", &res.Envelope)

	if err := requireValue("command", command); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	server, desc, err := m.resolve(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	args := []string{"exec"}
	if interactive {
		args = append(args, "-it")
	}
	args = append(args, desc.ContainerName, "sh", "-c", command)

	out, err := m.exec.RunWithTimeout(ctx, server, remote.Join("docker", args...), m.config.Timeouts.CommandExec, interactive)
	res.Stderr = out.Stderr
	res.ExitCode = out.ExitCode
	res.TimedOut = out.TimedOut
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded(out.Stdout)
	return res
}

// ExportContainer commits the container to a new image. An empty name
// defaults to {slug}-backup-{timestamp}.
func (m *ContainerManager) ExportContainer(ctx context.Context, project models.Project, name string) (res pkg.ExportResult) {
	defer guard(m.logger, "export", &res.Envelope)

	server, desc, err := m.resolve(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if name == "" {
		name = desc.Slug + "-backup-" + timestamp(m.now())
	}

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "commit", desc.ContainerName, name), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded(out.Output())
	res.BackupName = name
	res.ImageID = firstLine(out.Output())
	return res
}

func (m *ContainerManager) Processes(ctx context.Context, project models.Project) (res pkg.Envelope) {
	defer guard(m.logger, "processes", &res)

	server, desc, err := m.resolve(ctx, project)
	if err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "top", desc.ContainerName), false))
}

func (m *ContainerManager) resolve(ctx context.Context, project models.Project) (models.Server, Descriptor, error) {
	server, err := serverFor(ctx, m.inventory, project)
	if err != nil {
		return server, Descriptor{}, err
	}

	desc, err := m.detector.target(ctx, server, project)
	return server, desc, err
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(line)
}
