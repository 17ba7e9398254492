package docker

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

const (
	DefaultContainerLogLines = 100
	DefaultFrameworkLogLines = 200

	// application root inside containers built from the PHP template
	containerAppRoot = "/var/www/html"
)

const (
	LogSourceAppService = "app-service"
	LogSourceStack      = "stack"
	LogSourceContainer  = "container"
	LogSourceHost       = "host"
)

var frameworkLogFiles = map[string]string{
	"laravel": "storage/logs/laravel.log",
	"symfony": "var/log/prod.log",
}

func frameworkLogFile(framework string) (string, error) {
	rel, ok := frameworkLogFiles[strings.ToLower(strings.TrimSpace(framework))]
	if !ok {
		return "", remote.Preconditionf("invalid log file type for framework %q", framework)
	}

	return rel, nil
}

// LogRetriever reads container output and framework log files.
type LogRetriever struct {
	exec      remote.Executor
	inventory Inventory
	detector  *Detector
	logger    *zap.SugaredLogger
	now       func() time.Time
}

func NewLogRetriever(exec remote.Executor, inventory Inventory, detector *Detector, logger *zap.SugaredLogger) *LogRetriever {
	return &LogRetriever{
		exec:      exec,
		inventory: inventory,
		detector:  detector,
		logger:    logger,
		now:       time.Now,
	}
}

func (l *LogRetriever) resolve(ctx context.Context, project models.Project) (models.Server, Descriptor, error) {
	server, err := serverFor(ctx, l.inventory, project)
	if err != nil {
		return server, Descriptor{}, err
	}

	desc, err := l.detector.target(ctx, server, project)
	return server, desc, err
}

// ContainerLogs returns the last lines of the project's container output.
// Compose stacks prefer the app service and fall back to the whole stack.
func (l *LogRetriever) ContainerLogs(ctx context.Context, project models.Project, lines int) (res pkg.LogsResult) {
	defer guard(l.logger, "container logs", &res.Envelope)

	if lines <= 0 {
		lines = DefaultContainerLogLines
	}
	res.Lines = lines
	tail := "--tail=" + strconv.Itoa(lines)

	server, err := serverFor(ctx, l.inventory, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	desc, err := l.detector.describe(ctx, server, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if desc.Compose {
		out, err := l.exec.Run(ctx, server, remote.InDir(desc.Path, remote.WithStderr(remote.Join("docker", "compose", "logs", tail, "app"))), false)
		if remote.Check(out, err) == nil && out.Output() != "" {
			res.Envelope = pkg.Succeeded("")
			res.Logs = out.Stdout
			res.Source = LogSourceAppService
			return res
		}

		out, err = l.exec.Run(ctx, server, remote.InDir(desc.Path, remote.WithStderr(remote.Join("docker", "compose", "logs", tail))), false)
		if err := remote.Check(out, err); err != nil {
			res.Envelope = pkg.Failed(err)
			return res
		}

		res.Envelope = pkg.Succeeded("")
		res.Logs = lastLines(out.Stdout, lines)
		res.Source = LogSourceStack
		return res
	}

	out, err := l.exec.Run(ctx, server, remote.WithStderr(remote.Join("docker", "logs", "--tail", strconv.Itoa(lines), desc.ContainerName)), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	res.Logs = out.Stdout
	res.Source = LogSourceContainer
	return res
}

// FrameworkLogs tails the framework's log file, inside the container first
// and on the host when that fails.
func (l *LogRetriever) FrameworkLogs(ctx context.Context, project models.Project, lines int) (res pkg.LogsResult) {
	defer guard(l.logger, "framework logs", &res.Envelope)

	if lines <= 0 {
		lines = DefaultFrameworkLogLines
	}
	res.Lines = lines

	rel, err := frameworkLogFile(project.Framework)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	server, desc, err := l.resolve(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	n := strconv.Itoa(lines)
	out, err := l.exec.Run(ctx, server, remote.Join("docker", "exec", desc.ContainerName, "tail", "-n", n, path.Join(containerAppRoot, rel)), false)
	readErr := remote.Check(out, err)
	if readErr == nil {
		res.Envelope = pkg.Succeeded("")
		res.Logs = out.Stdout
		res.Source = LogSourceContainer
		return res
	}
	l.logger.Debugw("Container log read failed, falling back to host", "project", desc.Slug, "error", readErr)

	out, err = l.exec.Run(ctx, server, remote.Privileged(server, remote.Join("tail", "-n", n, path.Join(desc.Path, rel))), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	res.Logs = out.Stdout
	res.Source = LogSourceHost
	return res
}

func (l *LogRetriever) hostLogFile(ctx context.Context, project models.Project) (models.Server, string, error) {
	rel, err := frameworkLogFile(project.Framework)
	if err != nil {
		return models.Server{}, "", err
	}

	server, err := serverFor(ctx, l.inventory, project)
	if err != nil {
		return server, "", err
	}

	if _, err := project.ValidatedSlug(); err != nil {
		return server, "", remote.Preconditionf("invalid project slug %q", project.Slug)
	}

	return server, path.Join(project.Path(l.detector.config.ProjectsRoot), rel), nil
}

// ClearFrameworkLogs truncates the host log file, creating it when missing.
func (l *LogRetriever) ClearFrameworkLogs(ctx context.Context, project models.Project) (res pkg.MessageResult) {
	defer guard(l.logger, "clear framework logs", &res.Envelope)

	server, file, err := l.hostLogFile(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	exists, err := l.exec.Run(ctx, server, remote.Privileged(server, remote.Join("test", "-f", file)), false)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	if exists.Successful() {
		res.Envelope = envelopeOf(l.exec.Run(ctx, server, remote.Privileged(server, remote.Join("truncate", "-s", "0", file)), false))
		res.Message = "Log file cleared"
		return res
	}

	out, err := l.exec.Run(ctx, server, remote.Privileged(server, remote.Join("touch", file)), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	remote.BestEffort(ctx, l.logger, remote.Step{
		Name: "chmod log file",
		Run: func(ctx context.Context) error {
			return remote.Check(l.exec.Run(ctx, server, remote.Privileged(server, remote.Join("chmod", "664", file)), false))
		},
	})

	res.Envelope = pkg.Succeeded("")
	res.Message = "Log file created"
	return res
}

func (l *LogRetriever) DownloadFrameworkLogs(ctx context.Context, project models.Project) (res pkg.DownloadResult) {
	defer guard(l.logger, "download framework logs", &res.Envelope)

	server, file, err := l.hostLogFile(ctx, project)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	out, err := l.exec.Run(ctx, server, remote.Privileged(server, remote.Join("cat", file)), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	slug, _ := project.ValidatedSlug()
	res.Envelope = pkg.Succeeded("")
	res.Content = out.Stdout
	res.Filename = fmt.Sprintf("%s-%s-%s.log", slug, strings.ToLower(project.Framework), l.now().Format("2006-01-02-150405"))
	return res
}
