package docker

import (
	"context"
	"encoding/json"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

// SystemManager covers host-wide docker housekeeping.
type SystemManager struct {
	exec   remote.Executor
	logger *zap.SugaredLogger
}

func NewSystemManager(exec remote.Executor, logger *zap.SugaredLogger) *SystemManager {
	return &SystemManager{exec: exec, logger: logger}
}

func (m *SystemManager) CheckInstallation(ctx context.Context, server models.Server) (res pkg.InstallationResult) {
	defer guard(m.logger, "check installation", &res.Envelope)

	out, err := m.exec.Run(ctx, server, "docker --version", false)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	if !out.Successful() {
		return res
	}
	res.Installed = true
	res.Version = out.Output()

	compose, err := m.exec.Run(ctx, server, "docker compose version", false)
	if err == nil && compose.Successful() {
		res.ComposeVersion = compose.Output()
	}

	return res
}

func (m *SystemManager) Prune(ctx context.Context, server models.Server, volumes bool) (res pkg.Envelope) {
	defer guard(m.logger, "system prune", &res)

	args := []string{"system", "prune", "-f"}
	if volumes {
		args = append(args, "--volumes")
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", args...), false))
}

func (m *SystemManager) DiskUsage(ctx context.Context, server models.Server) (res pkg.Envelope) {
	defer guard(m.logger, "disk usage", &res)

	return envelopeOf(m.exec.Run(ctx, server, "docker system df", false))
}

// Info returns `docker info` as raw JSON in the envelope output.
func (m *SystemManager) Info(ctx context.Context, server models.Server) (res pkg.Envelope) {
	defer guard(m.logger, "system info", &res)

	res = envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "info", "--format", "{{json .}}"), false))
	if res.Success && !json.Valid([]byte(res.Output)) {
		return pkg.Failure("docker info returned invalid JSON")
	}

	return res
}
