package docker

import (
	"context"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

type RegistryManager struct {
	exec   remote.Executor
	config Config
	logger *zap.SugaredLogger
}

func NewRegistryManager(exec remote.Executor, config Config, logger *zap.SugaredLogger) *RegistryManager {
	return &RegistryManager{exec: exec, config: config.withDefaults(), logger: logger}
}

// Login authenticates the server's docker client. The password travels on
// stdin. An empty registry means Docker Hub.
func (m *RegistryManager) Login(ctx context.Context, server models.Server, registry, username, password string) (res pkg.Envelope) {
	defer guard(m.logger, "registry login", &res)

	if err := requireValue("username", username); err != nil {
		return pkg.Failed(err)
	}
	if err := requireValue("password", password); err != nil {
		return pkg.Failed(err)
	}

	args := []string{"login"}
	if registry != "" {
		args = append(args, registry)
	}
	args = append(args, "-u", username, "--password-stdin")

	m.logger.Infow("Logging in to registry", "server", server.Host, "registry", registry, "username", username)
	return envelopeOf(m.exec.RunWithInput(ctx, server, remote.Join("docker", args...), []byte(password), false))
}

func (m *RegistryManager) Push(ctx context.Context, server models.Server, image string) (res pkg.Envelope) {
	defer guard(m.logger, "push image", &res)

	if err := requireValue("image", image); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.RunWithTimeout(ctx, server, remote.Join("docker", "push", image), m.config.Timeouts.DockerBuild, false))
}

func (m *RegistryManager) Logout(ctx context.Context, server models.Server, registry string) (res pkg.Envelope) {
	defer guard(m.logger, "registry logout", &res)

	args := []string{"logout"}
	if registry != "" {
		args = append(args, registry)
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", args...), false))
}
