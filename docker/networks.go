package docker

import (
	"context"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

type NetworkManager struct {
	exec   remote.Executor
	logger *zap.SugaredLogger
}

func NewNetworkManager(exec remote.Executor, logger *zap.SugaredLogger) *NetworkManager {
	return &NetworkManager{exec: exec, logger: logger}
}

func (m *NetworkManager) List(ctx context.Context, server models.Server) (res pkg.NetworksResult) {
	defer guard(m.logger, "list networks", &res.Envelope)

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "network", "ls", "--format", "{{json .}}"), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	networks, err := parseJSONLines[models.NetworkSummary](out.Stdout)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	res.Networks = networks
	return res
}

func (m *NetworkManager) Create(ctx context.Context, server models.Server, name, driver string) (res pkg.CreateResult) {
	defer guard(m.logger, "create network", &res.Envelope)

	if err := requireValue("network name", name); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}
	if driver == "" {
		driver = "bridge"
	}

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "network", "create", "--driver", driver, name), false)
	res.Envelope = envelopeOf(out, err)
	if res.Success {
		res.ID = firstLine(out.Output())
	}

	return res
}

func (m *NetworkManager) Delete(ctx context.Context, server models.Server, name string) (res pkg.Envelope) {
	defer guard(m.logger, "delete network", &res)

	if err := requireValue("network name", name); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "network", "rm", name), false))
}

func (m *NetworkManager) Connect(ctx context.Context, server models.Server, network, containerName string) (res pkg.Envelope) {
	defer guard(m.logger, "connect network", &res)

	if err := requireValue("network name", network); err != nil {
		return pkg.Failed(err)
	}
	if err := requireValue("container name", containerName); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "network", "connect", network, containerName), false))
}

func (m *NetworkManager) Disconnect(ctx context.Context, server models.Server, network, containerName string) (res pkg.Envelope) {
	defer guard(m.logger, "disconnect network", &res)

	if err := requireValue("network name", network); err != nil {
		return pkg.Failed(err)
	}
	if err := requireValue("container name", containerName); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "network", "disconnect", network, containerName), false))
}
