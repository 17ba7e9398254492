package docker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/volume"
	units "github.com/docker/go-units"
	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

type VolumeOptions struct {
	Driver string            `json:"driver,omitempty"`
	Labels map[string]string `json:"labels,omitempty"`
}

type VolumeManager struct {
	exec   remote.Executor
	logger *zap.SugaredLogger
}

func NewVolumeManager(exec remote.Executor, logger *zap.SugaredLogger) *VolumeManager {
	return &VolumeManager{exec: exec, logger: logger}
}

func (m *VolumeManager) List(ctx context.Context, server models.Server) (res pkg.VolumesResult) {
	defer guard(m.logger, "list volumes", &res.Envelope)

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "volume", "ls", "--format", "{{json .}}"), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	volumes, err := parseJSONLines[models.VolumeSummary](out.Stdout)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	res.Volumes = volumes
	return res
}

func (m *VolumeManager) Create(ctx context.Context, server models.Server, name string, opts VolumeOptions) (res pkg.CreateResult) {
	defer guard(m.logger, "create volume", &res.Envelope)

	if err := requireValue("volume name", name); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	args := []string{"volume", "create"}
	if opts.Driver != "" {
		args = append(args, "--driver", opts.Driver)
	}

	keys := make([]string, 0, len(opts.Labels))
	for key := range opts.Labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		args = append(args, "--label", key+"="+opts.Labels[key])
	}
	args = append(args, name)

	out, err := m.exec.Run(ctx, server, remote.Join("docker", args...), false)
	res.Envelope = envelopeOf(out, err)
	if res.Success {
		res.ID = firstLine(out.Output())
	}

	return res
}

func (m *VolumeManager) Delete(ctx context.Context, server models.Server, name string) (res pkg.Envelope) {
	defer guard(m.logger, "delete volume", &res)

	if err := requireValue("volume name", name); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "volume", "rm", name), false))
}

// Info inspects a volume and measures its mountpoint. A failed measurement
// leaves the usage empty without failing the call.
func (m *VolumeManager) Info(ctx context.Context, server models.Server, name string) (res pkg.VolumeInfoResult) {
	defer guard(m.logger, "volume info", &res.Envelope)

	if err := requireValue("volume name", name); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "volume", "inspect", name), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	var volumes []volume.Volume
	if err := json.Unmarshal([]byte(out.Output()), &volumes); err != nil {
		res.Envelope = pkg.Failed(fmt.Errorf("failed to parse volume: %v", err))
		return res
	}
	if len(volumes) == 0 {
		res.Envelope = pkg.Failed(remote.Preconditionf("volume %s not found", name))
		return res
	}

	res.Envelope = pkg.Succeeded("")
	res.Volume = &volumes[0]

	if mountpoint := volumes[0].Mountpoint; mountpoint != "" {
		du, err := m.exec.Run(ctx, server, remote.Privileged(server, remote.Join("du", "-sb", mountpoint)), false)
		if err := remote.Check(du, err); err != nil {
			m.logger.Debugw("Failed to measure volume", "volume", name, "error", err)
			return res
		}

		if size, ok := parseDuBytes(du.Stdout); ok {
			res.UsageBytes = size
			res.Usage = units.HumanSize(float64(size))
		}
	}

	return res
}

func parseDuBytes(out string) (int64, bool) {
	fields := strings.Fields(out)
	if len(fields) == 0 {
		return 0, false
	}

	size, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return 0, false
	}

	return size, true
}
