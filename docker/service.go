package docker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

// Inventory is the engine's view of the surrounding system's storage.
type Inventory interface {
	Server(ctx context.Context, id int64) (models.Server, error)
	// RecordPort stores port for the project unless one is already set and
	// reports whether it wrote anything.
	RecordPort(ctx context.Context, projectID int64, port int) (bool, error)
}

const noServerMessage = "Project has no associated server"

// Service bundles every Docker manager over one executor.
type Service struct {
	Detector   *Detector
	Containers *ContainerManager
	Images     *ImageManager
	Networks   *NetworkManager
	Volumes    *VolumeManager
	Registry   *RegistryManager
	Logs       *LogRetriever
	System     *SystemManager
}

func NewService(exec remote.Executor, inventory Inventory, config Config, logger *zap.SugaredLogger) *Service {
	config = config.withDefaults()
	detector := NewDetector(exec, config)

	return &Service{
		Detector:   detector,
		Containers: NewContainerManager(exec, inventory, detector, config, logger.Named("containers")),
		Images:     NewImageManager(exec, config, logger.Named("images")),
		Networks:   NewNetworkManager(exec, logger.Named("networks")),
		Volumes:    NewVolumeManager(exec, logger.Named("volumes")),
		Registry:   NewRegistryManager(exec, config, logger.Named("registry")),
		Logs:       NewLogRetriever(exec, inventory, detector, logger.Named("logs")),
		System:     NewSystemManager(exec, logger.Named("system")),
	}
}

func serverFor(ctx context.Context, inventory Inventory, project models.Project) (models.Server, error) {
	if project.ServerID == 0 {
		return models.Server{}, remote.Preconditionf(noServerMessage)
	}

	server, err := inventory.Server(ctx, project.ServerID)
	if err != nil {
		return models.Server{}, remote.Preconditionf(noServerMessage)
	}

	return server, nil
}

// guard turns a panic in a public operation into a failed envelope. It must
// be deferred directly.
func guard(logger *zap.SugaredLogger, op string, env *pkg.Envelope) {
	if r := recover(); r != nil {
		logger.Errorw("Recovered from panic", "op", op, "panic", r)
		*env = pkg.Failure(fmt.Sprintf("%s failed: %v", op, r))
	}
}

// envelopeOf converts an executor outcome into an envelope carrying stdout on
// success and the remote detail on failure.
func envelopeOf(res remote.CommandResult, err error) pkg.Envelope {
	if err := remote.Check(res, err); err != nil {
		return pkg.Failed(err)
	}

	return pkg.Succeeded(res.Output())
}

func requireValue(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return remote.Preconditionf("%s is required", name)
	}

	return nil
}

// parseJSONLines decodes output produced with --format '{{json .}}', one
// object per line. Some docker versions print a single JSON array instead.
func parseJSONLines[T any](out string) ([]T, error) {
	out = strings.TrimSpace(out)
	if out == "" {
		return nil, nil
	}

	if strings.HasPrefix(out, "[") {
		var items []T
		if err := json.Unmarshal([]byte(out), &items); err != nil {
			return nil, fmt.Errorf("failed to parse docker output: %v", err)
		}
		return items, nil
	}

	var items []T
	scanner := bufio.NewScanner(strings.NewReader(out))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var item T
		if err := json.Unmarshal([]byte(line), &item); err != nil {
			return nil, fmt.Errorf("failed to parse docker output: %v", err)
		}
		items = append(items, item)
	}

	return items, scanner.Err()
}

func lines(out string) []string {
	var result []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			result = append(result, line)
		}
	}

	return result
}

func lastLines(out string, n int) string {
	all := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(all) > n {
		all = all[len(all)-n:]
	}

	return strings.Join(all, "\n")
}

func timestamp(t time.Time) string {
	return t.Format("2006-01-02-15-04-05")
}
