package docker

import (
	"context"
	"strings"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/pkg"
	"github.com/juls0730/fluxops/remote"
	"go.uber.org/zap"
)

type ImageManager struct {
	exec   remote.Executor
	config Config
	logger *zap.SugaredLogger
}

func NewImageManager(exec remote.Executor, config Config, logger *zap.SugaredLogger) *ImageManager {
	return &ImageManager{exec: exec, config: config.withDefaults(), logger: logger}
}

func (m *ImageManager) List(ctx context.Context, server models.Server) (res pkg.ImagesResult) {
	defer guard(m.logger, "list images", &res.Envelope)

	out, err := m.exec.Run(ctx, server, remote.Join("docker", "images", "--format", "{{json .}}"), false)
	if err := remote.Check(out, err); err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	images, err := parseJSONLines[models.ImageSummary](out.Stdout)
	if err != nil {
		res.Envelope = pkg.Failed(err)
		return res
	}

	res.Envelope = pkg.Succeeded("")
	res.Images = images
	return res
}

// ListForProject keeps the images whose repository or tag mentions the
// project slug.
func (m *ImageManager) ListForProject(ctx context.Context, server models.Server, project models.Project) pkg.ImagesResult {
	res := m.List(ctx, server)
	if !res.Success {
		return res
	}

	slug, err := project.ValidatedSlug()
	if err != nil {
		return pkg.ImagesResult{Envelope: pkg.Failed(remote.Preconditionf("invalid project slug %q", project.Slug))}
	}

	var matched []models.ImageSummary
	for _, image := range res.Images {
		if strings.Contains(image.Repository, slug) || strings.Contains(image.Tag, slug) {
			matched = append(matched, image)
		}
	}
	res.Images = matched

	return res
}

func (m *ImageManager) Delete(ctx context.Context, server models.Server, image string, force bool) (res pkg.Envelope) {
	defer guard(m.logger, "delete image", &res)

	if err := requireValue("image", image); err != nil {
		return pkg.Failed(err)
	}

	args := []string{"rmi"}
	if force {
		args = append(args, "-f")
	}
	args = append(args, image)

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", args...), false))
}

// Prune removes dangling images, or every unused image when all is set.
func (m *ImageManager) Prune(ctx context.Context, server models.Server, all bool) (res pkg.Envelope) {
	defer guard(m.logger, "prune images", &res)

	args := []string{"image", "prune", "-f"}
	if all {
		args = append(args, "-a")
	}

	return envelopeOf(m.exec.RunWithTimeout(ctx, server, remote.Join("docker", args...), m.config.Timeouts.ComposeCleanup, false))
}

func (m *ImageManager) Pull(ctx context.Context, server models.Server, image string) (res pkg.Envelope) {
	defer guard(m.logger, "pull image", &res)

	if err := requireValue("image", image); err != nil {
		return pkg.Failed(err)
	}

	m.logger.Infow("Pulling image", "server", server.Host, "image", image)
	return envelopeOf(m.exec.RunWithTimeout(ctx, server, remote.Join("docker", "pull", image), m.config.Timeouts.DockerBuild, false))
}

func (m *ImageManager) Tag(ctx context.Context, server models.Server, source, target string) (res pkg.Envelope) {
	defer guard(m.logger, "tag image", &res)

	if err := requireValue("source image", source); err != nil {
		return pkg.Failed(err)
	}
	if err := requireValue("target image", target); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.Run(ctx, server, remote.Join("docker", "tag", source, target), false))
}

// Save writes image as a tarball to path on the server.
func (m *ImageManager) Save(ctx context.Context, server models.Server, image, path string) (res pkg.Envelope) {
	defer guard(m.logger, "save image", &res)

	if err := requireValue("image", image); err != nil {
		return pkg.Failed(err)
	}
	if err := requireValue("path", path); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.RunWithTimeout(ctx, server, remote.Join("docker", "save", "-o", path, image), m.config.Timeouts.DockerBuild, false))
}

func (m *ImageManager) Load(ctx context.Context, server models.Server, path string) (res pkg.Envelope) {
	defer guard(m.logger, "load image", &res)

	if err := requireValue("path", path); err != nil {
		return pkg.Failed(err)
	}

	return envelopeOf(m.exec.RunWithTimeout(ctx, server, remote.Join("docker", "load", "-i", path), m.config.Timeouts.DockerBuild, false))
}
