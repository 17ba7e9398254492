package docker

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/juls0730/fluxops/models"
	"github.com/juls0730/fluxops/remote"
	"gopkg.in/yaml.v3"
)

// Descriptor is everything an operation needs to know about a project's
// containers. It is derived fresh for every call.
type Descriptor struct {
	Path          string
	Slug          string
	Compose       bool
	ContainerName string
	HostPort      int
	ContainerPort int
}

// Detector decides between the compose and standalone code paths and
// resolves container names on the remote host.
type Detector struct {
	exec   remote.Executor
	config Config
}

func NewDetector(exec remote.Executor, config Config) *Detector {
	return &Detector{exec: exec, config: config.withDefaults()}
}

func (d *Detector) manifestPath(project models.Project) string {
	return path.Join(project.Path(d.config.ProjectsRoot), d.config.ComposeFile)
}

// UsesCompose reports whether the compose manifest exists at the project's
// path. Faults are reported as standalone.
func (d *Detector) UsesCompose(ctx context.Context, server models.Server, project models.Project) bool {
	compose, err := d.usesCompose(ctx, server, project)
	return err == nil && compose
}

func (d *Detector) usesCompose(ctx context.Context, server models.Server, project models.Project) (bool, error) {
	command := fmt.Sprintf("test -f %s && echo 'compose' || echo 'standalone'", remote.Quote(d.manifestPath(project)))

	res, err := d.exec.Run(ctx, server, command, false)
	if err := remote.Check(res, err); err != nil {
		return false, err
	}

	return res.Output() == "compose", nil
}

func appContainerCandidates(slug string) []string {
	return []string{
		slug + "-app",
		slug + "_app_1",
		"app",
	}
}

// ResolveAppContainerName returns the first running container that matches
// the known compose naming conventions, or {slug}-app when none does.
func (d *Detector) ResolveAppContainerName(ctx context.Context, server models.Server, project models.Project) string {
	slug, err := project.ValidatedSlug()
	if err != nil {
		slug = project.Slug
	}
	candidates := appContainerCandidates(slug)

	res, err := d.exec.Run(ctx, server, remote.Join("docker", "ps", "--format", "{{.Names}}"), false)
	if remote.Check(res, err) != nil {
		return candidates[0]
	}

	running := make(map[string]bool)
	for _, name := range lines(res.Stdout) {
		running[name] = true
	}

	for _, candidate := range candidates {
		if running[candidate] {
			return candidate
		}
	}

	return candidates[0]
}

// describe resolves everything but the container name, which costs an extra
// remote call for compose projects.
func (d *Detector) describe(ctx context.Context, server models.Server, project models.Project) (Descriptor, error) {
	slug, err := project.ValidatedSlug()
	if err != nil {
		return Descriptor{}, remote.Preconditionf("invalid project slug %q", project.Slug)
	}

	compose, err := d.usesCompose(ctx, server, project)
	if err != nil {
		return Descriptor{}, err
	}

	hostPort := project.Port
	if hostPort == 0 {
		hostPort = d.config.FallbackPortBase + int(project.ID)
	}

	return Descriptor{
		Path:          project.Path(d.config.ProjectsRoot),
		Slug:          slug,
		Compose:       compose,
		ContainerName: slug,
		HostPort:      hostPort,
		ContainerPort: models.ContainerPort(project.Framework),
	}, nil
}

// target is describe plus the name of the container that serves the app.
func (d *Detector) target(ctx context.Context, server models.Server, project models.Project) (Descriptor, error) {
	desc, err := d.describe(ctx, server, project)
	if err != nil {
		return desc, err
	}

	if desc.Compose {
		desc.ContainerName = d.ResolveAppContainerName(ctx, server, project)
	}

	return desc, nil
}

func (d *Detector) readManifest(ctx context.Context, server models.Server, project models.Project) (string, error) {
	res, err := d.exec.Run(ctx, server, remote.Join("cat", d.manifestPath(project)), false)
	if err := remote.Check(res, err); err != nil {
		return "", err
	}

	return res.Stdout, nil
}

type composeManifest struct {
	Services map[string]struct {
		ContainerName string `yaml:"container_name"`
		Image         string `yaml:"image"`
	} `yaml:"services"`
}

// ComposeServices lists the service names declared in the project's
// compose manifest.
func (d *Detector) ComposeServices(ctx context.Context, server models.Server, project models.Project) ([]string, error) {
	content, err := d.readManifest(ctx, server, project)
	if err != nil {
		return nil, err
	}

	return parseComposeServices(content)
}

func parseComposeServices(content string) ([]string, error) {
	var manifest composeManifest
	if err := yaml.Unmarshal([]byte(content), &manifest); err != nil {
		return nil, fmt.Errorf("failed to parse compose manifest: %v", err)
	}

	services := make([]string, 0, len(manifest.Services))
	for name := range manifest.Services {
		services = append(services, name)
	}
	sort.Strings(services)

	return services, nil
}

// ComposeStatus lists the containers of the project's compose stack.
func (d *Detector) ComposeStatus(ctx context.Context, server models.Server, project models.Project) ([]models.ComposeService, error) {
	command := remote.InDir(project.Path(d.config.ProjectsRoot), "docker compose ps --all --format json")

	res, err := d.exec.Run(ctx, server, command, false)
	if err := remote.Check(res, err); err != nil {
		return nil, err
	}

	return parseJSONLines[models.ComposeService](res.Stdout)
}

var containerNameLine = regexp.MustCompile(`^\s+container_name:\s*(.*)$`)

// declaredContainerNames scans a compose manifest line by line for
// container_name entries. It matches indented keys anywhere in the file,
// the same heuristic as grepping for them.
func declaredContainerNames(content string) []string {
	var names []string
	for _, line := range strings.Split(content, "\n") {
		m := containerNameLine.FindStringSubmatch(strings.TrimRight(line, "\r"))
		if m == nil {
			continue
		}

		name := strings.NewReplacer(`"`, "", "'", "").Replace(m[1])
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}

	return names
}

// prefixedContainerNames keeps names that start with the slug followed by a
// dash or underscore.
func prefixedContainerNames(out, slug string) []string {
	pattern := regexp.MustCompile("^" + regexp.QuoteMeta(slug) + "[-_]")

	var names []string
	for _, name := range lines(out) {
		if pattern.MatchString(name) {
			names = append(names, name)
		}
	}

	return names
}
