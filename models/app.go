package models

import (
	"errors"
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const DefaultProjectsRoot = "/var/www"

type Runtime string

const (
	RuntimeDocker Runtime = "docker"
	RuntimeHost   Runtime = "host"
)

// Project is a deployable unit living at {root}/{slug} on exactly one server.
type Project struct {
	ID          int64             `json:"id,omitempty"`
	Slug        string            `json:"slug,omitempty"`
	Framework   string            `json:"framework,omitempty"`
	Environment string            `json:"environment,omitempty"`
	Port        int               `json:"port,omitempty"`
	Env         map[string]string `json:"env,omitempty"`
	ServerID    int64             `json:"server_id,omitempty"`
	Branch      string            `json:"branch,omitempty"`
	Runtime     Runtime           `json:"runtime,omitempty"`
	CreatedAt   string            `json:"created_at,omitempty"`
}

var ErrInvalidSlug = errors.New("project slug is empty after sanitizing")

var (
	slugTransformer = transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	slugInvalidChars = regexp.MustCompile(`[^a-z0-9_-]+`)
)

// SanitizeSlug folds accents, lowercases and replaces anything outside
// [a-z0-9_-] so the result is safe as a path segment and container name.
func SanitizeSlug(name string) string {
	s, _, _ := transform.String(slugTransformer, strings.ToLower(name))
	s = slugInvalidChars.ReplaceAllString(s, "-")
	s = strings.TrimLeftFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.TrimRight(s, "-_")
}

func (p Project) ValidatedSlug() (string, error) {
	slug := SanitizeSlug(p.Slug)
	if slug == "" {
		return "", ErrInvalidSlug
	}

	return slug, nil
}

// Path is the project's directory on its server.
func (p Project) Path(root string) string {
	if root == "" {
		root = DefaultProjectsRoot
	}

	slug, err := p.ValidatedSlug()
	if err != nil {
		slug = p.Slug
	}

	return path.Join(root, slug)
}

func (p Project) AppEnv() string {
	if p.Environment == "" {
		return "production"
	}

	return p.Environment
}

func (p Project) DebugEnabled() bool {
	switch strings.ToLower(p.AppEnv()) {
	case "local", "development":
		return true
	}

	return false
}

func (p Project) GitBranch() string {
	if p.Branch == "" {
		return "main"
	}

	return p.Branch
}

func (p Project) RuntimeOrDefault() Runtime {
	if p.Runtime == "" {
		return RuntimeDocker
	}

	return p.Runtime
}
