package config

import (
	"net/url"
	"strings"

	"github.com/traceworks/gitprov/internal/gperrors"
	"github.com/traceworks/gitprov/internal/prov"
)

var outputFormats = map[string]bool{
	"prov-json": true,
	"prov-n":    true,
	"dot":       true,
	"stats":     true,
	"stats-csv": true,
}

// Validate checks the configuration before any mining or graph work
// starts. All failures are fatal configuration errors.
func (c *Config) Validate() error {
	if c.Project.URL == "" && c.Project.ClonePath == "" {
		return gperrors.Config("either project.url or project.clone_path must be set")
	}

	if c.Project.URL != "" {
		u, err := url.Parse(c.Project.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return gperrors.Configf("invalid project url %q", c.Project.URL)
		}
		if strings.Trim(u.Path, "/") == "" {
			return gperrors.Configf("project url %q has no project path", c.Project.URL)
		}
	}

	switch c.Storage.Type {
	case "sqlite":
		if c.Storage.LocalPath == "" {
			return gperrors.Config("storage.local_path must be set for sqlite storage")
		}
	case "postgres":
		if c.Storage.PostgresDSN == "" {
			return gperrors.Config("storage.postgres_dsn must be set for postgres storage")
		}
	default:
		return gperrors.Configf("unknown storage type %q", c.Storage.Type)
	}

	if c.Pipeline.ResolvePolicy != "" {
		if _, err := prov.ParsePolicy(c.Pipeline.ResolvePolicy); err != nil {
			return err
		}
	}

	if c.Pipeline.Pseudonymize && c.Pipeline.PseudonymKey == "" {
		return gperrors.Security("pseudonymization enabled but no key configured, set GITPROV_PSEUDONYM_KEY")
	}

	if c.Output.Format != "" && !outputFormats[c.Output.Format] {
		return gperrors.Configf("unknown output format %q", c.Output.Format)
	}

	return nil
}

// ProjectPath returns the namespaced project path extracted from the
// project URL, e.g. "group/repo" for https://gitlab.com/group/repo.
func (c *Config) ProjectPath() (string, error) {
	u, err := url.Parse(c.Project.URL)
	if err != nil {
		return "", gperrors.Configf("invalid project url %q", c.Project.URL)
	}
	path := strings.Trim(u.Path, "/")
	if path == "" {
		return "", gperrors.Configf("project url %q has no project path", c.Project.URL)
	}
	return path, nil
}
