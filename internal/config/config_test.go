package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/traceworks/gitprov/internal/gperrors"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Project.URL = "https://gitlab.com/group/repo"
	return cfg
}

func TestValidateDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateRequiresProject(t *testing.T) {
	cfg := Default()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeConfig, gperrors.GetType(err))
}

func TestValidateRejectsBadURL(t *testing.T) {
	cfg := validConfig()
	cfg.Project.URL = "gitlab.com/group/repo"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeConfig, gperrors.GetType(err))
}

func TestValidateRejectsUnknownPolicy(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.ResolvePolicy = "fuzzy-wuzzy"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeConfig, gperrors.GetType(err))
}

func TestValidatePseudonymizeNeedsKey(t *testing.T) {
	cfg := validConfig()
	cfg.Pipeline.Pseudonymize = true
	err := cfg.Validate()
	require.Error(t, err)
	assert.Equal(t, gperrors.TypeSecurity, gperrors.GetType(err))
	assert.True(t, gperrors.IsFatal(err))

	cfg.Pipeline.PseudonymKey = "secret"
	require.NoError(t, cfg.Validate())
}

func TestValidateStorage(t *testing.T) {
	cfg := validConfig()
	cfg.Storage.Type = "postgres"
	cfg.Storage.PostgresDSN = ""
	require.Error(t, cfg.Validate())

	cfg.Storage.PostgresDSN = "postgres://localhost/gitprov"
	require.NoError(t, cfg.Validate())
}

func TestProjectPath(t *testing.T) {
	cfg := validConfig()
	cfg.Project.URL = "https://gitlab.example.com/deep/group/repo"
	path, err := cfg.ProjectPath()
	require.NoError(t, err)
	assert.Equal(t, "deep/group/repo", path)
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "config.yaml")
	content := []byte(`
project:
  url: https://gitlab.com/acme/widgets
pipeline:
  resolve_policy: exact-email
output:
  format: prov-n
`)
	require.NoError(t, os.WriteFile(file, content, 0o600))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "https://gitlab.com/acme/widgets", cfg.Project.URL)
	assert.Equal(t, "exact-email", cfg.Pipeline.ResolvePolicy)
	assert.Equal(t, "prov-n", cfg.Output.Format)
	// Untouched sections keep their defaults.
	assert.Equal(t, "sqlite", cfg.Storage.Type)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("GITLAB_TOKEN", "glpat-abc")
	t.Setenv("GITPROV_PSEUDONYM_KEY", "k-123")
	t.Setenv("GITPROV_RESOLVE_POLICY", "email-or-name")

	cfg := Default()
	applyEnvOverrides(cfg)

	assert.Equal(t, "glpat-abc", cfg.GitLab.Token)
	assert.Equal(t, "k-123", cfg.Pipeline.PseudonymKey)
	assert.Equal(t, "email-or-name", cfg.Pipeline.ResolvePolicy)
}
