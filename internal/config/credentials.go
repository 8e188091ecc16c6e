package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/traceworks/gitprov/internal/gperrors"
)

// Credentials is the on-disk fallback for platform tokens, used when
// no OS keychain backend is available (typically headless Linux).
// The file is written with owner-only permissions.
type Credentials struct {
	GitLabToken string `yaml:"gitlab_token,omitempty"`
	GitHubToken string `yaml:"github_token,omitempty"`
}

func credentialsPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", gperrors.Config("cannot determine home directory: " + err.Error())
	}
	return filepath.Join(homeDir, ".gitprov", "credentials.yaml"), nil
}

// LoadCredentials reads the fallback credentials file. A missing file
// yields empty credentials, not an error.
func LoadCredentials() (Credentials, error) {
	path, err := credentialsPath()
	if err != nil {
		return Credentials{}, err
	}

	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return Credentials{}, nil
	}
	if err != nil {
		return Credentials{}, gperrors.Storage(err, "failed to read credentials file")
	}

	var creds Credentials
	if err := yaml.Unmarshal(raw, &creds); err != nil {
		return Credentials{}, gperrors.Storage(err, "failed to parse credentials file")
	}
	return creds, nil
}

// SaveCredentials writes the fallback credentials file.
func SaveCredentials(creds Credentials) (string, error) {
	path, err := credentialsPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return "", gperrors.Storage(err, "failed to create config directory")
	}

	raw, err := yaml.Marshal(creds)
	if err != nil {
		return "", gperrors.Storage(err, "failed to encode credentials")
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return "", gperrors.Storage(err, "failed to write credentials file")
	}
	return path, nil
}
