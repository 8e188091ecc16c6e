package config

import (
	"fmt"
	"log/slog"

	"github.com/zalando/go-keyring"
)

const (
	// KeyringService is the service name in the OS keychain
	KeyringService = "gitprov"

	// KeyringGitLabTokenItem is the key for the GitLab API token
	KeyringGitLabTokenItem = "gitlab-token"

	// KeyringGitHubTokenItem is the key for the GitHub API token
	KeyringGitHubTokenItem = "github-token"
)

// KeyringManager handles secure credential storage in the OS keychain
type KeyringManager struct {
	logger *slog.Logger
}

// NewKeyringManager creates a new keyring manager
func NewKeyringManager() *KeyringManager {
	return &KeyringManager{
		logger: slog.Default().With("component", "keyring"),
	}
}

// SaveGitLabToken stores the GitLab token in the OS keychain
func (km *KeyringManager) SaveGitLabToken(token string) error {
	return km.save(KeyringGitLabTokenItem, token)
}

// GetGitLabToken retrieves the GitLab token from the OS keychain
func (km *KeyringManager) GetGitLabToken() (string, error) {
	return km.get(KeyringGitLabTokenItem)
}

// DeleteGitLabToken removes the GitLab token from the OS keychain
func (km *KeyringManager) DeleteGitLabToken() error {
	return km.delete(KeyringGitLabTokenItem)
}

// SaveGitHubToken stores the GitHub token in the OS keychain
func (km *KeyringManager) SaveGitHubToken(token string) error {
	return km.save(KeyringGitHubTokenItem, token)
}

// GetGitHubToken retrieves the GitHub token from the OS keychain
func (km *KeyringManager) GetGitHubToken() (string, error) {
	return km.get(KeyringGitHubTokenItem)
}

// DeleteGitHubToken removes the GitHub token from the OS keychain
func (km *KeyringManager) DeleteGitHubToken() error {
	return km.delete(KeyringGitHubTokenItem)
}

func (km *KeyringManager) save(item, value string) error {
	if value == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if err := keyring.Set(KeyringService, item, value); err != nil {
		km.logger.Error("failed to save token to keychain", "item", item, "error", err)
		return fmt.Errorf("failed to save to OS keychain: %w", err)
	}

	km.logger.Info("token saved to keychain", "service", KeyringService, "item", item)
	return nil
}

func (km *KeyringManager) get(item string) (string, error) {
	value, err := keyring.Get(KeyringService, item)
	if err == keyring.ErrNotFound {
		// Not an error, just not set yet
		return "", nil
	}
	if err != nil {
		km.logger.Error("failed to read token from keychain", "item", item, "error", err)
		return "", fmt.Errorf("failed to read from OS keychain: %w", err)
	}

	km.logger.Debug("token retrieved from keychain", "item", item)
	return value, nil
}

func (km *KeyringManager) delete(item string) error {
	err := keyring.Delete(KeyringService, item)
	if err == keyring.ErrNotFound {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to delete from OS keychain: %w", err)
	}
	return nil
}

// IsAvailable reports whether an OS keychain backend is usable.
// Headless Linux without a Secret Service daemon is the common
// case where it is not.
func (km *KeyringManager) IsAvailable() bool {
	const probe = "availability-probe"
	if err := keyring.Set(KeyringService, probe, "ok"); err != nil {
		return false
	}
	keyring.Delete(KeyringService, probe)
	return true
}
