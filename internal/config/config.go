package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings
type Config struct {
	// Project selection
	Project ProjectConfig `yaml:"project"`

	// Platform API access
	GitLab GitLabConfig `yaml:"gitlab"`
	GitHub GitHubConfig `yaml:"github"`

	// Pipeline tunables
	Pipeline PipelineConfig `yaml:"pipeline"`

	// Staging storage for mined records
	Storage StorageConfig `yaml:"storage"`

	// API response cache
	Cache CacheConfig `yaml:"cache"`

	// Output encoding
	Output OutputConfig `yaml:"output"`
}

type ProjectConfig struct {
	// URL of the hosted project, e.g. https://gitlab.com/group/repo
	URL string `yaml:"url"`
	// Path to a local clone. When set, commit history is mined from
	// the working copy instead of the platform API.
	ClonePath string `yaml:"clone_path"`
}

type GitLabConfig struct {
	BaseURL   string `yaml:"base_url"`
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // requests per second
}

type GitHubConfig struct {
	Token     string `yaml:"token"`
	RateLimit int    `yaml:"rate_limit"` // requests per second
}

type PipelineConfig struct {
	// ResolvePolicy enables double agent resolution when non-empty.
	// One of: exact-email, exact-name, email-or-name, similarity:<t>.
	ResolvePolicy string `yaml:"resolve_policy"`
	// Pseudonymize replaces personal attributes with keyed digests.
	Pseudonymize bool `yaml:"pseudonymize"`
	// PseudonymKey is the HMAC key. Usually supplied via the
	// GITPROV_PSEUDONYM_KEY environment variable rather than on disk.
	PseudonymKey string `yaml:"pseudonym_key"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "sqlite", "postgres"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
}

type CacheConfig struct {
	Path string        `yaml:"path"`
	TTL  time.Duration `yaml:"ttl"`
}

type OutputConfig struct {
	// Format is one of: prov-json, prov-n, dot, stats, stats-csv.
	Format string `yaml:"format"`
	File   string `yaml:"file"`
	// Neo4j export target, used by the export command.
	Neo4jURI      string `yaml:"neo4j_uri"`
	Neo4jUser     string `yaml:"neo4j_user"`
	Neo4jPassword string `yaml:"neo4j_password"`
}

// Default returns default configuration
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		GitLab: GitLabConfig{
			BaseURL:   "https://gitlab.com",
			RateLimit: 10,
		},
		GitHub: GitHubConfig{
			RateLimit: 10,
		},
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(homeDir, ".gitprov", "staging.db"),
		},
		Cache: CacheConfig{
			Path: filepath.Join(homeDir, ".gitprov", "cache.db"),
			TTL:  24 * time.Hour,
		},
		Output: OutputConfig{
			Format: "prov-json",
		},
	}
}

// Load loads configuration from file
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("project", cfg.Project)
	v.SetDefault("gitlab", cfg.GitLab)
	v.SetDefault("github", cfg.GitHub)
	v.SetDefault("pipeline", cfg.Pipeline)
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("output", cfg.Output)

	v.SetEnvPrefix("GITPROV")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".gitprov")
		v.AddConfigPath(".")
		homeDir, _ := os.UserHomeDir()
		v.AddConfigPath(filepath.Join(homeDir, ".gitprov"))
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// loadEnvFiles loads .env files in order of precedence
func loadEnvFiles() {
	envFiles := []string{
		".env.local",
		".env",
	}

	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	homeDir, _ := os.UserHomeDir()
	homeEnvFile := filepath.Join(homeDir, ".gitprov", ".env")
	if _, err := os.Stat(homeEnvFile); err == nil {
		godotenv.Load(homeEnvFile)
	}
}

// applyEnvOverrides applies environment variable overrides to config.
// Precedence for tokens: 1. env var 2. OS keychain 3. credentials file
// 4. config file.
func applyEnvOverrides(cfg *Config) {
	km := NewKeyringManager()
	keychain := km.IsAvailable()
	fallback, _ := LoadCredentials()

	if token := os.Getenv("GITLAB_TOKEN"); token != "" {
		cfg.GitLab.Token = token
	} else if cfg.GitLab.Token == "" {
		if keychain {
			if t, err := km.GetGitLabToken(); err == nil && t != "" {
				cfg.GitLab.Token = t
			}
		}
		if cfg.GitLab.Token == "" {
			cfg.GitLab.Token = fallback.GitLabToken
		}
	}
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cfg.GitHub.Token = token
	} else if cfg.GitHub.Token == "" {
		if keychain {
			if t, err := km.GetGitHubToken(); err == nil && t != "" {
				cfg.GitHub.Token = t
			}
		}
		if cfg.GitHub.Token == "" {
			cfg.GitHub.Token = fallback.GitHubToken
		}
	}

	if base := os.Getenv("GITLAB_BASE_URL"); base != "" {
		cfg.GitLab.BaseURL = base
	}
	if rateLimit := os.Getenv("GITPROV_RATE_LIMIT"); rateLimit != "" {
		if rate, err := strconv.Atoi(rateLimit); err == nil {
			cfg.GitLab.RateLimit = rate
			cfg.GitHub.RateLimit = rate
		}
	}

	if key := os.Getenv("GITPROV_PSEUDONYM_KEY"); key != "" {
		cfg.Pipeline.PseudonymKey = key
	}
	if policy := os.Getenv("GITPROV_RESOLVE_POLICY"); policy != "" {
		cfg.Pipeline.ResolvePolicy = policy
	}

	if dsn := os.Getenv("GITPROV_POSTGRES_DSN"); dsn != "" {
		cfg.Storage.Type = "postgres"
		cfg.Storage.PostgresDSN = dsn
	}
}
