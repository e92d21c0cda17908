// Package config loads and validates the process-wide configuration. The
// resulting Config is immutable for the lifetime of the process.
package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Bridge profiles select defaults for publish mode and branch syncing.
const (
	ProfileMVP = "mvp"
	ProfileV2  = "v2"
)

// Publish modes for reviews arriving from GitHub.
const (
	PublishModeComment = "comment"
	PublishModeReview  = "review"
)

// Branch sync strategies. "mirror" relies on a Gitea push mirror; "git"
// pushes branches to GitHub directly before mirroring a PR.
const (
	BranchSyncMirror = "mirror"
	BranchSyncGit    = "git"
)

// GitHub client auth modes.
const (
	GitHubAuthToken = "token"
	GitHubAuthApp   = "app"
)

// RepoMapping pairs a Gitea repository with its GitHub mirror, both in
// "owner/name" form.
type RepoMapping struct {
	Gitea  string `json:"gitea"`
	GitHub string `json:"github"`
}

// Config holds the application's configuration values.
type Config struct {
	ServerPort string
	LogLevel   string
	LogFormat  string
	AppVersion string

	BridgeProfile      string
	PublishMode        string
	BranchSyncStrategy string

	DatabaseDriver string
	DatabaseURL    string

	GiteaBaseURL           string
	GiteaToken             string
	GiteaWebhookSecret     string
	GiteaWebhookAuthHeader string

	GitHubToken          string
	GitHubWebhookSecret  string
	GitHubAuthMode       string
	GitHubAppID          int64
	GitHubInstallationID int64
	GitHubPrivateKeyPath string

	RepoMap               []RepoMapping
	CopilotReviewerLogins []string

	MaxWorkers int

	GitCacheDir          string
	GiteaGitURLTemplate  string
	GitHubGitURLTemplate string
	GiteaGitToken        string
	GitHubGitToken       string
}

// LoadConfig reads configuration from environment variables and a .env file,
// sets sensible defaults, and validates required fields.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("APP_VERSION", "0.0.0")
	v.SetDefault("BRIDGE_PROFILE", ProfileMVP)
	v.SetDefault("BRANCH_SYNC_STRATEGY", BranchSyncMirror)
	v.SetDefault("DATABASE_DRIVER", "postgres")
	v.SetDefault("GITHUB_AUTH_MODE", GitHubAuthToken)
	v.SetDefault("MAX_WORKERS", 5)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Missing .env is fine; a present-but-broken one is not.
			if !strings.Contains(err.Error(), "no such file") {
				return nil, fmt.Errorf("failed to read .env file: %w", err)
			}
		}
	}

	cfg := &Config{
		ServerPort: v.GetString("SERVER_PORT"),
		LogLevel:   v.GetString("LOG_LEVEL"),
		LogFormat:  v.GetString("LOG_FORMAT"),
		AppVersion: v.GetString("APP_VERSION"),

		BridgeProfile:      v.GetString("BRIDGE_PROFILE"),
		PublishMode:        v.GetString("PUBLISH_MODE"),
		BranchSyncStrategy: v.GetString("BRANCH_SYNC_STRATEGY"),

		DatabaseDriver: v.GetString("DATABASE_DRIVER"),
		DatabaseURL:    v.GetString("DATABASE_URL"),

		GiteaBaseURL:           v.GetString("GITEA_BASE_URL"),
		GiteaToken:             v.GetString("GITEA_TOKEN"),
		GiteaWebhookSecret:     v.GetString("GITEA_WEBHOOK_SECRET"),
		GiteaWebhookAuthHeader: v.GetString("GITEA_WEBHOOK_AUTH_HEADER"),

		GitHubToken:          v.GetString("GITHUB_TOKEN"),
		GitHubWebhookSecret:  v.GetString("GITHUB_WEBHOOK_SECRET"),
		GitHubAuthMode:       v.GetString("GITHUB_AUTH_MODE"),
		GitHubAppID:          v.GetInt64("GITHUB_APP_ID"),
		GitHubInstallationID: v.GetInt64("GITHUB_APP_INSTALLATION_ID"),
		GitHubPrivateKeyPath: v.GetString("GITHUB_PRIVATE_KEY_PATH"),

		MaxWorkers: v.GetInt("MAX_WORKERS"),

		GitCacheDir:          v.GetString("GIT_CACHE_DIR"),
		GiteaGitURLTemplate:  v.GetString("GITEA_GIT_URL_TEMPLATE"),
		GitHubGitURLTemplate: v.GetString("GITHUB_GIT_URL_TEMPLATE"),
		GiteaGitToken:        v.GetString("GITEA_GIT_TOKEN"),
		GitHubGitToken:       v.GetString("GITHUB_GIT_TOKEN"),
	}

	if cfg.PublishMode == "" {
		if cfg.BridgeProfile == ProfileV2 {
			cfg.PublishMode = PublishModeReview
		} else {
			cfg.PublishMode = PublishModeComment
		}
	}

	repoMap, err := parseRepoMap(v.GetString("REPO_MAP"))
	if err != nil {
		return nil, err
	}
	cfg.RepoMap = repoMap

	cfg.CopilotReviewerLogins = splitList(v.GetString("COPILOT_REVIEWER_LOGINS"))

	// Git-level sync falls back to the API tokens when no dedicated git
	// credentials are configured.
	if cfg.GiteaGitToken == "" {
		cfg.GiteaGitToken = cfg.GiteaToken
	}
	if cfg.GitHubGitToken == "" {
		cfg.GitHubGitToken = cfg.GitHubToken
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if c.DatabaseDriver != "postgres" && c.DatabaseDriver != "sqlite3" {
		return fmt.Errorf("unsupported DATABASE_DRIVER: %s", c.DatabaseDriver)
	}
	if c.GiteaBaseURL == "" {
		return fmt.Errorf("GITEA_BASE_URL must be set")
	}
	if c.GiteaToken == "" {
		return fmt.Errorf("GITEA_TOKEN must be set")
	}
	if c.GitHubWebhookSecret == "" {
		return fmt.Errorf("GITHUB_WEBHOOK_SECRET must be set")
	}
	switch c.GitHubAuthMode {
	case GitHubAuthToken:
		if c.GitHubToken == "" {
			return fmt.Errorf("GITHUB_TOKEN must be set for token auth")
		}
	case GitHubAuthApp:
		if c.GitHubAppID == 0 || c.GitHubInstallationID == 0 || c.GitHubPrivateKeyPath == "" {
			return fmt.Errorf("GITHUB_APP_ID, GITHUB_APP_INSTALLATION_ID and GITHUB_PRIVATE_KEY_PATH must be set for app auth")
		}
	default:
		return fmt.Errorf("unsupported GITHUB_AUTH_MODE: %s", c.GitHubAuthMode)
	}
	switch c.BranchSyncStrategy {
	case BranchSyncMirror, BranchSyncGit:
	default:
		return fmt.Errorf("unsupported BRANCH_SYNC_STRATEGY: %s", c.BranchSyncStrategy)
	}
	switch c.PublishMode {
	case PublishModeComment, PublishModeReview:
	default:
		return fmt.Errorf("unsupported PUBLISH_MODE: %s", c.PublishMode)
	}
	return nil
}

// TargetRepoFor resolves a Gitea repository against the static repo map.
func (c *Config) TargetRepoFor(giteaRepo string) (string, bool) {
	for _, m := range c.RepoMap {
		if m.Gitea == giteaRepo {
			return m.GitHub, true
		}
	}
	return "", false
}

func parseRepoMap(raw string) ([]RepoMapping, error) {
	if raw == "" {
		return nil, fmt.Errorf("REPO_MAP must be set")
	}
	var mappings []RepoMapping
	if err := json.Unmarshal([]byte(raw), &mappings); err != nil {
		return nil, fmt.Errorf("REPO_MAP must be a valid JSON array of {gitea, github} objects: %w", err)
	}
	for _, m := range mappings {
		if m.Gitea == "" || m.GitHub == "" {
			return nil, fmt.Errorf("REPO_MAP entries need both gitea and github repos")
		}
	}
	return mappings, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
