package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/bridge")
	t.Setenv("GITEA_BASE_URL", "https://gitea.internal")
	t.Setenv("GITEA_TOKEN", "gitea-token")
	t.Setenv("GITHUB_TOKEN", "github-token")
	t.Setenv("GITHUB_WEBHOOK_SECRET", "hook-secret")
	t.Setenv("REPO_MAP", `[{"gitea":"org/repo","github":"ghorg/mirror"}]`)
}

func TestLoadConfig_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ProfileMVP, cfg.BridgeProfile)
	assert.Equal(t, PublishModeComment, cfg.PublishMode)
	assert.Equal(t, BranchSyncMirror, cfg.BranchSyncStrategy)
	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, GitHubAuthToken, cfg.GitHubAuthMode)
	assert.Equal(t, 5, cfg.MaxWorkers)

	require.Len(t, cfg.RepoMap, 1)
	assert.Equal(t, "org/repo", cfg.RepoMap[0].Gitea)
	assert.Equal(t, "ghorg/mirror", cfg.RepoMap[0].GitHub)
}

func TestLoadConfig_V2ProfileDefaultsToReviewMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRIDGE_PROFILE", "v2")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, PublishModeReview, cfg.PublishMode)
}

func TestLoadConfig_ExplicitPublishModeWins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("BRIDGE_PROFILE", "v2")
	t.Setenv("PUBLISH_MODE", PublishModeComment)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, PublishModeComment, cfg.PublishMode)
}

func TestLoadConfig_CopilotLogins(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("COPILOT_REVIEWER_LOGINS", "copilot, copilot-pull-request-reviewer ,")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, []string{"copilot", "copilot-pull-request-reviewer"}, cfg.CopilotReviewerLogins)
}

func TestLoadConfig_GitTokensFallBackToAPITokens(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "gitea-token", cfg.GiteaGitToken)
	assert.Equal(t, "github-token", cfg.GitHubGitToken)

	t.Setenv("GITEA_GIT_TOKEN", "dedicated-git-token")
	cfg, err = LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "dedicated-git-token", cfg.GiteaGitToken)
}

func TestLoadConfig_ValidationFailures(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(t *testing.T)
		wantErr string
	}{
		{
			name:    "missing database url",
			mutate:  func(t *testing.T) { t.Setenv("DATABASE_URL", "") },
			wantErr: "DATABASE_URL",
		},
		{
			name:    "unsupported database driver",
			mutate:  func(t *testing.T) { t.Setenv("DATABASE_DRIVER", "mysql") },
			wantErr: "DATABASE_DRIVER",
		},
		{
			name:    "missing gitea base url",
			mutate:  func(t *testing.T) { t.Setenv("GITEA_BASE_URL", "") },
			wantErr: "GITEA_BASE_URL",
		},
		{
			name:    "missing github webhook secret",
			mutate:  func(t *testing.T) { t.Setenv("GITHUB_WEBHOOK_SECRET", "") },
			wantErr: "GITHUB_WEBHOOK_SECRET",
		},
		{
			name:    "missing github token for token auth",
			mutate:  func(t *testing.T) { t.Setenv("GITHUB_TOKEN", "") },
			wantErr: "GITHUB_TOKEN",
		},
		{
			name:    "app auth without app credentials",
			mutate:  func(t *testing.T) { t.Setenv("GITHUB_AUTH_MODE", "app") },
			wantErr: "GITHUB_APP_ID",
		},
		{
			name:    "missing repo map",
			mutate:  func(t *testing.T) { t.Setenv("REPO_MAP", "") },
			wantErr: "REPO_MAP",
		},
		{
			name:    "malformed repo map",
			mutate:  func(t *testing.T) { t.Setenv("REPO_MAP", "not-json") },
			wantErr: "REPO_MAP",
		},
		{
			name:    "repo map entry missing github side",
			mutate:  func(t *testing.T) { t.Setenv("REPO_MAP", `[{"gitea":"org/repo"}]`) },
			wantErr: "REPO_MAP",
		},
		{
			name:    "unsupported branch sync strategy",
			mutate:  func(t *testing.T) { t.Setenv("BRANCH_SYNC_STRATEGY", "rsync") },
			wantErr: "BRANCH_SYNC_STRATEGY",
		},
		{
			name:    "unsupported publish mode",
			mutate:  func(t *testing.T) { t.Setenv("PUBLISH_MODE", "broadcast") },
			wantErr: "PUBLISH_MODE",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			tc.mutate(t)

			_, err := LoadConfig()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestTargetRepoFor(t *testing.T) {
	cfg := &Config{RepoMap: []RepoMapping{
		{Gitea: "org/repo", GitHub: "ghorg/mirror"},
		{Gitea: "org/other", GitHub: "ghorg/other-mirror"},
	}}

	target, ok := cfg.TargetRepoFor("org/repo")
	assert.True(t, ok)
	assert.Equal(t, "ghorg/mirror", target)

	_, ok = cfg.TargetRepoFor("org/unknown")
	assert.False(t, ok)
}

func TestLoadConfig_AppAuthMode(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("GITHUB_AUTH_MODE", "app")
	t.Setenv("GITHUB_APP_ID", "12345")
	t.Setenv("GITHUB_APP_INSTALLATION_ID", "67890")
	t.Setenv("GITHUB_PRIVATE_KEY_PATH", "/etc/bridge/app.pem")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, GitHubAuthApp, cfg.GitHubAuthMode)
	assert.Equal(t, int64(12345), cfg.GitHubAppID)
	assert.Equal(t, int64(67890), cfg.GitHubInstallationID)
}
