// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v73/github"
	"golang.org/x/oauth2"

	"github.com/dmartinezh97/reviewrelay/internal/config"
)

// NewClientFromConfig builds an authenticated GitHub client. Token mode uses
// a static PAT; app mode authenticates as a GitHub App installation, which
// rotates its own tokens.
func NewClientFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Client, error) {
	switch cfg.GitHubAuthMode {
	case config.GitHubAuthToken:
		return NewPATClient(ctx, cfg.GitHubToken, logger), nil
	case config.GitHubAuthApp:
		return newInstallationClient(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported GitHub auth mode: %s", cfg.GitHubAuthMode)
	}
}

// NewPATClient creates a GitHub client authenticated with a Personal Access
// Token.
func NewPATClient(ctx context.Context, token string, logger *slog.Logger) Client {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	tc := oauth2.NewClient(ctx, ts)
	return NewClient(github.NewClient(tc), logger)
}

func newInstallationClient(cfg *config.Config, logger *slog.Logger) (Client, error) {
	logger.Info("creating GitHub installation client",
		"app_id", cfg.GitHubAppID,
		"installation_id", cfg.GitHubInstallationID)

	transport, err := ghinstallation.NewKeyFromFile(
		http.DefaultTransport,
		cfg.GitHubAppID,
		cfg.GitHubInstallationID,
		cfg.GitHubPrivateKeyPath,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create GitHub App transport: %w", err)
	}

	return NewClient(github.NewClient(&http.Client{Transport: transport}), logger), nil
}
