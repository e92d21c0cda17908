// Package app initializes and orchestrates the main components of the
// bridge. Every dependency is constructed here and injected explicitly; no
// component reaches for a global client or connection.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/gitea"
	"github.com/dmartinezh97/reviewrelay/internal/github"
	"github.com/dmartinezh97/reviewrelay/internal/gitsync"
	"github.com/dmartinezh97/reviewrelay/internal/jobs"
	"github.com/dmartinezh97/reviewrelay/internal/server"
	"github.com/dmartinezh97/reviewrelay/internal/server/handler"
	"github.com/dmartinezh97/reviewrelay/internal/storage"
)

// App holds the main application components.
type App struct {
	cfg        *config.Config
	server     *server.Server
	dispatcher *jobs.Dispatcher
	dbCleanup  func()
	logger     *slog.Logger
}

// NewApp sets up the application with all its dependencies.
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	logger.Info("initializing ReviewRelay",
		"profile", cfg.BridgeProfile,
		"publish_mode", cfg.PublishMode,
		"branch_sync", cfg.BranchSyncStrategy,
		"mapped_repos", len(cfg.RepoMap),
		"max_workers", cfg.MaxWorkers)

	db, dbCleanup, err := storage.Open(cfg.DatabaseDriver, cfg.DatabaseURL, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	store := storage.New(db)

	giteaClient, err := gitea.NewClient(cfg.GiteaBaseURL, cfg.GiteaToken, logger)
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to create Gitea client: %w", err)
	}

	githubClient, err := github.NewClientFromConfig(ctx, cfg, logger)
	if err != nil {
		dbCleanup()
		return nil, fmt.Errorf("failed to create GitHub client: %w", err)
	}

	bridge := gitsync.New(cfg, logger)
	publisher := jobs.NewPublisher(cfg.PublishMode, giteaClient, logger)

	mirrorJob := jobs.NewMirrorJob(cfg, store, giteaClient, githubClient, bridge, logger)
	ingestJob := jobs.NewIngestJob(cfg, store, githubClient, publisher, logger)

	dispatcher := jobs.NewDispatcher(cfg.MaxWorkers, logger)
	webhookHandler := handler.NewWebhookHandler(cfg, store, dispatcher, mirrorJob, ingestJob, logger)
	httpServer := server.NewServer(ctx, cfg, webhookHandler, logger)

	logger.Info("ReviewRelay initialized successfully")
	return &App{
		cfg:        cfg,
		server:     httpServer,
		dispatcher: dispatcher,
		dbCleanup:  dbCleanup,
		logger:     logger,
	}, nil
}

// Start runs the HTTP server.
func (a *App) Start() error {
	a.logger.Info("starting ReviewRelay", "server_port", a.cfg.ServerPort)
	return a.server.Start()
}

// Stop shuts down the application cleanly: the server first so no new work
// arrives, then the dispatcher so queued tasks drain, then the database.
func (a *App) Stop() error {
	a.logger.Info("shutting down ReviewRelay services")

	serverErr := a.server.Stop()
	if serverErr != nil {
		a.logger.Error("error during HTTP server shutdown", "error", serverErr)
	}

	a.dispatcher.Stop()
	a.dbCleanup()

	if serverErr != nil {
		return serverErr
	}
	a.logger.Info("ReviewRelay stopped successfully")
	return nil
}
