package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/core"
	"github.com/dmartinezh97/reviewrelay/internal/gitea"
	"github.com/dmartinezh97/reviewrelay/internal/github"
	"github.com/dmartinezh97/reviewrelay/internal/gitsync"
	"github.com/dmartinezh97/reviewrelay/internal/retry"
	"github.com/dmartinezh97/reviewrelay/internal/storage"
)

// MirrorJob reconciles one Gitea pull request onto GitHub. It owns the
// PR mapping: the mapping row is created here, exactly once per source PR,
// and never mutated afterwards.
type MirrorJob struct {
	cfg    *config.Config
	store  storage.Store
	gitea  gitea.Client
	github github.Client
	bridge gitsync.Bridge
	logger *slog.Logger
}

// NewMirrorJob creates the PR mirror reconciler.
func NewMirrorJob(cfg *config.Config, store storage.Store, giteaClient gitea.Client, githubClient github.Client, bridge gitsync.Bridge, logger *slog.Logger) *MirrorJob {
	return &MirrorJob{
		cfg:    cfg,
		store:  store,
		gitea:  giteaClient,
		github: githubClient,
		bridge: bridge,
		logger: logger,
	}
}

// Run converges the GitHub side onto the current state of the Gitea PR.
// Replaying the same event is safe: an already-mirrored PR takes the update
// path, which is a no-op when nothing changed.
//
// If the process dies between creating the GitHub PR and persisting the
// mapping, a redelivery creates a duplicate mirror PR. That is the accepted
// at-least-once trade-off; there is no distributed transaction here.
func (j *MirrorJob) Run(ctx context.Context, event *core.MirrorEvent) error {
	targetRepo, ok := j.cfg.TargetRepoFor(event.Repo)
	if !ok {
		j.logger.Info("no repo mapping configured, skipping", "gitea_repo", event.Repo)
		return nil
	}

	pr, err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) (*gitea.PullRequest, error) {
		return j.gitea.GetPullRequest(ctx, event.Repo, event.PRNumber)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch Gitea PR %s#%d: %w", event.Repo, event.PRNumber, err)
	}

	j.logger.Info("fetched Gitea PR",
		"gitea_repo", event.Repo, "pr", event.PRNumber,
		"head", pr.HeadRef, "base", pr.BaseRef)

	if j.cfg.BranchSyncStrategy == config.BranchSyncGit {
		// Base first, then head, before touching the GitHub PR: a mirror
		// PR referencing missing branches is worse than no PR, so bridge
		// failures abort the run.
		if err := j.bridge.Sync(ctx, event.Repo, targetRepo, pr.BaseRef); err != nil {
			return fmt.Errorf("failed to sync base branch %s: %w", pr.BaseRef, err)
		}
		if err := j.bridge.Sync(ctx, event.Repo, targetRepo, pr.HeadRef); err != nil {
			return fmt.Errorf("failed to sync head branch %s: %w", pr.HeadRef, err)
		}
	}

	mapping, err := j.store.GetPRMapping(ctx, event.Repo, event.PRNumber)
	if err != nil {
		return err
	}

	if mapping != nil {
		return j.updateMirror(ctx, mapping, pr)
	}
	return j.createMirror(ctx, event, targetRepo, pr)
}

func (j *MirrorJob) updateMirror(ctx context.Context, mapping *core.PRMapping, pr *gitea.PullRequest) error {
	j.logger.Info("PR mapping exists, updating GitHub PR",
		"gitea_repo", mapping.GiteaRepo, "gitea_pr", mapping.GiteaPRNumber,
		"github_pr", mapping.GitHubPRNumber)

	err := retry.DoVoid(ctx, retry.Options{}, func(ctx context.Context) error {
		return j.github.UpdatePullRequest(ctx, mapping.GitHubRepo, mapping.GitHubPRNumber, pr.Title, pr.Body)
	})
	if err != nil {
		return fmt.Errorf("failed to update GitHub PR %s#%d: %w", mapping.GitHubRepo, mapping.GitHubPRNumber, err)
	}
	return nil
}

func (j *MirrorJob) createMirror(ctx context.Context, event *core.MirrorEvent, targetRepo string, pr *gitea.PullRequest) error {
	created, err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) (*github.PullRequest, error) {
		return j.github.CreatePullRequest(ctx, targetRepo, pr.HeadRef, pr.BaseRef, pr.Title, pr.Body)
	})
	if err != nil {
		if isUnprocessable(err) {
			j.notifyCreateFailure(ctx, event, targetRepo, pr)
		}
		return fmt.Errorf("failed to create mirror PR on %s: %w", targetRepo, err)
	}

	mapping := &core.PRMapping{
		GiteaRepo:      event.Repo,
		GiteaPRNumber:  event.PRNumber,
		GitHubRepo:     targetRepo,
		GitHubPRNumber: created.Number,
	}
	if err := j.store.CreatePRMapping(ctx, mapping); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			// A concurrent delivery mirrored this PR first; ours may be a
			// duplicate on GitHub but the mapping stays consistent.
			j.logger.Warn("PR mapping already exists, lost creation race",
				"gitea_repo", event.Repo, "gitea_pr", event.PRNumber)
			return nil
		}
		return err
	}

	j.logger.Info("created mirror PR on GitHub",
		"gitea_repo", event.Repo, "gitea_pr", event.PRNumber,
		"github_repo", targetRepo, "github_pr", created.Number)
	return nil
}

// notifyCreateFailure posts a best-effort comment on the Gitea PR explaining
// the likely cause of an unprocessable creation. Its own failure is logged
// and swallowed so it never masks the original error.
func (j *MirrorJob) notifyCreateFailure(ctx context.Context, event *core.MirrorEvent, targetRepo string, pr *gitea.PullRequest) {
	message := fmt.Sprintf(
		"⚠️ ReviewRelay could not create the mirror PR on GitHub. "+
			"Make sure the branches `%s` and `%s` exist in the GitHub repo (`%s`). "+
			"If you are running the MVP profile, check that the Gitea push mirror is configured.",
		pr.HeadRef, pr.BaseRef, targetRepo)

	if err := j.gitea.CreateIssueComment(ctx, event.Repo, event.PRNumber, message); err != nil {
		j.logger.Error("failed to post error comment to Gitea",
			"gitea_repo", event.Repo, "pr", event.PRNumber, "error", err)
	}
}

// isUnprocessable detects a 422 from the GitHub create call, which almost
// always means the referenced branches are not present on the mirror.
func isUnprocessable(err error) bool {
	if status, ok := retry.StatusOf(err); ok {
		return status == http.StatusUnprocessableEntity
	}
	return strings.Contains(err.Error(), "422")
}
