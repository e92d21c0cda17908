package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/core"
	"github.com/dmartinezh97/reviewrelay/internal/github"
	"github.com/dmartinezh97/reviewrelay/internal/retry"
	"github.com/dmartinezh97/reviewrelay/internal/storage"
)

// copilotBodyMarkers identify a Copilot review by its body when the reviewer
// login is not in the configured allow-list. A heuristic filter, not a
// security boundary.
var copilotBodyMarkers = []string{"copilot", "github.com/copilot"}

// IngestJob takes a submitted GitHub review, decides whether it came from
// the automated reviewer, and publishes it back onto the originating Gitea
// PR. It owns the processed-review ledger.
type IngestJob struct {
	cfg       *config.Config
	store     storage.Store
	github    github.Client
	publisher Publisher
	logger    *slog.Logger
}

// NewIngestJob creates the review ingestion pipeline.
func NewIngestJob(cfg *config.Config, store storage.Store, githubClient github.Client, publisher Publisher, logger *slog.Logger) *IngestJob {
	return &IngestJob{
		cfg:       cfg,
		store:     store,
		github:    githubClient,
		publisher: publisher,
		logger:    logger,
	}
}

// Run processes one review-submitted event. The processed marker is written
// only after a successful publish: a crash in between means at most one
// duplicate publish on redelivery, never a silently dropped review.
func (j *IngestJob) Run(ctx context.Context, event *core.ReviewEvent) error {
	if !j.isCopilotReview(event.ReviewerLogin, event.ReviewBody) {
		j.logger.Info("not a Copilot review, skipping",
			"github_repo", event.Repo, "pr", event.PRNumber, "login", event.ReviewerLogin)
		return nil
	}

	processed, err := j.store.IsReviewProcessed(ctx, event.Repo, event.PRNumber, event.ReviewID)
	if err != nil {
		return err
	}
	if processed {
		j.logger.Info("review already processed, skipping",
			"github_repo", event.Repo, "pr", event.PRNumber, "review", event.ReviewID)
		return nil
	}

	mapping, err := j.store.GetPRMappingByTarget(ctx, event.Repo, event.PRNumber)
	if err != nil {
		return err
	}
	if mapping == nil {
		j.logger.Warn("no PR mapping found for GitHub PR, skipping review",
			"github_repo", event.Repo, "pr", event.PRNumber)
		return nil
	}

	review, err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) (*github.Review, error) {
		return j.github.GetReview(ctx, event.Repo, event.PRNumber, event.ReviewID)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch review %d: %w", event.ReviewID, err)
	}

	comments, err := retry.Do(ctx, retry.Options{}, func(ctx context.Context) ([]github.ReviewComment, error) {
		return j.github.ListReviewComments(ctx, event.Repo, event.PRNumber, event.ReviewID)
	})
	if err != nil {
		return fmt.Errorf("failed to fetch review comments for %d: %w", event.ReviewID, err)
	}

	j.logger.Info("fetched Copilot review from GitHub",
		"github_repo", event.Repo, "pr", event.PRNumber,
		"review", event.ReviewID, "comments", len(comments))

	publication := &Publication{
		GiteaRepo:      mapping.GiteaRepo,
		GiteaPRNumber:  mapping.GiteaPRNumber,
		GitHubRepo:     event.Repo,
		GitHubPRNumber: event.PRNumber,
		Review:         review,
		Comments:       comments,
	}
	if err := j.publisher.Publish(ctx, publication); err != nil {
		return fmt.Errorf("failed to publish review %d to Gitea: %w", event.ReviewID, err)
	}

	if err := j.store.MarkReviewProcessed(ctx, event.Repo, event.PRNumber, event.ReviewID); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			j.logger.Warn("review marked processed by a concurrent delivery",
				"github_repo", event.Repo, "review", event.ReviewID)
			return nil
		}
		return err
	}

	j.logger.Info("review published to Gitea",
		"gitea_repo", mapping.GiteaRepo, "gitea_pr", mapping.GiteaPRNumber,
		"review", event.ReviewID)
	return nil
}

func (j *IngestJob) isCopilotReview(login, body string) bool {
	for _, allowed := range j.cfg.CopilotReviewerLogins {
		if login != "" && login == allowed {
			return true
		}
	}
	if body != "" {
		lower := strings.ToLower(body)
		for _, marker := range copilotBodyMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
	}
	return false
}
