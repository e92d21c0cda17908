// Package gitea provides functionality for interacting with the Gitea API.
package gitea

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"code.gitea.io/sdk/gitea"

	"github.com/dmartinezh97/reviewrelay/internal/retry"
)

// PullRequest is the subset of a Gitea pull request the bridge cares about.
type PullRequest struct {
	Number  int64
	Title   string
	Body    string
	HeadRef string
	BaseRef string
}

// ReviewComment is an inline comment of a pull review to be created on Gitea.
type ReviewComment struct {
	Path    string
	Body    string
	NewLine int64
	OldLine int64
}

// Client defines the Gitea operations the bridge performs. The underlying
// SDK is not context-aware per call; cancellation relies on the HTTP
// client's own timeouts, which is all the bridge needs since no operation is
// cancelled once started.
type Client interface {
	GetPullRequest(ctx context.Context, repo string, number int64) (*PullRequest, error)
	CreateIssueComment(ctx context.Context, repo string, number int64, body string) error
	CreatePullReview(ctx context.Context, repo string, number int64, body string, comments []ReviewComment) error
}

type giteaClient struct {
	client *gitea.Client
	logger *slog.Logger
}

// NewClient builds a Gitea client for the given instance using the official
// SDK, authenticated with an access token.
func NewClient(baseURL, token string, logger *slog.Logger) (Client, error) {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	client, err := gitea.NewClient(baseURL, gitea.SetToken(token), gitea.SetHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gitea client for %s: %w", baseURL, err)
	}
	return &giteaClient{client: client, logger: logger}, nil
}

func (g *giteaClient) GetPullRequest(_ context.Context, repo string, number int64) (*PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	pr, resp, err := g.client.GetPullRequest(owner, name, number)
	if err != nil {
		g.logger.Error("failed to get pull request", "repo", repo, "pr", number, "error", err)
		return nil, statusErr(err, resp)
	}

	out := &PullRequest{
		Number: pr.Index,
		Title:  pr.Title,
		Body:   pr.Body,
	}
	if pr.Head != nil {
		out.HeadRef = pr.Head.Ref
	}
	if pr.Base != nil {
		out.BaseRef = pr.Base.Ref
	}
	return out, nil
}

func (g *giteaClient) CreateIssueComment(_ context.Context, repo string, number int64, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	_, resp, err := g.client.CreateIssueComment(owner, name, number, gitea.CreateIssueCommentOption{Body: body})
	if err != nil {
		g.logger.Error("failed to create issue comment", "repo", repo, "issue", number, "error", err)
		return statusErr(err, resp)
	}
	return nil
}

// CreatePullReview creates a native Gitea pull review with inline comments,
// always as a COMMENT event; the bridge never approves or blocks on behalf
// of a bot.
func (g *giteaClient) CreatePullReview(_ context.Context, repo string, number int64, body string, comments []ReviewComment) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	opts := gitea.CreatePullReviewOptions{
		State: gitea.ReviewStateComment,
		Body:  body,
	}
	for _, c := range comments {
		opts.Comments = append(opts.Comments, gitea.CreatePullReviewComment{
			Path:       c.Path,
			Body:       c.Body,
			NewLineNum: c.NewLine,
			OldLineNum: c.OldLine,
		})
	}

	_, resp, err := g.client.CreatePullReview(owner, name, number, opts)
	if err != nil {
		g.logger.Error("failed to create pull review", "repo", repo, "pr", number, "error", err)
		return statusErr(err, resp)
	}
	return nil
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repo format: %s", repo)
	}
	return owner, name, nil
}

func statusErr(err error, resp *gitea.Response) error {
	if resp == nil || resp.Response == nil {
		return err
	}
	return retry.WithStatus(err, resp.StatusCode)
}
