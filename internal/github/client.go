// Package github provides functionality for interacting with the GitHub API.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/go-github/v73/github"

	"github.com/dmartinezh97/reviewrelay/internal/retry"
)

// PullRequest is the subset of a GitHub pull request the bridge cares about.
type PullRequest struct {
	Number  int
	Title   string
	Body    string
	HeadRef string
	BaseRef string
}

// Review is a submitted pull request review.
type Review struct {
	ID            int64
	Body          string
	State         string
	ReviewerLogin string
}

// ReviewComment is a single line comment attached to a review.
type ReviewComment struct {
	Path string
	Line int
	Side string
	Body string
}

// Client defines the GitHub operations the bridge performs: mirror-PR CRUD
// and review retrieval. Errors carry their HTTP status via retry.WithStatus
// so the retry policy can classify them.
type Client interface {
	CreatePullRequest(ctx context.Context, repo, head, base, title, body string) (*PullRequest, error)
	GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error)
	UpdatePullRequest(ctx context.Context, repo string, number int, title, body string) error
	GetReview(ctx context.Context, repo string, number int, reviewID int64) (*Review, error)
	ListReviewComments(ctx context.Context, repo string, number int, reviewID int64) ([]ReviewComment, error)
}

type gitHubClient struct {
	client *github.Client
	logger *slog.Logger
}

// NewClient wraps the official go-github client in the bridge's focused,
// testable interface.
func NewClient(client *github.Client, logger *slog.Logger) Client {
	return &gitHubClient{client: client, logger: logger}
}

// CreatePullRequest opens a mirror PR and returns its assigned number.
func (g *gitHubClient) CreatePullRequest(ctx context.Context, repo, head, base, title, body string) (*PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	pr, resp, err := g.client.PullRequests.Create(ctx, owner, name, &github.NewPullRequest{
		Title: github.Ptr(title),
		Head:  github.Ptr(head),
		Base:  github.Ptr(base),
		Body:  github.Ptr(body),
	})
	if err != nil {
		g.logger.Error("failed to create pull request", "repo", repo, "head", head, "base", base, "error", err)
		return nil, statusErr(err, resp)
	}
	return fromGitHubPR(pr), nil
}

func (g *gitHubClient) GetPullRequest(ctx context.Context, repo string, number int) (*PullRequest, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	pr, resp, err := g.client.PullRequests.Get(ctx, owner, name, number)
	if err != nil {
		g.logger.Error("failed to get pull request", "repo", repo, "pr", number, "error", err)
		return nil, statusErr(err, resp)
	}
	return fromGitHubPR(pr), nil
}

func (g *gitHubClient) UpdatePullRequest(ctx context.Context, repo string, number int, title, body string) error {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return err
	}

	_, resp, err := g.client.PullRequests.Edit(ctx, owner, name, number, &github.PullRequest{
		Title: github.Ptr(title),
		Body:  github.Ptr(body),
	})
	if err != nil {
		g.logger.Error("failed to update pull request", "repo", repo, "pr", number, "error", err)
		return statusErr(err, resp)
	}
	return nil
}

func (g *gitHubClient) GetReview(ctx context.Context, repo string, number int, reviewID int64) (*Review, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	review, resp, err := g.client.PullRequests.GetReview(ctx, owner, name, number, reviewID)
	if err != nil {
		g.logger.Error("failed to get review", "repo", repo, "pr", number, "review", reviewID, "error", err)
		return nil, statusErr(err, resp)
	}
	return &Review{
		ID:            review.GetID(),
		Body:          review.GetBody(),
		State:         review.GetState(),
		ReviewerLogin: review.GetUser().GetLogin(),
	}, nil
}

// ListReviewComments retrieves every line comment of a review, following
// pagination until the last page.
func (g *gitHubClient) ListReviewComments(ctx context.Context, repo string, number int, reviewID int64) ([]ReviewComment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var all []ReviewComment
	opts := &github.ListOptions{PerPage: 100}
	for {
		comments, resp, err := g.client.PullRequests.ListReviewComments(ctx, owner, name, number, reviewID, opts)
		if err != nil {
			g.logger.Error("failed to list review comments", "repo", repo, "pr", number, "review", reviewID, "error", err)
			return nil, statusErr(err, resp)
		}
		for _, c := range comments {
			all = append(all, ReviewComment{
				Path: c.GetPath(),
				Line: c.GetLine(),
				Side: c.GetSide(),
				Body: c.GetBody(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return all, nil
}

func fromGitHubPR(pr *github.PullRequest) *PullRequest {
	return &PullRequest{
		Number:  pr.GetNumber(),
		Title:   pr.GetTitle(),
		Body:    pr.GetBody(),
		HeadRef: pr.GetHead().GetRef(),
		BaseRef: pr.GetBase().GetRef(),
	}
}

func splitRepo(repo string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repo format: %s", repo)
	}
	return owner, name, nil
}

func statusErr(err error, resp *github.Response) error {
	if resp == nil {
		return err
	}
	return retry.WithStatus(err, resp.StatusCode)
}
