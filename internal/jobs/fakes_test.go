package jobs

import (
	"context"
	"io"
	"log/slog"

	"github.com/dmartinezh97/reviewrelay/internal/core"
	"github.com/dmartinezh97/reviewrelay/internal/gitea"
	"github.com/dmartinezh97/reviewrelay/internal/github"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeGiteaClient struct {
	pr       *gitea.PullRequest
	prErr    error
	getCalls int

	comments   []string
	commentErr error

	reviews []capturedReview
}

type capturedReview struct {
	body     string
	comments []gitea.ReviewComment
}

func (f *fakeGiteaClient) GetPullRequest(_ context.Context, _ string, _ int64) (*gitea.PullRequest, error) {
	f.getCalls++
	if f.prErr != nil {
		return nil, f.prErr
	}
	return f.pr, nil
}

func (f *fakeGiteaClient) CreateIssueComment(_ context.Context, _ string, _ int64, body string) error {
	if f.commentErr != nil {
		return f.commentErr
	}
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeGiteaClient) CreatePullReview(_ context.Context, _ string, _ int64, body string, comments []gitea.ReviewComment) error {
	f.reviews = append(f.reviews, capturedReview{body: body, comments: comments})
	return nil
}

type fakeGitHubClient struct {
	created     *github.PullRequest
	createErr   error
	createCalls int

	updateErr   error
	updateCalls int

	review      *github.Review
	reviewErr   error
	reviewCalls int

	comments     []github.ReviewComment
	commentsErr  error
	commentCalls int
}

func (f *fakeGitHubClient) CreatePullRequest(_ context.Context, _, _, _, _, _ string) (*github.PullRequest, error) {
	f.createCalls++
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.created, nil
}

func (f *fakeGitHubClient) GetPullRequest(_ context.Context, _ string, _ int) (*github.PullRequest, error) {
	return f.created, nil
}

func (f *fakeGitHubClient) UpdatePullRequest(_ context.Context, _ string, _ int, _, _ string) error {
	f.updateCalls++
	return f.updateErr
}

func (f *fakeGitHubClient) GetReview(_ context.Context, _ string, _ int, _ int64) (*github.Review, error) {
	f.reviewCalls++
	if f.reviewErr != nil {
		return nil, f.reviewErr
	}
	return f.review, nil
}

func (f *fakeGitHubClient) ListReviewComments(_ context.Context, _ string, _ int, _ int64) ([]github.ReviewComment, error) {
	f.commentCalls++
	if f.commentsErr != nil {
		return nil, f.commentsErr
	}
	return f.comments, nil
}

type fakeStore struct {
	mapping    *core.PRMapping
	mappingErr error

	byTarget *core.PRMapping

	created   []*core.PRMapping
	createErr error

	processed    bool
	processedErr error

	marked  []int64
	markErr error
}

func (f *fakeStore) RecordDelivery(_ context.Context, _ core.DeliverySource, _, _ string) (bool, error) {
	return true, nil
}

func (f *fakeStore) GetPRMapping(_ context.Context, _ string, _ int64) (*core.PRMapping, error) {
	return f.mapping, f.mappingErr
}

func (f *fakeStore) GetPRMappingByTarget(_ context.Context, _ string, _ int) (*core.PRMapping, error) {
	return f.byTarget, f.mappingErr
}

func (f *fakeStore) CreatePRMapping(_ context.Context, m *core.PRMapping) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, m)
	return nil
}

func (f *fakeStore) IsReviewProcessed(_ context.Context, _ string, _ int, _ int64) (bool, error) {
	return f.processed, f.processedErr
}

func (f *fakeStore) MarkReviewProcessed(_ context.Context, _ string, _ int, reviewID int64) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.marked = append(f.marked, reviewID)
	return nil
}

type fakeBridge struct {
	synced []string
	err    error
}

func (f *fakeBridge) Sync(_ context.Context, _, _, branch string) error {
	if f.err != nil {
		return f.err
	}
	f.synced = append(f.synced, branch)
	return nil
}

type fakePublisher struct {
	published []*Publication
	err       error
}

func (f *fakePublisher) Publish(_ context.Context, p *Publication) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, p)
	return nil
}
