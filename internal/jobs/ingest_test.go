package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/core"
	"github.com/dmartinezh97/reviewrelay/internal/github"
	"github.com/dmartinezh97/reviewrelay/internal/storage"
)

func ingestConfig() *config.Config {
	return &config.Config{
		CopilotReviewerLogins: []string{"copilot"},
	}
}

func submittedEvent() *core.ReviewEvent {
	return &core.ReviewEvent{
		Action:        "submitted",
		Repo:          "ghorg/mirror",
		PRNumber:      42,
		ReviewID:      9007199254740993,
		ReviewerLogin: "copilot",
	}
}

func mappedStore() *fakeStore {
	return &fakeStore{byTarget: &core.PRMapping{
		GiteaRepo:      "org/repo",
		GiteaPRNumber:  1,
		GitHubRepo:     "ghorg/mirror",
		GitHubPRNumber: 42,
	}}
}

func TestIsCopilotReview(t *testing.T) {
	job := NewIngestJob(ingestConfig(), &fakeStore{}, &fakeGitHubClient{}, &fakePublisher{}, testLogger())

	testCases := []struct {
		name  string
		login string
		body  string
		want  bool
	}{
		{name: "allow-listed login with empty body", login: "copilot", body: "", want: true},
		{name: "unknown login and unrelated body", login: "alice", body: "nice work", want: false},
		{name: "unknown login with copilot marker in body", login: "alice", body: "Reviewed by github.com/copilot", want: true},
		{name: "marker match is case-insensitive", login: "alice", body: "COPILOT found an issue", want: true},
		{name: "empty login and empty body", login: "", body: "", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, job.isCopilotReview(tc.login, tc.body))
		})
	}
}

func TestIngestRun_IrrelevantReviewIsSkipped(t *testing.T) {
	githubClient := &fakeGitHubClient{}
	publisher := &fakePublisher{}

	job := NewIngestJob(ingestConfig(), mappedStore(), githubClient, publisher, testLogger())
	event := submittedEvent()
	event.ReviewerLogin = "alice"
	event.ReviewBody = "nice work"

	require.NoError(t, job.Run(context.Background(), event))
	assert.Zero(t, githubClient.reviewCalls)
	assert.Empty(t, publisher.published)
}

func TestIngestRun_AlreadyProcessedIsSkipped(t *testing.T) {
	store := mappedStore()
	store.processed = true
	githubClient := &fakeGitHubClient{}
	publisher := &fakePublisher{}

	job := NewIngestJob(ingestConfig(), store, githubClient, publisher, testLogger())
	require.NoError(t, job.Run(context.Background(), submittedEvent()))

	assert.Zero(t, githubClient.reviewCalls)
	assert.Empty(t, publisher.published)
	assert.Empty(t, store.marked)
}

func TestIngestRun_OrphanReviewIsSkipped(t *testing.T) {
	githubClient := &fakeGitHubClient{}
	publisher := &fakePublisher{}

	job := NewIngestJob(ingestConfig(), &fakeStore{}, githubClient, publisher, testLogger())
	require.NoError(t, job.Run(context.Background(), submittedEvent()))

	assert.Zero(t, githubClient.reviewCalls)
	assert.Empty(t, publisher.published)
}

func TestIngestRun_PublishesAndMarksProcessed(t *testing.T) {
	store := mappedStore()
	githubClient := &fakeGitHubClient{
		review: &github.Review{ID: 9007199254740993, Body: "Looks good overall", ReviewerLogin: "copilot"},
		comments: []github.ReviewComment{
			{Path: "main.go", Line: 10, Body: "Possible nil dereference"},
		},
	}
	publisher := &fakePublisher{}

	job := NewIngestJob(ingestConfig(), store, githubClient, publisher, testLogger())
	require.NoError(t, job.Run(context.Background(), submittedEvent()))

	assert.Equal(t, 1, githubClient.reviewCalls)
	assert.Equal(t, 1, githubClient.commentCalls)

	require.Len(t, publisher.published, 1)
	pub := publisher.published[0]
	assert.Equal(t, "org/repo", pub.GiteaRepo)
	assert.Equal(t, int64(1), pub.GiteaPRNumber)
	assert.Equal(t, "ghorg/mirror", pub.GitHubRepo)
	assert.Equal(t, 42, pub.GitHubPRNumber)
	assert.Equal(t, "Looks good overall", pub.Review.Body)
	require.Len(t, pub.Comments, 1)

	assert.Equal(t, []int64{9007199254740993}, store.marked)
}

func TestIngestRun_PublishFailureLeavesReviewUnmarked(t *testing.T) {
	store := mappedStore()
	githubClient := &fakeGitHubClient{review: &github.Review{ID: 1}}
	publisher := &fakePublisher{err: errors.New("gitea unavailable")}

	job := NewIngestJob(ingestConfig(), store, githubClient, publisher, testLogger())
	err := job.Run(context.Background(), submittedEvent())

	require.Error(t, err)
	assert.Empty(t, store.marked)
}

func TestIngestRun_ConcurrentMarkIsBenign(t *testing.T) {
	store := mappedStore()
	store.markErr = storage.ErrAlreadyExists
	githubClient := &fakeGitHubClient{review: &github.Review{ID: 1}}
	publisher := &fakePublisher{}

	job := NewIngestJob(ingestConfig(), store, githubClient, publisher, testLogger())
	require.NoError(t, job.Run(context.Background(), submittedEvent()))

	assert.Len(t, publisher.published, 1)
}
