package jobs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/github"
)

func testPublication() *Publication {
	return &Publication{
		GiteaRepo:      "org/repo",
		GiteaPRNumber:  1,
		GitHubRepo:     "ghorg/mirror",
		GitHubPRNumber: 42,
		Review: &github.Review{
			ID:            100,
			Body:          "Overall this looks solid.",
			State:         "commented",
			ReviewerLogin: "copilot",
		},
		Comments: []github.ReviewComment{
			{Path: "internal/api/server.go", Line: 37, Body: "Consider closing the body."},
			{Path: "README.md", Body: "Typo in the setup section."},
		},
	}
}

func TestRenderComment(t *testing.T) {
	out := RenderComment(testPublication())

	assert.Contains(t, out, "mirrored from GitHub `ghorg/mirror#42`")
	assert.Contains(t, out, "Overall this looks solid.")
	assert.Contains(t, out, "**`internal/api/server.go:37`**")
	assert.Contains(t, out, "Consider closing the body.")
	// A comment without a line number is rendered with the path only.
	assert.Contains(t, out, "**`README.md`**")
	assert.NotContains(t, out, "README.md:0")
}

func TestRenderComment_EmptyReviewBody(t *testing.T) {
	pub := testPublication()
	pub.Review.Body = ""
	pub.Comments = nil

	out := RenderComment(pub)
	assert.Contains(t, out, "mirrored from GitHub `ghorg/mirror#42`")
	assert.NotContains(t, out, "---")
}

func TestPublisher_CommentMode(t *testing.T) {
	giteaClient := &fakeGiteaClient{}
	publisher := NewPublisher(config.PublishModeComment, giteaClient, testLogger())

	require.NoError(t, publisher.Publish(context.Background(), testPublication()))

	require.Len(t, giteaClient.comments, 1)
	assert.Contains(t, giteaClient.comments[0], "Overall this looks solid.")
	assert.Empty(t, giteaClient.reviews)
}

func TestPublisher_ReviewMode(t *testing.T) {
	giteaClient := &fakeGiteaClient{}
	publisher := NewPublisher(config.PublishModeReview, giteaClient, testLogger())

	require.NoError(t, publisher.Publish(context.Background(), testPublication()))

	require.Len(t, giteaClient.reviews, 1)
	review := giteaClient.reviews[0]
	assert.Contains(t, review.body, "Overall this looks solid.")
	require.Len(t, review.comments, 2)
	assert.Equal(t, "internal/api/server.go", review.comments[0].Path)
	assert.Equal(t, int64(37), review.comments[0].NewLine)
	assert.Empty(t, giteaClient.comments)
}

func TestPublisher_UnknownModeFails(t *testing.T) {
	publisher := NewPublisher("broadcast", &fakeGiteaClient{}, testLogger())

	err := publisher.Publish(context.Background(), testPublication())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broadcast")
}
