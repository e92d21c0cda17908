package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/gitea"
	"github.com/dmartinezh97/reviewrelay/internal/github"
	"github.com/dmartinezh97/reviewrelay/internal/retry"
)

// Publication carries a fetched GitHub review, its line comments, and both
// PR identities to the publisher.
type Publication struct {
	GiteaRepo      string
	GiteaPRNumber  int64
	GitHubRepo     string
	GitHubPRNumber int
	Review         *github.Review
	Comments       []github.ReviewComment
}

// Publisher renders a GitHub review and posts it on the Gitea PR.
type Publisher interface {
	Publish(ctx context.Context, p *Publication) error
}

type giteaPublisher struct {
	mode   string
	gitea  gitea.Client
	logger *slog.Logger
}

// NewPublisher creates a publisher for the configured mode: "comment"
// renders everything into a single markdown issue comment, "review" creates
// a native Gitea pull review with inline comments.
func NewPublisher(mode string, giteaClient gitea.Client, logger *slog.Logger) Publisher {
	return &giteaPublisher{mode: mode, gitea: giteaClient, logger: logger}
}

func (p *giteaPublisher) Publish(ctx context.Context, pub *Publication) error {
	switch p.mode {
	case config.PublishModeReview:
		return p.publishReview(ctx, pub)
	case config.PublishModeComment:
		return p.publishComment(ctx, pub)
	default:
		return fmt.Errorf("unsupported publish mode: %s", p.mode)
	}
}

func (p *giteaPublisher) publishComment(ctx context.Context, pub *Publication) error {
	body := RenderComment(pub)
	return retry.DoVoid(ctx, retry.Options{}, func(ctx context.Context) error {
		return p.gitea.CreateIssueComment(ctx, pub.GiteaRepo, pub.GiteaPRNumber, body)
	})
}

func (p *giteaPublisher) publishReview(ctx context.Context, pub *Publication) error {
	body := renderHeader(pub)
	if pub.Review.Body != "" {
		body += "\n\n" + pub.Review.Body
	}

	var comments []gitea.ReviewComment
	for _, c := range pub.Comments {
		comments = append(comments, gitea.ReviewComment{
			Path:    c.Path,
			Body:    c.Body,
			NewLine: int64(c.Line),
		})
	}

	return retry.DoVoid(ctx, retry.Options{}, func(ctx context.Context) error {
		return p.gitea.CreatePullReview(ctx, pub.GiteaRepo, pub.GiteaPRNumber, body, comments)
	})
}

// RenderComment formats a review and its line comments as one markdown
// comment for the "comment" publish mode.
func RenderComment(pub *Publication) string {
	var b strings.Builder
	b.WriteString(renderHeader(pub))
	b.WriteString("\n")

	if pub.Review.Body != "" {
		b.WriteString("\n")
		b.WriteString(pub.Review.Body)
		b.WriteString("\n")
	}

	for _, c := range pub.Comments {
		b.WriteString("\n---\n\n")
		if c.Line > 0 {
			fmt.Fprintf(&b, "**`%s:%d`**\n\n", c.Path, c.Line)
		} else {
			fmt.Fprintf(&b, "**`%s`**\n\n", c.Path)
		}
		b.WriteString(c.Body)
		b.WriteString("\n")
	}
	return b.String()
}

func renderHeader(pub *Publication) string {
	return fmt.Sprintf("## 🤖 Copilot review (mirrored from GitHub `%s#%d`)",
		pub.GitHubRepo, pub.GitHubPRNumber)
}
