// Package core defines the essential interfaces and data structures that form the
// backbone of the application. These components are designed to be abstract,
// allowing for flexible and decoupled implementations of the application's logic.
package core

import "time"

// DeliverySource identifies which platform sent a webhook delivery.
type DeliverySource string

const (
	// SourceGitea marks deliveries from the Gitea instance.
	SourceGitea DeliverySource = "gitea"
	// SourceGitHub marks deliveries from GitHub.
	SourceGitHub DeliverySource = "github"
)

// WebhookDelivery is one row of the append-only delivery ledger. The pair
// (Source, DeliveryID) is unique; a redelivered webhook maps to an existing
// row and is never processed twice.
type WebhookDelivery struct {
	ID         int64          `db:"id"`
	Source     DeliverySource `db:"source"`
	DeliveryID string         `db:"delivery_id"`
	Event      string         `db:"event"`
	CreatedAt  time.Time      `db:"created_at"`
}

// PRMapping links a Gitea pull request to its mirror on GitHub. It is created
// exactly once, after the mirror PR has been created, and is immutable from
// then on. (GiteaRepo, GiteaPRNumber) is unique.
type PRMapping struct {
	ID             int64     `db:"id"`
	GiteaRepo      string    `db:"gitea_repo"`
	GiteaPRNumber  int64     `db:"gitea_pr_number"`
	GitHubRepo     string    `db:"github_repo"`
	GitHubPRNumber int       `db:"github_pr_number"`
	CreatedAt      time.Time `db:"created_at"`
}

// ProcessedReview marks a GitHub review that has already been published to
// Gitea. Review ids are int64 throughout; some GitHub deployments hand out
// ids above 2^53, so they must never pass through a float64.
type ProcessedReview struct {
	ID             int64     `db:"id"`
	GitHubRepo     string    `db:"github_repo"`
	GitHubPRNumber int       `db:"github_pr_number"`
	GitHubReviewID int64     `db:"github_review_id"`
	CreatedAt      time.Time `db:"created_at"`
}
