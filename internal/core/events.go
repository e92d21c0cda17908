package core

import (
	"encoding/json"
	"fmt"

	"github.com/google/go-github/v73/github"
)

// MirrorEvent is the internal view of a Gitea pull_request webhook payload.
// Only the fields the reconciler needs survive; the PR content itself is
// re-fetched from the Gitea API so a stale payload can never be mirrored.
type MirrorEvent struct {
	Action   string
	Repo     string
	PRNumber int64
}

// ReviewEvent is the internal view of a GitHub pull_request_review payload.
type ReviewEvent struct {
	Action        string
	Repo          string
	PRNumber      int
	ReviewID      int64
	ReviewerLogin string
	ReviewBody    string
}

type giteaPRPayload struct {
	Action      string `json:"action"`
	PullRequest *struct {
		Number int64 `json:"number"`
	} `json:"pull_request"`
	Repository *struct {
		FullName string `json:"full_name"`
	} `json:"repository"`
}

// MirrorEventFromPayload parses a raw Gitea pull_request payload into a
// MirrorEvent. It acts as an anti-corruption layer: a payload missing the
// repository full name or the PR number is rejected here, before any job is
// queued.
func MirrorEventFromPayload(payload []byte) (*MirrorEvent, error) {
	var p giteaPRPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid pull_request payload: %w", err)
	}
	if p.Repository == nil || p.Repository.FullName == "" {
		return nil, fmt.Errorf("repository full name is missing from the event")
	}
	if p.PullRequest == nil || p.PullRequest.Number <= 0 {
		return nil, fmt.Errorf("pull request number is missing from the event")
	}
	return &MirrorEvent{
		Action:   p.Action,
		Repo:     p.Repository.FullName,
		PRNumber: p.PullRequest.Number,
	}, nil
}

// ReviewEventFromGitHub transforms a raw GitHub PullRequestReviewEvent into
// the internal ReviewEvent representation. The reviewer login and body may
// legitimately be empty (relevance is decided later); repo, PR number, and
// review id are required.
func ReviewEventFromGitHub(event *github.PullRequestReviewEvent) (*ReviewEvent, error) {
	if event.GetRepo().GetFullName() == "" {
		return nil, fmt.Errorf("repository full name is missing from the event")
	}
	if event.GetPullRequest().GetNumber() <= 0 {
		return nil, fmt.Errorf("pull request number is missing from the event")
	}
	if event.GetReview().GetID() == 0 {
		return nil, fmt.Errorf("review id is missing from the event")
	}
	return &ReviewEvent{
		Action:        event.GetAction(),
		Repo:          event.GetRepo().GetFullName(),
		PRNumber:      event.GetPullRequest().GetNumber(),
		ReviewID:      event.GetReview().GetID(),
		ReviewerLogin: event.GetReview().GetUser().GetLogin(),
		ReviewBody:    event.GetReview().GetBody(),
	}, nil
}
