package core

import "context"

// Task is a single unit of asynchronous work queued by a webhook handler.
// The closure carries the already-validated event; Kind and Repo exist only
// so the dispatcher can log something useful about it.
type Task struct {
	Kind string
	Repo string
	Run  func(ctx context.Context) error
}

// Dispatcher accepts tasks for background processing. It returns an error if
// the task cannot be queued (queue full), giving the webhook layer a
// backpressure signal instead of unbounded goroutine growth.
type Dispatcher interface {
	Dispatch(ctx context.Context, task Task) error
}

// MirrorRunner reconciles one Gitea pull request onto GitHub. The webhook
// layer depends on this capability interface rather than the concrete job so
// the two can be wired independently at startup.
type MirrorRunner interface {
	Run(ctx context.Context, event *MirrorEvent) error
}

// ReviewRunner ingests one GitHub review and publishes it back to Gitea.
type ReviewRunner interface {
	Run(ctx context.Context, event *ReviewEvent) error
}
