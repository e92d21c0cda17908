// Package handler provides the HTTP handlers for the two webhook endpoints.
package handler

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	gh "github.com/google/go-github/v73/github"

	"github.com/dmartinezh97/reviewrelay/internal/config"
	"github.com/dmartinezh97/reviewrelay/internal/core"
	"github.com/dmartinezh97/reviewrelay/internal/signature"
	"github.com/dmartinezh97/reviewrelay/internal/storage"
)

// WebhookHandler processes inbound webhooks from Gitea and GitHub. The
// response is committed as soon as verification and ledger admission are
// done; the actual mirroring runs on the dispatcher's workers, so senders
// never observe downstream failures through HTTP.
type WebhookHandler struct {
	cfg        *config.Config
	store      storage.Store
	dispatcher core.Dispatcher
	mirror     core.MirrorRunner
	ingest     core.ReviewRunner
	logger     *slog.Logger
}

// NewWebhookHandler creates a webhook handler wired to the given jobs.
func NewWebhookHandler(cfg *config.Config, store storage.Store, dispatcher core.Dispatcher, mirror core.MirrorRunner, ingest core.ReviewRunner, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		cfg:        cfg,
		store:      store,
		dispatcher: dispatcher,
		mirror:     mirror,
		ingest:     ingest,
		logger:     logger,
	}
}

// HandleGitea processes Gitea pull_request webhooks.
func (h *WebhookHandler) HandleGitea(w http.ResponseWriter, r *http.Request) {
	// The raw body must reach signature verification untouched; verifying
	// a re-serialized body would reject valid signatures.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Could not read body"})
		return
	}

	if h.cfg.GiteaWebhookAuthHeader != "" {
		auth := r.Header.Get("Authorization")
		if subtle.ConstantTimeCompare([]byte(auth), []byte(h.cfg.GiteaWebhookAuthHeader)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid authorization header"})
			return
		}
	}

	if h.cfg.GiteaWebhookSecret != "" {
		sig := r.Header.Get("X-Gitea-Signature")
		if sig == "" || !signature.VerifyGitea(body, h.cfg.GiteaWebhookSecret, sig) {
			h.logger.Error("invalid Gitea webhook signature")
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
			return
		}
	}

	deliveryID := r.Header.Get("X-Gitea-Delivery")
	event := r.Header.Get("X-Gitea-Event")
	if deliveryID == "" || event == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing Gitea headers"})
		return
	}

	firstSeen, err := h.store.RecordDelivery(r.Context(), core.SourceGitea, deliveryID, event)
	if err != nil {
		h.logger.Error("failed to record Gitea delivery", "delivery_id", deliveryID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to record delivery"})
		return
	}
	if !firstSeen {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	if event == "pull_request" {
		h.dispatchMirror(w, body)
		return
	}

	h.logger.Debug("ignoring unhandled Gitea event type", "type", event)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *WebhookHandler) dispatchMirror(w http.ResponseWriter, body []byte) {
	mirrorEvent, err := core.MirrorEventFromPayload(body)
	if err != nil {
		h.logger.Warn("ignoring malformed Gitea pull_request payload", "reason", err.Error())
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	if mirrorEvent.Action != "opened" && mirrorEvent.Action != "synchronized" {
		h.logger.Debug("ignoring Gitea pull_request action", "action", mirrorEvent.Action)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	task := core.Task{
		Kind: "pr_mirror",
		Repo: mirrorEvent.Repo,
		Run: func(ctx context.Context) error {
			return h.mirror.Run(ctx, mirrorEvent)
		},
	}
	if err := h.dispatcher.Dispatch(context.Background(), task); err != nil {
		h.logger.Error("failed to dispatch mirror task", "repo", mirrorEvent.Repo, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to queue task"})
		return
	}

	h.logger.Info("mirror task dispatched", "repo", mirrorEvent.Repo, "pr", mirrorEvent.PRNumber)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// HandleGitHub processes GitHub pull_request_review webhooks.
func (h *WebhookHandler) HandleGitHub(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Could not read body"})
		return
	}

	sig := r.Header.Get("X-Hub-Signature-256")
	if sig == "" || !signature.VerifyGitHub(body, h.cfg.GitHubWebhookSecret, sig) {
		h.logger.Error("invalid GitHub webhook signature")
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Invalid signature"})
		return
	}

	deliveryID := r.Header.Get("X-GitHub-Delivery")
	event := r.Header.Get("X-GitHub-Event")
	if deliveryID == "" || event == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing GitHub headers"})
		return
	}

	firstSeen, err := h.store.RecordDelivery(r.Context(), core.SourceGitHub, deliveryID, event)
	if err != nil {
		h.logger.Error("failed to record GitHub delivery", "delivery_id", deliveryID, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to record delivery"})
		return
	}
	if !firstSeen {
		writeJSON(w, http.StatusOK, map[string]string{"status": "already_processed"})
		return
	}

	if event == "pull_request_review" {
		h.dispatchIngest(w, body)
		return
	}

	h.logger.Debug("ignoring unhandled GitHub event type", "type", event)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *WebhookHandler) dispatchIngest(w http.ResponseWriter, body []byte) {
	parsed, err := gh.ParseWebHook("pull_request_review", body)
	if err != nil {
		h.logger.Warn("could not parse pull_request_review payload", "error", err)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	reviewEvent, err := core.ReviewEventFromGitHub(parsed.(*gh.PullRequestReviewEvent))
	if err != nil {
		h.logger.Warn("ignoring malformed pull_request_review payload", "reason", err.Error())
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	if reviewEvent.Action != "submitted" {
		h.logger.Debug("ignoring pull_request_review action", "action", reviewEvent.Action)
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		return
	}

	task := core.Task{
		Kind: "review_ingest",
		Repo: reviewEvent.Repo,
		Run: func(ctx context.Context) error {
			return h.ingest.Run(ctx, reviewEvent)
		},
	}
	if err := h.dispatcher.Dispatch(context.Background(), task); err != nil {
		h.logger.Error("failed to dispatch ingest task", "repo", reviewEvent.Repo, "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to queue task"})
		return
	}

	h.logger.Info("ingest task dispatched", "repo", reviewEvent.Repo, "review", reviewEvent.ReviewID)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
