// Package storage persists the delivery ledger, the PR mapping table, and
// the processed-review ledger. All access is through narrow point lookups
// and single-row inserts; uniqueness invariants live in the schema, not in
// process-level locks.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/dmartinezh97/reviewrelay/internal/core"
)

// ErrAlreadyExists signals that an insert lost to an existing row. Callers
// treat it as "someone else already completed this", never as a failure.
var ErrAlreadyExists = errors.New("row already exists")

// Store defines the persistence operations the bridge core performs.
type Store interface {
	// RecordDelivery inserts a ledger row for (source, deliveryID) and
	// reports whether this delivery is the first of its kind. A duplicate,
	// including one lost to a concurrent insert, returns firstSeen=false
	// with no error.
	RecordDelivery(ctx context.Context, source core.DeliverySource, deliveryID, event string) (firstSeen bool, err error)

	// GetPRMapping looks up a mapping by its Gitea identity. A missing
	// mapping returns (nil, nil); that is a normal state, not an error.
	GetPRMapping(ctx context.Context, giteaRepo string, giteaPRNumber int64) (*core.PRMapping, error)

	// GetPRMappingByTarget looks up a mapping by its GitHub identity.
	GetPRMappingByTarget(ctx context.Context, githubRepo string, githubPRNumber int) (*core.PRMapping, error)

	// CreatePRMapping inserts a new mapping row. Returns ErrAlreadyExists
	// if a mapping for the Gitea PR is already present.
	CreatePRMapping(ctx context.Context, m *core.PRMapping) error

	// IsReviewProcessed reports whether a GitHub review was already
	// published to Gitea.
	IsReviewProcessed(ctx context.Context, githubRepo string, githubPRNumber int, reviewID int64) (bool, error)

	// MarkReviewProcessed records a published review. Returns
	// ErrAlreadyExists on a duplicate.
	MarkReviewProcessed(ctx context.Context, githubRepo string, githubPRNumber int, reviewID int64) error
}

type sqlStore struct {
	db *sqlx.DB
}

// New creates a Store over an open connection. Queries use "?" placeholders
// and are rebound for the connection's driver, so the same store serves both
// the postgres and sqlite3 backends.
func New(db *sqlx.DB) Store {
	return &sqlStore{db: db}
}

func (s *sqlStore) RecordDelivery(ctx context.Context, source core.DeliverySource, deliveryID, event string) (bool, error) {
	query := s.db.Rebind(`INSERT INTO webhook_deliveries (source, delivery_id, event, created_at) VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, source, deliveryID, event, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("record delivery: %w", err)
	}
	return true, nil
}

func (s *sqlStore) GetPRMapping(ctx context.Context, giteaRepo string, giteaPRNumber int64) (*core.PRMapping, error) {
	query := s.db.Rebind(`
		SELECT id, gitea_repo, gitea_pr_number, github_repo, github_pr_number, created_at
		FROM pr_mappings
		WHERE gitea_repo = ? AND gitea_pr_number = ?`)

	var m core.PRMapping
	err := s.db.GetContext(ctx, &m, query, giteaRepo, giteaPRNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pr mapping: %w", err)
	}
	return &m, nil
}

func (s *sqlStore) GetPRMappingByTarget(ctx context.Context, githubRepo string, githubPRNumber int) (*core.PRMapping, error) {
	query := s.db.Rebind(`
		SELECT id, gitea_repo, gitea_pr_number, github_repo, github_pr_number, created_at
		FROM pr_mappings
		WHERE github_repo = ? AND github_pr_number = ?`)

	var m core.PRMapping
	err := s.db.GetContext(ctx, &m, query, githubRepo, githubPRNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pr mapping by target: %w", err)
	}
	return &m, nil
}

func (s *sqlStore) CreatePRMapping(ctx context.Context, m *core.PRMapping) error {
	query := s.db.Rebind(`
		INSERT INTO pr_mappings (gitea_repo, gitea_pr_number, github_repo, github_pr_number, created_at)
		VALUES (?, ?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, m.GiteaRepo, m.GiteaPRNumber, m.GitHubRepo, m.GitHubPRNumber, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("create pr mapping: %w", err)
	}
	return nil
}

func (s *sqlStore) IsReviewProcessed(ctx context.Context, githubRepo string, githubPRNumber int, reviewID int64) (bool, error) {
	query := s.db.Rebind(`
		SELECT COUNT(1) FROM processed_reviews
		WHERE github_repo = ? AND github_pr_number = ? AND github_review_id = ?`)

	var count int
	if err := s.db.GetContext(ctx, &count, query, githubRepo, githubPRNumber, reviewID); err != nil {
		return false, fmt.Errorf("check processed review: %w", err)
	}
	return count > 0, nil
}

func (s *sqlStore) MarkReviewProcessed(ctx context.Context, githubRepo string, githubPRNumber int, reviewID int64) error {
	query := s.db.Rebind(`
		INSERT INTO processed_reviews (github_repo, github_pr_number, github_review_id, created_at)
		VALUES (?, ?, ?, ?)`)
	_, err := s.db.ExecContext(ctx, query, githubRepo, githubPRNumber, reviewID, time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("mark review processed: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}
