package db

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"

	"go.uber.org/zap"

	"gitnotify/models"
)

// hashURL is the content hash used to deduplicate repositories by URL.
func hashURL(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ListRepositories returns every tracked repository.
func (db *DB) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	var repos []models.Repository
	query := `SELECT id, url, url_hash FROM repositories`

	if err := db.conn.SelectContext(ctx, &repos, query); err != nil {
		return nil, fmt.Errorf("%w: failed to list repositories: %v", ErrQueryFailed, err)
	}
	return repos, nil
}

// GetRepositoryByID retrieves a single repository.
func (db *DB) GetRepositoryByID(ctx context.Context, repoID int64) (*models.Repository, error) {
	var repo models.Repository
	query := `SELECT id, url, url_hash FROM repositories WHERE id = $1`

	if err := db.conn.GetContext(ctx, &repo, query, repoID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: repository %d", ErrRepositoryNotFound, repoID)
		}
		return nil, fmt.Errorf("%w: failed to get repository %d: %v", ErrQueryFailed, repoID, err)
	}
	return &repo, nil
}

// AddSubscription subscribes the given subscriber to repoURL. The
// repository is deduplicated by URL hash: if the URL is already
// tracked, the existing row is returned and only the subscription is
// added. A brand-new subscription starts with every notification
// toggle off.
func (db *DB) AddSubscription(ctx context.Context, subscriber models.Subscriber, repoURL string) (*models.Repository, error) {
	if repoURL == "" {
		return nil, fmt.Errorf("%w: repository URL cannot be empty", ErrInvalidInput)
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	subscriberQuery := `
		INSERT INTO subscribers (id, username)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, subscriberQuery, subscriber.ID, subscriber.Username); err != nil {
		return nil, fmt.Errorf("%w: failed to ensure subscriber %d: %v", ErrQueryFailed, subscriber.ID, err)
	}

	var repo models.Repository
	repoQuery := `
		INSERT INTO repositories (url, url_hash)
		VALUES ($1, $2)
		ON CONFLICT (url_hash) DO UPDATE SET url = repositories.url
		RETURNING id, url, url_hash
	`
	if err := tx.GetContext(ctx, &repo, repoQuery, repoURL, hashURL(repoURL)); err != nil {
		return nil, fmt.Errorf("%w: failed to upsert repository: %v", ErrQueryFailed, err)
	}

	subscriptionQuery := `
		INSERT INTO subscriptions (subscriber_id, repository_id)
		VALUES ($1, $2)
		ON CONFLICT (subscriber_id, repository_id) DO NOTHING
	`
	if _, err := tx.ExecContext(ctx, subscriptionQuery, subscriber.ID, repo.ID); err != nil {
		return nil, fmt.Errorf("%w: failed to add subscription: %v", ErrQueryFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Subscription added",
		zap.Int64("subscriber_id", subscriber.ID),
		zap.Int64("repository_id", repo.ID))
	return &repo, nil
}

// RemoveSubscription removes one subscriber's subscription to one repository.
func (db *DB) RemoveSubscription(ctx context.Context, subscriberID, repoID int64) error {
	query := `DELETE FROM subscriptions WHERE subscriber_id = $1 AND repository_id = $2`

	if _, err := db.conn.ExecContext(ctx, query, subscriberID, repoID); err != nil {
		return fmt.Errorf("%w: failed to remove subscription: %v", ErrQueryFailed, err)
	}
	return nil
}

// ListSubscriptions returns the repositories a subscriber is subscribed to.
func (db *DB) ListSubscriptions(ctx context.Context, subscriberID int64) ([]models.Repository, error) {
	var repos []models.Repository
	query := `
		SELECT r.id, r.url, r.url_hash
		FROM repositories r
		JOIN subscriptions s ON r.id = s.repository_id
		WHERE s.subscriber_id = $1
	`

	if err := db.conn.SelectContext(ctx, &repos, query, subscriberID); err != nil {
		return nil, fmt.Errorf("%w: failed to list subscriptions for %d: %v", ErrQueryFailed, subscriberID, err)
	}
	return repos, nil
}

// RemoveRepository deletes a repository together with its tracked refs
// and all subscriptions referencing it.
func (db *DB) RemoveRepository(ctx context.Context, repoID int64) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM repository_refs WHERE repository_id = $1`,
		`DELETE FROM subscriptions WHERE repository_id = $1`,
		`DELETE FROM repositories WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, repoID); err != nil {
			return fmt.Errorf("%w: failed to remove repository %d: %v", ErrQueryFailed, repoID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Repository removed", zap.Int64("repository_id", repoID))
	return nil
}

// RemoveOrphanRepositories deletes repositories with no remaining
// subscriptions, along with their tracked refs, and returns how many
// repositories were removed.
func (db *DB) RemoveOrphanRepositories(ctx context.Context) (int64, error) {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	refsQuery := `
		DELETE FROM repository_refs
		WHERE repository_id NOT IN (SELECT DISTINCT repository_id FROM subscriptions)
	`
	if _, err := tx.ExecContext(ctx, refsQuery); err != nil {
		return 0, fmt.Errorf("%w: failed to remove orphan refs: %v", ErrQueryFailed, err)
	}

	reposQuery := `
		DELETE FROM repositories
		WHERE id NOT IN (SELECT DISTINCT repository_id FROM subscriptions)
	`
	result, err := tx.ExecContext(ctx, reposQuery)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to remove orphan repositories: %v", ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	return affected, nil
}
