package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"gitnotify/models"
)

// SubscribersWithPreferences returns the subscribers of a repository
// whose global notification flag is enabled, each with their
// per-repository preference record.
func (db *DB) SubscribersWithPreferences(ctx context.Context, repoID int64) ([]models.RepoSubscriber, error) {
	var subscribers []models.RepoSubscriber
	query := `
		SELECT
			u.id,
			s.notify_on_new_branch,
			s.notify_on_new_tag,
			s.notify_on_branch_update,
			s.notify_on_new_pr,
			s.notify_on_pr_update
		FROM subscriptions s
		JOIN subscribers u ON s.subscriber_id = u.id
		WHERE s.repository_id = $1 AND u.notifications_enabled = TRUE
	`

	if err := db.conn.SelectContext(ctx, &subscribers, query, repoID); err != nil {
		return nil, fmt.Errorf("%w: failed to get subscribers for repository %d: %v", ErrQueryFailed, repoID, err)
	}
	return subscribers, nil
}

// RemoveSubscriber deletes a subscriber together with all their
// subscriptions.
func (db *DB) RemoveSubscriber(ctx context.Context, subscriberID int64) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}
	defer tx.Rollback()

	statements := []string{
		`DELETE FROM subscriptions WHERE subscriber_id = $1`,
		`DELETE FROM subscribers WHERE id = $1`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt, subscriberID); err != nil {
			return fmt.Errorf("%w: failed to remove subscriber %d: %v", ErrQueryFailed, subscriberID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ErrTransactionFailed, err)
	}

	safeLogInfo("Subscriber removed", zap.Int64("subscriber_id", subscriberID))
	return nil
}

// RemoveOrphanSubscribers deletes subscribers with no remaining
// subscriptions and returns how many were removed.
func (db *DB) RemoveOrphanSubscribers(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM subscribers
		WHERE id NOT IN (SELECT DISTINCT subscriber_id FROM subscriptions)
	`

	result, err := db.conn.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to remove orphan subscribers: %v", ErrQueryFailed, err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrQueryFailed, err)
	}
	return affected, nil
}

// GetNotificationsEnabled returns a subscriber's global notification flag.
func (db *DB) GetNotificationsEnabled(ctx context.Context, subscriberID int64) (bool, error) {
	var enabled bool
	query := `SELECT notifications_enabled FROM subscribers WHERE id = $1`

	if err := db.conn.GetContext(ctx, &enabled, query, subscriberID); err != nil {
		if err == sql.ErrNoRows {
			return false, fmt.Errorf("%w: subscriber %d", ErrSubscriberNotFound, subscriberID)
		}
		return false, fmt.Errorf("%w: failed to get notification flag for %d: %v", ErrQueryFailed, subscriberID, err)
	}
	return enabled, nil
}

// SetNotificationsEnabled sets a subscriber's global notification flag,
// gating all notifications regardless of per-repository preferences.
func (db *DB) SetNotificationsEnabled(ctx context.Context, subscriberID int64, enabled bool) error {
	query := `UPDATE subscribers SET notifications_enabled = $1 WHERE id = $2`

	if _, err := db.conn.ExecContext(ctx, query, enabled, subscriberID); err != nil {
		return fmt.Errorf("%w: failed to set notification flag for %d: %v", ErrQueryFailed, subscriberID, err)
	}
	return nil
}

// GetPreferences returns one subscriber's preference record for one repository.
func (db *DB) GetPreferences(ctx context.Context, subscriberID, repoID int64) (*models.Preference, error) {
	var pref models.Preference
	query := `
		SELECT
			notify_on_new_branch,
			notify_on_new_tag,
			notify_on_branch_update,
			notify_on_new_pr,
			notify_on_pr_update
		FROM subscriptions
		WHERE subscriber_id = $1 AND repository_id = $2
	`

	if err := db.conn.GetContext(ctx, &pref, query, subscriberID, repoID); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: subscriber %d has no subscription to repository %d", ErrSubscriberNotFound, subscriberID, repoID)
		}
		return nil, fmt.Errorf("%w: failed to get preferences: %v", ErrQueryFailed, err)
	}
	return &pref, nil
}

// SetPreferences replaces one subscriber's preference record for one repository.
func (db *DB) SetPreferences(ctx context.Context, subscriberID, repoID int64, pref models.Preference) error {
	query := `
		UPDATE subscriptions
		SET notify_on_new_branch = $1,
			notify_on_new_tag = $2,
			notify_on_branch_update = $3,
			notify_on_new_pr = $4,
			notify_on_pr_update = $5
		WHERE subscriber_id = $6 AND repository_id = $7
	`

	if _, err := db.conn.ExecContext(ctx, query,
		pref.NotifyOnNewBranch, pref.NotifyOnNewTag, pref.NotifyOnBranchUpdate,
		pref.NotifyOnNewPR, pref.NotifyOnPRUpdate,
		subscriberID, repoID,
	); err != nil {
		return fmt.Errorf("%w: failed to set preferences: %v", ErrQueryFailed, err)
	}
	return nil
}
