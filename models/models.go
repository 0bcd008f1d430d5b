// Package models defines the core data structures used throughout the application.
package models

// Repository is a tracked git remote. Repositories are deduplicated by
// URLHash, a SHA-256 of the canonical URL, so subscribing twice to the
// same URL resolves to the same row.
type Repository struct {
	ID      int64  `db:"id" json:"id"`
	URL     string `db:"url" json:"url"`
	URLHash string `db:"url_hash" json:"url_hash"`
}

// Subscriber is a registered notification recipient. ID doubles as the
// chat identifier used by the delivery channel.
type Subscriber struct {
	ID                   int64  `db:"id" json:"id"`
	Username             string `db:"username" json:"username"`
	NotificationsEnabled bool   `db:"notifications_enabled" json:"notifications_enabled"`
}

// Preference holds the per-(subscriber, repository) notification toggles,
// one per notifiable event kind. New subscriptions start with every
// toggle off.
type Preference struct {
	NotifyOnNewBranch    bool `db:"notify_on_new_branch" json:"notify_on_new_branch"`
	NotifyOnNewTag       bool `db:"notify_on_new_tag" json:"notify_on_new_tag"`
	NotifyOnBranchUpdate bool `db:"notify_on_branch_update" json:"notify_on_branch_update"`
	NotifyOnNewPR        bool `db:"notify_on_new_pr" json:"notify_on_new_pr"`
	NotifyOnPRUpdate     bool `db:"notify_on_pr_update" json:"notify_on_pr_update"`
}

// RepoSubscriber is one subscriber of a repository together with their
// preference record, as returned by the subscribers-of-repository query.
type RepoSubscriber struct {
	ChatID int64 `db:"id" json:"chat_id"`
	Preference
}

// RefSnapshot maps a fully qualified reference name to the commit hash
// it pointed at when observed. Produced fresh on every poll and by the
// persisted-state query; never stored as a whole.
type RefSnapshot map[string]string
