// Package events defines the closed set of repository change events and
// the diff engine that derives them from two ref snapshots.
package events

import (
	"fmt"
	"strings"

	"gitnotify/models"
)

// Tracked reference namespaces. Anything outside these never reaches
// the diff engine.
const (
	BranchPrefix = "refs/heads/"
	TagPrefix    = "refs/tags/"
	PullPrefix   = "refs/pull/"
	PullSuffix   = "/head"
)

// Event is one observed change on a tracked repository. The set of
// implementations is closed: adding a kind requires updating Render,
// Wants and RefUpdate, which all switch exhaustively over it.
type Event interface {
	isEvent()
}

// NewBranch is a branch head seen for the first time.
type NewBranch struct {
	Name string
	SHA  string
}

// NewTag is a tag seen for the first time. Tags are treated as
// immutable once recorded; a tag whose hash later changes produces no
// further event.
type NewTag struct {
	Name string
	SHA  string
}

// BranchUpdated is a known branch head pointing at a new commit.
type BranchUpdated struct {
	Name   string
	OldSHA string
	NewSHA string
}

// NewPullRequest is a pull request head seen for the first time.
type NewPullRequest struct {
	ID  int64
	SHA string
}

// PullRequestUpdated is a known pull request head pointing at a new commit.
type PullRequestUpdated struct {
	ID  int64
	SHA string
}

// NoChanges is the sentinel for "nothing happened". Diff never emits
// it; it exists so consumers handling an Event of unknown provenance
// have an explicit no-op case.
type NoChanges struct{}

func (NewBranch) isEvent()          {}
func (NewTag) isEvent()             {}
func (BranchUpdated) isEvent()      {}
func (NewPullRequest) isEvent()     {}
func (PullRequestUpdated) isEvent() {}
func (NoChanges) isEvent()          {}

// IsTracked reports whether ref belongs to one of the three tracked
// namespaces: branch heads, tags, and pull request heads.
func IsTracked(ref string) bool {
	return strings.HasPrefix(ref, BranchPrefix) ||
		strings.HasPrefix(ref, TagPrefix) ||
		isPullHead(ref)
}

// RefUpdate returns the reference row an event advances: the fully
// qualified ref name and the hash to persist for it. ok is false for
// NoChanges, which touches no row.
func RefUpdate(e Event) (name, sha string, ok bool) {
	switch ev := e.(type) {
	case NewBranch:
		return ev.Name, ev.SHA, true
	case NewTag:
		return ev.Name, ev.SHA, true
	case BranchUpdated:
		return ev.Name, ev.NewSHA, true
	case NewPullRequest:
		return pullRefName(ev.ID), ev.SHA, true
	case PullRequestUpdated:
		return pullRefName(ev.ID), ev.SHA, true
	case NoChanges:
		return "", "", false
	}
	return "", "", false
}

// Wants reports whether a subscriber with the given preference record
// opted into this event's kind. NoChanges is never wanted.
func Wants(p models.Preference, e Event) bool {
	switch e.(type) {
	case NewBranch:
		return p.NotifyOnNewBranch
	case NewTag:
		return p.NotifyOnNewTag
	case BranchUpdated:
		return p.NotifyOnBranchUpdate
	case NewPullRequest:
		return p.NotifyOnNewPR
	case PullRequestUpdated:
		return p.NotifyOnPRUpdate
	case NoChanges:
		return false
	}
	return false
}

func pullRefName(id int64) string {
	return fmt.Sprintf("refs/pull/%d/head", id)
}

func isPullHead(ref string) bool {
	return strings.HasPrefix(ref, PullPrefix) && strings.HasSuffix(ref, PullSuffix)
}
