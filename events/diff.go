package events

import (
	"strconv"
	"strings"

	"gitnotify/models"
)

// Diff compares a freshly fetched snapshot against the persisted
// baseline for the same repository. It returns the change events to
// dispatch and the set of reference names that disappeared from the
// remote. It is pure: no I/O, no mutation of either input, and the same
// inputs always produce the same result (event order aside, since map
// iteration order is unspecified).
//
// Deleted references produce no event; they only remove stale rows.
func Diff(remote, persisted models.RefSnapshot) ([]Event, map[string]struct{}) {
	var evs []Event

	for name, newSHA := range remote {
		oldSHA, known := persisted[name]
		var ev Event
		switch {
		case !known:
			ev = newRefEvent(name, newSHA)
		case oldSHA != newSHA:
			ev = updatedRefEvent(name, oldSHA, newSHA)
		}
		if ev != nil {
			evs = append(evs, ev)
		}
	}

	deleted := make(map[string]struct{})
	for name := range persisted {
		if _, ok := remote[name]; !ok {
			deleted[name] = struct{}{}
		}
	}

	return evs, deleted
}

func newRefEvent(name, sha string) Event {
	switch {
	case strings.HasPrefix(name, BranchPrefix):
		return NewBranch{Name: name, SHA: sha}
	case strings.HasPrefix(name, TagPrefix):
		return NewTag{Name: name, SHA: sha}
	case strings.HasPrefix(name, PullPrefix):
		id, ok := pullRequestID(name)
		if !ok {
			return nil
		}
		return NewPullRequest{ID: id, SHA: sha}
	}
	return nil
}

func updatedRefEvent(name, oldSHA, newSHA string) Event {
	switch {
	case strings.HasPrefix(name, BranchPrefix):
		return BranchUpdated{Name: name, OldSHA: oldSHA, NewSHA: newSHA}
	case strings.HasPrefix(name, PullPrefix):
		id, ok := pullRequestID(name)
		if !ok {
			return nil
		}
		return PullRequestUpdated{ID: id, SHA: newSHA}
	}
	// Tags are immutable once recorded: a changed tag hash is not
	// surfaced as an update.
	return nil
}

// pullRequestID extracts the numeric id from "refs/pull/<id>/head".
// References with a non-numeric id segment are silently ignored.
func pullRequestID(name string) (int64, bool) {
	parts := strings.Split(name, "/")
	if len(parts) < 3 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
