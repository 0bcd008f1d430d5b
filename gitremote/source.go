// Package gitremote fetches the current reference list of a git remote
// without cloning it, the ls-remote way.
package gitremote

import (
	"context"
	"fmt"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/storage/memory"
	"go.uber.org/zap"

	"gitnotify/events"
	"gitnotify/logger"
	"gitnotify/models"
)

// Source lists remote references over a detached go-git remote. It
// keeps no local state; every call is an independent network round trip.
type Source struct{}

// NewSource creates a new Source.
func NewSource() *Source {
	return &Source{}
}

// ListRefs returns the remote's current references restricted to the
// tracked namespaces (branch heads, tags, pull request heads). The
// network round trip runs on its own goroutine so a wedged transport
// cannot hold the caller past context cancellation; failures are
// classified into the sentinel errors of this package.
func (s *Source) ListRefs(ctx context.Context, url string) (models.RefSnapshot, error) {
	type listResult struct {
		refs []*plumbing.Reference
		err  error
	}
	resultCh := make(chan listResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resultCh <- listResult{err: fmt.Errorf("%w: %v", ErrInternal, r)}
			}
		}()

		remote := git.NewRemote(memory.NewStorage(), &gitconfig.RemoteConfig{
			Name: "origin",
			URLs: []string{url},
		})
		refs, err := remote.ListContext(ctx, &git.ListOptions{})
		resultCh <- listResult{refs: refs, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrInternal, ctx.Err())
	case res := <-resultCh:
		if res.err != nil {
			logger.Debug("Remote listing failed",
				zap.String("url", url),
				zap.Error(res.err))
			return nil, classify(res.err)
		}
		return filterRefs(res.refs), nil
	}
}

// filterRefs keeps only hash references in the tracked namespaces,
// dropping symbolic references such as HEAD.
func filterRefs(refs []*plumbing.Reference) models.RefSnapshot {
	snapshot := make(models.RefSnapshot)
	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		name := ref.Name().String()
		if !events.IsTracked(name) {
			continue
		}
		snapshot[name] = ref.Hash().String()
	}
	return snapshot
}
