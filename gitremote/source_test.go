package gitremote

import (
	"errors"
	"fmt"
	"testing"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/stretchr/testify/assert"
)

const (
	hashMain = "0123456789abcdef0123456789abcdef01234567"
	hashTag  = "89abcdef0123456789abcdef0123456789abcdef"
)

func TestFilterRefs(t *testing.T) {
	refs := []*plumbing.Reference{
		plumbing.NewReferenceFromStrings("refs/heads/main", hashMain),
		plumbing.NewReferenceFromStrings("refs/tags/v1.0", hashTag),
		plumbing.NewReferenceFromStrings("refs/pull/42/head", hashMain),
		plumbing.NewReferenceFromStrings("refs/pull/42/merge", hashMain),
		plumbing.NewReferenceFromStrings("refs/notes/commits", hashMain),
		plumbing.NewReferenceFromStrings("refs/remotes/origin/main", hashMain),
		plumbing.NewSymbolicReference("HEAD", "refs/heads/main"),
	}

	snapshot := filterRefs(refs)

	assert.Len(t, snapshot, 3)
	assert.Equal(t, hashMain, snapshot["refs/heads/main"])
	assert.Equal(t, hashTag, snapshot["refs/tags/v1.0"])
	assert.Equal(t, hashMain, snapshot["refs/pull/42/head"])
	assert.NotContains(t, snapshot, "refs/pull/42/merge")
	assert.NotContains(t, snapshot, "HEAD")
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected error
	}{
		{"authentication required", transport.ErrAuthenticationRequired, ErrAuth},
		{"authorization failed", transport.ErrAuthorizationFailed, ErrAuth},
		{"repository not found", transport.ErrRepositoryNotFound, ErrNotFound},
		{"wrapped not found", fmt.Errorf("list: %w", transport.ErrRepositoryNotFound), ErrNotFound},
		{"generic transport error", errors.New("connection refused"), ErrNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err), tt.expected)
		})
	}
}

func TestIsPermanent(t *testing.T) {
	assert.True(t, IsPermanent(classify(transport.ErrAuthenticationRequired)))
	assert.True(t, IsPermanent(classify(transport.ErrRepositoryNotFound)))
	assert.False(t, IsPermanent(classify(errors.New("connection refused"))))
	assert.False(t, IsPermanent(fmt.Errorf("%w: boom", ErrInternal)))
	assert.False(t, IsPermanent(nil))
}
