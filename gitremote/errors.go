package gitremote

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Fetch failure classification. Auth and NotFound are permanent for the
// repository; everything else is retried on the next check tick.
var (
	ErrNetwork  = errors.New("remote transport failure")
	ErrAuth     = errors.New("remote authentication failed")
	ErrNotFound = errors.New("remote repository not found")
	ErrInternal = errors.New("internal fetch error")
)

// classify maps a go-git transport error onto the package sentinels.
func classify(err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired),
		errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case errors.Is(err, transport.ErrRepositoryNotFound):
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", ErrInternal, err)
	default:
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
}

// IsPermanent reports whether a fetch failure means the repository is
// gone for good (deleted or made private) rather than temporarily
// unreachable.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrAuth) || errors.Is(err, ErrNotFound)
}
