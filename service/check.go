package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"gitnotify/events"
	"gitnotify/gitremote"
	"gitnotify/logger"
	"gitnotify/models"
	"gitnotify/notify"
)

// checkAll runs one check pass over every tracked repository.
// Repositories are processed by a bounded worker pool so one slow
// remote delays only its own worker, while per-repository ref updates
// stay serialized by the store's row upsert.
func (s *Service) checkAll(ctx context.Context) error {
	repos, err := s.store.ListRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to list repositories for check pass: %w", err)
	}

	sem := make(chan struct{}, s.cfg.FetchWorkers)
	var wg sync.WaitGroup

	for _, repo := range repos {
		wg.Add(1)
		go func(repo models.Repository) {
			defer wg.Done()
			sem <- struct{}{}        // Acquire semaphore
			defer func() { <-sem }() // Release semaphore

			if err := s.processRepository(ctx, repo); err != nil {
				logger.Error("Failed to process repository",
					zap.String("url", repo.URL),
					zap.Error(err))
			}
		}(repo)
	}

	wg.Wait()
	return nil
}

// processRepository reconciles one repository: fetch the remote refs,
// diff against the persisted baseline, persist the new state, then fan
// out notifications. A permanently inaccessible repository is torn down
// instead; a transient fetch failure leaves state untouched for the
// next tick.
func (s *Service) processRepository(ctx context.Context, repo models.Repository) error {
	logger.Debug("Checking repository", zap.String("url", repo.URL))

	remote, err := s.source.ListRefs(ctx, repo.URL)
	if err != nil {
		if gitremote.IsPermanent(err) {
			logger.Warn("Repository is inaccessible (private or deleted), removing",
				zap.String("url", repo.URL))
			return s.handleInaccessible(ctx, repo)
		}
		logger.Error("Failed to list remote refs, will retry next tick",
			zap.String("url", repo.URL),
			zap.Error(err))
		return nil
	}

	persisted, err := s.store.GetRefs(ctx, repo.ID)
	if err != nil {
		return fmt.Errorf("failed to load persisted refs: %w", err)
	}

	evs, deleted := events.Diff(remote, persisted)

	for _, ev := range evs {
		refName, hash, ok := events.RefUpdate(ev)
		if !ok {
			continue
		}
		if err := s.store.UpsertRef(ctx, repo.ID, refName, hash); err != nil {
			return fmt.Errorf("failed to persist ref %s: %w", refName, err)
		}
	}

	// Disappeared refs only clear tracking rows; they are never
	// dispatched to subscribers.
	for refName := range deleted {
		if err := s.store.DeleteRef(ctx, repo.ID, refName); err != nil {
			return fmt.Errorf("failed to delete ref %s: %w", refName, err)
		}
	}

	for _, ev := range evs {
		logger.Info("Update detected",
			zap.String("url", repo.URL),
			zap.String("event", fmt.Sprintf("%T", ev)))
		s.dispatch(ctx, repo, ev)
	}

	return nil
}

// dispatch fans one event out to the repository's subscribers whose
// global flag is enabled and whose preference record opts into the
// event's kind.
func (s *Service) dispatch(ctx context.Context, repo models.Repository, ev events.Event) {
	text, ok := events.Render(repo.URL, ev)
	if !ok {
		return
	}

	subscribers, err := s.store.SubscribersWithPreferences(ctx, repo.ID)
	if err != nil {
		logger.Error("Failed to resolve subscribers",
			zap.Int64("repository_id", repo.ID),
			zap.Error(err))
		return
	}

	for _, sub := range subscribers {
		if !events.Wants(sub.Preference, ev) {
			continue
		}
		s.deliver(ctx, sub.ChatID, text)
	}
}

// deliver attempts one message delivery. A permanently blocked
// recipient is removed entirely; any other failure is logged and the
// notification is dropped without retry.
func (s *Service) deliver(ctx context.Context, chatID int64, text string) {
	err := s.notifier.Send(ctx, chatID, text)
	if err == nil {
		return
	}

	if errors.Is(err, notify.ErrRecipientBlocked) {
		logger.Warn("Subscriber has blocked the bot, removing",
			zap.Int64("chat_id", chatID))
		if err := s.store.RemoveSubscriber(ctx, chatID); err != nil {
			logger.Error("Failed to remove blocked subscriber",
				zap.Int64("chat_id", chatID),
				zap.Error(err))
		}
		return
	}

	logger.Error("Failed to deliver notification",
		zap.Int64("chat_id", chatID),
		zap.Error(err))
}

// handleInaccessible is the terminal transition for a repository whose
// remote failed with auth or not-found: every current subscriber gets a
// single best-effort farewell message, then the repository and all its
// tracking state are deleted. A later re-subscription to the same URL
// starts from empty ref state.
func (s *Service) handleInaccessible(ctx context.Context, repo models.Repository) error {
	text := fmt.Sprintf(
		"⚠️ Repository [%s](%s) is no longer accessible \\(it may have been deleted or made private\\)\\. You have been unsubscribed\\.",
		events.Escape(repo.URL),
		events.Escape(repo.URL),
	)

	subscribers, err := s.store.SubscribersWithPreferences(ctx, repo.ID)
	if err != nil {
		return fmt.Errorf("failed to resolve subscribers for inaccessible repository: %w", err)
	}
	for _, sub := range subscribers {
		s.deliver(ctx, sub.ChatID, text)
	}

	if err := s.store.RemoveRepository(ctx, repo.ID); err != nil {
		return fmt.Errorf("failed to remove inaccessible repository: %w", err)
	}
	return nil
}

// sweepOrphans runs one cleanup pass: repositories with no remaining
// subscriptions first, then subscribers with no remaining
// subscriptions. The order matters, since the repository pass can
// orphan a subscriber within the same sweep.
func (s *Service) sweepOrphans(ctx context.Context) error {
	reposRemoved, err := s.store.RemoveOrphanRepositories(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove orphan repositories: %w", err)
	}
	if reposRemoved > 0 {
		logger.Info("Removed orphan repositories", zap.Int64("count", reposRemoved))
	}

	subscribersRemoved, err := s.store.RemoveOrphanSubscribers(ctx)
	if err != nil {
		return fmt.Errorf("failed to remove orphan subscribers: %w", err)
	}
	if subscribersRemoved > 0 {
		logger.Info("Removed orphan subscribers", zap.Int64("count", subscribersRemoved))
	}

	return nil
}
