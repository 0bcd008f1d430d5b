package service

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"gitnotify/config"
	"gitnotify/db"
	"gitnotify/gitremote"
	"gitnotify/logger"
	"gitnotify/models"
	"gitnotify/notify"
)

// Store abstracts the persistence operations needed by the service
// (for testability)
type Store interface {
	ListRepositories(ctx context.Context) ([]models.Repository, error)
	GetRefs(ctx context.Context, repoID int64) (models.RefSnapshot, error)
	UpsertRef(ctx context.Context, repoID int64, refName, hash string) error
	DeleteRef(ctx context.Context, repoID int64, refName string) error
	SubscribersWithPreferences(ctx context.Context, repoID int64) ([]models.RepoSubscriber, error)
	RemoveRepository(ctx context.Context, repoID int64) error
	RemoveSubscriber(ctx context.Context, subscriberID int64) error
	RemoveOrphanRepositories(ctx context.Context) (int64, error)
	RemoveOrphanSubscribers(ctx context.Context) (int64, error)
}

// RefSource abstracts the remote reference listing needed by the service
// (for testability)
type RefSource interface {
	ListRefs(ctx context.Context, url string) (models.RefSnapshot, error)
}

// Service errors
var (
	ErrServiceInit     = fmt.Errorf("service initialization error")
	ErrServiceShutdown = fmt.Errorf("service shutdown error")
)

// Service drives the reconciliation loop: a frequent check pass over
// all tracked repositories and an infrequent orphan cleanup pass, never
// running concurrently with each other.
type Service struct {
	cfg      *config.Config
	database *db.DB
	store    Store
	source   RefSource
	notifier notify.Notifier
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewService creates a new service instance
func NewService() (*Service, error) {
	cfg := config.NewConfig()
	if err := cfg.Load(); err != nil {
		return nil, fmt.Errorf("%w: failed to load configuration: %v", ErrServiceInit, err)
	}

	if err := logger.Initialize(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize logger: %v", ErrServiceInit, err)
	}

	database, err := db.New()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize database: %v", ErrServiceInit, err)
	}

	notifier, err := notify.NewTelegramClient(cfg.TelegramToken, cfg.TelegramAPIURL)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize notifier: %v", ErrServiceInit, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	logger.Info("Service initialized successfully",
		zap.Duration("check_interval", cfg.CheckInterval),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
		zap.Int("fetch_workers", cfg.FetchWorkers))

	return &Service{
		cfg:      cfg,
		database: database,
		store:    database,
		source:   gitremote.NewSource(),
		notifier: notifier,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start runs the catch-up passes, launches the scheduler and blocks
// until a shutdown signal arrives.
func (s *Service) Start() error {
	// Catch-up passes before entering the timer loop.
	logger.Info("Running initial cleanup pass")
	if err := s.sweepOrphans(s.ctx); err != nil {
		logger.Error("Initial cleanup pass failed", zap.Error(err))
	}

	logger.Info("Running initial check pass")
	if err := s.checkAll(s.ctx); err != nil {
		logger.Error("Initial check pass failed", zap.Error(err))
	}

	go s.run(s.ctx)

	s.waitForShutdown()
	return nil
}

// run is the scheduler: two racing timers, one pass at a time. Each
// pass runs to completion before the next wait, so a check pass and a
// cleanup pass never overlap.
func (s *Service) run(ctx context.Context) {
	checkTicker := time.NewTicker(s.cfg.CheckInterval)
	defer checkTicker.Stop()
	cleanupTicker := time.NewTicker(s.cfg.CleanupInterval)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-checkTicker.C:
			logger.Info("Running repository check pass")
			if err := s.checkAll(ctx); err != nil {
				logger.Error("Check pass failed", zap.Error(err))
			}
		case <-cleanupTicker.C:
			logger.Info("Running cleanup pass")
			if err := s.sweepOrphans(ctx); err != nil {
				logger.Error("Cleanup pass failed", zap.Error(err))
			}
		}
	}
}

// waitForShutdown waits for the shutdown signal
func (s *Service) waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutdown signal received, initiating graceful shutdown")
	s.cancel()
}

// Close performs cleanup operations
func (s *Service) Close() error {
	logger.Info("Closing service")
	s.cancel()
	if err := s.database.Close(); err != nil {
		return fmt.Errorf("%w: failed to close database: %v", ErrServiceShutdown, err)
	}
	return nil
}
