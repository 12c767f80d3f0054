package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/custodia-labs/aide-core/internal/core/domain"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/ports/driving"
)

const sweepLockName = "sweep"

// Sweeper runs the periodic maintenance pass: purge expired auth states and
// proactively refresh integrations whose access tokens are about to expire,
// so the first tool call after a quiet period doesn't pay the refresh latency.
//
// For multi-instance deployments, configure a DistributedLock to prevent
// duplicate sweeps across instances.
type Sweeper struct {
	integrations driven.IntegrationStore
	states       driven.AuthStateStore
	tokenSvc     driving.TokenService
	integSvc     driving.IntegrationService
	lock         driven.DistributedLock
	logger       *slog.Logger

	// Internal state
	mu      sync.RWMutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	interval     time.Duration
	refreshAhead time.Duration
	lockTTL      time.Duration
}

// SweeperConfig holds configuration for the sweeper.
type SweeperConfig struct {
	IntegrationStore   driven.IntegrationStore
	AuthStateStore     driven.AuthStateStore
	TokenService       driving.TokenService
	IntegrationService driving.IntegrationService
	Lock               driven.DistributedLock // Optional: multi-instance coordination
	Logger             *slog.Logger
	Interval           time.Duration // How often to sweep (default: 5m)
	RefreshAhead       time.Duration // Refresh tokens expiring within this window (default: 10m)
	LockTTL            time.Duration // TTL for the distributed lock (default: 2x interval)
}

// NewSweeper creates a new sweeper.
func NewSweeper(cfg SweeperConfig) *Sweeper {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	interval := cfg.Interval
	if interval == 0 {
		interval = 5 * time.Minute
	}

	refreshAhead := cfg.RefreshAhead
	if refreshAhead == 0 {
		refreshAhead = 10 * time.Minute
	}

	lockTTL := cfg.LockTTL
	if lockTTL == 0 {
		lockTTL = 2 * interval
	}

	return &Sweeper{
		integrations: cfg.IntegrationStore,
		states:       cfg.AuthStateStore,
		tokenSvc:     cfg.TokenService,
		integSvc:     cfg.IntegrationService,
		lock:         cfg.Lock,
		logger:       logger,
		interval:     interval,
		refreshAhead: refreshAhead,
		lockTTL:      lockTTL,
	}
}

// Start begins the sweep loop.
// It runs until Stop is called or context is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	s.logger.Info("sweeper starting", "interval", s.interval, "refresh_ahead", s.refreshAhead)

	go s.run(ctx)

	return nil
}

// Stop gracefully stops the sweeper.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.mu.Unlock()

	<-s.doneCh

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	s.logger.Info("sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("sweeper context cancelled")
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one maintenance pass. Exported so operators can trigger it
// out of cycle.
func (s *Sweeper) Sweep(ctx context.Context) {
	if s.lock != nil {
		acquired, err := s.lock.Acquire(ctx, sweepLockName, s.lockTTL)
		if err != nil {
			s.logger.Warn("failed to acquire sweep lock", "error", err)
			return
		}
		if !acquired {
			s.logger.Debug("sweep lock held by another instance, skipping cycle")
			return
		}
		defer func() {
			if err := s.lock.Release(ctx, sweepLockName); err != nil {
				s.logger.Warn("failed to release sweep lock", "error", err)
			}
		}()
	}

	if err := s.states.Cleanup(ctx); err != nil {
		s.logger.Error("failed to clean up expired auth states", "error", err)
	}

	expiring, err := s.integrations.ListExpiring(ctx, s.refreshAhead)
	if err != nil {
		s.logger.Error("failed to list expiring integrations", "error", err)
		return
	}

	for _, integration := range expiring {
		// Forced refresh: the listing window is wider than the token
		// service's on-demand safety margin.
		if _, err := s.tokenSvc.Refresh(ctx, integration.ID); err != nil {
			if errors.Is(err, domain.ErrInvalidGrant) ||
				errors.Is(err, domain.ErrNotRefreshable) ||
				errors.Is(err, domain.ErrRevoked) {
				// Already transitioned; the owner must reconnect.
				s.logger.Info("integration expired during sweep",
					"integration_id", integration.ID,
					"provider", integration.Provider,
				)
				continue
			}
			s.logger.Warn("failed to refresh expiring integration",
				"integration_id", integration.ID,
				"provider", integration.Provider,
				"error", err,
			)
			continue
		}
		if err := s.integSvc.Sync(ctx, integration.ID); err != nil {
			s.logger.Warn("failed to sync refreshed integration",
				"integration_id", integration.ID,
				"provider", integration.Provider,
				"error", err,
			)
		}
	}
}
