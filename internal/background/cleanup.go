package background

import (
	"context"
	"log/slog"
	"time"

	"github.com/ridelink/identity/internal/ratelimit"
)

// CleanupManager periodically sweeps expired rate limit entries. The
// limiter expires entries lazily on access, so the sweep is purely a
// memory bound, not a correctness mechanism.
type CleanupManager struct {
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(limiter *ratelimit.Limiter, logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		limiter:  limiter,
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the periodic cleanup task
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	cm.runCleanup()

	for {
		select {
		case <-ticker.C:
			cm.runCleanup()
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

// Stop signals the cleanup loop to exit
func (cm *CleanupManager) Stop() {
	close(cm.stopCh)
}

func (cm *CleanupManager) runCleanup() {
	removed := cm.limiter.Cleanup()
	if removed > 0 {
		cm.logger.Info("expired rate limit entries removed", slog.Int("count", removed))
	}
}
