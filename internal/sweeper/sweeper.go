// Package sweeper runs the scheduled expiry pass. Reads already treat
// expired sessions as gone; the sweep just reclaims the rows behind them.
package sweeper

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/studyhive/backend/internal/sessions"
)

// purgeAfter is how long deactivated rows linger before deletion, so recent
// results stay queryable for a while after expiry.
const purgeAfter = 7 * 24 * time.Hour

// Sweeper periodically deactivates expired sessions and purges old rows.
type Sweeper struct {
	repo   *sessions.Repository
	clock  clockwork.Clock
	logger *zap.Logger
	cron   *cron.Cron
	spec   string
}

// New creates a sweeper with a cron spec like "@every 1m".
func New(repo *sessions.Repository, clock clockwork.Clock, logger *zap.Logger, spec string) *Sweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{repo: repo, clock: clock, logger: logger, cron: cron.New(), spec: spec}
}

// Start schedules the sweep and begins running it.
func (s *Sweeper) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.sweep); err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info("expiry sweeper started", zap.String("spec", s.spec))
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	s.Sweep(ctx)
}

// Sweep runs one expiry pass. Exported so operators can trigger it directly.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.clock.Now()
	deactivated, err := s.repo.DeactivateExpired(ctx, now)
	if err != nil {
		s.logger.Error("deactivate expired", zap.Error(err))
		return
	}
	purged, err := s.repo.PurgeInactiveBefore(ctx, now.Add(-purgeAfter))
	if err != nil {
		s.logger.Error("purge inactive", zap.Error(err))
		return
	}
	if deactivated > 0 || purged > 0 {
		s.logger.Info("expiry sweep",
			zap.Int64("deactivated", deactivated), zap.Int64("purged", purged))
	}
}
