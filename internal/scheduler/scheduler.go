// Package scheduler runs the periodic sync and statistics jobs that the
// original deployment drove with timer triggers.
package scheduler

import (
	"context"
	"time"

	"itsec-data/internal/service"

	"go.uber.org/zap"
)

// Scheduler fires the device sync pipelines and statistics generation on
// their configured intervals. Jobs run sequentially on one goroutine; an
// interval of zero disables the job.
type Scheduler struct {
	intuneSync    *service.DeviceSyncService
	defenderSync  *service.DeviceSyncService
	statistics    *service.StatisticsService
	syncInterval  time.Duration
	statsInterval time.Duration
	logger        *zap.Logger
}

func New(intuneSync, defenderSync *service.DeviceSyncService, statistics *service.StatisticsService, syncInterval, statsInterval time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		intuneSync:    intuneSync,
		defenderSync:  defenderSync,
		statistics:    statistics,
		syncInterval:  syncInterval,
		statsInterval: statsInterval,
		logger:        logger,
	}
}

// Start blocks until ctx is cancelled. Callers run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	var syncC, statsC <-chan time.Time

	if s.syncInterval > 0 {
		t := time.NewTicker(s.syncInterval)
		defer t.Stop()
		syncC = t.C
	}
	if s.statsInterval > 0 {
		t := time.NewTicker(s.statsInterval)
		defer t.Stop()
		statsC = t.C
	}

	s.logger.Info("Scheduler started",
		zap.Duration("sync_interval", s.syncInterval),
		zap.Duration("stats_interval", s.statsInterval),
	)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler stopped")
			return
		case <-syncC:
			s.runSyncs(ctx)
		case <-statsC:
			s.statistics.Run(ctx)
		}
	}
}

// runSyncs runs both source pipelines back to back. The services own all
// failure handling; results are logged inside them.
func (s *Scheduler) runSyncs(ctx context.Context) {
	for _, svc := range []*service.DeviceSyncService{s.intuneSync, s.defenderSync} {
		if svc == nil {
			continue
		}
		res := svc.SyncDevices(ctx, nil)
		if !res.Success {
			s.logger.Warn("Scheduled device sync failed",
				zap.String("source", svc.Source()),
				zap.String("status", res.Status),
			)
		}
	}
}
