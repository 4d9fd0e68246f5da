package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mbodji/lendscan/internal/service/eventctx"
	"github.com/mbodji/lendscan/internal/service/tracking"
)

const refreshTimeout = 20 * time.Second

// Scheduler runs the background reconciliation pass while an event is
// selected, so concurrent sessions' edits surface without an explicit reload.
type Scheduler struct {
	cron     *cron.Cron
	events   *eventctx.Manager
	tracking *tracking.Service
	interval time.Duration
	logger   *zap.Logger
}

// NewScheduler creates a scheduler that refreshes every interval.
func NewScheduler(interval time.Duration, events *eventctx.Manager, trackingSvc *tracking.Service, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Scheduler{
		cron:     cron.New(),
		events:   events,
		tracking: trackingSvc,
		interval: interval,
		logger:   logger,
	}
}

// Start schedules the recurring refresh.
func (s *Scheduler) Start() {
	s.logger.Info("starting scheduler", zap.Duration("interval", s.interval))

	spec := fmt.Sprintf("@every %s", s.interval)
	if _, err := s.cron.AddFunc(spec, s.refreshLists); err != nil {
		s.logger.Error("failed to schedule list refresh", zap.Error(err))
	}

	s.cron.Start()
}

// Stop stops the scheduler.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	s.cron.Stop()
}

func (s *Scheduler) refreshLists() {
	eventID, ok := s.events.Selected()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	// Background failures keep the last-known-good lists; only log here.
	if err := s.tracking.Refresh(ctx, eventID, false); err != nil {
		s.logger.Warn("background refresh failed", zap.Error(err),
			zap.String("event_id", eventID.Hex()))
	}
}
