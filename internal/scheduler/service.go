package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/trendscope/trendscope-bot/internal/publish"
)

// Service schedules the recurring publish cycle. The timer and the manual
// trigger endpoint both funnel into the orchestrator's single-flight guard,
// so overlapping triggers are harmless.
type Service struct {
	orchestrator *publish.Orchestrator
	interval     time.Duration
	cron         *cron.Cron
}

// NewService creates a scheduler running a cycle every interval
func NewService(orchestrator *publish.Orchestrator, interval time.Duration) *Service {
	return &Service{
		orchestrator: orchestrator,
		interval:     interval,
		cron:         cron.New(),
	}
}

// Start begins the scheduled publishing
func (s *Service) Start() error {
	spec := fmt.Sprintf("@every %s", s.interval)

	_, err := s.cron.AddFunc(spec, func() {
		err := s.orchestrator.RunCycle(context.Background())
		switch {
		case err == nil:
		case errors.Is(err, publish.ErrCycleInProgress), errors.Is(err, publish.ErrQuietHours):
			// Already logged at info level by the orchestrator
		default:
			logrus.Errorf("Scheduled publish cycle failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logrus.Infof("Scheduler started, publish cycle every %s", s.interval)
	return nil
}

// Stop stops the scheduler
func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
		logrus.Info("Scheduler stopped")
	}
}
