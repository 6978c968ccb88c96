// Package reaper removes rooms that nobody has written to for a while.
package reaper

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"bingo-room-backend/config"
)

// RoomReaper deletes idle rooms. game.Service satisfies it.
type RoomReaper interface {
	ReapIdle(ctx context.Context, olderThan time.Time, limit int) (int, error)
}

// Service runs the reaping loop.
type Service struct {
	cfg    config.ReaperConfig
	rooms  RoomReaper
	now    func() time.Time
	logger *logrus.Entry
}

// NewService creates a reaper service.
func NewService(cfg config.ReaperConfig, rooms RoomReaper) *Service {
	return &Service{
		cfg:    cfg,
		rooms:  rooms,
		now:    time.Now,
		logger: logrus.WithField("component", "reaper"),
	}
}

// Run reaps once immediately and then on every interval until ctx is done.
func (s *Service) Run(ctx context.Context) {
	if !s.cfg.Enabled {
		s.logger.Info("reaper is disabled, not starting")
		return
	}
	s.logger.WithFields(logrus.Fields{
		"interval": s.cfg.Interval,
		"idle_ttl": s.cfg.IdleTTL,
	}).Info("starting reaper")

	s.RunOnce(ctx)

	timer := time.NewTimer(s.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("reaper shutting down")
			return
		case <-timer.C:
			s.RunOnce(ctx)
			timer.Reset(s.cfg.Interval)
		}
	}
}

// RunOnce deletes idle rooms in batches until a batch comes back short.
// It returns the number of rooms removed.
func (s *Service) RunOnce(ctx context.Context) int {
	cutoff := s.now().Add(-s.cfg.IdleTTL)
	total := 0
	for ctx.Err() == nil {
		n, err := s.rooms.ReapIdle(ctx, cutoff, s.cfg.BatchSize)
		total += n
		if err != nil {
			s.logger.WithError(err).Error("reap cycle failed")
			break
		}
		if n < s.cfg.BatchSize {
			break
		}
	}
	if total > 0 {
		s.logger.Infof("removed %d idle rooms", total)
	}
	return total
}
