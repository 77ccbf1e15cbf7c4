package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/metrics"
	"github.com/sefazor/guestdrop-backend/internal/repository"
)

type LifecycleResult struct {
	Processed int `json:"processed"`
	Updated   int `json:"updated"`
}

// LifecycleSync brings the persisted status column of draft and active
// events in line with the clock. Nothing gates on that column; it exists for
// listing and reporting.
type LifecycleSync struct {
	eventRepo *repository.EventRepository
	clock     lifecycle.Clock
	logger    *zap.Logger
}

func NewLifecycleSync(eventRepo *repository.EventRepository, clock lifecycle.Clock, logger *zap.Logger) *LifecycleSync {
	return &LifecycleSync{
		eventRepo: eventRepo,
		clock:     clock,
		logger:    logger.With(zap.String("component", "lifecycle_sync")),
	}
}

// Run pages through all draft and active events, pageSize at a time.
func (s *LifecycleSync) Run(ctx context.Context, pageSize int) (*LifecycleResult, error) {
	now := s.clock()
	result := &LifecycleResult{}

	afterID := ""
	for {
		events, err := s.eventRepo.ListForLifecycleSync(ctx, afterID, pageSize)
		if err != nil {
			return result, fmt.Errorf("list events: %w", err)
		}

		for i := range events {
			event := &events[i]
			result.Processed++

			want := lifecycle.Status(event.StartDate, event.EndDate, now)
			if want == event.Status {
				continue
			}
			updated, err := s.eventRepo.UpdateStatusIf(ctx, event.ID, event.Status, want, now)
			if err != nil {
				metrics.JobItems.WithLabelValues(JobLifecycle, "failed").Inc()
				s.logger.Warn("failed to sync event status", zap.String("event_id", event.ID), zap.Error(err))
				continue
			}
			if updated {
				result.Updated++
				metrics.JobItems.WithLabelValues(JobLifecycle, "updated").Inc()
			}
		}

		if len(events) < pageSize || ctx.Err() != nil {
			break
		}
		afterID = events[len(events)-1].ID
	}

	s.logger.Info("lifecycle sync finished",
		zap.Int("processed", result.Processed),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}
