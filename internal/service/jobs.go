package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/metrics"
)

// Background job names, used by the scheduler, the internal endpoints and
// the CLI.
const (
	JobOrphans   = "orphans"
	JobRetention = "retention"
	JobLifecycle = "lifecycle"
	JobFacets    = "facets"
)

var JobNames = []string{JobOrphans, JobRetention, JobLifecycle, JobFacets}

type JobParams struct {
	Limit   int
	EventID string
}

type FacetRebuildResult struct {
	Counters int `json:"counters"`
}

// JobRegistry runs background jobs by name and records their metrics.
type JobRegistry struct {
	reaper    *OrphanReaper
	sweeper   *RetentionSweeper
	sync      *LifecycleSync
	facets    *FacetService
	batchSize int
	logger    *zap.Logger
}

func NewJobRegistry(
	reaper *OrphanReaper,
	sweeper *RetentionSweeper,
	sync *LifecycleSync,
	facets *FacetService,
	batchSize int,
	logger *zap.Logger,
) *JobRegistry {
	return &JobRegistry{
		reaper:    reaper,
		sweeper:   sweeper,
		sync:      sync,
		facets:    facets,
		batchSize: batchSize,
		logger:    logger.With(zap.String("component", "jobs")),
	}
}

// Run executes one job synchronously and returns its summary counters.
func (r *JobRegistry) Run(ctx context.Context, name string, params JobParams) (interface{}, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = r.batchSize
	}

	started := time.Now()
	var (
		result interface{}
		err    error
	)
	switch name {
	case JobOrphans:
		result, err = r.reaper.Run(ctx, limit)
	case JobRetention:
		result, err = r.sweeper.Run(ctx, limit)
	case JobLifecycle:
		result, err = r.sync.Run(ctx, limit)
	case JobFacets:
		var counters int
		counters, err = r.facets.Rebuild(ctx, params.EventID)
		result = &FacetRebuildResult{Counters: counters}
	default:
		return nil, apperr.NotFound(fmt.Sprintf("unknown job %q", name))
	}

	metrics.JobRuns.WithLabelValues(name).Inc()
	metrics.JobDuration.WithLabelValues(name).Observe(time.Since(started).Seconds())
	if err != nil {
		r.logger.Error("job failed", zap.String("job", name), zap.Error(err))
		return nil, err
	}
	return result, nil
}

// Scheduler runs each job on its own ticker until stopped. Jobs are
// idempotent, so several instances may schedule them at once.
type Scheduler struct {
	registry  *JobRegistry
	intervals map[string]time.Duration
	logger    *zap.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(registry *JobRegistry, intervals map[string]time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		registry:  registry,
		intervals: intervals,
		logger:    logger.With(zap.String("component", "scheduler")),
	}
}

// Start launches one goroutine per job with a positive interval.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	for _, name := range JobNames {
		interval := s.intervals[name]
		if interval <= 0 {
			continue
		}
		s.wg.Add(1)
		go s.loop(ctx, name, interval)
	}
}

func (s *Scheduler) loop(ctx context.Context, name string, interval time.Duration) {
	defer s.wg.Done()

	s.logger.Info("job scheduled", zap.String("job", name), zap.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.registry.Run(ctx, name, JobParams{}); err != nil && ctx.Err() == nil {
				s.logger.Warn("scheduled job failed", zap.String("job", name), zap.Error(err))
			}
		}
	}
}

// Stop cancels all job loops and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}
