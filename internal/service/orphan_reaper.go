package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/metrics"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/pkg/storage"
)

// WrittenOrphanTimeout is how long a reservation whose original was written
// but never finalized keeps its slot before it is reclaimed anyway.
const WrittenOrphanTimeout = 24 * time.Hour

type OrphanResult struct {
	Processed int `json:"processed"`
	Expired   int `json:"expired"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// OrphanReaper expires pending reservations whose original was never
// written, which frees their upload slots. Written but unfinalized uploads
// are left for the guest to finalize until WrittenOrphanTimeout.
type OrphanReaper struct {
	mediaRepo *repository.MediaRepository
	store     storage.BlobStore
	timeout   time.Duration
	clock     lifecycle.Clock
	logger    *zap.Logger
}

func NewOrphanReaper(
	mediaRepo *repository.MediaRepository,
	store storage.BlobStore,
	timeout time.Duration,
	clock lifecycle.Clock,
	logger *zap.Logger,
) *OrphanReaper {
	return &OrphanReaper{
		mediaRepo: mediaRepo,
		store:     store,
		timeout:   timeout,
		clock:     clock,
		logger:    logger.With(zap.String("component", "orphan_reaper")),
	}
}

func (r *OrphanReaper) Run(ctx context.Context, limit int) (*OrphanResult, error) {
	now := r.clock()
	orphans, err := r.mediaRepo.ListOrphans(ctx, now.Add(-r.timeout), limit)
	if err != nil {
		return nil, fmt.Errorf("list orphans: %w", err)
	}

	result := &OrphanResult{}
	for i := range orphans {
		if ctx.Err() != nil {
			break
		}
		result.Processed++

		item := &orphans[i]
		info, err := r.store.Stat(ctx, item.OriginalPath)
		if err != nil {
			result.Failed++
			metrics.JobItems.WithLabelValues(JobOrphans, "failed").Inc()
			r.logger.Warn("failed to check orphan blob", zap.String("media_id", item.ID), zap.Error(err))
			continue
		}
		if info.Exists && info.Size > 0 && item.CreatedAt.After(now.Add(-r.writtenTimeout())) {
			result.Skipped++
			metrics.JobItems.WithLabelValues(JobOrphans, "skipped").Inc()
			continue
		}

		expired, err := r.mediaRepo.ExpireIfPending(ctx, item.ID, now)
		if err != nil {
			result.Failed++
			metrics.JobItems.WithLabelValues(JobOrphans, "failed").Inc()
			r.logger.Warn("failed to expire orphan", zap.String("media_id", item.ID), zap.Error(err))
			continue
		}
		if !expired {
			// Finalized or expired by someone else in the meantime.
			result.Skipped++
			metrics.JobItems.WithLabelValues(JobOrphans, "skipped").Inc()
			continue
		}
		result.Expired++
		metrics.JobItems.WithLabelValues(JobOrphans, "expired").Inc()

		r.removeBlobs(ctx, item, now)
	}

	r.logger.Info("orphan reaper finished",
		zap.Int("processed", result.Processed),
		zap.Int("expired", result.Expired),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func (r *OrphanReaper) writtenTimeout() time.Duration {
	if r.timeout > WrittenOrphanTimeout {
		return r.timeout
	}
	return WrittenOrphanTimeout
}

// removeBlobs deletes whatever a client may have written before giving up.
// On failure the row keeps deleted_at unset and the retention sweeper retries.
func (r *OrphanReaper) removeBlobs(ctx context.Context, item *models.MediaItem, now time.Time) {
	for _, path := range []string{item.OriginalPath, item.ThumbnailPath} {
		if path == "" {
			continue
		}
		if err := r.store.Delete(ctx, path); err != nil {
			r.logger.Debug("orphan blob cleanup deferred", zap.String("media_id", item.ID), zap.Error(err))
			return
		}
	}
	if _, err := r.mediaRepo.MarkDeleted(ctx, item.ID, models.MediaStatusExpired, now); err != nil {
		r.logger.Warn("failed to record orphan blob cleanup", zap.String("media_id", item.ID), zap.Error(err))
	}
}
