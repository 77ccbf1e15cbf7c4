package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/metrics"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/pkg/storage"
)

type RetentionResult struct {
	Processed     int   `json:"processed"`
	Cleaned       int   `json:"cleaned"`
	Failed        int   `json:"failed"`
	FacetsRebuilt int   `json:"facets_rebuilt"`
	EventsPurged  int64 `json:"events_purged"`
}

// RetentionSweeper deletes the blobs of media whose event closed more than
// the retention period ago. It is the only path that removes stored files
// of finalized media.
type RetentionSweeper struct {
	tx        *repository.Transactor
	eventRepo *repository.EventRepository
	mediaRepo *repository.MediaRepository
	facetRepo *repository.FacetRepository
	facets    *FacetService
	store     storage.BlobStore
	retention time.Duration
	clock     lifecycle.Clock
	logger    *zap.Logger
}

func NewRetentionSweeper(
	tx *repository.Transactor,
	eventRepo *repository.EventRepository,
	mediaRepo *repository.MediaRepository,
	facetRepo *repository.FacetRepository,
	facets *FacetService,
	store storage.BlobStore,
	retention time.Duration,
	clock lifecycle.Clock,
	logger *zap.Logger,
) *RetentionSweeper {
	return &RetentionSweeper{
		tx:        tx,
		eventRepo: eventRepo,
		mediaRepo: mediaRepo,
		facetRepo: facetRepo,
		facets:    facets,
		store:     store,
		retention: retention,
		clock:     clock,
		logger:    logger.With(zap.String("component", "retention_sweeper")),
	}
}

func (s *RetentionSweeper) Run(ctx context.Context, limit int) (*RetentionResult, error) {
	now := s.clock()
	cutoff := lifecycle.RetentionCutoff(now, s.retention)

	items, err := s.mediaRepo.ListRetentionCandidates(ctx, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list retention candidates: %w", err)
	}

	result := &RetentionResult{}
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		result.Processed++

		cleaned, err := s.sweepOne(ctx, &items[i], now)
		switch {
		case err != nil:
			result.Failed++
			metrics.JobItems.WithLabelValues(JobRetention, "failed").Inc()
			s.logger.Warn("retention delete failed",
				zap.String("media_id", items[i].ID),
				zap.String("code", string(apperr.CodeOf(err))),
				zap.Int("attempts", items[i].DeleteAttempts+1),
				zap.Error(err),
			)
		case cleaned:
			result.Cleaned++
			metrics.JobItems.WithLabelValues(JobRetention, "cleaned").Inc()
		default:
			metrics.JobItems.WithLabelValues(JobRetention, "skipped").Inc()
		}
	}

	// Absorb drift from every call site that touches the ledger.
	rebuilt, err := s.facets.Rebuild(ctx, "")
	if err != nil {
		s.logger.Warn("facet rebuild failed", zap.Error(err))
	} else {
		result.FacetsRebuilt = rebuilt
	}

	purged, err := s.eventRepo.MarkPurged(ctx, cutoff, now)
	if err != nil {
		s.logger.Warn("failed to mark events purged", zap.Error(err))
	} else {
		result.EventsPurged = purged
	}

	s.logger.Info("retention sweep finished",
		zap.Time("cutoff", cutoff),
		zap.Int("processed", result.Processed),
		zap.Int("cleaned", result.Cleaned),
		zap.Int("failed", result.Failed),
		zap.Int("facets_rebuilt", result.FacetsRebuilt),
		zap.Int64("events_purged", result.EventsPurged),
	)
	return result, nil
}

// sweepOne deletes an item's blobs and, only after both are gone, marks the
// row expired and decrements its facets in one transaction. A delete failure
// is recorded on the row and leaves its status alone.
func (s *RetentionSweeper) sweepOne(ctx context.Context, item *models.MediaItem, now time.Time) (bool, error) {
	for _, path := range []string{item.OriginalPath, item.ThumbnailPath} {
		if path == "" {
			continue
		}
		if err := s.store.Delete(ctx, path); err != nil {
			if recErr := s.mediaRepo.RecordDeleteFailure(ctx, item.ID, err.Error(), now); recErr != nil {
				s.logger.Warn("failed to record delete failure", zap.String("media_id", item.ID), zap.Error(recErr))
			}
			return false, apperr.StorageDeleteFailed(fmt.Sprintf("delete %s", path), err)
		}
	}

	var cleaned bool
	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		ok, err := s.mediaRepo.WithTx(tx).MarkDeleted(ctx, item.ID, item.Status, now)
		if err != nil || !ok {
			return err
		}
		cleaned = true
		if !item.Status.CountsForFacets() {
			return nil
		}
		return s.facetRepo.WithTx(tx).Decrement(ctx, item.EventID, models.FacetKeys(item.UploaderName, item.Tags), now)
	})
	if err != nil {
		return false, fmt.Errorf("mark media deleted: %w", err)
	}
	return cleaned, nil
}
