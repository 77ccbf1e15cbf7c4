package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
)

const rebuildScanBatch = 500

// FacetService reads the facet ledger and rebuilds it from media rows.
type FacetService struct {
	tx        *repository.Transactor
	eventRepo *repository.EventRepository
	mediaRepo *repository.MediaRepository
	facetRepo *repository.FacetRepository
	clock     lifecycle.Clock
	logger    *zap.Logger
}

func NewFacetService(
	tx *repository.Transactor,
	eventRepo *repository.EventRepository,
	mediaRepo *repository.MediaRepository,
	facetRepo *repository.FacetRepository,
	clock lifecycle.Clock,
	logger *zap.Logger,
) *FacetService {
	return &FacetService{
		tx:        tx,
		eventRepo: eventRepo,
		mediaRepo: mediaRepo,
		facetRepo: facetRepo,
		clock:     clock,
		logger:    logger.With(zap.String("component", "facet_service")),
	}
}

// List returns whatever counters are persisted. It never waits on a rebuild.
func (s *FacetService) List(ctx context.Context, organizerID, eventID string) (*models.FacetsResponse, error) {
	if _, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID); err != nil {
		return nil, err
	}

	counters, err := s.facetRepo.List(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("list facets: %w", err)
	}

	resp := &models.FacetsResponse{
		Uploaders: []models.FacetValue{},
		Tags:      []models.FacetValue{},
	}
	for _, c := range counters {
		v := models.FacetValue{Value: c.Value, Count: c.MediaCount}
		switch c.Kind {
		case models.FacetUploader:
			resp.Uploaders = append(resp.Uploaders, v)
		case models.FacetTag:
			resp.Tags = append(resp.Tags, v)
		}
	}
	return resp, nil
}

type facetKey struct {
	eventID string
	key     models.FacetKey
}

// Rebuild recomputes the ledger from uploaded and hidden media, for one
// event or, with an empty eventID, for all of them. It returns the number of
// counters written.
func (s *FacetService) Rebuild(ctx context.Context, eventID string) (int, error) {
	now := s.clock()
	var written int

	err := s.tx.Do(ctx, func(tx *gorm.DB) error {
		counts := make(map[facetKey]int64)
		var order []facetKey

		err := s.mediaRepo.WithTx(tx).EachFacetSource(ctx, eventID, rebuildScanBatch, func(items []models.MediaItem) error {
			for _, item := range items {
				for _, key := range models.FacetKeys(item.UploaderName, item.Tags) {
					k := facetKey{eventID: item.EventID, key: key}
					if _, ok := counts[k]; !ok {
						order = append(order, k)
					}
					counts[k]++
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("scan media: %w", err)
		}

		counters := make([]models.FacetCounter, 0, len(order))
		for _, k := range order {
			counters = append(counters, models.FacetCounter{
				EventID:    k.eventID,
				Kind:       k.key.Kind,
				Value:      k.key.Value,
				MediaCount: counts[k],
				UpdatedAt:  now,
			})
		}

		if err := s.facetRepo.WithTx(tx).Replace(ctx, eventID, counters); err != nil {
			return fmt.Errorf("replace facets: %w", err)
		}
		written = len(counters)
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.logger.Info("facets rebuilt", zap.String("event_id", eventID), zap.Int("counters", written))
	return written, nil
}
