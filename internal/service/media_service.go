package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/pkg/storage"
)

const (
	DefaultPageSize  = 50
	MaxPageSize      = 200
	manifestPageSize = 200
)

type MediaPage struct {
	Items  []models.MediaResponse `json:"items"`
	Total  int64                  `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
}

// MediaService serves the organizer gallery and a guest's own uploads.
type MediaService struct {
	eventRepo   *repository.EventRepository
	sessionRepo *repository.SessionRepository
	mediaRepo   *repository.MediaRepository
	store       storage.BlobStore
	readTTL     time.Duration
	clock       lifecycle.Clock
	logger      *zap.Logger
}

func NewMediaService(
	eventRepo *repository.EventRepository,
	sessionRepo *repository.SessionRepository,
	mediaRepo *repository.MediaRepository,
	store storage.BlobStore,
	readTTL time.Duration,
	clock lifecycle.Clock,
	logger *zap.Logger,
) *MediaService {
	return &MediaService{
		eventRepo:   eventRepo,
		sessionRepo: sessionRepo,
		mediaRepo:   mediaRepo,
		store:       store,
		readTTL:     readTTL,
		clock:       clock,
		logger:      logger.With(zap.String("component", "media_service")),
	}
}

func clampPage(filter models.MediaFilter) models.MediaFilter {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Limit > MaxPageSize {
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return filter
}

// ListMedia returns one page of the event gallery with signed read URLs.
// Hidden media is only included when the filter asks for it.
func (s *MediaService) ListMedia(ctx context.Context, organizerID, eventID string, filter models.MediaFilter) (*MediaPage, error) {
	if _, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID); err != nil {
		return nil, err
	}

	filter = clampPage(filter)
	items, total, err := s.mediaRepo.ListByEvent(ctx, eventID, filter)
	if err != nil {
		return nil, fmt.Errorf("list media: %w", err)
	}

	page := &MediaPage{
		Items:  make([]models.MediaResponse, 0, len(items)),
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}
	for i := range items {
		resp, err := s.withReadURLs(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, resp)
	}
	return page, nil
}

// ListMyMedia returns the caller's own non-expired uploads. Pending rows come
// back without read URLs.
func (s *MediaService) ListMyMedia(ctx context.Context, sessionID string) ([]models.MediaResponse, error) {
	if _, err := activeSession(ctx, s.sessionRepo, sessionID); err != nil {
		return nil, err
	}

	items, err := s.mediaRepo.ListBySession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list session media: %w", err)
	}

	out := make([]models.MediaResponse, 0, len(items))
	for i := range items {
		if items[i].Status == models.MediaStatusPending {
			out = append(out, models.NewMediaResponse(&items[i]))
			continue
		}
		resp, err := s.withReadURLs(ctx, &items[i])
		if err != nil {
			return nil, err
		}
		out = append(out, resp)
	}
	return out, nil
}

func (s *MediaService) withReadURLs(ctx context.Context, item *models.MediaItem) (models.MediaResponse, error) {
	resp := models.NewMediaResponse(item)

	url, err := s.store.PresignGet(ctx, item.OriginalPath, s.readTTL)
	if err != nil {
		return resp, fmt.Errorf("sign read url: %w", err)
	}
	resp.URL = url

	if item.ThumbnailPath != "" {
		thumb, err := s.store.PresignGet(ctx, item.ThumbnailPath, s.readTTL)
		if err != nil {
			return resp, fmt.Errorf("sign thumbnail url: %w", err)
		}
		resp.ThumbnailURL = thumb
	}
	return resp, nil
}

// Hide removes media from the default gallery. It still holds its upload
// slot and still counts in facets.
func (s *MediaService) Hide(ctx context.Context, organizerID, eventID, mediaID string) error {
	return s.transition(ctx, organizerID, eventID, mediaID, models.MediaStatusUploaded, models.MediaStatusHidden)
}

func (s *MediaService) Unhide(ctx context.Context, organizerID, eventID, mediaID string) error {
	return s.transition(ctx, organizerID, eventID, mediaID, models.MediaStatusHidden, models.MediaStatusUploaded)
}

func (s *MediaService) transition(ctx context.Context, organizerID, eventID, mediaID string, from, to models.MediaStatus) error {
	if _, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID); err != nil {
		return err
	}

	err := s.mediaRepo.TransitionStatus(ctx, eventID, mediaID, from, to, s.clock())
	if errors.Is(err, repository.ErrStateConflict) {
		item, getErr := s.mediaRepo.GetByID(ctx, mediaID)
		if errors.Is(getErr, repository.ErrNotFound) || (getErr == nil && item.EventID != eventID) {
			return apperr.NotFound("media not found")
		}
		if getErr != nil {
			return fmt.Errorf("get media: %w", getErr)
		}
		return apperr.StateConflict(fmt.Sprintf("media is %s, not %s", item.Status, from))
	}
	if err != nil {
		return fmt.Errorf("update media status: %w", err)
	}

	s.logger.Info("media status changed",
		zap.String("event_id", eventID),
		zap.String("media_id", mediaID),
		zap.String("status", string(to)),
	)
	return nil
}

// DownloadManifest lists signed read URLs for every gallery item matching
// filter. Packaging the files is left to the client.
func (s *MediaService) DownloadManifest(ctx context.Context, organizerID, eventID string, filter models.MediaFilter) ([]models.DownloadEntry, error) {
	if _, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID); err != nil {
		return nil, err
	}

	filter.Limit = manifestPageSize
	filter.Offset = 0

	var entries []models.DownloadEntry
	for {
		items, total, err := s.mediaRepo.ListByEvent(ctx, eventID, filter)
		if err != nil {
			return nil, fmt.Errorf("list media: %w", err)
		}
		for _, item := range items {
			url, err := s.store.PresignGet(ctx, item.OriginalPath, s.readTTL)
			if err != nil {
				return nil, fmt.Errorf("sign read url: %w", err)
			}
			entries = append(entries, models.DownloadEntry{
				ID:       item.ID,
				MimeType: item.MimeType,
				URL:      url,
			})
		}

		filter.Offset += len(items)
		if len(items) < filter.Limit || int64(filter.Offset) >= total {
			break
		}
	}

	if entries == nil {
		entries = []models.DownloadEntry{}
	}
	return entries, nil
}
