package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/metrics"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/pkg/storage"
)

const thumbnailMimeType = "image/jpeg"

// UploadService runs the two-phase upload: Reserve creates a pending row and
// hands out signed write URLs, Finalize verifies the blob and commits the row.
type UploadService struct {
	tx          *repository.Transactor
	eventRepo   *repository.EventRepository
	sessionRepo *repository.SessionRepository
	mediaRepo   *repository.MediaRepository
	facetRepo   *repository.FacetRepository
	store       storage.BlobStore
	uploadTTL   time.Duration
	clock       lifecycle.Clock
	logger      *zap.Logger
}

func NewUploadService(
	tx *repository.Transactor,
	eventRepo *repository.EventRepository,
	sessionRepo *repository.SessionRepository,
	mediaRepo *repository.MediaRepository,
	facetRepo *repository.FacetRepository,
	store storage.BlobStore,
	uploadTTL time.Duration,
	clock lifecycle.Clock,
	logger *zap.Logger,
) *UploadService {
	return &UploadService{
		tx:          tx,
		eventRepo:   eventRepo,
		sessionRepo: sessionRepo,
		mediaRepo:   mediaRepo,
		facetRepo:   facetRepo,
		store:       store,
		uploadTTL:   uploadTTL,
		clock:       clock,
		logger:      logger.With(zap.String("component", "upload_service")),
	}
}

// OriginalPath is the blob path of a media item's original file.
func OriginalPath(eventID, sessionID, mediaID, ext string) string {
	return fmt.Sprintf("events/%s/%s/%s/original.%s", eventID, sessionID, mediaID, ext)
}

// ThumbnailPath is the blob path of a media item's thumbnail.
func ThumbnailPath(eventID, sessionID, mediaID string) string {
	return fmt.Sprintf("events/%s/%s/%s/thumb.jpg", eventID, sessionID, mediaID)
}

// Reserve takes one upload slot for the session and returns signed write URLs.
func (s *UploadService) Reserve(ctx context.Context, sessionID string, req models.ReserveUploadRequest) (*models.ReserveUploadResponse, error) {
	session, err := activeSession(ctx, s.sessionRepo, sessionID)
	if err != nil {
		return nil, err
	}

	event, err := s.eventRepo.GetByID(ctx, session.EventID)
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	now := s.clock()
	if status := lifecycle.EffectiveStatus(event, now); status != models.EventStatusActive {
		return nil, apperr.InvalidLifecycleState(fmt.Sprintf("event is %s", status))
	}

	ext, err := PolicyFor(event.CompressionMode).Check(req.MimeType, req.SizeBytes)
	if err != nil {
		return nil, err
	}

	tags, err := models.NewTagSet(req.Tags)
	if err != nil {
		return nil, apperr.InvalidInput(fmt.Sprintf("%v: at most %d tags of %d characters", err, models.MaxTagsPerItem, models.MaxTagLength))
	}

	mediaID := uuid.NewString()
	item := &models.MediaItem{
		ID:           mediaID,
		EventID:      event.ID,
		SessionID:    session.ID,
		MimeType:     normalizeMime(req.MimeType),
		SizeBytes:    req.SizeBytes,
		OriginalPath: OriginalPath(event.ID, session.ID, mediaID, ext),
		UploaderName: session.Name(),
		Tags:         tags,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.WithThumbnail {
		item.ThumbnailPath = ThumbnailPath(event.ID, session.ID, mediaID)
	}

	err = s.mediaRepo.ReserveUploadSlot(ctx, item, event.MaxUploadsPerParticipant)
	switch {
	case errors.Is(err, repository.ErrCapacityExceeded):
		metrics.Reservations.WithLabelValues("upload", metrics.OutcomeRejected).Inc()
		return nil, apperr.CapacityExceeded("you have reached the upload limit for this event")
	case errors.Is(err, repository.ErrSessionInactive):
		return nil, apperr.Forbidden("session has been deactivated")
	case err != nil:
		metrics.Reservations.WithLabelValues("upload", metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("reserve upload slot: %w", err)
	}
	metrics.Reservations.WithLabelValues("upload", metrics.OutcomeOK).Inc()

	resp, err := s.signWrites(ctx, item, now)
	if err != nil {
		// Give the slot back now rather than waiting for the orphan reaper.
		if _, expErr := s.mediaRepo.ExpireIfPending(ctx, item.ID, now); expErr != nil {
			s.logger.Warn("failed to release reservation", zap.String("media_id", item.ID), zap.Error(expErr))
		}
		return nil, err
	}

	s.logger.Debug("upload reserved",
		zap.String("event_id", event.ID),
		zap.String("session_id", session.ID),
		zap.String("media_id", item.ID),
	)
	return resp, nil
}

func (s *UploadService) signWrites(ctx context.Context, item *models.MediaItem, now time.Time) (*models.ReserveUploadResponse, error) {
	uploadURL, err := s.store.PresignPut(ctx, item.OriginalPath, item.MimeType, s.uploadTTL)
	if err != nil {
		return nil, fmt.Errorf("sign upload url: %w", err)
	}

	resp := &models.ReserveUploadResponse{
		Media:     models.NewMediaResponse(item),
		UploadURL: uploadURL,
		ExpiresAt: now.Add(s.uploadTTL),
	}
	if item.ThumbnailPath != "" {
		resp.ThumbnailUploadURL, err = s.store.PresignPut(ctx, item.ThumbnailPath, thumbnailMimeType, s.uploadTTL)
		if err != nil {
			return nil, fmt.Errorf("sign thumbnail upload url: %w", err)
		}
	}
	return resp, nil
}

// Finalize verifies the uploaded blob and flips the row to uploaded together
// with its facet increments. A failed verification leaves the row pending so
// the client can retry.
func (s *UploadService) Finalize(ctx context.Context, sessionID, mediaID string) (*models.MediaItem, error) {
	if _, err := activeSession(ctx, s.sessionRepo, sessionID); err != nil {
		metrics.Finalizations.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	item, err := s.mediaRepo.GetByID(ctx, mediaID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && item.SessionID != sessionID) {
		return nil, apperr.NotFound("media not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get media: %w", err)
	}
	if item.Status != models.MediaStatusPending {
		metrics.Finalizations.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, apperr.StateConflict(fmt.Sprintf("media is %s, not pending", item.Status))
	}

	size, thumbnailPath, err := s.verify(ctx, item)
	if err != nil {
		metrics.Finalizations.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, err
	}

	now := s.clock()
	err = s.tx.Do(ctx, func(tx *gorm.DB) error {
		if err := s.mediaRepo.WithTx(tx).MarkUploaded(ctx, item.ID, sessionID, size, thumbnailPath, now); err != nil {
			return err
		}
		return s.facetRepo.WithTx(tx).Increment(ctx, item.EventID, models.FacetKeys(item.UploaderName, item.Tags), now)
	})
	if errors.Is(err, repository.ErrStateConflict) {
		metrics.Finalizations.WithLabelValues(metrics.OutcomeRejected).Inc()
		return nil, apperr.StateConflict("media is no longer pending")
	}
	if err != nil {
		metrics.Finalizations.WithLabelValues(metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("finalize upload: %w", err)
	}
	metrics.Finalizations.WithLabelValues(metrics.OutcomeOK).Inc()

	s.logger.Debug("upload finalized",
		zap.String("event_id", item.EventID),
		zap.String("media_id", item.ID),
		zap.Int64("size", size),
	)
	return s.mediaRepo.GetByID(ctx, item.ID)
}

// verify checks the original exists with a plausible size. A missing
// thumbnail is dropped rather than failing the upload.
func (s *UploadService) verify(ctx context.Context, item *models.MediaItem) (int64, string, error) {
	info, err := s.store.Stat(ctx, item.OriginalPath)
	if err != nil {
		return 0, "", apperr.UploadNotVerified("storage is unavailable, retry finalize", err)
	}
	if !info.Exists {
		return 0, "", apperr.UploadNotVerified("uploaded file not found", nil)
	}

	event, err := s.eventRepo.GetByID(ctx, item.EventID)
	if err != nil {
		return 0, "", fmt.Errorf("get event: %w", err)
	}
	if info.Size <= 0 || info.Size > PolicyFor(event.CompressionMode).MaxSize(item.MimeType) {
		return 0, "", apperr.UploadNotVerified(fmt.Sprintf("uploaded file has implausible size %d", info.Size), nil)
	}

	thumbnailPath := item.ThumbnailPath
	if thumbnailPath != "" {
		thumb, err := s.store.Stat(ctx, thumbnailPath)
		if err != nil {
			return 0, "", apperr.UploadNotVerified("storage is unavailable, retry finalize", err)
		}
		if !thumb.Exists {
			thumbnailPath = ""
		}
	}
	return info.Size, thumbnailPath, nil
}
