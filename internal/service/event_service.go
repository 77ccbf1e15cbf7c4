package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/pkg/bcrypt"
	"github.com/sefazor/guestdrop-backend/pkg/qrcode"
	"github.com/sefazor/guestdrop-backend/pkg/utils"
)

const (
	slugLength   = 10
	slugAttempts = 5
)

type EventService struct {
	eventRepo *repository.EventRepository
	qr        *qrcode.QRService
	clock     lifecycle.Clock
	logger    *zap.Logger
}

func NewEventService(eventRepo *repository.EventRepository, qr *qrcode.QRService, clock lifecycle.Clock, logger *zap.Logger) *EventService {
	return &EventService{
		eventRepo: eventRepo,
		qr:        qr,
		clock:     clock,
		logger:    logger.With(zap.String("component", "event_service")),
	}
}

func (s *EventService) CreateEvent(ctx context.Context, organizerID string, req models.EventRequest) (*models.Event, error) {
	start, err := lifecycle.ParseDate(req.StartDate)
	if err != nil {
		return nil, apperr.InvalidInput("start_date must be YYYY-MM-DD")
	}
	end, err := lifecycle.ParseDate(req.EndDate)
	if err != nil {
		return nil, apperr.InvalidInput("end_date must be YYYY-MM-DD")
	}
	if end.Before(start) {
		return nil, apperr.InvalidInput("end_date must not be before start_date")
	}
	if req.MaxParticipants <= 0 || req.MaxUploadsPerParticipant <= 0 {
		return nil, apperr.InvalidInput("capacity ceilings must be positive")
	}

	mode := req.CompressionMode
	if mode == "" {
		mode = models.CompressionStandard
	}
	if mode != models.CompressionStandard && mode != models.CompressionOriginal {
		return nil, apperr.InvalidInput("compression_mode must be standard or original")
	}

	slug, err := s.uniqueSlug(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	event := &models.Event{
		ID:                       uuid.NewString(),
		OrganizerID:              organizerID,
		Title:                    strings.TrimSpace(req.Title),
		Slug:                     slug,
		MaxParticipants:          req.MaxParticipants,
		MaxUploadsPerParticipant: req.MaxUploadsPerParticipant,
		CompressionMode:          mode,
		StartDate:                start,
		EndDate:                  end,
		Status:                   lifecycle.Status(start, end, now),
		CreatedAt:                now,
		UpdatedAt:                now,
	}

	// Passcode is optional
	if req.Passcode != "" {
		hash, err := bcrypt.HashPasscode(req.Passcode)
		if errors.Is(err, bcrypt.ErrPasscodeLength) {
			return nil, apperr.InvalidInput(err.Error())
		}
		if err != nil {
			return nil, err
		}
		event.PasscodeHash = hash
	}

	if err := s.eventRepo.Create(ctx, event); err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}

	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("organizer_id", organizerID),
		zap.String("mode", string(mode)),
	)
	return event, nil
}

func (s *EventService) uniqueSlug(ctx context.Context) (string, error) {
	for i := 0; i < slugAttempts; i++ {
		slug := utils.GenerateRandomString(slugLength)
		exists, err := s.eventRepo.SlugExists(ctx, slug)
		if err != nil {
			return "", fmt.Errorf("check slug: %w", err)
		}
		if !exists {
			return slug, nil
		}
	}
	return "", errors.New("could not generate a unique event slug")
}

// GetEvent returns an event owned by organizerID.
func (s *EventService) GetEvent(ctx context.Context, organizerID, eventID string) (*models.Event, error) {
	return ownedEvent(ctx, s.eventRepo, organizerID, eventID)
}

func (s *EventService) ListOrganizerEvents(ctx context.Context, organizerID string) ([]models.Event, error) {
	return s.eventRepo.ListByOrganizer(ctx, organizerID)
}

// EffectiveStatus re-derives the event's status at the current instant.
func (s *EventService) EffectiveStatus(event *models.Event) models.EventStatus {
	return lifecycle.EffectiveStatus(event, s.clock())
}

// ArchiveEvent is organizer-initiated and only legal once the event has closed.
func (s *EventService) ArchiveEvent(ctx context.Context, organizerID, eventID string) (*models.Event, error) {
	event, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	switch lifecycle.EffectiveStatus(event, now) {
	case models.EventStatusArchived, models.EventStatusPurged:
		return event, nil
	case models.EventStatusClosed:
	default:
		return nil, apperr.InvalidLifecycleState("event can only be archived after it has closed")
	}

	if _, err := s.eventRepo.Archive(ctx, event.ID, now); err != nil {
		return nil, fmt.Errorf("archive event: %w", err)
	}

	s.logger.Info("event archived", zap.String("event_id", event.ID))
	return s.eventRepo.GetByID(ctx, event.ID)
}

// JoinLinkQR renders the event's join link as a PNG.
func (s *EventService) JoinLinkQR(ctx context.Context, organizerID, eventID string, size int) ([]byte, error) {
	event, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID)
	if err != nil {
		return nil, err
	}
	return s.qr.GenerateJoinQR(event.Slug, size)
}

func (s *EventService) ToResponse(event *models.Event) models.EventResponse {
	return models.EventResponse{
		ID:                       event.ID,
		Title:                    event.Title,
		Slug:                     event.Slug,
		JoinURL:                  s.qr.JoinURL(event.Slug),
		HasPasscode:              event.HasPasscode(),
		MaxParticipants:          event.MaxParticipants,
		MaxUploadsPerParticipant: event.MaxUploadsPerParticipant,
		CompressionMode:          event.CompressionMode,
		StartDate:                event.StartDate.Format("2006-01-02"),
		EndDate:                  event.EndDate.Format("2006-01-02"),
		Status:                   s.EffectiveStatus(event),
		OpensAt:                  lifecycle.OpensAt(event.StartDate),
		ClosesAt:                 lifecycle.ClosesAt(event.EndDate),
		CreatedAt:                event.CreatedAt,
	}
}

// ownedEvent loads an event and checks that organizerID owns it.
func ownedEvent(ctx context.Context, eventRepo *repository.EventRepository, organizerID, eventID string) (*models.Event, error) {
	event, err := eventRepo.GetByID(ctx, eventID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	if event.OrganizerID != organizerID {
		return nil, apperr.Forbidden("event belongs to another organizer")
	}
	return event, nil
}
