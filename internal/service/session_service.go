package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sefazor/guestdrop-backend/internal/apperr"
	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/metrics"
	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/pkg/bcrypt"
	"github.com/sefazor/guestdrop-backend/pkg/jwt"
)

// GuestTokenGrace keeps guest tokens valid for a day after the event closes
// so guests can still browse their own uploads.
const GuestTokenGrace = 24 * time.Hour

type SessionService struct {
	eventRepo   *repository.EventRepository
	sessionRepo *repository.SessionRepository
	tokens      *jwt.Issuer
	clock       lifecycle.Clock
	logger      *zap.Logger
}

func NewSessionService(
	eventRepo *repository.EventRepository,
	sessionRepo *repository.SessionRepository,
	tokens *jwt.Issuer,
	clock lifecycle.Clock,
	logger *zap.Logger,
) *SessionService {
	return &SessionService{
		eventRepo:   eventRepo,
		sessionRepo: sessionRepo,
		tokens:      tokens,
		clock:       clock,
		logger:      logger.With(zap.String("component", "session_service")),
	}
}

// Join admits a guest to the event behind slug, reserving one participant
// slot, and returns the new session with its guest token.
func (s *SessionService) Join(ctx context.Context, slug string, req models.JoinRequest) (*models.JoinResponse, error) {
	event, err := s.eventRepo.GetBySlug(ctx, slug)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("event not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}

	now := s.clock()
	if status := lifecycle.EffectiveStatus(event, now); status != models.EventStatusActive {
		return nil, apperr.InvalidLifecycleState(fmt.Sprintf("event is %s", status))
	}

	if event.HasPasscode() {
		if req.Passcode == "" {
			return nil, apperr.Unauthorized("passcode required")
		}
		err := bcrypt.ComparePasscode(event.PasscodeHash, req.Passcode)
		if errors.Is(err, bcrypt.ErrPasscodeMismatch) {
			return nil, apperr.Unauthorized("incorrect passcode")
		}
		if err != nil {
			return nil, fmt.Errorf("check passcode: %w", err)
		}
	}

	session := &models.ParticipantSession{
		ID:           uuid.NewString(),
		EventID:      event.ID,
		DisplayName:  displayNamePtr(req.DisplayName),
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}

	err = s.sessionRepo.ReserveParticipantSlot(ctx, session, event.MaxParticipants)
	switch {
	case errors.Is(err, repository.ErrCapacityExceeded):
		metrics.Reservations.WithLabelValues("participant", metrics.OutcomeRejected).Inc()
		return nil, apperr.CapacityExceeded("this event has reached its participant limit")
	case errors.Is(err, repository.ErrNotFound):
		return nil, apperr.NotFound("event not found")
	case err != nil:
		metrics.Reservations.WithLabelValues("participant", metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("reserve participant slot: %w", err)
	}
	metrics.Reservations.WithLabelValues("participant", metrics.OutcomeOK).Inc()

	token, err := s.tokens.GuestToken(session.ID, event.ID, now, lifecycle.ClosesAt(event.EndDate).Add(GuestTokenGrace))
	if err != nil {
		return nil, err
	}

	s.logger.Info("participant joined",
		zap.String("event_id", event.ID),
		zap.String("session_id", session.ID),
	)

	return &models.JoinResponse{
		Session: *session,
		Token:   token,
		EventID: event.ID,
	}, nil
}

// ActiveSession loads a session and rejects deactivated ones.
func (s *SessionService) ActiveSession(ctx context.Context, sessionID string) (*models.ParticipantSession, error) {
	return activeSession(ctx, s.sessionRepo, sessionID)
}

// Rename changes the session's display name. Media already reserved keeps
// the name it was created with.
func (s *SessionService) Rename(ctx context.Context, sessionID, displayName string) (*models.ParticipantSession, error) {
	if _, err := activeSession(ctx, s.sessionRepo, sessionID); err != nil {
		return nil, err
	}

	err := s.sessionRepo.Rename(ctx, sessionID, displayNamePtr(displayName), s.clock())
	if errors.Is(err, repository.ErrSessionInactive) {
		return nil, apperr.Forbidden("session has been deactivated")
	}
	if err != nil {
		return nil, fmt.Errorf("rename session: %w", err)
	}
	return s.sessionRepo.GetByID(ctx, sessionID)
}

// ListSessions returns every session of an event owned by organizerID.
func (s *SessionService) ListSessions(ctx context.Context, organizerID, eventID string) ([]models.ParticipantSession, error) {
	if _, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID); err != nil {
		return nil, err
	}
	return s.sessionRepo.ListByEvent(ctx, eventID)
}

// Deactivate turns a session off for good. Its participant slot is released;
// its media stays in place. Deactivating an inactive session is a no-op.
func (s *SessionService) Deactivate(ctx context.Context, organizerID, eventID, sessionID string) error {
	if _, err := ownedEvent(ctx, s.eventRepo, organizerID, eventID); err != nil {
		return err
	}

	changed, err := s.sessionRepo.Deactivate(ctx, eventID, sessionID, s.clock())
	if err != nil {
		return fmt.Errorf("deactivate session: %w", err)
	}
	if changed {
		s.logger.Info("session deactivated",
			zap.String("event_id", eventID),
			zap.String("session_id", sessionID),
		)
		return nil
	}

	session, err := s.sessionRepo.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && session.EventID != eventID) {
		return apperr.NotFound("session not found")
	}
	return err
}

func activeSession(ctx context.Context, sessionRepo *repository.SessionRepository, sessionID string) (*models.ParticipantSession, error) {
	session, err := sessionRepo.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("session not found")
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	if !session.Active {
		return nil, apperr.Forbidden("session has been deactivated")
	}
	return session, nil
}

func displayNamePtr(raw string) *string {
	name := models.NormalizeUploaderName(raw)
	if name == "" {
		return nil
	}
	return &name
}
