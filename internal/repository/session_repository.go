package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) WithTx(tx *gorm.DB) *SessionRepository {
	return &SessionRepository{db: tx}
}

// ReserveParticipantSlot inserts s only if the event has fewer than ceiling
// active sessions. Count and insert are one statement, run under a lock on the
// event row; the active-session count is never stored anywhere.
func (r *SessionRepository) ReserveParticipantSlot(ctx context.Context, s *models.ParticipantSession, ceiling int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockScope(tx, "events", s.EventID); err != nil {
			return err
		}

		query := fmt.Sprintf(`
			INSERT INTO participant_sessions (id, event_id, display_name, active, created_at, updated_at, last_active_at)
			SELECT %s, %s, %s, %s, %s, %s, %s
			WHERE (
				SELECT COUNT(*) FROM participant_sessions
				WHERE event_id = ? AND active = ?
			) < ?`,
			param(tx, "varchar"), param(tx, "varchar"), param(tx, "varchar"), param(tx, "boolean"),
			param(tx, "timestamptz"), param(tx, "timestamptz"), param(tx, "timestamptz"),
		)

		res := tx.Exec(query,
			s.ID, s.EventID, s.DisplayName, true, s.CreatedAt, s.UpdatedAt, s.LastActiveAt,
			s.EventID, true, ceiling,
		)
		if res.Error != nil {
			return fmt.Errorf("insert participant session: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCapacityExceeded
		}
		s.Active = true
		return nil
	})
}

func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.ParticipantSession, error) {
	var session models.ParticipantSession
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&session).Error; err != nil {
		return nil, notFound(err)
	}
	return &session, nil
}

func (r *SessionRepository) ListByEvent(ctx context.Context, eventID string) ([]models.ParticipantSession, error) {
	var sessions []models.ParticipantSession
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at").
		Find(&sessions).Error
	return sessions, err
}

func (r *SessionRepository) CountActive(ctx context.Context, eventID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.ParticipantSession{}).
		Where("event_id = ? AND active = ?", eventID, true).
		Count(&count).Error
	return count, err
}

// Rename changes the session's display name. Media keeps its snapshot.
func (r *SessionRepository) Rename(ctx context.Context, id string, displayName *string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.ParticipantSession{}).
		Where("id = ? AND active = ?", id, true).
		Updates(map[string]interface{}{
			"display_name":   displayName,
			"updated_at":     now,
			"last_active_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrSessionInactive
	}
	return nil
}

func (r *SessionRepository) Touch(ctx context.Context, id string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.ParticipantSession{}).
		Where("id = ?", id).
		UpdateColumn("last_active_at", now).Error
}

// Deactivate is one-way: it only matches a session that is still active.
func (r *SessionRepository) Deactivate(ctx context.Context, eventID, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.ParticipantSession{}).
		Where("id = ? AND event_id = ? AND active = ?", id, eventID, true).
		Updates(map[string]interface{}{
			"active":     false,
			"updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}
