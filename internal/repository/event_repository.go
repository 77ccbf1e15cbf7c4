package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) WithTx(tx *gorm.DB) *EventRepository {
	return &EventRepository{db: tx}
}

func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (r *EventRepository) GetBySlug(ctx context.Context, slug string) (*models.Event, error) {
	var event models.Event
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&event).Error; err != nil {
		return nil, notFound(err)
	}
	return &event, nil
}

func (r *EventRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Event{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *EventRepository) ListByOrganizer(ctx context.Context, organizerID string) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("organizer_id = ?", organizerID).
		Order("start_date DESC").
		Find(&events).Error
	return events, err
}

// Archive flips a closed event to archived. Archived and purged are one-way,
// so an already archived or purged row matches nothing.
func (r *EventRepository) Archive(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND status NOT IN ?", id, []string{string(models.EventStatusArchived), string(models.EventStatusPurged)}).
		Updates(map[string]interface{}{
			"status":      string(models.EventStatusArchived),
			"archived_at": now,
			"updated_at":  now,
		})
	return res.RowsAffected > 0, res.Error
}

// ListForLifecycleSync pages through draft and active events, ordered by ID.
// Closed events only change again through archive or purge.
func (r *EventRepository) ListForLifecycleSync(ctx context.Context, afterID string, limit int) ([]models.Event, error) {
	var events []models.Event
	err := r.db.WithContext(ctx).
		Where("status IN ? AND id > ?", []string{
			string(models.EventStatusDraft),
			string(models.EventStatusActive),
		}, afterID).
		Order("id").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// UpdateStatusIf writes status only if the row still holds the expected one.
func (r *EventRepository) UpdateStatusIf(ctx context.Context, id string, from, to models.EventStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Event{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// MarkPurged marks every event past the retention cutoff whose media has all
// been deleted from storage. Returns the number of events purged.
func (r *EventRepository) MarkPurged(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE events SET status = ?, purged_at = ?, updated_at = ?
		WHERE status <> ? AND end_date <= ?
		AND NOT EXISTS (
			SELECT 1 FROM media_items
			WHERE media_items.event_id = events.id AND media_items.deleted_at IS NULL
		)`,
		string(models.EventStatusPurged), now, now,
		string(models.EventStatusPurged), cutoff,
	)
	return res.RowsAffected, res.Error
}
