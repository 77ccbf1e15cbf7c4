package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) WithTx(tx *gorm.DB) *MediaRepository {
	return &MediaRepository{db: tx}
}

// ReserveUploadSlot inserts m as pending only if its session is active and
// holds fewer than ceiling items in a capacity status. The session row is
// locked for the duration of the count and insert.
func (r *MediaRepository) ReserveUploadSlot(ctx context.Context, m *models.MediaItem, ceiling int) error {
	if m.Tags == nil {
		m.Tags = models.TagSet{}
	}
	tagsJSON, err := json.Marshal(m.Tags)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockScope(tx, "participant_sessions", m.SessionID); err != nil {
			return err
		}

		var active []bool
		if err := tx.Raw("SELECT active FROM participant_sessions WHERE id = ?", m.SessionID).Scan(&active).Error; err != nil {
			return err
		}
		if len(active) == 0 {
			return ErrNotFound
		}
		if !active[0] {
			return ErrSessionInactive
		}

		query := fmt.Sprintf(`
			INSERT INTO media_items (
				id, event_id, session_id, status, mime_type, size_bytes,
				original_path, thumbnail_path, uploader_name, tags,
				created_at, updated_at, delete_attempts, last_delete_error
			)
			SELECT %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, 0, ''
			WHERE (
				SELECT COUNT(*) FROM media_items
				WHERE session_id = ? AND status IN ?
			) < ?`,
			param(tx, "varchar"), param(tx, "varchar"), param(tx, "varchar"), param(tx, "varchar"),
			param(tx, "varchar"), param(tx, "bigint"), param(tx, "varchar"), param(tx, "varchar"),
			param(tx, "varchar"), param(tx, "json"), param(tx, "timestamptz"), param(tx, "timestamptz"),
		)

		res := tx.Exec(query,
			m.ID, m.EventID, m.SessionID, string(models.MediaStatusPending), m.MimeType, m.SizeBytes,
			m.OriginalPath, m.ThumbnailPath, m.UploaderName, string(tagsJSON), m.CreatedAt, m.UpdatedAt,
			m.SessionID, statusStrings(models.CapacityStatuses), ceiling,
		)
		if res.Error != nil {
			return fmt.Errorf("insert media item: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCapacityExceeded
		}

		m.Status = models.MediaStatusPending
		return tx.Model(&models.ParticipantSession{}).
			Where("id = ?", m.SessionID).
			UpdateColumn("last_active_at", m.CreatedAt).Error
	})
}

func (r *MediaRepository) GetByID(ctx context.Context, id string) (*models.MediaItem, error) {
	var media models.MediaItem
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&media).Error; err != nil {
		return nil, notFound(err)
	}
	return &media, nil
}

func (r *MediaRepository) CountInCapacity(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("session_id = ? AND status IN ?", sessionID, statusStrings(models.CapacityStatuses)).
		Count(&count).Error
	return count, err
}

// MarkUploaded flips a pending row owned by sessionID to uploaded. A row that
// is no longer pending yields ErrStateConflict, so two finalize calls can
// never both succeed.
func (r *MediaRepository) MarkUploaded(ctx context.Context, id, sessionID string, size int64, thumbnailPath string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("id = ? AND session_id = ? AND status = ?", id, sessionID, string(models.MediaStatusPending)).
		Updates(map[string]interface{}{
			"status":         string(models.MediaStatusUploaded),
			"size_bytes":     size,
			"thumbnail_path": thumbnailPath,
			"uploaded_at":    now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

// TransitionStatus moves a row of eventID from one status to another, failing
// with ErrStateConflict when the row is not in the expected status.
func (r *MediaRepository) TransitionStatus(ctx context.Context, eventID, id string, from, to models.MediaStatus, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("id = ? AND event_id = ? AND status = ?", id, eventID, string(from)).
		Updates(map[string]interface{}{
			"status":     string(to),
			"updated_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStateConflict
	}
	return nil
}

func (r *MediaRepository) ListBySession(ctx context.Context, sessionID string) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := r.db.WithContext(ctx).
		Where("session_id = ? AND status <> ?", sessionID, string(models.MediaStatusExpired)).
		Order("created_at DESC").
		Find(&items).Error
	return items, err
}

// ListByEvent returns the organizer gallery: uploaded media, plus hidden
// media when asked for, newest first.
func (r *MediaRepository) ListByEvent(ctx context.Context, eventID string, filter models.MediaFilter) ([]models.MediaItem, int64, error) {
	statuses := []string{string(models.MediaStatusUploaded)}
	if filter.IncludeHidden {
		statuses = append(statuses, string(models.MediaStatusHidden))
	}

	q := r.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("event_id = ? AND status IN ?", eventID, statuses)
	if filter.Uploader != "" {
		q = q.Where("uploader_name = ?", models.NormalizeUploaderName(filter.Uploader))
	}
	if filter.Tag != "" {
		q = r.whereHasTag(q, models.NormalizeTag(filter.Tag))
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []models.MediaItem
	err := q.Order("created_at DESC").Order("id").
		Limit(filter.Limit).
		Offset(filter.Offset).
		Find(&items).Error
	return items, total, err
}

func (r *MediaRepository) whereHasTag(q *gorm.DB, tag string) *gorm.DB {
	if isPostgres(r.db) {
		tagJSON, _ := json.Marshal([]string{tag})
		return q.Where("CAST(tags AS jsonb) @> CAST(? AS jsonb)", string(tagJSON))
	}
	return q.Where("EXISTS (SELECT 1 FROM json_each(media_items.tags) WHERE json_each.value = ?)", tag)
}

// ListOrphans returns pending rows created before olderThan.
func (r *MediaRepository) ListOrphans(ctx context.Context, olderThan time.Time, limit int) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", string(models.MediaStatusPending), olderThan).
		Order("created_at").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// ExpireIfPending flips a pending row to expired. It reports false when the
// row was finalized or expired by someone else first.
func (r *MediaRepository) ExpireIfPending(ctx context.Context, id string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("id = ? AND status = ?", id, string(models.MediaStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(models.MediaStatusExpired),
			"updated_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// ListRetentionCandidates returns undeleted media of events whose end date is
// at or before cutoff. Pending rows are left to the orphan reaper. Rows with
// fewer failed delete attempts come first.
func (r *MediaRepository) ListRetentionCandidates(ctx context.Context, cutoff time.Time, limit int) ([]models.MediaItem, error) {
	var items []models.MediaItem
	err := r.db.WithContext(ctx).
		Joins("JOIN events ON events.id = media_items.event_id").
		Where("media_items.deleted_at IS NULL AND media_items.status <> ? AND events.end_date <= ?",
			string(models.MediaStatusPending), cutoff).
		Order("media_items.delete_attempts").
		Order("media_items.created_at").
		Limit(limit).
		Find(&items).Error
	return items, err
}

// MarkDeleted records confirmed blob removal and makes the row terminal. It
// matches only while the row still has the status the caller observed.
func (r *MediaRepository) MarkDeleted(ctx context.Context, id string, observed models.MediaStatus, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("id = ? AND status = ? AND deleted_at IS NULL", id, string(observed)).
		Updates(map[string]interface{}{
			"status":            string(models.MediaStatusExpired),
			"deleted_at":        now,
			"last_delete_error": "",
			"updated_at":        now,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *MediaRepository) RecordDeleteFailure(ctx context.Context, id string, cause string, now time.Time) error {
	return r.db.WithContext(ctx).Model(&models.MediaItem{}).
		Where("id = ? AND deleted_at IS NULL", id).
		Updates(map[string]interface{}{
			"delete_attempts":   gorm.Expr("delete_attempts + 1"),
			"last_delete_error": cause,
			"updated_at":        now,
		}).Error
}

// EachFacetSource calls fn with batches of media that contribute to facet
// counters, optionally scoped to one event.
func (r *MediaRepository) EachFacetSource(ctx context.Context, eventID string, batchSize int, fn func([]models.MediaItem) error) error {
	q := r.db.WithContext(ctx).
		Select("id", "event_id", "status", "uploader_name", "tags").
		Where("status IN ?", statusStrings(models.FacetStatuses))
	if eventID != "" {
		q = q.Where("event_id = ?", eventID)
	}

	var batch []models.MediaItem
	res := q.FindInBatches(&batch, batchSize, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	return res.Error
}
