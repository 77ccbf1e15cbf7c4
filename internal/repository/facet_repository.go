package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

// FacetRepository maintains the per-event uploader and tag counters used to
// populate gallery filters. The counters are an index, not a record: Replace
// rebuilds them from media rows.
type FacetRepository struct {
	db *gorm.DB
}

func NewFacetRepository(db *gorm.DB) *FacetRepository {
	return &FacetRepository{db: db}
}

func (r *FacetRepository) WithTx(tx *gorm.DB) *FacetRepository {
	return &FacetRepository{db: tx}
}

// Increment adds one to each key, creating missing rows.
func (r *FacetRepository) Increment(ctx context.Context, eventID string, keys []models.FacetKey, now time.Time) error {
	db := r.db.WithContext(ctx)
	for _, key := range keys {
		row := models.FacetCounter{
			EventID:    eventID,
			Kind:       key.Kind,
			Value:      key.Value,
			MediaCount: 1,
			UpdatedAt:  now,
		}
		err := db.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "event_id"}, {Name: "kind"}, {Name: "value"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"media_count": gorm.Expr("facet_counters.media_count + 1"),
				"updated_at":  now,
			}),
		}).Create(&row).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// Decrement subtracts one from each key without going below zero and removes
// rows that reach zero.
func (r *FacetRepository) Decrement(ctx context.Context, eventID string, keys []models.FacetKey, now time.Time) error {
	db := r.db.WithContext(ctx)
	for _, key := range keys {
		err := db.Model(&models.FacetCounter{}).
			Where("event_id = ? AND kind = ? AND value = ? AND media_count > 0", eventID, string(key.Kind), key.Value).
			Updates(map[string]interface{}{
				"media_count": gorm.Expr("media_count - 1"),
				"updated_at":  now,
			}).Error
		if err != nil {
			return err
		}

		err = db.Where("event_id = ? AND kind = ? AND value = ? AND media_count <= 0", eventID, string(key.Kind), key.Value).
			Delete(&models.FacetCounter{}).Error
		if err != nil {
			return err
		}
	}
	return nil
}

// List returns the counters of one event, most used first.
func (r *FacetRepository) List(ctx context.Context, eventID string) ([]models.FacetCounter, error) {
	var counters []models.FacetCounter
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND media_count > 0", eventID).
		Order("kind").
		Order("media_count DESC").
		Order("value").
		Find(&counters).Error
	return counters, err
}

// Replace drops the counters in scope and writes counters in their place. An
// empty eventID replaces the whole ledger. Callers run it in a transaction.
func (r *FacetRepository) Replace(ctx context.Context, eventID string, counters []models.FacetCounter) error {
	db := r.db.WithContext(ctx)

	del := db.Session(&gorm.Session{AllowGlobalUpdate: true})
	if eventID != "" {
		del = del.Where("event_id = ?", eventID)
	}
	if err := del.Delete(&models.FacetCounter{}).Error; err != nil {
		return err
	}

	if len(counters) == 0 {
		return nil
	}
	return db.CreateInBatches(&counters, 500).Error
}
