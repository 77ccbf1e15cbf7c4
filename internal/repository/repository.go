package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrStateConflict    = errors.New("row is not in the expected state")
	ErrSessionInactive  = errors.New("participant session is inactive")
)

// Transactor runs a function inside one store transaction. Repositories are
// bound to the transaction with their WithTx method.
type Transactor struct {
	db *gorm.DB
}

func NewTransactor(db *gorm.DB) *Transactor {
	return &Transactor{db: db}
}

func (t *Transactor) Do(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return t.db.WithContext(ctx).Transaction(fn)
}

func isPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == "postgres"
}

// param returns a placeholder for a value in a SELECT list. Postgres cannot
// infer parameter types there and needs an explicit cast; SQLite stores
// values as given.
func param(db *gorm.DB, sqlType string) string {
	if isPostgres(db) {
		return fmt.Sprintf("CAST(? AS %s)", sqlType)
	}
	return "?"
}

// lockScope takes an exclusive row lock on the scope row that guards a
// capacity count, so concurrent reservations for the same scope serialize.
// SQLite has a single writer and no row locks, so it only checks existence.
func lockScope(tx *gorm.DB, table, id string) error {
	query := fmt.Sprintf("SELECT id FROM %s WHERE id = ?", table)
	if isPostgres(tx) {
		query += " FOR UPDATE"
	}
	var ids []string
	if err := tx.Raw(query, id).Scan(&ids).Error; err != nil {
		return fmt.Errorf("lock %s row: %w", table, err)
	}
	if len(ids) == 0 {
		return ErrNotFound
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func statusStrings(statuses []models.MediaStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
