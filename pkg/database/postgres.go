package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

// Config returns the gorm settings shared by production and test databases.
func Config() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func NewDatabase(databaseURL string, logger *zap.Logger) (*gorm.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	db, err := gorm.Open(postgres.Open(databaseURL), Config())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	logger.Info("database connected", zap.String("dialect", db.Dialector.Name()))
	return db, nil
}

// RunMigrations creates or updates every table the service owns.
func RunMigrations(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Event{},
		&models.ParticipantSession{},
		&models.MediaItem{},
		&models.FacetCounter{},
	)
}
