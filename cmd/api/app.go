package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/config"
	"github.com/sefazor/guestdrop-backend/internal/lifecycle"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/internal/service"
	"github.com/sefazor/guestdrop-backend/pkg/database"
	"github.com/sefazor/guestdrop-backend/pkg/jwt"
	"github.com/sefazor/guestdrop-backend/pkg/logger"
	"github.com/sefazor/guestdrop-backend/pkg/qrcode"
	"github.com/sefazor/guestdrop-backend/pkg/storage"
)

// components is everything the serve and job commands share.
type components struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *gorm.DB
	tokens *jwt.Issuer

	events    *service.EventService
	sessions  *service.SessionService
	uploads   *service.UploadService
	media     *service.MediaService
	facets    *service.FacetService
	jobs      *service.JobRegistry
	scheduler *service.Scheduler
}

func build(ctx context.Context) (*components, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}

	db, err := database.NewDatabase(cfg.DatabaseURL, log)
	if err != nil {
		return nil, err
	}
	if err := database.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	store, err := newBlobStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	clock := lifecycle.Clock(lifecycle.SystemClock)
	tokens := jwt.NewIssuer(cfg.JWTSecret, cfg.JWTIssuer)

	// Repositories
	tx := repository.NewTransactor(db)
	eventRepo := repository.NewEventRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	facetRepo := repository.NewFacetRepository(db)

	// Services
	c := &components{cfg: cfg, logger: log, db: db, tokens: tokens}
	c.events = service.NewEventService(eventRepo, qrcode.NewQRService(cfg.PublicBaseURL), clock, log)
	c.sessions = service.NewSessionService(eventRepo, sessionRepo, tokens, clock, log)
	c.uploads = service.NewUploadService(tx, eventRepo, sessionRepo, mediaRepo, facetRepo, store, cfg.UploadURLTTL, clock, log)
	c.media = service.NewMediaService(eventRepo, sessionRepo, mediaRepo, store, cfg.ReadURLTTL, clock, log)
	c.facets = service.NewFacetService(tx, eventRepo, mediaRepo, facetRepo, clock, log)

	// Background jobs
	reaper := service.NewOrphanReaper(mediaRepo, store, cfg.OrphanTimeout, clock, log)
	sweeper := service.NewRetentionSweeper(tx, eventRepo, mediaRepo, facetRepo, c.facets, store, cfg.RetentionPeriod, clock, log)
	sync := service.NewLifecycleSync(eventRepo, clock, log)
	c.jobs = service.NewJobRegistry(reaper, sweeper, sync, c.facets, cfg.Jobs.BatchSize, log)
	c.scheduler = service.NewScheduler(c.jobs, map[string]time.Duration{
		service.JobOrphans:   cfg.Jobs.OrphanInterval,
		service.JobRetention: cfg.Jobs.RetentionInterval,
		service.JobLifecycle: cfg.Jobs.LifecycleSyncInterval,
	}, log)

	return c, nil
}

func newBlobStore(ctx context.Context, cfg *config.Config, log *zap.Logger) (storage.BlobStore, error) {
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("using in-memory blob store; uploads are not persisted")
		return storage.NewMemoryStore("local"), nil
	default:
		store, err := storage.NewS3Store(ctx, storage.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			Region:          cfg.S3.Region,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize blob store: %w", err)
		}
		return store, nil
	}
}

func (c *components) close() {
	if sqlDB, err := c.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = c.logger.Sync()
}
