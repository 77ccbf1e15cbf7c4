// Package testutil provides databases, clocks and fixtures for package tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/pkg/database"
)

// NewTestDB opens a private in-memory SQLite database with every table
// migrated. One connection serializes all access, so concurrency tests on it
// cannot expose a lost race; use NewPostgresDB for that.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), database.Config())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// NewPostgresDB starts a disposable Postgres container. Tests using it only
// run when TEST_INTEGRATION is set.
func NewPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()
	container, err := postgres.Run(ctx,
		"docker.io/postgres:16-alpine",
		postgres.WithDatabase("guestdrop_test"),
		postgres.WithUsername("guestdrop"),
		postgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}

	db, err := database.NewDatabase(dsn, zap.NewNop())
	if err != nil {
		t.Fatalf("connect postgres: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if err := database.RunMigrations(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// Clock is a settable clock safe for concurrent use.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now.UTC()}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now.UTC()
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Date returns UTC midnight of the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// EventOption customizes a fixture event.
type EventOption func(*models.Event)

func WithCeilings(participants, uploads int) EventOption {
	return func(e *models.Event) {
		e.MaxParticipants = participants
		e.MaxUploadsPerParticipant = uploads
	}
}

func WithDates(start, end time.Time) EventOption {
	return func(e *models.Event) {
		e.StartDate = start
		e.EndDate = end
	}
}

func WithMode(mode models.CompressionMode) EventOption {
	return func(e *models.Event) {
		e.CompressionMode = mode
	}
}

func WithStatus(status models.EventStatus) EventOption {
	return func(e *models.Event) {
		e.Status = status
	}
}

// CreateEvent inserts an event running 2026-02-14 to 2026-02-15 with
// generous ceilings unless overridden.
func CreateEvent(t *testing.T, db *gorm.DB, opts ...EventOption) *models.Event {
	t.Helper()

	now := time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.NewString()
	event := &models.Event{
		ID:                       id,
		OrganizerID:              "organizer-1",
		Title:                    "Test Event",
		Slug:                     "ev-" + id[:8],
		MaxParticipants:          50,
		MaxUploadsPerParticipant: 20,
		CompressionMode:          models.CompressionStandard,
		StartDate:                Date(2026, time.February, 14),
		EndDate:                  Date(2026, time.February, 15),
		Status:                   models.EventStatusDraft,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	for _, opt := range opts {
		opt(event)
	}

	if err := db.Create(event).Error; err != nil {
		t.Fatalf("create event: %v", err)
	}
	return event
}

// CreateSession inserts an active session without going through capacity
// checks.
func CreateSession(t *testing.T, db *gorm.DB, eventID, displayName string) *models.ParticipantSession {
	t.Helper()

	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	session := &models.ParticipantSession{
		ID:           uuid.NewString(),
		EventID:      eventID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActiveAt: now,
	}
	if displayName != "" {
		session.DisplayName = &displayName
	}

	if err := db.Create(session).Error; err != nil {
		t.Fatalf("create session: %v", err)
	}
	return session
}

// CreateMedia inserts a media row in the given status without capacity checks.
func CreateMedia(t *testing.T, db *gorm.DB, session *models.ParticipantSession, status models.MediaStatus, tags ...string) *models.MediaItem {
	t.Helper()

	now := time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	id := uuid.NewString()
	item := &models.MediaItem{
		ID:           id,
		EventID:      session.EventID,
		SessionID:    session.ID,
		Status:       status,
		MimeType:     "image/jpeg",
		SizeBytes:    1024,
		OriginalPath: fmt.Sprintf("events/%s/%s/%s/original.jpg", session.EventID, session.ID, id),
		UploaderName: session.Name(),
		Tags:         models.TagSet(tags),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if item.Tags == nil {
		item.Tags = models.TagSet{}
	}
	if status != models.MediaStatusPending {
		item.UploadedAt = &now
	}

	if err := db.Create(item).Error; err != nil {
		t.Fatalf("create media: %v", err)
	}
	return item
}
