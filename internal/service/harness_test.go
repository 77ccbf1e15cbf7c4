package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/internal/testutil"
	"github.com/sefazor/guestdrop-backend/pkg/jwt"
	"github.com/sefazor/guestdrop-backend/pkg/qrcode"
	"github.com/sefazor/guestdrop-backend/pkg/storage"
)

const (
	testUploadTTL     = 30 * time.Minute
	testOrphanTimeout = 45 * time.Minute
	testRetention     = 720 * time.Hour
	organizerID       = "organizer-1"
)

var (
	// duringEvent is inside the default fixture event's active window.
	duringEvent = time.Date(2026, 2, 14, 12, 0, 0, 0, time.UTC)
	// pastRetention is more than the retention period after the fixture closes.
	pastRetention = time.Date(2026, 3, 20, 0, 0, 0, 0, time.UTC)
)

type harness struct {
	db      *gorm.DB
	clock   *testutil.Clock
	store   *storage.MemoryStore
	tokens  *jwt.Issuer
	events  *repository.EventRepository
	media   *repository.MediaRepository
	facetDB *repository.FacetRepository

	eventSvc   *EventService
	sessionSvc *SessionService
	uploadSvc  *UploadService
	mediaSvc   *MediaService
	facetSvc   *FacetService
	reaper     *OrphanReaper
	sweeper    *RetentionSweeper
	sync       *LifecycleSync
	jobs       *JobRegistry
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db := testutil.NewTestDB(t)
	clock := testutil.NewClock(duringEvent)
	logger := zap.NewNop()

	tx := repository.NewTransactor(db)
	eventRepo := repository.NewEventRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	facetRepo := repository.NewFacetRepository(db)
	store := storage.NewMemoryStore("test-bucket")
	tokens := jwt.NewIssuer("test-secret", "guestdrop-test")

	h := &harness{
		db:      db,
		clock:   clock,
		store:   store,
		tokens:  tokens,
		events:  eventRepo,
		media:   mediaRepo,
		facetDB: facetRepo,
	}
	h.eventSvc = NewEventService(eventRepo, qrcode.NewQRService("https://guestdrop.test"), clock.Now, logger)
	h.sessionSvc = NewSessionService(eventRepo, sessionRepo, tokens, clock.Now, logger)
	h.uploadSvc = NewUploadService(tx, eventRepo, sessionRepo, mediaRepo, facetRepo, store, testUploadTTL, clock.Now, logger)
	h.mediaSvc = NewMediaService(eventRepo, sessionRepo, mediaRepo, store, time.Hour, clock.Now, logger)
	h.facetSvc = NewFacetService(tx, eventRepo, mediaRepo, facetRepo, clock.Now, logger)
	h.reaper = NewOrphanReaper(mediaRepo, store, testOrphanTimeout, clock.Now, logger)
	h.sweeper = NewRetentionSweeper(tx, eventRepo, mediaRepo, facetRepo, h.facetSvc, store, testRetention, clock.Now, logger)
	h.sync = NewLifecycleSync(eventRepo, clock.Now, logger)
	h.jobs = NewJobRegistry(h.reaper, h.sweeper, h.sync, h.facetSvc, 100, logger)
	return h
}

func (h *harness) event(t *testing.T, opts ...testutil.EventOption) *models.Event {
	t.Helper()
	return testutil.CreateEvent(t, h.db, opts...)
}

func (h *harness) join(t *testing.T, event *models.Event, name string) *models.ParticipantSession {
	t.Helper()
	resp, err := h.sessionSvc.Join(context.Background(), event.Slug, models.JoinRequest{DisplayName: name})
	require.NoError(t, err)
	return &resp.Session
}

// upload reserves and finalizes one JPEG for session.
func (h *harness) upload(t *testing.T, session *models.ParticipantSession, tags ...string) *models.MediaItem {
	t.Helper()
	ctx := context.Background()

	resv, err := h.uploadSvc.Reserve(ctx, session.ID, models.ReserveUploadRequest{
		MimeType:  "image/jpeg",
		SizeBytes: 4096,
		Tags:      tags,
	})
	require.NoError(t, err)

	item, err := h.media.GetByID(ctx, resv.Media.ID)
	require.NoError(t, err)
	h.store.Put(item.OriginalPath, 4096)

	item, err = h.uploadSvc.Finalize(ctx, session.ID, item.ID)
	require.NoError(t, err)
	return item
}

func (h *harness) facets(t *testing.T, eventID string) map[models.FacetKey]int64 {
	t.Helper()
	counters, err := h.facetDB.List(context.Background(), eventID)
	require.NoError(t, err)

	out := make(map[models.FacetKey]int64, len(counters))
	for _, c := range counters {
		out[models.FacetKey{Kind: c.Kind, Value: c.Value}] = c.MediaCount
	}
	return out
}

func uploader(name string) models.FacetKey {
	return models.FacetKey{Kind: models.FacetUploader, Value: name}
}

func tag(value string) models.FacetKey {
	return models.FacetKey{Kind: models.FacetTag, Value: value}
}
