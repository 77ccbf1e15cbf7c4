package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/repository"
	"github.com/sefazor/guestdrop-backend/internal/service"
	"github.com/sefazor/guestdrop-backend/internal/testutil"
	"github.com/sefazor/guestdrop-backend/pkg/jwt"
	"github.com/sefazor/guestdrop-backend/pkg/qrcode"
	"github.com/sefazor/guestdrop-backend/pkg/storage"
)

const jobSecret = "job-secret"

type testApp struct {
	app    *fiber.App
	db     *gorm.DB
	store  *storage.MemoryStore
	tokens *jwt.Issuer
	media  *repository.MediaRepository
}

// Tokens are verified against the wall clock, so fixtures are built around
// the real current day.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	db := testutil.NewTestDB(t)
	clock := testutil.NewClock(time.Now())
	logger := zap.NewNop()

	tx := repository.NewTransactor(db)
	eventRepo := repository.NewEventRepository(db)
	sessionRepo := repository.NewSessionRepository(db)
	mediaRepo := repository.NewMediaRepository(db)
	facetRepo := repository.NewFacetRepository(db)
	store := storage.NewMemoryStore("test-bucket")
	tokens := jwt.NewIssuer("test-secret", "guestdrop-test")

	facets := service.NewFacetService(tx, eventRepo, mediaRepo, facetRepo, clock.Now, logger)
	jobs := service.NewJobRegistry(
		service.NewOrphanReaper(mediaRepo, store, 45*time.Minute, clock.Now, logger),
		service.NewRetentionSweeper(tx, eventRepo, mediaRepo, facetRepo, facets, store, 720*time.Hour, clock.Now, logger),
		service.NewLifecycleSync(eventRepo, clock.Now, logger),
		facets, 100, logger,
	)

	app := NewApp(RouterConfig{
		Tokens:            tokens,
		InternalJobSecret: jobSecret,
		CORSOrigins:       "*",
		Events:            service.NewEventService(eventRepo, qrcode.NewQRService("https://guestdrop.test"), clock.Now, logger),
		Sessions:          service.NewSessionService(eventRepo, sessionRepo, tokens, clock.Now, logger),
		Uploads:           service.NewUploadService(tx, eventRepo, sessionRepo, mediaRepo, facetRepo, store, 30*time.Minute, clock.Now, logger),
		Media:             service.NewMediaService(eventRepo, sessionRepo, mediaRepo, store, time.Hour, clock.Now, logger),
		Facets:            facets,
		Jobs:              jobs,
		Logger:            logger,
	})

	return &testApp{app: app, db: db, store: store, tokens: tokens, media: mediaRepo}
}

func (a *testApp) liveEvent(t *testing.T, opts ...testutil.EventOption) *models.Event {
	t.Helper()
	today := time.Now().UTC().Truncate(24 * time.Hour)
	opts = append([]testutil.EventOption{testutil.WithDates(today, today.Add(24*time.Hour))}, opts...)
	return testutil.CreateEvent(t, a.db, opts...)
}

func (a *testApp) organizerToken(t *testing.T, id string) string {
	t.Helper()
	token, err := a.tokens.OrganizerToken(id, time.Now())
	require.NoError(t, err)
	return token
}

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func (a *testApp) do(t *testing.T, method, path, token string, body interface{}) (int, envelope) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &env))
	}
	return resp.StatusCode, env
}

func (a *testApp) join(t *testing.T, event *models.Event, name string) models.JoinResponse {
	t.Helper()
	status, env := a.do(t, http.MethodPost, "/api/join/"+event.Slug, "", models.JoinRequest{DisplayName: name})
	require.Equal(t, http.StatusCreated, status, env.Error)

	var resp models.JoinResponse
	require.NoError(t, json.Unmarshal(env.Data, &resp))
	return resp
}

func TestHealth(t *testing.T) {
	a := newTestApp(t)

	status, env := a.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)
}

func TestJoin(t *testing.T) {
	a := newTestApp(t)

	t.Run("issues a guest token", func(t *testing.T) {
		event := a.liveEvent(t)
		resp := a.join(t, event, "Ada")

		assert.NotEmpty(t, resp.Token)
		assert.Equal(t, event.ID, resp.EventID)
		assert.Equal(t, "Ada", resp.Session.Name())
	})

	t.Run("full event returns capacity exceeded", func(t *testing.T) {
		event := a.liveEvent(t, testutil.WithCeilings(1, 5))
		a.join(t, event, "first")

		status, env := a.do(t, http.MethodPost, "/api/join/"+event.Slug, "", nil)
		assert.Equal(t, http.StatusConflict, status)
		assert.Equal(t, "CAPACITY_EXCEEDED", env.Code)
	})

	t.Run("unknown slug", func(t *testing.T) {
		status, env := a.do(t, http.MethodPost, "/api/join/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, status)
		assert.Equal(t, "NOT_FOUND", env.Code)
	})

	t.Run("event not open yet", func(t *testing.T) {
		future := time.Now().UTC().Truncate(24 * time.Hour).Add(10 * 24 * time.Hour)
		event := testutil.CreateEvent(t, a.db, testutil.WithDates(future, future.Add(24*time.Hour)))

		status, env := a.do(t, http.MethodPost, "/api/join/"+event.Slug, "", nil)
		assert.Equal(t, http.StatusForbidden, status)
		assert.Equal(t, "INVALID_LIFECYCLE_STATE", env.Code)
	})
}

func TestGuestUploadFlow(t *testing.T) {
	a := newTestApp(t)
	event := a.liveEvent(t)
	guest := a.join(t, event, "Ada")

	status, env := a.do(t, http.MethodPost, "/api/guest/uploads", guest.Token, models.ReserveUploadRequest{
		MimeType:  "image/jpeg",
		SizeBytes: 2048,
		Tags:      []string{"Cake"},
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	var resv models.ReserveUploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &resv))
	assert.NotEmpty(t, resv.UploadURL)
	assert.Equal(t, models.MediaStatusPending, resv.Media.Status)

	finalizePath := "/api/guest/uploads/" + resv.Media.ID + "/finalize"

	status, env = a.do(t, http.MethodPost, finalizePath, guest.Token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, status)
	assert.Equal(t, "UPLOAD_NOT_VERIFIED", env.Code)

	a.store.Put(service.OriginalPath(event.ID, guest.Session.ID, resv.Media.ID, "jpg"), 2048)

	status, env = a.do(t, http.MethodPost, finalizePath, guest.Token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	var item models.MediaResponse
	require.NoError(t, json.Unmarshal(env.Data, &item))
	assert.Equal(t, models.MediaStatusUploaded, item.Status)

	status, env = a.do(t, http.MethodPost, finalizePath, guest.Token, nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "STATE_CONFLICT", env.Code)

	status, env = a.do(t, http.MethodGet, "/api/guest/media", guest.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var mine []models.MediaResponse
	require.NoError(t, json.Unmarshal(env.Data, &mine))
	assert.Len(t, mine, 1)
}

func TestGuestUploadRejections(t *testing.T) {
	a := newTestApp(t)
	event := a.liveEvent(t)
	guest := a.join(t, event, "Ada")

	status, env := a.do(t, http.MethodPost, "/api/guest/uploads", guest.Token, models.ReserveUploadRequest{
		MimeType:  "application/zip",
		SizeBytes: 10,
	})
	assert.Equal(t, http.StatusUnsupportedMediaType, status)
	assert.Equal(t, "UNSUPPORTED_TYPE", env.Code)

	status, env = a.do(t, http.MethodPost, "/api/guest/uploads", guest.Token, map[string]interface{}{
		"mime_type": "image/jpeg",
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "INVALID_INPUT", env.Code)
}

func TestGuestRename(t *testing.T) {
	a := newTestApp(t)
	event := a.liveEvent(t)
	guest := a.join(t, event, "Ada")

	status, env := a.do(t, http.MethodPut, "/api/guest/session", guest.Token, models.RenameSessionRequest{DisplayName: "Grace"})
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = a.do(t, http.MethodGet, "/api/guest/session", guest.Token, nil)
	require.Equal(t, http.StatusOK, status)
	var session models.ParticipantSession
	require.NoError(t, json.Unmarshal(env.Data, &session))
	assert.Equal(t, "Grace", session.Name())
}

func TestAuth(t *testing.T) {
	a := newTestApp(t)
	event := a.liveEvent(t)
	guest := a.join(t, event, "Ada")

	status, env := a.do(t, http.MethodGet, "/api/guest/session", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	status, _ = a.do(t, http.MethodGet, "/api/guest/session", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env = a.do(t, http.MethodGet, "/api/events", guest.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)

	status, _ = a.do(t, http.MethodGet, "/api/guest/session", a.organizerToken(t, "organizer-1"), nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestOrganizerRoutes(t *testing.T) {
	a := newTestApp(t)
	token := a.organizerToken(t, "organizer-1")
	today := time.Now().UTC().Format("2006-01-02")

	status, env := a.do(t, http.MethodPost, "/api/events", token, models.EventRequest{
		Title:                    "Wedding",
		MaxParticipants:          10,
		MaxUploadsPerParticipant: 5,
		StartDate:                today,
		EndDate:                  today,
	})
	require.Equal(t, http.StatusCreated, status, env.Error)

	var created models.EventResponse
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotEmpty(t, created.Slug)
	assert.Equal(t, models.CompressionStandard, created.CompressionMode)

	status, env = a.do(t, http.MethodGet, "/api/events", token, nil)
	require.Equal(t, http.StatusOK, status)
	var list []models.EventResponse
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)

	status, _ = a.do(t, http.MethodGet, "/api/events/"+created.ID, a.organizerToken(t, "someone-else"), nil)
	assert.Equal(t, http.StatusForbidden, status)

	req := httptest.NewRequest(http.MethodGet, "/api/events/"+created.ID+"/qr", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/png", resp.Header.Get("Content-Type"))
	resp.Body.Close()

	status, env = a.do(t, http.MethodPost, "/api/events/"+created.ID+"/archive", token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "INVALID_LIFECYCLE_STATE", env.Code)
}

func TestOrganizerModeration(t *testing.T) {
	a := newTestApp(t)
	token := a.organizerToken(t, "organizer-1")
	event := a.liveEvent(t)
	guest := a.join(t, event, "Ada")

	var session models.ParticipantSession
	require.NoError(t, a.db.First(&session, "id = ?", guest.Session.ID).Error)
	item := testutil.CreateMedia(t, a.db, &session, models.MediaStatusUploaded, "cake")

	base := "/api/events/" + event.ID
	status, env := a.do(t, http.MethodGet, base+"/media", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)
	var page service.MediaPage
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)

	status, env = a.do(t, http.MethodPost, base+"/media/"+item.ID+"/hide", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = a.do(t, http.MethodGet, base+"/media", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 0, page.Total)

	status, env = a.do(t, http.MethodGet, base+"/media?include_hidden=true", token, nil)
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &page))
	assert.EqualValues(t, 1, page.Total)

	status, _ = a.do(t, http.MethodPost, base+"/media/"+item.ID+"/unhide", token, nil)
	assert.Equal(t, http.StatusOK, status)

	status, env = a.do(t, http.MethodGet, base+"/sessions", token, nil)
	require.Equal(t, http.StatusOK, status)
	var sessions []models.ParticipantSession
	require.NoError(t, json.Unmarshal(env.Data, &sessions))
	assert.Len(t, sessions, 1)

	status, env = a.do(t, http.MethodPost, base+"/sessions/"+guest.Session.ID+"/deactivate", token, nil)
	require.Equal(t, http.StatusOK, status, env.Error)

	status, env = a.do(t, http.MethodGet, "/api/guest/session", guest.Token, nil)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Code)
}

func TestInternalJobs(t *testing.T) {
	a := newTestApp(t)

	status, env := a.do(t, http.MethodPost, "/internal/jobs/orphans", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	status, env = a.do(t, http.MethodPost, "/internal/jobs/orphans?limit=10", jobSecret, nil)
	assert.Equal(t, http.StatusOK, status, env.Error)
	assert.True(t, env.Success)

	status, env = a.do(t, http.MethodPost, "/internal/jobs/nope", jobSecret, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Code)
}
