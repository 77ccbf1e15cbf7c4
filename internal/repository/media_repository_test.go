package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefazor/guestdrop-backend/internal/models"
	"github.com/sefazor/guestdrop-backend/internal/testutil"
)

func TestMarkUploaded_OnlyFromPending(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	event := testutil.CreateEvent(t, db)
	session := testutil.CreateSession(t, db, event.ID, "Ana")
	other := testutil.CreateSession(t, db, event.ID, "Ben")
	item := testutil.CreateMedia(t, db, session, models.MediaStatusPending)
	repo := NewMediaRepository(db)

	assert.ErrorIs(t, repo.MarkUploaded(ctx, item.ID, other.ID, 10, "", reservedAt), ErrStateConflict)

	require.NoError(t, repo.MarkUploaded(ctx, item.ID, session.ID, 4096, "thumb.jpg", reservedAt))
	assert.ErrorIs(t, repo.MarkUploaded(ctx, item.ID, session.ID, 4096, "thumb.jpg", reservedAt), ErrStateConflict)

	stored, err := repo.GetByID(ctx, item.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusUploaded, stored.Status)
	assert.Equal(t, int64(4096), stored.SizeBytes)
	assert.Equal(t, "thumb.jpg", stored.ThumbnailPath)
	require.NotNil(t, stored.UploadedAt)
	assert.True(t, stored.UploadedAt.Equal(reservedAt))
}

func TestTransitionStatus_HideUnhide(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	event := testutil.CreateEvent(t, db)
	session := testutil.CreateSession(t, db, event.ID, "Ana")
	item := testutil.CreateMedia(t, db, session, models.MediaStatusUploaded)
	repo := NewMediaRepository(db)

	require.NoError(t, repo.TransitionStatus(ctx, event.ID, item.ID, models.MediaStatusUploaded, models.MediaStatusHidden, reservedAt))
	assert.ErrorIs(t, repo.TransitionStatus(ctx, event.ID, item.ID, models.MediaStatusUploaded, models.MediaStatusHidden, reservedAt), ErrStateConflict)
	require.NoError(t, repo.TransitionStatus(ctx, event.ID, item.ID, models.MediaStatusHidden, models.MediaStatusUploaded, reservedAt))

	assert.ErrorIs(t, repo.TransitionStatus(ctx, "other-event", item.ID, models.MediaStatusUploaded, models.MediaStatusHidden, reservedAt), ErrStateConflict)
}

func TestListByEvent_Filters(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	event := testutil.CreateEvent(t, db)
	ana := testutil.CreateSession(t, db, event.ID, "Ana")
	ben := testutil.CreateSession(t, db, event.ID, "Ben")

	testutil.CreateMedia(t, db, ana, models.MediaStatusUploaded, "cake", "dance floor")
	testutil.CreateMedia(t, db, ana, models.MediaStatusHidden, "cake")
	testutil.CreateMedia(t, db, ana, models.MediaStatusPending, "cake")
	testutil.CreateMedia(t, db, ben, models.MediaStatusUploaded, "dance floor")
	testutil.CreateMedia(t, db, ben, models.MediaStatusExpired, "cake")

	repo := NewMediaRepository(db)

	items, total, err := repo.ListByEvent(ctx, event.ID, models.MediaFilter{Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	_, total, err = repo.ListByEvent(ctx, event.ID, models.MediaFilter{IncludeHidden: true, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	items, total, err = repo.ListByEvent(ctx, event.ID, models.MediaFilter{Uploader: " Ana ", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)
	assert.Equal(t, ana.ID, items[0].SessionID)

	items, total, err = repo.ListByEvent(ctx, event.ID, models.MediaFilter{Tag: "Dance  Floor", Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 2)

	_, total, err = repo.ListByEvent(ctx, event.ID, models.MediaFilter{Tag: "cake", IncludeHidden: true, Limit: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)

	items, total, err = repo.ListByEvent(ctx, event.ID, models.MediaFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, items, 1)
}

func TestListOrphans_AndExpireIfPending(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	event := testutil.CreateEvent(t, db)
	session := testutil.CreateSession(t, db, event.ID, "Ana")
	pending := testutil.CreateMedia(t, db, session, models.MediaStatusPending)
	testutil.CreateMedia(t, db, session, models.MediaStatusUploaded)
	repo := NewMediaRepository(db)

	orphans, err := repo.ListOrphans(ctx, pending.CreatedAt, 10)
	require.NoError(t, err)
	assert.Empty(t, orphans, "created_at must be strictly older")

	orphans, err = repo.ListOrphans(ctx, pending.CreatedAt.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, orphans, 1)
	assert.Equal(t, pending.ID, orphans[0].ID)

	ok, err := repo.ExpireIfPending(ctx, pending.ID, reservedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExpireIfPending(ctx, pending.ID, reservedAt)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRetentionCandidates_AndDeletionBookkeeping(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	old := testutil.CreateEvent(t, db, testutil.WithDates(testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 2)))
	recent := testutil.CreateEvent(t, db)
	oldSession := testutil.CreateSession(t, db, old.ID, "Ana")
	recentSession := testutil.CreateSession(t, db, recent.ID, "Ben")

	uploaded := testutil.CreateMedia(t, db, oldSession, models.MediaStatusUploaded)
	testutil.CreateMedia(t, db, oldSession, models.MediaStatusPending)
	testutil.CreateMedia(t, db, recentSession, models.MediaStatusUploaded)

	repo := NewMediaRepository(db)
	cutoff := testutil.Date(2026, time.January, 10)

	items, err := repo.ListRetentionCandidates(ctx, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, uploaded.ID, items[0].ID)

	require.NoError(t, repo.RecordDeleteFailure(ctx, uploaded.ID, "bucket unavailable", reservedAt))
	stored, err := repo.GetByID(ctx, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.DeleteAttempts)
	assert.Equal(t, "bucket unavailable", stored.LastDeleteError)
	assert.Equal(t, models.MediaStatusUploaded, stored.Status)

	ok, err := repo.MarkDeleted(ctx, uploaded.ID, models.MediaStatusHidden, reservedAt)
	require.NoError(t, err)
	assert.False(t, ok, "observed status must still hold")

	ok, err = repo.MarkDeleted(ctx, uploaded.ID, models.MediaStatusUploaded, reservedAt)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err = repo.GetByID(ctx, uploaded.ID)
	require.NoError(t, err)
	assert.Equal(t, models.MediaStatusExpired, stored.Status)
	assert.NotNil(t, stored.DeletedAt)
	assert.Empty(t, stored.LastDeleteError)

	items, err = repo.ListRetentionCandidates(ctx, cutoff, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestMarkPurged_WaitsForAllMedia(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	event := testutil.CreateEvent(t, db,
		testutil.WithDates(testutil.Date(2026, time.January, 1), testutil.Date(2026, time.January, 2)),
		testutil.WithStatus(models.EventStatusArchived))
	session := testutil.CreateSession(t, db, event.ID, "Ana")
	item := testutil.CreateMedia(t, db, session, models.MediaStatusUploaded)

	events := NewEventRepository(db)
	cutoff := testutil.Date(2026, time.January, 10)

	n, err := events.MarkPurged(ctx, cutoff, reservedAt)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = NewMediaRepository(db).MarkDeleted(ctx, item.ID, models.MediaStatusUploaded, reservedAt)
	require.NoError(t, err)

	n, err = events.MarkPurged(ctx, cutoff, reservedAt)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	stored, err := events.GetByID(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, models.EventStatusPurged, stored.Status)
	assert.NotNil(t, stored.PurgedAt)

	n, err = events.MarkPurged(ctx, cutoff, reservedAt)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEachFacetSource_SkipsNonFacetStatuses(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewTestDB(t)
	event := testutil.CreateEvent(t, db)
	session := testutil.CreateSession(t, db, event.ID, "Ana")
	testutil.CreateMedia(t, db, session, models.MediaStatusUploaded, "cake")
	testutil.CreateMedia(t, db, session, models.MediaStatusHidden)
	testutil.CreateMedia(t, db, session, models.MediaStatusPending)
	testutil.CreateMedia(t, db, session, models.MediaStatusExpired)

	var seen int
	err := NewMediaRepository(db).EachFacetSource(ctx, event.ID, 1, func(items []models.MediaItem) error {
		seen += len(items)
		for _, item := range items {
			assert.True(t, item.Status.CountsForFacets())
			assert.Equal(t, "Ana", item.UploaderName)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, seen)
}
