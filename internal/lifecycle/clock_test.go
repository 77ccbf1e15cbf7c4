package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

func mustTime(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestStatusBoundaries(t *testing.T) {
	start, err := ParseDate("2026-02-14")
	require.NoError(t, err)
	end, err := ParseDate("2026-02-15")
	require.NoError(t, err)

	cases := []struct {
		now  string
		want models.EventStatus
	}{
		{"2026-02-13T10:59:59Z", models.EventStatusDraft},
		{"2026-02-13T11:00:00Z", models.EventStatusActive},
		{"2026-02-14T12:00:00Z", models.EventStatusActive},
		{"2026-02-16T12:59:59Z", models.EventStatusActive},
		{"2026-02-16T13:00:00Z", models.EventStatusClosed},
		{"2026-03-30T00:00:00Z", models.EventStatusClosed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Status(start, end, mustTime(t, tc.now)), tc.now)
	}
}

func TestStatusIgnoresTimeOfDayOnDates(t *testing.T) {
	start := mustTime(t, "2026-02-14T18:30:00Z")
	end := mustTime(t, "2026-02-15T02:00:00Z")

	assert.Equal(t, models.EventStatusActive, Status(start, end, mustTime(t, "2026-02-13T11:00:00Z")))
	assert.Equal(t, models.EventStatusClosed, Status(start, end, mustTime(t, "2026-02-16T13:00:00Z")))
}

func TestEffectiveStatusHonoursTerminalMarkers(t *testing.T) {
	start, _ := ParseDate("2026-02-14")
	end, _ := ParseDate("2026-02-15")
	now := mustTime(t, "2026-02-14T12:00:00Z")

	event := &models.Event{StartDate: start, EndDate: end, Status: models.EventStatusDraft}
	assert.Equal(t, models.EventStatusActive, EffectiveStatus(event, now), "stale persisted copy is ignored")

	event.Status = models.EventStatusArchived
	assert.Equal(t, models.EventStatusArchived, EffectiveStatus(event, now))

	event.Status = models.EventStatusPurged
	assert.Equal(t, models.EventStatusPurged, EffectiveStatus(event, now))
}

func TestRetentionCutoff(t *testing.T) {
	end, _ := ParseDate("2026-02-15")
	retention := 30 * 24 * time.Hour

	eligibleAt := ClosesAt(end).Add(retention)
	assert.True(t, !end.After(RetentionCutoff(eligibleAt, retention)))
	assert.True(t, end.After(RetentionCutoff(eligibleAt.Add(-time.Second), retention)))
}
