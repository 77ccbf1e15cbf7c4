// Package lifecycle maps an event's calendar dates to its time-derived
// status. It does no I/O; archived and purged are layered on top by callers.
package lifecycle

import (
	"time"

	"github.com/sefazor/guestdrop-backend/internal/models"
)

const (
	// OpenBuffer opens events the night before their start date.
	OpenBuffer = 13 * time.Hour
	// CloseBuffer keeps events open the night after their end date.
	CloseBuffer = 13 * time.Hour

	day = 24 * time.Hour
)

// Clock is the source of "now" for services and jobs.
type Clock func() time.Time

func SystemClock() time.Time {
	return time.Now().UTC()
}

// Date truncates t to its UTC calendar date.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date as UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", s, time.UTC)
}

// OpensAt is the first instant the event is active.
func OpensAt(startDate time.Time) time.Time {
	return Date(startDate).Add(-OpenBuffer)
}

// ClosesAt is the first instant the event is closed.
func ClosesAt(endDate time.Time) time.Time {
	return Date(endDate).Add(day).Add(CloseBuffer)
}

// Status returns draft, active or closed for the given dates at now.
func Status(startDate, endDate, now time.Time) models.EventStatus {
	switch {
	case now.Before(OpensAt(startDate)):
		return models.EventStatusDraft
	case !now.Before(ClosesAt(endDate)):
		return models.EventStatusClosed
	default:
		return models.EventStatusActive
	}
}

// EffectiveStatus applies the one-way archived and purged markers on top of
// the clock. A persisted draft/active/closed status is ignored since it may lag.
func EffectiveStatus(event *models.Event, now time.Time) models.EventStatus {
	switch event.Status {
	case models.EventStatusPurged, models.EventStatusArchived:
		return event.Status
	}
	return Status(event.StartDate, event.EndDate, now)
}

// RetentionCutoff returns the latest end date whose event has been closed for
// at least the retention period at now.
func RetentionCutoff(now time.Time, retention time.Duration) time.Time {
	return now.Add(-retention).Add(-CloseBuffer).Add(-day)
}
