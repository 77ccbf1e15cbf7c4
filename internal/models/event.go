package models

import (
	"time"
)

type EventStatus string

const (
	EventStatusDraft    EventStatus = "draft"
	EventStatusActive   EventStatus = "active"
	EventStatusClosed   EventStatus = "closed"
	EventStatusArchived EventStatus = "archived"
	EventStatusPurged   EventStatus = "purged"
)

// CompressionMode decides which media types and sizes guests may upload.
type CompressionMode string

const (
	CompressionStandard CompressionMode = "standard"
	CompressionOriginal CompressionMode = "original"
)

// Event is a bounded collection window. Status is a persisted copy of the
// lifecycle state and may lag; gating checks always re-derive it.
type Event struct {
	ID                       string          `json:"id" gorm:"type:varchar(36);primaryKey"`
	OrganizerID              string          `json:"organizer_id" gorm:"not null;index"`
	Title                    string          `json:"title" gorm:"not null"`
	Slug                     string          `json:"slug" gorm:"uniqueIndex;not null"`
	PasscodeHash             string          `json:"-"`
	MaxParticipants          int             `json:"max_participants" gorm:"not null"`
	MaxUploadsPerParticipant int             `json:"max_uploads_per_participant" gorm:"not null"`
	CompressionMode          CompressionMode `json:"compression_mode" gorm:"type:varchar(16);not null;default:'standard'"`
	StartDate                time.Time       `json:"start_date" gorm:"not null"`
	EndDate                  time.Time       `json:"end_date" gorm:"not null;index"`
	Status                   EventStatus     `json:"status" gorm:"type:varchar(16);not null;default:'draft';index"`
	ArchivedAt               *time.Time      `json:"archived_at,omitempty"`
	PurgedAt                 *time.Time      `json:"purged_at,omitempty"`
	CreatedAt                time.Time       `json:"created_at"`
	UpdatedAt                time.Time       `json:"updated_at"`
}

func (e *Event) HasPasscode() bool {
	return e.PasscodeHash != ""
}

type EventRequest struct {
	Title                    string          `json:"title" validate:"required,max=200"`
	MaxParticipants          int             `json:"max_participants" validate:"required,min=1,max=100000"`
	MaxUploadsPerParticipant int             `json:"max_uploads_per_participant" validate:"required,min=1,max=10000"`
	CompressionMode          CompressionMode `json:"compression_mode" validate:"omitempty,oneof=standard original"`
	StartDate                string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate                  string          `json:"end_date" validate:"required,datetime=2006-01-02"`
	Passcode                 string          `json:"passcode" validate:"omitempty,min=4,max=64"`
}

type EventResponse struct {
	ID                       string          `json:"id"`
	Title                    string          `json:"title"`
	Slug                     string          `json:"slug"`
	JoinURL                  string          `json:"join_url"`
	HasPasscode              bool            `json:"has_passcode"`
	MaxParticipants          int             `json:"max_participants"`
	MaxUploadsPerParticipant int             `json:"max_uploads_per_participant"`
	CompressionMode          CompressionMode `json:"compression_mode"`
	StartDate                string          `json:"start_date"`
	EndDate                  string          `json:"end_date"`
	Status                   EventStatus     `json:"status"`
	OpensAt                  time.Time       `json:"opens_at"`
	ClosesAt                 time.Time       `json:"closes_at"`
	CreatedAt                time.Time       `json:"created_at"`
}
