package models

import (
	"time"
)

type MediaStatus string

const (
	MediaStatusPending  MediaStatus = "pending"
	MediaStatusUploaded MediaStatus = "uploaded"
	MediaStatusHidden   MediaStatus = "hidden"
	MediaStatusFailed   MediaStatus = "failed"
	MediaStatusExpired  MediaStatus = "expired"
)

// CapacityStatuses are the statuses that hold an upload slot. Hidden media
// still counts; expired and failed do not.
var CapacityStatuses = []MediaStatus{MediaStatusPending, MediaStatusUploaded, MediaStatusHidden}

// FacetStatuses are the statuses that contribute to facet counters.
var FacetStatuses = []MediaStatus{MediaStatusUploaded, MediaStatusHidden}

func (s MediaStatus) CountsForFacets() bool {
	return s == MediaStatusUploaded || s == MediaStatusHidden
}

// MediaItem is one uploaded asset. UploaderName is copied from the session
// when the slot is reserved and never follows later renames.
type MediaItem struct {
	ID              string      `json:"id" gorm:"type:varchar(36);primaryKey"`
	EventID         string      `json:"event_id" gorm:"type:varchar(36);not null;index"`
	SessionID       string      `json:"session_id" gorm:"type:varchar(36);not null;index:idx_media_session_status"`
	Status          MediaStatus `json:"status" gorm:"type:varchar(16);not null;default:'pending';index:idx_media_session_status"`
	MimeType        string      `json:"mime_type" gorm:"not null"`
	SizeBytes       int64       `json:"size_bytes" gorm:"not null"`
	OriginalPath    string      `json:"-" gorm:"not null"`
	ThumbnailPath   string      `json:"-"`
	UploaderName    string      `json:"uploader_name"`
	Tags            TagSet      `json:"tags" gorm:"type:json;serializer:json"`
	CreatedAt       time.Time   `json:"created_at" gorm:"index"`
	UploadedAt      *time.Time  `json:"uploaded_at,omitempty"`
	UpdatedAt       time.Time   `json:"updated_at"`
	DeletedAt       *time.Time  `json:"deleted_at,omitempty" gorm:"index"`
	DeleteAttempts  int         `json:"-" gorm:"not null;default:0"`
	LastDeleteError string      `json:"-"`
}

type ReserveUploadRequest struct {
	MimeType      string   `json:"mime_type" validate:"required,max=100"`
	SizeBytes     int64    `json:"size_bytes" validate:"required,min=1"`
	Tags          []string `json:"tags" validate:"omitempty,max=32,dive,max=200"`
	WithThumbnail bool     `json:"with_thumbnail"`
}

type ReserveUploadResponse struct {
	Media              MediaResponse `json:"media"`
	UploadURL          string        `json:"upload_url"`
	ThumbnailUploadURL string        `json:"thumbnail_upload_url,omitempty"`
	ExpiresAt          time.Time     `json:"expires_at"`
}

type MediaFilter struct {
	Uploader      string `query:"uploader"`
	Tag           string `query:"tag"`
	IncludeHidden bool   `query:"include_hidden"`
	Limit         int    `query:"limit"`
	Offset        int    `query:"offset"`
}

type MediaResponse struct {
	ID           string      `json:"id"`
	EventID      string      `json:"event_id"`
	SessionID    string      `json:"session_id"`
	Status       MediaStatus `json:"status"`
	MimeType     string      `json:"mime_type"`
	SizeBytes    int64       `json:"size_bytes"`
	UploaderName string      `json:"uploader_name,omitempty"`
	Tags         TagSet      `json:"tags"`
	URL          string      `json:"url,omitempty"`
	ThumbnailURL string      `json:"thumbnail_url,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
	UploadedAt   *time.Time  `json:"uploaded_at,omitempty"`
}

func NewMediaResponse(m *MediaItem) MediaResponse {
	tags := m.Tags
	if tags == nil {
		tags = TagSet{}
	}
	return MediaResponse{
		ID:           m.ID,
		EventID:      m.EventID,
		SessionID:    m.SessionID,
		Status:       m.Status,
		MimeType:     m.MimeType,
		SizeBytes:    m.SizeBytes,
		UploaderName: m.UploaderName,
		Tags:         tags,
		CreatedAt:    m.CreatedAt,
		UploadedAt:   m.UploadedAt,
	}
}

type DownloadEntry struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	URL      string `json:"url"`
}
