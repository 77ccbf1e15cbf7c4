package models

import "time"

type FacetKind string

const (
	FacetUploader FacetKind = "uploader"
	FacetTag      FacetKind = "tag"
)

// FacetCounter is a derived, best-effort count of media per (event, kind,
// value). Rows never hold a count below one; zero rows are deleted.
type FacetCounter struct {
	ID         uint      `json:"-" gorm:"primaryKey"`
	EventID    string    `json:"event_id" gorm:"type:varchar(36);not null;uniqueIndex:idx_facet_event_kind_value"`
	Kind       FacetKind `json:"kind" gorm:"type:varchar(16);not null;uniqueIndex:idx_facet_event_kind_value"`
	Value      string    `json:"value" gorm:"not null;uniqueIndex:idx_facet_event_kind_value"`
	MediaCount int64     `json:"count" gorm:"not null;default:0"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// FacetKey identifies one counter within an event.
type FacetKey struct {
	Kind  FacetKind
	Value string
}

// FacetKeys returns the counters a media item contributes to.
func FacetKeys(uploaderName string, tags TagSet) []FacetKey {
	keys := make([]FacetKey, 0, len(tags)+1)
	if name := NormalizeUploaderName(uploaderName); name != "" {
		keys = append(keys, FacetKey{Kind: FacetUploader, Value: name})
	}
	for _, tag := range tags.Normalized() {
		keys = append(keys, FacetKey{Kind: FacetTag, Value: tag})
	}
	return keys
}

type FacetValue struct {
	Value string `json:"value"`
	Count int64  `json:"count"`
}

type FacetsResponse struct {
	Uploaders []FacetValue `json:"uploaders"`
	Tags      []FacetValue `json:"tags"`
}
