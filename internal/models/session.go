package models

import "time"

// ParticipantSession is one guest's identity scope within one event.
// Sessions are never deleted; deactivation is one-way.
type ParticipantSession struct {
	ID           string    `json:"id" gorm:"type:varchar(36);primaryKey"`
	EventID      string    `json:"event_id" gorm:"type:varchar(36);not null;index:idx_sessions_event_active"`
	DisplayName  *string   `json:"display_name,omitempty" gorm:"type:varchar(80)"`
	Active       bool      `json:"active" gorm:"not null;default:true;index:idx_sessions_event_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	LastActiveAt time.Time `json:"last_active_at"`
}

func (s *ParticipantSession) Name() string {
	if s.DisplayName == nil {
		return ""
	}
	return *s.DisplayName
}

type JoinRequest struct {
	DisplayName string `json:"display_name" validate:"omitempty,max=80"`
	Passcode    string `json:"passcode" validate:"omitempty,max=64"`
}

type RenameSessionRequest struct {
	DisplayName string `json:"display_name" validate:"required,max=80"`
}

type JoinResponse struct {
	Session ParticipantSession `json:"session"`
	Token   string             `json:"token"`
	EventID string             `json:"event_id"`
}
