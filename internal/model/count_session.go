package model

import (
	"time"

	"github.com/google/uuid"
)

type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionPaused    SessionStatus = "PAUSED"
	SessionCompleted SessionStatus = "COMPLETED"
)

// CountSession is one continuous counting pass under an assignment.
// EndTime is set only once the session is COMPLETED.
type CountSession struct {
	ID           uuid.UUID     `gorm:"type:varchar(36);primaryKey" json:"id"`
	AssignmentID uuid.UUID     `gorm:"type:varchar(36);not null;index:idx_count_sessions_by_assignment,priority:1" json:"assignment_id"`
	UserID       uuid.UUID     `gorm:"type:varchar(36);not null" json:"user_id"`
	Status       SessionStatus `gorm:"type:varchar(20);not null;default:'ACTIVE'" json:"status"`
	StartTime    time.Time     `gorm:"not null;index:idx_count_sessions_by_assignment,priority:2" json:"start_time"`
	EndTime      *time.Time    `json:"end_time"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

func (s CountSession) RecordID() uuid.UUID { return s.ID }

// Open reports whether items may still be recorded against the session.
func (s CountSession) Open() bool {
	return s.Status != SessionCompleted
}
