package model

import (
	"time"

	"github.com/google/uuid"
)

type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentSubmitted  AssignmentStatus = "SUBMITTED"
	AssignmentApproved   AssignmentStatus = "APPROVED"
	AssignmentRejected   AssignmentStatus = "REJECTED"
)

// Assignment binds one user to one area for one counting duty.
// Timestamps are ordered: AssignedAt <= StartedAt <= CompletedAt.
type Assignment struct {
	ID          uuid.UUID        `gorm:"type:varchar(36);primaryKey" json:"id"`
	AreaID      uuid.UUID        `gorm:"type:varchar(36);not null;index:idx_assignments_by_area" json:"area_id"`
	UserID      uuid.UUID        `gorm:"type:varchar(36);not null;index:idx_assignments_by_user" json:"user_id"`
	Status      AssignmentStatus `gorm:"type:varchar(20);not null;default:'ASSIGNED'" json:"status"`
	AssignedAt  time.Time        `gorm:"not null" json:"assigned_at"`
	StartedAt   *time.Time       `json:"started_at"`
	CompletedAt *time.Time       `json:"completed_at"`
	CreatedAt   time.Time        `json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

func (a Assignment) RecordID() uuid.UUID { return a.ID }

// Active reports whether the assignment still takes part in its area's comparison.
func (a Assignment) Active() bool {
	return a.Status != AssignmentRejected
}
