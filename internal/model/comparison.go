package model

import (
	"time"

	"github.com/google/uuid"
)

type ComparisonStatus string

const (
	ComparisonPending     ComparisonStatus = "PENDING"
	ComparisonMatched     ComparisonStatus = "MATCHED"
	ComparisonDiscrepancy ComparisonStatus = "DISCREPANCY"
)

// Comparison reconciles the two assignments of an area.
// VarianceRate is derived from the discrepancies and is never written by callers.
type Comparison struct {
	ID                 uuid.UUID        `gorm:"type:varchar(36);primaryKey" json:"id"`
	AreaID             uuid.UUID        `gorm:"type:varchar(36);not null;index:idx_comparisons_by_area" json:"area_id"`
	FirstAssignmentID  uuid.UUID        `gorm:"type:varchar(36);not null" json:"first_assignment_id"`
	SecondAssignmentID uuid.UUID        `gorm:"type:varchar(36);not null" json:"second_assignment_id"`
	Status             ComparisonStatus `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	VarianceRate       float64          `gorm:"not null;default:0" json:"variance_rate"`
	ProcessedAt        time.Time        `gorm:"not null" json:"processed_at"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (c Comparison) RecordID() uuid.UUID { return c.ID }

// Covers reports whether the comparison was computed for exactly this pair of assignments.
func (c Comparison) Covers(first, second uuid.UUID) bool {
	return (c.FirstAssignmentID == first && c.SecondAssignmentID == second) ||
		(c.FirstAssignmentID == second && c.SecondAssignmentID == first)
}
