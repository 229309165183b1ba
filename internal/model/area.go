package model

import (
	"time"

	"github.com/google/uuid"
)

type AreaStatus string

const (
	AreaNotStarted        AreaStatus = "NOT_STARTED"
	AreaInProgress        AreaStatus = "IN_PROGRESS"
	AreaPendingComparison AreaStatus = "PENDING_COMPARISON"
	AreaPendingApproval   AreaStatus = "PENDING_APPROVAL"
	AreaApproved          AreaStatus = "APPROVED"
	AreaRejected          AreaStatus = "REJECTED"
)

// AssignmentsPerArea is the number of independent counts compared for one area.
const AssignmentsPerArea = 2

// Area is a zone counted independently within a stock count.
// Version is bumped on every status write; reconciliation relies on it to detect
// a concurrent writer.
type Area struct {
	ID           uuid.UUID  `gorm:"type:varchar(36);primaryKey" json:"id"`
	StockCountID uuid.UUID  `gorm:"type:varchar(36);not null;index:idx_areas_by_stock_count,priority:1" json:"stock_count_id"`
	Name         string     `gorm:"not null;index:idx_areas_by_stock_count,priority:2" json:"name"`
	Description  string     `gorm:"not null" json:"description"`
	Status       AreaStatus `gorm:"type:varchar(20);not null;default:'NOT_STARTED'" json:"status"`
	Version      int        `gorm:"not null;default:0" json:"version"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (a Area) RecordID() uuid.UUID { return a.ID }
