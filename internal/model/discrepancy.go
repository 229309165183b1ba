package model

import (
	"time"

	"github.com/google/uuid"
)

type DiscrepancyStatus string

const (
	DiscrepancyOpen     DiscrepancyStatus = "OPEN"
	DiscrepancyResolved DiscrepancyStatus = "RESOLVED"
	DiscrepancyApproved DiscrepancyStatus = "APPROVED"
)

// Discrepancy is the per-item variance between the two counts of a comparison.
// Variance is always FirstCount - SecondCount.
type Discrepancy struct {
	ID                 uuid.UUID         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ComparisonID       uuid.UUID         `gorm:"type:varchar(36);not null;index:idx_discrepancies_by_comparison" json:"comparison_id"`
	ItemNumber         string            `gorm:"size:100;not null" json:"item_number"`
	SKU                string            `gorm:"column:sku;size:100;not null" json:"sku"`
	Description        string            `json:"description"`
	FirstCount         int               `gorm:"not null" json:"first_count"`
	SecondCount        int               `gorm:"not null" json:"second_count"`
	Variance           int               `gorm:"not null" json:"variance"`
	VariancePercentage float64           `gorm:"not null" json:"variance_percentage"`
	Status             DiscrepancyStatus `gorm:"type:varchar(20);not null;default:'OPEN'" json:"status"`
	ResolvedBy         *uuid.UUID        `gorm:"type:varchar(36)" json:"resolved_by"`
	ResolvedAt         *time.Time        `json:"resolved_at"`
	Notes              string            `json:"notes"`
	CreatedAt          time.Time         `json:"created_at"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

func (d Discrepancy) RecordID() uuid.UUID { return d.ID }
