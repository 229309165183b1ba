package model

import (
	"time"

	"github.com/google/uuid"
)

type StockCountStatus string

const (
	StockCountCreated         StockCountStatus = "CREATED"
	StockCountInProgress      StockCountStatus = "IN_PROGRESS"
	StockCountPendingApproval StockCountStatus = "PENDING_APPROVAL"
	StockCountApproved        StockCountStatus = "APPROVED"
	StockCountCancelled       StockCountStatus = "CANCELLED"
)

// StockCount is a counting campaign spanning one or more areas.
type StockCount struct {
	ID        uuid.UUID        `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name      string           `gorm:"not null" json:"name"`
	Date      time.Time        `gorm:"not null" json:"date"`
	Type      string           `gorm:"size:50;not null" json:"type"`
	Status    StockCountStatus `gorm:"type:varchar(20);not null;default:'CREATED'" json:"status"`
	CreatedBy uuid.UUID        `gorm:"type:varchar(36);index" json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (s StockCount) RecordID() uuid.UUID { return s.ID }
