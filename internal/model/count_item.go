package model

import (
	"time"

	"github.com/google/uuid"
)

// CountItem is a single SKU/quantity observation recorded during a session.
type CountItem struct {
	ID            uuid.UUID `gorm:"type:varchar(36);primaryKey" json:"id"`
	SessionID     uuid.UUID `gorm:"type:varchar(36);not null;index:idx_count_items_by_session" json:"session_id"`
	UserID        uuid.UUID `gorm:"type:varchar(36);not null" json:"user_id"`
	ItemNumber    string    `gorm:"size:100;not null;index:idx_count_items_by_item_number" json:"item_number"`
	SKU           string    `gorm:"column:sku;size:100;not null;index:idx_count_items_by_sku" json:"sku"`
	UPC           string    `gorm:"column:upc;size:100" json:"upc"`
	Description   string    `json:"description"`
	Quantity      int       `gorm:"not null" json:"quantity"` // never negative
	UnitOfMeasure string    `gorm:"size:20" json:"unit_of_measure"`
	Location      string    `json:"location"`
	PhotoURL      string    `gorm:"column:photo_url" json:"photo_url"`
	Notes         string    `json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (i CountItem) RecordID() uuid.UUID { return i.ID }
