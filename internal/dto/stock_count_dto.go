package dto

import (
	"time"

	"github.com/google/uuid"
)

type CreateStockCountRequest struct {
	Name string    `json:"name" validate:"required,max=200"`
	Date time.Time `json:"date" validate:"required"`
	Type string    `json:"type" validate:"required,max=50"`
}

type UpdateStockCountRequest struct {
	Name *string    `json:"name" validate:"omitempty,min=1,max=200"`
	Date *time.Time `json:"date"`
	Type *string    `json:"type" validate:"omitempty,min=1,max=50"`
}

// TransitionRequest moves an entity to the given status.
type TransitionRequest struct {
	Status string `json:"status" validate:"required"`
}

type CreateAreaRequest struct {
	StockCountID uuid.UUID `json:"stock_count_id" validate:"required"`
	Name         string    `json:"name"           validate:"required,max=200"`
	Description  string    `json:"description"    validate:"required,max=1000"`
}

type UpdateAreaRequest struct {
	Name        *string `json:"name"        validate:"omitempty,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,min=1,max=1000"`
}

type CreateAssignmentRequest struct {
	AreaID uuid.UUID `json:"area_id" validate:"required"`
	UserID uuid.UUID `json:"user_id" validate:"required"`
}

// UpdateAssignmentRequest reassigns a counter before counting has started.
type UpdateAssignmentRequest struct {
	UserID *uuid.UUID `json:"user_id"`
}
