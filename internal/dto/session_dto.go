package dto

import "github.com/google/uuid"

// StartSessionRequest may carry a client-generated id so that a retried request
// returns the session created by the first attempt.
type StartSessionRequest struct {
	ID           *uuid.UUID `json:"id"`
	AssignmentID uuid.UUID  `json:"assignment_id" validate:"required"`
}

type CompleteSessionRequest struct {
	Submit bool `json:"submit"`
}

type AddItemRequest struct {
	ID            *uuid.UUID `json:"id"`
	ItemNumber    string     `json:"item_number"     validate:"required,max=100"`
	SKU           string     `json:"sku"             validate:"required,max=100"`
	UPC           string     `json:"upc"             validate:"max=100"`
	Description   string     `json:"description"     validate:"max=500"`
	Quantity      *int       `json:"quantity"        validate:"required,min=0"`
	UnitOfMeasure string     `json:"unit_of_measure" validate:"max=20"`
	Location      string     `json:"location"        validate:"max=200"`
	PhotoURL      string     `json:"photo_url"       validate:"omitempty,url"`
	Notes         string     `json:"notes"           validate:"max=1000"`
}

type UpdateItemRequest struct {
	ItemNumber    *string `json:"item_number"     validate:"omitempty,min=1,max=100"`
	SKU           *string `json:"sku"             validate:"omitempty,min=1,max=100"`
	UPC           *string `json:"upc"             validate:"omitempty,max=100"`
	Description   *string `json:"description"     validate:"omitempty,max=500"`
	Quantity      *int    `json:"quantity"        validate:"omitempty,min=0"`
	UnitOfMeasure *string `json:"unit_of_measure" validate:"omitempty,max=20"`
	Location      *string `json:"location"        validate:"omitempty,max=200"`
	PhotoURL      *string `json:"photo_url"       validate:"omitempty,url"`
	Notes         *string `json:"notes"           validate:"omitempty,max=1000"`
}
